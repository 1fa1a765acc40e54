package wcs

import (
	"fmt"
	"math"

	"seehuhn.de/go/geom/matrix"

	"github.com/measalg/coaddpsf"
	"github.com/measalg/coaddpsf/geom"
)

// Tan is a gnomonic (tangent-plane) WCS: pixel offsets from CRPix are
// mapped through the CD matrix to standard coordinates in radians and then
// deprojected around CRVal.
type Tan struct {
	crval SkyCoord
	crpix geom.Point
	cd    matrix.Matrix
	cdInv matrix.Matrix
}

// NewTan creates a TAN projection. The CD matrix must be invertible.
func NewTan(crval SkyCoord, crpix geom.Point, cd matrix.Matrix) (*Tan, error) {
	cd[4], cd[5] = 0, 0
	inv, err := Invert(cd)
	if err != nil {
		return nil, fmt.Errorf("wcs: TAN CD matrix: %w", coaddpsf.ErrInvalidConfiguration)
	}
	return &Tan{crval: crval, crpix: crpix, cd: cd, cdInv: inv}, nil
}

// NewTanScale creates a TAN projection with square pixels of the given
// size in arcseconds, rotated by rot radians.
func NewTanScale(crval SkyCoord, crpix geom.Point, arcsec, rot float64) (*Tan, error) {
	s := arcsec / 3600 * math.Pi / 180
	c, n := math.Cos(rot), math.Sin(rot)
	// RA increases to the east (negative x) by convention.
	return NewTan(crval, crpix, CD(-s*c, s*n, s*n, s*c))
}

// CRVal returns the tangent point.
func (w *Tan) CRVal() SkyCoord { return w.crval }

// CRPix returns the reference pixel.
func (w *Tan) CRPix() geom.Point { return w.crpix }

// CDMatrix returns the linear pixel→standard-coordinate matrix.
func (w *Tan) CDMatrix() matrix.Matrix { return w.cd }

// PixelScale returns the mean pixel size in radians at the reference pixel.
func (w *Tan) PixelScale() float64 {
	return math.Sqrt(math.Abs(Determinant(w.cd)))
}

// PixelToSky implements Wcs.
func (w *Tan) PixelToSky(p geom.Point) (SkyCoord, error) {
	if !geom.IsFinite(p) {
		return SkyCoord{}, fmt.Errorf("wcs: non-finite pixel %v: %w", p, coaddpsf.ErrTransformFailure)
	}
	d := p.Sub(w.crpix)
	xi, eta := w.cd.Apply(d.X, d.Y)

	sd0, cd0 := math.Sincos(w.crval.Dec)
	denom := cd0 - eta*sd0
	ra := w.crval.RA + math.Atan2(xi, denom)
	dec := math.Atan2(sd0+eta*cd0, math.Hypot(xi, denom))
	return SkyCoord{RA: normalizeRA(ra), Dec: dec}, nil
}

// SkyToPixel implements Wcs. Points 90° or more from the tangent point
// cannot be projected.
func (w *Tan) SkyToPixel(c SkyCoord) (geom.Point, error) {
	sd0, cd0 := math.Sincos(w.crval.Dec)
	sd, cd := math.Sincos(c.Dec)
	sa, ca := math.Sincos(c.RA - w.crval.RA)

	cosc := sd0*sd + cd0*cd*ca
	if cosc <= 1e-12 || math.IsNaN(cosc) {
		return geom.Point{}, fmt.Errorf("wcs: (%g, %g) behind tangent plane: %w", c.RA, c.Dec, coaddpsf.ErrTransformFailure)
	}
	xi := cd * sa / cosc
	eta := (cd0*sd - sd0*cd*ca) / cosc
	px, py := w.cdInv.Apply(xi, eta)
	return geom.Pt(px, py).Add(w.crpix), nil
}

// Equal implements Wcs.
func (w *Tan) Equal(other Wcs) bool {
	o, ok := other.(*Tan)
	if !ok || o == nil {
		return false
	}
	return w == o || (w.crval == o.crval && w.crpix == o.crpix && w.cd == o.cd)
}

// normalizeRA wraps ra into [0, 2π).
func normalizeRA(ra float64) float64 {
	ra = math.Mod(ra, 2*math.Pi)
	if ra < 0 {
		ra += 2 * math.Pi
	}
	return ra
}
