package wcs

import (
	"fmt"

	"seehuhn.de/go/geom/matrix"

	"github.com/measalg/coaddpsf"
	"github.com/measalg/coaddpsf/geom"
)

// Linear is a flat-sky WCS: sky = origin + CD·(p - crpix), with no
// projection. It is exact for small fields and for synthetic test frames.
type Linear struct {
	origin SkyCoord
	crpix  geom.Point
	cd     matrix.Matrix
	cdInv  matrix.Matrix
}

// NewLinear creates a flat-sky mapping.
func NewLinear(origin SkyCoord, crpix geom.Point, cd matrix.Matrix) (*Linear, error) {
	cd[4], cd[5] = 0, 0
	inv, err := Invert(cd)
	if err != nil {
		return nil, fmt.Errorf("wcs: linear CD matrix: %w", coaddpsf.ErrInvalidConfiguration)
	}
	return &Linear{origin: origin, crpix: crpix, cd: cd, cdInv: inv}, nil
}

// NewOffset creates a mapping with unit CD whose pixel (0, 0) sits at
// sky position (dx, dy). Two offset frames differ by a pure translation.
func NewOffset(dx, dy float64) *Linear {
	return &Linear{
		origin: SkyCoord{RA: dx, Dec: dy},
		cd:     matrix.Identity,
		cdInv:  matrix.Identity,
	}
}

// Origin returns the sky position of the reference pixel.
func (w *Linear) Origin() SkyCoord { return w.origin }

// CRPix returns the reference pixel.
func (w *Linear) CRPix() geom.Point { return w.crpix }

// CDMatrix returns the linear part.
func (w *Linear) CDMatrix() matrix.Matrix { return w.cd }

// PixelToSky implements Wcs.
func (w *Linear) PixelToSky(p geom.Point) (SkyCoord, error) {
	if !geom.IsFinite(p) {
		return SkyCoord{}, fmt.Errorf("wcs: non-finite pixel %v: %w", p, coaddpsf.ErrTransformFailure)
	}
	d := geom.Apply(w.cd, p.Sub(w.crpix))
	return SkyCoord{RA: w.origin.RA + d.X, Dec: w.origin.Dec + d.Y}, nil
}

// SkyToPixel implements Wcs.
func (w *Linear) SkyToPixel(c SkyCoord) (geom.Point, error) {
	d := geom.Pt(c.RA-w.origin.RA, c.Dec-w.origin.Dec)
	p := geom.Apply(w.cdInv, d).Add(w.crpix)
	if !geom.IsFinite(p) {
		return geom.Point{}, fmt.Errorf("wcs: non-finite sky %v: %w", c, coaddpsf.ErrTransformFailure)
	}
	return p, nil
}

// Equal implements Wcs.
func (w *Linear) Equal(other Wcs) bool {
	o, ok := other.(*Linear)
	if !ok || o == nil {
		return false
	}
	return w == o || (w.origin == o.origin && w.crpix == o.crpix && w.cd == o.cd)
}
