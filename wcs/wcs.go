// Package wcs defines the coordinate-mapping contract used by the coadd
// aggregates and provides gnomonic (TAN) and flat-sky implementations.
//
// Sky coordinates are (RA, Dec) in radians. Implementations are immutable
// and may be shared between many coadd elements.
package wcs

import (
	"fmt"
	"math"

	"seehuhn.de/go/geom/matrix"

	"github.com/measalg/coaddpsf"
	"github.com/measalg/coaddpsf/geom"
)

// SkyCoord is a celestial position in radians.
type SkyCoord struct {
	RA, Dec float64
}

// Degrees creates a SkyCoord from degrees.
func Degrees(ra, dec float64) SkyCoord {
	return SkyCoord{RA: ra * math.Pi / 180, Dec: dec * math.Pi / 180}
}

// Separation returns the angular distance between two positions in radians.
func (c SkyCoord) Separation(o SkyCoord) float64 {
	// haversine, stable for small angles
	sd := math.Sin((o.Dec - c.Dec) / 2)
	sr := math.Sin((o.RA - c.RA) / 2)
	h := sd*sd + math.Cos(c.Dec)*math.Cos(o.Dec)*sr*sr
	return 2 * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Wcs maps between pixel and sky coordinates of one exposure or coadd.
//
// Both directions return an error wrapping coaddpsf.ErrTransformFailure when
// a point cannot be converted.
type Wcs interface {
	PixelToSky(p geom.Point) (SkyCoord, error)
	SkyToPixel(c SkyCoord) (geom.Point, error)
	// Equal reports value equality with another mapping.
	Equal(other Wcs) bool
}

// Equal compares two optional mappings. Nil equals only nil.
func Equal(a, b Wcs) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

// Transform maps a pixel position of the "from" frame into the "to" frame
// through the sky. A nil "to" means the frames coincide and p is returned
// unchanged.
func Transform(p geom.Point, from, to Wcs) (geom.Point, error) {
	if to == nil {
		return p, nil
	}
	if from == nil {
		return geom.Point{}, fmt.Errorf("wcs: source frame undefined: %w", coaddpsf.ErrTransformFailure)
	}
	sky, err := from.PixelToSky(p)
	if err != nil {
		return geom.Point{}, err
	}
	return to.SkyToPixel(sky)
}

// jacobianStep is the finite-difference step in pixels for LocalLinear.
const jacobianStep = 0.5

// LocalLinear returns the affine approximation of the from→to pixel mapping
// around p, computed by central differences. The translation part maps p
// to its image.
func LocalLinear(p geom.Point, from, to Wcs) (matrix.Matrix, error) {
	if to == nil {
		return matrix.Identity, nil
	}
	center, err := Transform(p, from, to)
	if err != nil {
		return matrix.Matrix{}, err
	}
	h := jacobianStep
	xp, err := Transform(geom.Pt(p.X+h, p.Y), from, to)
	if err != nil {
		return matrix.Matrix{}, err
	}
	xm, err := Transform(geom.Pt(p.X-h, p.Y), from, to)
	if err != nil {
		return matrix.Matrix{}, err
	}
	yp, err := Transform(geom.Pt(p.X, p.Y+h), from, to)
	if err != nil {
		return matrix.Matrix{}, err
	}
	ym, err := Transform(geom.Pt(p.X, p.Y-h), from, to)
	if err != nil {
		return matrix.Matrix{}, err
	}

	dxdx := (xp.X - xm.X) / (2 * h)
	dydx := (xp.Y - xm.Y) / (2 * h)
	dxdy := (yp.X - ym.X) / (2 * h)
	dydy := (yp.Y - ym.Y) / (2 * h)

	m := matrix.Matrix{dxdx, dydx, dxdy, dydy, 0, 0}
	// choose the offset so that p maps onto center
	m[4] = center.X - (m[0]*p.X + m[2]*p.Y)
	m[5] = center.Y - (m[1]*p.X + m[3]*p.Y)
	return m, nil
}

// Determinant returns the determinant of the linear part of m.
func Determinant(m matrix.Matrix) float64 {
	return m[0]*m[3] - m[1]*m[2]
}

// Invert returns the inverse of m, failing for singular matrices.
func Invert(m matrix.Matrix) (matrix.Matrix, error) {
	det := Determinant(m)
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return matrix.Matrix{}, fmt.Errorf("wcs: singular matrix: %w", coaddpsf.ErrTransformFailure)
	}
	inv := matrix.Matrix{m[3] / det, -m[1] / det, -m[2] / det, m[0] / det, 0, 0}
	inv[4] = -(inv[0]*m[4] + inv[2]*m[5])
	inv[5] = -(inv[1]*m[4] + inv[3]*m[5])
	return inv, nil
}

// CD builds the linear pixel→intermediate matrix from FITS-style CD
// elements, ξ = cd11·dx + cd12·dy and η = cd21·dx + cd22·dy.
func CD(cd11, cd12, cd21, cd22 float64) matrix.Matrix {
	return matrix.Matrix{cd11, cd21, cd12, cd22, 0, 0}
}

// CDElements is the inverse of CD.
func CDElements(m matrix.Matrix) (cd11, cd12, cd21, cd22 float64) {
	return m[0], m[2], m[1], m[3]
}
