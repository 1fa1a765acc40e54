package field

import (
	"fmt"
	"slices"

	"github.com/measalg/coaddpsf"
	"github.com/measalg/coaddpsf/geom"
)

// Polynomial is a 2-D polynomial of total degree Order in coordinates
// normalised to [-1, 1] over the bounding box. Coefficients are ordered by
// degree n = 0..Order and within a degree by increasing power of y:
// 1, x, y, x², xy, y², ...
type Polynomial struct {
	bbox   geom.Box
	order  int
	coeffs []float64
}

// NumCoefficients returns (order+1)(order+2)/2.
func NumCoefficients(order int) int {
	return (order + 1) * (order + 2) / 2
}

// NewPolynomial creates a polynomial field. The coefficient count must
// match the order.
func NewPolynomial(bbox geom.Box, order int, coeffs []float64) (*Polynomial, error) {
	if order < 0 {
		return nil, fmt.Errorf("field: negative order %d: %w", order, coaddpsf.ErrInvalidConfiguration)
	}
	if len(coeffs) != NumCoefficients(order) {
		return nil, fmt.Errorf("field: order %d needs %d coefficients, got %d: %w",
			order, NumCoefficients(order), len(coeffs), coaddpsf.ErrInvalidConfiguration)
	}
	if bbox.IsEmpty() {
		return nil, fmt.Errorf("field: empty bounding box: %w", coaddpsf.ErrInvalidConfiguration)
	}
	return &Polynomial{bbox: bbox, order: order, coeffs: slices.Clone(coeffs)}, nil
}

// BBox implements BoundedField.
func (f *Polynomial) BBox() geom.Box { return f.bbox }

// Order returns the total degree.
func (f *Polynomial) Order() int { return f.order }

// Coefficients returns a copy of the coefficients.
func (f *Polynomial) Coefficients() []float64 { return slices.Clone(f.coeffs) }

// normalize maps p into [-1, 1]² over the pixel extent of the box.
func (f *Polynomial) normalize(p geom.Point) (float64, float64) {
	r := f.bbox.Rect()
	u := 2*(p.X-r.LLx)/(r.URx-r.LLx) - 1
	v := 2*(p.Y-r.LLy)/(r.URy-r.LLy) - 1
	return u, v
}

// Evaluate implements BoundedField.
func (f *Polynomial) Evaluate(p geom.Point) (float64, error) {
	if !f.bbox.Contains(p) {
		return 0, fmt.Errorf("field: %v not in %v: %w", p, f.bbox, ErrOutOfBounds)
	}
	u, v := f.normalize(p)

	xPow := make([]float64, f.order+1)
	yPow := make([]float64, f.order+1)
	xPow[0], yPow[0] = 1, 1
	for i := 1; i <= f.order; i++ {
		xPow[i] = xPow[i-1] * u
		yPow[i] = yPow[i-1] * v
	}

	var sum float64
	k := 0
	for n := 0; n <= f.order; n++ {
		for q := 0; q <= n; q++ {
			sum += f.coeffs[k] * xPow[n-q] * yPow[q]
			k++
		}
	}
	return sum, nil
}

// Scale implements BoundedField.
func (f *Polynomial) Scale(s float64) BoundedField {
	c := make([]float64, len(f.coeffs))
	for i, v := range f.coeffs {
		c[i] = v * s
	}
	return &Polynomial{bbox: f.bbox, order: f.order, coeffs: c}
}

// Equal implements BoundedField.
func (f *Polynomial) Equal(other BoundedField) bool {
	o, ok := other.(*Polynomial)
	return ok && o != nil && f.bbox == o.bbox && f.order == o.order && slices.Equal(f.coeffs, o.coeffs)
}
