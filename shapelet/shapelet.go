// Package shapelet fits and interpolates spatially varying PSF models
// expressed in a Gauss-Hermite (shapelet) basis.
//
// An Interpolation is configured once, fitted to a set of candidate stars
// with Calculate, and then queried at arbitrary positions with
// Interpolate. The fit reduces the shapelet vectors with a principal
// component analysis and models each retained component as a Legendre
// polynomial in position, rejecting outlying stars by iterative sigma
// clipping.
package shapelet

import (
	"fmt"
	"math"
	"slices"

	"github.com/measalg/coaddpsf"
	"github.com/measalg/coaddpsf/image"
)

// Size returns the number of coefficients of a 2-D expansion of the given
// order, (order+1)(order+2)/2.
func Size(order int) int {
	return (order + 1) * (order + 2) / 2
}

// Shapelet is a truncated expansion in the Cartesian Gauss-Hermite basis
//
//	f(x, y) = Σ b_pq φ_p(x/σ) φ_q(y/σ) / σ,   p + q ≤ order
//
// where φ_n are the orthonormal Hermite functions. Coefficients are
// ordered by total degree n = p+q and, within a degree, by increasing q.
type Shapelet struct {
	order  int
	sigma  float64
	coeffs []float64
}

// New creates a shapelet; len(coeffs) must equal Size(order).
func New(order int, sigma float64, coeffs []float64) (*Shapelet, error) {
	if order < 0 {
		return nil, fmt.Errorf("shapelet: negative order %d: %w", order, coaddpsf.ErrInvalidConfiguration)
	}
	if !(sigma > 0) || math.IsInf(sigma, 0) {
		return nil, fmt.Errorf("shapelet: sigma %g: %w", sigma, coaddpsf.ErrInvalidConfiguration)
	}
	if len(coeffs) != Size(order) {
		return nil, fmt.Errorf("shapelet: order %d needs %d coefficients, got %d: %w",
			order, Size(order), len(coeffs), coaddpsf.ErrInvalidConfiguration)
	}
	return &Shapelet{order: order, sigma: sigma, coeffs: slices.Clone(coeffs)}, nil
}

// Order returns the expansion order.
func (s *Shapelet) Order() int { return s.order }

// Sigma returns the basis scale in pixels.
func (s *Shapelet) Sigma() float64 { return s.sigma }

// Size returns the number of coefficients.
func (s *Shapelet) Size() int { return len(s.coeffs) }

// Coefficients returns a copy of the coefficient vector.
func (s *Shapelet) Coefficients() []float64 { return slices.Clone(s.coeffs) }

// Coefficient returns the i-th coefficient.
func (s *Shapelet) Coefficient(i int) float64 { return s.coeffs[i] }

// Evaluate returns the expansion at (x, y), in pixels from its centre.
func (s *Shapelet) Evaluate(x, y float64) float64 {
	hx := hermite(s.order, x/s.sigma)
	hy := hermite(s.order, y/s.sigma)
	return s.evaluate(hx, hy)
}

func (s *Shapelet) evaluate(hx, hy []float64) float64 {
	var sum float64
	k := 0
	for n := 0; n <= s.order; n++ {
		for q := 0; q <= n; q++ {
			sum += s.coeffs[k] * hx[n-q] * hy[q]
			k++
		}
	}
	return sum / s.sigma
}

// Image renders the expansion at pixel centres of a width x height kernel
// image centred on pixel (0, 0).
func (s *Shapelet) Image(width, height int) (*image.Image, error) {
	img, err := image.NewKernel(width, height)
	if err != nil {
		return nil, err
	}
	x0, y0 := img.XY0()
	hx := make([][]float64, width)
	for i := range hx {
		hx[i] = hermite(s.order, float64(x0+i)/s.sigma)
	}
	data := img.Data()
	for j := range height {
		hy := hermite(s.order, float64(y0+j)/s.sigma)
		for i := range width {
			data[j*width+i] = s.evaluate(hx[i], hy)
		}
	}
	return img, nil
}

// Flux returns the integral of the expansion over the plane. Only terms
// with even p and q contribute.
func (s *Shapelet) Flux() float64 {
	var sum float64
	k := 0
	for n := 0; n <= s.order; n++ {
		for q := 0; q <= n; q++ {
			p := n - q
			if p%2 == 0 && q%2 == 0 {
				sum += s.coeffs[k] * hermiteIntegral(p) * hermiteIntegral(q)
			}
			k++
		}
	}
	return sum * s.sigma
}

// Equal reports value equality.
func (s *Shapelet) Equal(o *Shapelet) bool {
	return o != nil && s.order == o.order && s.sigma == o.sigma && slices.Equal(s.coeffs, o.coeffs)
}

// hermite returns the orthonormal Hermite functions φ_0..φ_order at x.
func hermite(order int, x float64) []float64 {
	h := make([]float64, order+1)
	h[0] = math.Exp(-0.5*x*x) / math.Sqrt(math.Sqrt(math.Pi))
	if order >= 1 {
		h[1] = math.Sqrt2 * x * h[0]
	}
	for n := 1; n < order; n++ {
		fn := float64(n)
		h[n+1] = math.Sqrt(2/(fn+1))*x*h[n] - math.Sqrt(fn/(fn+1))*h[n-1]
	}
	return h
}

// hermiteIntegral returns ∫ φ_n(x) dx for even n.
func hermiteIntegral(n int) float64 {
	// ∫φ_0 = √2 π^¼; each step of two multiplies by √((n-1)/n)
	v := math.Sqrt2 * math.Sqrt(math.Sqrt(math.Pi))
	for m := 2; m <= n; m += 2 {
		v *= math.Sqrt(float64(m-1) / float64(m))
	}
	return v
}
