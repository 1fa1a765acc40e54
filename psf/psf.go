// Package psf defines the PSF-model contract consumed by the coadd
// aggregates, with a single-Gaussian model, a fixed-image model and
// moment measurement.
package psf

import (
	"errors"
	"fmt"
	"math"

	"github.com/measalg/coaddpsf/geom"
	"github.com/measalg/coaddpsf/image"
)

// ErrZeroFlux is returned when moments are requested for an image whose
// pixels do not sum to a positive value.
var ErrZeroFlux = errors.New("psf: image has no positive flux")

// Psf is a (possibly spatially varying) point-spread-function model.
//
// ComputeImage renders the kernel for a source at position p, centred on
// pixel (0, 0) of the returned image (see image.NewKernel). When normalize
// is set the pixels sum to one.
type Psf interface {
	ComputeImage(p geom.Point, normalize bool) (*image.Image, error)
	Clone() Psf
	Dimensions() (width, height int)
}

// Equal compares two optional PSFs. Models implementing
// Equal(Psf) bool are compared by value, others by identity.
func Equal(a, b Psf) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if e, ok := a.(interface{ Equal(Psf) bool }); ok {
		return e.Equal(b)
	}
	return a == b
}

// Moments are the flux-weighted first and second moments of a kernel image,
// in pixels relative to the image's pixel coordinate system.
type Moments struct {
	X, Y          float64
	Ixx, Iyy, Ixy float64
}

// DeterminantRadius returns (Ixx·Iyy - Ixy²)^¼, the radius of the circle
// with the same determinant.
func (m Moments) DeterminantRadius() float64 {
	return math.Pow(m.Ixx*m.Iyy-m.Ixy*m.Ixy, 0.25)
}

// TraceRadius returns sqrt((Ixx + Iyy)/2).
func (m Moments) TraceRadius() float64 {
	return math.Sqrt(0.5 * (m.Ixx + m.Iyy))
}

// ComputeMoments measures the unweighted moments of img.
func ComputeMoments(img *image.Image) (Moments, error) {
	x0, y0 := img.XY0()
	w, h := img.Width(), img.Height()
	data := img.Data()

	var sum, sx, sy float64
	for j := range h {
		for i := range w {
			v := data[j*w+i]
			sum += v
			sx += v * float64(x0+i)
			sy += v * float64(y0+j)
		}
	}
	if sum <= 0 || math.IsNaN(sum) {
		return Moments{}, ErrZeroFlux
	}
	m := Moments{X: sx / sum, Y: sy / sum}

	for j := range h {
		dy := float64(y0+j) - m.Y
		for i := range w {
			dx := float64(x0+i) - m.X
			v := data[j*w+i]
			m.Ixx += v * dx * dx
			m.Iyy += v * dy * dy
			m.Ixy += v * dx * dy
		}
	}
	m.Ixx /= sum
	m.Iyy /= sum
	m.Ixy /= sum
	return m, nil
}

// Shape renders p's kernel at pos and returns its moments.
func Shape(p Psf, pos geom.Point) (Moments, error) {
	img, err := p.ComputeImage(pos, true)
	if err != nil {
		return Moments{}, err
	}
	m, err := ComputeMoments(img)
	if err != nil {
		return Moments{}, fmt.Errorf("psf: shape at %v: %w", pos, err)
	}
	return m, nil
}
