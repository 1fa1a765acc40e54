package shapelet

import (
	"fmt"

	"github.com/measalg/coaddpsf"
	"github.com/measalg/coaddpsf/geom"
	"github.com/measalg/coaddpsf/image"
	"github.com/measalg/coaddpsf/psf"
)

// Psf renders the shapelet interpolated at each position. It shares its
// Interpolation, which must stay fitted while the Psf is in use.
type Psf struct {
	interp        *Interpolation
	width, height int
}

// NewPsf creates a width x height kernel PSF backed by interp.
func NewPsf(interp *Interpolation, width, height int) (*Psf, error) {
	if interp == nil {
		return nil, fmt.Errorf("shapelet: nil interpolation: %w", coaddpsf.ErrInvalidConfiguration)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("shapelet: kernel %dx%d: %w", width, height, image.ErrInvalidDimensions)
	}
	return &Psf{interp: interp, width: width, height: height}, nil
}

// Interpolation returns the backing model.
func (p *Psf) Interpolation() *Interpolation { return p.interp }

// Dimensions implements psf.Psf.
func (p *Psf) Dimensions() (int, int) { return p.width, p.height }

// Clone implements psf.Psf. The clone shares the fitted model.
func (p *Psf) Clone() psf.Psf {
	c := *p
	return &c
}

// ComputeImage implements psf.Psf.
func (p *Psf) ComputeImage(pos geom.Point, normalize bool) (*image.Image, error) {
	if !geom.IsFinite(pos) {
		return nil, fmt.Errorf("shapelet: position %v: %w", pos, coaddpsf.ErrTransformFailure)
	}
	s, err := p.interp.Interpolate(pos)
	if err != nil {
		return nil, err
	}
	img, err := s.Image(p.width, p.height)
	if err != nil {
		return nil, err
	}
	if normalize {
		if sum := img.Sum(); !(sum > 0) {
			return nil, fmt.Errorf("shapelet: kernel at %v has flux %g: %w", pos, sum, psf.ErrZeroFlux)
		}
		img.Normalize()
	}
	return img, nil
}

// Equal reports whether other renders from the same model at the same
// size.
func (p *Psf) Equal(other psf.Psf) bool {
	o, ok := other.(*Psf)
	return ok && o != nil && p.interp == o.interp && p.width == o.width && p.height == o.height
}
