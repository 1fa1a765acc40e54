package psf

import (
	"fmt"
	"slices"

	"github.com/measalg/coaddpsf"
	"github.com/measalg/coaddpsf/geom"
	"github.com/measalg/coaddpsf/image"
)

// Fixed is a PSF given by a single kernel image, identical at every
// position. It wraps measured or externally rendered kernels.
type Fixed struct {
	kernel *image.Image
}

// NewFixed creates a fixed PSF from a copy of kernel. The kernel must have
// positive flux and be centred like image.NewKernel, with its origin at
// (-width/2, -height/2).
func NewFixed(kernel *image.Image) (*Fixed, error) {
	if kernel == nil {
		return nil, fmt.Errorf("psf: nil kernel: %w", coaddpsf.ErrInvalidConfiguration)
	}
	if x0, y0 := kernel.XY0(); x0 != -(kernel.Width()/2) || y0 != -(kernel.Height()/2) {
		return nil, fmt.Errorf("psf: kernel origin (%d, %d) is not centred: %w", x0, y0, coaddpsf.ErrInvalidConfiguration)
	}
	if kernel.Sum() <= 0 {
		return nil, fmt.Errorf("psf: kernel flux %g: %w", kernel.Sum(), coaddpsf.ErrInvalidConfiguration)
	}
	return &Fixed{kernel: kernel.Clone()}, nil
}

// Kernel returns a copy of the kernel image.
func (f *Fixed) Kernel() *image.Image { return f.kernel.Clone() }

// Dimensions implements Psf.
func (f *Fixed) Dimensions() (int, int) { return f.kernel.Width(), f.kernel.Height() }

// Clone implements Psf. The kernel is immutable, so clones share it.
func (f *Fixed) Clone() Psf { return &Fixed{kernel: f.kernel} }

// ComputeImage implements Psf.
func (f *Fixed) ComputeImage(p geom.Point, normalize bool) (*image.Image, error) {
	if !geom.IsFinite(p) {
		return nil, fmt.Errorf("psf: position %v: %w", p, coaddpsf.ErrTransformFailure)
	}
	img := f.kernel.Clone()
	if normalize {
		img.Normalize()
	}
	return img, nil
}

// Equal reports whether other is a Fixed PSF with an identical kernel.
func (f *Fixed) Equal(other Psf) bool {
	o, ok := other.(*Fixed)
	if !ok || o == nil {
		return false
	}
	if f.kernel == o.kernel {
		return true
	}
	return f.kernel.BBox() == o.kernel.BBox() && slices.Equal(f.kernel.Data(), o.kernel.Data())
}
