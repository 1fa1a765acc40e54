package coadd

import (
	"fmt"

	"github.com/measalg/coaddpsf"
	"github.com/measalg/coaddpsf/geom"
	"github.com/measalg/coaddpsf/image"
	"github.com/measalg/coaddpsf/psf"
)

// Psf presents a PsfKernel as a psf.Psf, so a coadd PSF can be used
// wherever a single-exposure model is expected, including as a component
// of another coadd.
type Psf struct {
	kernel *PsfKernel
}

var _ psf.Psf = (*Psf)(nil)

// NewPsf wraps k. A frozen kernel is wrapped as is; an unfrozen one is
// cloned and the clone frozen, so k itself stays open for AddPsfComponent.
func NewPsf(k *PsfKernel) (*Psf, error) {
	if k == nil {
		return nil, fmt.Errorf("coadd: nil kernel: %w", coaddpsf.ErrInvalidConfiguration)
	}
	if !k.IsFrozen() {
		k = k.Clone()
		k.Freeze()
	}
	return &Psf{kernel: k}, nil
}

// Kernel returns the wrapped kernel.
func (p *Psf) Kernel() *PsfKernel { return p.kernel }

// Clone implements psf.Psf. The clone wraps a copy of the kernel that
// shares its components.
func (p *Psf) Clone() psf.Psf {
	return &Psf{kernel: p.kernel.Clone()}
}

// Dimensions implements psf.Psf.
func (p *Psf) Dimensions() (int, int) { return p.kernel.Dimensions() }

// ComputeImage implements psf.Psf.
func (p *Psf) ComputeImage(pos geom.Point, normalize bool) (*image.Image, error) {
	img, err := image.NewKernel(p.kernel.Dimensions())
	if err != nil {
		return nil, err
	}
	if _, err := p.kernel.ComputeImage(img, normalize, pos.X, pos.Y); err != nil {
		return nil, err
	}
	return img, nil
}

// ComputeShape returns the moments of the normalized kernel at pos.
func (p *Psf) ComputeShape(pos geom.Point) (psf.Moments, error) {
	return psf.Shape(p, pos)
}

// Equal implements value equality of the wrapped kernels.
func (p *Psf) Equal(other psf.Psf) bool {
	o, ok := other.(*Psf)
	return ok && o != nil && p.kernel.Equal(o.kernel)
}

func (p *Psf) String() string {
	return fmt.Sprintf("CoaddPsf(%v)", p.kernel)
}
