package coadd

import (
	"github.com/measalg/coaddpsf/geom"
	"github.com/measalg/coaddpsf/psf"
	"github.com/measalg/coaddpsf/wcs"
)

// Builder accumulates PSF components and yields a frozen PsfKernel. The
// first error is kept and returned by Build.
//
//	k, err := coadd.NewBuilder(25, 25, coaddWcs).
//		Add(psf1, wcs1, box1, 1).
//		Add(psf2, wcs2, box2, 0.5).
//		Build()
type Builder struct {
	kernel *PsfKernel
	err    error
}

// NewBuilder starts a kernel of the given image size.
func NewBuilder(width, height int, coaddWcs wcs.Wcs, opts ...Option) *Builder {
	k, err := NewPsfKernel(width, height, coaddWcs, opts...)
	return &Builder{kernel: k, err: err}
}

// Add appends a component unless an earlier call failed.
func (b *Builder) Add(p psf.Psf, w wcs.Wcs, bbox geom.Box, weight float64) *Builder {
	if b.err == nil {
		b.err = b.kernel.AddPsfComponent(p, w, bbox, weight)
	}
	return b
}

// Build freezes and returns the kernel. The builder must not be used
// afterwards.
func (b *Builder) Build() (*PsfKernel, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.kernel.Freeze()
	return b.kernel, nil
}
