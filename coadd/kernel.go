package coadd

import (
	"fmt"
	"math"
	"slices"

	"github.com/measalg/coaddpsf"
	"github.com/measalg/coaddpsf/cache"
	"github.com/measalg/coaddpsf/geom"
	"github.com/measalg/coaddpsf/image"
	"github.com/measalg/coaddpsf/psf"
	"github.com/measalg/coaddpsf/wcs"
)

// Component is one exposure's PSF contribution to a PsfKernel. BBox is
// the exposure's valid pixel box; Psf and Wcs are shared and read-only.
// A nil Wcs means the exposure uses the coadd pixel frame.
type Component struct {
	Psf    psf.Psf
	Wcs    wcs.Wcs
	BBox   geom.Box
	Weight float64
}

// Equal reports member-wise equality.
func (c Component) Equal(o Component) bool {
	return c.BBox == o.BBox && c.Weight == o.Weight &&
		psf.Equal(c.Psf, o.Psf) && wcs.Equal(c.Wcs, o.Wcs)
}

// PsfKernel renders the weighted mean of per-exposure PSF images on the
// coadd pixel grid.
//
// Components are added with AddPsfComponent until Freeze is called; after
// that the kernel is immutable and ComputeImage may be called
// concurrently. Adding components is not safe for concurrent use.
type PsfKernel struct {
	width, height int
	coaddWcs      wcs.Wcs
	components    []Component
	frozen        bool

	interp    image.InterpolationMode
	cacheSize int
	cache     *cache.Sharded[cache.PointKey, renderedKernel]
}

type renderedKernel struct {
	data   []float64
	weight float64
}

// NewPsfKernel creates an empty, unfrozen kernel producing width x height
// images.
func NewPsfKernel(width, height int, coaddWcs wcs.Wcs, opts ...Option) (*PsfKernel, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("coadd: kernel dimensions %dx%d: %w", width, height, coaddpsf.ErrInvalidConfiguration)
	}
	o := applyOptions(opts)
	return &PsfKernel{
		width:     width,
		height:    height,
		coaddWcs:  coaddWcs,
		interp:    o.interp,
		cacheSize: o.cacheSize,
	}, nil
}

// NewFrozenPsfKernel creates a kernel from a complete component list and
// freezes it.
func NewFrozenPsfKernel(width, height int, coaddWcs wcs.Wcs, components []Component, opts ...Option) (*PsfKernel, error) {
	k, err := NewPsfKernel(width, height, coaddWcs, opts...)
	if err != nil {
		return nil, err
	}
	for _, c := range components {
		if err := k.AddPsfComponent(c.Psf, c.Wcs, c.BBox, c.Weight); err != nil {
			return nil, err
		}
	}
	k.Freeze()
	return k, nil
}

// AddPsfComponent appends a component. It fails with ErrFrozen after
// Freeze and with coaddpsf.ErrInvalidConfiguration for a nil PSF, an empty
// box or a non-positive weight.
func (k *PsfKernel) AddPsfComponent(p psf.Psf, w wcs.Wcs, bbox geom.Box, weight float64) error {
	if k.frozen {
		return ErrFrozen
	}
	if p == nil {
		return fmt.Errorf("coadd: component without PSF: %w", coaddpsf.ErrInvalidConfiguration)
	}
	if bbox.IsEmpty() {
		return fmt.Errorf("coadd: component with empty box: %w", coaddpsf.ErrInvalidConfiguration)
	}
	if err := checkWeight(weight); err != nil {
		return err
	}
	k.components = append(k.components, Component{Psf: p, Wcs: w, BBox: bbox, Weight: weight})
	return nil
}

// ComponentCount returns the number of components.
func (k *PsfKernel) ComponentCount() int { return len(k.components) }

// Component returns the i-th component.
func (k *PsfKernel) Component(i int) Component { return k.components[i] }

// Components returns a copy of the component list.
func (k *PsfKernel) Components() []Component { return slices.Clone(k.components) }

// Freeze makes the kernel immutable. It is idempotent.
func (k *PsfKernel) Freeze() {
	if k.frozen {
		return
	}
	k.frozen = true
	if k.cacheSize > 0 {
		k.cache = cache.NewPointCache[renderedKernel](k.cacheSize)
	}
}

// IsFrozen reports whether Freeze has been called.
func (k *PsfKernel) IsFrozen() bool { return k.frozen }

// Dimensions returns the size of the rendered images.
func (k *PsfKernel) Dimensions() (int, int) { return k.width, k.height }

// CoaddWcs returns the WCS of the coadd frame.
func (k *PsfKernel) CoaddWcs() wcs.Wcs { return k.coaddWcs }

// Interpolation returns the resampling mode.
func (k *PsfKernel) Interpolation() image.InterpolationMode { return k.interp }

// Clone returns a copy sharing the component list until either copy
// appends to it. The copy has its own render cache.
func (k *PsfKernel) Clone() *PsfKernel {
	c := *k
	n := len(k.components)
	c.components = k.components[:n:n]
	c.cache = nil
	if c.frozen && c.cacheSize > 0 {
		c.cache = cache.NewPointCache[renderedKernel](c.cacheSize)
	}
	return &c
}

// Equal reports whether both kernels have the same dimensions, coadd WCS,
// resampling mode and ordered components.
func (k *PsfKernel) Equal(o *PsfKernel) bool {
	if o == nil {
		return false
	}
	if k == o {
		return true
	}
	return k.width == o.width && k.height == o.height && k.interp == o.interp &&
		wcs.Equal(k.coaddWcs, o.coaddWcs) &&
		slices.EqualFunc(k.components, o.components, Component.Equal)
}

// ComputeImage renders the kernel for a source at coadd pixel (x, y) into
// out, which must have the kernel's dimensions; out's origin is set so
// that pixel (0, 0) is the kernel centre. It returns the total weight of
// the contributing components.
//
// Each component whose box contains the transformed point renders its
// normalized image there, which is resampled onto the coadd grid through
// the local linear approximation of the coadd-to-exposure mapping. Without
// doNormalize the output is the weighted sum; with it, the weighted mean
// rescaled to unit sum. If no component contributes, ComputeImage fails
// with coaddpsf.ErrNoContribution and out is left unchanged; if the
// weighted sum to normalize is not positive it fails with psf.ErrZeroFlux.
func (k *PsfKernel) ComputeImage(out *image.Image, doNormalize bool, x, y float64) (float64, error) {
	if out.Width() != k.width || out.Height() != k.height {
		return 0, fmt.Errorf("coadd: output %dx%d for %dx%d kernel: %w",
			out.Width(), out.Height(), k.width, k.height, image.ErrInvalidDimensions)
	}

	var r renderedKernel
	var err error
	if k.cache != nil {
		key := cache.PointKey{X: x, Y: y, Normalize: doNormalize}
		r, err = k.cache.GetOrCreate(key, func() (renderedKernel, error) {
			return k.render(geom.Pt(x, y), doNormalize)
		})
	} else {
		r, err = k.render(geom.Pt(x, y), doNormalize)
	}
	if err != nil {
		return 0, err
	}

	out.SetXY0(-(k.width / 2), -(k.height / 2))
	copy(out.Data(), r.data)
	return r.weight, nil
}

func (k *PsfKernel) render(p geom.Point, doNormalize bool) (renderedKernel, error) {
	acc, err := image.NewKernel(k.width, k.height)
	if err != nil {
		return renderedKernel{}, err
	}
	tmp := acc.Clone()

	var wSum float64
	for i, c := range k.components {
		q, err := locate(p, k.coaddWcs, c.Wcs)
		if err != nil {
			logSkip("component", i, p, err)
			continue
		}
		if !c.BBox.Contains(q) {
			continue
		}
		src, err := c.Psf.ComputeImage(q, true)
		if err != nil {
			logSkip("component", i, p, err)
			continue
		}
		jac, err := wcs.LocalLinear(p, k.coaddWcs, c.Wcs)
		if err != nil {
			logSkip("component", i, p, err)
			continue
		}
		resample(tmp, src, jac, k.interp)
		if err := acc.AddScaled(tmp, c.Weight); err != nil {
			return renderedKernel{}, err
		}
		wSum += c.Weight
	}

	if wSum == 0 {
		return renderedKernel{}, fmt.Errorf("coadd: no valid PSF component at %v: %w", p, coaddpsf.ErrNoContribution)
	}
	if doNormalize {
		if s := acc.Sum(); !(s > 0) || math.IsInf(s, 0) {
			return renderedKernel{}, fmt.Errorf("coadd: kernel at %v sums to %g: %w", p, s, psf.ErrZeroFlux)
		}
		acc.Scale(1 / wSum)
		acc.Normalize()
	}
	return renderedKernel{data: acc.Data(), weight: wSum}, nil
}

func (k *PsfKernel) String() string {
	return fmt.Sprintf("CoaddPsfKernel %dx%d with %d components", k.width, k.height, len(k.components))
}
