package coadd

import (
	"fmt"
	"slices"

	"github.com/measalg/coaddpsf"
	"github.com/measalg/coaddpsf/field"
	"github.com/measalg/coaddpsf/geom"
	"github.com/measalg/coaddpsf/image"
	"github.com/measalg/coaddpsf/internal/parallel"
	"github.com/measalg/coaddpsf/wcs"
)

// BoundedField is the weighted mean of per-exposure fields, defined over
// the pixels of a coadd. It is immutable and safe for concurrent use.
//
// A BoundedField is itself a field.BoundedField, so coadds can be nested.
type BoundedField struct {
	bbox           geom.Box
	coaddWcs       wcs.Wcs
	elements       []Element
	def            float64
	throwOnMissing bool
	workers        int
}

var _ field.BoundedField = (*BoundedField)(nil)

// New creates a coadd field over bbox. Evaluating where no element
// contributes fails with coaddpsf.ErrNoContribution unless WithDefault is
// given. The elements are copied.
func New(bbox geom.Box, coaddWcs wcs.Wcs, elements []Element, opts ...Option) (*BoundedField, error) {
	o := applyOptions(opts)
	for i, e := range elements {
		if err := e.validate(); err != nil {
			return nil, fmt.Errorf("coadd: element %d: %w", i, err)
		}
	}
	return &BoundedField{
		bbox:           bbox,
		coaddWcs:       coaddWcs,
		elements:       slices.Clone(elements),
		def:            o.def,
		throwOnMissing: !o.hasDefault,
		workers:        o.workers,
	}, nil
}

// NewWithDefault creates a coadd field that evaluates to def wherever no
// element contributes.
func NewWithDefault(bbox geom.Box, coaddWcs wcs.Wcs, elements []Element, def float64, opts ...Option) (*BoundedField, error) {
	return New(bbox, coaddWcs, elements, append(opts, WithDefault(def))...)
}

// BBox implements field.BoundedField.
func (f *BoundedField) BBox() geom.Box { return f.bbox }

// CoaddWcs returns the WCS of the coadd frame.
func (f *BoundedField) CoaddWcs() wcs.Wcs { return f.coaddWcs }

// Elements returns a copy of the element list.
func (f *BoundedField) Elements() []Element { return slices.Clone(f.elements) }

// Default returns the fallback value and whether it is used.
func (f *BoundedField) Default() (float64, bool) { return f.def, !f.throwOnMissing }

// Evaluate implements field.BoundedField. It returns the weighted mean of
// the fields of all elements covering p.
func (f *BoundedField) Evaluate(p geom.Point) (float64, error) {
	var sum, wSum float64
	for i, e := range f.elements {
		q, err := locate(p, f.coaddWcs, e.Wcs)
		if err != nil {
			logSkip("element", i, p, err)
			continue
		}
		if !covers(e.Field.BBox(), e.ValidRegion, q) {
			continue
		}
		v, err := e.Field.Evaluate(q)
		if err != nil {
			logSkip("element", i, p, err)
			continue
		}
		sum += e.Weight * v
		wSum += e.Weight
	}
	if wSum > 0 {
		return sum / wSum, nil
	}
	if f.throwOnMissing {
		return 0, fmt.Errorf("coadd: no element at %v: %w", p, coaddpsf.ErrNoContribution)
	}
	return f.def, nil
}

// Scale implements field.BoundedField. Each element field and the default
// are multiplied by s; weights and regions are kept.
func (f *BoundedField) Scale(s float64) field.BoundedField {
	elements := make([]Element, len(f.elements))
	for i, e := range f.elements {
		e.Field = e.Field.Scale(s)
		elements[i] = e
	}
	c := *f
	c.elements = elements
	c.def = f.def * s
	return &c
}

// Equal implements field.BoundedField. Fields are equal when bounding
// box, coadd WCS, missing-value policy and the ordered elements match.
func (f *BoundedField) Equal(other field.BoundedField) bool {
	o, ok := other.(*BoundedField)
	if !ok || o == nil {
		return false
	}
	if f == o {
		return true
	}
	if f.bbox != o.bbox || f.throwOnMissing != o.throwOnMissing || f.def != o.def {
		return false
	}
	if !wcs.Equal(f.coaddWcs, o.coaddWcs) {
		return false
	}
	return slices.EqualFunc(f.elements, o.elements, Element.Equal)
}

func (f *BoundedField) String() string {
	return fmt.Sprintf("CoaddBoundedField with %d elements, default %g", len(f.elements), f.def)
}

// FillMode selects whether FillImage replaces or adds to pixel values.
type FillMode int

const (
	// FillOverwrite replaces each pixel with the field value.
	FillOverwrite FillMode = iota
	// FillAdd adds the field value to each pixel.
	FillAdd
)

// FillImage evaluates the field at every pixel centre of img, whose pixel
// coordinates are coadd pixels. Rows are evaluated concurrently. When a
// pixel has no contribution and no default is set, the first such error
// (by row) is returned; img may then be partially filled.
func (f *BoundedField) FillImage(img *image.Image, mode FillMode) error {
	pool := parallel.NewWorkerPool(f.workers)
	defer pool.Close()

	x0, y0 := img.XY0()
	w := img.Width()
	data := img.Data()
	return pool.Map(img.Height(), func(j int) error {
		row := data[j*w : (j+1)*w]
		y := float64(y0 + j)
		for i := range row {
			v, err := f.Evaluate(geom.Pt(float64(x0+i), y))
			if err != nil {
				return err
			}
			if mode == FillAdd {
				row[i] += v
			} else {
				row[i] = v
			}
		}
		return nil
	})
}
