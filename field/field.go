// Package field defines scalar functions over a bounded pixel region
// (photometric zero-points, background maps) and two simple
// implementations.
package field

import (
	"errors"
	"fmt"

	"github.com/measalg/coaddpsf/geom"
)

// ErrOutOfBounds is returned when a field is evaluated outside its box.
var ErrOutOfBounds = errors.New("field: position outside bounding box")

// BoundedField is a scalar function of pixel position, defined on BBox.
//
// Implementations are immutable: Scale returns a new field.
type BoundedField interface {
	BBox() geom.Box
	Evaluate(p geom.Point) (float64, error)
	Scale(s float64) BoundedField
	Equal(other BoundedField) bool
}

// Equal compares two optional fields by value.
func Equal(a, b BoundedField) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

// Constant is a field with the same value everywhere in its box.
type Constant struct {
	bbox  geom.Box
	value float64
}

// NewConstant creates a constant field.
func NewConstant(bbox geom.Box, value float64) *Constant {
	return &Constant{bbox: bbox, value: value}
}

// BBox implements BoundedField.
func (f *Constant) BBox() geom.Box { return f.bbox }

// Value returns the constant.
func (f *Constant) Value() float64 { return f.value }

// Evaluate implements BoundedField. The value is defined everywhere; the
// box only describes where it is meaningful.
func (f *Constant) Evaluate(geom.Point) (float64, error) {
	return f.value, nil
}

// Scale implements BoundedField.
func (f *Constant) Scale(s float64) BoundedField {
	return &Constant{bbox: f.bbox, value: f.value * s}
}

// Equal implements BoundedField.
func (f *Constant) Equal(other BoundedField) bool {
	o, ok := other.(*Constant)
	return ok && o != nil && f.bbox == o.bbox && f.value == o.value
}

func (f *Constant) String() string {
	return fmt.Sprintf("Constant(%g) on %v", f.value, f.bbox)
}
