package coadd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/measalg/coaddpsf"
	"github.com/measalg/coaddpsf/field"
	"github.com/measalg/coaddpsf/geom"
	"github.com/measalg/coaddpsf/wcs"
)

// ErrFrozen is returned when a component is added to a frozen PsfKernel.
var ErrFrozen = errors.New("coadd: kernel is frozen")

// Element is one exposure's contribution to a BoundedField.
//
// Field and Wcs are shared with other aggregates and never modified. A nil
// Wcs means the exposure uses the coadd pixel frame. A nil ValidRegion
// means the exposure is valid wherever its field's bounding box is.
type Element struct {
	Field       field.BoundedField
	Wcs         wcs.Wcs
	ValidRegion geom.Region
	Weight      float64
}

// NewElement creates a validated element.
func NewElement(f field.BoundedField, w wcs.Wcs, valid geom.Region, weight float64) (Element, error) {
	e := Element{Field: f, Wcs: w, ValidRegion: valid, Weight: weight}
	return e, e.validate()
}

func (e Element) validate() error {
	if e.Field == nil {
		return fmt.Errorf("coadd: element without field: %w", coaddpsf.ErrInvalidConfiguration)
	}
	return checkWeight(e.Weight)
}

func checkWeight(w float64) error {
	if !(w > 0) || math.IsInf(w, 0) {
		return fmt.Errorf("coadd: weight %g: %w", w, coaddpsf.ErrInvalidConfiguration)
	}
	return nil
}

// Equal reports whether all four members compare equal.
func (e Element) Equal(o Element) bool {
	return e.Weight == o.Weight &&
		field.Equal(e.Field, o.Field) &&
		wcs.Equal(e.Wcs, o.Wcs) &&
		geom.RegionEqual(e.ValidRegion, o.ValidRegion)
}

// locate maps p from coadd pixels into the pixels of an exposure with the
// given WCS.
func locate(p geom.Point, coaddWcs, exposureWcs wcs.Wcs) (geom.Point, error) {
	q, err := wcs.Transform(p, coaddWcs, exposureWcs)
	if err != nil {
		return geom.Point{}, err
	}
	if !geom.IsFinite(q) {
		return geom.Point{}, fmt.Errorf("coadd: non-finite position %v: %w", q, coaddpsf.ErrTransformFailure)
	}
	return q, nil
}

// covers reports whether q, in exposure pixels, lies in the bounding box
// and the optional valid region.
func covers(bbox geom.Box, valid geom.Region, q geom.Point) bool {
	if !bbox.Contains(q) {
		return false
	}
	return valid == nil || valid.Contains(q)
}

func logSkip(what string, index int, p geom.Point, err error) {
	log := coaddpsf.Logger()
	if !log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	log.Debug(what+" skipped", "index", index, "x", p.X, "y", p.Y, "err", err)
}
