package coadd

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/measalg/coaddpsf/archive"
	"github.com/measalg/coaddpsf/field"
	"github.com/measalg/coaddpsf/image"
	"github.com/measalg/coaddpsf/psf"
	"github.com/measalg/coaddpsf/wcs"
)

const moduleName = "github.com/measalg/coaddpsf/coadd"

// ErrNotPersistable is returned when an aggregate refers to a field, WCS
// or PSF that does not implement archive.Persistable.
var ErrNotPersistable = errors.New("coadd: member is not persistable")

func init() {
	archive.Register("CoaddBoundedField", readBoundedField)
	archive.Register("CoaddPsfKernel", readPsfKernel)
	archive.Register("CoaddPsf", readPsf)
}

// put stores an optional member; nil members have id 0.
func put(out *archive.OutputArchive, v any) (int, error) {
	if v == nil {
		return 0, nil
	}
	p, ok := v.(archive.Persistable)
	if !ok {
		return 0, fmt.Errorf("%T: %w", v, ErrNotPersistable)
	}
	return out.Put(p)
}

type elementRecord struct {
	Field  int                   `yaml:"field"`
	Wcs    int                   `yaml:"wcs"`
	Region *archive.RegionRecord `yaml:"validRegion,omitempty"`
	Weight float64               `yaml:"weight"`
}

type boundedFieldRecord struct {
	BBox           archive.BoxRecord `yaml:"bbox"`
	CoaddWcs       int               `yaml:"coaddWcs"`
	Default        float64           `yaml:"default"`
	ThrowOnMissing bool              `yaml:"throwOnMissing"`
	Elements       []elementRecord   `yaml:"elements"`
}

// PersistenceName implements archive.Persistable.
func (f *BoundedField) PersistenceName() string { return "CoaddBoundedField" }

// ModuleName implements archive.Persistable.
func (f *BoundedField) ModuleName() string { return moduleName }

// WriteRecord implements archive.Persistable. Element fields and WCSs are
// stored as shared objects.
func (f *BoundedField) WriteRecord(out *archive.OutputArchive) (any, error) {
	rec := boundedFieldRecord{
		BBox:           archive.NewBoxRecord(f.bbox),
		Default:        f.def,
		ThrowOnMissing: f.throwOnMissing,
		Elements:       make([]elementRecord, len(f.elements)),
	}
	var err error
	if rec.CoaddWcs, err = put(out, f.coaddWcs); err != nil {
		return nil, err
	}
	for i, e := range f.elements {
		er := &rec.Elements[i]
		er.Weight = e.Weight
		if er.Field, err = put(out, e.Field); err != nil {
			return nil, err
		}
		if er.Wcs, err = put(out, e.Wcs); err != nil {
			return nil, err
		}
		if er.Region, err = archive.EncodeRegion(e.ValidRegion); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func readBoundedField(in *archive.InputArchive, node *yaml.Node) (archive.Persistable, error) {
	var rec boundedFieldRecord
	if err := node.Decode(&rec); err != nil {
		return nil, err
	}
	coaddWcs, err := archive.GetAs[wcs.Wcs](in, rec.CoaddWcs)
	if err != nil {
		return nil, err
	}
	elements := make([]Element, len(rec.Elements))
	for i, er := range rec.Elements {
		e := &elements[i]
		e.Weight = er.Weight
		if e.Field, err = archive.GetAs[field.BoundedField](in, er.Field); err != nil {
			return nil, err
		}
		if e.Wcs, err = archive.GetAs[wcs.Wcs](in, er.Wcs); err != nil {
			return nil, err
		}
		if e.ValidRegion, err = archive.DecodeRegion(er.Region); err != nil {
			return nil, err
		}
	}
	bf, err := New(rec.BBox.Box(), coaddWcs, elements)
	if err != nil {
		return nil, err
	}
	bf.def = rec.Default
	bf.throwOnMissing = rec.ThrowOnMissing
	return bf, nil
}

type componentRecord struct {
	Psf    int               `yaml:"psf"`
	Wcs    int               `yaml:"wcs"`
	BBox   archive.BoxRecord `yaml:"bbox"`
	Weight float64           `yaml:"weight"`
}

type psfKernelRecord struct {
	Width         int               `yaml:"width"`
	Height        int               `yaml:"height"`
	CoaddWcs      int               `yaml:"coaddWcs"`
	Interpolation string            `yaml:"interpolation"`
	CacheSize     int               `yaml:"cacheSize,omitempty"`
	Frozen        bool              `yaml:"frozen"`
	Components    []componentRecord `yaml:"components"`
}

// PersistenceName implements archive.Persistable.
func (k *PsfKernel) PersistenceName() string { return "CoaddPsfKernel" }

// ModuleName implements archive.Persistable.
func (k *PsfKernel) ModuleName() string { return moduleName }

// WriteRecord implements archive.Persistable.
func (k *PsfKernel) WriteRecord(out *archive.OutputArchive) (any, error) {
	rec := psfKernelRecord{
		Width:         k.width,
		Height:        k.height,
		Interpolation: k.interp.String(),
		CacheSize:     k.cacheSize,
		Frozen:        k.frozen,
		Components:    make([]componentRecord, len(k.components)),
	}
	var err error
	if rec.CoaddWcs, err = put(out, k.coaddWcs); err != nil {
		return nil, err
	}
	for i, c := range k.components {
		cr := &rec.Components[i]
		cr.BBox = archive.NewBoxRecord(c.BBox)
		cr.Weight = c.Weight
		if cr.Psf, err = put(out, c.Psf); err != nil {
			return nil, err
		}
		if cr.Wcs, err = put(out, c.Wcs); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func readPsfKernel(in *archive.InputArchive, node *yaml.Node) (archive.Persistable, error) {
	var rec psfKernelRecord
	if err := node.Decode(&rec); err != nil {
		return nil, err
	}
	mode, ok := image.ParseInterpolation(rec.Interpolation)
	if !ok {
		return nil, fmt.Errorf("coadd: unknown interpolation %q", rec.Interpolation)
	}
	coaddWcs, err := archive.GetAs[wcs.Wcs](in, rec.CoaddWcs)
	if err != nil {
		return nil, err
	}
	k, err := NewPsfKernel(rec.Width, rec.Height, coaddWcs, WithInterpolation(mode), WithKernelCache(rec.CacheSize))
	if err != nil {
		return nil, err
	}
	for _, cr := range rec.Components {
		p, err := archive.GetAs[psf.Psf](in, cr.Psf)
		if err != nil {
			return nil, err
		}
		w, err := archive.GetAs[wcs.Wcs](in, cr.Wcs)
		if err != nil {
			return nil, err
		}
		if err := k.AddPsfComponent(p, w, cr.BBox.Box(), cr.Weight); err != nil {
			return nil, err
		}
	}
	if rec.Frozen {
		k.Freeze()
	}
	return k, nil
}

type psfRecord struct {
	Kernel int `yaml:"kernel"`
}

// PersistenceName implements archive.Persistable.
func (p *Psf) PersistenceName() string { return "CoaddPsf" }

// ModuleName implements archive.Persistable.
func (p *Psf) ModuleName() string { return moduleName }

// WriteRecord implements archive.Persistable.
func (p *Psf) WriteRecord(out *archive.OutputArchive) (any, error) {
	id, err := out.Put(p.kernel)
	if err != nil {
		return nil, err
	}
	return psfRecord{Kernel: id}, nil
}

func readPsf(in *archive.InputArchive, node *yaml.Node) (archive.Persistable, error) {
	var rec psfRecord
	if err := node.Decode(&rec); err != nil {
		return nil, err
	}
	k, err := archive.GetAs[*PsfKernel](in, rec.Kernel)
	if err != nil {
		return nil, err
	}
	return NewPsf(k)
}
