package wcs

import (
	"gopkg.in/yaml.v3"

	"github.com/measalg/coaddpsf/archive"
	"github.com/measalg/coaddpsf/geom"
)

const moduleName = "github.com/measalg/coaddpsf/wcs"

func init() {
	archive.Register("TanWcs", readTan)
	archive.Register("LinearWcs", readLinear)
}

// record is shared by both projections; RA/Dec are in radians.
type record struct {
	RA    float64    `yaml:"ra"`
	Dec   float64    `yaml:"dec"`
	CRPix [2]float64 `yaml:"crpix"`
	CD    [4]float64 `yaml:"cd"`
}

func newRecord(c SkyCoord, crpix geom.Point, cd11, cd12, cd21, cd22 float64) record {
	return record{
		RA:    c.RA,
		Dec:   c.Dec,
		CRPix: [2]float64{crpix.X, crpix.Y},
		CD:    [4]float64{cd11, cd12, cd21, cd22},
	}
}

func (r record) parts() (SkyCoord, geom.Point) {
	return SkyCoord{RA: r.RA, Dec: r.Dec}, geom.Pt(r.CRPix[0], r.CRPix[1])
}

// PersistenceName implements archive.Persistable.
func (w *Tan) PersistenceName() string { return "TanWcs" }

// ModuleName implements archive.Persistable.
func (w *Tan) ModuleName() string { return moduleName }

// WriteRecord implements archive.Persistable.
func (w *Tan) WriteRecord(*archive.OutputArchive) (any, error) {
	cd11, cd12, cd21, cd22 := CDElements(w.cd)
	return newRecord(w.crval, w.crpix, cd11, cd12, cd21, cd22), nil
}

func readTan(_ *archive.InputArchive, node *yaml.Node) (archive.Persistable, error) {
	var r record
	if err := node.Decode(&r); err != nil {
		return nil, err
	}
	crval, crpix := r.parts()
	return NewTan(crval, crpix, CD(r.CD[0], r.CD[1], r.CD[2], r.CD[3]))
}

// PersistenceName implements archive.Persistable.
func (w *Linear) PersistenceName() string { return "LinearWcs" }

// ModuleName implements archive.Persistable.
func (w *Linear) ModuleName() string { return moduleName }

// WriteRecord implements archive.Persistable.
func (w *Linear) WriteRecord(*archive.OutputArchive) (any, error) {
	cd11, cd12, cd21, cd22 := CDElements(w.cd)
	return newRecord(w.origin, w.crpix, cd11, cd12, cd21, cd22), nil
}

func readLinear(_ *archive.InputArchive, node *yaml.Node) (archive.Persistable, error) {
	var r record
	if err := node.Decode(&r); err != nil {
		return nil, err
	}
	origin, crpix := r.parts()
	return NewLinear(origin, crpix, CD(r.CD[0], r.CD[1], r.CD[2], r.CD[3]))
}
