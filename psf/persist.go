package psf

import (
	"gopkg.in/yaml.v3"

	"github.com/measalg/coaddpsf/archive"
	"github.com/measalg/coaddpsf/image"
)

const moduleName = "github.com/measalg/coaddpsf/psf"

func init() {
	archive.Register("SingleGaussianPsf", readSingleGaussian)
	archive.Register("FixedPsf", readFixed)
}

type gaussianRecord struct {
	Width  int     `yaml:"width"`
	Height int     `yaml:"height"`
	Sigma  float64 `yaml:"sigma"`
}

type fixedRecord struct {
	Width  int       `yaml:"width"`
	Height int       `yaml:"height"`
	X0     int       `yaml:"x0"`
	Y0     int       `yaml:"y0"`
	Data   []float64 `yaml:"data,flow"`
}

// PersistenceName implements archive.Persistable.
func (g *SingleGaussian) PersistenceName() string { return "SingleGaussianPsf" }

// ModuleName implements archive.Persistable.
func (g *SingleGaussian) ModuleName() string { return moduleName }

// WriteRecord implements archive.Persistable.
func (g *SingleGaussian) WriteRecord(*archive.OutputArchive) (any, error) {
	return gaussianRecord{Width: g.width, Height: g.height, Sigma: g.sigma}, nil
}

func readSingleGaussian(_ *archive.InputArchive, node *yaml.Node) (archive.Persistable, error) {
	var r gaussianRecord
	if err := node.Decode(&r); err != nil {
		return nil, err
	}
	return NewSingleGaussian(r.Width, r.Height, r.Sigma)
}

// PersistenceName implements archive.Persistable.
func (f *Fixed) PersistenceName() string { return "FixedPsf" }

// ModuleName implements archive.Persistable.
func (f *Fixed) ModuleName() string { return moduleName }

// WriteRecord implements archive.Persistable.
func (f *Fixed) WriteRecord(*archive.OutputArchive) (any, error) {
	x0, y0 := f.kernel.XY0()
	return fixedRecord{
		Width:  f.kernel.Width(),
		Height: f.kernel.Height(),
		X0:     x0,
		Y0:     y0,
		Data:   f.kernel.Data(),
	}, nil
}

func readFixed(_ *archive.InputArchive, node *yaml.Node) (archive.Persistable, error) {
	var r fixedRecord
	if err := node.Decode(&r); err != nil {
		return nil, err
	}
	img, err := image.FromData(r.Data, r.Width, r.Height)
	if err != nil {
		return nil, err
	}
	img.SetXY0(r.X0, r.Y0)
	return NewFixed(img)
}
