package field

import (
	"gopkg.in/yaml.v3"

	"github.com/measalg/coaddpsf/archive"
)

const moduleName = "github.com/measalg/coaddpsf/field"

func init() {
	archive.Register("ConstantBoundedField", readConstant)
	archive.Register("PolynomialBoundedField", readPolynomial)
}

type constantRecord struct {
	BBox  archive.BoxRecord `yaml:"bbox"`
	Value float64           `yaml:"value"`
}

type polynomialRecord struct {
	BBox   archive.BoxRecord `yaml:"bbox"`
	Order  int               `yaml:"order"`
	Coeffs []float64         `yaml:"coefficients,flow"`
}

// PersistenceName implements archive.Persistable.
func (f *Constant) PersistenceName() string { return "ConstantBoundedField" }

// ModuleName implements archive.Persistable.
func (f *Constant) ModuleName() string { return moduleName }

// WriteRecord implements archive.Persistable.
func (f *Constant) WriteRecord(*archive.OutputArchive) (any, error) {
	return constantRecord{BBox: archive.NewBoxRecord(f.bbox), Value: f.value}, nil
}

func readConstant(_ *archive.InputArchive, node *yaml.Node) (archive.Persistable, error) {
	var r constantRecord
	if err := node.Decode(&r); err != nil {
		return nil, err
	}
	return NewConstant(r.BBox.Box(), r.Value), nil
}

// PersistenceName implements archive.Persistable.
func (f *Polynomial) PersistenceName() string { return "PolynomialBoundedField" }

// ModuleName implements archive.Persistable.
func (f *Polynomial) ModuleName() string { return moduleName }

// WriteRecord implements archive.Persistable.
func (f *Polynomial) WriteRecord(*archive.OutputArchive) (any, error) {
	return polynomialRecord{BBox: archive.NewBoxRecord(f.bbox), Order: f.order, Coeffs: f.coeffs}, nil
}

func readPolynomial(_ *archive.InputArchive, node *yaml.Node) (archive.Persistable, error) {
	var r polynomialRecord
	if err := node.Decode(&r); err != nil {
		return nil, err
	}
	return NewPolynomial(r.BBox.Box(), r.Order, r.Coeffs)
}
