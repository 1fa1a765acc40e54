package shapelet

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/measalg/coaddpsf"
)

// Config holds the fit parameters of an Interpolation.
type Config struct {
	// ShapeletOrder is the order of the PSF shapelet expansion.
	ShapeletOrder int `yaml:"shapeletOrder"`
	// InterpOrder is the order of the spatial polynomial.
	InterpOrder int `yaml:"interpOrder"`
	// InterpNSigmaClip is the outlier threshold in units of the RMS
	// residual.
	InterpNSigmaClip float64 `yaml:"interpNSigmaClip"`
	// PcaThresh drops principal components whose singular value is at or
	// below PcaThresh times the largest.
	PcaThresh float64 `yaml:"pcaThresh"`
	// NStarsPerCell caps the candidates taken from each spatial cell.
	NStarsPerCell int `yaml:"nStarsPerCell"`
	// Sigma is the shapelet scale in pixels. Zero means the median scale
	// of the fitted candidates.
	Sigma float64 `yaml:"sigma,omitempty"`
}

// DefaultConfig returns a configuration suitable for typical ground-based
// seeing.
func DefaultConfig() Config {
	return Config{
		ShapeletOrder:    4,
		InterpOrder:      2,
		InterpNSigmaClip: 3,
		PcaThresh:        1e-5,
		NStarsPerCell:    5,
	}
}

// Validate reports the first invalid parameter.
func (c Config) Validate() error {
	switch {
	case c.ShapeletOrder < 0:
		return fmt.Errorf("shapelet: shapeletOrder %d: %w", c.ShapeletOrder, coaddpsf.ErrInvalidConfiguration)
	case c.InterpOrder < 0:
		return fmt.Errorf("shapelet: interpOrder %d: %w", c.InterpOrder, coaddpsf.ErrInvalidConfiguration)
	case !(c.InterpNSigmaClip > 0) || math.IsInf(c.InterpNSigmaClip, 0):
		return fmt.Errorf("shapelet: interpNSigmaClip %g: %w", c.InterpNSigmaClip, coaddpsf.ErrInvalidConfiguration)
	case !(c.PcaThresh >= 0 && c.PcaThresh < 1):
		return fmt.Errorf("shapelet: pcaThresh %g: %w", c.PcaThresh, coaddpsf.ErrInvalidConfiguration)
	case c.NStarsPerCell <= 0:
		return fmt.Errorf("shapelet: nStarsPerCell %d: %w", c.NStarsPerCell, coaddpsf.ErrInvalidConfiguration)
	case c.Sigma < 0 || math.IsNaN(c.Sigma) || math.IsInf(c.Sigma, 0):
		return fmt.Errorf("shapelet: sigma %g: %w", c.Sigma, coaddpsf.ErrInvalidConfiguration)
	}
	return nil
}

// ParseConfig reads a YAML configuration. Keys that are absent keep their
// DefaultConfig values; unknown keys are an error.
func ParseConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("shapelet: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("shapelet: load config: %w", err)
	}
	return ParseConfig(bytes.NewReader(data))
}
