// Package image provides the float64 pixel buffer used for PSF kernel
// images and whole-frame field evaluation.
//
// Every Image carries an origin (XY0): the pixel coordinate of its first
// column and row. Kernel images are centred so that pixel (0, 0) is the
// kernel centre.
package image

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/measalg/coaddpsf/geom"
)

// Common errors for image operations.
var (
	// ErrInvalidDimensions is returned when width or height is non-positive
	// or when two images that must agree in shape do not.
	ErrInvalidDimensions = errors.New("image: invalid dimensions")

	// ErrDataTooSmall is returned when provided data is smaller than required.
	ErrDataTooSmall = errors.New("image: data buffer too small")
)

// Image is a dense row-major float64 pixel buffer.
//
// Thread safety: concurrent reads are safe; writes need external
// synchronisation.
type Image struct {
	width  int
	height int
	x0, y0 int
	data   []float64
}

// New creates a zero image with origin (0, 0).
func New(width, height int) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	return &Image{width: width, height: height, data: make([]float64, width*height)}, nil
}

// NewKernel creates a zero image centred on pixel (0, 0), i.e. with
// origin (-width/2, -height/2).
func NewKernel(width, height int) (*Image, error) {
	img, err := New(width, height)
	if err != nil {
		return nil, err
	}
	img.x0, img.y0 = -(width / 2), -(height / 2)
	return img, nil
}

// NewFromBox creates a zero image covering the pixels of b.
func NewFromBox(b geom.Box) (*Image, error) {
	img, err := New(b.Width(), b.Height())
	if err != nil {
		return nil, err
	}
	img.x0, img.y0 = b.MinX, b.MinY
	return img, nil
}

// FromData wraps existing row-major data without copying.
func FromData(data []float64, width, height int) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	if len(data) < width*height {
		return nil, ErrDataTooSmall
	}
	return &Image{width: width, height: height, data: data[:width*height]}, nil
}

// Width returns the number of columns.
func (m *Image) Width() int { return m.width }

// Height returns the number of rows.
func (m *Image) Height() int { return m.height }

// XY0 returns the pixel coordinate of the first column and row.
func (m *Image) XY0() (int, int) { return m.x0, m.y0 }

// SetXY0 moves the origin without touching the pixels.
func (m *Image) SetXY0(x0, y0 int) { m.x0, m.y0 = x0, y0 }

// BBox returns the pixel box covered by the image.
func (m *Image) BBox() geom.Box {
	return geom.NewBox(m.x0, m.y0, m.width, m.height)
}

// Data returns the underlying pixel slice (row-major, no copy).
func (m *Image) Data() []float64 { return m.data }

// At returns the pixel at coordinate (x, y), or 0 outside the image.
func (m *Image) At(x, y int) float64 {
	i, ok := m.index(x, y)
	if !ok {
		return 0
	}
	return m.data[i]
}

// Set stores v at pixel coordinate (x, y); out-of-bounds writes are ignored.
func (m *Image) Set(x, y int, v float64) {
	if i, ok := m.index(x, y); ok {
		m.data[i] = v
	}
}

// Add adds v to the pixel at (x, y); out-of-bounds writes are ignored.
func (m *Image) Add(x, y int, v float64) {
	if i, ok := m.index(x, y); ok {
		m.data[i] += v
	}
}

func (m *Image) index(x, y int) (int, bool) {
	ix, iy := x-m.x0, y-m.y0
	if ix < 0 || ix >= m.width || iy < 0 || iy >= m.height {
		return 0, false
	}
	return iy*m.width + ix, true
}

// Clone returns a deep copy.
func (m *Image) Clone() *Image {
	data := make([]float64, len(m.data))
	copy(data, m.data)
	return &Image{width: m.width, height: m.height, x0: m.x0, y0: m.y0, data: data}
}

// CopyFrom copies the pixels of src into m. Both must have the same shape;
// the origin of m is preserved.
func (m *Image) CopyFrom(src *Image) error {
	if src.width != m.width || src.height != m.height {
		return fmt.Errorf("copy %dx%d into %dx%d: %w", src.width, src.height, m.width, m.height, ErrInvalidDimensions)
	}
	copy(m.data, src.data)
	return nil
}

// Fill sets every pixel to v.
func (m *Image) Fill(v float64) {
	for i := range m.data {
		m.data[i] = v
	}
}

// Scale multiplies every pixel by s.
func (m *Image) Scale(s float64) {
	floats.Scale(s, m.data)
}

// AddScaled adds s·src to m pixel by pixel. Both must have the same shape.
func (m *Image) AddScaled(src *Image, s float64) error {
	if src.width != m.width || src.height != m.height {
		return fmt.Errorf("add %dx%d to %dx%d: %w", src.width, src.height, m.width, m.height, ErrInvalidDimensions)
	}
	floats.AddScaled(m.data, s, src.data)
	return nil
}

// Sum returns the sum of all pixels.
func (m *Image) Sum() float64 {
	return floats.Sum(m.data)
}

// Max returns the largest pixel value.
func (m *Image) Max() float64 {
	return floats.Max(m.data)
}

// Normalize scales the image so its pixels sum to one and returns the
// original sum. Images summing to zero are left unchanged.
func (m *Image) Normalize() float64 {
	s := m.Sum()
	if s != 0 && !math.IsNaN(s) && !math.IsInf(s, 0) {
		m.Scale(1 / s)
	}
	return s
}
