package image

import (
	goimage "image"
	"image/color"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
)

// ToGray16 converts the image to 16-bit greyscale, mapping [0, max] to the
// full range; negative pixels become black. The result is enlarged by the
// integer factor scale using nearest-neighbour resampling so individual
// kernel pixels stay visible.
func (m *Image) ToGray16(scale int) *goimage.Gray16 {
	src := goimage.NewGray16(goimage.Rect(0, 0, m.width, m.height))
	peak := m.Max()
	if peak <= 0 || math.IsNaN(peak) {
		peak = 1
	}
	for y := range m.height {
		for x := range m.width {
			v := m.data[y*m.width+x] / peak
			v = math.Max(0, math.Min(1, v))
			// FITS-style: row 0 at the bottom of the picture
			src.SetGray16(x, m.height-1-y, color.Gray16{Y: uint16(math.Round(v * 0xffff))})
		}
	}
	if scale <= 1 {
		return src
	}
	dst := goimage.NewGray16(goimage.Rect(0, 0, m.width*scale, m.height*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// WritePNG encodes the image as a 16-bit greyscale PNG.
func (m *Image) WritePNG(w io.Writer, scale int) error {
	return png.Encode(w, m.ToGray16(scale))
}
