package image

import "math"

// InterpolationMode defines how an image is sampled between pixel centres.
type InterpolationMode uint8

const (
	// InterpNearest selects the closest pixel (no interpolation).
	InterpNearest InterpolationMode = iota

	// InterpBilinear interpolates linearly between the 4 neighbouring pixels.
	InterpBilinear

	// InterpBicubic uses Catmull-Rom cubic weights on a 4x4 neighbourhood.
	InterpBicubic
)

// String returns a string representation of the interpolation mode.
func (m InterpolationMode) String() string {
	switch m {
	case InterpNearest:
		return "Nearest"
	case InterpBilinear:
		return "Bilinear"
	case InterpBicubic:
		return "Bicubic"
	default:
		return "Unknown"
	}
}

// ParseInterpolation is the inverse of String (case-sensitive, lower case
// accepted).
func ParseInterpolation(s string) (InterpolationMode, bool) {
	switch s {
	case "Nearest", "nearest":
		return InterpNearest, true
	case "Bilinear", "bilinear":
		return InterpBilinear, true
	case "Bicubic", "bicubic":
		return InterpBicubic, true
	}
	return 0, false
}

// Sample samples the image at continuous pixel coordinates (x, y), where
// integer values are pixel centres in the image's own coordinate system.
// Pixels outside the image read as zero.
func (m *Image) Sample(x, y float64, mode InterpolationMode) float64 {
	switch mode {
	case InterpNearest:
		return m.SampleNearest(x, y)
	case InterpBilinear:
		return m.SampleBilinear(x, y)
	case InterpBicubic:
		return m.SampleBicubic(x, y)
	default:
		return 0
	}
}

// SampleNearest returns the pixel whose centre is closest to (x, y).
func (m *Image) SampleNearest(x, y float64) float64 {
	return m.At(int(math.Floor(x+0.5)), int(math.Floor(y+0.5)))
}

// SampleBilinear interpolates between the 4 pixels surrounding (x, y).
func (m *Image) SampleBilinear(x, y float64) float64 {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	tx := x - float64(x0)
	ty := y - float64(y0)

	v00 := m.At(x0, y0)
	v10 := m.At(x0+1, y0)
	v01 := m.At(x0, y0+1)
	v11 := m.At(x0+1, y0+1)
	return lerp2D(v00, v10, v01, v11, tx, ty)
}

// SampleBicubic performs Catmull-Rom interpolation on the 4x4
// neighbourhood of (x, y).
func (m *Image) SampleBicubic(x, y float64) float64 {
	ix := int(math.Floor(x))
	iy := int(math.Floor(y))
	tx := x - float64(ix)
	ty := y - float64(iy)

	var vals [4][4]float64
	for dy := -1; dy <= 2; dy++ {
		for dx := -1; dx <= 2; dx++ {
			vals[dy+1][dx+1] = m.At(ix+dx, iy+dy)
		}
	}
	return bicubicInterp(vals, tx, ty)
}

// lerp performs linear interpolation between a and b.
func lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

// lerp2D performs bilinear interpolation on a 2x2 grid.
func lerp2D(v00, v10, v01, v11, tx, ty float64) float64 {
	v0 := lerp(v00, v10, tx)
	v1 := lerp(v01, v11, tx)
	return lerp(v0, v1, ty)
}

// cubicWeight computes the Catmull-Rom cubic weight for distance t.
func cubicWeight(t float64) float64 {
	absT := math.Abs(t)
	if absT < 1 {
		return 1.5*absT*absT*absT - 2.5*absT*absT + 1.0
	}
	if absT < 2 {
		return -0.5*absT*absT*absT + 2.5*absT*absT - 4.0*absT + 2.0
	}
	return 0
}

// bicubicInterp performs bicubic interpolation on a 4x4 grid.
func bicubicInterp(vals [4][4]float64, tx, ty float64) float64 {
	wx := [4]float64{
		cubicWeight(tx + 1),
		cubicWeight(tx),
		cubicWeight(tx - 1),
		cubicWeight(tx - 2),
	}
	wy := [4]float64{
		cubicWeight(ty + 1),
		cubicWeight(ty),
		cubicWeight(ty - 1),
		cubicWeight(ty - 2),
	}

	var result float64
	for i := range 4 {
		for j := range 4 {
			result += vals[i][j] * wx[j] * wy[i]
		}
	}
	return result
}
