package coadd

import (
	"math"

	"seehuhn.de/go/geom/matrix"

	"github.com/measalg/coaddpsf/image"
	"github.com/measalg/coaddpsf/wcs"
)

// resample writes into dst the image src seen through the linear map jac
// (coadd pixel offsets to exposure pixel offsets). Each dst pixel averages
// src over a grid of sub-samples spanning the pixel's preimage, one per
// exposure pixel along each axis, and is scaled by |det jac| so flux is
// conserved whether coadd pixels are finer or coarser than exposure
// pixels. Both images are centred on offset (0, 0); the translation part
// of jac is ignored.
func resample(dst, src *image.Image, jac matrix.Matrix, mode image.InterpolationMode) {
	x0, y0 := dst.XY0()
	w := dst.Width()
	data := dst.Data()

	if isIdentity(jac) {
		for j := range dst.Height() {
			for i := range w {
				data[j*w+i] = src.At(x0+i, y0+j)
			}
		}
		return
	}

	nx := subsamples(math.Hypot(jac[0], jac[1]))
	ny := subsamples(math.Hypot(jac[2], jac[3]))
	scale := math.Abs(wcs.Determinant(jac)) / float64(nx*ny)
	for j := range dst.Height() {
		for i := range w {
			var sum float64
			for b := range ny {
				oy := float64(y0+j) + (float64(b)+0.5)/float64(ny) - 0.5
				for a := range nx {
					ox := float64(x0+i) + (float64(a)+0.5)/float64(nx) - 0.5
					sum += src.Sample(jac[0]*ox+jac[2]*oy, jac[1]*ox+jac[3]*oy, mode)
				}
			}
			data[j*w+i] = sum * scale
		}
	}
}

// subsamples returns how many samples per axis a dst pixel needs when one
// dst pixel spans stretch src pixels along that axis.
func subsamples(stretch float64) int {
	n := int(math.Ceil(stretch - 1e-6))
	return max(n, 1)
}

func isIdentity(m matrix.Matrix) bool {
	return m[0] == 1 && m[1] == 0 && m[2] == 0 && m[3] == 1
}
