package psf

import (
	"fmt"
	"math"
	"sync"

	"github.com/measalg/coaddpsf"
	"github.com/measalg/coaddpsf/geom"
	"github.com/measalg/coaddpsf/image"
)

// SingleGaussian is a circular Gaussian PSF of fixed width, rendered on a
// width x height kernel image.
type SingleGaussian struct {
	width, height int
	sigma         float64
}

// NewSingleGaussian creates a Gaussian PSF. Dimensions must be positive and
// sigma finite and positive.
func NewSingleGaussian(width, height int, sigma float64) (*SingleGaussian, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("psf: dimensions %dx%d: %w", width, height, coaddpsf.ErrInvalidConfiguration)
	}
	if !(sigma > 0) || math.IsInf(sigma, 0) {
		return nil, fmt.Errorf("psf: sigma %g: %w", sigma, coaddpsf.ErrInvalidConfiguration)
	}
	return &SingleGaussian{width: width, height: height, sigma: sigma}, nil
}

// Sigma returns the Gaussian width in pixels.
func (g *SingleGaussian) Sigma() float64 { return g.sigma }

// Dimensions implements Psf.
func (g *SingleGaussian) Dimensions() (int, int) { return g.width, g.height }

// Clone implements Psf.
func (g *SingleGaussian) Clone() Psf {
	c := *g
	return &c
}

// Resized returns a copy rendering onto a different kernel size.
func (g *SingleGaussian) Resized(width, height int) (*SingleGaussian, error) {
	return NewSingleGaussian(width, height, g.sigma)
}

// ComputeImage implements Psf. The model does not vary with position.
// Unnormalized images carry the analytic amplitude 1/(2πσ²).
func (g *SingleGaussian) ComputeImage(p geom.Point, normalize bool) (*image.Image, error) {
	if !geom.IsFinite(p) {
		return nil, fmt.Errorf("psf: position %v: %w", p, coaddpsf.ErrTransformFailure)
	}
	img, err := image.NewKernel(g.width, g.height)
	if err != nil {
		return nil, err
	}
	x0, y0 := img.XY0()
	gx := defaultWeightCache.get(g.sigma, x0, g.width)
	gy := defaultWeightCache.get(g.sigma, y0, g.height)

	data := img.Data()
	for j, wy := range gy {
		row := data[j*g.width : (j+1)*g.width]
		for i, wx := range gx {
			row[i] = wx * wy
		}
	}
	if normalize {
		img.Normalize()
	} else {
		img.Scale(1 / (2 * math.Pi * g.sigma * g.sigma))
	}
	return img, nil
}

// Equal reports value equality.
func (g *SingleGaussian) Equal(other Psf) bool {
	o, ok := other.(*SingleGaussian)
	return ok && o != nil && *g == *o
}

// gaussianWeights returns exp(-x²/2σ²) for x = start .. start+n-1.
func gaussianWeights(sigma float64, start, n int) []float64 {
	w := make([]float64, n)
	twoSigmaSq := 2 * sigma * sigma
	for i := range w {
		x := float64(start + i)
		w[i] = math.Exp(-(x * x) / twoSigmaSq)
	}
	return w
}

type weightKey struct {
	sigma    float64
	start, n int
}

// weightCache caches 1-D Gaussian weight rows; many coadd components share
// a handful of seeing values.
type weightCache struct {
	mu     sync.RWMutex
	cache  map[weightKey][]float64
	maxLen int
}

var defaultWeightCache = newWeightCache(64)

func newWeightCache(maxLen int) *weightCache {
	return &weightCache{
		cache:  make(map[weightKey][]float64),
		maxLen: maxLen,
	}
}

// get returns a cached row or computes and caches it. Returned rows must
// not be modified.
func (c *weightCache) get(sigma float64, start, n int) []float64 {
	key := weightKey{sigma: sigma, start: start, n: n}

	c.mu.RLock()
	if w, ok := c.cache[key]; ok {
		c.mu.RUnlock()
		return w
	}
	c.mu.RUnlock()

	w := gaussianWeights(sigma, start, n)

	c.mu.Lock()
	if len(c.cache) >= c.maxLen {
		// drop half the entries
		count := 0
		for k := range c.cache {
			delete(c.cache, k)
			count++
			if count >= c.maxLen/2 {
				break
			}
		}
	}
	c.cache[key] = w
	c.mu.Unlock()

	return w
}
