package coadd

import (
	"github.com/measalg/coaddpsf/image"
)

// Option configures a BoundedField or PsfKernel during creation.
//
// Example:
//
//	bf, err := coadd.New(bbox, coaddWcs, elements, coadd.WithDefault(0))
//	k, err := coadd.NewPsfKernel(25, 25, coaddWcs, coadd.WithKernelCache(128))
type Option func(*options)

type options struct {
	def        float64
	hasDefault bool
	interp     image.InterpolationMode
	cacheSize  int
	workers    int
}

func defaultOptions() options {
	return options{
		interp:  image.InterpBilinear,
		workers: 0, // GOMAXPROCS
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithDefault makes a BoundedField return v at positions where no element
// contributes, instead of failing with ErrNoContribution.
func WithDefault(v float64) Option {
	return func(o *options) {
		o.def = v
		o.hasDefault = true
	}
}

// WithInterpolation selects how component PSF images are resampled onto
// the coadd pixel grid. The default is bilinear.
func WithInterpolation(mode image.InterpolationMode) Option {
	return func(o *options) {
		o.interp = mode
	}
}

// WithKernelCache memoizes up to capacity rendered images per cache shard
// once a PsfKernel is frozen. Zero disables caching.
func WithKernelCache(capacity int) Option {
	return func(o *options) {
		o.cacheSize = max(capacity, 0)
	}
}

// WithWorkers sets the number of goroutines used by BoundedField.FillImage.
// Zero or negative selects GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}
