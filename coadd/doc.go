// Package coadd combines per-exposure models into models valid over the
// frame of a coadded image.
//
// Each exposure contributes an Element (a scalar field) or a Component
// (a PSF model) together with its WCS, the region where it is valid and a
// positive weight. An evaluation point in coadd pixels is carried through
// the coadd WCS to the sky and back into each exposure's pixels; every
// exposure whose region contains the transformed point adds its weighted
// value, and the result is the weighted mean:
//
//	bf, err := coadd.New(bbox, coaddWcs, elements, coadd.WithDefault(0))
//	v, err := bf.Evaluate(geom.Pt(x, y))
//
// PSFs are combined the same way by PsfKernel, whose component images are
// resampled onto the coadd pixel grid before they are summed. Psf wraps a
// frozen PsfKernel behind the psf.Psf contract.
//
// Exposures that cannot be transformed, or that do not cover the point,
// are skipped. Only when no exposure contributes does evaluation fail,
// with coaddpsf.ErrNoContribution.
package coadd
