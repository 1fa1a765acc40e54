// Package coaddpsf provides point-spread-function modeling for co-added
// (stacked) astronomical images.
//
// # Overview
//
// A coadd is built from many exposures, each carrying its own PSF model,
// world coordinate system, weight and valid-pixel region. The packages in
// this module combine those per-exposure models into a single model that is
// valid over the coadd frame and can be evaluated at any position:
//
//   - coadd: CoaddBoundedField (weighted scalar fields such as photometric
//     zero-points) and CoaddPsfKernel/CoaddPsf (weighted PSF images)
//   - shapelet: spatially varying shapelet PSF fitted to candidate stars,
//     with sigma clipping and PCA truncation
//   - psf, field, wcs, geom, image: the collaborator contracts and simple
//     implementations of them
//   - archive: YAML persistence preserving shared sub-objects
//
// # Quick Start
//
//	elems := []coadd.Element{
//	    {Field: field.NewConstant(bbox, 10), Wcs: expWcs1, Weight: 2},
//	    {Field: field.NewConstant(bbox, 4), Wcs: expWcs2, Weight: 1},
//	}
//	f, err := coadd.New(coaddBBox, coaddWcs, elems)
//	v, err := f.Evaluate(geom.Pt(100, 200))
//
// # Coordinates
//
// Pixel positions are float64 with integer values at pixel centres. Sky
// coordinates are (RA, Dec) in radians.
//
// # Concurrency
//
// Evaluation methods are safe for concurrent use once an aggregate is
// frozen. Mutating methods (AddPsfComponent, Calculate) must be serialised
// by the caller.
package coaddpsf

// Version is the current version of the module.
const Version = "0.3.0"
