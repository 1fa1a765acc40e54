package coaddpsf

import "errors"

// Error taxonomy shared by all sub-packages. Callers match with errors.Is;
// sub-packages wrap these with positional context.
var (
	// ErrNoContribution is returned when no element or component of an
	// aggregate is valid at the queried position and no default is set.
	ErrNoContribution = errors.New("coaddpsf: no contributing element")

	// ErrNotFitted is returned when interpolation is requested before a
	// successful fit.
	ErrNotFitted = errors.New("coaddpsf: model not yet fitted")

	// ErrInvalidConfiguration is returned at construction time for
	// malformed orders, thresholds, weights or missing collaborators.
	ErrInvalidConfiguration = errors.New("coaddpsf: invalid configuration")

	// ErrTransformFailure is returned by a coordinate mapping that cannot
	// convert a point. Aggregates treat it as "element does not contribute".
	ErrTransformFailure = errors.New("coaddpsf: coordinate transform failed")
)
