package domain

import "errors"

// Error kinds reported by dataset lookup and rectification.
// Callers test for them with errors.Is.
var (
	// ErrNotFound is returned when a coordinate or data variable is absent.
	ErrNotFound = errors.New("not found")

	// ErrShape is returned when coordinate or data variables disagree in
	// shape or dimension names, or a grid is smaller than 2x2.
	ErrShape = errors.New("shape mismatch")

	// ErrUnsupported is returned for longitude grids whose antimeridian
	// discontinuity cannot be removed by normalization.
	ErrUnsupported = errors.New("unsupported")

	// ErrValidation is returned for invalid variable selections and
	// non-positive resolutions, tolerances and similar parameters.
	ErrValidation = errors.New("validation failed")
)
