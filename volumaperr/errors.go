// Package volumaperr defines the four error kinds spec.md §7 names at the
// design level. They are sentinel values, not exception types: the core
// signals failure through returned errors and optional-value returns and
// never panics; ResourceExhausted, the one condition spec.md calls fatal, is
// returned as an error like the others.
package volumaperr

import "github.com/pkg/errors"

// Sentinel errors identifying the design-level error kinds from spec.md §7.
// Wrap these with errors.Wrap/Wrapf for call-site context and test for kind
// with errors.Is.
var (
	// ErrInvalidInput covers depth image dimensions disagreeing with the
	// sensor, out-of-range configuration, and non-finite poses. Fatal for
	// the frame that produced it.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDataUnobserved is returned by point queries (interpolation,
	// gradient, ray-cast sample) that land on an octant with no valid data.
	// It is locally recovered: the caller decides whether it terminates a
	// walk.
	ErrDataUnobserved = errors.New("no observed data at this location")

	// ErrResourceExhausted means the octree's memory pool could not
	// allocate. This is the one fatal condition the core surfaces; the
	// engine cannot proceed once it occurs.
	ErrResourceExhausted = errors.New("octree memory pool exhausted")

	// ErrNumericallyDegenerate signals a zero-norm gradient or a singular
	// Jacobian handed back from an external tracker. Always returned as a
	// sentinel value, never raised as an exception.
	ErrNumericallyDegenerate = errors.New("numerically degenerate result")
)
