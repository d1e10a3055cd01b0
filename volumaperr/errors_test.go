package volumaperr

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestWrappedSentinelsMatchViaErrorsIs(t *testing.T) {
	wrapped := errors.Wrapf(ErrInvalidInput, "frame %d", 7)
	test.That(t, errors.Is(wrapped, ErrInvalidInput), test.ShouldBeTrue)
	test.That(t, errors.Is(wrapped, ErrDataUnobserved), test.ShouldBeFalse)
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{ErrInvalidInput, ErrDataUnobserved, ErrResourceExhausted, ErrNumericallyDegenerate}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			test.That(t, errors.Is(a, b), test.ShouldBeFalse)
		}
	}
}
