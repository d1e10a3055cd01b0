package octree

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/volumap/logging"
	"go.viam.com/volumap/volumaperr"
)

func TestAllocateReturnsResourceExhaustedOnceMaxOctantsIsReached(t *testing.T) {
	cfg := testConfig()
	cfg.MaxOctants = 1 // the root alone already counts as one
	tree, err := NewTree(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	_, _, err = tree.Allocate(tree.Root(), 0, 1)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, volumaperr.ErrResourceExhausted), test.ShouldBeTrue)
}

func TestAllocateReuseFromFreelistIgnoresMaxOctants(t *testing.T) {
	cfg := testConfig()
	cfg.MaxOctants = 2
	tree, err := NewTree(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	first, _, err := tree.Allocate(tree.Root(), 0, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, first.IsBlock(), test.ShouldBeFalse)

	test.That(t, tree.DeleteChildren(tree.Root()), test.ShouldBeNil)

	// Reallocating the same child reuses the freed node handle rather than
	// growing the arena, so it must succeed even though MaxOctants was
	// already reached by the first allocation.
	second, created, err := tree.Allocate(tree.Root(), 0, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, created, test.ShouldBeTrue)
	test.That(t, second, test.ShouldEqual, first)
}
