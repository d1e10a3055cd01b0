package voxel

import (
	"image/color"
	"testing"

	"go.viam.com/test"
)

func TestZeroRecordHasNoColorOrID(t *testing.T) {
	test.That(t, Zero.HasColor(), test.ShouldBeFalse)
	test.That(t, Zero.HasID(), test.ShouldBeFalse)
	test.That(t, Zero.Observed, test.ShouldBeFalse)
}

func TestSetColorMarksHasColorAndPreservesOtherFields(t *testing.T) {
	rec := Record{Field: 0.5, Weight: 3, Observed: true}
	rec = rec.SetColor(color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	test.That(t, rec.HasColor(), test.ShouldBeTrue)
	r, g, b := rec.RGB255()
	test.That(t, r, test.ShouldEqual, uint8(10))
	test.That(t, g, test.ShouldEqual, uint8(20))
	test.That(t, b, test.ShouldEqual, uint8(30))
	test.That(t, rec.Field, test.ShouldEqual, float32(0.5))
	test.That(t, rec.Weight, test.ShouldEqual, uint16(3))
}

func TestSetIDMarksHasIDAndReturnsTheStoredValue(t *testing.T) {
	rec := Record{}.SetID(42)
	test.That(t, rec.HasID(), test.ShouldBeTrue)
	test.That(t, rec.ID(), test.ShouldEqual, int32(42))
}

func TestSetColorAndSetIDAreIndependent(t *testing.T) {
	rec := Record{}.SetID(7)
	test.That(t, rec.HasColor(), test.ShouldBeFalse)
	rec = rec.SetColor(color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	test.That(t, rec.HasID(), test.ShouldBeTrue)
	test.That(t, rec.ID(), test.ShouldEqual, int32(7))
}
