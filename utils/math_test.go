package utils

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestDegRadConversions(t *testing.T) {
	test.That(t, DegToRad(180), test.ShouldAlmostEqual, math.Pi)
	test.That(t, RadToDeg(math.Pi/2), test.ShouldAlmostEqual, 90)
	test.That(t, RadToDeg(DegToRad(33.3)), test.ShouldAlmostEqual, 33.3)
}

func TestClamp(t *testing.T) {
	test.That(t, Clamp(5, 0, 1), test.ShouldEqual, 1)
	test.That(t, Clamp(-5, 0, 1), test.ShouldEqual, 0)
	test.That(t, Clamp(0.5, 0, 1), test.ShouldEqual, 0.5)
}
