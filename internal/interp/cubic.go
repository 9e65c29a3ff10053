// Package interp provides the cubic easing curve and the tick-driven
// animator that applies it to display heights.
package interp

// DefaultVelocity yields a curve that is once differentiable everywhere.
const DefaultVelocity = 1.5

// DriveVelocity is the central velocity used by Animator.
const DriveVelocity = 2.5

// Cubic blends from a (t=0) to b (t=1) with derivative (b-a)*centralVelocity
// at t=0.5. Two cubic pieces meet at t=0.5 with matching value and slope.
// centralVelocity in [1.5, 3.0] keeps the curve monotonic. t is not clamped.
func Cubic(a, b, t, centralVelocity float64) float64 {
	v := (b - a) * centralVelocity
	t2 := t * t
	t3 := t2 * t

	c3 := 8*a - 8*b + 4*v
	if t < 0.5 {
		c2 := -6*a + 6*b - 2*v
		return c3*t3 + c2*t2 + a
	}
	c2 := -18*a + 18*b - 10*v
	c1 := 12*a - 12*b + 8*v
	c0 := -2*a + 3*b - 2*v
	return c3*t3 + c2*t2 + c1*t + c0
}

// CubicSlope returns df/dt of Cubic at t.
func CubicSlope(a, b, t, centralVelocity float64) float64 {
	v := (b - a) * centralVelocity
	c3 := 8*a - 8*b + 4*v
	if t < 0.5 {
		c2 := -6*a + 6*b - 2*v
		return 3*c3*t*t + 2*c2*t
	}
	c2 := -18*a + 18*b - 10*v
	c1 := 12*a - 12*b + 8*v
	return 3*c3*t*t + 2*c2*t + c1
}
