// Package curves provides the numeric transforms shared by the needs,
// mood, and decision systems: sigmoid need→mood mapping, soft bounds,
// exponential smoothing, and asymptotic decay.
package curves

import "math"

// NeedToMoodCurve maps a need value in [0,100] to a signed mood
// contribution. The value is normalized, pushed through a sigmoid with
// the given steepness, centered so a half-full need contributes zero,
// and scaled by 100 and the weight. Monotonically increasing in value.
func NeedToMoodCurve(value, weight, steepness float64) float64 {
	x := value / 100
	if x < 0 {
		x = 0
	}
	if x > 1 {
		x = 1
	}

	// x^s / (x^s + 0.5^s): 0.5 at the midpoint regardless of steepness.
	xs := math.Pow(x, steepness)
	half := math.Pow(0.5, steepness)
	y := xs / (xs + half)

	return (y - 0.5) * 100 * weight
}

// AsymptoticClamp pulls values outside [min,max] back toward the bound
// by factor (1-strength) instead of hard-clamping. Values inside the
// range pass through unchanged. Strength 1 behaves as a hard clamp from
// outside; strength 0 disables clamping.
func AsymptoticClamp(value, min, max, strength float64) float64 {
	if value > max {
		return max + (value-max)*(1-strength)
	}
	if value < min {
		return min - (min-value)*(1-strength)
	}
	return value
}

// ApplyAsymptoticDecay moves current toward floor by an amount
// proportional to the remaining distance, so decay slows as the value
// approaches the floor. Never returns a value below the floor.
func ApplyAsymptoticDecay(current, baseRate, speedMultiplier, floor float64) float64 {
	if current <= floor {
		return floor
	}
	distance := current - floor
	amount := baseRate * speedMultiplier * (distance / 100)
	next := current - amount
	if next < floor {
		return floor
	}
	return next
}

// SmoothedValue is a stateful exponential-moving-average accumulator.
// Each Update moves the current value a fraction alpha of the way
// toward the target.
type SmoothedValue struct {
	current float64
	alpha   float64
}

// NewSmoothedValue creates an accumulator at the given starting value.
func NewSmoothedValue(initial, alpha float64) *SmoothedValue {
	return &SmoothedValue{current: initial, alpha: alpha}
}

// Update moves the current value toward target and returns the result.
func (s *SmoothedValue) Update(target float64) float64 {
	s.current += s.alpha * (target - s.current)
	return s.current
}

// Value returns the current smoothed value.
func (s *SmoothedValue) Value() float64 {
	return s.current
}

// SetValue bypasses smoothing, for initialization and resets.
func (s *SmoothedValue) SetValue(v float64) {
	s.current = v
}

// SetAlpha changes the smoothing factor.
func (s *SmoothedValue) SetAlpha(alpha float64) {
	s.alpha = alpha
}
