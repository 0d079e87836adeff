package curves

import (
	"math"
	"testing"
)

func TestNeedToMoodCurve_ZeroAtMidpoint(t *testing.T) {
	for _, weight := range []float64{0.1, 0.5, 1.0, 2.0} {
		for _, steepness := range []float64{0.5, 1, 2, 3, 8} {
			got := NeedToMoodCurve(50, weight, steepness)
			if math.Abs(got) > 1e-9 {
				t.Errorf("NeedToMoodCurve(50, %v, %v) = %v, want 0", weight, steepness, got)
			}
		}
	}
}

func TestNeedToMoodCurve_Monotonic(t *testing.T) {
	prev := NeedToMoodCurve(0, 1.0, 2.5)
	for v := 1.0; v <= 100; v++ {
		cur := NeedToMoodCurve(v, 1.0, 2.5)
		if cur < prev {
			t.Fatalf("curve decreased at value %v: %v -> %v", v, prev, cur)
		}
		prev = cur
	}
}

func TestNeedToMoodCurve_SignAndScale(t *testing.T) {
	low := NeedToMoodCurve(10, 1.0, 2)
	high := NeedToMoodCurve(90, 1.0, 2)
	if low >= 0 {
		t.Errorf("low need should contribute negatively, got %v", low)
	}
	if high <= 0 {
		t.Errorf("high need should contribute positively, got %v", high)
	}

	// Weight scales linearly.
	w1 := NeedToMoodCurve(90, 1.0, 2)
	w2 := NeedToMoodCurve(90, 2.0, 2)
	if math.Abs(w2-2*w1) > 1e-9 {
		t.Errorf("weight 2 should double contribution: %v vs %v", w1, w2)
	}
}

func TestAsymptoticClamp(t *testing.T) {
	tests := []struct {
		value, min, max, strength, want float64
	}{
		{50, 0, 100, 0.5, 50},    // inside: unchanged
		{0, 0, 100, 0.9, 0},      // on boundary: unchanged
		{120, 0, 100, 1.0, 100},  // hard clamp
		{120, 0, 100, 0.0, 120},  // clamp disabled
		{120, 0, 100, 0.5, 110},  // pulled halfway back
		{-20, 0, 100, 0.5, -10},  // below min, pulled back
	}
	for _, tc := range tests {
		got := AsymptoticClamp(tc.value, tc.min, tc.max, tc.strength)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("AsymptoticClamp(%v, %v, %v, %v) = %v, want %v",
				tc.value, tc.min, tc.max, tc.strength, got, tc.want)
		}
	}
}

func TestApplyAsymptoticDecay_NeverBelowFloor(t *testing.T) {
	for _, current := range []float64{0, 5, 10.1, 50, 100} {
		got := ApplyAsymptoticDecay(current, 5.0, 10.0, 10)
		if got < 10 {
			t.Errorf("decay from %v went below floor: %v", current, got)
		}
	}
}

func TestApplyAsymptoticDecay_AtOrBelowFloorReturnsFloor(t *testing.T) {
	if got := ApplyAsymptoticDecay(10, 1, 1, 10); got != 10 {
		t.Errorf("current == floor should return floor, got %v", got)
	}
	if got := ApplyAsymptoticDecay(5, 1, 1, 10); got != 10 {
		t.Errorf("current below floor should return floor, got %v", got)
	}
}

func TestApplyAsymptoticDecay_SlowsNearFloor(t *testing.T) {
	far := 100 - ApplyAsymptoticDecay(100, 1, 1, 0)
	near := 20 - ApplyAsymptoticDecay(20, 1, 1, 0)
	if near >= far {
		t.Errorf("decay near floor (%v) should be smaller than far (%v)", near, far)
	}
}

func TestSmoothedValue(t *testing.T) {
	s := NewSmoothedValue(0, 0.5)
	if got := s.Update(100); math.Abs(got-50) > 1e-9 {
		t.Errorf("first update = %v, want 50", got)
	}
	if got := s.Update(100); math.Abs(got-75) > 1e-9 {
		t.Errorf("second update = %v, want 75", got)
	}

	s.SetValue(10)
	if s.Value() != 10 {
		t.Errorf("SetValue should bypass smoothing, got %v", s.Value())
	}

	s.SetAlpha(1.0)
	if got := s.Update(42); got != 42 {
		t.Errorf("alpha 1.0 should jump to target, got %v", got)
	}
}
