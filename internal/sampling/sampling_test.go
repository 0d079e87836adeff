package sampling

import (
	"math/rand"
	"testing"
)

func TestWeightedSample_FullPopulation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	got, err := WeightedSampleWithoutReplacement(rng, []float64{1, 1, 1, 1}, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seen := map[int]bool{}
	for _, idx := range got {
		if seen[idx] {
			t.Fatalf("index %d drawn twice: %v", idx, got)
		}
		seen[idx] = true
	}
	for i := 0; i < 4; i++ {
		if !seen[i] {
			t.Fatalf("index %d missing from %v", i, got)
		}
	}
}

func TestWeightedSample_TooLarge(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if _, err := WeightedSampleWithoutReplacement(rng, []float64{1, 1, 1, 1}, 5); err == nil {
		t.Fatal("expected error for sample size beyond population")
	}
}

func TestWeightedSample_NoRepeats(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	weights := []float64{10, 1, 0.5, 7, 3, 2}
	for trial := 0; trial < 200; trial++ {
		got, err := WeightedSampleWithoutReplacement(rng, weights, 3)
		if err != nil {
			t.Fatalf("trial %d: %v", trial, err)
		}
		seen := map[int]bool{}
		for _, idx := range got {
			if seen[idx] {
				t.Fatalf("trial %d: duplicate index %d in %v", trial, idx, got)
			}
			seen[idx] = true
		}
	}
}

func TestWeightedSample_SkipsZeroWeights(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	weights := []float64{0, 5, 0, 5}
	for trial := 0; trial < 100; trial++ {
		got, err := WeightedSampleWithoutReplacement(rng, weights, 2)
		if err != nil {
			t.Fatalf("trial %d: %v", trial, err)
		}
		for _, idx := range got {
			if idx == 0 || idx == 2 {
				t.Fatalf("trial %d: zero-weight index %d selected", trial, idx)
			}
		}
	}
}

func TestWeightedSample_InsufficientMass(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	if _, err := WeightedSampleWithoutReplacement(rng, []float64{0, 0, 1}, 2); err == nil {
		t.Fatal("expected error when positive weights run out")
	}
}

func TestWeightedSample_RoughlyUnbiased(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	counts := make([]int, 4)
	const trials = 8000
	for i := 0; i < trials; i++ {
		got, err := WeightedSampleWithoutReplacement(rng, []float64{1, 1, 1, 1}, 1)
		if err != nil {
			t.Fatal(err)
		}
		counts[got[0]]++
	}
	for i, c := range counts {
		frac := float64(c) / trials
		if frac < 0.22 || frac > 0.28 {
			t.Errorf("index %d drawn %.3f of the time, want ~0.25", i, frac)
		}
	}
}
