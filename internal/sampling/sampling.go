// Package sampling provides weighted random sampling without replacement.
package sampling

import (
	"fmt"
	"math/rand"
)

// WeightedSampleWithoutReplacement returns k distinct indices into
// weights, each draw proportional to the remaining weight mass. The
// cumulative sum is rebuilt per draw and the drawn weight removed, so
// no index can be selected twice. Zero and negative weights are never
// selected. Returns an error if k exceeds the population.
func WeightedSampleWithoutReplacement(rng *rand.Rand, weights []float64, k int) ([]int, error) {
	if k > len(weights) {
		return nil, fmt.Errorf("sample size %d exceeds population %d", k, len(weights))
	}
	if k < 0 {
		return nil, fmt.Errorf("negative sample size %d", k)
	}

	remaining := make([]float64, len(weights))
	copy(remaining, weights)

	picked := make([]int, 0, k)
	for len(picked) < k {
		total := 0.0
		for _, w := range remaining {
			if w > 0 {
				total += w
			}
		}
		if total <= 0 {
			return nil, fmt.Errorf("no positive weight mass left after %d of %d draws", len(picked), k)
		}

		r := rng.Float64() * total
		cum := 0.0
		chosen := -1
		for i, w := range remaining {
			if w <= 0 {
				continue
			}
			cum += w
			if r < cum {
				chosen = i
				break
			}
		}
		if chosen < 0 {
			// Float round-off on the last element.
			for i := len(remaining) - 1; i >= 0; i-- {
				if remaining[i] > 0 {
					chosen = i
					break
				}
			}
		}

		picked = append(picked, chosen)
		remaining[chosen] = 0
	}

	return picked, nil
}
