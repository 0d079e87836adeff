// Package activity implements the execution engine: the FIFO queue,
// start gating, per-tick effect application, completion and success
// resolution, mastery progression, and the difficulty model.
package activity

import (
	"math"

	"github.com/talgya/lifesim/internal/balance"
)

// Mastery is the only mutable part of an Activity instance: a level
// from 1 to max with banked XP toward the next threshold. Levels never
// decrease.
type Mastery struct {
	Level int     `json:"level"`
	XP    float64 `json:"xp"`
}

// NewMastery starts at level 1 with no XP.
func NewMastery() Mastery {
	return Mastery{Level: 1}
}

// NextThreshold returns the XP needed to leave the current level.
func (m *Mastery) NextThreshold(cfg balance.MasteryConfig) float64 {
	return math.Floor(cfg.ThresholdBase * math.Pow(float64(m.Level+1), cfg.ThresholdExp))
}

// AddXP banks XP and consumes thresholds, leveling up as many times as
// the award covers. Reaching a threshold exactly does not level; the
// boundary must be crossed. Returns the number of levels gained.
func (m *Mastery) AddXP(cfg balance.MasteryConfig, xp float64) int {
	if xp <= 0 {
		return 0
	}
	m.XP += xp
	gained := 0
	for m.Level < cfg.MaxLevel {
		threshold := m.NextThreshold(cfg)
		if m.XP <= threshold {
			break
		}
		m.XP -= threshold
		m.Level++
		gained++
	}
	return gained
}

// progress returns mastery progress in [0,1]: 0 at level 1, 1 at max.
func (m *Mastery) progress(cfg balance.MasteryConfig) float64 {
	if cfg.MaxLevel <= 1 {
		return 0
	}
	return float64(m.Level-1) / float64(cfg.MaxLevel-1)
}

// SuccessBonus is the completion-probability bonus, up to the
// configured max at top level.
func (m *Mastery) SuccessBonus(cfg balance.MasteryConfig) float64 {
	return cfg.SuccessBonusMax * m.progress(cfg)
}

// DrainReduction scales down resource drains, up to the configured max.
func (m *Mastery) DrainReduction(cfg balance.MasteryConfig) float64 {
	return cfg.DrainReduceMax * m.progress(cfg)
}

// SpeedBonus shortens variable-duration activities, up to the
// configured max.
func (m *Mastery) SpeedBonus(cfg balance.MasteryConfig) float64 {
	return cfg.SpeedBonusMax * m.progress(cfg)
}

// GainBoost is the multiplier on positive effects: half the success
// bonus on top of 1.
func (m *Mastery) GainBoost(cfg balance.MasteryConfig) float64 {
	return 1 + m.SuccessBonus(cfg)/2
}
