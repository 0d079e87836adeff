package activity

import (
	"math"

	"github.com/talgya/lifesim/internal/balance"
	"github.com/talgya/lifesim/internal/catalog"
	"github.com/talgya/lifesim/internal/person"
)

// EffectiveDifficulty reduces an activity's base star rating by skill
// and mastery contributions, clamped to the configured range. Both
// reductions use square-root diminishing returns so single-stat
// min-maxing pays off less and less.
func EffectiveDifficulty(cfg *balance.Config, def catalog.ActivityDef, p *person.Person, mastery Mastery) float64 {
	reduction := skillReduction(cfg, def, p) + masteryReduction(cfg, mastery)
	eff := def.BaseDifficulty - reduction
	if eff < cfg.Activity.DifficultyMin {
		eff = cfg.Activity.DifficultyMin
	}
	if eff > cfg.Activity.DifficultyMax {
		eff = cfg.Activity.DifficultyMax
	}
	return eff
}

// skillReduction is the weighted average (not sum) of per-skill
// contributions, hard-capped. An unknown or unlearned skill contributes
// zero but still counts toward the weight total.
func skillReduction(cfg *balance.Config, def catalog.ActivityDef, p *person.Person) float64 {
	if len(def.SkillRequirements) == 0 {
		return 0
	}
	totalWeight := 0.0
	weighted := 0.0
	for _, req := range def.SkillRequirements {
		if req.Weight <= 0 {
			continue
		}
		totalWeight += req.Weight
		level := float64(p.SkillLevel(req.SkillID))
		maxLevel := float64(cfg.Skills.MaxLevel)
		if maxLevel <= 0 {
			continue
		}
		weighted += req.Weight * math.Sqrt(level/maxLevel) * req.MaxReduction
	}
	if totalWeight <= 0 {
		return 0
	}
	reduction := weighted / totalWeight
	if reduction > cfg.Activity.SkillReductionCap {
		reduction = cfg.Activity.SkillReductionCap
	}
	return reduction
}

// masteryReduction rises from 0 at level 1 to the configured max at top
// level, on the same square-root curve.
func masteryReduction(cfg *balance.Config, mastery Mastery) float64 {
	maxLevel := cfg.Mastery.MaxLevel
	if maxLevel <= 1 {
		return 0
	}
	frac := float64(mastery.Level-1) / float64(maxLevel-1)
	return math.Sqrt(frac) * cfg.Activity.MasteryReductionMax
}
