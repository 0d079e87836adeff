// Package personality implements the Big Five trait model and the
// alignment engine that turns activity tags into cost/gain multipliers.
package personality

import "github.com/talgya/lifesim/internal/balance"

// Trait names the five personality dimensions.
type Trait string

const (
	Openness          Trait = "openness"
	Conscientiousness Trait = "conscientiousness"
	Extraversion      Trait = "extraversion"
	Agreeableness     Trait = "agreeableness"
	Neuroticism       Trait = "neuroticism"
)

// Traits holds the Big Five, each 0–100. Immutable after creation
// except via explicit dev overrides on the owning person.
type Traits struct {
	Openness          float64 `json:"openness"`
	Conscientiousness float64 `json:"conscientiousness"`
	Extraversion      float64 `json:"extraversion"`
	Agreeableness     float64 `json:"agreeableness"`
	Neuroticism       float64 `json:"neuroticism"`
}

// Get returns the value for a trait name.
func (t Traits) Get(trait Trait) float64 {
	switch trait {
	case Openness:
		return t.Openness
	case Conscientiousness:
		return t.Conscientiousness
	case Extraversion:
		return t.Extraversion
	case Agreeableness:
		return t.Agreeableness
	case Neuroticism:
		return t.Neuroticism
	}
	return 50
}

// FromMap builds Traits from a name→value map, defaulting missing
// traits to the neutral 50.
func FromMap(m map[string]float64) Traits {
	get := func(name string) float64 {
		if v, ok := m[name]; ok {
			return v
		}
		return 50
	}
	return Traits{
		Openness:          get("openness"),
		Conscientiousness: get("conscientiousness"),
		Extraversion:      get("extraversion"),
		Agreeableness:     get("agreeableness"),
		Neuroticism:       get("neuroticism"),
	}
}

// tagBinding maps a semantic activity tag to the trait that drives it.
// Inverted tags apply the negative of the trait contribution: introverts
// favor solo work, and high neuroticism is penalized by stressful tags.
type tagBinding struct {
	trait    Trait
	inverted bool
}

var tagBindings = map[string]tagBinding{
	"social":        {trait: Extraversion},
	"solo":          {trait: Extraversion, inverted: true},
	"creative":      {trait: Openness},
	"routine":       {trait: Conscientiousness},
	"cooperative":   {trait: Agreeableness},
	"stressful":     {trait: Neuroticism, inverted: true},
	"concentration": {trait: Conscientiousness},
}

// Alignment is the result of matching an activity's tags against a
// personality: a cost multiplier, a gain multiplier, and a per-trait
// breakdown for explainability.
type Alignment struct {
	CostMultiplier float64           `json:"cost_multiplier"`
	GainMultiplier float64           `json:"gain_multiplier"`
	Total          float64           `json:"total"`
	Breakdown      map[Trait]float64 `json:"breakdown"`
}

// Engine computes activity alignments for a fixed personality.
type Engine struct {
	cfg balance.AlignmentConfig
}

// NewEngine creates an alignment engine with the given tuning.
func NewEngine(cfg balance.AlignmentConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Align sums per-tag trait contributions, clamps the total, and derives
// the cost and gain multipliers. Unrecognized tags are ignored.
func (e *Engine) Align(tags []string, traits Traits) Alignment {
	breakdown := make(map[Trait]float64)
	total := 0.0

	for _, tag := range tags {
		binding, ok := tagBindings[tag]
		if !ok {
			continue
		}
		contrib := (traits.Get(binding.trait) - 50) / 100 * e.cfg.TagScale
		if binding.inverted {
			contrib = -contrib
		}
		breakdown[binding.trait] += contrib
		total += contrib
	}

	limit := e.cfg.ContributionLimit
	if total > limit {
		total = limit
	}
	if total < -limit {
		total = -limit
	}

	return Alignment{
		CostMultiplier: clamp(1-total, e.cfg.MultiplierMin, e.cfg.MultiplierMax),
		GainMultiplier: clamp(1+total, e.cfg.MultiplierMin, e.cfg.MultiplierMax),
		Total:          total,
		Breakdown:      breakdown,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
