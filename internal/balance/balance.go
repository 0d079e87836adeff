// Package balance holds every tunable constant in the simulation:
// decay rates, thresholds, curve shapes, scoring weights, and progression
// costs. Engines read constants from a Config rather than hardcoding
// them, so balance changes are a YAML edit, not a rebuild.
package balance

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full balance-configuration object.
type Config struct {
	Needs     NeedsConfig     `yaml:"needs"`
	Derived   DerivedConfig   `yaml:"derived"`
	Resources ResourcesConfig `yaml:"resources"`
	Alignment AlignmentConfig `yaml:"alignment"`
	Activity  ActivityConfig  `yaml:"activity"`
	Mastery   MasteryConfig   `yaml:"mastery"`
	Decision  DecisionConfig  `yaml:"decision"`
	Skills    SkillsConfig    `yaml:"skills"`
	Talents   TalentsConfig   `yaml:"talents"`
	Character CharacterConfig `yaml:"character"`
}

// NeedsConfig controls passive need decay and critical thresholds.
type NeedsConfig struct {
	// DecayRates is the per-tick base decay for each need, keyed by
	// need name. Physiological needs decay faster than social ones.
	DecayRates map[string]float64 `yaml:"decay_rates"`

	// CriticalThresholds trigger override behavior when a need falls
	// below them.
	CriticalThresholds map[string]float64 `yaml:"critical_thresholds"`

	// Floor is the asymptotic decay floor (normally 0).
	Floor float64 `yaml:"floor"`
}

// CriticalThreshold returns the configured threshold for a need, or the
// default of 15 when the need has no explicit entry.
func (n NeedsConfig) CriticalThreshold(need string) float64 {
	if v, ok := n.CriticalThresholds[need]; ok {
		return v
	}
	return 15
}

// DerivedConfig controls the smoothed derived stats.
type DerivedConfig struct {
	MoodAlpha      float64 `yaml:"mood_alpha"`
	PurposeAlpha   float64 `yaml:"purpose_alpha"`
	NutritionAlpha float64 `yaml:"nutrition_alpha"`

	// MoodWeights and MoodSteepness shape the per-need sigmoid
	// contributions to the mood target.
	MoodWeights   map[string]float64 `yaml:"mood_weights"`
	MoodSteepness float64            `yaml:"mood_steepness"`

	// Nutrition below the penalty threshold subtracts from mood.
	NutritionPenaltyThreshold float64 `yaml:"nutrition_penalty_threshold"`
	NutritionPenaltyScale     float64 `yaml:"nutrition_penalty_scale"`

	// Purpose decays toward a personality-determined equilibrium.
	PurposeBase              float64 `yaml:"purpose_base"`
	PurposeConscientiousness float64 `yaml:"purpose_conscientiousness"`
	PurposeOpenness          float64 `yaml:"purpose_openness"`

	// Nutrition drifts toward this baseline when no diet-affecting
	// activity is running.
	NutritionBaseline float64 `yaml:"nutrition_baseline"`

	// Energy regeneration multiplier = base + scale * nutrition.
	EnergyRegenBase  float64 `yaml:"energy_regen_base"`
	EnergyRegenScale float64 `yaml:"energy_regen_scale"`
}

// ResourcesConfig controls action-resource regeneration.
type ResourcesConfig struct {
	// RegenRates is passive per-tick regeneration, keyed by resource name.
	RegenRates map[string]float64 `yaml:"regen_rates"`

	// SocialBatteryRate is the per-tick charge/drain magnitude; sign
	// depends on extraversion and whether the current context is social.
	SocialBatteryRate float64 `yaml:"social_battery_rate"`

	// Willpower approaches a dynamic target each tick.
	WillpowerAlpha             float64 `yaml:"willpower_alpha"`
	WillpowerBase              float64 `yaml:"willpower_base"`
	WillpowerConscientiousness float64 `yaml:"willpower_conscientiousness"`
	WillpowerCriticalPenalty   float64 `yaml:"willpower_critical_penalty"`
}

// AlignmentConfig controls the personality-alignment multipliers.
type AlignmentConfig struct {
	TagScale          float64 `yaml:"tag_scale"`          // per-tag trait contribution scale
	ContributionLimit float64 `yaml:"contribution_limit"` // clamp on summed contributions
	MultiplierMin     float64 `yaml:"multiplier_min"`
	MultiplierMax     float64 `yaml:"multiplier_max"`
}

// ActivityConfig controls the execution engine.
type ActivityConfig struct {
	MinOverskudd float64 `yaml:"min_overskudd"` // global start gate

	BaseXPRate          float64            `yaml:"base_xp_rate"`
	DomainXPMultipliers map[string]float64 `yaml:"domain_xp_multipliers"`

	// MasteryXPDampening shrinks the domain-XP share as mastery rises,
	// discouraging grinding a single activity.
	MasteryXPDampening float64 `yaml:"mastery_xp_dampening"`

	SuccessMasteryXP float64 `yaml:"success_mastery_xp"`
	FailureMasteryXP float64 `yaml:"failure_mastery_xp"`
	FailurePenalty   float64 `yaml:"failure_penalty"` // flat overskudd and mood loss

	SkillReductionCap   float64 `yaml:"skill_reduction_cap"`
	MasteryReductionMax float64 `yaml:"mastery_reduction_max"`
	DifficultyMin       float64 `yaml:"difficulty_min"`
	DifficultyMax       float64 `yaml:"difficulty_max"`
}

// DomainXPMultiplier returns the multiplier for a domain, defaulting to 1.
func (a ActivityConfig) DomainXPMultiplier(domain string) float64 {
	if v, ok := a.DomainXPMultipliers[domain]; ok {
		return v
	}
	return 1
}

// MasteryConfig controls per-activity mastery progression.
type MasteryConfig struct {
	MaxLevel        int     `yaml:"max_level"`
	ThresholdBase   float64 `yaml:"threshold_base"`   // XP to next level = floor(base * (level+1)^exp)
	ThresholdExp    float64 `yaml:"threshold_exp"`
	SuccessBonusMax float64 `yaml:"success_bonus_max"` // success-probability bonus at max level
	DrainReduceMax  float64 `yaml:"drain_reduce_max"`  // resource-drain reduction at max level
	SpeedBonusMax   float64 `yaml:"speed_bonus_max"`   // variable-duration speedup at max level
}

// DecisionConfig controls the utility-AI scoring.
type DecisionConfig struct {
	NeedWeight        float64 `yaml:"need_weight"`
	PersonalityWeight float64 `yaml:"personality_weight"`
	ResourceWeight    float64 `yaml:"resource_weight"`
	WillpowerWeight   float64 `yaml:"willpower_weight"`
	MoodWeight        float64 `yaml:"mood_weight"`

	HysteresisBonus float64 `yaml:"hysteresis_bonus"` // multiplier for the running activity
	TopCandidates   int     `yaml:"top_candidates"`
	ShortlistRatio  float64 `yaml:"shortlist_ratio"` // drop scores below ratio * best

	VarietyOpenness          float64 `yaml:"variety_openness"`
	VarietyConscientiousness float64 `yaml:"variety_conscientiousness"`

	UrgencySteepness    float64 `yaml:"urgency_steepness"`
	SatiationThreshold  float64 `yaml:"satiation_threshold"`
	SatiationMaxPenalty float64 `yaml:"satiation_max_penalty"`

	ResourceComfortRatio float64 `yaml:"resource_comfort_ratio"`
	WillpowerEasyLimit   float64 `yaml:"willpower_easy_limit"`
	MoodDeltaScale       float64 `yaml:"mood_delta_scale"`

	LogSize         int `yaml:"log_size"`
	MaxAlternatives int `yaml:"max_alternatives"`
}

// SkillsConfig controls skill unlock costs.
type SkillsConfig struct {
	MaxLevel       int     `yaml:"max_level"`
	UnlockBaseCost float64 `yaml:"unlock_base_cost"` // cost to level L = base + step*(L-1)
	UnlockStepCost float64 `yaml:"unlock_step_cost"`
}

// UnlockCost returns the domain-XP cost of raising a skill to the given level.
func (s SkillsConfig) UnlockCost(level int) float64 {
	if level < 1 {
		return 0
	}
	return s.UnlockBaseCost + s.UnlockStepCost*float64(level-1)
}

// TalentsConfig controls talent offers and pick accrual.
type TalentsConfig struct {
	RarityWeights   map[string]float64 `yaml:"rarity_weights"`
	OfferSize       int                `yaml:"offer_size"`
	XPPerPick       float64            `yaml:"xp_per_pick"`
	MaxPendingPicks int                `yaml:"max_pending_picks"`
}

// RarityWeight returns the sampling weight for a rarity, defaulting to 1.
func (t TalentsConfig) RarityWeight(rarity string) float64 {
	if v, ok := t.RarityWeights[rarity]; ok {
		return v
	}
	return 1
}

// CharacterConfig is the initial state of the simulated person.
type CharacterConfig struct {
	Name        string             `yaml:"name"`
	Personality map[string]float64 `yaml:"personality"`
	Capacities  map[string]float64 `yaml:"capacities"`
	Needs       map[string]float64 `yaml:"needs"`
	Resources   map[string]float64 `yaml:"resources"`
}

// Default returns the shipped balance values.
func Default() *Config {
	return &Config{
		Needs: NeedsConfig{
			DecayRates: map[string]float64{
				"hunger":   0.50,
				"energy":   0.40,
				"hygiene":  0.35,
				"bladder":  0.60,
				"social":   0.20,
				"fun":      0.25,
				"security": 0.10,
			},
			CriticalThresholds: map[string]float64{
				"hunger":   15,
				"energy":   15,
				"hygiene":  18,
				"bladder":  15,
				"social":   20,
				"fun":      20,
				"security": 20,
			},
			Floor: 0,
		},
		Derived: DerivedConfig{
			MoodAlpha:      0.25,
			PurposeAlpha:   0.02,
			NutritionAlpha: 0.005,
			MoodWeights: map[string]float64{
				"hunger":   0.25,
				"energy":   0.20,
				"hygiene":  0.10,
				"bladder":  0.10,
				"social":   0.15,
				"fun":      0.15,
				"security": 0.05,
			},
			MoodSteepness:             2.5,
			NutritionPenaltyThreshold: 50,
			NutritionPenaltyScale:     0.2,
			PurposeBase:               30,
			PurposeConscientiousness:  0.4,
			PurposeOpenness:           0.2,
			NutritionBaseline:         50,
			EnergyRegenBase:           0.5,
			EnergyRegenScale:          0.01,
		},
		Resources: ResourcesConfig{
			RegenRates: map[string]float64{
				"overskudd": 0.30,
				"focus":     0.40,
			},
			SocialBatteryRate:          0.50,
			WillpowerAlpha:             0.05,
			WillpowerBase:              50,
			WillpowerConscientiousness: 0.5,
			WillpowerCriticalPenalty:   10,
		},
		Alignment: AlignmentConfig{
			TagScale:          0.3,
			ContributionLimit: 0.4,
			MultiplierMin:     0.6,
			MultiplierMax:     1.4,
		},
		Activity: ActivityConfig{
			MinOverskudd:        20,
			BaseXPRate:          1.0,
			DomainXPMultipliers: map[string]float64{},
			MasteryXPDampening:  0.5,
			SuccessMasteryXP:    10,
			FailureMasteryXP:    5,
			FailurePenalty:      5,
			SkillReductionCap:   1.5,
			MasteryReductionMax: 1.0,
			DifficultyMin:       1,
			DifficultyMax:       5,
		},
		Mastery: MasteryConfig{
			MaxLevel:        10,
			ThresholdBase:   100,
			ThresholdExp:    1.5,
			SuccessBonusMax: 0.45,
			DrainReduceMax:  0.25,
			SpeedBonusMax:   0.30,
		},
		Decision: DecisionConfig{
			NeedWeight:        0.30,
			PersonalityWeight: 0.20,
			ResourceWeight:    0.15,
			WillpowerWeight:   0.15,
			MoodWeight:        0.20,

			HysteresisBonus: 1.25,
			TopCandidates:   5,
			ShortlistRatio:  0.5,

			VarietyOpenness:          0.01,
			VarietyConscientiousness: 0.005,

			UrgencySteepness:    3.0,
			SatiationThreshold:  80,
			SatiationMaxPenalty: 50,

			ResourceComfortRatio: 2.0,
			WillpowerEasyLimit:   2.0,
			MoodDeltaScale:       2.0,

			LogSize:         5,
			MaxAlternatives: 2,
		},
		Skills: SkillsConfig{
			MaxLevel:       5,
			UnlockBaseCost: 50,
			UnlockStepCost: 25,
		},
		Talents: TalentsConfig{
			RarityWeights: map[string]float64{
				"common": 70,
				"rare":   25,
				"epic":   5,
			},
			OfferSize:       3,
			XPPerPick:       500,
			MaxPendingPicks: 3,
		},
		Character: CharacterConfig{
			Name: "Kari",
			Personality: map[string]float64{
				"openness":          55,
				"conscientiousness": 50,
				"extraversion":      45,
				"agreeableness":     60,
				"neuroticism":       40,
			},
			Capacities: map[string]float64{
				"divergent_thinking":   50,
				"convergent_thinking":  50,
				"working_memory":       50,
				"attention_span":       50,
				"processing_speed":     50,
				"emotional_regulation": 50,
			},
			Needs: map[string]float64{
				"hunger":   80,
				"energy":   80,
				"hygiene":  80,
				"bladder":  80,
				"social":   70,
				"fun":      70,
				"security": 75,
			},
			Resources: map[string]float64{
				"overskudd":      70,
				"social_battery": 70,
				"focus":          70,
				"willpower":      60,
			},
		},
	}
}

// Load reads a balance YAML file over the defaults, so partial files
// only override the keys they name.
func Load(path string) (*Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("balance %s: %w", path, err)
	}
	return cfg, nil
}
