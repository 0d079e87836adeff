package person

import (
	"fmt"

	"github.com/talgya/lifesim/internal/balance"
	"github.com/talgya/lifesim/internal/catalog"
	"github.com/talgya/lifesim/internal/curves"
	"github.com/talgya/lifesim/internal/personality"
)

// Person is the simulated person: the single mutable state container
// the engines operate on.
type Person struct {
	Name string

	Needs       Needs
	Resources   Resources
	Capacities  Capacities
	Personality personality.Traits

	// Derived stats, each a smoothed function of needs and personality.
	Mood      *curves.SmoothedValue
	Purpose   *curves.SmoothedValue
	Nutrition *curves.SmoothedValue

	// Skill levels by skill id (0–5) and accumulated XP per domain.
	Skills   map[string]int
	DomainXP map[catalog.Domain]float64

	// Talents acquired this run, with their aggregated modifiers.
	Talents        []string
	capacityAdd    map[CapacityKind]float64
	capacityPct    map[CapacityKind]float64
	regenRateAdd   map[ResourceKind]float64
	regenRatePct   map[ResourceKind]float64
}

// New creates a person from the character section of the balance config.
func New(cfg *balance.Config) *Person {
	p := &Person{
		Name:         cfg.Character.Name,
		Personality:  personality.FromMap(cfg.Character.Personality),
		Skills:       map[string]int{},
		DomainXP:     map[catalog.Domain]float64{},
		capacityAdd:  map[CapacityKind]float64{},
		capacityPct:  map[CapacityKind]float64{},
		regenRateAdd: map[ResourceKind]float64{},
		regenRatePct: map[ResourceKind]float64{},
	}

	for _, k := range AllNeeds() {
		if v, ok := cfg.Character.Needs[string(k)]; ok {
			p.Needs.Set(k, v)
		} else {
			p.Needs.Set(k, 50)
		}
	}
	for _, k := range AllResources() {
		if v, ok := cfg.Character.Resources[string(k)]; ok {
			p.Resources.Set(k, v)
		} else {
			p.Resources.Set(k, 50)
		}
	}
	for _, k := range AllCapacities() {
		if v, ok := cfg.Character.Capacities[string(k)]; ok {
			p.Capacities.Set(k, v)
		} else {
			p.Capacities.Set(k, 50)
		}
	}

	p.Mood = curves.NewSmoothedValue(50, cfg.Derived.MoodAlpha)
	p.Purpose = curves.NewSmoothedValue(50, cfg.Derived.PurposeAlpha)
	p.Nutrition = curves.NewSmoothedValue(50, cfg.Derived.NutritionAlpha)
	return p
}

// TickContext carries the per-tick inputs the person cannot observe
// itself: the speed multiplier and what the execution engine is doing.
type TickContext struct {
	Speed float64

	// InSocialContext is true while the running activity carries the
	// social tag; it flips the social-battery direction.
	InSocialContext bool

	// DietTarget is the nutrition target of the running activity, or 0
	// when idle or the activity has no diet score.
	DietTarget float64
}

// AdvanceTick applies one tick of passive state evolution: need decay,
// resource regeneration, and derived-stat smoothing. Activity effects
// are applied separately by the execution engine.
func (p *Person) AdvanceTick(cfg *balance.Config, ctx TickContext) {
	speed := ctx.Speed
	if speed <= 0 {
		return
	}

	p.decayNeeds(cfg, speed)
	p.regenResources(cfg, ctx)
	p.updateDerived(cfg, ctx)
}

func (p *Person) decayNeeds(cfg *balance.Config, speed float64) {
	for _, k := range AllNeeds() {
		rate := cfg.Needs.DecayRates[string(k)]
		next := curves.ApplyAsymptoticDecay(p.Needs.Get(k), rate, speed, cfg.Needs.Floor)
		p.Needs.Set(k, next)
	}
}

func (p *Person) regenResources(cfg *balance.Config, ctx TickContext) {
	speed := ctx.Speed

	for _, k := range []ResourceKind{ResourceOverskudd, ResourceFocus} {
		rate := cfg.Resources.RegenRates[string(k)]
		rate = (rate + p.regenRateAdd[k]) * (1 + p.regenRatePct[k])
		p.Resources.Add(k, rate*speed)
	}

	// Social battery: extraverts charge in company and drain alone;
	// introverts the other way around.
	direction := (p.Personality.Extraversion - 50) / 50
	if !ctx.InSocialContext {
		direction = -direction
	}
	rate := cfg.Resources.SocialBatteryRate
	rate = (rate + p.regenRateAdd[ResourceSocialBattery]) * (1 + p.regenRatePct[ResourceSocialBattery])
	p.Resources.Add(ResourceSocialBattery, direction*rate*speed)

	// Willpower tracks a dynamic target instead of a fixed cap: higher
	// conscientiousness raises it, unmet critical needs drag it down.
	target := cfg.Resources.WillpowerBase +
		(p.Personality.Conscientiousness-50)*cfg.Resources.WillpowerConscientiousness -
		float64(len(p.CriticalNeeds(cfg)))*cfg.Resources.WillpowerCriticalPenalty
	alpha := cfg.Resources.WillpowerAlpha * speed
	if alpha > 1 {
		alpha = 1
	}
	wp := p.Resources.Willpower
	p.Resources.Set(ResourceWillpower, wp+alpha*(target-wp))
}

func (p *Person) updateDerived(cfg *balance.Config, ctx TickContext) {
	speed := ctx.Speed

	// Mood: 50 plus weighted sigmoid contributions of each need, minus
	// a penalty when nutrition runs low.
	target := 50.0
	for _, k := range AllNeeds() {
		weight := cfg.Derived.MoodWeights[string(k)]
		target += curves.NeedToMoodCurve(p.Needs.Get(k), weight, cfg.Derived.MoodSteepness)
	}
	if n := p.Nutrition.Value(); n < cfg.Derived.NutritionPenaltyThreshold {
		target -= (cfg.Derived.NutritionPenaltyThreshold - n) * cfg.Derived.NutritionPenaltyScale
	}
	p.Mood.SetAlpha(effectiveAlpha(cfg.Derived.MoodAlpha, speed))
	p.Mood.SetValue(clamp01x100(p.Mood.Update(clamp01x100(target))))

	// Purpose decays toward a personality-determined equilibrium.
	equilibrium := cfg.Derived.PurposeBase +
		p.Personality.Conscientiousness*cfg.Derived.PurposeConscientiousness +
		p.Personality.Openness*cfg.Derived.PurposeOpenness
	p.Purpose.SetAlpha(effectiveAlpha(cfg.Derived.PurposeAlpha, speed))
	p.Purpose.SetValue(clamp01x100(p.Purpose.Update(clamp01x100(equilibrium))))

	// Nutrition creeps toward the running activity's diet score, or
	// back to baseline when nothing diet-affecting is happening.
	diet := ctx.DietTarget
	if diet <= 0 {
		diet = cfg.Derived.NutritionBaseline
	}
	p.Nutrition.SetAlpha(effectiveAlpha(cfg.Derived.NutritionAlpha, speed))
	p.Nutrition.SetValue(clamp01x100(p.Nutrition.Update(clamp01x100(diet))))
}

func effectiveAlpha(alpha, speed float64) float64 {
	a := alpha * speed
	if a > 1 {
		return 1
	}
	return a
}

// EnergyRegenMultiplier scales positive energy effects by current
// nutrition.
func (p *Person) EnergyRegenMultiplier(cfg *balance.Config) float64 {
	return cfg.Derived.EnergyRegenBase + cfg.Derived.EnergyRegenScale*p.Nutrition.Value()
}

// CriticalNeeds returns the needs currently below their critical
// thresholds.
func (p *Person) CriticalNeeds(cfg *balance.Config) []NeedKind {
	var out []NeedKind
	for _, k := range AllNeeds() {
		if p.Needs.Get(k) < cfg.Needs.CriticalThreshold(string(k)) {
			out = append(out, k)
		}
	}
	return out
}

// EffectiveCapacity returns base capacity with talent modifiers applied.
func (p *Person) EffectiveCapacity(k CapacityKind) float64 {
	return p.Capacities.Get(k)*(1+p.capacityPct[k]) + p.capacityAdd[k]
}

// SkillLevel returns the level for a skill id, 0 when unlearned.
func (p *Person) SkillLevel(id string) int {
	return p.Skills[id]
}

// AddDomainXP accumulates experience in a domain.
func (p *Person) AddDomainXP(domain catalog.Domain, xp float64) {
	if xp <= 0 {
		return
	}
	p.DomainXP[domain] += xp
}

// UnlockSkill raises a skill one level, spending domain XP. The cost
// escalates per level and prerequisites must be at level 1 or above.
func (p *Person) UnlockSkill(cat *catalog.Catalog, cfg balance.SkillsConfig, id string) error {
	def, ok := cat.Skill(id)
	if !ok {
		return fmt.Errorf("unknown skill %q", id)
	}
	next := p.Skills[id] + 1
	if next > cfg.MaxLevel {
		return fmt.Errorf("skill %q already at max level %d", id, cfg.MaxLevel)
	}
	for _, pre := range def.Prerequisites {
		if p.Skills[pre] < 1 {
			name := pre
			if preDef, ok := cat.Skill(pre); ok {
				name = preDef.Name
			}
			return fmt.Errorf("skill %q requires %s first", id, name)
		}
	}
	cost := cfg.UnlockCost(next)
	if p.DomainXP[def.Domain] < cost {
		return fmt.Errorf("skill %q needs %.0f %s XP, have %.0f",
			id, cost, def.Domain, p.DomainXP[def.Domain])
	}
	p.DomainXP[def.Domain] -= cost
	p.Skills[id] = next
	return nil
}

// ApplyTalent records a talent as acquired and folds its modifiers into
// the person's capacity and regeneration aggregates. Permanent for the run.
func (p *Person) ApplyTalent(def catalog.TalentDef) {
	p.Talents = append(p.Talents, def.ID)
	for _, eff := range def.Effects {
		switch eff.Target {
		case "capacity":
			k := CapacityKind(eff.Key)
			p.capacityAdd[k] += eff.Add
			p.capacityPct[k] += eff.Pct
		case "resource_rate":
			k := ResourceKind(eff.Key)
			p.regenRateAdd[k] += eff.Add
			p.regenRatePct[k] += eff.Pct
		}
	}
}

// HasTalent reports whether a talent id has been acquired.
func (p *Person) HasTalent(id string) bool {
	for _, t := range p.Talents {
		if t == id {
			return true
		}
	}
	return false
}

// OverrideTrait sets a personality trait directly. Dev/test hook only;
// personality is otherwise immutable after creation.
func (p *Person) OverrideTrait(trait personality.Trait, value float64) {
	v := clamp01x100(value)
	switch trait {
	case personality.Openness:
		p.Personality.Openness = v
	case personality.Conscientiousness:
		p.Personality.Conscientiousness = v
	case personality.Extraversion:
		p.Personality.Extraversion = v
	case personality.Agreeableness:
		p.Personality.Agreeableness = v
	case personality.Neuroticism:
		p.Personality.Neuroticism = v
	}
}

// State is a snapshot-compatible view of the person for observation
// and persistence. Reading it never mutates simulation state.
type State struct {
	Name        string                  `json:"name"`
	Needs       Needs                   `json:"needs"`
	Resources   Resources               `json:"resources"`
	Capacities  map[string]float64      `json:"capacities"`
	Personality personality.Traits      `json:"personality"`
	Mood        float64                 `json:"mood"`
	Purpose     float64                 `json:"purpose"`
	Nutrition   float64                 `json:"nutrition"`
	Skills      map[string]int          `json:"skills"`
	DomainXP    map[string]float64      `json:"domain_xp"`
	Talents     []string                `json:"talents"`
}

// Snapshot copies the person's observable state.
func (p *Person) Snapshot() State {
	caps := make(map[string]float64, 6)
	for _, k := range AllCapacities() {
		caps[string(k)] = p.EffectiveCapacity(k)
	}
	skills := make(map[string]int, len(p.Skills))
	for id, lvl := range p.Skills {
		skills[id] = lvl
	}
	xp := make(map[string]float64, len(p.DomainXP))
	for d, v := range p.DomainXP {
		xp[string(d)] = v
	}
	talents := make([]string, len(p.Talents))
	copy(talents, p.Talents)

	return State{
		Name:        p.Name,
		Needs:       p.Needs,
		Resources:   p.Resources,
		Capacities:  caps,
		Personality: p.Personality,
		Mood:        p.Mood.Value(),
		Purpose:     p.Purpose.Value(),
		Nutrition:   p.Nutrition.Value(),
		Skills:      skills,
		DomainXP:    xp,
		Talents:     talents,
	}
}
