package activity

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/talgya/lifesim/internal/balance"
	"github.com/talgya/lifesim/internal/catalog"
	"github.com/talgya/lifesim/internal/person"
	"github.com/talgya/lifesim/internal/personality"
)

// Phase is the execution state machine position. Starting and
// completing are transient within a single tick; between ticks the
// engine is idle or active.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseStarting   Phase = "starting"
	PhaseActive     Phase = "active"
	PhaseCompleting Phase = "completing"
)

// Activity is a runtime instance built fresh from a static definition
// when enqueued. Mastery is its only mutable state besides progress;
// each enqueue starts over at level 1.
type Activity struct {
	Def      catalog.ActivityDef
	Mastery  Mastery
	Progress float64

	alignment personality.Alignment
}

// Alignment returns the cached personality alignment for this instance.
func (a *Activity) Alignment() personality.Alignment {
	return a.alignment
}

// HasTag reports whether the definition carries a tag.
func (a *Activity) HasTag(tag string) bool {
	for _, t := range a.Def.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Discard records an activity skipped at start time with its reason.
type Discard struct {
	ActivityID string `json:"activity_id"`
	Reason     string `json:"reason"`
}

// Completion records a finished activity.
type Completion struct {
	ActivityID   string  `json:"activity_id"`
	Success      bool    `json:"success"`
	Probability  float64 `json:"probability"`
	MasteryLevel int     `json:"mastery_level"`
	LevelsGained int     `json:"levels_gained"`
}

// TickOutcome reports what a single ProcessTick did.
type TickOutcome struct {
	StartedID  string
	Discards   []Discard
	Completion *Completion
}

// Engine owns the activity queue and the running activity for one
// person. All references are injected at construction; the engine
// holds no global state.
type Engine struct {
	cfg    *balance.Config
	cat    *catalog.Catalog
	person *person.Person
	align  *personality.Engine
	rng    *rand.Rand

	queue   []*Activity
	current *Activity
	phase   Phase

	// NeedEffects gates need mutation from activities; disabled in
	// some balancing experiments while resource effects stay live.
	NeedEffects bool
}

// NewEngine creates an execution engine for the given person.
func NewEngine(cfg *balance.Config, cat *catalog.Catalog, p *person.Person, align *personality.Engine, rng *rand.Rand) *Engine {
	return &Engine{
		cfg:         cfg,
		cat:         cat,
		person:      p,
		align:       align,
		rng:         rng,
		phase:       PhaseIdle,
		NeedEffects: true,
	}
}

// newInstance builds a fresh runtime instance for a definition.
func (e *Engine) newInstance(def catalog.ActivityDef) *Activity {
	return &Activity{
		Def:       def,
		Mastery:   NewMastery(),
		alignment: e.align.Align(def.Tags, e.person.Personality),
	}
}

// Enqueue appends a fresh instance of the definition to the queue.
func (e *Engine) Enqueue(def catalog.ActivityDef) {
	e.queue = append(e.queue, e.newInstance(def))
}

// EnqueueID looks up a definition by id and enqueues it.
func (e *Engine) EnqueueID(id string) error {
	def, ok := e.cat.Activity(id)
	if !ok {
		return fmt.Errorf("unknown activity %q", id)
	}
	e.Enqueue(def)
	return nil
}

// Cancel removes the queue entry at index without touching person
// state. Out-of-range indices are a no-op.
func (e *Engine) Cancel(index int) {
	if index < 0 || index >= len(e.queue) {
		return
	}
	e.queue = append(e.queue[:index], e.queue[index+1:]...)
}

// ClearQueue drops all queued activities without side effects.
func (e *Engine) ClearQueue() {
	e.queue = nil
}

// QueueLen returns the number of queued activities.
func (e *Engine) QueueLen() int {
	return len(e.queue)
}

// QueueIDs returns the queued activity ids in order.
func (e *Engine) QueueIDs() []string {
	out := make([]string, len(e.queue))
	for i, a := range e.queue {
		out[i] = a.Def.ID
	}
	return out
}

// Current returns the running activity, or nil when idle.
func (e *Engine) Current() *Activity {
	return e.current
}

// State returns the state machine position.
func (e *Engine) State() Phase {
	return e.phase
}

// Idle reports whether nothing is running.
func (e *Engine) Idle() bool {
	return e.current == nil
}

// CanStart checks start eligibility, returning a descriptive error when
// the activity cannot begin. Never fatal; callers skip and continue.
func (e *Engine) CanStart(def catalog.ActivityDef) error {
	overskudd := e.person.Resources.Overskudd
	if overskudd < e.cfg.Activity.MinOverskudd {
		return fmt.Errorf("overskudd %.0f below the global minimum %.0f",
			overskudd, e.cfg.Activity.MinOverskudd)
	}
	if def.MinOverskudd > 0 && overskudd < def.MinOverskudd {
		return fmt.Errorf("%s needs %.0f overskudd, have %.0f",
			def.Name, def.MinOverskudd, overskudd)
	}
	if def.MinEnergy > 0 && e.person.Needs.Energy < def.MinEnergy {
		return fmt.Errorf("%s needs %.0f energy, have %.0f",
			def.Name, def.MinEnergy, e.person.Needs.Energy)
	}
	return nil
}

// ProcessTick advances the execution engine one tick: start the next
// eligible activity if idle, apply per-tick effects, and resolve
// completion.
func (e *Engine) ProcessTick(speed float64) TickOutcome {
	var out TickOutcome
	if speed <= 0 {
		return out
	}

	if e.current == nil {
		out.Discards = e.startNext(&out)
	}

	if e.current == nil {
		return out
	}

	e.current.Progress += speed
	e.applyEffects(e.current, speed)
	e.awardDomainXP(e.current, speed)

	if e.isComplete(e.current) {
		e.phase = PhaseCompleting
		out.Completion = e.resolveCompletion(e.current)
		e.current = nil
		e.phase = PhaseIdle
	}

	return out
}

// startNext pops the queue until an eligible activity is found,
// discarding ineligible heads with their reasons.
func (e *Engine) startNext(out *TickOutcome) []Discard {
	var discards []Discard
	for len(e.queue) > 0 {
		head := e.queue[0]
		e.queue = e.queue[1:]
		if err := e.CanStart(head.Def); err != nil {
			discards = append(discards, Discard{ActivityID: head.Def.ID, Reason: err.Error()})
			continue
		}
		e.phase = PhaseStarting
		head.Progress = 0
		e.current = head
		e.phase = PhaseActive
		out.StartedID = head.Def.ID
		break
	}
	return discards
}

// applyEffects applies the per-tick resource and need deltas. Drains
// shrink with mastery, gains grow with it, and need restorations are
// scaled by the personality gain multiplier. Positive energy effects
// are additionally modulated by nutrition.
func (e *Engine) applyEffects(a *Activity, speed float64) {
	drainScale := 1 - a.Mastery.DrainReduction(e.cfg.Mastery)
	gainBoost := a.Mastery.GainBoost(e.cfg.Mastery)

	for _, key := range sortedEffectKeys(a.Def.Effects) {
		delta := a.Def.Effects[key] * speed

		switch {
		case person.IsResource(key):
			if delta < 0 {
				delta *= drainScale
			} else {
				delta *= gainBoost
			}
			e.person.Resources.Add(person.ResourceKind(key), delta)

		case person.IsNeed(key):
			if !e.NeedEffects {
				continue
			}
			if delta > 0 {
				delta *= a.alignment.GainMultiplier * gainBoost
				if person.NeedKind(key) == person.NeedEnergy {
					delta *= e.person.EnergyRegenMultiplier(e.cfg)
				}
			}
			e.person.Needs.Add(person.NeedKind(key), delta)
		}
	}
}

// awardDomainXP grants domain XP for the tick. The share shrinks as
// mastery rises, so grinding one activity pays less over time.
func (e *Engine) awardDomainXP(a *Activity, speed float64) {
	prog := a.Mastery.progress(e.cfg.Mastery)
	xp := e.cfg.Activity.BaseXPRate * speed *
		e.cfg.Activity.DomainXPMultiplier(string(a.Def.Domain)) *
		(1 - e.cfg.Activity.MasteryXPDampening*prog)
	e.person.AddDomainXP(a.Def.Domain, xp)
}

// isComplete evaluates the definition's duration mode.
func (e *Engine) isComplete(a *Activity) bool {
	switch a.Def.Duration {
	case catalog.DurationFixed:
		return a.Progress >= a.Def.BaseTicks
	case catalog.DurationThreshold:
		return e.statValue(a.Def.TargetStat) >= a.Def.TargetValue
	case catalog.DurationVariable:
		required := a.Def.BaseTicks * (1 - a.Mastery.SpeedBonus(e.cfg.Mastery))
		return a.Progress >= required
	}
	// Unknown mode: treat as fixed so the activity cannot run forever.
	return a.Progress >= a.Def.BaseTicks
}

// statValue reads a named need or resource; unknown names read as the
// target already reached so a bad definition cannot wedge the engine.
func (e *Engine) statValue(name string) float64 {
	switch {
	case person.IsNeed(name):
		return e.person.Needs.Get(person.NeedKind(name))
	case person.IsResource(name):
		return e.person.Resources.Get(person.ResourceKind(name))
	}
	return 100
}

// resolveCompletion rolls success from the capacity-profile match and
// awards mastery XP. Failures also cost a flat resource penalty.
func (e *Engine) resolveCompletion(a *Activity) *Completion {
	p := e.successProbability(a)
	success := p >= 1 || e.rng.Float64() < p

	var xp float64
	if success {
		xp = e.cfg.Activity.SuccessMasteryXP
	} else {
		xp = e.cfg.Activity.FailureMasteryXP
		penalty := e.cfg.Activity.FailurePenalty
		e.person.Resources.Add(person.ResourceOverskudd, -penalty)
		mood := e.person.Mood.Value() - penalty
		if mood < 0 {
			mood = 0
		}
		e.person.Mood.SetValue(mood)
	}
	gained := a.Mastery.AddXP(e.cfg.Mastery, xp)

	return &Completion{
		ActivityID:   a.Def.ID,
		Success:      success,
		Probability:  p,
		MasteryLevel: a.Mastery.Level,
		LevelsGained: gained,
	}
}

// successProbability averages per-capacity ratios (capped at 1.5 each),
// adds the mastery bonus, and caps at 1. An empty capacity profile
// always succeeds.
func (e *Engine) successProbability(a *Activity) float64 {
	if len(a.Def.CapacityProfile) == 0 {
		return 1
	}
	total := 0.0
	count := 0
	for key, target := range a.Def.CapacityProfile {
		if target <= 0 {
			continue
		}
		ratio := e.person.EffectiveCapacity(person.CapacityKind(key)) / target
		if ratio > 1.5 {
			ratio = 1.5
		}
		total += ratio
		count++
	}
	if count == 0 {
		return 1
	}
	p := total/float64(count) + a.Mastery.SuccessBonus(e.cfg.Mastery)
	if p > 1 {
		p = 1
	}
	if p < 0 {
		p = 0
	}
	return p
}

// ExpectedTicks estimates how long an instance will run, for candidate
// scoring.
func (e *Engine) ExpectedTicks(def catalog.ActivityDef, mastery Mastery) float64 {
	switch def.Duration {
	case catalog.DurationVariable:
		return def.BaseTicks * (1 - mastery.SpeedBonus(e.cfg.Mastery))
	case catalog.DurationThreshold:
		rate := def.Effects[def.TargetStat]
		if rate <= 0 {
			return def.BaseTicks
		}
		remaining := def.TargetValue - e.statValue(def.TargetStat)
		if remaining <= 0 {
			return 1
		}
		return remaining / rate
	}
	return def.BaseTicks
}

// InSocialContext reports whether the running activity is social.
func (e *Engine) InSocialContext() bool {
	return e.current != nil && e.current.HasTag("social")
}

// DietTarget returns the running activity's diet score, or 0 when idle
// or dietless.
func (e *Engine) DietTarget() float64 {
	if e.current == nil {
		return 0
	}
	return e.current.Def.DietScore
}

func sortedEffectKeys(effects map[string]float64) []string {
	keys := make([]string, 0, len(effects))
	for k := range effects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
