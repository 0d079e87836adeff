// Simulation ties the person, activity execution, decision making, and
// talent systems together and runs them each tick.
package engine

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/talgya/lifesim/internal/activity"
	"github.com/talgya/lifesim/internal/balance"
	"github.com/talgya/lifesim/internal/catalog"
	"github.com/talgya/lifesim/internal/decision"
	"github.com/talgya/lifesim/internal/person"
	"github.com/talgya/lifesim/internal/personality"
	"github.com/talgya/lifesim/internal/talent"
)

// maxEvents bounds the in-memory event log.
const maxEvents = 1000

// Event is a notable occurrence in the simulation.
type Event struct {
	Tick        uint64 `json:"tick"`
	Description string `json:"description"`
	Category    string `json:"category"` // "activity", "decision", "talent", "need", "skill"
}

// RunStats tracks aggregate counters for the current run.
type RunStats struct {
	TicksProcessed      uint64 `json:"ticks_processed"`
	DecisionsMade       int    `json:"decisions_made"`
	ActivitiesStarted   int    `json:"activities_started"`
	ActivitiesSucceeded int    `json:"activities_succeeded"`
	ActivitiesFailed    int    `json:"activities_failed"`
	ActivitiesDiscarded int    `json:"activities_discarded"`
	TalentPicksEarned   int    `json:"talent_picks_earned"`
	CriticalTicks       uint64 `json:"critical_ticks"`

	AvgMood      float64 `json:"avg_mood"`
	AvgOverskudd float64 `json:"avg_overskudd"`
}

// Simulation holds the complete run state and wires the systems
// together. A single mutex guards all state; the API layer and the
// tick loop both go through it.
type Simulation struct {
	mu sync.RWMutex

	cfg *balance.Config
	cat *catalog.Catalog

	Person  *person.Person
	Exec    *activity.Engine
	Decider *decision.Engine
	Talents *talent.System

	freeWill bool
	lastTick uint64
	events   []Event
	stats    RunStats

	// Running sums for the averaged stats, divided out on read.
	moodSum      float64
	overskuddSum float64

	// onChange fires after every processed tick, with no simulation
	// locks held. The API layer uses it to push state to websocket
	// subscribers.
	onChange func(tick uint64)
}

// NewSimulation builds a simulation from configuration and a seeded
// random source. Free will starts enabled.
func NewSimulation(cfg *balance.Config, cat *catalog.Catalog, rng *rand.Rand) *Simulation {
	p := person.New(cfg)
	align := personality.NewEngine(cfg.Alignment)
	exec := activity.NewEngine(cfg, cat, p, align, rng)
	dec := decision.NewEngine(cfg, cat, p, exec, align, rng)

	return &Simulation{
		cfg:      cfg,
		cat:      cat,
		Person:   p,
		Exec:     exec,
		Decider:  dec,
		Talents:  talent.NewSystem(cfg, cat, p, rng),
		freeWill: true,
	}
}

// OnChange registers the post-tick notification callback.
func (s *Simulation) OnChange(fn func(tick uint64)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// CurrentTick returns the most recently processed tick.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTick
}

// TickMinute runs every tick: passive decay and regeneration, activity
// execution, an autonomous decision when idle with an empty queue, and
// the talent milestone check.
func (s *Simulation) TickMinute(tick uint64) {
	s.mu.Lock()
	s.lastTick = tick
	s.stats.TicksProcessed++

	s.Person.AdvanceTick(s.cfg, person.TickContext{
		Speed:           1,
		InSocialContext: s.Exec.InSocialContext(),
		DietTarget:      s.Exec.DietTarget(),
	})

	s.moodSum += s.Person.Mood.Value()
	s.overskuddSum += s.Person.Resources.Overskudd

	out := s.Exec.ProcessTick(1)
	s.recordOutcome(tick, out)

	if s.freeWill && s.Exec.Idle() && s.Exec.QueueLen() == 0 {
		if d := s.Decider.Decide(tick); d != nil {
			s.stats.DecisionsMade++
			if d.Critical {
				s.stats.CriticalTicks++
			}
			if err := s.Exec.EnqueueID(d.ActivityID); err == nil {
				s.addEvent(tick, "decision",
					fmt.Sprintf("%s chose %s: %s", s.Person.Name, d.Name, d.Reason))
			}
		}
	}

	if earned := s.Talents.CheckThresholds(tick); earned > 0 {
		s.stats.TalentPicksEarned += earned
		s.addEvent(tick, "talent",
			fmt.Sprintf("%s earned %d talent pick(s)", s.Person.Name, earned))
	}

	notify := s.onChange
	s.mu.Unlock()

	if notify != nil {
		notify(tick)
	}
}

// recordOutcome turns an execution-tick outcome into events and stats.
// Caller holds the write lock.
func (s *Simulation) recordOutcome(tick uint64, out activity.TickOutcome) {
	for _, d := range out.Discards {
		s.stats.ActivitiesDiscarded++
		s.addEvent(tick, "activity",
			fmt.Sprintf("skipped %s: %s", d.ActivityID, d.Reason))
	}
	if out.StartedID != "" {
		s.stats.ActivitiesStarted++
	}
	if c := out.Completion; c != nil {
		if c.Success {
			s.stats.ActivitiesSucceeded++
			s.addEvent(tick, "activity",
				fmt.Sprintf("%s finished %s (mastery %d)", s.Person.Name, c.ActivityID, c.MasteryLevel))
		} else {
			s.stats.ActivitiesFailed++
			s.addEvent(tick, "activity",
				fmt.Sprintf("%s failed %s (p=%.2f)", s.Person.Name, c.ActivityID, c.Probability))
		}
	}
}

// TickHour runs every sim-hour: a compact status line.
func (s *Simulation) TickHour(tick uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	current := "idle"
	if a := s.Exec.Current(); a != nil {
		current = a.Def.ID
	}
	slog.Info("hourly status",
		"tick", tick,
		"time", SimTime(tick),
		"mood", fmt.Sprintf("%.1f", s.Person.Mood.Value()),
		"purpose", fmt.Sprintf("%.1f", s.Person.Purpose.Value()),
		"overskudd", fmt.Sprintf("%.1f", s.Person.Resources.Overskudd),
		"activity", current,
		"critical", len(s.Person.CriticalNeeds(s.cfg)),
	)
}

// TickDay runs every sim-day: the daily summary, then event-log trim.
func (s *Simulation) TickDay(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int)
	for _, e := range s.events {
		counts[e.Category]++
	}
	slog.Info("daily report",
		"tick", tick,
		"time", SimTime(tick),
		"decisions", s.stats.DecisionsMade,
		"completed", s.stats.ActivitiesSucceeded,
		"failed", s.stats.ActivitiesFailed,
		"discarded", s.stats.ActivitiesDiscarded,
		"talent_picks", s.stats.TalentPicksEarned,
		"events_activity", counts["activity"],
		"events_decision", counts["decision"],
	)

	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}
}

// addEvent appends to the event log. Caller holds the write lock.
func (s *Simulation) addEvent(tick uint64, category, description string) {
	s.events = append(s.events, Event{Tick: tick, Description: description, Category: category})
}

// Events returns up to limit recent events, oldest first. Zero or
// negative means all retained events.
func (s *Simulation) Events(limit int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evs := s.events
	if limit > 0 && len(evs) > limit {
		evs = evs[len(evs)-limit:]
	}
	out := make([]Event, len(evs))
	copy(out, evs)
	return out
}

// Stats returns a copy of the run counters with the averages filled in.
func (s *Simulation) Stats() RunStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statsLocked()
}

func (s *Simulation) statsLocked() RunStats {
	st := s.stats
	if st.TicksProcessed > 0 {
		st.AvgMood = s.moodSum / float64(st.TicksProcessed)
		st.AvgOverskudd = s.overskuddSum / float64(st.TicksProcessed)
	}
	return st
}

// FreeWill reports whether autonomous decisions are enabled.
func (s *Simulation) FreeWill() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.freeWill
}

// SetFreeWill toggles autonomous decisions. Queued and running
// activities are unaffected.
func (s *Simulation) SetFreeWill(enabled bool) {
	s.mu.Lock()
	s.freeWill = enabled
	s.mu.Unlock()
	slog.Info("free will toggled", "enabled", enabled)
}

// Status is the full observable state, assembled under one read lock.
type Status struct {
	Tick      uint64              `json:"tick"`
	SimTime   string              `json:"sim_time"`
	FreeWill  bool                `json:"free_will"`
	Person    person.State        `json:"person"`
	Phase     string              `json:"phase"`
	Current   *CurrentActivity    `json:"current_activity,omitempty"`
	Queue     []string            `json:"queue"`
	Stats     RunStats            `json:"stats"`
	Pending   int                 `json:"pending_talent_picks"`
	Offer     *talent.Offer       `json:"talent_offer,omitempty"`
	Decisions []decision.Decision `json:"recent_decisions"`
}

// CurrentActivity is the running activity's observable slice.
type CurrentActivity struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Progress     float64 `json:"progress"`
	MasteryLevel int     `json:"mastery_level"`
	MasteryXP    float64 `json:"mastery_xp"`
}

// Status assembles a consistent snapshot for the API layer.
func (s *Simulation) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		Tick:      s.lastTick,
		SimTime:   SimTime(s.lastTick),
		FreeWill:  s.freeWill,
		Person:    s.Person.Snapshot(),
		Phase:     string(s.Exec.State()),
		Queue:     s.Exec.QueueIDs(),
		Stats:     s.statsLocked(),
		Pending:   s.Talents.PendingPicks(),
		Offer:     s.Talents.CurrentOffer(),
		Decisions: s.Decider.Log(),
	}
	if a := s.Exec.Current(); a != nil {
		st.Current = &CurrentActivity{
			ID:           a.Def.ID,
			Name:         a.Def.Name,
			Progress:     a.Progress,
			MasteryLevel: a.Mastery.Level,
			MasteryXP:    a.Mastery.XP,
		}
	}
	return st
}

// EnqueueActivity adds an activity to the queue by id.
func (s *Simulation) EnqueueActivity(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Exec.EnqueueID(id); err != nil {
		return err
	}
	s.addEvent(s.lastTick, "activity", fmt.Sprintf("queued %s", id))
	return nil
}

// CancelQueued removes the queue entry at index.
func (s *Simulation) CancelQueued(index int) {
	s.mu.Lock()
	s.Exec.Cancel(index)
	s.mu.Unlock()
}

// ClearQueue drops every queued activity.
func (s *Simulation) ClearQueue() {
	s.mu.Lock()
	s.Exec.ClearQueue()
	s.mu.Unlock()
}

// SelectTalent spends a pending pick on an offered talent.
func (s *Simulation) SelectTalent(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Talents.Select(s.lastTick, id); err != nil {
		return err
	}
	s.addEvent(s.lastTick, "talent", fmt.Sprintf("%s gained talent %s", s.Person.Name, id))
	return nil
}

// UnlockSkill raises a skill level, spending domain XP.
func (s *Simulation) UnlockSkill(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Person.UnlockSkill(s.cat, s.cfg.Skills, id); err != nil {
		return err
	}
	s.addEvent(s.lastTick, "skill",
		fmt.Sprintf("%s raised %s to level %d", s.Person.Name, id, s.Person.Skills[id]))
	return nil
}

// Scores evaluates every catalog activity with the decision engine's
// scoring model (no hysteresis, no sampling). Read-only.
func (s *Simulation) Scores() []decision.Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]decision.Candidate, 0, len(s.cat.ActivityOrder))
	for _, id := range s.cat.ActivityOrder {
		out = append(out, s.Decider.Score(s.cat.Activities[id]))
	}
	return out
}

// Startable reports which activities the person could begin right now.
func (s *Simulation) Startable() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.cat.ActivityOrder))
	for _, id := range s.cat.ActivityOrder {
		out[id] = s.Exec.CanStart(s.cat.Activities[id]) == nil
	}
	return out
}

// SkillUnlockCost returns the domain XP cost of the next level of a skill.
func (s *Simulation) SkillUnlockCost(id string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Skills.UnlockCost(s.Person.Skills[id] + 1)
}

// OverrideTrait sets a personality trait directly. Development tool;
// alignment multipliers of queued instances are unchanged until they
// are re-enqueued.
func (s *Simulation) OverrideTrait(trait string, value float64) error {
	t := personality.Trait(trait)
	switch t {
	case personality.Openness, personality.Conscientiousness, personality.Extraversion,
		personality.Agreeableness, personality.Neuroticism:
	default:
		return fmt.Errorf("unknown trait %q", trait)
	}
	s.mu.Lock()
	s.Person.OverrideTrait(t, value)
	s.mu.Unlock()
	return nil
}
