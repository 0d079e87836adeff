// Package decision implements the autonomous activity selection: a
// five-factor utility score with personality-driven variety under
// normal conditions, and a deterministic override when physiological
// needs turn critical.
package decision

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/talgya/lifesim/internal/activity"
	"github.com/talgya/lifesim/internal/balance"
	"github.com/talgya/lifesim/internal/catalog"
	"github.com/talgya/lifesim/internal/curves"
	"github.com/talgya/lifesim/internal/person"
	"github.com/talgya/lifesim/internal/personality"
	"github.com/talgya/lifesim/internal/sampling"
)

// criticalNeeds are the physiological needs that trigger override mode.
var criticalNeeds = []person.NeedKind{
	person.NeedHunger, person.NeedBladder, person.NeedEnergy,
}

// Factors is the five-factor breakdown of a normal-mode score, each on
// a 0–100 scale.
type Factors struct {
	NeedUrgency          float64 `json:"need_urgency"`
	PersonalityFit       float64 `json:"personality_fit"`
	ResourceAvailability float64 `json:"resource_availability"`
	WillpowerMatch       float64 `json:"willpower_match"`
	MoodDelta            float64 `json:"mood_delta"`
}

// factorPhrases is the fixed factor→phrase table for the natural
// language "top reason".
var factorPhrases = map[string]string{
	"need_urgency":          "pressing needs to take care of",
	"personality_fit":       "it suits their personality",
	"resource_availability": "they have the energy for it",
	"willpower_match":       "it feels manageable right now",
	"mood_delta":            "it promises a mood lift",
}

// Candidate is one scored activity.
type Candidate struct {
	ActivityID string  `json:"activity_id"`
	Name       string  `json:"name"`
	Score      float64 `json:"score"`
	Factors    Factors `json:"factors"`
}

// Decision records one autonomous choice: the winner, a human-readable
// top reason, the full breakdown, and up to two runner-ups.
type Decision struct {
	Tick         uint64      `json:"tick"`
	ActivityID   string      `json:"activity_id"`
	Name         string      `json:"name"`
	Reason       string      `json:"reason"`
	Score        float64     `json:"score"`
	Critical     bool        `json:"critical"`
	Factors      Factors     `json:"factors"`
	Alternatives []Candidate `json:"alternatives,omitempty"`
}

// Engine scores startable activities against the person's state. All
// collaborators are injected at construction.
type Engine struct {
	cfg   *balance.Config
	cat   *catalog.Catalog
	p     *person.Person
	exec  *activity.Engine
	align *personality.Engine
	rng   *rand.Rand

	log []Decision
}

// NewEngine creates a decision engine for the given person and
// execution engine.
func NewEngine(cfg *balance.Config, cat *catalog.Catalog, p *person.Person, exec *activity.Engine, align *personality.Engine, rng *rand.Rand) *Engine {
	return &Engine{cfg: cfg, cat: cat, p: p, exec: exec, align: align, rng: rng}
}

// Log returns the retained decisions, oldest first.
func (e *Engine) Log() []Decision {
	out := make([]Decision, len(e.log))
	copy(out, e.log)
	return out
}

// ShouldOverrideToCriticalMode reports whether hunger, bladder, or
// energy has fallen below its critical threshold.
func (e *Engine) ShouldOverrideToCriticalMode() bool {
	for _, k := range criticalNeeds {
		if e.p.Needs.Get(k) < e.cfg.Needs.CriticalThreshold(string(k)) {
			return true
		}
	}
	return false
}

// Decide selects an activity, or returns nil when nothing is startable
// or worth doing. Degenerate states never raise an error.
func (e *Engine) Decide(tick uint64) *Decision {
	startable := e.startableDefs()
	if len(startable) == 0 {
		return nil
	}

	var d *Decision
	if e.ShouldOverrideToCriticalMode() {
		d = e.decideCritical(startable)
	} else {
		d = e.decideNormal(startable)
	}
	if d == nil {
		return nil
	}

	d.Tick = tick
	e.log = append(e.log, *d)
	if size := e.cfg.Decision.LogSize; size > 0 && len(e.log) > size {
		e.log = e.log[len(e.log)-size:]
	}
	return d
}

// startableDefs returns catalog activities that pass CanStart, in
// stable catalog order.
func (e *Engine) startableDefs() []catalog.ActivityDef {
	var out []catalog.ActivityDef
	for _, id := range e.cat.ActivityOrder {
		def := e.cat.Activities[id]
		if e.exec.CanStart(def) == nil {
			out = append(out, def)
		}
	}
	return out
}

// decideCritical picks the activity that best restores whichever of
// the critical needs are below threshold. Deterministic: the highest
// score wins, no randomness. When nothing startable restores a critical
// need the result is no decision at all.
func (e *Engine) decideCritical(defs []catalog.ActivityDef) *Decision {
	best := -1.0
	var bestDef catalog.ActivityDef
	var bestNeed person.NeedKind

	for _, def := range defs {
		score, need := e.ScoreInCriticalMode(def)
		if score > best {
			best = score
			bestDef = def
			bestNeed = need
		}
	}
	if best <= 0 {
		return nil
	}
	return &Decision{
		ActivityID: bestDef.ID,
		Name:       bestDef.Name,
		Reason:     fmt.Sprintf("critically low %s", bestNeed),
		Score:      best,
		Critical:   true,
	}
}

// ScoreInCriticalMode sums restoration-weighted deficits across the
// critical needs below threshold. Activities that restore none of them
// score zero. Also returns the deepest-deficit need the activity
// addresses, for the reason string.
func (e *Engine) ScoreInCriticalMode(def catalog.ActivityDef) (float64, person.NeedKind) {
	total := 0.0
	bestContribution := 0.0
	var bestNeed person.NeedKind

	for _, k := range criticalNeeds {
		threshold := e.cfg.Needs.CriticalThreshold(string(k))
		value := e.p.Needs.Get(k)
		if value >= threshold {
			continue
		}
		restoration := def.Effects[string(k)]
		if restoration <= 0 {
			continue
		}
		contribution := restoration * (threshold - value)
		total += contribution
		if contribution > bestContribution {
			bestContribution = contribution
			bestNeed = k
		}
	}
	return total, bestNeed
}

// decideNormal runs the five-factor scoring, shortlists, applies the
// variety transform, and samples a winner.
func (e *Engine) decideNormal(defs []catalog.ActivityDef) *Decision {
	dcfg := e.cfg.Decision
	currentID := ""
	if cur := e.exec.Current(); cur != nil {
		currentID = cur.Def.ID
	}

	candidates := make([]Candidate, 0, len(defs))
	for _, def := range defs {
		c := e.Score(def)
		if def.ID == currentID {
			c.Score = clamp(c.Score*dcfg.HysteresisBonus, 0, 100)
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if candidates[0].Score <= 0 {
		return nil
	}
	if len(candidates) > dcfg.TopCandidates {
		candidates = candidates[:dcfg.TopCandidates]
	}
	cutoff := candidates[0].Score * dcfg.ShortlistRatio
	shortlist := candidates[:0:0]
	for _, c := range candidates {
		if c.Score >= cutoff {
			shortlist = append(shortlist, c)
		}
	}

	// Variety transform: openness flattens the distribution toward
	// randomness, conscientiousness sharpens it toward the top choice.
	variety := 1 +
		(e.p.Personality.Openness-50)*dcfg.VarietyOpenness -
		(e.p.Personality.Conscientiousness-50)*dcfg.VarietyConscientiousness
	if variety < 0.1 {
		variety = 0.1
	}
	weights := make([]float64, len(shortlist))
	for i, c := range shortlist {
		weights[i] = math.Pow(c.Score, 1/variety)
	}

	picked, err := sampling.WeightedSampleWithoutReplacement(e.rng, weights, 1)
	if err != nil {
		// Shortlist is non-empty with a positive best score, so this
		// only happens if every weight degenerated; fall back to the top.
		picked = []int{0}
	}
	winner := shortlist[picked[0]]

	var alternatives []Candidate
	for _, c := range shortlist {
		if c.ActivityID == winner.ActivityID {
			continue
		}
		alternatives = append(alternatives, c)
		if len(alternatives) >= dcfg.MaxAlternatives {
			break
		}
	}

	return &Decision{
		ActivityID:   winner.ActivityID,
		Name:         winner.Name,
		Reason:       e.topReason(winner.Factors),
		Score:        winner.Score,
		Factors:      winner.Factors,
		Alternatives: alternatives,
	}
}

// Score computes the plain five-factor score for one activity against
// the person's current state. The hysteresis bonus for the running
// activity is applied by Decide, not here.
func (e *Engine) Score(def catalog.ActivityDef) Candidate {
	dcfg := e.cfg.Decision
	f := e.scoreFactors(def, e.masteryFor(def))
	score := f.NeedUrgency*dcfg.NeedWeight +
		f.PersonalityFit*dcfg.PersonalityWeight +
		f.ResourceAvailability*dcfg.ResourceWeight +
		f.WillpowerMatch*dcfg.WillpowerWeight +
		f.MoodDelta*dcfg.MoodWeight
	return Candidate{
		ActivityID: def.ID,
		Name:       def.Name,
		Score:      clamp(score, 0, 100),
		Factors:    f,
	}
}

// masteryFor uses the running instance's mastery when scoring the
// current activity, and fresh mastery otherwise.
func (e *Engine) masteryFor(def catalog.ActivityDef) activity.Mastery {
	if cur := e.exec.Current(); cur != nil && cur.Def.ID == def.ID {
		return cur.Mastery
	}
	return activity.NewMastery()
}

func (e *Engine) scoreFactors(def catalog.ActivityDef, mastery activity.Mastery) Factors {
	return Factors{
		NeedUrgency:          e.needUrgency(def),
		PersonalityFit:       e.personalityFit(def),
		ResourceAvailability: e.resourceAvailability(def, mastery),
		WillpowerMatch:       e.willpowerMatch(def, mastery),
		MoodDelta:            e.moodDelta(def, mastery),
	}
}

// needUrgency weights an inverted sigmoid of each restored need by the
// restoration magnitude. Needs above the satiation threshold contribute
// a linear penalty instead, suppressing over-fulfillment.
func (e *Engine) needUrgency(def catalog.ActivityDef) float64 {
	dcfg := e.cfg.Decision
	totalWeight := 0.0
	weighted := 0.0

	for _, k := range person.AllNeeds() {
		restoration := def.Effects[string(k)]
		if restoration <= 0 {
			continue
		}
		value := e.p.Needs.Get(k)

		var contribution float64
		if value > dcfg.SatiationThreshold {
			span := 100 - dcfg.SatiationThreshold
			contribution = -(value - dcfg.SatiationThreshold) / span * dcfg.SatiationMaxPenalty
		} else {
			// Inverted sigmoid: low value, high urgency.
			contribution = 50 - curves.NeedToMoodCurve(value, 1.0, dcfg.UrgencySteepness)
		}
		weighted += restoration * contribution
		totalWeight += restoration
	}
	if totalWeight <= 0 {
		return 0
	}
	return clamp(weighted/totalWeight, 0, 100)
}

// personalityFit rescales the alignment gain multiplier onto 0–100.
func (e *Engine) personalityFit(def catalog.ActivityDef) float64 {
	gain := e.align.Align(def.Tags, e.p.Personality).GainMultiplier
	lo, hi := e.cfg.Alignment.MultiplierMin, e.cfg.Alignment.MultiplierMax
	if hi <= lo {
		return 50
	}
	return clamp((gain-lo)/(hi-lo)*100, 0, 100)
}

// resourceAvailability is the bottleneck ratio of current resources to
// total expected cost, neutral at 50 once comfortably affordable. There
// is no bonus for being cheap, only a penalty for being barely
// affordable.
func (e *Engine) resourceAvailability(def catalog.ActivityDef, mastery activity.Mastery) float64 {
	dcfg := e.cfg.Decision
	estTicks := e.exec.ExpectedTicks(def, mastery)

	worst := math.Inf(1)
	for _, k := range person.AllResources() {
		drain := -def.Effects[string(k)]
		if drain <= 0 {
			continue
		}
		totalCost := drain * estTicks
		if totalCost <= 0 {
			continue
		}
		ratio := e.p.Resources.Get(k) / totalCost
		if ratio < worst {
			worst = ratio
		}
	}
	if math.IsInf(worst, 1) || worst >= dcfg.ResourceComfortRatio {
		return 50
	}
	return clamp(worst/dcfg.ResourceComfortRatio*50, 0, 50)
}

// willpowerMatch penalizes effective difficulty: neutral for easy
// activities, falling to zero at the hardest.
func (e *Engine) willpowerMatch(def catalog.ActivityDef, mastery activity.Mastery) float64 {
	dcfg := e.cfg.Decision
	d := activity.EffectiveDifficulty(e.cfg, def, e.p, mastery)
	if d <= dcfg.WillpowerEasyLimit {
		return 50
	}
	max := e.cfg.Activity.DifficultyMax
	if d >= max {
		return 0
	}
	return 50 * (max - d) / (max - dcfg.WillpowerEasyLimit)
}

// moodDelta projects the mood-curve change across restored needs over
// the activity's expected run.
func (e *Engine) moodDelta(def catalog.ActivityDef, mastery activity.Mastery) float64 {
	dcfg := e.cfg.Decision
	estTicks := e.exec.ExpectedTicks(def, mastery)

	delta := 0.0
	for _, k := range person.AllNeeds() {
		restoration := def.Effects[string(k)]
		if restoration <= 0 {
			continue
		}
		before := e.p.Needs.Get(k)
		after := before + restoration*estTicks
		if after > 100 {
			after = 100
		}
		weight := e.cfg.Derived.MoodWeights[string(k)]
		delta += curves.NeedToMoodCurve(after, weight, e.cfg.Derived.MoodSteepness) -
			curves.NeedToMoodCurve(before, weight, e.cfg.Derived.MoodSteepness)
	}
	return clamp(delta*dcfg.MoodDeltaScale, 0, 100)
}

// topReason names the dominant weighted factor through the fixed
// phrase table.
func (e *Engine) topReason(f Factors) string {
	dcfg := e.cfg.Decision
	contributions := []struct {
		key   string
		value float64
	}{
		{"need_urgency", f.NeedUrgency * dcfg.NeedWeight},
		{"personality_fit", f.PersonalityFit * dcfg.PersonalityWeight},
		{"resource_availability", f.ResourceAvailability * dcfg.ResourceWeight},
		{"willpower_match", f.WillpowerMatch * dcfg.WillpowerWeight},
		{"mood_delta", f.MoodDelta * dcfg.MoodWeight},
	}
	best := contributions[0]
	for _, c := range contributions[1:] {
		if c.value > best.value {
			best = c
		}
	}
	return factorPhrases[best.key]
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
