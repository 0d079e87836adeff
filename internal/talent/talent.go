// Package talent accrues talent picks from domain-XP milestones and
// runs the rarity-weighted offer lottery.
package talent

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sort"

	"github.com/talgya/lifesim/internal/balance"
	"github.com/talgya/lifesim/internal/catalog"
	"github.com/talgya/lifesim/internal/person"
	"github.com/talgya/lifesim/internal/sampling"
)

// Offer is a pending choice of talents presented to the player.
type Offer struct {
	Tick    uint64              `json:"tick"`
	Options []catalog.TalentDef `json:"options"`
}

// System tracks earned picks and the current offer. Milestones already
// banked are remembered per domain, so XP crossing a threshold earns a
// pick exactly once.
type System struct {
	cfg *balance.Config
	cat *catalog.Catalog
	p   *person.Person
	rng *rand.Rand

	pendingPicks int
	offer        *Offer
	banked       map[catalog.Domain]int
}

// NewSystem creates a talent system for the given person.
func NewSystem(cfg *balance.Config, cat *catalog.Catalog, p *person.Person, rng *rand.Rand) *System {
	return &System{
		cfg:    cfg,
		cat:    cat,
		p:      p,
		rng:    rng,
		banked: map[catalog.Domain]int{},
	}
}

// PendingPicks returns the number of unspent talent picks.
func (s *System) PendingPicks() int { return s.pendingPicks }

// CurrentOffer returns the open offer, or nil when there is none.
func (s *System) CurrentOffer() *Offer { return s.offer }

// CheckThresholds banks newly crossed domain-XP milestones as picks and
// opens an offer if one is due. Returns the number of picks earned this
// call. Total pending picks never exceed the configured cap; milestones
// crossed while at the cap are lost, not deferred.
func (s *System) CheckThresholds(tick uint64) int {
	tcfg := s.cfg.Talents
	if tcfg.XPPerPick <= 0 {
		return 0
	}

	domains := make([]catalog.Domain, 0, len(s.p.DomainXP))
	for d := range s.p.DomainXP {
		domains = append(domains, d)
	}
	sort.Slice(domains, func(i, j int) bool { return domains[i] < domains[j] })

	earned := 0
	for _, d := range domains {
		crossed := int(s.p.DomainXP[d] / tcfg.XPPerPick)
		if crossed > s.banked[d] {
			earned += crossed - s.banked[d]
			s.banked[d] = crossed
		}
	}
	if earned > 0 {
		s.pendingPicks += earned
		if s.pendingPicks > tcfg.MaxPendingPicks {
			s.pendingPicks = tcfg.MaxPendingPicks
		}
		slog.Info("talent picks earned", "earned", earned, "pending", s.pendingPicks)
	}

	if s.pendingPicks > 0 && s.offer == nil {
		s.offer = s.generateOffer(tick)
	}
	return earned
}

// generateOffer samples the configured number of distinct unowned
// talents by rarity weight. When too few talents remain, no offer is
// made; the pick stays pending.
func (s *System) generateOffer(tick uint64) *Offer {
	tcfg := s.cfg.Talents

	var pool []catalog.TalentDef
	var weights []float64
	for _, id := range s.cat.TalentOrder {
		def := s.cat.Talents[id]
		if s.p.HasTalent(id) {
			continue
		}
		pool = append(pool, def)
		weights = append(weights, tcfg.RarityWeight(def.Rarity))
	}

	if len(pool) < tcfg.OfferSize {
		slog.Warn("not enough talents left to build an offer",
			"remaining", len(pool), "offer_size", tcfg.OfferSize)
		return nil
	}

	picked, err := sampling.WeightedSampleWithoutReplacement(s.rng, weights, tcfg.OfferSize)
	if err != nil {
		slog.Warn("talent offer sampling failed", "error", err)
		return nil
	}

	offer := &Offer{Tick: tick}
	for _, i := range picked {
		offer.Options = append(offer.Options, pool[i])
	}
	return offer
}

// Select spends a pending pick on one of the offered talents. The
// person gains the talent's permanent modifiers immediately. If picks
// remain afterwards, a fresh offer is opened on the spot.
func (s *System) Select(tick uint64, id string) error {
	if s.offer == nil {
		return fmt.Errorf("no talent offer is open")
	}
	var chosen *catalog.TalentDef
	for i := range s.offer.Options {
		if s.offer.Options[i].ID == id {
			chosen = &s.offer.Options[i]
			break
		}
	}
	if chosen == nil {
		return fmt.Errorf("talent %q is not part of the current offer", id)
	}

	s.p.ApplyTalent(*chosen)
	s.pendingPicks--
	s.offer = nil
	slog.Info("talent selected", "talent", chosen.ID, "rarity", chosen.Rarity, "pending", s.pendingPicks)

	if s.pendingPicks > 0 {
		s.offer = s.generateOffer(tick)
	}
	return nil
}
