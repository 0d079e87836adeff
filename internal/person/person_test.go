package person

import (
	"testing"

	"github.com/talgya/lifesim/internal/balance"
	"github.com/talgya/lifesim/internal/catalog"
)

func newTestPerson() (*Person, *balance.Config) {
	cfg := balance.Default()
	return New(cfg), cfg
}

func TestAdvanceTick_NeedsDecay(t *testing.T) {
	p, cfg := newTestPerson()
	before := p.Needs.Hunger
	p.AdvanceTick(cfg, TickContext{Speed: 1})
	if p.Needs.Hunger >= before {
		t.Errorf("hunger should decay: %v -> %v", before, p.Needs.Hunger)
	}
	// Physiological needs decay faster than social ones.
	hungerLoss := before - p.Needs.Hunger
	securityLoss := 75 - p.Needs.Security
	if hungerLoss <= securityLoss {
		t.Errorf("hunger loss %v should exceed security loss %v", hungerLoss, securityLoss)
	}
}

func TestAdvanceTick_NeedsNeverNegative(t *testing.T) {
	p, cfg := newTestPerson()
	for _, k := range AllNeeds() {
		p.Needs.Set(k, 0.5)
	}
	for i := 0; i < 1000; i++ {
		p.AdvanceTick(cfg, TickContext{Speed: 1})
	}
	for _, k := range AllNeeds() {
		if p.Needs.Get(k) < 0 {
			t.Errorf("need %s went negative: %v", k, p.Needs.Get(k))
		}
	}
}

func TestAdvanceTick_ZeroSpeedIsNoop(t *testing.T) {
	p, cfg := newTestPerson()
	before := p.Snapshot()
	p.AdvanceTick(cfg, TickContext{Speed: 0})
	after := p.Snapshot()
	if before.Needs != after.Needs || before.Resources != after.Resources {
		t.Error("speed 0 should not change state")
	}
}

func TestSocialBatteryDirection(t *testing.T) {
	cfg := balance.Default()

	extravert := New(cfg)
	extravert.Personality.Extraversion = 90
	extravert.Resources.SocialBattery = 50
	extravert.AdvanceTick(cfg, TickContext{Speed: 1, InSocialContext: true})
	if extravert.Resources.SocialBattery <= 50 {
		t.Errorf("extravert in company should charge, got %v", extravert.Resources.SocialBattery)
	}

	introvert := New(cfg)
	introvert.Personality.Extraversion = 10
	introvert.Resources.SocialBattery = 50
	introvert.AdvanceTick(cfg, TickContext{Speed: 1, InSocialContext: true})
	if introvert.Resources.SocialBattery >= 50 {
		t.Errorf("introvert in company should drain, got %v", introvert.Resources.SocialBattery)
	}

	introvert.Resources.SocialBattery = 50
	introvert.AdvanceTick(cfg, TickContext{Speed: 1, InSocialContext: false})
	if introvert.Resources.SocialBattery <= 50 {
		t.Errorf("introvert alone should recharge, got %v", introvert.Resources.SocialBattery)
	}
}

func TestWillpowerTracksDynamicTarget(t *testing.T) {
	cfg := balance.Default()
	p := New(cfg)
	p.Personality.Conscientiousness = 90
	p.Resources.Willpower = 50

	for i := 0; i < 500; i++ {
		// Keep needs topped up so no critical penalty applies.
		for _, k := range AllNeeds() {
			p.Needs.Set(k, 90)
		}
		p.AdvanceTick(cfg, TickContext{Speed: 1})
	}
	// Target = 50 + (90-50)*0.5 = 70.
	if p.Resources.Willpower < 65 || p.Resources.Willpower > 75 {
		t.Errorf("willpower should settle near 70, got %v", p.Resources.Willpower)
	}
}

func TestMoodRespondsToNeeds(t *testing.T) {
	cfg := balance.Default()

	miserable := New(cfg)
	for _, k := range AllNeeds() {
		miserable.Needs.Set(k, 5)
	}
	content := New(cfg)
	for _, k := range AllNeeds() {
		content.Needs.Set(k, 95)
	}

	for i := 0; i < 50; i++ {
		// Re-pin needs so decay does not interfere with the comparison.
		for _, k := range AllNeeds() {
			miserable.Needs.Set(k, 5)
			content.Needs.Set(k, 95)
		}
		miserable.updateDerived(cfg, TickContext{Speed: 1})
		content.updateDerived(cfg, TickContext{Speed: 1})
	}

	if miserable.Mood.Value() >= 50 {
		t.Errorf("starved person should be below neutral mood, got %v", miserable.Mood.Value())
	}
	if content.Mood.Value() <= 50 {
		t.Errorf("satisfied person should be above neutral mood, got %v", content.Mood.Value())
	}
}

func TestCriticalNeeds(t *testing.T) {
	cfg := balance.Default()
	p := New(cfg)
	for _, k := range AllNeeds() {
		p.Needs.Set(k, 50)
	}
	if got := p.CriticalNeeds(cfg); len(got) != 0 {
		t.Errorf("no needs should be critical, got %v", got)
	}
	p.Needs.Set(NeedHunger, 10)
	p.Needs.Set(NeedBladder, 14)
	got := p.CriticalNeeds(cfg)
	if len(got) != 2 {
		t.Fatalf("want 2 critical needs, got %v", got)
	}
}

func testSkillCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Skills: map[string]catalog.SkillDef{
			"cooking_basics": {ID: "cooking_basics", Name: "Cooking Basics", Domain: catalog.DomainPhysical},
			"meal_planning": {
				ID: "meal_planning", Name: "Meal Planning", Domain: catalog.DomainOrganisational,
				Prerequisites: []string{"cooking_basics"},
			},
		},
	}
}

func TestUnlockSkill(t *testing.T) {
	cfg := balance.Default()
	p := New(cfg)
	cat := testSkillCatalog()

	// No XP yet.
	if err := p.UnlockSkill(cat, cfg.Skills, "cooking_basics"); err == nil {
		t.Fatal("expected error without XP")
	}

	p.AddDomainXP(catalog.DomainPhysical, 60)
	if err := p.UnlockSkill(cat, cfg.Skills, "cooking_basics"); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	if p.SkillLevel("cooking_basics") != 1 {
		t.Errorf("level = %d, want 1", p.SkillLevel("cooking_basics"))
	}
	if p.DomainXP[catalog.DomainPhysical] != 10 {
		t.Errorf("remaining XP = %v, want 10", p.DomainXP[catalog.DomainPhysical])
	}

	// Prerequisite enforcement crosses domains.
	p.AddDomainXP(catalog.DomainOrganisational, 100)
	if err := p.UnlockSkill(cat, cfg.Skills, "meal_planning"); err != nil {
		t.Fatalf("prerequisite at level 1 should satisfy: %v", err)
	}

	if err := p.UnlockSkill(cat, cfg.Skills, "no_such_skill"); err == nil {
		t.Fatal("expected error for unknown skill")
	}
}

func TestUnlockCostEscalates(t *testing.T) {
	cfg := balance.Default()
	// Level 1 costs 50, level 2 costs 75, level 3 costs 100.
	if got := cfg.Skills.UnlockCost(1); got != 50 {
		t.Errorf("cost(1) = %v", got)
	}
	if got := cfg.Skills.UnlockCost(2); got != 75 {
		t.Errorf("cost(2) = %v", got)
	}
	if got := cfg.Skills.UnlockCost(3); got != 100 {
		t.Errorf("cost(3) = %v", got)
	}
}

func TestApplyTalentModifiers(t *testing.T) {
	cfg := balance.Default()
	p := New(cfg)
	base := p.EffectiveCapacity(CapWorkingMemory)

	p.ApplyTalent(catalog.TalentDef{
		ID: "eidetic_flashes", Rarity: "rare",
		Effects: []catalog.TalentEffect{
			{Target: "capacity", Key: "working_memory", Add: 10},
			{Target: "resource_rate", Key: "focus", Pct: 0.2},
		},
	})

	if got := p.EffectiveCapacity(CapWorkingMemory); got != base+10 {
		t.Errorf("effective capacity = %v, want %v", got, base+10)
	}
	if !p.HasTalent("eidetic_flashes") {
		t.Error("talent should be recorded")
	}

	// Focus regen is boosted by the percentage modifier.
	p.Resources.Focus = 50
	p.AdvanceTick(cfg, TickContext{Speed: 1})
	gain := p.Resources.Focus - 50
	want := cfg.Resources.RegenRates["focus"] * 1.2
	if gain < want-1e-9 {
		t.Errorf("focus regen %v, want at least %v", gain, want)
	}
}
