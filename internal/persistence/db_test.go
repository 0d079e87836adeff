package persistence

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/talgya/lifesim/internal/balance"
	"github.com/talgya/lifesim/internal/catalog"
	"github.com/talgya/lifesim/internal/decision"
	"github.com/talgya/lifesim/internal/engine"
	"github.com/talgya/lifesim/internal/person"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "telemetry.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSnapshot_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	runID, err := db.CreateRun(42, "digest")
	if err != nil {
		t.Fatal(err)
	}

	status := engine.Status{
		Tick:    120,
		SimTime: engine.SimTime(120),
		Person: person.State{
			Name: "Kari",
			Mood: 63.5,
		},
		Queue: []string{"eat_a_meal"},
	}
	if err := db.SaveSnapshot(runID, status); err != nil {
		t.Fatal(err)
	}

	got, err := db.LoadSnapshot(runID, 120)
	if err != nil {
		t.Fatal(err)
	}
	if got.Tick != 120 || got.Person.Name != "Kari" || got.Person.Mood != 63.5 {
		t.Errorf("snapshot = %+v", got)
	}
	if len(got.Queue) != 1 || got.Queue[0] != "eat_a_meal" {
		t.Errorf("queue = %v", got.Queue)
	}
}

func TestSnapshot_SameTickReplaces(t *testing.T) {
	db := openTestDB(t)
	runID, _ := db.CreateRun(1, "d")

	if err := db.SaveSnapshot(runID, engine.Status{Tick: 5, Phase: "idle"}); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveSnapshot(runID, engine.Status{Tick: 5, Phase: "active"}); err != nil {
		t.Fatal(err)
	}

	ticks, err := db.SnapshotTicks(runID)
	if err != nil {
		t.Fatal(err)
	}
	if len(ticks) != 1 {
		t.Fatalf("ticks = %v, want one entry", ticks)
	}
	got, _ := db.LoadSnapshot(runID, 5)
	if got.Phase != "active" {
		t.Errorf("phase = %q, want the replacement", got.Phase)
	}
}

func TestDecisionHistory_TickOrder(t *testing.T) {
	db := openTestDB(t)
	runID, _ := db.CreateRun(1, "d")

	batch := []decision.Decision{
		{Tick: 10, ActivityID: "doodle", Reason: "it promises a mood lift", Score: 61},
		{Tick: 25, ActivityID: "eat_a_meal", Reason: "critically low hunger", Score: 90, Critical: true},
		{Tick: 40, ActivityID: "take_a_nap", Reason: "pressing needs to take care of", Score: 72},
	}
	if err := db.SaveDecisions(runID, batch); err != nil {
		t.Fatal(err)
	}

	rows, err := db.DecisionHistory(runID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want the 2 newest", len(rows))
	}
	if rows[0].Tick != 25 || rows[1].Tick != 40 {
		t.Errorf("ticks = %d, %d, want 25 then 40", rows[0].Tick, rows[1].Tick)
	}
	if !rows[0].Critical {
		t.Error("critical flag lost in the round trip")
	}
}

func TestRecentEvents_OldestFirst(t *testing.T) {
	db := openTestDB(t)
	runID, _ := db.CreateRun(1, "d")

	evs := []engine.Event{
		{Tick: 1, Description: "queued doodle", Category: "activity"},
		{Tick: 2, Description: "Kari chose Doodle", Category: "decision"},
		{Tick: 12, Description: "Kari finished doodle (mastery 1)", Category: "activity"},
	}
	if err := db.SaveEvents(runID, evs); err != nil {
		t.Fatal(err)
	}

	got, err := db.RecentEvents(runID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("events = %d, want 3", len(got))
	}
	if got[0].Tick != 1 || got[2].Tick != 12 {
		t.Errorf("order = %d..%d, want oldest first", got[0].Tick, got[2].Tick)
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	db := openTestDB(t)

	var mode string
	if err := db.conn.Get(&mode, "PRAGMA journal_mode"); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	var timeout int
	if err := db.conn.Get(&timeout, "PRAGMA busy_timeout"); err != nil {
		t.Fatal(err)
	}
	if timeout != 5000 {
		t.Errorf("busy_timeout = %d, want 5000", timeout)
	}
}

func testSim(t *testing.T) *engine.Simulation {
	t.Helper()
	cat := &catalog.Catalog{
		Activities: map[string]catalog.ActivityDef{},
		Skills:     map[string]catalog.SkillDef{},
		Talents:    map[string]catalog.TalentDef{},
	}
	defs := []catalog.ActivityDef{
		{
			ID: "eat_a_meal", Name: "Eat a Meal", Domain: catalog.DomainPhysical,
			Duration: catalog.DurationFixed, BaseTicks: 15,
			Effects: map[string]float64{"hunger": 5},
		},
		{
			ID: "doodle", Name: "Doodle", Domain: catalog.DomainCreative,
			Duration: catalog.DurationFixed, BaseTicks: 10,
			Effects: map[string]float64{"fun": 2},
		},
	}
	for _, d := range defs {
		cat.Activities[d.ID] = d
		cat.ActivityOrder = append(cat.ActivityOrder, d.ID)
	}
	return engine.NewSimulation(balance.Default(), cat, rand.New(rand.NewSource(9)))
}

func TestSaveRunState_RepeatedSavesDoNotDuplicate(t *testing.T) {
	db := openTestDB(t)
	runID, _ := db.CreateRun(9, "d")
	sim := testSim(t)

	for tick := uint64(1); tick <= 30; tick++ {
		sim.TickMinute(tick)
	}
	if len(sim.Status().Decisions) == 0 {
		t.Fatal("expected the sim to have made decisions")
	}

	if err := db.SaveRunState(runID, sim); err != nil {
		t.Fatal(err)
	}
	first, err := db.DecisionHistory(runID, 1000)
	if err != nil {
		t.Fatal(err)
	}
	firstEvents, err := db.RecentEvents(runID, 1000)
	if err != nil {
		t.Fatal(err)
	}

	// Same state saved again: nothing new has happened, so nothing new
	// may be written.
	if err := db.SaveRunState(runID, sim); err != nil {
		t.Fatal(err)
	}
	second, err := db.DecisionHistory(runID, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != len(first) {
		t.Errorf("decisions after re-save = %d, want %d", len(second), len(first))
	}
	secondEvents, err := db.RecentEvents(runID, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(secondEvents) != len(firstEvents) {
		t.Errorf("events after re-save = %d, want %d", len(secondEvents), len(firstEvents))
	}

	seen := map[uint64]int{}
	for _, row := range second {
		seen[row.Tick]++
		if seen[row.Tick] > 1 {
			t.Errorf("decision at tick %d persisted %d times, want 1", row.Tick, seen[row.Tick])
		}
	}
}

func TestSaveRunState_LaterSaveAppendsNewEntries(t *testing.T) {
	db := openTestDB(t)
	runID, _ := db.CreateRun(9, "d")
	sim := testSim(t)

	for tick := uint64(1); tick <= 30; tick++ {
		sim.TickMinute(tick)
	}
	if err := db.SaveRunState(runID, sim); err != nil {
		t.Fatal(err)
	}
	before, _ := db.RecentEvents(runID, 1000)

	for tick := uint64(31); tick <= 60; tick++ {
		sim.TickMinute(tick)
	}
	if err := db.SaveRunState(runID, sim); err != nil {
		t.Fatal(err)
	}

	after, err := db.RecentEvents(runID, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) <= len(before) {
		t.Errorf("events = %d after more ticks, want more than %d", len(after), len(before))
	}
	if got, _ := db.GetMeta(runID, "last_tick"); got != "60" {
		t.Errorf("last_tick = %q, want 60", got)
	}
}

func TestMeta_ScopedToRun(t *testing.T) {
	db := openTestDB(t)
	a, _ := db.CreateRun(1, "d")
	b, _ := db.CreateRun(2, "d")

	if err := db.SaveMeta(a, "last_tick", "100"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveMeta(b, "last_tick", "200"); err != nil {
		t.Fatal(err)
	}

	if v, _ := db.GetMeta(a, "last_tick"); v != "100" {
		t.Errorf("run a last_tick = %q", v)
	}
	if v, _ := db.GetMeta(b, "last_tick"); v != "200" {
		t.Errorf("run b last_tick = %q", v)
	}
	if _, err := db.GetMeta(a, "missing"); err == nil {
		t.Error("missing key should error")
	}
}
