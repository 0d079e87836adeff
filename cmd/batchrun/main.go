// Command batchrun advances a simulation as fast as possible for a
// fixed tick budget, recording snapshots along the way. Useful for
// balance tuning: run a sim-year in seconds and inspect the stats.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/lifesim/internal/balance"
	"github.com/talgya/lifesim/internal/catalog"
	"github.com/talgya/lifesim/internal/engine"
	"github.com/talgya/lifesim/internal/persistence"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	seed := envInt64("LIFESIM_SEED", 42)
	configDir := envStr("LIFESIM_CONFIG_DIR", "configs")
	dbPath := envStr("LIFESIM_DB", "data/lifesim.db")
	ticks := uint64(envInt64("BATCHRUN_TICKS", 7*engine.TicksPerSimDay))
	snapshotEvery := uint64(envInt64("BATCHRUN_SNAPSHOT_EVERY", engine.TicksPerSimDay))

	cfg, err := balance.Load(filepath.Join(configDir, "balance.yaml"))
	if err != nil {
		slog.Warn("balance config not loaded, using defaults", "error", err)
		cfg = balance.Default()
	}
	cat, err := catalog.Load(configDir)
	if err != nil {
		slog.Error("failed to load catalogs", "error", err)
		os.Exit(1)
	}

	os.MkdirAll(filepath.Dir(dbPath), 0755)
	db, err := persistence.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	runID, err := db.CreateRun(seed, cat.Digest)
	if err != nil {
		slog.Error("failed to create run", "error", err)
		os.Exit(1)
	}

	sim := engine.NewSimulation(cfg, cat, rand.New(rand.NewSource(seed)))
	eng := engine.NewEngine()
	eng.OnTick = sim.TickMinute
	eng.OnHour = sim.TickHour
	eng.OnDay = sim.TickDay

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, stopping batch", "signal", sig)
		cancel()
	}()

	slog.Info("batch run starting",
		"run_id", runID,
		"seed", seed,
		"ticks", ticks,
		"snapshot_every", snapshotEvery,
	)
	start := time.Now()

	// Run in snapshot-sized chunks so a killed run still leaves a trail.
	var done uint64
	for done < ticks && ctx.Err() == nil {
		chunk := snapshotEvery
		if remaining := ticks - done; chunk > remaining {
			chunk = remaining
		}
		done += eng.RunBatch(ctx, chunk)
		if err := db.SaveRunState(runID, sim); err != nil {
			slog.Error("snapshot save failed", "tick", eng.Tick(), "error", err)
		}
	}

	elapsed := time.Since(start)
	stats := sim.Stats()
	slog.Info("batch run finished",
		"ticks", done,
		"sim_time", engine.SimTime(eng.Tick()),
		"elapsed", elapsed.Round(time.Millisecond),
		"decisions", stats.DecisionsMade,
		"started", stats.ActivitiesStarted,
		"succeeded", stats.ActivitiesSucceeded,
		"failed", stats.ActivitiesFailed,
		"critical_ticks", stats.CriticalTicks,
		"talent_picks", stats.TalentPicksEarned,
	)

	st := sim.Status()
	fmt.Printf("\nRun %s: %d ticks (%s) in %s\n", runID, done, st.SimTime, elapsed.Round(time.Millisecond))
	fmt.Printf("Mood %.1f, purpose %.1f, nutrition %.1f\n",
		st.Person.Mood, st.Person.Purpose, st.Person.Nutrition)
	for domain, xp := range st.Person.DomainXP {
		fmt.Printf("  %s XP: %.0f\n", domain, xp)
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
		slog.Warn("invalid integer in environment, using fallback", "key", key, "value", v)
	}
	return fallback
}
