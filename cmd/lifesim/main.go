// Command lifesim runs one simulated person on a wall-clock tick loop,
// with the HTTP API and run recording attached.
package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/talgya/lifesim/internal/api"
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

	slog.Info("lifesim — behavioral life simulation")

	seed := envInt64("LIFESIM_SEED", 42)
	apiPort := int(envInt64("PORT", 8080))
	configDir := envStr("LIFESIM_CONFIG_DIR", "configs")
	dbPath := envStr("LIFESIM_DB", "data/lifesim.db")

	// ── Configuration ────────────────────────────────────────────────
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
	slog.Info("catalogs loaded",
		"activities", len(cat.Activities),
		"skills", len(cat.Skills),
		"talents", len(cat.Talents),
		"digest", cat.Digest[:12],
	)

	// ── Database ─────────────────────────────────────────────────────
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
	slog.Info("run created", "run_id", runID, "seed", seed, "db", dbPath)

	// ── Simulation ───────────────────────────────────────────────────
	sim := engine.NewSimulation(cfg, cat, rand.New(rand.NewSource(seed)))

	eng := engine.NewEngine()
	eng.OnTick = sim.TickMinute
	eng.OnHour = sim.TickHour
	eng.OnDay = func(tick uint64) {
		sim.TickDay(tick)
		// Auto-save daily.
		if err := db.SaveRunState(runID, sim); err != nil {
			slog.Error("daily save failed", "error", err)
		}
	}

	// ── HTTP API ─────────────────────────────────────────────────────
	adminKey := os.Getenv("LIFESIM_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("LIFESIM_ADMIN_KEY not set — admin POST endpoints will be disabled")
	}

	apiServer := &api.Server{
		Sim:      sim,
		Eng:      eng,
		Cat:      cat,
		DB:       db,
		RunID:    runID,
		Port:     apiPort,
		AdminKey: adminKey,
	}
	apiServer.Start()

	// ── Start ────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		eng.Stop()
	}()

	fmt.Printf("\n%s is awake. One tick per second, one sim-minute per tick.\n", sim.Person.Name)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", apiPort)
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run()

	// Final save on shutdown.
	slog.Info("final save...")
	if err := db.SaveRunState(runID, sim); err != nil {
		slog.Error("final save failed", "error", err)
	}

	fmt.Println("Simulation stopped. Run state saved.")
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
