// Package engine drives the tick-based simulation loop and ties the
// person, activity execution, decision making, and talent systems
// together.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Tick cadence. One tick is one sim-minute.
const (
	TicksPerSimHour = 60
	TicksPerSimDay  = 1440
)

// Engine advances the simulation on a wall-clock schedule.
type Engine struct {
	Interval time.Duration // base tick interval (default 1 second)

	mu      sync.Mutex
	tick    uint64
	speed   float64
	running bool

	// Cadence callbacks, populated during setup.
	OnTick func(tick uint64)
	OnHour func(tick uint64)
	OnDay  func(tick uint64)
}

// NewEngine creates an engine ticking once per second at speed 1.
func NewEngine() *Engine {
	return &Engine{
		Interval: time.Second,
		speed:    1.0,
	}
}

// Tick returns the current tick counter.
func (e *Engine) Tick() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// Speed returns the current speed multiplier. Zero means paused.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the wall-clock compression. Zero pauses; negative
// values are rejected.
func (e *Engine) SetSpeed(speed float64) error {
	if speed < 0 {
		return fmt.Errorf("speed must be >= 0, got %v", speed)
	}
	e.mu.Lock()
	e.speed = speed
	e.mu.Unlock()
	return nil
}

// Run starts the loop. Blocks until Stop is called.
func (e *Engine) Run() {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()
	slog.Info("simulation engine started", "tick", e.Tick(), "speed", e.Speed())

	for {
		e.mu.Lock()
		running, speed := e.running, e.speed
		e.mu.Unlock()
		if !running {
			break
		}
		if speed <= 0 {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()
		e.Step()

		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}

	slog.Info("simulation engine stopped", "tick", e.Tick())
}

// Stop halts the loop after the current tick.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

// Step advances exactly one tick, firing cadence callbacks. Batch
// runners call this directly instead of Run.
func (e *Engine) Step() {
	e.mu.Lock()
	e.tick++
	tick := e.tick
	e.mu.Unlock()

	if e.OnTick != nil {
		e.OnTick(tick)
	}
	if tick%TicksPerSimHour == 0 && e.OnHour != nil {
		e.OnHour(tick)
	}
	if tick%TicksPerSimDay == 0 && e.OnDay != nil {
		e.OnDay(tick)
	}
}

// SimTime renders a tick as a human-readable sim clock.
func SimTime(tick uint64) string {
	minutes := tick % 60
	totalHours := tick / 60
	hours := totalHours % 24
	days := totalHours/24 + 1
	return fmt.Sprintf("Day %d, %02d:%02d", days, hours, minutes)
}
