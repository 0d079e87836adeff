package engine

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

// yieldEvery is how many batch ticks run between scheduler yields, so a
// tight headless loop does not starve other goroutines.
const yieldEvery = 1024

// RunBatch advances the engine as fast as possible for a fixed number
// of ticks, with no wall-clock pacing. Cadence callbacks fire exactly
// as they would in real time. Returns the number of ticks processed,
// which is short of the budget only when the context is cancelled.
func (e *Engine) RunBatch(ctx context.Context, ticks uint64) uint64 {
	start := time.Now()
	var done uint64
	for done < ticks {
		if ctx.Err() != nil {
			break
		}
		e.Step()
		done++
		if done%yieldEvery == 0 {
			runtime.Gosched()
		}
	}

	elapsed := time.Since(start)
	rate := float64(done) / elapsed.Seconds()
	slog.Info("batch run finished",
		"ticks", done,
		"budget", ticks,
		"elapsed", elapsed.Round(time.Millisecond),
		"ticks_per_sec", int(rate),
	)
	return done
}
