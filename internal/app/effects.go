package app

import (
	"context"
	"time"

	"github.com/alitto/pond"
	"github.com/rs/zerolog"
)

const (
	effectsMaxWorkers  = 10
	effectsMaxCapacity = 200
)

// EffectRunner executes fire-and-forget side effects (broadcasts,
// notifications, extension checks) on a bounded worker pool. A core
// operation has already committed by the time an effect runs, so effect
// failures are logged and swallowed. Latency budgets are advisory: an
// overrun is logged, never enforced.
type EffectRunner struct {
	pool   *pond.WorkerPool
	logger zerolog.Logger
}

// NewEffectRunner creates an effect runner backed by a pond pool
func NewEffectRunner(logger zerolog.Logger) *EffectRunner {
	return &EffectRunner{
		pool: pond.New(
			effectsMaxWorkers,
			effectsMaxCapacity,
			pond.Strategy(pond.Balanced()),
		),
		logger: logger.With().Str("component", "effect_runner").Logger(),
	}
}

// Submit schedules a named side effect. The effect gets a fresh background
// context so it outlives the request that spawned it.
func (r *EffectRunner) Submit(name string, budget time.Duration, fn func(ctx context.Context) error) {
	r.pool.Submit(func() {
		start := time.Now()
		err := fn(context.Background())
		elapsed := time.Since(start)

		if err != nil {
			r.logger.Error().Err(err).Str("effect", name).Dur("elapsed", elapsed).Msg("Side effect failed")
			return
		}
		if budget > 0 && elapsed > budget {
			r.logger.Warn().Str("effect", name).Dur("elapsed", elapsed).Dur("budget", budget).Msg("Side effect exceeded latency budget")
		}
	})
}

// Stop drains the pool, waiting for in-flight effects to finish
func (r *EffectRunner) Stop() {
	r.pool.StopAndWait()
}
