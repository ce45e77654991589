// Package daemon implements the watchdog sampling loop.
package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/gpuguard/internal/domain"
)

// WatchdogConfig holds loop configuration.
type WatchdogConfig struct {
	CheckInterval time.Duration // sampling cadence
}

// Watchdog runs the fixed-interval sample/evaluate loop.
//
// One goroutine, synchronous per tick: a tick that includes a multi-second
// grace wait delays the next sample, it never overlaps it. There is nothing
// meaningful to sample while an escalation for the same overheating
// condition is already in progress.
type Watchdog struct {
	config    WatchdogConfig
	sampler   domain.Sampler
	escalator domain.Escalator
	logger    *zap.Logger
}

// NewWatchdog creates a new watchdog loop.
func NewWatchdog(
	config WatchdogConfig,
	sampler domain.Sampler,
	escalator domain.Escalator,
	logger *zap.Logger,
) *Watchdog {
	return &Watchdog{
		config:    config,
		sampler:   sampler,
		escalator: escalator,
		logger:    logger,
	}
}

// Run starts the loop and blocks until ctx is cancelled. Cancellation is
// the only way out: every per-tick failure is logged and survived.
func (w *Watchdog) Run(ctx context.Context) error {
	w.logger.Info("watchdog started",
		zap.Duration("check_interval", w.config.CheckInterval))

	// Sample immediately rather than one interval in.
	w.tick(ctx)

	ticker := time.NewTicker(w.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watchdog stopping")
			return ctx.Err()

		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick runs one sample/evaluate cycle. A panic anywhere in the cycle is
// confined here: the watchdog's availability outlasts any single bad
// reading or process enumeration result.
func (w *Watchdog) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("tick panicked", zap.Any("panic", r))
		}
	}()

	reading := w.sampler.Sample(ctx)
	if !reading.Available {
		w.logger.Warn("GPU temperature unavailable, skipping check")
		return
	}

	w.logger.Debug("sampled GPU temperature", zap.Float64("celsius", reading.Celsius))
	w.escalator.Evaluate(ctx, reading)
}
