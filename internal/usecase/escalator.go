// Package usecase contains application business logic.
package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/gpuguard/internal/domain"
)

// defaultPollInterval is how often pending targets are checked for exit
// during the grace wait.
const defaultPollInterval = time.Second

// EscalatorConfig holds escalation tuning.
type EscalatorConfig struct {
	Threshold     float64       // Celsius trigger level
	NameFragments []string      // case-sensitive name/cmdline fragments
	GracePeriod   time.Duration // ceiling on the graceful wait
	PollInterval  time.Duration // exit-check cadence during the wait
	Rehearse      bool          // log what would happen instead of signaling
}

// EscalatorImpl implements domain.Escalator: the graceful-then-forceful
// shutdown sequence for overheating workloads.
//
// It holds no state across Evaluate calls. Every pass re-discovers targets,
// so a respawned or newly matching process is handled on the next tick with
// no suppression window. Redundant requests against an already-exiting
// process are cheap no-ops: "process not found" is a non-error outcome at
// every step.
type EscalatorImpl struct {
	config    EscalatorConfig
	directory domain.ProcessDirectory
	logger    *zap.Logger
}

// NewEscalator creates a new escalation controller.
func NewEscalator(config EscalatorConfig, directory domain.ProcessDirectory, logger *zap.Logger) domain.Escalator {
	if config.PollInterval <= 0 {
		config.PollInterval = defaultPollInterval
	}
	return &EscalatorImpl{
		config:    config,
		directory: directory,
		logger:    logger,
	}
}

// Evaluate runs one escalation pass for the given reading.
func (e *EscalatorImpl) Evaluate(ctx context.Context, reading domain.Reading) []domain.EscalationResult {
	// Idle: nothing to do, and the process directory is never touched.
	if !reading.Available || reading.Celsius < e.config.Threshold {
		return nil
	}

	e.logger.Error("GPU temperature exceeds threshold",
		zap.Float64("celsius", reading.Celsius),
		zap.Float64("threshold", e.config.Threshold))

	targets, err := e.FindTargets(ctx)
	if err != nil {
		e.logger.Warn("process enumeration failed", zap.Error(err))
		return nil
	}
	if len(targets) == 0 {
		// Overheating with no matching workload is a valid state.
		e.logger.Info("no matching target processes found")
		return nil
	}

	e.logger.Warn("initiating graceful shutdown",
		zap.Int("targets", len(targets)))

	if e.config.Rehearse {
		for _, t := range targets {
			e.logger.Info("rehearsal: would request graceful stop",
				zap.Int32("pid", t.PID),
				zap.String("name", t.Name),
				zap.Duration("grace_period", e.config.GracePeriod))
		}
		return nil
	}

	results, pending := e.requestStops(targets)
	results = e.awaitExits(ctx, pending, results)
	if ctx.Err() != nil {
		// Cancelled mid-wait: abandon the in-flight escalation.
		return results
	}
	results = e.forceKill(pending, results)

	e.logger.Info("shutdown sequence completed", zap.Int("targets", len(targets)))
	return results
}

// FindTargets snapshots live processes and keeps those whose name or full
// command line contains any configured fragment. Matching is case-sensitive.
func (e *EscalatorImpl) FindTargets(ctx context.Context) ([]domain.TargetProcess, error) {
	procs, err := e.directory.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var targets []domain.TargetProcess
	for _, p := range procs {
		if matchesAny(p, e.config.NameFragments) {
			e.logger.Debug("matched target process",
				zap.Int32("pid", p.PID),
				zap.String("name", p.Name))
			targets = append(targets, p)
		}
	}
	return targets, nil
}

// requestStops sends the graceful request to every target. A target whose
// request fails stays pending: force kill is its escalation path. Targets
// that vanished since enumeration are recorded as already gone.
func (e *EscalatorImpl) requestStops(targets []domain.TargetProcess) ([]domain.EscalationResult, map[int32]domain.TargetProcess) {
	var results []domain.EscalationResult
	pending := make(map[int32]domain.TargetProcess)

	for _, t := range targets {
		if !e.directory.IsRunning(t.PID) {
			e.logger.Info("target already gone", zap.Int32("pid", t.PID))
			results = append(results, domain.EscalationResult{Target: t, Outcome: domain.OutcomeAlreadyGone})
			continue
		}
		if err := e.directory.RequestStop(t.PID); err != nil {
			if !e.directory.IsRunning(t.PID) {
				// Lost the race between enumeration and signaling.
				e.logger.Info("target exited before signal", zap.Int32("pid", t.PID))
				results = append(results, domain.EscalationResult{Target: t, Outcome: domain.OutcomeAlreadyGone})
				continue
			}
			e.logger.Warn("graceful stop request failed, will force kill",
				zap.Int32("pid", t.PID),
				zap.Error(err))
			pending[t.PID] = t
			continue
		}
		e.logger.Info("graceful stop requested",
			zap.Int32("pid", t.PID),
			zap.String("name", t.Name))
		pending[t.PID] = t
	}
	return results, pending
}

// awaitExits polls pending targets until all exit or the grace ceiling
// elapses, measured as wall clock since the batch was signaled. Targets that
// exit in time are removed from pending and recorded as graceful exits.
func (e *EscalatorImpl) awaitExits(ctx context.Context, pending map[int32]domain.TargetProcess, results []domain.EscalationResult) []domain.EscalationResult {
	if len(pending) == 0 || e.config.GracePeriod <= 0 {
		return results
	}

	deadline := time.Now().Add(e.config.GracePeriod)
	e.logger.Info("waiting for graceful shutdown",
		zap.Duration("grace_period", e.config.GracePeriod),
		zap.Int("pending", len(pending)))

	for len(pending) > 0 && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			e.logger.Info("escalation cancelled mid-wait")
			return results
		case <-time.After(e.config.PollInterval):
		}

		for pid, t := range pending {
			if !e.directory.IsRunning(pid) {
				e.logger.Info("target exited gracefully",
					zap.Int32("pid", pid),
					zap.String("name", t.Name))
				results = append(results, domain.EscalationResult{Target: t, Outcome: domain.OutcomeGracefulExit})
				delete(pending, pid)
			}
		}
		if len(pending) > 0 {
			e.logger.Debug("still waiting for targets",
				zap.Int("alive", len(pending)),
				zap.Duration("remaining", time.Until(deadline).Round(time.Second)))
		}
	}
	return results
}

// forceKill unconditionally kills every target that survived the grace
// period. A kill failure is logged per target and never aborts the rest;
// there is no step beyond this one.
func (e *EscalatorImpl) forceKill(pending map[int32]domain.TargetProcess, results []domain.EscalationResult) []domain.EscalationResult {
	for pid, t := range pending {
		if !e.directory.IsRunning(pid) {
			e.logger.Info("target exited during grace period",
				zap.Int32("pid", pid),
				zap.String("name", t.Name))
			results = append(results, domain.EscalationResult{Target: t, Outcome: domain.OutcomeGracefulExit})
			continue
		}

		e.logger.Warn("grace period elapsed, force killing",
			zap.Int32("pid", pid),
			zap.String("name", t.Name))
		if err := e.directory.Kill(pid); err != nil {
			if !e.directory.IsRunning(pid) {
				results = append(results, domain.EscalationResult{Target: t, Outcome: domain.OutcomeAlreadyGone})
				continue
			}
			e.logger.Error("force kill failed",
				zap.Int32("pid", pid),
				zap.Error(err))
			results = append(results, domain.EscalationResult{Target: t, Outcome: domain.OutcomeSignalFailed})
			continue
		}
		e.logger.Info("force killed target", zap.Int32("pid", pid))
		results = append(results, domain.EscalationResult{Target: t, Outcome: domain.OutcomeForceKilled})
	}
	return results
}

// matchesAny reports whether the process name or command line contains any
// fragment as a substring.
func matchesAny(p domain.TargetProcess, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(p.Name, f) || strings.Contains(p.Cmdline, f) {
			return true
		}
	}
	return false
}

// Ensure EscalatorImpl implements domain.Escalator.
var _ domain.Escalator = (*EscalatorImpl)(nil)
