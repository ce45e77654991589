// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

// Reading is one sampled GPU temperature, reduced across devices, or the
// explicit unavailable state when the sensor could not be read. Ephemeral:
// produced and consumed within one loop tick, never persisted.
type Reading struct {
	Celsius   float64
	Available bool
}

// CelsiusReading returns an available reading with the given value.
func CelsiusReading(v float64) Reading {
	return Reading{Celsius: v, Available: true}
}

// UnavailableReading returns the explicit no-reading state.
// Never a numeric sentinel: 0.0 is a cold but valid temperature.
func UnavailableReading() Reading {
	return Reading{}
}

// TargetProcess is a live OS process matched against the configured name
// fragments. Discovered fresh on every escalation pass and never cached
// across ticks, since PIDs may be recycled between cycles.
type TargetProcess struct {
	PID     int32
	Name    string
	Cmdline string
}

// Outcome records how a single target left an escalation pass.
type Outcome string

const (
	// OutcomeGracefulExit: the target exited within the grace period.
	OutcomeGracefulExit Outcome = "graceful-exit"
	// OutcomeForceKilled: the target survived the grace period and was killed.
	OutcomeForceKilled Outcome = "force-killed"
	// OutcomeAlreadyGone: the target vanished before a request reached it.
	OutcomeAlreadyGone Outcome = "already-gone"
	// OutcomeSignalFailed: the force kill itself failed (e.g. insufficient
	// privilege). There is no step beyond force kill.
	OutcomeSignalFailed Outcome = "signal-failed"
)

// EscalationResult captures the final outcome for one target.
// Used for logging and test visibility only; never retained across ticks.
type EscalationResult struct {
	Target  TargetProcess
	Outcome Outcome
}
