package domain

import "context"

// Sampler obtains one reduced temperature reading per call.
// Implementation: nvidia-smi subprocess invocation.
type Sampler interface {
	// Sample invokes the sensor query once. Sensor problems are never
	// fatal: they surface as an unavailable Reading and the caller's
	// next scheduled tick is the retry.
	Sample(ctx context.Context) Reading
}

// ProcessDirectory handles OS process enumeration and signaling.
// Implementation: uses gopsutil for cross-platform support.
type ProcessDirectory interface {
	// Snapshot enumerates live processes with name and command line.
	Snapshot(ctx context.Context) ([]TargetProcess, error)

	// RequestStop sends a graceful termination request: an interactive
	// interrupt where the platform supports it, otherwise a terminate
	// request the target is expected to trap.
	RequestStop(pid int32) error

	// Kill terminates a process unconditionally (SIGKILL).
	Kill(pid int32) error

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int32) bool
}

// Escalator decides, for one reading, whether and how to shut down
// matching workload processes.
type Escalator interface {
	// Evaluate runs one escalation pass. Below the threshold (or with
	// no reading at all) it is a no-op that touches the process
	// directory zero times.
	Evaluate(ctx context.Context, reading Reading) []EscalationResult

	// FindTargets snapshots live processes and returns those matching
	// the configured name fragments.
	FindTargets(ctx context.Context) ([]TargetProcess, error)
}
