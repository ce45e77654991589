// Package fixtures provides fake collaborators for scenario tests.
package fixtures

import (
	"context"
	"sync"

	"github.com/eliteGoblin/gpuguard/internal/domain"
)

// FakeSampler implements domain.Sampler with a fixed reading.
type FakeSampler struct {
	mu      sync.Mutex
	reading domain.Reading
	calls   int
}

// NewFakeSampler creates a sampler that always returns the given reading.
func NewFakeSampler(reading domain.Reading) *FakeSampler {
	return &FakeSampler{reading: reading}
}

func (s *FakeSampler) Sample(ctx context.Context) domain.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.reading
}

// Calls returns how many times Sample was invoked.
func (s *FakeSampler) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// FakeDirectory implements domain.ProcessDirectory over an in-memory
// process table. Safe for concurrent use: the watchdog loop runs in its
// own goroutine while test assertions poll.
type FakeDirectory struct {
	mu            sync.Mutex
	procs         []domain.TargetProcess
	exitOnStop    bool
	snapshotCalls int
	stopped       []int32
	killed        []int32
	gone          map[int32]bool
}

// NewFakeDirectory creates a directory over the given process table.
// When exitOnStop is set, targets exit as soon as they are gracefully
// signaled; otherwise they ignore the request and survive until killed.
func NewFakeDirectory(exitOnStop bool, procs ...domain.TargetProcess) *FakeDirectory {
	return &FakeDirectory{
		procs:      procs,
		exitOnStop: exitOnStop,
		gone:       make(map[int32]bool),
	}
}

func (d *FakeDirectory) Snapshot(ctx context.Context) ([]domain.TargetProcess, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.snapshotCalls++
	out := make([]domain.TargetProcess, 0, len(d.procs))
	for _, p := range d.procs {
		if !d.gone[p.PID] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (d *FakeDirectory) RequestStop(pid int32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = append(d.stopped, pid)
	if d.exitOnStop {
		d.gone[pid] = true
	}
	return nil
}

func (d *FakeDirectory) Kill(pid int32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.killed = append(d.killed, pid)
	d.gone[pid] = true
	return nil
}

func (d *FakeDirectory) IsRunning(pid int32) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.gone[pid]
}

// SnapshotCalls returns how many times Snapshot was invoked.
func (d *FakeDirectory) SnapshotCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotCalls
}

// StoppedPIDs returns the PIDs that received a graceful request.
func (d *FakeDirectory) StoppedPIDs() []int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int32(nil), d.stopped...)
}

// KilledPIDs returns the PIDs that were force killed.
func (d *FakeDirectory) KilledPIDs() []int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int32(nil), d.killed...)
}
