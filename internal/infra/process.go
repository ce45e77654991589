// Package infra implements infrastructure concerns (process directory, sensor query).
package infra

import (
	"context"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/gpuguard/internal/domain"
)

// ProcessDirectoryImpl implements domain.ProcessDirectory using gopsutil.
type ProcessDirectoryImpl struct{}

// NewProcessDirectory creates a new process directory.
func NewProcessDirectory() domain.ProcessDirectory {
	return &ProcessDirectoryImpl{}
}

// Snapshot enumerates live processes with name and command line.
// Processes whose name cannot be read are skipped (exiting, or access denied).
func (d *ProcessDirectoryImpl) Snapshot(ctx context.Context) ([]domain.TargetProcess, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.TargetProcess, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue // Process may have exited
		}
		cmdline, err := p.CmdlineWithContext(ctx)
		if err != nil {
			cmdline = ""
		}
		out = append(out, domain.TargetProcess{
			PID:     p.Pid,
			Name:    name,
			Cmdline: cmdline,
		})
	}
	return out, nil
}

// RequestStop sends the graceful stop request: SIGINT where supported,
// falling back to a terminate request when the interrupt is refused.
func (d *ProcessDirectoryImpl) RequestStop(pid int32) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		return err
	}
	if err := p.SendSignal(syscall.SIGINT); err != nil {
		return p.Terminate()
	}
	return nil
}

// Kill terminates a process unconditionally (SIGKILL).
func (d *ProcessDirectoryImpl) Kill(pid int32) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

// IsRunning checks if a PID exists and is running.
func (d *ProcessDirectoryImpl) IsRunning(pid int32) bool {
	p, err := process.NewProcess(pid)
	if err != nil {
		return false
	}
	running, err := p.IsRunning()
	return err == nil && running
}

// Ensure ProcessDirectoryImpl implements domain.ProcessDirectory.
var _ domain.ProcessDirectory = (*ProcessDirectoryImpl)(nil)
