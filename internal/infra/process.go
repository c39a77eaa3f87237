// Package infra holds the OS-facing adapters: storage, timer scheduling,
// process control, domain blocking and notifications.
package infra

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// ProcessManagerImpl implements domain.ProcessManager using gopsutil.
type ProcessManagerImpl struct{}

// NewProcessManager creates a new process manager.
func NewProcessManager() domain.ProcessManager {
	return &ProcessManagerImpl{}
}

// FindByName returns PIDs whose process name or executable base name
// contains pattern, case-insensitively.
func (pm *ProcessManagerImpl) FindByName(pattern string) ([]int, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(pattern)
	var found []int
	for _, p := range procs {
		if matchesProcess(p, needle) {
			found = append(found, int(p.Pid))
		}
	}
	return found, nil
}

func matchesProcess(p *process.Process, needle string) bool {
	name, err := p.Name()
	if err != nil {
		return false // exited
	}
	if strings.Contains(strings.ToLower(name), needle) {
		return true
	}
	// Names are truncated on some platforms; fall back to the executable.
	exe, err := p.Exe()
	if err != nil || exe == "" {
		return false
	}
	return strings.Contains(strings.ToLower(filepath.Base(exe)), needle)
}

// Kill terminates a process by PID using SIGKILL.
func (pm *ProcessManagerImpl) Kill(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	return p.Kill()
}

// IsRunning probes the PID with signal 0.
func (pm *ProcessManagerImpl) IsRunning(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// GetCurrentPID returns the current process PID.
func (pm *ProcessManagerImpl) GetCurrentPID() int {
	return os.Getpid()
}

var _ domain.ProcessManager = (*ProcessManagerImpl)(nil)
