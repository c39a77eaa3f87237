package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// RegistrySlot records the running daemon in the Snapshot Store.
const RegistrySlot = "daemon.registration"

// Record is the persisted daemon registration.
type Record struct {
	PID           int   `json:"pid"`
	StartedAt     int64 `json:"started_at"`
	LastHeartbeat int64 `json:"last_heartbeat"`
}

// Registry tracks the single running daemon through the Snapshot Store.
type Registry struct {
	store domain.SnapshotStore
	pm    domain.ProcessManager
	now   func() time.Time
}

// NewRegistry creates a daemon registry.
func NewRegistry(store domain.SnapshotStore, pm domain.ProcessManager) *Registry {
	return &Registry{store: store, pm: pm, now: time.Now}
}

// Register records the current process, refusing when another live daemon
// is already registered.
func (r *Registry) Register() error {
	if rec, err := r.Get(); err == nil && rec != nil && rec.PID != r.pm.GetCurrentPID() && r.pm.IsRunning(rec.PID) {
		return fmt.Errorf("daemon already running with pid %d", rec.PID)
	}
	now := r.now().Unix()
	return r.write(Record{PID: r.pm.GetCurrentPID(), StartedAt: now, LastHeartbeat: now})
}

// Heartbeat refreshes the liveness timestamp.
func (r *Registry) Heartbeat() error {
	rec, err := r.Get()
	if err != nil {
		return err
	}
	if rec == nil {
		return r.Register()
	}
	rec.LastHeartbeat = r.now().Unix()
	return r.write(*rec)
}

// Unregister removes the record if it belongs to this process.
func (r *Registry) Unregister() error {
	rec, err := r.Get()
	if err != nil || rec == nil || rec.PID != r.pm.GetCurrentPID() {
		return err
	}
	return r.store.DeleteSlot(RegistrySlot)
}

// Get returns the registration, or nil.
func (r *Registry) Get() (*Record, error) {
	data, err := r.store.GetSlot(RegistrySlot)
	if err != nil || data == nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode daemon record: %w", err)
	}
	return &rec, nil
}

// IsAlive reports whether the registered daemon process is running.
func (r *Registry) IsAlive() bool {
	rec, err := r.Get()
	if err != nil || rec == nil {
		return false
	}
	return r.pm.IsRunning(rec.PID)
}

func (r *Registry) write(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.store.SetSlot(RegistrySlot, data)
}

// StartDetached spawns `<binaryPath> daemon` detached from the terminal.
func StartDetached(binaryPath string, extraArgs ...string) (int, error) {
	args := append([]string{"daemon"}, extraArgs...)
	cmd := exec.Command(binaryPath, args...)

	// New session so the daemon outlives the shell.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}

// Executable resolves the binary to spawn: the configured path, else the
// running binary.
func Executable(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	return os.Executable()
}
