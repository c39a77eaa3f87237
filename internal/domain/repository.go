package domain

import (
	"context"
	"time"
)

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// FindByName returns PIDs of processes matching the pattern.
	FindByName(pattern string) ([]int, error)

	// Kill terminates a process by PID (SIGKILL).
	Kill(pid int) error

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// DomainBlocker applies domain-level blocking (hosts file on desktop).
type DomainBlocker interface {
	// Apply replaces the blocked domain set. Applying the same set twice is a no-op.
	Apply(domains []string) error

	// Clear removes all blocking. Safe to call when nothing is blocked.
	Clear() error
}

// SnapshotStore is the replicated key/value store shared by the foreground
// and background contexts. No locking across keys: last writer wins per key.
// Getters return nil (and no error) for absent entries.
type SnapshotStore interface {
	GetProfileSnapshot(id string) (*ProfileSnapshot, error)
	SetProfileSnapshot(snap ProfileSnapshot) error
	DeleteProfileSnapshot(id string) error
	ProfileSnapshots() (map[string]ProfileSnapshot, error)

	// ActiveSession is the single "currently active session" slot.
	ActiveSession() (*SessionSnapshot, error)
	SetActiveSession(snap SessionSnapshot) error
	ClearActiveSession() error

	// Completed sessions are appended by the background context and
	// flushed by the foreground once absorbed into history.
	AppendCompletedSession(snap SessionSnapshot) error
	CompletedSessions() ([]SessionSnapshot, error)
	FlushCompletedSessions(sessionIDs []string) error

	// Slots hold arbitrary single-value records (enforcement state, reminders).
	GetSlot(key string) ([]byte, error)
	SetSlot(key string, value []byte) error
	DeleteSlot(key string) error

	Close() error
}

// TimerScheduler asks the OS to wake the background context at interval edges.
// Scheduling an existing name replaces the previous registration.
type TimerScheduler interface {
	// ScheduleOnce registers a one-shot interval starting now. An end past
	// midnight is clamped to the end of the current day.
	ScheduleOnce(ctx context.Context, name ActivityName, d time.Duration) error

	// ScheduleDaily registers a repeating daily interval.
	ScheduleDaily(ctx context.Context, name ActivityName, start, end TimeOfDay) error

	// Cancel removes registrations. Unknown names are ignored.
	Cancel(ctx context.Context, names ...ActivityName) error

	// ListActive returns every registration currently held.
	ListActive(ctx context.Context) ([]ActivityName, error)
}

// RestrictionEnforcer turns a profile's rules into OS-level blocking.
// Both operations are idempotent.
type RestrictionEnforcer interface {
	Activate(ctx context.Context, snap ProfileSnapshot) error
	Deactivate(ctx context.Context) error
}

// TokenReader performs one physical token scan per call.
type TokenReader interface {
	ReadToken(ctx context.Context, kind TokenKind) (TokenRead, error)
}

// Notifier is the presentation surface for live status and reminders.
type Notifier interface {
	ShowLiveStatus(ctx context.Context, status LiveStatus) error
	EndLiveStatus(ctx context.Context) error
	ScheduleReminder(ctx context.Context, r PendingReminder) error
}

// ProfileRepository persists profiles in the foreground history database.
// GetProfile returns a NotFound error when the profile does not exist and a
// Storage error when the lookup itself failed.
type ProfileRepository interface {
	GetProfile(ctx context.Context, id string) (*Profile, error)
	ListProfiles(ctx context.Context) ([]Profile, error)
	SaveProfile(ctx context.Context, p Profile) error
	DeleteProfile(ctx context.Context, id string) error
}

// SessionRepository persists session history.
type SessionRepository interface {
	// ActiveSession returns the most recent session with no end time, or nil.
	ActiveSession(ctx context.Context) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	SaveSession(ctx context.Context, s Session) error

	// UpsertSession inserts the session or fills in end/break fields that are
	// still empty locally. Set fields are never overwritten.
	UpsertSession(ctx context.Context, s Session) error

	ListSessions(ctx context.Context, profileID string, limit int) ([]Session, error)
	DeleteSessions(ctx context.Context, profileID string) error
}

// QuotaStore persists the emergency override quota.
type QuotaStore interface {
	LoadQuota(ctx context.Context) (*EmergencyQuota, error)
	SaveQuota(ctx context.Context, q EmergencyQuota) error
}

// KeyProvider abstracts the source of encryption keys.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}
