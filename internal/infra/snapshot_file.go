package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

const snapshotFileName = "snapshots.json"

// snapshotDoc is the on-disk layout of FileSnapshotStore.
type snapshotDoc struct {
	Version   int                               `json:"version"`
	Profiles  map[string]domain.ProfileSnapshot `json:"profiles"`
	Active    *domain.SessionSnapshot           `json:"active_session,omitempty"`
	Completed []domain.SessionSnapshot          `json:"completed_sessions"`
	Slots     map[string]json.RawMessage        `json:"slots"`
}

func newSnapshotDoc() *snapshotDoc {
	return &snapshotDoc{
		Version:  1,
		Profiles: make(map[string]domain.ProfileSnapshot),
		Slots:    make(map[string]json.RawMessage),
	}
}

// FileSnapshotStore implements domain.SnapshotStore with a plain JSON file.
// Writers hold an exclusive flock on a sidecar lock file and replace the
// document with write + rename, so readers never see a torn file.
type FileSnapshotStore struct {
	path string
}

// NewFileSnapshotStore creates a store at <dataDir>/snapshots.json.
func NewFileSnapshotStore(dataDir string) (*FileSnapshotStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileSnapshotStore{path: filepath.Join(dataDir, snapshotFileName)}, nil
}

// Path returns the snapshot file path.
func (s *FileSnapshotStore) Path() string {
	return s.path
}

func (s *FileSnapshotStore) read() (*snapshotDoc, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return newSnapshotDoc(), nil
		}
		return nil, err
	}
	doc := newSnapshotDoc()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decode snapshot file: %w", err)
	}
	if doc.Profiles == nil {
		doc.Profiles = make(map[string]domain.ProfileSnapshot)
	}
	if doc.Slots == nil {
		doc.Slots = make(map[string]json.RawMessage)
	}
	return doc, nil
}

// update runs fn on the current document under the file lock and writes
// the result back.
func (s *FileSnapshotStore) update(fn func(doc *snapshotDoc) error) error {
	lockFile, err := os.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN) }()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.atomicWrite(doc)
}

// atomicWrite writes the document to a per-process temp file, then renames.
func (s *FileSnapshotStore) atomicWrite(doc *snapshotDoc) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	tmpPath := fmt.Sprintf("%s.%d.tmp", s.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func (s *FileSnapshotStore) GetProfileSnapshot(id string) (*domain.ProfileSnapshot, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	snap, ok := doc.Profiles[id]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (s *FileSnapshotStore) SetProfileSnapshot(snap domain.ProfileSnapshot) error {
	return s.update(func(doc *snapshotDoc) error {
		doc.Profiles[snap.ID] = snap
		return nil
	})
}

func (s *FileSnapshotStore) DeleteProfileSnapshot(id string) error {
	return s.update(func(doc *snapshotDoc) error {
		delete(doc.Profiles, id)
		return nil
	})
}

func (s *FileSnapshotStore) ProfileSnapshots() (map[string]domain.ProfileSnapshot, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return doc.Profiles, nil
}

func (s *FileSnapshotStore) ActiveSession() (*domain.SessionSnapshot, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return doc.Active, nil
}

func (s *FileSnapshotStore) SetActiveSession(snap domain.SessionSnapshot) error {
	return s.update(func(doc *snapshotDoc) error {
		doc.Active = &snap
		return nil
	})
}

func (s *FileSnapshotStore) ClearActiveSession() error {
	return s.update(func(doc *snapshotDoc) error {
		doc.Active = nil
		return nil
	})
}

func (s *FileSnapshotStore) AppendCompletedSession(snap domain.SessionSnapshot) error {
	return s.update(func(doc *snapshotDoc) error {
		doc.Completed = append(doc.Completed, snap)
		return nil
	})
}

func (s *FileSnapshotStore) CompletedSessions() ([]domain.SessionSnapshot, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return doc.Completed, nil
}

// FlushCompletedSessions drops the listed sessions; later appends survive.
func (s *FileSnapshotStore) FlushCompletedSessions(sessionIDs []string) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	drop := make(map[string]bool, len(sessionIDs))
	for _, id := range sessionIDs {
		drop[id] = true
	}
	return s.update(func(doc *snapshotDoc) error {
		kept := doc.Completed[:0]
		for _, c := range doc.Completed {
			if !drop[c.ID] {
				kept = append(kept, c)
			}
		}
		doc.Completed = kept
		return nil
	})
}

func (s *FileSnapshotStore) GetSlot(key string) ([]byte, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	v, ok := doc.Slots[key]
	if !ok {
		return nil, nil
	}
	return []byte(v), nil
}

// SetSlot stores value verbatim. Values must be valid JSON.
func (s *FileSnapshotStore) SetSlot(key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("slot %s: value is not valid JSON", key)
	}
	return s.update(func(doc *snapshotDoc) error {
		doc.Slots[key] = append(json.RawMessage(nil), value...)
		return nil
	})
}

func (s *FileSnapshotStore) DeleteSlot(key string) error {
	return s.update(func(doc *snapshotDoc) error {
		delete(doc.Slots, key)
		return nil
	})
}

// Close is a no-op; the file is opened per call.
func (s *FileSnapshotStore) Close() error { return nil }

var _ domain.SnapshotStore = (*FileSnapshotStore)(nil)
