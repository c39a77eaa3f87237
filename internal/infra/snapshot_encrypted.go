package infra

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

const (
	snapshotDBName = "snapshots.db"

	activeSessionSlot = "session.active"
)

// EncryptedSnapshotStore implements domain.SnapshotStore on a SQLCipher
// database shared by the foreground and background processes. Every write
// replaces one whole record.
type EncryptedSnapshotStore struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedSnapshotStore opens (or creates) the shared snapshot database.
func NewEncryptedSnapshotStore(dataDir string, key []byte) (*EncryptedSnapshotStore, error) {
	db, dbPath, err := openEncryptedDB(dataDir, snapshotDBName, key)
	if err != nil {
		return nil, err
	}
	s := &EncryptedSnapshotStore{db: db, dbPath: dbPath}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// createTables creates the schema if it doesn't exist.
func (s *EncryptedSnapshotStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS slots (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS profile_snapshots (
		id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS completed_sessions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		data TEXT NOT NULL,
		appended_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// --- profile snapshots ---

// GetProfileSnapshot returns the snapshot for id, or nil if absent.
func (s *EncryptedSnapshotStore) GetProfileSnapshot(id string) (*domain.ProfileSnapshot, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM profile_snapshots WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap domain.ProfileSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("decode profile snapshot %s: %w", id, err)
	}
	return &snap, nil
}

// SetProfileSnapshot replaces the snapshot keyed by its profile id.
func (s *EncryptedSnapshotStore) SetProfileSnapshot(snap domain.ProfileSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO profile_snapshots (id, data, updated_at) VALUES (?, ?, ?)`,
		snap.ID, string(data), time.Now().Unix())
	return err
}

// DeleteProfileSnapshot removes a profile snapshot.
func (s *EncryptedSnapshotStore) DeleteProfileSnapshot(id string) error {
	_, err := s.db.Exec(`DELETE FROM profile_snapshots WHERE id = ?`, id)
	return err
}

// ProfileSnapshots returns every profile snapshot keyed by id.
func (s *EncryptedSnapshotStore) ProfileSnapshots() (map[string]domain.ProfileSnapshot, error) {
	rows, err := s.db.Query(`SELECT id, data FROM profile_snapshots`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]domain.ProfileSnapshot)
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		var snap domain.ProfileSnapshot
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			return nil, fmt.Errorf("decode profile snapshot %s: %w", id, err)
		}
		out[id] = snap
	}
	return out, rows.Err()
}

// --- active session slot ---

// ActiveSession returns the active session slot, or nil.
func (s *EncryptedSnapshotStore) ActiveSession() (*domain.SessionSnapshot, error) {
	data, err := s.GetSlot(activeSessionSlot)
	if err != nil || data == nil {
		return nil, err
	}
	var snap domain.SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode active session: %w", err)
	}
	return &snap, nil
}

// SetActiveSession replaces the active session slot.
func (s *EncryptedSnapshotStore) SetActiveSession(snap domain.SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.SetSlot(activeSessionSlot, data)
}

// ClearActiveSession empties the active session slot.
func (s *EncryptedSnapshotStore) ClearActiveSession() error {
	return s.DeleteSlot(activeSessionSlot)
}

// --- completed sessions ---

// AppendCompletedSession appends to the completed list.
func (s *EncryptedSnapshotStore) AppendCompletedSession(snap domain.SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO completed_sessions (session_id, data, appended_at) VALUES (?, ?, ?)`,
		snap.ID, string(data), time.Now().Unix())
	return err
}

// CompletedSessions returns the completed list in append order.
func (s *EncryptedSnapshotStore) CompletedSessions() ([]domain.SessionSnapshot, error) {
	rows, err := s.db.Query(`SELECT data FROM completed_sessions ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SessionSnapshot
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var snap domain.SessionSnapshot
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			return nil, fmt.Errorf("decode completed session: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// FlushCompletedSessions deletes the given sessions from the completed list
// in one statement. Entries appended after they were read are kept.
func (s *EncryptedSnapshotStore) FlushCompletedSessions(sessionIDs []string) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(sessionIDs)), ",")
	args := make([]interface{}, len(sessionIDs))
	for i, id := range sessionIDs {
		args[i] = id
	}
	_, err := s.db.Exec(`DELETE FROM completed_sessions WHERE session_id IN (`+placeholders+`)`, args...)
	return err
}

// --- slots ---

// GetSlot returns a slot value, or nil if absent.
func (s *EncryptedSnapshotStore) GetSlot(key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM slots WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return value, err
}

// SetSlot replaces a slot value.
func (s *EncryptedSnapshotStore) SetSlot(key string, value []byte) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO slots (key, value, updated_at) VALUES (?, ?, ?)`,
		key, value, time.Now().Unix())
	return err
}

// DeleteSlot removes a slot. Unknown keys are ignored.
func (s *EncryptedSnapshotStore) DeleteSlot(key string) error {
	_, err := s.db.Exec(`DELETE FROM slots WHERE key = ?`, key)
	return err
}

// Path returns the database file path.
func (s *EncryptedSnapshotStore) Path() string {
	return s.dbPath
}

// Close releases the database connection.
func (s *EncryptedSnapshotStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ domain.SnapshotStore = (*EncryptedSnapshotStore)(nil)
