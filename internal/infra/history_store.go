package infra

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

const (
	historyDBName = "history.db"

	quotaMetaKey = "emergency_quota"
)

// HistoryStore is the foreground history database: profiles, sessions
// and the emergency quota. Only the foreground process writes to it.
type HistoryStore struct {
	db *sql.DB
}

// NewHistoryStore opens (or creates) the encrypted history database.
func NewHistoryStore(dataDir string, key []byte) (*HistoryStore, error) {
	db, _, err := openEncryptedDB(dataDir, historyDBName, key)
	if err != nil {
		return nil, err
	}
	h := NewHistoryStoreFromDB(db)
	if err := h.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return h, nil
}

// NewHistoryStoreFromDB wraps an already opened database. Callers run Migrate.
func NewHistoryStoreFromDB(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Migrate creates the schema if it doesn't exist.
func (h *HistoryStore) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		sort_order INTEGER NOT NULL DEFAULT 0,
		data TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		profile_id TEXT NOT NULL,
		start_time INTEGER NOT NULL,
		end_time INTEGER,
		break_start_time INTEGER,
		break_end_time INTEGER,
		force_started INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_profile ON sessions(profile_id, start_time);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := h.db.ExecContext(ctx, schema)
	return err
}

// --- profiles ---

// GetProfile returns the profile with the given id.
func (h *HistoryStore) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	var data string
	err := h.db.QueryRowContext(ctx, `SELECT data FROM profiles WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("history.get_profile", "profile", id)
	}
	if err != nil {
		return nil, domain.Storage("history.get_profile", err)
	}
	var p domain.Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, domain.Storage("history.get_profile", err)
	}
	return &p, nil
}

// ListProfiles returns profiles by display order, then name.
func (h *HistoryStore) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT data FROM profiles ORDER BY sort_order, name`)
	if err != nil {
		return nil, domain.Storage("history.list_profiles", err)
	}
	defer rows.Close()

	out := make([]domain.Profile, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, domain.Storage("history.list_profiles", err)
		}
		var p domain.Profile
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, domain.Storage("history.list_profiles", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Storage("history.list_profiles", err)
	}
	return out, nil
}

// SaveProfile inserts or replaces a profile.
func (h *HistoryStore) SaveProfile(ctx context.Context, p domain.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = h.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO profiles (id, name, sort_order, data, updated_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Order, string(data), time.Now().Unix())
	return err
}

// DeleteProfile removes a profile. Unknown ids are ignored.
func (h *HistoryStore) DeleteProfile(ctx context.Context, id string) error {
	_, err := h.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
	return err
}

// --- sessions ---

const sessionColumns = `id, profile_id, start_time, end_time, break_start_time, break_end_time, force_started`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(r rowScanner) (*domain.Session, error) {
	var (
		s                      domain.Session
		start                  int64
		end, breakStart, brEnd sql.NullInt64
		forced                 int
	)
	if err := r.Scan(&s.ID, &s.ProfileID, &start, &end, &breakStart, &brEnd, &forced); err != nil {
		return nil, err
	}
	s.StartTime = time.Unix(0, start)
	s.EndTime = fromNullNanos(end)
	s.BreakStartTime = fromNullNanos(breakStart)
	s.BreakEndTime = fromNullNanos(brEnd)
	s.ForceStarted = forced != 0
	return &s, nil
}

func fromNullNanos(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64)
	return &t
}

func toNullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ActiveSession returns the most recently started open session, or nil.
func (h *HistoryStore) ActiveSession(ctx context.Context) (*domain.Session, error) {
	row := h.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE end_time IS NULL ORDER BY start_time DESC LIMIT 1`)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// GetSession returns one session by id.
func (h *HistoryStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	row := h.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("history.get_session", "session", id)
	}
	return s, err
}

// SaveSession inserts or replaces a session.
func (h *HistoryStore) SaveSession(ctx context.Context, s domain.Session) error {
	_, err := h.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.ProfileID, s.StartTime.UnixNano(),
		toNullNanos(s.EndTime), toNullNanos(s.BreakStartTime), toNullNanos(s.BreakEndTime),
		boolInt(s.ForceStarted))
	return err
}

// UpsertSession inserts the session, or fills end and break fields that are
// still empty. Fields already set locally are kept.
func (h *HistoryStore) UpsertSession(ctx context.Context, s domain.Session) error {
	_, err := h.db.ExecContext(ctx, `
	INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		end_time = COALESCE(sessions.end_time, excluded.end_time),
		break_start_time = COALESCE(sessions.break_start_time, excluded.break_start_time),
		break_end_time = COALESCE(sessions.break_end_time, excluded.break_end_time)`,
		s.ID, s.ProfileID, s.StartTime.UnixNano(),
		toNullNanos(s.EndTime), toNullNanos(s.BreakStartTime), toNullNanos(s.BreakEndTime),
		boolInt(s.ForceStarted))
	return err
}

// ListSessions returns sessions newest first. An empty profileID lists all;
// a limit of zero or less means no limit.
func (h *HistoryStore) ListSessions(ctx context.Context, profileID string, limit int) ([]domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	var args []interface{}
	if profileID != "" {
		query += ` WHERE profile_id = ?`
		args = append(args, profileID)
	}
	query += ` ORDER BY start_time DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Session, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// DeleteSessions removes every session of a profile.
func (h *HistoryStore) DeleteSessions(ctx context.Context, profileID string) error {
	_, err := h.db.ExecContext(ctx, `DELETE FROM sessions WHERE profile_id = ?`, profileID)
	return err
}

// --- quota ---

// LoadQuota returns the stored quota, or nil if it was never saved.
func (h *HistoryStore) LoadQuota(ctx context.Context) (*domain.EmergencyQuota, error) {
	var value string
	err := h.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, quotaMetaKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var q domain.EmergencyQuota
	if err := json.Unmarshal([]byte(value), &q); err != nil {
		return nil, fmt.Errorf("decode quota: %w", err)
	}
	return &q, nil
}

// SaveQuota replaces the stored quota.
func (h *HistoryStore) SaveQuota(ctx context.Context, q domain.EmergencyQuota) error {
	data, err := json.Marshal(q)
	if err != nil {
		return err
	}
	_, err = h.db.ExecContext(ctx, `INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, quotaMetaKey, string(data))
	return err
}

// Close releases the database connection.
func (h *HistoryStore) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}

var (
	_ domain.ProfileRepository = (*HistoryStore)(nil)
	_ domain.SessionRepository = (*HistoryStore)(nil)
	_ domain.QuotaStore        = (*HistoryStore)(nil)
)
