package fixtures

import (
	"context"
	"sort"
	"sync"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// MemorySnapshotStore is an in-memory domain.SnapshotStore shared by the
// simulated foreground and background contexts in tests.
type MemorySnapshotStore struct {
	mu        sync.Mutex
	profiles  map[string]domain.ProfileSnapshot
	active    *domain.SessionSnapshot
	completed []domain.SessionSnapshot
	slots     map[string][]byte

	// Err, when set, fails every call.
	Err error
}

// NewMemorySnapshotStore creates an empty store.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{
		profiles: make(map[string]domain.ProfileSnapshot),
		slots:    make(map[string][]byte),
	}
}

func (m *MemorySnapshotStore) GetProfileSnapshot(id string) (*domain.ProfileSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	s, ok := m.profiles[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemorySnapshotStore) SetProfileSnapshot(snap domain.ProfileSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.profiles[snap.ID] = snap
	return nil
}

func (m *MemorySnapshotStore) DeleteProfileSnapshot(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.profiles, id)
	return nil
}

func (m *MemorySnapshotStore) ProfileSnapshots() (map[string]domain.ProfileSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make(map[string]domain.ProfileSnapshot, len(m.profiles))
	for k, v := range m.profiles {
		out[k] = v
	}
	return out, nil
}

func (m *MemorySnapshotStore) ActiveSession() (*domain.SessionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if m.active == nil {
		return nil, nil
	}
	s := *m.active
	return &s, nil
}

func (m *MemorySnapshotStore) SetActiveSession(snap domain.SessionSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.active = &snap
	return nil
}

func (m *MemorySnapshotStore) ClearActiveSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.active = nil
	return nil
}

func (m *MemorySnapshotStore) AppendCompletedSession(snap domain.SessionSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.completed = append(m.completed, snap)
	return nil
}

func (m *MemorySnapshotStore) CompletedSessions() ([]domain.SessionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]domain.SessionSnapshot(nil), m.completed...), nil
}

func (m *MemorySnapshotStore) FlushCompletedSessions(ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := m.completed[:0]
	for _, s := range m.completed {
		if !drop[s.ID] {
			kept = append(kept, s)
		}
	}
	m.completed = kept
	return nil
}

func (m *MemorySnapshotStore) GetSlot(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	v, ok := m.slots[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *MemorySnapshotStore) SetSlot(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.slots[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemorySnapshotStore) DeleteSlot(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.slots, key)
	return nil
}

func (m *MemorySnapshotStore) Close() error { return nil }

// MemoryHistory is an in-memory foreground history: profiles, sessions and quota.
type MemoryHistory struct {
	mu       sync.Mutex
	profiles map[string]domain.Profile
	sessions map[string]domain.Session
	quota    *domain.EmergencyQuota

	// ProfileErr fails profile lookups with a transient error.
	ProfileErr error
	// UpsertErr fails UpsertSession.
	UpsertErr error
	// SaveErr fails SaveSession.
	SaveErr error
}

// NewMemoryHistory creates an empty history.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{
		profiles: make(map[string]domain.Profile),
		sessions: make(map[string]domain.Session),
	}
}

func (m *MemoryHistory) GetProfile(_ context.Context, id string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ProfileErr != nil {
		return nil, domain.Storage("history.get_profile", m.ProfileErr)
	}
	p, ok := m.profiles[id]
	if !ok {
		return nil, domain.NotFound("history.get_profile", "profile", id)
	}
	return &p, nil
}

func (m *MemoryHistory) ListProfiles(_ context.Context) ([]domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ProfileErr != nil {
		return nil, domain.Storage("history.list_profiles", m.ProfileErr)
	}
	out := make([]domain.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *MemoryHistory) SaveProfile(_ context.Context, p domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
	return nil
}

func (m *MemoryHistory) DeleteProfile(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.profiles, id)
	return nil
}

func (m *MemoryHistory) ActiveSession(_ context.Context) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.Session
	for _, s := range m.sessions {
		if s.EndTime != nil {
			continue
		}
		if latest == nil || s.StartTime.After(latest.StartTime) {
			c := s
			latest = &c
		}
	}
	return latest, nil
}

func (m *MemoryHistory) GetSession(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.NotFound("history.get_session", "session", id)
	}
	return &s, nil
}

func (m *MemoryHistory) SaveSession(_ context.Context, s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryHistory) UpsertSession(_ context.Context, s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	cur, ok := m.sessions[s.ID]
	if !ok {
		m.sessions[s.ID] = s
		return nil
	}
	if cur.EndTime == nil {
		cur.EndTime = s.EndTime
	}
	if cur.BreakStartTime == nil {
		cur.BreakStartTime = s.BreakStartTime
	}
	if cur.BreakEndTime == nil {
		cur.BreakEndTime = s.BreakEndTime
	}
	m.sessions[s.ID] = cur
	return nil
}

func (m *MemoryHistory) ListSessions(_ context.Context, profileID string, limit int) ([]domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Session
	for _, s := range m.sessions {
		if profileID == "" || s.ProfileID == profileID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryHistory) DeleteSessions(_ context.Context, profileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.ProfileID == profileID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *MemoryHistory) LoadQuota(_ context.Context) (*domain.EmergencyQuota, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.quota == nil {
		return nil, nil
	}
	q := *m.quota
	return &q, nil
}

func (m *MemoryHistory) SaveQuota(_ context.Context, q domain.EmergencyQuota) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quota = &q
	return nil
}

// Sessions returns every stored session, oldest first.
func (m *MemoryHistory) Sessions() []domain.Session {
	out, _ := m.ListSessions(context.Background(), "", 0)
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// OpenSessions counts sessions with no end time.
func (m *MemoryHistory) OpenSessions() int {
	n := 0
	for _, s := range m.Sessions() {
		if s.EndTime == nil {
			n++
		}
	}
	return n
}
