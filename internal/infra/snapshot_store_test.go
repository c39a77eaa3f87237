package infra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// snapshotBackends returns a fresh store of every backend.
func snapshotBackends(t *testing.T) map[string]domain.SnapshotStore {
	t.Helper()

	key, err := GenerateKey()
	require.NoError(t, err)
	enc, err := NewEncryptedSnapshotStore(t.TempDir(), key)
	require.NoError(t, err)
	t.Cleanup(func() { enc.Close() })

	file, err := NewFileSnapshotStore(t.TempDir())
	require.NoError(t, err)

	return map[string]domain.SnapshotStore{
		"encrypted": enc,
		"file":      file,
	}
}

func sessionSnap(id, profileID string, start time.Time) domain.SessionSnapshot {
	return domain.SessionSnapshot{ID: id, ProfileID: profileID, StartTime: start.UTC()}
}

func TestSnapshotStore_ProfileSnapshots(t *testing.T) {
	for name, store := range snapshotBackends(t) {
		t.Run(name, func(t *testing.T) {
			got, err := store.GetProfileSnapshot("missing")
			require.NoError(t, err)
			assert.Nil(t, got)

			snap := domain.ProfileSnapshot{
				ID:        "p1",
				Name:      "Deep work",
				Selection: domain.Selection{Apps: []string{"steam"}},
				Break:     domain.BreakConfig{Enabled: true, Duration: 5 * time.Minute},
			}
			require.NoError(t, store.SetProfileSnapshot(snap))

			snap.Name = "Deep work v2"
			require.NoError(t, store.SetProfileSnapshot(snap))

			got, err = store.GetProfileSnapshot("p1")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "Deep work v2", got.Name)
			assert.Equal(t, []string{"steam"}, got.Selection.Apps)
			assert.Equal(t, 5*time.Minute, got.Break.Duration)

			require.NoError(t, store.SetProfileSnapshot(domain.ProfileSnapshot{ID: "p2", Name: "Evening"}))
			all, err := store.ProfileSnapshots()
			require.NoError(t, err)
			assert.Len(t, all, 2)

			require.NoError(t, store.DeleteProfileSnapshot("p1"))
			require.NoError(t, store.DeleteProfileSnapshot("p1"), "deleting twice is fine")
			got, err = store.GetProfileSnapshot("p1")
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestSnapshotStore_ActiveSessionSlot(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	for name, store := range snapshotBackends(t) {
		t.Run(name, func(t *testing.T) {
			got, err := store.ActiveSession()
			require.NoError(t, err)
			assert.Nil(t, got)

			require.NoError(t, store.SetActiveSession(sessionSnap("s1", "p1", start)))

			end := start.Add(25 * time.Minute)
			s2 := sessionSnap("s1", "p1", start)
			s2.EndTime = &end
			require.NoError(t, store.SetActiveSession(s2))

			got, err = store.ActiveSession()
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "s1", got.ID)
			require.NotNil(t, got.EndTime)
			assert.True(t, end.Equal(*got.EndTime))

			require.NoError(t, store.ClearActiveSession())
			got, err = store.ActiveSession()
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestSnapshotStore_CompletedSessions(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	for name, store := range snapshotBackends(t) {
		t.Run(name, func(t *testing.T) {
			for _, id := range []string{"a", "b", "c"} {
				require.NoError(t, store.AppendCompletedSession(sessionSnap(id, "p1", start)))
			}

			list, err := store.CompletedSessions()
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, "a", list[0].ID, "append order is kept")

			require.NoError(t, store.FlushCompletedSessions([]string{"a", "b"}))
			require.NoError(t, store.FlushCompletedSessions(nil))

			list, err = store.CompletedSessions()
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, "c", list[0].ID, "entries not named survive a flush")
		})
	}
}

func TestSnapshotStore_Slots(t *testing.T) {
	for name, store := range snapshotBackends(t) {
		t.Run(name, func(t *testing.T) {
			v, err := store.GetSlot("enforcement.active")
			require.NoError(t, err)
			assert.Nil(t, v)

			require.NoError(t, store.SetSlot("enforcement.active", []byte(`{"profile_id":"p1"}`)))
			v, err = store.GetSlot("enforcement.active")
			require.NoError(t, err)
			assert.JSONEq(t, `{"profile_id":"p1"}`, string(v))

			require.NoError(t, store.DeleteSlot("enforcement.active"))
			require.NoError(t, store.DeleteSlot("never-set"))
			v, err = store.GetSlot("enforcement.active")
			require.NoError(t, err)
			assert.Nil(t, v)
		})
	}
}

func TestEncryptedSnapshotStore_ReopenWithSameKey(t *testing.T) {
	dataDir := t.TempDir()
	key, err := GenerateKey()
	require.NoError(t, err)

	store, err := NewEncryptedSnapshotStore(dataDir, key)
	require.NoError(t, err)
	require.NoError(t, store.SetProfileSnapshot(domain.ProfileSnapshot{ID: "p1", Name: "Focus"}))
	require.NoError(t, store.Close())

	reopened, err := NewEncryptedSnapshotStore(dataDir, key)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetProfileSnapshot("p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Focus", got.Name)
}

func TestEncryptedSnapshotStore_WrongKeyFails(t *testing.T) {
	dataDir := t.TempDir()
	key, err := GenerateKey()
	require.NoError(t, err)

	store, err := NewEncryptedSnapshotStore(dataDir, key)
	require.NoError(t, err)
	require.NoError(t, store.SetSlot("x", []byte(`1`)))
	require.NoError(t, store.Close())

	other, err := GenerateKey()
	require.NoError(t, err)
	_, err = NewEncryptedSnapshotStore(dataDir, other)
	assert.Error(t, err)
}

func TestFileSnapshotStore_RejectsNonJSONSlot(t *testing.T) {
	store, err := NewFileSnapshotStore(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, store.SetSlot("k", []byte("not json")))
}

func TestFileSnapshotStore_SharedBetweenInstances(t *testing.T) {
	dir := t.TempDir()
	fg, err := NewFileSnapshotStore(dir)
	require.NoError(t, err)
	bg, err := NewFileSnapshotStore(dir)
	require.NoError(t, err)

	require.NoError(t, bg.AppendCompletedSession(sessionSnap("s1", "p1", time.Now())))

	list, err := fg.CompletedSessions()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "s1", list[0].ID)
}
