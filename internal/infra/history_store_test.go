package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

func newTestHistory(t *testing.T) *HistoryStore {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	h, err := NewHistoryStore(t.TempDir(), key)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func ts(hour, min int) time.Time {
	return time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC)
}

func tp(t time.Time) *time.Time { return &t }

func TestHistoryStore_Profiles(t *testing.T) {
	ctx := context.Background()
	h := newTestHistory(t)

	_, err := h.GetProfile(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	start := domain.TimeOfDay{Hour: 9}
	end := domain.TimeOfDay{Hour: 17}
	p := domain.Profile{
		ID:         "b0a6c1c4-5f7e-4a57-9d47-0d6f1d2b9a10",
		Name:       "Work",
		Selection:  domain.Selection{Apps: []string{"steam"}, Domains: []string{"store.steampowered.com"}},
		StrategyID: "nfc",
		Schedule:   &domain.Schedule{Days: []time.Weekday{time.Monday}, Start: &start, End: &end},
		Order:      2,
	}
	require.NoError(t, h.SaveProfile(ctx, p))
	require.NoError(t, h.SaveProfile(ctx, domain.Profile{ID: "a", Name: "Zen", Order: 1}))
	require.NoError(t, h.SaveProfile(ctx, domain.Profile{ID: "c", Name: "Alpha", Order: 2}))

	got, err := h.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Work", got.Name)
	assert.Equal(t, "nfc", got.StrategyID)
	require.NotNil(t, got.Schedule)
	assert.Equal(t, 17, got.Schedule.End.Hour)

	list, err := h.ListProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"Zen", "Alpha", "Work"}, []string{list[0].Name, list[1].Name, list[2].Name})

	require.NoError(t, h.DeleteProfile(ctx, p.ID))
	_, err = h.GetProfile(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHistoryStore_Sessions(t *testing.T) {
	ctx := context.Background()
	h := newTestHistory(t)

	active, err := h.ActiveSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)

	require.NoError(t, h.SaveSession(ctx, domain.Session{ID: "s1", ProfileID: "p1", StartTime: ts(8, 0), EndTime: tp(ts(8, 30))}))
	require.NoError(t, h.SaveSession(ctx, domain.Session{ID: "s2", ProfileID: "p1", StartTime: ts(9, 0), ForceStarted: true}))
	require.NoError(t, h.SaveSession(ctx, domain.Session{ID: "s3", ProfileID: "p2", StartTime: ts(7, 0)}))

	active, err = h.ActiveSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "s2", active.ID, "latest open session wins")
	assert.True(t, active.ForceStarted)
	assert.True(t, ts(9, 0).Equal(active.StartTime))

	_, err = h.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := h.ListSessions(ctx, "p1", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "s2", list[0].ID, "newest first")

	list, err = h.ListSessions(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, h.DeleteSessions(ctx, "p1"))
	list, err = h.ListSessions(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "s3", list[0].ID)
}

func TestHistoryStore_UpsertOnlyFillsEmptyFields(t *testing.T) {
	ctx := context.Background()
	h := newTestHistory(t)

	localEnd := ts(9, 25)
	require.NoError(t, h.SaveSession(ctx, domain.Session{ID: "s1", ProfileID: "p1", StartTime: ts(9, 0), EndTime: &localEnd}))

	// A stale snapshot with a different end must not rewrite history.
	require.NoError(t, h.UpsertSession(ctx, domain.Session{
		ID: "s1", ProfileID: "p1", StartTime: ts(9, 0),
		EndTime:        tp(ts(10, 0)),
		BreakStartTime: tp(ts(9, 10)),
	}))

	got, err := h.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, localEnd.Equal(*got.EndTime))
	require.NotNil(t, got.BreakStartTime, "empty break start is filled")
	assert.True(t, ts(9, 10).Equal(*got.BreakStartTime))

	// Unknown sessions are inserted.
	require.NoError(t, h.UpsertSession(ctx, domain.Session{ID: "s2", ProfileID: "p1", StartTime: ts(11, 0)}))
	_, err = h.GetSession(ctx, "s2")
	require.NoError(t, err)
}

func TestHistoryStore_Quota(t *testing.T) {
	ctx := context.Background()
	h := newTestHistory(t)

	q, err := h.LoadQuota(ctx)
	require.NoError(t, err)
	assert.Nil(t, q)

	require.NoError(t, h.SaveQuota(ctx, domain.EmergencyQuota{Remaining: 2, LastReset: ts(0, 0)}))
	q, err = h.LoadQuota(ctx)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, 2, q.Remaining)
	assert.True(t, ts(0, 0).Equal(q.LastReset))
}

func TestHistoryStore_StorageFailures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk I/O error")

	tests := []struct {
		name   string
		expect func(mock sqlmock.Sqlmock)
		call   func(h *HistoryStore) error
		kind   error
	}{
		{
			name: "GetProfile lookup failure is a storage error",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT data FROM profiles").WithArgs("p1").WillReturnError(boom)
			},
			call: func(h *HistoryStore) error {
				_, err := h.GetProfile(ctx, "p1")
				return err
			},
			kind: domain.ErrStorage,
		},
		{
			name: "GetProfile miss is not found",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT data FROM profiles").WithArgs("p1").
					WillReturnRows(sqlmock.NewRows([]string{"data"}))
			},
			call: func(h *HistoryStore) error {
				_, err := h.GetProfile(ctx, "p1")
				return err
			},
			kind: domain.ErrNotFound,
		},
		{
			name: "ListProfiles failure is a storage error",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT data FROM profiles ORDER BY").WillReturnError(boom)
			},
			call: func(h *HistoryStore) error {
				_, err := h.ListProfiles(ctx)
				return err
			},
			kind: domain.ErrStorage,
		},
		{
			name: "UpsertSession surfaces the driver error",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("ON CONFLICT\\(id\\) DO UPDATE").WillReturnError(boom)
			},
			call: func(h *HistoryStore) error {
				return h.UpsertSession(ctx, domain.Session{ID: "s1", ProfileID: "p1", StartTime: ts(9, 0)})
			},
			kind: boom,
		},
		{
			name: "SaveQuota surfaces the driver error",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT OR REPLACE INTO meta").WillReturnError(boom)
			},
			call: func(h *HistoryStore) error {
				return h.SaveQuota(ctx, domain.EmergencyQuota{Remaining: 1})
			},
			kind: boom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.expect(mock)
			err = tt.call(NewHistoryStoreFromDB(db))
			assert.ErrorIs(t, err, tt.kind)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestHistoryStore_ActiveSessionScan(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	start := ts(9, 0)
	brk := ts(9, 30)
	rows := sqlmock.NewRows([]string{"id", "profile_id", "start_time", "end_time", "break_start_time", "break_end_time", "force_started"}).
		AddRow("s1", "p1", start.UnixNano(), nil, brk.UnixNano(), nil, 1)
	mock.ExpectQuery("WHERE end_time IS NULL").WillReturnRows(rows)

	s, err := NewHistoryStoreFromDB(db).ActiveSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.True(t, s.IsActive())
	assert.True(t, s.IsOnBreak())
	assert.True(t, s.ForceStarted)
	assert.True(t, brk.Equal(*s.BreakStartTime))
	assert.NoError(t, mock.ExpectationsWereMet())
}
