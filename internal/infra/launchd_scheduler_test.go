package infra

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// recordingRunner records commands instead of running them.
type recordingRunner struct {
	calls []string
	err   error
}

func (r *recordingRunner) Run(_ context.Context, name string, args ...string) error {
	r.calls = append(r.calls, name+" "+strings.Join(args, " "))
	return r.err
}

func newTestLaunchdScheduler(t *testing.T, now time.Time) (*LaunchdScheduler, *recordingRunner, string) {
	t.Helper()
	dir := t.TempDir()
	mode := &ExecModeConfig{Mode: ExecModeUser, PlistDir: filepath.Join(dir, "LaunchAgents"), DataDir: dir}
	runner := &recordingRunner{}
	s := NewLaunchdScheduler(mode, "/usr/local/bin/focuslock", runner, zap.NewNop()).
		WithClock(func() time.Time { return now })
	return s, runner, mode.PlistDir
}

func TestWakeLabel_RoundTrip(t *testing.T) {
	name := domain.NewActivityName(domain.RoleStrategyTimer, "0b7c1c9e-6f0a-4f55-8c57-3f3f0f7e2a11")

	label := wakeLabel(name, EdgeEnd)
	assert.Equal(t, "app.focuslock.wake.strategy-timer.0b7c1c9e-6f0a-4f55-8c57-3f3f0f7e2a11.end", label)

	got, edge, ok := parseWakeLabel(label)
	require.True(t, ok)
	assert.Equal(t, name, got)
	assert.Equal(t, EdgeEnd, edge)

	for _, bad := range []string{
		"com.apple.something",
		"app.focuslock.wake.schedule",
		"app.focuslock.wake.bogus.p1.end",
		"app.focuslock.wake.schedule.p1.middle",
	} {
		_, _, ok := parseWakeLabel(bad)
		assert.False(t, ok, bad)
	}
}

func TestLaunchdScheduler_ScheduleDaily(t *testing.T) {
	ctx := context.Background()
	s, runner, dir := newTestLaunchdScheduler(t, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	name := domain.NewActivityName(domain.RoleSchedule, "p1")

	require.NoError(t, s.ScheduleDaily(ctx, name, domain.TimeOfDay{Hour: 9, Minute: 30}, domain.TimeOfDay{Hour: 17}))

	startPlist, err := os.ReadFile(filepath.Join(dir, "app.focuslock.wake.schedule.p1.start.plist"))
	require.NoError(t, err)
	content := string(startPlist)
	assert.Contains(t, content, "<string>wake</string>")
	assert.Contains(t, content, "<string>start</string>")
	assert.Contains(t, content, "<string>schedule:p1</string>")
	assert.Contains(t, content, "<key>Hour</key>\n        <integer>9</integer>")
	assert.Contains(t, content, "<integer>30</integer>")
	assert.NotContains(t, content, "<key>Month</key>", "daily jobs repeat every day")

	_, err = os.Stat(filepath.Join(dir, "app.focuslock.wake.schedule.p1.end.plist"))
	require.NoError(t, err)
	assert.Len(t, runner.calls, 2)
	assert.True(t, strings.HasPrefix(runner.calls[0], "launchctl load -w "))

	// Re-scheduling unloads the previous jobs first.
	runner.calls = nil
	require.NoError(t, s.ScheduleDaily(ctx, name, domain.TimeOfDay{Hour: 10}, domain.TimeOfDay{Hour: 11}))
	assert.True(t, strings.HasPrefix(runner.calls[0], "launchctl unload "))
}

func TestLaunchdScheduler_ScheduleOnceClampsToEndOfDay(t *testing.T) {
	ctx := context.Background()
	s, _, dir := newTestLaunchdScheduler(t, time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC))
	name := domain.NewActivityName(domain.RoleBreak, "p1")

	require.NoError(t, s.ScheduleOnce(ctx, name, 3*time.Hour))

	data, err := os.ReadFile(filepath.Join(dir, "app.focuslock.wake.break.p1.end.plist"))
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "<key>Month</key>\n        <integer>3</integer>")
	assert.Contains(t, content, "<key>Day</key>\n        <integer>2</integer>")
	assert.Contains(t, content, "<key>Hour</key>\n        <integer>23</integer>")
	assert.Contains(t, content, "<key>Minute</key>\n        <integer>59</integer>")

	_, err = os.Stat(filepath.Join(dir, "app.focuslock.wake.break.p1.start.plist"))
	assert.True(t, os.IsNotExist(err), "one-shot jobs only need the end edge")
}

func TestLaunchdScheduler_ListAndCancel(t *testing.T) {
	ctx := context.Background()
	s, _, dir := newTestLaunchdScheduler(t, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))

	sched := domain.NewActivityName(domain.RoleSchedule, "p1")
	timer := domain.NewActivityName(domain.RoleStrategyTimer, "p1")
	require.NoError(t, s.ScheduleDaily(ctx, sched, domain.TimeOfDay{Hour: 9}, domain.TimeOfDay{Hour: 17}))
	require.NoError(t, s.ScheduleOnce(ctx, timer, 30*time.Minute))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.focuslock.wake.junk.plist"), []byte("x"), 0644))

	active, err := s.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.ActivityName{sched, timer}, active)

	require.NoError(t, s.Cancel(ctx, domain.SessionActivities("p1")...))
	active, err = s.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.ActivityName{sched}, active, "stop never cancels the standing schedule")

	require.NoError(t, s.Cancel(ctx, sched, domain.NewActivityName(domain.RoleBreak, "never")))
	active, err = s.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}
