package infra

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// wakeLabelPrefix namespaces every plist this scheduler owns.
const wakeLabelPrefix = "app.focuslock.wake."

// Wake job plist: runs `<binary> wake <edge> <activity>` at a calendar time.
// Month and Day are only set for one-shot jobs.
const wakePlistTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>

    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
        <string>wake</string>
        <string>{{.Edge}}</string>
        <string>{{.Activity}}</string>
    </array>

    <key>StartCalendarInterval</key>
    <dict>
{{- if .Month}}
        <key>Month</key>
        <integer>{{.Month}}</integer>
        <key>Day</key>
        <integer>{{.Day}}</integer>
{{- end}}
        <key>Hour</key>
        <integer>{{.Hour}}</integer>
        <key>Minute</key>
        <integer>{{.Minute}}</integer>
    </dict>

    <key>StandardOutPath</key>
    <string>{{.LogPath}}</string>

    <key>StandardErrorPath</key>
    <string>{{.LogPath}}</string>

    <key>ProcessType</key>
    <string>Background</string>
</dict>
</plist>`

var wakePlist = template.Must(template.New("wake").Parse(wakePlistTemplate))

type wakePlistConfig struct {
	Label          string
	ExecutablePath string
	Edge           Edge
	Activity       string
	Month, Day     int
	Hour, Minute   int
	LogPath        string
}

// LaunchdScheduler implements domain.TimerScheduler with launchd calendar
// jobs. Each registration owns one plist per edge; launchd runs
// `focuslock wake start|end <activity>` when they fire.
type LaunchdScheduler struct {
	plistDir string
	execPath string
	logPath  string
	runner   CommandRunner
	logger   *zap.Logger
	now      func() time.Time
}

// NewLaunchdScheduler creates a scheduler writing plists into the exec mode's
// plist directory.
func NewLaunchdScheduler(mode *ExecModeConfig, execPath string, runner CommandRunner, logger *zap.Logger) *LaunchdScheduler {
	return &LaunchdScheduler{
		plistDir: mode.PlistDir,
		execPath: execPath,
		logPath:  filepath.Join(mode.DataDir, "wake.log"),
		runner:   runner,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Tests only.
func (s *LaunchdScheduler) WithClock(now func() time.Time) *LaunchdScheduler {
	s.now = now
	return s
}

func wakeLabel(name domain.ActivityName, edge Edge) string {
	return wakeLabelPrefix + string(name.Role) + "." + name.ProfileID + "." + string(edge)
}

// parseWakeLabel reverses wakeLabel.
func parseWakeLabel(label string) (domain.ActivityName, Edge, bool) {
	rest := strings.TrimPrefix(label, wakeLabelPrefix)
	if rest == label {
		return domain.ActivityName{}, "", false
	}
	dot := strings.LastIndex(rest, ".")
	if dot < 0 {
		return domain.ActivityName{}, "", false
	}
	edge := Edge(rest[dot+1:])
	if edge != EdgeStart && edge != EdgeEnd {
		return domain.ActivityName{}, "", false
	}
	role, id, ok := strings.Cut(rest[:dot], ".")
	if !ok {
		return domain.ActivityName{}, "", false
	}
	name, err := domain.ParseActivityName(role + ":" + id)
	if err != nil {
		return domain.ActivityName{}, "", false
	}
	return name, edge, true
}

func (s *LaunchdScheduler) plistPath(label string) string {
	return filepath.Join(s.plistDir, label+".plist")
}

func (s *LaunchdScheduler) render(cfg wakePlistConfig) ([]byte, error) {
	var buf bytes.Buffer
	if err := wakePlist.Execute(&buf, cfg); err != nil {
		return nil, fmt.Errorf("failed to execute plist template: %w", err)
	}
	return buf.Bytes(), nil
}

// install writes and loads one job, unloading any previous version first.
func (s *LaunchdScheduler) install(ctx context.Context, cfg wakePlistConfig) error {
	if err := os.MkdirAll(s.plistDir, 0755); err != nil {
		return err
	}
	content, err := s.render(cfg)
	if err != nil {
		return err
	}
	path := s.plistPath(cfg.Label)
	if _, err := os.Stat(path); err == nil {
		_ = s.runner.Run(ctx, "launchctl", "unload", path)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return err
	}
	return s.runner.Run(ctx, "launchctl", "load", "-w", path)
}

func (s *LaunchdScheduler) uninstall(ctx context.Context, label string) error {
	path := s.plistPath(label)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	_ = s.runner.Run(ctx, "launchctl", "unload", path)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *LaunchdScheduler) job(name domain.ActivityName, edge Edge) wakePlistConfig {
	return wakePlistConfig{
		Label:          wakeLabel(name, edge),
		ExecutablePath: s.execPath,
		Edge:           edge,
		Activity:       name.String(),
		LogPath:        s.logPath,
	}
}

// ScheduleOnce installs a dated end job. The start of a one-shot window is
// now, so only the end needs a wake-up; `wake end` cancels the job after it runs.
func (s *LaunchdScheduler) ScheduleOnce(ctx context.Context, name domain.ActivityName, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("schedule %s: duration must be positive", name)
	}
	_, end := domain.OnceWindow(s.now(), d)

	if err := s.uninstall(ctx, wakeLabel(name, EdgeStart)); err != nil {
		return err
	}
	cfg := s.job(name, EdgeEnd)
	cfg.Month, cfg.Day = int(end.Month()), end.Day()
	cfg.Hour, cfg.Minute = end.Hour(), end.Minute()
	if err := s.install(ctx, cfg); err != nil {
		return fmt.Errorf("install %s: %w", cfg.Label, err)
	}
	s.logger.Info("registered one-shot wake",
		zap.String("activity", name.String()),
		zap.Time("end", end))
	return nil
}

// ScheduleDaily installs a start and an end job firing every day.
func (s *LaunchdScheduler) ScheduleDaily(ctx context.Context, name domain.ActivityName, start, end domain.TimeOfDay) error {
	if !start.Valid() || !end.Valid() {
		return fmt.Errorf("schedule %s: invalid window %s-%s", name, start, end)
	}
	for _, e := range []struct {
		edge Edge
		at   domain.TimeOfDay
	}{{EdgeStart, start}, {EdgeEnd, end}} {
		cfg := s.job(name, e.edge)
		cfg.Hour, cfg.Minute = e.at.Hour, e.at.Minute
		if err := s.install(ctx, cfg); err != nil {
			return fmt.Errorf("install %s: %w", cfg.Label, err)
		}
	}
	s.logger.Info("registered daily wake",
		zap.String("activity", name.String()),
		zap.Stringer("start", start),
		zap.Stringer("end", end))
	return nil
}

// Cancel unloads and removes both jobs of each name.
func (s *LaunchdScheduler) Cancel(ctx context.Context, names ...domain.ActivityName) error {
	var firstErr error
	for _, n := range names {
		for _, edge := range []Edge{EdgeStart, EdgeEnd} {
			if err := s.uninstall(ctx, wakeLabel(n, edge)); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// ListActive scans the plist directory for jobs this scheduler owns.
func (s *LaunchdScheduler) ListActive(_ context.Context) ([]domain.ActivityName, error) {
	matches, err := filepath.Glob(filepath.Join(s.plistDir, wakeLabelPrefix+"*.plist"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob wake plists: %w", err)
	}

	seen := make(map[string]domain.ActivityName)
	for _, path := range matches {
		label := strings.TrimSuffix(filepath.Base(path), ".plist")
		name, _, ok := parseWakeLabel(label)
		if !ok {
			s.logger.Warn("ignoring unrecognised wake plist", zap.String("path", path))
			continue
		}
		seen[name.String()] = name
	}

	names := make([]domain.ActivityName, 0, len(seen))
	for _, n := range seen {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i].String() < names[j].String() })
	return names, nil
}

var _ domain.TimerScheduler = (*LaunchdScheduler)(nil)
