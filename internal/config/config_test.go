package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0600))
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, SnapshotEncrypted, cfg.Snapshot.Backend)
	assert.Equal(t, SchedulerStore, cfg.Scheduler.Backend)
	assert.Equal(t, 3, cfg.Quota.Count)
	assert.Equal(t, 28*24*time.Hour, cfg.Quota.Period)
	assert.Equal(t, 15*time.Minute, cfg.Session.BreakDuration)
	assert.Equal(t, time.Second, cfg.Session.TickInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, filepath.Join(dir, "logs", "focuslock.log"), cfg.Logging.File)
	assert.Equal(t, "127.0.0.1:7455", cfg.Automation.ListenAddr)
	assert.Equal(t, "/etc/hosts", cfg.Enforcement.HostsFile)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, `
snapshot:
  backend: file
scheduler:
  backend: launchd
daemon:
  tick_interval: 30s
quota:
  count: 5
  period: 168h
logging:
  level: debug
enforcement:
  hosts_file: /tmp/hosts
  apps:
    - id: minecraft
      name: Minecraft
      category: games
      process_patterns: [java, minecraft]
`)
	t.Setenv("FOCUSLOCK_LOG_LEVEL", "warn")
	t.Setenv("FOCUSLOCK_DAEMON_SWEEP", "2s")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, SnapshotFile, cfg.Snapshot.Backend)
	assert.Equal(t, SchedulerLaunchd, cfg.Scheduler.Backend)
	assert.Equal(t, 30*time.Second, cfg.Daemon.TickInterval)
	assert.Equal(t, 2*time.Second, cfg.Daemon.SweepInterval)
	assert.Equal(t, 5, cfg.Quota.Count)
	assert.Equal(t, 7*24*time.Hour, cfg.Quota.Period)
	assert.Equal(t, "warn", cfg.Logging.Level, "environment wins over the file")

	cat := cfg.Catalog()
	app, ok := cat.Get("minecraft")
	require.True(t, ok)
	assert.Equal(t, []string{"java", "minecraft"}, app.ProcessPatterns())
	_, ok = cat.Get("steam")
	assert.True(t, ok, "built-in apps are kept")
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	key := strings.Repeat("ab", 32)
	writeFile(t, dir, ".env", "FOCUSLOCK_STORE_KEY="+key+"\nFOCUSLOCK_QUOTA_COUNT=1\n")
	t.Cleanup(func() {
		os.Unsetenv("FOCUSLOCK_STORE_KEY")
		os.Unsetenv("FOCUSLOCK_QUOTA_COUNT")
	})

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, key, cfg.StoreKey)
	assert.Equal(t, 1, cfg.Quota.Count)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "unknown snapshot backend",
			yaml:    "snapshot:\n  backend: redis\n",
			wantErr: "Snapshot.Backend",
		},
		{
			name:    "log level",
			env:     map[string]string{"FOCUSLOCK_LOG_LEVEL": "chatty"},
			wantErr: "Logging.Level",
		},
		{
			name:    "bad duration in env",
			env:     map[string]string{"FOCUSLOCK_BREAK_DURATION": "soon"},
			wantErr: "FOCUSLOCK_BREAK_DURATION",
		},
		{
			name:    "short store key",
			env:     map[string]string{"FOCUSLOCK_STORE_KEY": "abcd"},
			wantErr: "StoreKey",
		},
		{
			name:    "catalog app without patterns",
			yaml:    "enforcement:\n  apps:\n    - id: x\n",
			wantErr: "ProcessPatterns",
		},
		{
			name:    "malformed yaml",
			yaml:    "snapshot: [",
			wantErr: "error parsing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.yaml != "" {
				writeFile(t, dir, FileName, tt.yaml)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default("/data")
	require.NoError(t, Validate(cfg))
	assert.Equal(t, "/data/logs/focuslock.log", cfg.Logging.File)
}
