// Package config loads focuslock settings from config.yaml, the environment
// and defaults, in that order of precedence (environment wins over file).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/focusd/focuslock/internal/catalog"
)

const (
	// FileName is the config file looked up inside the data directory.
	FileName = "config.yaml"

	SnapshotEncrypted = "encrypted"
	SnapshotFile      = "file"

	SchedulerLaunchd = "launchd"
	SchedulerStore   = "store"
)

// Config is the full focuslock configuration.
type Config struct {
	DataDir  string `yaml:"data_dir" env:"FOCUSLOCK_DATA_DIR" validate:"required"`
	StoreKey string `yaml:"-" env:"FOCUSLOCK_STORE_KEY" validate:"omitempty,hexadecimal,len=64"`

	Snapshot    SnapshotSettings    `yaml:"snapshot"`
	Scheduler   SchedulerSettings   `yaml:"scheduler"`
	Daemon      DaemonSettings      `yaml:"daemon"`
	Quota       QuotaSettings       `yaml:"quota"`
	Session     SessionSettings     `yaml:"session"`
	Logging     LoggingSettings     `yaml:"logging"`
	Automation  AutomationSettings  `yaml:"automation"`
	Enforcement EnforcementSettings `yaml:"enforcement"`
}

type SnapshotSettings struct {
	Backend string `yaml:"backend" env:"FOCUSLOCK_SNAPSHOT_BACKEND" validate:"oneof=encrypted file"`
}

type SchedulerSettings struct {
	Backend string `yaml:"backend" env:"FOCUSLOCK_SCHEDULER_BACKEND" validate:"oneof=launchd store"`
	// Executable is the binary launchd wake jobs run. Defaults to the running binary.
	Executable string `yaml:"executable" env:"FOCUSLOCK_EXECUTABLE"`
}

// DaemonSettings drive the background watcher loop.
type DaemonSettings struct {
	TickInterval  time.Duration `yaml:"tick_interval" env:"FOCUSLOCK_DAEMON_TICK" validate:"min=1000000000"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"FOCUSLOCK_DAEMON_SWEEP" validate:"min=1000000000"`
}

type QuotaSettings struct {
	Count  int           `yaml:"count" env:"FOCUSLOCK_QUOTA_COUNT" validate:"min=0,max=100"`
	Period time.Duration `yaml:"period" env:"FOCUSLOCK_QUOTA_PERIOD" validate:"min=3600000000000"`
}

type SessionSettings struct {
	BreakDuration time.Duration `yaml:"break_duration" env:"FOCUSLOCK_BREAK_DURATION" validate:"min=60000000000"`
	ComeBackAfter time.Duration `yaml:"come_back_after" env:"FOCUSLOCK_COME_BACK_AFTER" validate:"min=0"`
	TickInterval  time.Duration `yaml:"tick_interval" env:"FOCUSLOCK_STATUS_TICK" validate:"min=100000000"`
}

type LoggingSettings struct {
	Level      string `yaml:"level" env:"FOCUSLOCK_LOG_LEVEL" validate:"oneof=debug info warn error"`
	File       string `yaml:"file" env:"FOCUSLOCK_LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"FOCUSLOCK_LOG_MAX_SIZE_MB" validate:"min=1"`
	MaxBackups int    `yaml:"max_backups" env:"FOCUSLOCK_LOG_MAX_BACKUPS" validate:"min=0"`
	MaxAgeDays int    `yaml:"max_age_days" env:"FOCUSLOCK_LOG_MAX_AGE_DAYS" validate:"min=0"`
}

type AutomationSettings struct {
	ListenAddr string `yaml:"listen_addr" env:"FOCUSLOCK_LISTEN_ADDR" validate:"required,hostname_port"`
}

type EnforcementSettings struct {
	HostsFile string `yaml:"hosts_file" env:"FOCUSLOCK_HOSTS_FILE" validate:"required"`
	// Apps extend or replace built-in catalog entries by id.
	Apps []catalog.App `yaml:"apps" validate:"dive"`
}

// Default returns the built-in configuration rooted at dataDir.
func Default(dataDir string) *Config {
	cfg := &Config{DataDir: dataDir}
	setDefaults(cfg)
	return cfg
}

// Load reads <dataDir>/.env and <dataDir>/config.yaml when they exist,
// applies FOCUSLOCK_* environment overrides, fills defaults and validates.
func Load(dataDir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dataDir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	cfg := &Config{}
	path := filepath.Join(dataDir, FileName)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}

	if err := LoadEnv(cfg); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = dataDir
	}
	setDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Snapshot.Backend == "" {
		cfg.Snapshot.Backend = SnapshotEncrypted
	}
	if cfg.Scheduler.Backend == "" {
		cfg.Scheduler.Backend = SchedulerStore
	}
	if cfg.Daemon.TickInterval == 0 {
		cfg.Daemon.TickInterval = 15 * time.Second
	}
	if cfg.Daemon.SweepInterval == 0 {
		cfg.Daemon.SweepInterval = 5 * time.Second
	}
	if cfg.Quota.Count == 0 && cfg.Quota.Period == 0 {
		cfg.Quota.Count = 3
	}
	if cfg.Quota.Period == 0 {
		cfg.Quota.Period = 4 * 7 * 24 * time.Hour
	}
	if cfg.Session.BreakDuration == 0 {
		cfg.Session.BreakDuration = 15 * time.Minute
	}
	if cfg.Session.ComeBackAfter == 0 {
		cfg.Session.ComeBackAfter = time.Hour
	}
	if cfg.Session.TickInterval == 0 {
		cfg.Session.TickInterval = time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "logs", "focuslock.log")
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = 10
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 3
	}
	if cfg.Logging.MaxAgeDays == 0 {
		cfg.Logging.MaxAgeDays = 28
	}
	if cfg.Automation.ListenAddr == "" {
		cfg.Automation.ListenAddr = "127.0.0.1:7455"
	}
	if cfg.Enforcement.HostsFile == "" {
		cfg.Enforcement.HostsFile = "/etc/hosts"
	}
}

var validate = validator.New()

// Validate checks struct constraints and returns the first violation.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return fmt.Errorf("%s: failed %q (got %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}

// Catalog builds the app catalog with configured overrides applied.
func (c *Config) Catalog() *catalog.Registry {
	reg := catalog.NewRegistry()
	for _, a := range c.Enforcement.Apps {
		reg.Register(catalog.FromApp(a))
	}
	return reg
}
