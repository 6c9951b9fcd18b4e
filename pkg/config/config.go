// Package config loads the configuration of the aether command.
//
// Values come from built-in defaults, an optional YAML file, and environment
// variables named after the keys with an AETHER_ prefix, for example
// AETHER_TRACKER_UPPER for tracker.upper. Later sources take precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/synnaxlabs/synnax-sub025/pkg/errutil"
	"github.com/synnaxlabs/synnax-sub025/pkg/perf"
	"github.com/synnaxlabs/synnax-sub025/pkg/worker"
)

// Config holds all configuration.
type Config struct {
	Worker  WorkerConfig  `mapstructure:"worker" yaml:"worker"`
	Tracker TrackerConfig `mapstructure:"tracker" yaml:"tracker"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// WorkerConfig holds settings of worker sessions.
type WorkerConfig struct {
	FrameRate int `mapstructure:"frame_rate" yaml:"frame_rate"`
	// Number of frames between quality level updates.
	Epoch            int           `mapstructure:"epoch" yaml:"epoch"`
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval" yaml:"snapshot_interval"`
}

// TrackerConfig holds settings of the performance tracker.
type TrackerConfig struct {
	Target   time.Duration `mapstructure:"target" yaml:"target"`
	Lower    float64       `mapstructure:"lower" yaml:"lower"`
	Upper    float64       `mapstructure:"upper" yaml:"upper"`
	MaxLevel int           `mapstructure:"max_level" yaml:"max_level"`
}

// ServerConfig holds settings of the HTTP server.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Store backends.
const (
	BackendNone   = "none"
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
)

// StoreConfig selects where snapshots and presentation state are kept.
type StoreConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// File receives the logs of all subsystems. Empty discards them.
	File  string `mapstructure:"file" yaml:"file"`
	Debug bool   `mapstructure:"debug" yaml:"debug"`
}

// Perf converts the tracker settings.
func (c TrackerConfig) Perf() perf.Config {
	return perf.Config{Target: c.Target, Lower: c.Lower, Upper: c.Upper, MaxLevel: c.MaxLevel}
}

// WorkerConfig returns a worker.Config with the settings of c. The caller
// fills in the connection, registry and canvases.
func (c *Config) WorkerConfig() worker.Config {
	return worker.Config{
		FrameRate:        c.Worker.FrameRate,
		Epoch:            c.Worker.Epoch,
		SnapshotInterval: c.Worker.SnapshotInterval,
		Tracker:          c.Tracker.Perf(),
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.Worker.FrameRate <= 0 {
		errs = append(errs, fmt.Errorf("worker.frame_rate must be positive, got %d", c.Worker.FrameRate))
	}
	if c.Worker.Epoch <= 0 {
		errs = append(errs, fmt.Errorf("worker.epoch must be positive, got %d", c.Worker.Epoch))
	}
	if c.Tracker.Target <= 0 {
		errs = append(errs, fmt.Errorf("tracker.target must be positive, got %v", c.Tracker.Target))
	}
	if c.Tracker.Lower < 0 || c.Tracker.Upper > 1 || c.Tracker.Lower > c.Tracker.Upper {
		errs = append(errs, fmt.Errorf("tracker thresholds must satisfy 0 <= lower <= upper <= 1, got %v and %v",
			c.Tracker.Lower, c.Tracker.Upper))
	}
	switch c.Store.Backend {
	case BackendNone:
	case BackendBolt, BackendSQLite:
		if c.Store.Path == "" {
			errs = append(errs, fmt.Errorf("store.path is required for backend %s", c.Store.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.backend %q", c.Store.Backend))
	}
	return errutil.Multi(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("worker.frame_rate", worker.DefaultFrameRate)
	v.SetDefault("worker.epoch", worker.DefaultEpoch)
	v.SetDefault("worker.snapshot_interval", 10*time.Second)
	v.SetDefault("tracker.target", perf.DefaultTarget)
	v.SetDefault("tracker.lower", perf.DefaultLower)
	v.SetDefault("tracker.upper", perf.DefaultUpper)
	v.SetDefault("tracker.max_level", 0)
	v.SetDefault("server.addr", "localhost:7117")
	v.SetDefault("store.backend", BackendBolt)
	v.SetDefault("store.path", filepath.Join(dataDir(), "aether.db"))
	v.SetDefault("log.file", "")
	v.SetDefault("log.debug", false)
}

func dataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "aether")
}

// UserConfigDir returns the directory searched for aether.yaml when no file
// is given to Load.
func UserConfigDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "aether")
}

// Default returns the built-in configuration, ignoring files and the
// environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := unmarshal(v)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the configuration. If path is empty, aether.yaml is looked up in
// UserConfigDir and the working directory, and a missing file is not an
// error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("aether")
		v.SetConfigType("yaml")
		v.AddConfigPath(UserConfigDir())
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	v.SetEnvPrefix("AETHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}
