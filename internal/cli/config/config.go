package config

import (
	"fmt"
	"os"
	"time"

	"webcoder/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL        = "http://127.0.0.1:8000/api/v1"
	DefaultTimeout        = 10 * time.Second
	DefaultTokenStatePath = "configs/cli_state.json"
	DefaultHistoryFile    = "configs/.cli_history"

	DefaultPollInterval    = 3 * time.Second
	DefaultPollOutputLimit = 200
	DefaultSnapshotTTL     = 24 * time.Hour
	DefaultProblemCacheTTL = 10 * time.Minute

	StoreDriverMemory = "memory"
	StoreDriverRedis  = "redis"
)

// Config holds CLI configuration.
type Config struct {
	BaseURL        string        `yaml:"baseURL"`
	Timeout        time.Duration `yaml:"timeout"`
	TokenStatePath string        `yaml:"tokenStatePath"`
	HistoryFile    string        `yaml:"historyFile"`
	PrettyJSON     *bool         `yaml:"prettyJSON"`
	NoColor        bool          `yaml:"noColor"`

	Poll          PollConfig          `yaml:"poll"`
	Log           logger.Config       `yaml:"log"`
	SnapshotStore SnapshotStoreConfig `yaml:"snapshotStore"`
	ProblemCache  ProblemCacheConfig  `yaml:"problemCache"`
}

// PollConfig tunes verdict polling. Zero MaxAttempts or MaxDuration means
// no limit.
type PollConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MaxAttempts int           `yaml:"maxAttempts"`
	MaxDuration time.Duration `yaml:"maxDuration"`
	OutputLimit int           `yaml:"outputLimit"`
}

// SnapshotStoreConfig selects where snapshots and history are kept.
type SnapshotStoreConfig struct {
	Driver    string        `yaml:"driver"`
	RedisAddr string        `yaml:"redisAddr"`
	TTL       time.Duration `yaml:"ttl"`
}

// ProblemCacheConfig tunes the problem read cache.
type ProblemCacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// Default returns a configuration with every default applied.
func Default() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

// Load reads path. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return cfg, fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file failed: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks values that have no sensible default.
func (c Config) Validate() error {
	switch c.SnapshotStore.Driver {
	case StoreDriverMemory:
	case StoreDriverRedis:
		if c.SnapshotStore.RedisAddr == "" {
			return fmt.Errorf("snapshotStore.redisAddr is required for the redis driver")
		}
	default:
		return fmt.Errorf("unknown snapshotStore.driver: %s", c.SnapshotStore.Driver)
	}
	if c.Poll.MaxAttempts < 0 {
		return fmt.Errorf("poll.maxAttempts must not be negative")
	}
	if c.Poll.MaxDuration < 0 {
		return fmt.Errorf("poll.maxDuration must not be negative")
	}
	return nil
}

// Pretty reports whether JSON output is indented.
func (c Config) Pretty() bool {
	return c.PrettyJSON == nil || *c.PrettyJSON
}

func applyDefaults(cfg *Config) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.TokenStatePath == "" {
		cfg.TokenStatePath = DefaultTokenStatePath
	}
	if cfg.HistoryFile == "" {
		cfg.HistoryFile = DefaultHistoryFile
	}
	if cfg.PrettyJSON == nil {
		value := true
		cfg.PrettyJSON = &value
	}
	if cfg.Poll.Interval <= 0 {
		cfg.Poll.Interval = DefaultPollInterval
	}
	if cfg.Poll.OutputLimit <= 0 {
		cfg.Poll.OutputLimit = DefaultPollOutputLimit
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "warn"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.OutputPath == "" {
		cfg.Log.OutputPath = "stderr"
	}
	if cfg.SnapshotStore.Driver == "" {
		cfg.SnapshotStore.Driver = StoreDriverMemory
	}
	if cfg.SnapshotStore.TTL <= 0 {
		cfg.SnapshotStore.TTL = DefaultSnapshotTTL
	}
	if cfg.ProblemCache.TTL <= 0 {
		cfg.ProblemCache.TTL = DefaultProblemCacheTTL
	}
}
