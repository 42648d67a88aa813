// Package config loads and validates drain settings from defaults, a YAML
// file and GENTLE_DRAIN_* environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/AntonOks/ceph-scripts/pkg/types"
	"github.com/cockroachdb/errors"
	"github.com/vrischmann/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override
const EnvPrefix = "GENTLE_DRAIN"

// Defaults
const (
	DefaultMaxBackfills   = 20
	DefaultMaxLatency     = 50.0
	DefaultMaxDeltaWeight = 2.0
	DefaultStep           = 1.0
	DefaultPool           = "test"
	DefaultInterval       = 60 * time.Second

	DefaultPoolPGNum      = 8
	DefaultBenchSeconds   = 10
	DefaultCommandTimeout = 2 * time.Minute
	DefaultEnsureAttempts = 3
)

// MinWeightStep is the smallest CRUSH weight change ceph can represent.
// Anything smaller rounds away and leaves the weight unchanged.
const MinWeightStep = 1e-5

// DrainConfig is captured once at start and never changes afterwards
type DrainConfig struct {
	// Targets are OSD ids in the order rounds visit them
	Targets []string `yaml:"targets"`

	MaxBackfills int `yaml:"max_backfills"`
	// MaxLatency is in milliseconds
	MaxLatency     float64 `yaml:"max_latency"`
	MaxDeltaWeight float64 `yaml:"max_delta_weight"`
	Step           float64 `yaml:"step"`
	Pool           string  `yaml:"pool"`

	Interval time.Duration `yaml:"interval"`
}

// Config is everything the ceph-gentle-drain binary needs
type Config struct {
	Drain DrainConfig `yaml:"drain"`
	Ceph  CephConfig  `yaml:"ceph"`

	PoolPGNum      int    `yaml:"pool_pg_num"`
	BenchSeconds   int    `yaml:"bench_seconds"`
	EnsureAttempts uint   `yaml:"ensure_attempts"`
	JournalPath    string `yaml:"journal"`
	MetricsAddr    string `yaml:"metrics_addr"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// CephConfig selects the cluster and binaries the adapter talks to
type CephConfig struct {
	CephBinary  string        `yaml:"ceph_binary"`
	RadosBinary string        `yaml:"rados_binary"`
	Cluster     string        `yaml:"cluster"`
	ID          string        `yaml:"id"`
	ConfPath    string        `yaml:"conf"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Default returns a Config populated with the documented defaults
func Default() Config {
	return Config{
		Drain: DrainConfig{
			MaxBackfills:   DefaultMaxBackfills,
			MaxLatency:     DefaultMaxLatency,
			MaxDeltaWeight: DefaultMaxDeltaWeight,
			Step:           DefaultStep,
			Pool:           DefaultPool,
			Interval:       DefaultInterval,
		},
		Ceph: CephConfig{
			CephBinary:  "ceph",
			RadosBinary: "rados",
			Timeout:     DefaultCommandTimeout,
		},
		PoolPGNum:      DefaultPoolPGNum,
		BenchSeconds:   DefaultBenchSeconds,
		EnsureAttempts: DefaultEnsureAttempts,
		LogLevel:       "info",
	}
}

// LoadFile overlays a YAML file on top of cfg. Keys absent from the file keep
// their current value.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read config file")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrapf(err, "failed to parse config file %s", path)
	}
	return nil
}

// envOverrides mirrors the settable fields. Pointers stay nil when the
// variable is unset.
type envOverrides struct {
	Targets        []string
	MaxBackfills   *int
	MaxLatency     *float64
	MaxDeltaWeight *float64
	Step           *float64
	Pool           *string
	Interval       *int // seconds
	Journal        *string
	MetricsAddr    *string
	LogLevel       *string
	CephCluster    *string
	CephID         *string
	CephConf       *string
}

// LoadEnv applies GENTLE_DRAIN_* variables on top of cfg
func LoadEnv(cfg *Config) error {
	var env envOverrides
	err := envconfig.InitWithOptions(&env, envconfig.Options{
		Prefix:      EnvPrefix,
		AllOptional: true,
		LeaveNil:    true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to read environment")
	}

	if len(env.Targets) > 0 {
		cfg.Drain.Targets = env.Targets
	}
	if env.MaxBackfills != nil {
		cfg.Drain.MaxBackfills = *env.MaxBackfills
	}
	if env.MaxLatency != nil {
		cfg.Drain.MaxLatency = *env.MaxLatency
	}
	if env.MaxDeltaWeight != nil {
		cfg.Drain.MaxDeltaWeight = *env.MaxDeltaWeight
	}
	if env.Step != nil {
		cfg.Drain.Step = *env.Step
	}
	if env.Pool != nil {
		cfg.Drain.Pool = *env.Pool
	}
	if env.Interval != nil {
		cfg.Drain.Interval = time.Duration(*env.Interval) * time.Second
	}
	if env.Journal != nil {
		cfg.JournalPath = *env.Journal
	}
	if env.MetricsAddr != nil {
		cfg.MetricsAddr = *env.MetricsAddr
	}
	if env.LogLevel != nil {
		cfg.LogLevel = *env.LogLevel
	}
	if env.CephCluster != nil {
		cfg.Ceph.Cluster = *env.CephCluster
	}
	if env.CephID != nil {
		cfg.Ceph.ID = *env.CephID
	}
	if env.CephConf != nil {
		cfg.Ceph.ConfPath = *env.CephConf
	}
	return nil
}

// ValidationError names the configuration field that was rejected
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return errors.Mark(&ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}, types.ErrValidation)
}

// Normalize canonicalizes target ids to "osd.N"
func (c *DrainConfig) Normalize() error {
	for i, t := range c.Targets {
		id, err := types.NormalizeOSD(t)
		if err != nil {
			return invalid("targets", "%v", err)
		}
		c.Targets[i] = id
	}
	return nil
}

// Validate rejects a configuration before any round is attempted
func (c *DrainConfig) Validate() error {
	if len(c.Targets) == 0 {
		return invalid("targets", "at least one target node is required")
	}
	seen := make(map[string]bool, len(c.Targets))
	for _, t := range c.Targets {
		if t == "" {
			return invalid("targets", "empty node id")
		}
		if seen[t] {
			return invalid("targets", "node %s listed more than once", t)
		}
		seen[t] = true
	}
	if c.MaxBackfills < 0 {
		return invalid("max_backfills", "must be >= 0, got %d", c.MaxBackfills)
	}
	if c.MaxLatency <= 0 {
		return invalid("max_latency", "must be positive, got %g", c.MaxLatency)
	}
	if c.MaxDeltaWeight < MinWeightStep {
		return invalid("max_delta_weight", "must be at least %g, got %g", MinWeightStep, c.MaxDeltaWeight)
	}
	if c.Step < MinWeightStep {
		return invalid("step", "must be at least %g, got %g", MinWeightStep, c.Step)
	}
	if c.Pool == "" {
		return invalid("pool", "scratch pool name is required")
	}
	if c.Interval <= 0 {
		return invalid("interval", "must be positive, got %s", c.Interval)
	}
	return nil
}

// Validate checks the drain settings and the auxiliary ones
func (c *Config) Validate() error {
	if err := c.Drain.Validate(); err != nil {
		return err
	}
	if c.PoolPGNum <= 0 {
		return invalid("pool_pg_num", "must be positive, got %d", c.PoolPGNum)
	}
	if c.BenchSeconds <= 0 {
		return invalid("bench_seconds", "must be positive, got %d", c.BenchSeconds)
	}
	if c.EnsureAttempts == 0 {
		return invalid("ensure_attempts", "must be at least 1")
	}
	if c.Ceph.Timeout <= 0 {
		return invalid("ceph.timeout", "must be positive, got %s", c.Ceph.Timeout)
	}
	return nil
}
