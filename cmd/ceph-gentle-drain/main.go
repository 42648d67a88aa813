package main

import (
	"fmt"
	"os"

	"github.com/AntonOks/ceph-scripts/pkg/bench"
	"github.com/AntonOks/ceph-scripts/pkg/ceph"
	"github.com/AntonOks/ceph-scripts/pkg/config"
	"github.com/AntonOks/ceph-scripts/pkg/log"
	"github.com/AntonOks/ceph-scripts/pkg/metrics"
	"github.com/AntonOks/ceph-scripts/pkg/scratch"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ceph-gentle-drain",
	Short: "Gently drain Ceph OSDs by lowering their CRUSH weight",
	Long: `ceph-gentle-drain lowers the CRUSH weight of a set of OSDs a little at a
time, checking active backfills and client write latency before every round
and backing off while the cluster is busy.

OSDs may be given as "osd.12" or "12".`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"ceph-gentle-drain version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	addConfigFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(drainCmd)
	rootCmd.AddCommand(roundCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(poolCmd)
	rootCmd.AddCommand(historyCmd)
}

// addConfigFlags registers every flag loadConfig understands
func addConfigFlags(flags *pflag.FlagSet) {
	flags.StringP("config", "c", "", "YAML configuration file")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "Log as JSON instead of console output")

	flags.StringSlice("osd", nil, "Target OSDs, in drain order")
	flags.Int("max-backfills", config.DefaultMaxBackfills, "Back off while more PGs than this are backfilling")
	flags.Float64("max-latency", config.DefaultMaxLatency, "Back off while average write latency exceeds this (ms)")
	flags.Float64("max-delta-weight", config.DefaultMaxDeltaWeight, "Weight removed per round, counted in steps")
	flags.Float64("step", config.DefaultStep, "Weight removed from one OSD at a time")
	flags.String("pool", config.DefaultPool, "Scratch pool used for the latency benchmark")
	flags.Duration("interval", config.DefaultInterval, "Pause between rounds")
	flags.String("journal", "", "bbolt file recording every round (empty disables)")
	flags.String("metrics-addr", "", "Serve /metrics, /health and /ready on this address")

	flags.String("ceph-binary", "ceph", "ceph executable")
	flags.String("rados-binary", "rados", "rados executable")
	flags.String("cluster", "", "Ceph cluster name (--cluster)")
	flags.String("id", "", "Ceph client id (--id)")
	flags.String("conf", "", "Ceph configuration file (--conf)")
	flags.Duration("timeout", config.DefaultCommandTimeout, "Timeout for a single ceph or rados command")
}

// loadConfig layers defaults, the config file, GENTLE_DRAIN_* variables and
// explicitly set flags, in that order. Positional arguments replace the
// target list. Targets are only validated when requireTargets is set.
func loadConfig(cmd *cobra.Command, args []string, requireTargets bool) (config.Config, error) {
	cfg := config.Default()
	flags := cmd.Flags()

	if path, _ := flags.GetString("config"); path != "" {
		if err := config.LoadFile(&cfg, path); err != nil {
			return cfg, err
		}
	}
	if err := config.LoadEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := applyFlags(flags, &cfg); err != nil {
		return cfg, err
	}
	if len(args) > 0 {
		cfg.Drain.Targets = append([]string(nil), args...)
	}

	log.Init(log.Config{
		Level:      log.ParseLevel(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
	metrics.SetVersion(Version)

	if err := cfg.Drain.Normalize(); err != nil {
		return cfg, err
	}
	if !requireTargets {
		if cfg.Drain.Pool == "" {
			return cfg, errors.New("scratch pool name is required")
		}
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyFlags copies every flag the user set on the command line into cfg
func applyFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	var err error
	set := func(name string, apply func() error) {
		if err == nil && flags.Changed(name) {
			err = apply()
		}
	}

	set("log-level", func() (e error) { cfg.LogLevel, e = flags.GetString("log-level"); return })
	set("log-json", func() (e error) { cfg.LogJSON, e = flags.GetBool("log-json"); return })
	set("osd", func() (e error) { cfg.Drain.Targets, e = flags.GetStringSlice("osd"); return })
	set("max-backfills", func() (e error) { cfg.Drain.MaxBackfills, e = flags.GetInt("max-backfills"); return })
	set("max-latency", func() (e error) { cfg.Drain.MaxLatency, e = flags.GetFloat64("max-latency"); return })
	set("max-delta-weight", func() (e error) { cfg.Drain.MaxDeltaWeight, e = flags.GetFloat64("max-delta-weight"); return })
	set("step", func() (e error) { cfg.Drain.Step, e = flags.GetFloat64("step"); return })
	set("pool", func() (e error) { cfg.Drain.Pool, e = flags.GetString("pool"); return })
	set("interval", func() (e error) { cfg.Drain.Interval, e = flags.GetDuration("interval"); return })
	set("journal", func() (e error) { cfg.JournalPath, e = flags.GetString("journal"); return })
	set("metrics-addr", func() (e error) { cfg.MetricsAddr, e = flags.GetString("metrics-addr"); return })
	set("ceph-binary", func() (e error) { cfg.Ceph.CephBinary, e = flags.GetString("ceph-binary"); return })
	set("rados-binary", func() (e error) { cfg.Ceph.RadosBinary, e = flags.GetString("rados-binary"); return })
	set("cluster", func() (e error) { cfg.Ceph.Cluster, e = flags.GetString("cluster"); return })
	set("id", func() (e error) { cfg.Ceph.ID, e = flags.GetString("id"); return })
	set("conf", func() (e error) { cfg.Ceph.ConfPath, e = flags.GetString("conf"); return })
	set("timeout", func() (e error) { cfg.Ceph.Timeout, e = flags.GetDuration("timeout"); return })

	return errors.Wrap(err, "invalid flag")
}

// newAdapters builds the ceph adapter and the latency prober for cfg
func newAdapters(cfg config.Config) (*ceph.CLI, *bench.RadosBench) {
	runner := ceph.NewExecRunner(cfg.Ceph.Timeout)

	cli := ceph.NewCLI(runner, ceph.Options{
		Binary:   cfg.Ceph.CephBinary,
		Cluster:  cfg.Ceph.Cluster,
		ID:       cfg.Ceph.ID,
		ConfPath: cfg.Ceph.ConfPath,
		PGNum:    cfg.PoolPGNum,
	})

	prober := bench.NewRadosBench(runner)
	prober.Binary = cfg.Ceph.RadosBinary
	prober.Seconds = cfg.BenchSeconds
	prober.Cluster = cfg.Ceph.Cluster
	prober.ID = cfg.Ceph.ID
	prober.ConfPath = cfg.Ceph.ConfPath

	return cli, prober
}

func newLifecycle(cfg config.Config, pools scratch.Pools) *scratch.Lifecycle {
	lc := scratch.NewLifecycle(pools)
	lc.Attempts = cfg.EnsureAttempts
	return lc
}
