package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AntonOks/ceph-scripts/pkg/drain"
	"github.com/AntonOks/ceph-scripts/pkg/events"
	"github.com/AntonOks/ceph-scripts/pkg/log"
	"github.com/AntonOks/ceph-scripts/pkg/metrics"
	"github.com/AntonOks/ceph-scripts/pkg/scheduler"
	"github.com/AntonOks/ceph-scripts/pkg/storage"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var drainCmd = &cobra.Command{
	Use:   "drain [OSD...]",
	Short: "Drain the target OSDs until their CRUSH weight reaches zero",
	Long: `Drain runs rounds on a fixed interval until every target OSD has a CRUSH
weight of zero, then deletes the scratch pool.

Each round backs off while too many PGs are backfilling or while the write
latency measured on the scratch pool is too high. Otherwise it lowers the
weight of the first OSDs in the list by --step until --max-delta-weight has
been removed.

Ctrl+C stops the drain after the current round.

Examples:
  # Drain two OSDs with the defaults
  ceph-gentle-drain drain osd.12 osd.13

  # Faster rounds, journal and metrics
  ceph-gentle-drain drain 12 13 --interval 30s --journal drain.db --metrics-addr :9283`,
	RunE: runDrain,
}

func runDrain(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args, true)
	if err != nil {
		return err
	}
	logger := log.WithComponent("cli")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli, prober := newAdapters(cfg)
	ctrl := drain.NewController(cfg.Drain, cli, prober)

	// Catch a mistyped OSD before touching anything
	snap, err := ctrl.Snapshot(ctx)
	if err != nil {
		return errors.Wrap(err, "preflight failed")
	}
	metrics.UpdateComponent(metrics.ComponentCeph, true, "")
	total := snap.TotalWeight(cfg.Drain.Targets)
	logger.Info().
		Strs("targets", cfg.Drain.Targets).
		Float64("total_weight", total).
		Int("rounds_estimate", drain.RoundsRemaining(cfg.Drain, total)).
		Msg("preflight ok")

	lc := newLifecycle(cfg, cli)
	if err := lc.EnsureReady(ctx, cfg.Drain.Pool); err != nil {
		return err
	}
	metrics.UpdateComponent(metrics.ComponentScratch, true, "")

	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.MetricsAddr)
		if err := srv.Start(); err != nil {
			return err
		}
		defer stopServer(srv, logger)
	}

	broker := events.NewBroker()
	broker.Start()

	var recorder *storage.Recorder
	if cfg.JournalPath != "" {
		store, err := storage.NewBoltStore(cfg.JournalPath)
		if err != nil {
			broker.Stop()
			return err
		}
		defer store.Close()
		recorder = storage.NewRecorder(store, broker.Subscribe())
		recorder.Start()
	}

	shell := scheduler.NewShell(ctrl, lc, cfg.Drain, broker)
	broker.Publish(&events.Event{
		Type:     events.EventPoolReady,
		RunID:    shell.RunID(),
		Message:  "scratch pool ready",
		Metadata: map[string]string{"pool": cfg.Drain.Pool},
	})

	summary, runErr := shell.Run(ctx)

	// Flush the journal before the store is closed
	broker.Stop()
	if recorder != nil {
		recorder.Wait()
	}

	out := cmd.OutOrStdout()
	switch {
	case runErr == nil:
		fmt.Fprintf(out, "✓ Drained %d OSD(s) in %d rounds (%s)\n",
			len(cfg.Drain.Targets), summary.Rounds, summary.Elapsed.Round(time.Second))
		return nil
	case errors.Is(runErr, context.Canceled):
		fmt.Fprintf(out, "Stopped after %d rounds, started %s. Run again to resume.\n",
			summary.Rounds, humanize.Time(time.Now().Add(-summary.Elapsed)))
		return nil
	default:
		return runErr
	}
}

type stopper interface {
	Stop(ctx context.Context) error
}

// stopServer gives the status server five seconds to finish in-flight scrapes
func stopServer(srv stopper, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to stop metrics server")
	}
}
