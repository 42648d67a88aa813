/*
Package scheduler repeats drain rounds on a fixed interval until the targets
are empty.

# Architecture

The Shell owns the loop around drain.Controller. It runs one round, reports
it, waits Interval and runs the next:

	┌──────────────────────── SHELL ─────────────────────────┐
	│                                                         │
	│   ctx cancelled? ──yes──► drain.finished (stopped)      │
	│        │ no                                             │
	│        ▼                                                │
	│   Rounder.Round(detached ctx)                           │
	│        │                                                │
	│        ├─ error, unknown OSD ──► drain.finished (abort)  │
	│        ├─ error, transient ────► log, retry next tick    │
	│        ├─ backoff / progress ──► report                  │
	│        └─ complete ────────────► Releaser.Release        │
	│                                   drain.finished        │
	│        ▼                                                │
	│   wait Interval or ctx.Done                             │
	└─────────────────────────────────────────────────────────┘

Each round is reported three ways: a zerolog line tagged with the run ID, a
prometheus update (see pkg/metrics) and an events.Event on the broker, which
storage.Recorder turns into a journal entry.

	drain.started → round.* … round.complete → pool.released|pool.kept → drain.finished

# Cancellation

Rounds run on a context detached from cancellation, so SIGINT stops the drain
between rounds and never halfway through a reweight. Run returns ctx.Err()
together with a Summary of the rounds that did run. The weights already
written stay in place; running the same drain again resumes from them.

# Errors

Transient errors are logged and retried on the next tick. An unknown OSD
stops the shell and is returned to the caller. Once a round reports Complete
the scratch pool is released; a refusal by the monitors is published as
pool.kept and the drain still counts as successful.

# Usage

	ctrl := drain.NewController(cfg.Drain, cli, prober)
	lc := scratch.NewLifecycle(cli)
	if err := lc.EnsureReady(ctx, cfg.Drain.Pool); err != nil {
		return err
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	shell := scheduler.NewShell(ctrl, lc, cfg.Drain, broker)
	summary, err := shell.Run(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Printf("stopped after %d rounds\n", summary.Rounds)
	case err != nil:
		return err
	default:
		fmt.Printf("drained in %s\n", summary.Elapsed)
	}

The broker is optional; NewShell accepts nil and then only logs and records
metrics.

# Metrics

	gentle_drain_rounds_total{result}          rounds by outcome
	gentle_drain_backoffs_total{reason}        backed off rounds
	gentle_drain_round_duration_seconds        round wall time
	gentle_drain_target_weight                 remaining target weight
	gentle_drain_weight_removed_total          nominal weight removed

# See Also

  - pkg/drain for the round itself
  - pkg/scratch for the scratch pool lifecycle
  - pkg/events and pkg/storage for the event journal
*/
package scheduler
