package scheduler

import (
	"context"
	"time"

	"github.com/AntonOks/ceph-scripts/pkg/config"
	"github.com/AntonOks/ceph-scripts/pkg/events"
	"github.com/AntonOks/ceph-scripts/pkg/log"
	"github.com/AntonOks/ceph-scripts/pkg/metrics"
	"github.com/AntonOks/ceph-scripts/pkg/types"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Rounder runs a single drain round
type Rounder interface {
	Round(ctx context.Context) (types.RoundResult, error)
}

// Releaser removes the scratch pool once the drain has finished
type Releaser interface {
	Release(ctx context.Context, name string) error
}

// Summary describes a finished Run
type Summary struct {
	RunID     string
	Rounds    int
	Completed bool
	Elapsed   time.Duration
}

// Shell repeats drain rounds on a fixed interval until the targets are empty
type Shell struct {
	rounds   Rounder
	scratch  Releaser
	pool     string
	interval time.Duration
	broker   *events.Broker
	runID    string
	logger   zerolog.Logger
}

// NewShell creates a shell for cfg. broker may be nil.
func NewShell(rounds Rounder, scratch Releaser, cfg config.DrainConfig, broker *events.Broker) *Shell {
	runID := uuid.New().String()
	return &Shell{
		rounds:   rounds,
		scratch:  scratch,
		pool:     cfg.Pool,
		interval: cfg.Interval,
		broker:   broker,
		runID:    runID,
		logger:   log.WithRun(runID).With().Str("component", "scheduler").Logger(),
	}
}

// RunID identifies this drain in logs and the journal
func (s *Shell) RunID() string {
	return s.runID
}

// Run executes rounds until one reports Complete, an unknown node is hit or
// ctx is cancelled. Cancellation is only observed between rounds; a round
// that has started always finishes.
func (s *Shell) Run(ctx context.Context) (Summary, error) {
	summary := Summary{RunID: s.runID}
	start := time.Now()
	s.publish(&events.Event{Type: events.EventDrainStarted, Message: "drain started"})
	s.logger.Info().Dur("interval", s.interval).Str("pool", s.pool).Msg("drain started")

	for round := 1; ; round++ {
		if err := ctx.Err(); err != nil {
			return s.stop(summary, start, err)
		}

		res, err := s.runRound(context.WithoutCancel(ctx), round)
		summary.Rounds = round

		switch {
		case err != nil && errors.Is(err, types.ErrUnknownNode):
			summary.Elapsed = time.Since(start)
			s.publish(&events.Event{
				Type:    events.EventDrainFinished,
				Message: "drain aborted",
				Round:   round,
				Error:   err.Error(),
			})
			return summary, err
		case err == nil && res.Status == types.RoundComplete:
			s.release(context.WithoutCancel(ctx))
			summary.Completed = true
			summary.Elapsed = time.Since(start)
			s.publish(&events.Event{
				Type:     events.EventDrainFinished,
				Message:  "drain complete",
				Round:    round,
				Duration: summary.Elapsed,
			})
			s.logger.Info().Int("rounds", round).Dur("elapsed", summary.Elapsed).Msg("drain complete")
			return summary, nil
		}

		wait := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			wait.Stop()
			return s.stop(summary, start, ctx.Err())
		case <-wait.C:
		}
	}
}

func (s *Shell) stop(summary Summary, start time.Time, cause error) (Summary, error) {
	summary.Elapsed = time.Since(start)
	s.logger.Warn().Int("rounds", summary.Rounds).Msg("drain stopped before completion")
	s.publish(&events.Event{
		Type:    events.EventDrainFinished,
		Message: "drain stopped",
		Round:   summary.Rounds,
		Error:   cause.Error(),
	})
	return summary, cause
}

// runRound runs and reports one round. Only an unknown node error is
// returned as fatal; transient errors are reported and swallowed.
func (s *Shell) runRound(ctx context.Context, round int) (types.RoundResult, error) {
	timer := metrics.NewTimer()
	res, err := s.rounds.Round(ctx)
	elapsed := timer.Duration()
	timer.ObserveDuration(metrics.RoundDuration)

	logger := s.logger.With().Int("round", round).Dur("duration", elapsed).Logger()

	if err != nil {
		metrics.RoundsTotal.WithLabelValues("error").Inc()
		metrics.RecordRound(round, "error", err.Error())
		s.publish(&events.Event{
			Type:     events.EventRoundFailed,
			Message:  "round failed",
			Round:    round,
			Duration: elapsed,
			Error:    err.Error(),
		})

		if errors.Is(err, types.ErrUnknownNode) {
			metrics.UpdateComponent(metrics.ComponentDrain, false, err.Error())
			logger.Error().Err(err).Msg("target osd not found, stopping")
			return res, err
		}
		metrics.UpdateComponent(metrics.ComponentCeph, false, err.Error())
		logger.Warn().Err(err).Msg("round failed, retrying next interval")
		return res, nil
	}

	metrics.UpdateComponent(metrics.ComponentCeph, true, "")
	metrics.UpdateComponent(metrics.ComponentDrain, true, "")
	s.observe(res)
	metrics.RecordRound(round, string(res.Status), res.String())
	s.publish(&events.Event{
		Type:     events.RoundEventType(res.Status),
		Message:  res.String(),
		Round:    round,
		Duration: elapsed,
		Result:   &res,
	})

	event := logger.Info()
	if res.Status == types.RoundBackoff {
		event = logger.Warn()
	}
	event = event.
		Str("result", string(res.Status)).
		Float64("total_weight", res.TotalWeight).
		Int("backfills", res.Backfills)
	if res.LatencyMs != nil {
		event = event.Float64("latency_ms", *res.LatencyMs)
	}
	switch res.Status {
	case types.RoundBackoff:
		event.Str("reason", res.Reason).Msg("backing off")
	case types.RoundProgress:
		event.Float64("delta", res.Delta).Int("changes", len(res.Changes)).Msg("weight removed")
	default:
		event.Msg("targets drained")
	}
	return res, nil
}

func (s *Shell) observe(res types.RoundResult) {
	metrics.RoundsTotal.WithLabelValues(string(res.Status)).Inc()
	metrics.TargetWeight.Set(res.TotalWeight)

	switch res.Status {
	case types.RoundComplete:
		return
	case types.RoundBackoff:
		metrics.BackoffsTotal.WithLabelValues(res.Reason).Inc()
	case types.RoundProgress:
		metrics.WeightRemovedTotal.Add(res.Delta)
	}

	metrics.ActiveBackfills.Set(float64(res.Backfills))
	if res.LatencyMs != nil {
		metrics.WriteLatency.Set(*res.LatencyMs)
	}
	for _, c := range res.Changes {
		metrics.OSDCrushWeight.WithLabelValues(c.NodeID).Set(c.To)
	}
}

// release removes the scratch pool. A failure never fails the drain.
func (s *Shell) release(ctx context.Context) {
	err := s.scratch.Release(ctx, s.pool)
	if err == nil {
		s.publish(&events.Event{
			Type:     events.EventPoolReleased,
			Message:  "scratch pool released",
			Metadata: map[string]string{"pool": s.pool},
		})
		return
	}

	msg := "scratch pool kept, delete it manually"
	if !errors.Is(err, types.ErrCleanupRefused) {
		s.logger.Warn().Err(err).Str("pool", s.pool).Msg("failed to release scratch pool")
		msg = "scratch pool release failed"
	}
	s.publish(&events.Event{
		Type:     events.EventPoolKept,
		Message:  msg,
		Metadata: map[string]string{"pool": s.pool},
		Error:    err.Error(),
	})
}

func (s *Shell) publish(event *events.Event) {
	if s.broker == nil {
		return
	}
	event.RunID = s.runID
	s.broker.Publish(event)
}
