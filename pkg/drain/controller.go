package drain

import (
	"context"

	"github.com/AntonOks/ceph-scripts/pkg/config"
	"github.com/AntonOks/ceph-scripts/pkg/log"
	"github.com/AntonOks/ceph-scripts/pkg/types"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Cluster is the part of the cluster adapter a round needs
type Cluster interface {
	// Topology returns every node and its weight
	Topology(ctx context.Context) (*types.Topology, error)

	// Weight re-reads the weight of a single node
	Weight(ctx context.Context, id string) (float64, error)

	// SetWeight replaces the weight of a single node
	SetWeight(ctx context.Context, id string, weight float64) error

	// ActiveBackfills counts data-movement units currently in flight
	ActiveBackfills(ctx context.Context) (int, error)
}

// Prober measures client-visible write latency against a scratch pool
type Prober interface {
	MeasureWriteLatency(ctx context.Context, pool string) (float64, error)
}

// Controller lowers target weights a bounded amount per round while the
// cluster looks healthy. It keeps no state between rounds beyond its config.
type Controller struct {
	cfg     config.DrainConfig
	cluster Cluster
	prober  Prober
	logger  zerolog.Logger
}

// NewController creates a controller. cfg must already be validated.
func NewController(cfg config.DrainConfig, cluster Cluster, prober Prober) *Controller {
	c := &Controller{
		cfg:     cfg,
		cluster: cluster,
		prober:  prober,
		logger:  log.WithComponent("drain"),
	}
	if cfg.MaxDeltaWeight < cfg.Step {
		c.logger.Warn().
			Float64("max_delta_weight", cfg.MaxDeltaWeight).
			Float64("step", cfg.Step).
			Msg("max delta weight is below one step; every round will still move one full step")
	}
	return c
}

// Config returns the drain configuration
func (c *Controller) Config() config.DrainConfig {
	return c.cfg
}

// Snapshot reads the current weight of every target from one topology fetch
func (c *Controller) Snapshot(ctx context.Context) (*types.Snapshot, error) {
	topo, err := c.cluster.Topology(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read topology")
	}

	snap := &types.Snapshot{
		Weights: make(map[string]float64, len(c.cfg.Targets)),
		TakenAt: topo.FetchedAt,
	}
	for _, id := range c.cfg.Targets {
		w, err := topo.Weight(id)
		if err != nil {
			return nil, err
		}
		snap.Weights[id] = w
	}
	return snap, nil
}

// Round runs one complete decision cycle on freshly queried state.
//
// The returned error is non-nil only when a cluster or prober call failed;
// the round is then abandoned and any mutation already issued stays in place.
func (c *Controller) Round(ctx context.Context) (types.RoundResult, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return types.RoundResult{}, err
	}

	result := types.RoundResult{TotalWeight: snap.TotalWeight(c.cfg.Targets)}
	if result.TotalWeight <= 0 {
		result.Status = types.RoundComplete
		return result, nil
	}

	backfills, err := c.cluster.ActiveBackfills(ctx)
	if err != nil {
		return types.RoundResult{}, errors.Wrap(err, "failed to count backfills")
	}
	snap.Backfills = backfills
	result.Backfills = backfills
	if reason, ok := CheckBackfills(c.cfg, backfills); !ok {
		result.Status = types.RoundBackoff
		result.Reason = reason
		return result, nil
	}

	latency, err := c.prober.MeasureWriteLatency(ctx, c.cfg.Pool)
	if err != nil {
		return types.RoundResult{}, errors.Wrap(err, "failed to measure latency")
	}
	snap.LatencyMs = &latency
	result.LatencyMs = &latency
	if reason, ok := CheckLatency(c.cfg, latency); !ok {
		result.Status = types.RoundBackoff
		result.Reason = reason
		return result, nil
	}

	return c.reduce(ctx, result)
}

// reduce walks the targets in configured order and lowers each by one step
// until the round budget is spent. Each weight is re-read right before it
// is written.
func (c *Controller) reduce(ctx context.Context, result types.RoundResult) (types.RoundResult, error) {
	var delta float64
	for _, id := range c.cfg.Targets {
		if delta >= c.cfg.MaxDeltaWeight {
			break
		}

		current, err := c.cluster.Weight(ctx, id)
		if err != nil {
			return types.RoundResult{}, errors.Wrapf(err, "failed to re-read weight of %s", id)
		}
		if current <= 0 {
			continue
		}

		next := NextWeight(current, c.cfg.Step)
		if err := c.cluster.SetWeight(ctx, id, next); err != nil {
			return types.RoundResult{}, errors.Wrapf(err, "failed to lower weight of %s", id)
		}
		osdLog := log.WithOSD(id)
		osdLog.Info().
			Str("component", "drain").
			Float64("from", current).
			Float64("to", next).
			Msg("weight lowered")

		result.Changes = append(result.Changes, types.WeightChange{NodeID: id, From: current, To: next})
		delta += c.cfg.Step
	}

	result.Status = types.RoundProgress
	result.Delta = delta
	return result, nil
}

// Plan returns the changes a round would make against snap, without calling
// the cluster. Backpressure is not evaluated.
func (c *Controller) Plan(snap *types.Snapshot) []types.WeightChange {
	return Plan(c.cfg, snap)
}
