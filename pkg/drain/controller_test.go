package drain

import (
	"context"
	"testing"
	"time"

	"github.com/AntonOks/ceph-scripts/pkg/config"
	"github.com/AntonOks/ceph-scripts/pkg/types"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(targets ...string) config.DrainConfig {
	return config.DrainConfig{
		Targets:        targets,
		MaxBackfills:   20,
		MaxLatency:     50,
		MaxDeltaWeight: 2,
		Step:           1,
		Pool:           "test",
		Interval:       time.Minute,
	}
}

func TestRoundReducesFirstNodesWithinBudget(t *testing.T) {
	cluster := newFakeCluster(map[string]float64{"osd.1": 4, "osd.2": 4, "osd.3": 4})
	prober := &fakeProber{latency: 5}
	ctrl := NewController(testConfig("osd.1", "osd.2", "osd.3"), cluster, prober)

	result, err := ctrl.Round(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.RoundProgress, result.Status)
	assert.Equal(t, 2.0, result.Delta)
	assert.Equal(t, 12.0, result.TotalWeight)
	assert.Equal(t, 3.0, cluster.weight("osd.1"))
	assert.Equal(t, 3.0, cluster.weight("osd.2"))
	assert.Equal(t, 4.0, cluster.weight("osd.3"))
	assert.Len(t, result.Changes, 2)
	assert.Equal(t, []string{"test"}, prober.pools)
}

func TestRoundCompleteWhenAllTargetsEmpty(t *testing.T) {
	cluster := newFakeCluster(map[string]float64{"osd.1": 0, "osd.2": 0})
	prober := &fakeProber{latency: 5}
	ctrl := NewController(testConfig("osd.1", "osd.2"), cluster, prober)

	result, err := ctrl.Round(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.RoundComplete, result.Status)
	assert.Empty(t, cluster.setCalls)
	assert.Equal(t, 0, cluster.backfillCalls)
	assert.Equal(t, 0, prober.calls)
}

func TestRoundBacksOffOnBackfills(t *testing.T) {
	cluster := newFakeCluster(map[string]float64{"osd.1": 4})
	cluster.backfills = 25
	// latency is also bad; the backfill check must win without probing
	prober := &fakeProber{latency: 500}
	ctrl := NewController(testConfig("osd.1"), cluster, prober)

	result, err := ctrl.Round(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.RoundBackoff, result.Status)
	assert.Equal(t, types.ReasonTooManyBackfills, result.Reason)
	assert.Equal(t, 25, result.Backfills)
	assert.Nil(t, result.LatencyMs)
	assert.Empty(t, cluster.setCalls)
	assert.Equal(t, 0, prober.calls)
}

func TestRoundBackfillsAtThresholdProceed(t *testing.T) {
	cluster := newFakeCluster(map[string]float64{"osd.1": 4})
	cluster.backfills = 20
	prober := &fakeProber{latency: 50}
	ctrl := NewController(testConfig("osd.1"), cluster, prober)

	result, err := ctrl.Round(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.RoundProgress, result.Status)
	assert.Equal(t, 1, prober.calls)
}

func TestRoundBacksOffOnLatency(t *testing.T) {
	cluster := newFakeCluster(map[string]float64{"osd.1": 4})
	prober := &fakeProber{latency: 80}
	ctrl := NewController(testConfig("osd.1"), cluster, prober)

	result, err := ctrl.Round(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.RoundBackoff, result.Status)
	assert.Equal(t, types.ReasonLatencyTooHigh, result.Reason)
	require.NotNil(t, result.LatencyMs)
	assert.Equal(t, 80.0, *result.LatencyMs)
	assert.Empty(t, cluster.setCalls)
	assert.Equal(t, 4.0, cluster.weight("osd.1"))
}

func TestRoundSkipsDrainedNodes(t *testing.T) {
	cluster := newFakeCluster(map[string]float64{"osd.1": 0, "osd.2": 4, "osd.3": 4})
	ctrl := NewController(testConfig("osd.1", "osd.2", "osd.3"), cluster, &fakeProber{})

	result, err := ctrl.Round(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2.0, result.Delta)
	assert.Equal(t, 0.0, cluster.weight("osd.1"))
	assert.Equal(t, 3.0, cluster.weight("osd.2"))
	assert.Equal(t, 3.0, cluster.weight("osd.3"))
	for _, call := range cluster.setCalls {
		assert.NotEqual(t, "osd.1", call.NodeID)
	}
}

func TestRoundCountsNominalStepWhenClamped(t *testing.T) {
	cluster := newFakeCluster(map[string]float64{"osd.1": 0.5, "osd.2": 4, "osd.3": 4})
	ctrl := NewController(testConfig("osd.1", "osd.2", "osd.3"), cluster, &fakeProber{})

	result, err := ctrl.Round(context.Background())
	require.NoError(t, err)

	// osd.1 only had 0.5 left but still consumes a full step of budget
	assert.Equal(t, 2.0, result.Delta)
	assert.Equal(t, 0.0, cluster.weight("osd.1"))
	assert.Equal(t, 3.0, cluster.weight("osd.2"))
	assert.Equal(t, 4.0, cluster.weight("osd.3"))
}

func TestRoundBudgetBelowStepStillMovesOneStep(t *testing.T) {
	cfg := testConfig("osd.1", "osd.2")
	cfg.MaxDeltaWeight = 0.5
	cluster := newFakeCluster(map[string]float64{"osd.1": 4, "osd.2": 4})
	ctrl := NewController(cfg, cluster, &fakeProber{})

	result, err := ctrl.Round(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Delta)
	assert.Len(t, cluster.setCalls, 1)
}

func TestRoundUnknownTarget(t *testing.T) {
	cluster := newFakeCluster(map[string]float64{"osd.1": 4})
	ctrl := NewController(testConfig("osd.1", "osd.9"), cluster, &fakeProber{})

	_, err := ctrl.Round(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrUnknownNode))
	assert.False(t, types.IsTransient(err))
	assert.Empty(t, cluster.setCalls)
}

func TestRoundAbortsOnMutationFailure(t *testing.T) {
	cluster := newFakeCluster(map[string]float64{"osd.1": 4, "osd.2": 4})
	cluster.failSetAfter = 1
	ctrl := NewController(testConfig("osd.1", "osd.2"), cluster, &fakeProber{})

	_, err := ctrl.Round(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsTransient(err))

	// the first mutation stays; the next round carries on from there
	assert.Equal(t, 3.0, cluster.weight("osd.1"))
	assert.Equal(t, 4.0, cluster.weight("osd.2"))

	cluster.failSetAfter = -1
	result, err := ctrl.Round(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.RoundProgress, result.Status)
	assert.Equal(t, 2.0, cluster.weight("osd.1"))
	assert.Equal(t, 3.0, cluster.weight("osd.2"))
}

func TestRoundProberFailureIsTransient(t *testing.T) {
	cluster := newFakeCluster(map[string]float64{"osd.1": 4})
	prober := &fakeProber{err: errors.Mark(errors.New("rados bench failed"), types.ErrTransient)}
	ctrl := NewController(testConfig("osd.1"), cluster, prober)

	_, err := ctrl.Round(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsTransient(err))
	assert.Empty(t, cluster.setCalls)
}

func TestRoundTopologyFailure(t *testing.T) {
	cluster := newFakeCluster(map[string]float64{"osd.1": 4})
	cluster.topologyErr = errors.Mark(errors.New("timeout"), types.ErrTransient)
	ctrl := NewController(testConfig("osd.1"), cluster, &fakeProber{})

	_, err := ctrl.Round(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsTransient(err))
	assert.Equal(t, 0, cluster.backfillCalls)
}

func TestRoundsConvergeToComplete(t *testing.T) {
	tests := []struct {
		name    string
		weights map[string]float64
		step    float64
		delta   float64
	}{
		{"even weights", map[string]float64{"osd.1": 4, "osd.2": 4, "osd.3": 4}, 1, 2},
		{"uneven weights", map[string]float64{"osd.1": 1, "osd.2": 7, "osd.3": 2}, 1, 3},
		{"single node big step", map[string]float64{"osd.1": 5}, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("osd.1", "osd.2", "osd.3")
			cfg.Targets = cfg.Targets[:len(tt.weights)]
			cfg.Step = tt.step
			cfg.MaxDeltaWeight = tt.delta

			cluster := newFakeCluster(tt.weights)
			ctrl := NewController(cfg, cluster, &fakeProber{})

			rounds := 0
			for {
				before := make(map[string]float64)
				for _, id := range cfg.Targets {
					before[id] = cluster.weight(id)
				}

				result, err := ctrl.Round(context.Background())
				require.NoError(t, err)
				if result.Status == types.RoundComplete {
					break
				}
				rounds++
				require.Less(t, rounds, 100, "drain did not converge")

				assert.Equal(t, types.RoundProgress, result.Status)
				assert.LessOrEqual(t, result.Delta, tt.delta+tt.step)
				var removed float64
				for _, id := range cfg.Targets {
					after := cluster.weight(id)
					assert.LessOrEqual(t, after, before[id], "weight of %s increased", id)
					assert.GreaterOrEqual(t, after, 0.0)
					removed += before[id] - after
				}
				assert.LessOrEqual(t, removed, result.Delta+1e-9)
			}

			for _, id := range cfg.Targets {
				assert.Equal(t, 0.0, cluster.weight(id))
			}
		})
	}
}

func TestRoundTerminationBound(t *testing.T) {
	// 12 units of weight at 2 per round: ceil(12/2) = 6 rounds, then complete
	cluster := newFakeCluster(map[string]float64{"osd.1": 4, "osd.2": 4, "osd.3": 4})
	ctrl := NewController(testConfig("osd.1", "osd.2", "osd.3"), cluster, &fakeProber{})

	for i := 0; i < 6; i++ {
		result, err := ctrl.Round(context.Background())
		require.NoError(t, err)
		require.Equal(t, types.RoundProgress, result.Status, "round %d", i+1)
	}

	result, err := ctrl.Round(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.RoundComplete, result.Status)
}

func TestSnapshot(t *testing.T) {
	cluster := newFakeCluster(map[string]float64{"osd.1": 1.5, "osd.2": 2, "osd.7": 9})
	ctrl := NewController(testConfig("osd.1", "osd.2"), cluster, &fakeProber{})

	snap, err := ctrl.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"osd.1": 1.5, "osd.2": 2}, snap.Weights)
	assert.Equal(t, 3.5, snap.TotalWeight(ctrl.Config().Targets))
	assert.Equal(t, 1, cluster.topologyCalls)
}

func TestRoundAlwaysLowersPositiveWeight(t *testing.T) {
	steps := []float64{config.MinWeightStep, 1.5e-5, 0.001, 0.3, 1}
	weights := []float64{4, 3.63869, 0.00001, 0.00002}

	for _, step := range steps {
		for _, w := range weights {
			cfg := testConfig("osd.1")
			cfg.Step = step
			cfg.MaxDeltaWeight = step
			require.NoError(t, cfg.Validate())

			cluster := newFakeCluster(map[string]float64{"osd.1": w})
			ctrl := NewController(cfg, cluster, &fakeProber{})

			result, err := ctrl.Round(context.Background())
			require.NoError(t, err)
			require.Equal(t, types.RoundProgress, result.Status)
			assert.Less(t, cluster.weight("osd.1"), w, "step %g from %g", step, w)
		}
	}
}

func TestNextWeightSmallestStepMoves(t *testing.T) {
	w := 4.0
	for i := 0; i < 10; i++ {
		next := NextWeight(w, config.MinWeightStep)
		require.Less(t, next, w)
		w = next
	}
	assert.InDelta(t, 3.9999, w, 1e-9)
}
