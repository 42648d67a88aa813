package drain

import (
	"testing"

	"github.com/AntonOks/ceph-scripts/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestNextWeight(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		step     float64
		expected float64
	}{
		{"whole step", 4, 1, 3},
		{"exact to zero", 1, 1, 0},
		{"clamped at zero", 0.4, 1, 0},
		{"fractional step", 0.3, 0.1, 0.2},
		{"repeated fractional step lands on zero", NextWeight(NextWeight(0.3, 0.1), 0.1), 0.1, 0},
		{"ceph style weight", 3.63869, 1, 2.63869},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NextWeight(tt.current, tt.step))
		})
	}
}

func TestCheckBackfills(t *testing.T) {
	cfg := testConfig("osd.1")

	reason, ok := CheckBackfills(cfg, 25)
	assert.False(t, ok)
	assert.Equal(t, types.ReasonTooManyBackfills, reason)

	_, ok = CheckBackfills(cfg, 20)
	assert.True(t, ok)

	cfg.MaxBackfills = 0
	_, ok = CheckBackfills(cfg, 0)
	assert.True(t, ok)
	_, ok = CheckBackfills(cfg, 1)
	assert.False(t, ok)
}

func TestCheckLatency(t *testing.T) {
	cfg := testConfig("osd.1")

	reason, ok := CheckLatency(cfg, 50.1)
	assert.False(t, ok)
	assert.Equal(t, types.ReasonLatencyTooHigh, reason)

	_, ok = CheckLatency(cfg, 50)
	assert.True(t, ok)
}

func TestPlan(t *testing.T) {
	cfg := testConfig("osd.1", "osd.2", "osd.3")
	snap := &types.Snapshot{Weights: map[string]float64{"osd.1": 0, "osd.2": 0.5, "osd.3": 4}}

	changes := Plan(cfg, snap)
	assert.Equal(t, []types.WeightChange{
		{NodeID: "osd.2", From: 0.5, To: 0},
		{NodeID: "osd.3", From: 4, To: 3},
	}, changes)

	// plan never touches the snapshot
	assert.Equal(t, 4.0, snap.Weights["osd.3"])
}

func TestPlanStopsAtBudget(t *testing.T) {
	cfg := testConfig("osd.1", "osd.2", "osd.3")
	snap := &types.Snapshot{Weights: map[string]float64{"osd.1": 4, "osd.2": 4, "osd.3": 4}}

	changes := Plan(cfg, snap)
	assert.Len(t, changes, 2)
	assert.Equal(t, "osd.1", changes[0].NodeID)
	assert.Equal(t, "osd.2", changes[1].NodeID)
}

func TestRoundsRemaining(t *testing.T) {
	cfg := testConfig("osd.1")
	assert.Equal(t, 0, RoundsRemaining(cfg, 0))
	assert.Equal(t, 6, RoundsRemaining(cfg, 12))
	assert.Equal(t, 7, RoundsRemaining(cfg, 12.5))

	cfg.MaxDeltaWeight = 0.5
	assert.Equal(t, 12, RoundsRemaining(cfg, 12))
}
