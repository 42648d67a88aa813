package drain

import (
	"math"

	"github.com/AntonOks/ceph-scripts/pkg/config"
	"github.com/AntonOks/ceph-scripts/pkg/types"
)

// weightPrecision matches the resolution ceph prints CRUSH weights with
const weightPrecision = 1 / config.MinWeightStep

// NextWeight lowers current by step, clamped at zero
func NextWeight(current, step float64) float64 {
	next := math.Round((current-step)*weightPrecision) / weightPrecision
	if next <= 0 {
		return 0
	}
	return next
}

// CheckBackfills returns false with a reason when too many backfills are running
func CheckBackfills(cfg config.DrainConfig, backfills int) (string, bool) {
	if backfills > cfg.MaxBackfills {
		return types.ReasonTooManyBackfills, false
	}
	return "", true
}

// CheckLatency returns false with a reason when latency exceeds the threshold
func CheckLatency(cfg config.DrainConfig, latencyMs float64) (string, bool) {
	if latencyMs > cfg.MaxLatency {
		return types.ReasonLatencyTooHigh, false
	}
	return "", true
}

// Plan applies the per-round reduction to the weights in snap. The budget
// counts the nominal step for every node touched, even when the node had
// less than a step left.
func Plan(cfg config.DrainConfig, snap *types.Snapshot) []types.WeightChange {
	var (
		changes []types.WeightChange
		delta   float64
	)
	for _, id := range cfg.Targets {
		if delta >= cfg.MaxDeltaWeight {
			break
		}
		current := snap.Weights[id]
		if current <= 0 {
			continue
		}
		changes = append(changes, types.WeightChange{
			NodeID: id,
			From:   current,
			To:     NextWeight(current, cfg.Step),
		})
		delta += cfg.Step
	}
	return changes
}

// RoundsRemaining estimates how many unobstructed rounds are left
func RoundsRemaining(cfg config.DrainConfig, totalWeight float64) int {
	if totalWeight <= 0 {
		return 0
	}
	perRound := math.Max(cfg.MaxDeltaWeight, cfg.Step)
	return int(math.Ceil(totalWeight / perRound))
}
