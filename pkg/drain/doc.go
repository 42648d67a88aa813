/*
Package drain implements the feedback loop that lowers the CRUSH weight of a
set of OSDs without overloading the cluster.

A Controller holds an immutable DrainConfig and two collaborators: a Cluster
(topology, weights, backfill count) and a Prober (write latency on the scratch
pool). It keeps no state between rounds; every round starts from a fresh
topology read.

# Round

	┌──────────────────────────────────────────────────────┐
	│ 1. topology → weight of every target → total         │
	│    total <= 0                      → Complete        │
	│ 2. active backfills > MaxBackfills → Backoff         │
	│ 3. write latency    > MaxLatency   → Backoff         │
	│ 4. for each target, in order:                        │
	│      delta >= MaxDeltaWeight       → Progress(delta) │
	│      weight <= 0                   → skip            │
	│      weight = max(0, weight-Step); delta += Step     │
	│ 5. targets exhausted               → Progress(delta) │
	└──────────────────────────────────────────────────────┘

The backfill check runs before the benchmark so a busy cluster is not loaded
with extra writes. Delta counts nominal steps: lowering a node from 0.4 to 0
still counts a full Step, so a round never removes more than MaxDeltaWeight
plus less than one Step.

# Errors

Any cluster or prober failure aborts the round and is returned marked
types.ErrTransient. Weights already lowered stay lowered; the next round
re-reads them and continues. A target missing from the topology is returned
marked types.ErrUnknownNode, which the caller should treat as fatal.

# Pure helpers

NextWeight, CheckBackfills, CheckLatency, Plan and RoundsRemaining take no
cluster and are what "round --dry-run" and "status" print.
*/
package drain
