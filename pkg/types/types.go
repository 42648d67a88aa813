// Package types holds the data shared by the drain packages: nodes,
// topology snapshots, round results and the error classes in errors.go.
package types

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Node is a storage node (OSD) and its CRUSH weight
type Node struct {
	ID          string  `json:"id"`
	CrushWeight float64 `json:"crush_weight"`
	Host        string  `json:"host,omitempty"`
	Status      string  `json:"status,omitempty"`
}

// Topology is a point-in-time view of every OSD the cluster reports
type Topology struct {
	Nodes     map[string]*Node
	FetchedAt time.Time
}

// NewTopology builds a topology indexed by node ID
func NewTopology(nodes []*Node) *Topology {
	t := &Topology{
		Nodes:     make(map[string]*Node, len(nodes)),
		FetchedAt: time.Now(),
	}
	for _, n := range nodes {
		t.Nodes[n.ID] = n
	}
	return t
}

// Weight returns the CRUSH weight of a node
func (t *Topology) Weight(id string) (float64, error) {
	n, ok := t.Nodes[id]
	if !ok {
		return 0, errors.WithHint(
			errors.Mark(errors.Newf("unknown node %s", id), ErrUnknownNode),
			"check the OSD id against `ceph osd tree`",
		)
	}
	return n.CrushWeight, nil
}

// IDs returns node IDs sorted by OSD number
func (t *Topology) IDs() []string {
	ids := make([]string, 0, len(t.Nodes))
	for id := range t.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := OSDNumber(ids[i])
		b, errB := OSDNumber(ids[j])
		if errA != nil || errB != nil {
			return ids[i] < ids[j]
		}
		return a < b
	})
	return ids
}

// Snapshot is the state a round decides on. It is stale as soon as it is read.
type Snapshot struct {
	Weights   map[string]float64
	Backfills int
	// LatencyMs is nil until the prober has run this round
	LatencyMs *float64
	TakenAt   time.Time
}

// TotalWeight sums the weights of the given targets
func (s *Snapshot) TotalWeight(targets []string) float64 {
	var total float64
	for _, id := range targets {
		total += s.Weights[id]
	}
	return total
}

// RoundStatus is the outcome of one drain round
type RoundStatus string

const (
	RoundBackoff  RoundStatus = "backoff"
	RoundProgress RoundStatus = "progress"
	RoundComplete RoundStatus = "complete"
)

// Backoff reasons
const (
	ReasonTooManyBackfills = "too many backfills"
	ReasonLatencyTooHigh   = "latency too high"
)

// RoundResult describes what a round did and what it observed
type RoundResult struct {
	Status RoundStatus
	Reason string
	// Delta is the nominal weight removed, counted in whole steps
	Delta float64

	TotalWeight float64
	Backfills   int
	LatencyMs   *float64
	Changes     []WeightChange
}

// WeightChange records one weight mutation
type WeightChange struct {
	NodeID string
	From   float64
	To     float64
}

func (r RoundResult) String() string {
	switch r.Status {
	case RoundBackoff:
		return fmt.Sprintf("backoff: %s", r.Reason)
	case RoundProgress:
		return fmt.Sprintf("progress: removed %.4g", r.Delta)
	case RoundComplete:
		return "complete"
	default:
		return string(r.Status)
	}
}

// NormalizeOSD accepts "osd.12" or "12" and returns "osd.12"
func NormalizeOSD(id string) (string, error) {
	id = strings.TrimSpace(id)
	num := strings.TrimPrefix(id, "osd.")
	n, err := strconv.Atoi(num)
	if err != nil || n < 0 {
		return "", errors.Newf("invalid osd id %q", id)
	}
	return fmt.Sprintf("osd.%d", n), nil
}

// OSDNumber returns N for "osd.N"
func OSDNumber(id string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(id, "osd."))
	if err != nil {
		return 0, errors.Wrapf(err, "invalid osd id %q", id)
	}
	return n, nil
}
