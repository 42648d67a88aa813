package drain

import (
	"context"
	"sync"

	"github.com/AntonOks/ceph-scripts/pkg/types"
	"github.com/cockroachdb/errors"
)

// fakeCluster is an in-memory cluster adapter
type fakeCluster struct {
	mu        sync.Mutex
	weights   map[string]float64
	backfills int

	topologyCalls int
	backfillCalls int
	setCalls      []types.WeightChange

	// failSetAfter makes SetWeight fail once this many calls succeeded (-1: never)
	failSetAfter int
	topologyErr  error
}

func newFakeCluster(weights map[string]float64) *fakeCluster {
	return &fakeCluster{weights: weights, failSetAfter: -1}
}

func (f *fakeCluster) Topology(ctx context.Context) (*types.Topology, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topologyCalls++
	if f.topologyErr != nil {
		return nil, f.topologyErr
	}
	var nodes []*types.Node
	for id, w := range f.weights {
		nodes = append(nodes, &types.Node{ID: id, CrushWeight: w})
	}
	return types.NewTopology(nodes), nil
}

func (f *fakeCluster) Weight(ctx context.Context, id string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.weights[id]
	if !ok {
		return 0, errors.Mark(errors.Newf("unknown node %s", id), types.ErrUnknownNode)
	}
	return w, nil
}

func (f *fakeCluster) SetWeight(ctx context.Context, id string, weight float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSetAfter >= 0 && len(f.setCalls) >= f.failSetAfter {
		return errors.Mark(errors.New("ceph unreachable"), types.ErrTransient)
	}
	f.setCalls = append(f.setCalls, types.WeightChange{NodeID: id, From: f.weights[id], To: weight})
	f.weights[id] = weight
	return nil
}

func (f *fakeCluster) ActiveBackfills(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backfillCalls++
	return f.backfills, nil
}

func (f *fakeCluster) weight(id string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.weights[id]
}

// fakeProber returns a fixed latency
type fakeProber struct {
	latency float64
	err     error
	calls   int
	pools   []string
}

func (p *fakeProber) MeasureWriteLatency(ctx context.Context, pool string) (float64, error) {
	p.calls++
	p.pools = append(p.pools, pool)
	if p.err != nil {
		return 0, p.err
	}
	return p.latency, nil
}
