package ceph

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/AntonOks/ceph-scripts/pkg/log"
	"github.com/AntonOks/ceph-scripts/pkg/types"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Options selects which cluster the CLI talks to
type Options struct {
	// Binary is the ceph executable (default: "ceph")
	Binary string

	// Cluster, ID and ConfPath map to --cluster, --id and --conf
	Cluster  string
	ID       string
	ConfPath string

	// PGNum sizes pools created by CreatePool (default: 8)
	PGNum int
}

// CLI implements the cluster adapter on top of the ceph command line tool
type CLI struct {
	runner Runner
	opts   Options
	logger zerolog.Logger
}

// NewCLI creates a ceph CLI adapter
func NewCLI(runner Runner, opts Options) *CLI {
	if opts.Binary == "" {
		opts.Binary = "ceph"
	}
	if opts.PGNum <= 0 {
		opts.PGNum = 8
	}
	return &CLI{
		runner: runner,
		opts:   opts,
		logger: log.WithComponent("ceph"),
	}
}

func (c *CLI) baseArgs() []string {
	var args []string
	if c.opts.Cluster != "" {
		args = append(args, "--cluster", c.opts.Cluster)
	}
	if c.opts.ID != "" {
		args = append(args, "--id", c.opts.ID)
	}
	if c.opts.ConfPath != "" {
		args = append(args, "--conf", c.opts.ConfPath)
	}
	return args
}

func (c *CLI) run(ctx context.Context, args ...string) ([]byte, error) {
	full := append(c.baseArgs(), args...)
	c.logger.Debug().Strs("args", full).Msg("running ceph")
	return c.runner.Run(ctx, c.opts.Binary, full...)
}

func (c *CLI) runJSON(ctx context.Context, out interface{}, args ...string) error {
	data, err := c.run(ctx, append(args, "--format", "json")...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Mark(
			errors.Wrapf(err, "failed to decode output of ceph %s", strings.Join(args, " ")),
			types.ErrTransient,
		)
	}
	return nil
}

// osdTree is the subset of `ceph osd tree --format json` we read
type osdTree struct {
	Nodes []struct {
		ID          int     `json:"id"`
		Name        string  `json:"name"`
		Type        string  `json:"type"`
		CrushWeight float64 `json:"crush_weight"`
		Status      string  `json:"status"`
		Children    []int   `json:"children"`
	} `json:"nodes"`
	Stray []struct {
		ID          int     `json:"id"`
		Name        string  `json:"name"`
		CrushWeight float64 `json:"crush_weight"`
		Status      string  `json:"status"`
	} `json:"stray"`
}

// Topology returns every OSD in the CRUSH map with its weight
func (c *CLI) Topology(ctx context.Context) (*types.Topology, error) {
	var tree osdTree
	if err := c.runJSON(ctx, &tree, "osd", "tree"); err != nil {
		return nil, errors.Wrap(err, "failed to get osd tree")
	}

	hostOf := make(map[int]string)
	for _, n := range tree.Nodes {
		if n.Type != "host" {
			continue
		}
		for _, child := range n.Children {
			hostOf[child] = n.Name
		}
	}

	var nodes []*types.Node
	for _, n := range tree.Nodes {
		if n.Type != "osd" {
			continue
		}
		nodes = append(nodes, &types.Node{
			ID:          n.Name,
			CrushWeight: n.CrushWeight,
			Host:        hostOf[n.ID],
			Status:      n.Status,
		})
	}
	for _, n := range tree.Stray {
		nodes = append(nodes, &types.Node{
			ID:          n.Name,
			CrushWeight: n.CrushWeight,
			Status:      n.Status,
		})
	}
	return types.NewTopology(nodes), nil
}

// Weight returns the current CRUSH weight of one OSD
func (c *CLI) Weight(ctx context.Context, id string) (float64, error) {
	topo, err := c.Topology(ctx)
	if err != nil {
		return 0, err
	}
	return topo.Weight(id)
}

// SetWeight sets the CRUSH weight of one OSD
func (c *CLI) SetWeight(ctx context.Context, id string, weight float64) error {
	if weight < 0 {
		return errors.Newf("refusing to set negative weight %g on %s", weight, id)
	}
	w := strconv.FormatFloat(weight, 'f', -1, 64)
	if _, err := c.run(ctx, "osd", "crush", "reweight", id, w); err != nil {
		return errors.Wrapf(err, "failed to reweight %s to %s", id, w)
	}
	return nil
}

// cephStatus is the subset of `ceph status --format json` we read
type cephStatus struct {
	PGMap struct {
		PGsByState []struct {
			StateName string `json:"state_name"`
			Count     int    `json:"count"`
		} `json:"pgs_by_state"`
	} `json:"pgmap"`
}

// ActiveBackfills counts placement groups currently backfilling
func (c *CLI) ActiveBackfills(ctx context.Context) (int, error) {
	var status cephStatus
	if err := c.runJSON(ctx, &status, "status"); err != nil {
		return 0, errors.Wrap(err, "failed to get cluster status")
	}
	return countBackfilling(status), nil
}

func countBackfilling(status cephStatus) int {
	total := 0
	for _, s := range status.PGMap.PGsByState {
		for _, state := range strings.Split(s.StateName, "+") {
			if state == "backfilling" {
				total += s.Count
				break
			}
		}
	}
	return total
}

// PoolExists reports whether a pool with this name exists
func (c *CLI) PoolExists(ctx context.Context, name string) (bool, error) {
	var pools []string
	if err := c.runJSON(ctx, &pools, "osd", "pool", "ls"); err != nil {
		return false, errors.Wrap(err, "failed to list pools")
	}
	for _, p := range pools {
		if p == name {
			return true, nil
		}
	}
	return false, nil
}

// CreatePool creates a small pool. An existing pool is not an error.
func (c *CLI) CreatePool(ctx context.Context, name string) error {
	pg := strconv.Itoa(c.opts.PGNum)
	_, err := c.run(ctx, "osd", "pool", "create", name, pg, pg)
	if err != nil {
		if stderrContains(err, "already exists") {
			return nil
		}
		return errors.Wrapf(err, "failed to create pool %s", name)
	}
	return nil
}

// DeletePool deletes a pool. Monitors refuse this unless
// mon_allow_pool_delete is set; that refusal is marked ErrCleanupRefused.
func (c *CLI) DeletePool(ctx context.Context, name string) error {
	_, err := c.run(ctx, "osd", "pool", "delete", name, name, "--yes-i-really-really-mean-it")
	if err == nil {
		return nil
	}
	if stderrContains(err, "EPERM", "pool deletion is disabled", "mon_allow_pool_delete") {
		return errors.WithHint(
			errors.Mark(errors.Wrapf(err, "deletion of pool %s refused", name), types.ErrCleanupRefused),
			"set mon_allow_pool_delete=true or remove the pool by hand",
		)
	}
	if stderrContains(err, "does not exist", "ENOENT") {
		return nil
	}
	return errors.Wrapf(err, "failed to delete pool %s", name)
}

func stderrContains(err error, needles ...string) bool {
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	for _, n := range needles {
		if strings.Contains(cmdErr.Stderr, n) {
			return true
		}
	}
	return false
}
