package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/AntonOks/ceph-scripts/pkg/drain"
	"github.com/AntonOks/ceph-scripts/pkg/types"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var roundCmd = &cobra.Command{
	Use:   "round [OSD...]",
	Short: "Run a single drain round",
	Long: `Round runs exactly one drain round and prints its outcome. With --dry-run
it only reads the current weights and prints the changes a round would make,
without checking backfills, benchmarking or touching any weight.`,
	RunE: runRound,
}

var statusCmd = &cobra.Command{
	Use:   "status [OSD...]",
	Short: "Show target weights and active backfills",
	RunE:  runStatus,
}

func init() {
	roundCmd.Flags().Bool("dry-run", false, "Print the planned weight changes only")
}

func runRound(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args, true)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cli, prober := newAdapters(cfg)
	ctrl := drain.NewController(cfg.Drain, cli, prober)

	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		snap, err := ctrl.Snapshot(ctx)
		if err != nil {
			return err
		}
		changes := ctrl.Plan(snap)
		if len(changes) == 0 {
			fmt.Fprintln(out, "Nothing to do, all targets are at weight 0")
			return nil
		}
		fmt.Fprintln(out, "Planned changes (backfill and latency checks skipped):")
		printChanges(out, changes)
		return nil
	}

	lc := newLifecycle(cfg, cli)
	if err := lc.EnsureReady(ctx, cfg.Drain.Pool); err != nil {
		return err
	}

	res, err := ctrl.Round(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Result: %s\n", res)
	fmt.Fprintf(out, "Total weight: %g\n", res.TotalWeight)
	if res.Status != types.RoundComplete {
		fmt.Fprintf(out, "Backfills: %d\n", res.Backfills)
	}
	if res.LatencyMs != nil {
		fmt.Fprintf(out, "Write latency: %.2f ms\n", *res.LatencyMs)
	}
	if len(res.Changes) > 0 {
		printChanges(out, res.Changes)
	}

	if res.Status == types.RoundComplete {
		if err := lc.Release(ctx, cfg.Drain.Pool); err != nil {
			fmt.Fprintf(out, "Scratch pool %s kept: %v\n", cfg.Drain.Pool, err)
		}
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args, true)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	cli, prober := newAdapters(cfg)
	ctrl := drain.NewController(cfg.Drain, cli, prober)

	snap, err := ctrl.Snapshot(ctx)
	if err != nil {
		return err
	}
	backfills, err := cli.ActiveBackfills(ctx)
	if err != nil {
		return err
	}
	topo, err := cli.Topology(ctx)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"OSD", "CRUSH weight"})
	table.SetBorder(false)
	for _, id := range cfg.Drain.Targets {
		table.Append([]string{id, strconv.FormatFloat(snap.Weights[id], 'f', -1, 64)})
	}
	total := snap.TotalWeight(cfg.Drain.Targets)
	table.SetFooter([]string{"total", strconv.FormatFloat(total, 'f', -1, 64)})
	table.Render()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nBackfilling PGs: %d (limit %d)\n", backfills, cfg.Drain.MaxBackfills)
	if others := untargeted(topo, cfg.Drain.Targets); len(others) > 0 {
		fmt.Fprintf(out, "Other OSDs: %s\n", strings.Join(others, ", "))
	}
	if total > 0 {
		fmt.Fprintf(out, "Rounds remaining: at least %d\n", drain.RoundsRemaining(cfg.Drain, total))
	}
	return nil
}

// untargeted lists the cluster's OSDs that are not being drained, by OSD number
func untargeted(topo *types.Topology, targets []string) []string {
	skip := make(map[string]bool, len(targets))
	for _, id := range targets {
		skip[id] = true
	}
	var others []string
	for _, id := range topo.IDs() {
		if !skip[id] {
			others = append(others, id)
		}
	}
	return others
}

func printChanges(out io.Writer, changes []types.WeightChange) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"OSD", "From", "To"})
	table.SetBorder(false)
	for _, c := range changes {
		table.Append([]string{
			c.NodeID,
			strconv.FormatFloat(c.From, 'f', -1, 64),
			strconv.FormatFloat(c.To, 'f', -1, 64),
		})
	}
	table.Render()
}
