package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Manage the scratch pool used for latency benchmarks",
}

var poolEnsureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Create the scratch pool if it does not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, nil, false)
		if err != nil {
			return err
		}
		cli, _ := newAdapters(cfg)
		if err := newLifecycle(cfg, cli).EnsureReady(cmd.Context(), cfg.Drain.Pool); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Scratch pool %s ready\n", cfg.Drain.Pool)
		return nil
	},
}

var poolReleaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Delete the scratch pool",
	Long: `Release deletes the scratch pool. The monitors must allow pool deletion
(mon_allow_pool_delete=true), otherwise the pool is left in place.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, nil, false)
		if err != nil {
			return err
		}
		cli, _ := newAdapters(cfg)
		if err := newLifecycle(cfg, cli).Release(cmd.Context(), cfg.Drain.Pool); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Scratch pool %s released\n", cfg.Drain.Pool)
		return nil
	},
}

func init() {
	poolCmd.AddCommand(poolEnsureCmd)
	poolCmd.AddCommand(poolReleaseCmd)
}
