package main

import (
	"io"
	"strconv"
	"time"

	"github.com/AntonOks/ceph-scripts/pkg/storage"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded rounds from the journal",
	Long: `History prints the most recent entries of the round journal written by
"drain --journal". The journal cannot be read while a drain holds it open.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Number of entries to show (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil, false)
	if err != nil {
		return err
	}
	if cfg.JournalPath == "" {
		return errors.WithHint(errors.New("no journal configured"), "pass --journal or set journal in the config file")
	}
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := storage.OpenBoltStoreReadOnly(cfg.JournalPath)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.ListRounds(limit)
	if err != nil {
		return err
	}
	renderHistory(cmd.OutOrStdout(), records, time.Now())
	return nil
}

func renderHistory(out io.Writer, records []*storage.RoundRecord, now time.Time) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Seq", "When", "Run", "Round", "Event", "Detail", "Weight", "Backfills", "Latency", "Took"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)

	for _, rec := range records {
		run := rec.RunID
		if len(run) > 8 {
			run = run[:8]
		}

		detail := rec.Message
		if rec.Error != "" {
			detail = rec.Error
		}

		var weight, backfills, latency, took string
		if rec.Status != "" {
			weight = strconv.FormatFloat(rec.TotalWeight, 'f', -1, 64)
			backfills = strconv.Itoa(rec.Backfills)
		}
		if rec.LatencyMs != nil {
			latency = strconv.FormatFloat(*rec.LatencyMs, 'f', 2, 64) + " ms"
		}
		if rec.Duration > 0 {
			took = rec.Duration.Round(time.Millisecond).String()
		}

		table.Append([]string{
			strconv.FormatUint(rec.Seq, 10),
			humanize.RelTime(rec.Timestamp, now, "ago", "from now"),
			run,
			strconv.Itoa(rec.Round),
			rec.Event,
			detail,
			weight,
			backfills,
			latency,
			took,
		})
	}
	table.Render()
}
