package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rewired-gh/elecwatch/internal/models"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [unit-id]",
	Short: "Show recent readings",
	Long:  `Prints the latest stored readings for one unit, or for every unit with history.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of readings per unit")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	loc, err := cfg.Location()
	if err != nil {
		return configError(err)
	}
	store, err := openStore(loc, true)
	if err != nil {
		return configError(err)
	}
	defer store.Close()

	if err := store.Load(); err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	ids := store.Units()
	if len(args) == 1 {
		ids = []string{args[0]}
	}

	out := cmd.OutOrStdout()
	for _, id := range ids {
		records := store.History(id)
		if len(records) == 0 {
			fmt.Fprintf(out, "No readings for %s\n", id)
			continue
		}

		fmt.Fprintf(out, "\n%s (%s readings):\n", id, humanize.Comma(int64(len(records))))
		fmt.Fprintln(out, "----------------------------------------------------------------------")
		fmt.Fprintf(out, "%-20s  %-16s  %9s  %9s  %9s  %9s\n", "Time", "Age", "kWh", "1h kWh/h", "24h kWh/h", "Hours")
		fmt.Fprintln(out, "----------------------------------------------------------------------")

		start := 0
		if historyLimit > 0 && len(records) > historyLimit {
			start = len(records) - historyLimit
		}
		for _, r := range records[start:] {
			fmt.Fprintf(out, "%-20s  %-16s  %9.2f  %9.3f  %9.3f  %9s\n",
				r.Time.In(loc).Format("2006-01-02 15:04:05"),
				humanize.Time(r.Time),
				r.KWh, r.Power1h, r.Power24h,
				formatHours(r.EstimatedHours))
		}
	}
	return nil
}

func formatHours(h float64) string {
	if h >= models.Sentinel {
		return "unknown"
	}
	return fmt.Sprintf("%.1f", h)
}
