package main

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one monitoring batch",
	Long: `Fetches every unit once, records the readings, sends alerts and saves history.
Intended to be invoked by an external scheduler such as cron or CI.`,
	Args: cobra.NoArgs,
	RunE: runOnce,
}

func init() {
	runCmd.Flags().BoolVar(&strict, "strict", false, "exit with status 2 when history cannot be saved")
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sum := a.run(cmd.Context())
	if err := sum.Err(); err != nil && strict {
		return &exitError{code: exitSave, err: err}
	}
	return nil
}
