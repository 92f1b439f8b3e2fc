package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/elecwatch/internal/config"
)

var unitsCmd = &cobra.Command{
	Use:   "units",
	Short: "Print the public unit list",
	Long:  `Validates the unit configuration and prints the redacted view (id and name only).`,
	Args:  cobra.NoArgs,
	RunE:  runUnits,
}

func init() {
	rootCmd.AddCommand(unitsCmd)
}

func runUnits(cmd *cobra.Command, args []string) error {
	units, err := cfg.LoadUnits()
	if err != nil {
		return configError(err)
	}

	data, err := json.MarshalIndent(config.PublicUnits(units), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding units: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
