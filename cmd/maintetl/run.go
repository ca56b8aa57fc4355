package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errRunFailed = errors.New("pipeline run failed")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once and print the run report",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		report := a.pipeline.Run(cmd.Context())

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("write run report: %w", err)
		}

		if report.Failed() {
			return errRunFailed
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
