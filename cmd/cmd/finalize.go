package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"newsdesk/internal/config"
	"newsdesk/internal/llm"
	"newsdesk/internal/planner"
)

var finalizeJobID string

var finalizeCmd = &cobra.Command{
	Use:   "finalize",
	Short: "Merge processed sections into a ready-to-send newsletter plan",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		p := planner.New(store, newOracle(ctx), config.Duration(cfg.Planner.OracleTimeout, llm.DefaultTimeout))

		result, err := p.Finalize(ctx, finalizeJobID)
		if err != nil {
			return err
		}

		fmt.Printf("Job %s finalized: %d highlights, %d duplicates dropped",
			result.JobID, len(result.Plan.Highlights), result.Dropped)
		if result.UsedFallback {
			fmt.Print(" (heuristic overview)")
		}
		fmt.Println()
		return nil
	},
}

func init() {
	finalizeCmd.Flags().StringVar(&finalizeJobID, "job", "", "job id (default: next job needing processing)")
	rootCmd.AddCommand(finalizeCmd)
}
