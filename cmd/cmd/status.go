package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"newsdesk/internal/core"
	"newsdesk/internal/planner"
)

var statusJobID string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a job's processing progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		var job *core.Job
		if statusJobID != "" {
			job, err = store.GetJob(cmd.Context(), statusJobID)
		} else {
			job, err = store.NextProcessableJob(cmd.Context())
		}
		if err != nil {
			return err
		}

		processed := 0
		for key := range job.Partials {
			if key != core.OverallKey {
				processed++
			}
		}

		fmt.Printf("Job %s\n", job.ID)
		fmt.Printf("  status:    %s\n", job.Status)
		fmt.Printf("  groups:    %d\n", len(job.Topics))
		fmt.Printf("  processed: %d sections\n", processed)
		if job.Stats != nil {
			fmt.Printf("  articles:  %d -> %d representatives\n",
				job.Stats.OriginalCount, job.Stats.RepresentativeCount)
		}
		if next, ok := planner.NextTopic(job); ok {
			fmt.Printf("  next:      %s\n", next)
		} else if job.Plan == nil {
			fmt.Println("  next:      finalize")
		} else {
			fmt.Println("  next:      send")
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusJobID, "job", "", "job id (default: next job needing processing)")
	rootCmd.AddCommand(statusCmd)
}
