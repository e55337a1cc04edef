package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"newsdesk/internal/render"
)

var (
	previewJobID  string
	previewOutput string
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Render a finalized job's newsletter plan as markdown",
	RunE: func(cmd *cobra.Command, args []string) error {
		if previewJobID == "" {
			return fmt.Errorf("--job is required")
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		job, err := store.GetJob(cmd.Context(), previewJobID)
		if err != nil {
			return err
		}
		if job.Plan == nil {
			return fmt.Errorf("job %s has no finalized plan yet", job.ID)
		}

		markdown := render.Markdown(job.Plan)
		if previewOutput == "" {
			fmt.Print(markdown)
			return nil
		}
		if err := os.WriteFile(previewOutput, []byte(markdown), 0644); err != nil {
			return fmt.Errorf("failed to write preview: %w", err)
		}
		fmt.Printf("Wrote %s\n", previewOutput)
		return nil
	},
}

func init() {
	previewCmd.Flags().StringVar(&previewJobID, "job", "", "job id")
	previewCmd.Flags().StringVar(&previewOutput, "out", "", "output file (default: stdout)")
	rootCmd.AddCommand(previewCmd)
}
