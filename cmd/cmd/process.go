package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"newsdesk/internal/config"
	"newsdesk/internal/llm"
	"newsdesk/internal/planner"
)

var (
	processJobID string
	processTopic string
	processLimit int
	processExtra int
	processForce bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process the next (or a named) newsletter section for a job",
	Long: `Process performs one step of the topic planning state machine: it
selects the next unprocessed section (or the one named with --topic), builds
its candidate set, ranks and summarizes it, and stores the section record.
Re-running is safe: an already-processed section is returned as-is unless
--force is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		p := planner.New(store, newOracle(ctx), config.Duration(cfg.Planner.OracleTimeout, llm.DefaultTimeout))

		extra := processExtra
		if !cmd.Flags().Changed("extra") {
			extra = cfg.Planner.Extra
		}

		result, err := p.ProcessTopic(ctx, planner.ProcessRequest{
			JobID: processJobID,
			Topic: processTopic,
			Limit: processLimit,
			Extra: extra,
			Force: processForce,
		})
		if errors.Is(err, planner.ErrAllProcessed) {
			fmt.Println("All sections processed; run `newsdesk finalize` next.")
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Printf("Job %s section %s: %s (%d articles from %d candidates",
			result.JobID, result.Topic, result.Status,
			result.ArticlesUsed, result.CandidatesFetched)
		if result.Partial.AIMetadata.UsedFallback {
			fmt.Printf(", fallback: %s", result.Partial.AIMetadata.FallbackReason)
		}
		fmt.Println(")")
		return nil
	},
}

func init() {
	processCmd.Flags().StringVar(&processJobID, "job", "", "job id (default: next job needing processing)")
	processCmd.Flags().StringVar(&processTopic, "topic", "", "section to process (default: next unprocessed)")
	processCmd.Flags().IntVar(&processLimit, "limit", 0, "max primary candidates (default: per-section limit)")
	processCmd.Flags().IntVar(&processExtra, "extra", 0, "extra cross-topic candidates")
	processCmd.Flags().BoolVar(&processForce, "force", false, "reprocess an already-processed section")
	rootCmd.AddCommand(processCmd)
}
