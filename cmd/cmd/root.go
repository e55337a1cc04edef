// Package cmd wires the newsdesk CLI: each subcommand is one external
// invocation of the planning state machine (ingest, process, finalize) or a
// read-only view (status, preview). There is no in-process scheduler; a
// cron or workflow triggers these commands.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"newsdesk/internal/config"
	"newsdesk/internal/jobstore"
	"newsdesk/internal/llm"
	"newsdesk/internal/logger"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "newsdesk",
	Short: "Newsdesk deduplicates RSS news and plans newsletter sections.",
	Long: `Newsdesk ingests RSS news feeds, deduplicates and clusters
near-duplicate stories, ranks and summarizes them into thematic newsletter
sections via Gemini (with a heuristic fallback), and finalizes the result
into a ready-to-send newsletter plan.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. It is called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.newsdesk.yaml)")
}

func initConfig() {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg = loaded
}

func openStore() (*jobstore.SQLiteStore, error) {
	store, err := jobstore.NewSQLiteStore(cfg.App.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open job store: %w", err)
	}
	return store, nil
}

// newOracle builds the Gemini client, or returns nil when no API key is
// configured — the planner then runs entirely on the heuristic fallback.
func newOracle(ctx context.Context) llm.Oracle {
	client, err := llm.NewClient(ctx, cfg.Gemini.Model)
	if err != nil {
		logger.Warn("oracle unavailable, heuristic fallback will be used", "reason", err.Error())
		return nil
	}
	return client
}
