package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"newsdesk/internal/config"
	"newsdesk/internal/core"
	"newsdesk/internal/feeds"
	"newsdesk/internal/preprocess"
	"newsdesk/internal/sections"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch configured feeds, deduplicate, and create a news-ready job",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		fetcher := feeds.NewFetcher(config.Duration(cfg.Preprocess.MaxArticleAge, feeds.DefaultMaxAge))
		groups, err := fetcher.FetchAll(ctx, cfg.Feeds)
		if err != nil {
			return fmt.Errorf("feed ingestion failed: %w", err)
		}

		var all []core.Article
		for _, g := range groups {
			all = append(all, g.Articles...)
		}

		cache := preprocess.NewCache(config.Duration(cfg.Preprocess.CacheTTL, preprocess.DefaultCacheTTL))
		defer cache.Stop()
		pipeline := preprocess.New(preprocess.Options{
			Threshold:           cfg.Preprocess.Threshold,
			MergeThreshold:      cfg.Preprocess.MergeThreshold,
			MaxClusterSize:      cfg.Preprocess.MaxClusterSize,
			TopicPartition:      cfg.Preprocess.TopicPartition,
			PreferredPublishers: cfg.Preprocess.PreferredPublishers,
		}, cache)
		result := pipeline.Process(all)

		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		now := time.Now().UTC()
		job := &core.Job{
			ID:        uuid.NewString(),
			Status:    core.StatusNewsReady,
			CreatedAt: now,
			UpdatedAt: now,
			Topics:    assembleTopics(groups, result),
			Partials:  map[string]core.TopicPartial{},
			Stats:     &result.Stats,
		}
		if err := store.CreateJob(ctx, job); err != nil {
			return fmt.Errorf("failed to create job: %w", err)
		}

		fmt.Printf("Created job %s: %d articles -> %d representatives (%.1f%% reduction)\n",
			job.ID, result.Stats.OriginalCount, result.Stats.RepresentativeCount,
			result.Stats.ReductionPercent)
		return nil
	},
}

// assembleTopics regroups pipeline output into the job's topic groups: each
// feed topic keeps its surviving representatives, and hint-fast-pathed
// articles join the group resolving to their section (or form a new group
// named after the section key).
func assembleTopics(groups []core.TopicGroup, result *preprocess.Result) []core.TopicGroup {
	kept := make(map[string]bool, len(result.Representatives))
	for _, a := range result.Representatives {
		kept[a.Link] = true
	}

	var topics []core.TopicGroup
	for _, g := range groups {
		var survivors []core.Article
		for _, a := range g.Articles {
			if kept[a.Link] {
				survivors = append(survivors, a)
			}
		}
		if len(survivors) == 0 {
			continue
		}
		topics = append(topics, core.TopicGroup{Topic: g.Topic, Articles: survivors})
	}

	for key, bucket := range result.PreClustered {
		if i, ok := findGroupForSection(topics, key); ok {
			topics[i].Articles = append(topics[i].Articles, bucket...)
			continue
		}
		topics = append(topics, core.TopicGroup{Topic: key.String(), Articles: bucket})
	}
	return topics
}

func findGroupForSection(topics []core.TopicGroup, key sections.Key) (int, bool) {
	for i, g := range topics {
		if k, err := sections.ParseToken(g.Topic); err == nil && k == key {
			return i, true
		}
	}
	return 0, false
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
