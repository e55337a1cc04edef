package llm

import (
	"sort"
	"strings"
	"time"

	"newsdesk/internal/core"
	"newsdesk/internal/sections"
)

// FallbackModel is recorded in metadata when the heuristic ranker produced a
// result instead of the oracle.
const FallbackModel = "heuristic"

// FallbackRankSection ranks candidates without the oracle: section-hint
// match, keyword match against the section's pattern table, and recency.
// It never fails on non-empty input, which is what makes it a safe recovery
// path for oracle outages.
func FallbackRankSection(req SectionRequest, reason string) *SectionResult {
	if len(req.Candidates) == 0 {
		return &SectionResult{Model: FallbackModel, UsedFallback: true, FallbackReason: reason}
	}

	limit := req.Limit
	if limit <= 0 || limit > len(req.Candidates) {
		limit = len(req.Candidates)
	}

	type scored struct {
		article core.Article
		score   float64
		pos     int
	}
	ranked := make([]scored, len(req.Candidates))
	now := time.Now()
	for i, a := range req.Candidates {
		ranked[i] = scored{article: a, score: heuristicScore(a, req.Section, now), pos: i}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].pos < ranked[j].pos
	})

	items := make([]core.SectionItem, 0, limit)
	for _, r := range ranked[:limit] {
		items = append(items, core.SectionItem{
			Title:     r.article.Title,
			Summary:   deriveSummary(r.article),
			Link:      r.article.Link,
			Publisher: r.article.Publisher,
			Slug:      r.article.Slug,
			PubDate:   r.article.PubDate,
		})
	}

	return &SectionResult{
		Items:          items,
		Model:          FallbackModel,
		UsedFallback:   true,
		FallbackReason: reason,
	}
}

// heuristicScore combines feed-hint agreement, section keyword matches and
// recency into a single ranking score.
func heuristicScore(a core.Article, section sections.Key, now time.Time) float64 {
	var score float64

	for _, k := range sections.ResolveHints(a.SectionHints) {
		if k == section {
			score += 0.4
			break
		}
	}

	if pattern := sections.KeywordPattern(section); pattern != nil {
		titleHits := len(pattern.FindAllString(a.Title, -1))
		descHits := len(pattern.FindAllString(a.Description, -1))
		score += min(float64(titleHits)*0.15, 0.3)
		score += min(float64(descHits)*0.05, 0.15)
	}

	if !a.PubDate.IsZero() {
		age := now.Sub(a.PubDate).Hours()
		if age < 0 {
			age = 0
		}
		score += max(0, 1-age/48) * 0.3
	}

	return score
}

// FallbackOverview assembles an overview without the oracle: the newest
// stories become highlights and the overview sentence is stitched from
// their titles.
func FallbackOverview(req OverviewRequest, reason string) *OverviewResult {
	highlights := req.Highlights
	if highlights <= 0 {
		highlights = 3
	}
	if highlights > len(req.Items) {
		highlights = len(req.Items)
	}

	byRecency := make([]core.SectionItem, len(req.Items))
	copy(byRecency, req.Items)
	sort.SliceStable(byRecency, func(i, j int) bool {
		return byRecency[i].PubDate.After(byRecency[j].PubDate)
	})
	picked := byRecency[:highlights]

	titles := make([]string, len(picked))
	for i, item := range picked {
		titles[i] = item.Title
	}
	overview := "Today's top stories: " + strings.Join(titles, "; ") + "."

	return &OverviewResult{
		Overview:       overview,
		Highlights:     picked,
		Model:          FallbackModel,
		UsedFallback:   true,
		FallbackReason: reason,
	}
}
