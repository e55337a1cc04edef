package planner

import (
	"context"
	"fmt"
	"time"

	"newsdesk/internal/core"
	"newsdesk/internal/llm"
	"newsdesk/internal/logger"
	"newsdesk/internal/preprocess"
	"newsdesk/internal/sections"
	"newsdesk/internal/similarity"
)

// ErrSectionsRemaining means finalization was requested before every
// resolvable section was processed.
var ErrSectionsRemaining = fmt.Errorf("job has unprocessed sections")

// Cross-section dedup operates on already-curated, per-section-deduplicated
// data, so a pure token-overlap rule is deliberately stricter and cheaper
// than the multi-signal similarity engine.
const (
	// dedupOverlapHard shared tokens is always a duplicate; dedupOverlapStrong
	// needs two long shared tokens; dedupOverlapWeak needs a high overlap
	// ratio or Jaccard.
	dedupOverlapHard   = 5
	dedupOverlapStrong = 4
	dedupOverlapWeak   = 3
	dedupLongTokenLen  = 5
	dedupRatioMin      = 0.55
	dedupJaccardMin    = 0.45
	highlightCount     = 3
)

// FinalizeResult reports the outcome of plan finalization.
type FinalizeResult struct {
	JobID        string         `json:"job_id"`
	Plan         core.FinalPlan `json:"plan"`
	Dropped      int            `json:"dropped"` // Cross-section duplicates removed
	UsedFallback bool           `json:"used_fallback"`
}

// Finalize runs once all sections are processed: it merges per-section
// results, removes duplicate stories across sections, generates the
// cross-section overview and highlights, persists the plan and marks the job
// ready-to-send. Any failure along the way degrades to a heuristic plan
// assembled from the per-section records — finalization never leaves the
// job stuck.
func (p *Planner) Finalize(ctx context.Context, jobID string) (*FinalizeResult, error) {
	job, err := p.resolveJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if next, ok := NextTopic(job); ok {
		return nil, fmt.Errorf("%w: next is %s", ErrSectionsRemaining, next)
	}

	deduped, dropped := dedupeAcrossSections(job)

	var pool []core.SectionItem
	for _, key := range orderedSectionKeys(job) {
		pool = append(pool, deduped[key.String()]...)
	}

	overview := p.overview(ctx, pool)

	// No duplicate display: a story promoted to the highlights leaves its
	// original section.
	highlighted := map[string]bool{}
	for _, item := range overview.Highlights {
		highlighted[item.Key()] = true
	}
	planSections := make(map[string][]core.SectionItem, len(deduped))
	for key, items := range deduped {
		var kept []core.SectionItem
		for _, item := range items {
			if !highlighted[item.Key()] {
				kept = append(kept, item)
			}
		}
		planSections[key] = kept
	}

	plan := core.FinalPlan{
		Overview:     overview.Overview,
		Highlights:   overview.Highlights,
		Sections:     planSections,
		GeneratedAt:  time.Now().UTC(),
		Model:        overview.Model,
		UsedFallback: overview.UsedFallback,
	}

	if err := p.store.FinalizeJob(ctx, job.ID, plan); err != nil {
		return nil, fmt.Errorf("failed to persist finalized plan: %w", err)
	}

	logger.Info("job finalized",
		"job", job.ID,
		"sections", len(planSections),
		"highlights", len(plan.Highlights),
		"duplicates_dropped", dropped,
		"fallback", plan.UsedFallback,
	)

	return &FinalizeResult{
		JobID:        job.ID,
		Plan:         plan,
		Dropped:      dropped,
		UsedFallback: plan.UsedFallback,
	}, nil
}

func (p *Planner) overview(ctx context.Context, pool []core.SectionItem) *llm.OverviewResult {
	req := llm.OverviewRequest{Items: pool, Highlights: highlightCount}
	if p.oracle == nil {
		return llm.FallbackOverview(req, "no oracle configured")
	}
	oracleCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	result, err := p.oracle.Overview(oracleCtx, req)
	if err != nil || result == nil {
		reason := "oracle returned no overview"
		if err != nil {
			reason = err.Error()
		}
		logger.Warn("overview oracle failed, using heuristic fallback", "reason", reason)
		return llm.FallbackOverview(req, reason)
	}
	return result
}

// dedupeAcrossSections walks sections in the fixed processing order and
// drops any story already seen — by normalized URL, by slug, or by the token
// overlap rule. Kept stories' token sets accumulate into the seen pool for
// subsequent sections.
func dedupeAcrossSections(job *core.Job) (map[string][]core.SectionItem, int) {
	seenURLs := map[string]bool{}
	seenSlugs := map[string]bool{}
	var seenTokens []map[string]bool

	out := make(map[string][]core.SectionItem)
	dropped := 0
	for _, key := range orderedSectionKeys(job) {
		partial, ok := job.Partials[key.String()]
		if !ok {
			continue
		}
		var kept []core.SectionItem
		for _, item := range partial.Section {
			urlKey := preprocess.NormalizeURL(item.Link)
			if seenURLs[urlKey] || (item.Slug != "" && seenSlugs[item.Slug]) {
				dropped++
				continue
			}
			tokens := similarity.Tokens(item.Title + " " + item.Summary)
			if matchesSeen(tokens, seenTokens) {
				dropped++
				continue
			}
			seenURLs[urlKey] = true
			if item.Slug != "" {
				seenSlugs[item.Slug] = true
			}
			seenTokens = append(seenTokens, tokens)
			kept = append(kept, item)
		}
		out[key.String()] = kept
	}
	return out, dropped
}

// matchesSeen applies the token overlap rule against every kept story.
func matchesSeen(tokens map[string]bool, seen []map[string]bool) bool {
	for _, other := range seen {
		if isTokenDuplicate(tokens, other) {
			return true
		}
	}
	return false
}

func isTokenDuplicate(a, b map[string]bool) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	overlap, long := 0, 0
	for tok := range a {
		if b[tok] {
			overlap++
			if len(tok) >= dedupLongTokenLen {
				long++
			}
		}
	}
	if overlap >= dedupOverlapHard {
		return true
	}
	if overlap >= dedupOverlapStrong && long >= 2 {
		return true
	}
	if overlap >= dedupOverlapWeak {
		smaller := min(len(a), len(b))
		ratio := float64(overlap) / float64(smaller)
		jaccard := float64(overlap) / float64(len(a)+len(b)-overlap)
		if ratio >= dedupRatioMin || jaccard >= dedupJaccardMin {
			return true
		}
	}
	return false
}

// orderedSectionKeys is the fixed section-processing order restricted to the
// sections this job actually processed.
func orderedSectionKeys(job *core.Job) []sections.Key {
	var keys []sections.Key
	for _, key := range sections.All() {
		if job.HasPartial(key.String()) {
			keys = append(keys, key)
		}
	}
	return keys
}
