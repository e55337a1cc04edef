// Package planner drives the per-job topic processing state machine. Each
// invocation processes at most one newsletter section: it resolves the job
// and topic, builds the candidate set, invokes the summarization oracle
// (falling back to heuristic ranking on oracle failure), and persists the
// section's partial record exactly once unless explicitly forced. Presence
// of a section key in the job's partials map is the sole "done" signal.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"newsdesk/internal/core"
	"newsdesk/internal/jobstore"
	"newsdesk/internal/llm"
	"newsdesk/internal/logger"
	"newsdesk/internal/sections"
)

var (
	// ErrTopicNotInJob means the requested section resolves to no article
	// group on this job.
	ErrTopicNotInJob = errors.New("topic not available for this job")
	// ErrNoCandidates means the candidate set came up empty; the caller may
	// retry later once more articles exist.
	ErrNoCandidates = errors.New("no candidate articles for section")
	// ErrEmptySection means neither the oracle nor the fallback produced any
	// items. Persisting an empty section would mark it done and it would
	// never be retried, so this is a hard failure.
	ErrEmptySection = errors.New("section processing produced no items")
	// ErrAllProcessed means every resolvable section already has a partial.
	ErrAllProcessed = errors.New("all sections already processed")
)

// ProcessStatus reports how a processing call concluded.
type ProcessStatus string

const (
	StatusProcessed        ProcessStatus = "processed"
	StatusAlreadyProcessed ProcessStatus = "already-processed"
)

// Planner coordinates the job store and the summarization oracle.
type Planner struct {
	store   jobstore.Store
	oracle  llm.Oracle
	timeout time.Duration
}

// New creates a planner. A zero timeout falls back to llm.DefaultTimeout.
func New(store jobstore.Store, oracle llm.Oracle, timeout time.Duration) *Planner {
	if timeout <= 0 {
		timeout = llm.DefaultTimeout
	}
	return &Planner{store: store, oracle: oracle, timeout: timeout}
}

// ProcessRequest names one section-processing invocation. JobID empty means
// "next job needing processing"; Topic empty means "next unprocessed
// section"; Limit zero means the section's default.
type ProcessRequest struct {
	JobID string
	Topic string
	Limit int
	Extra int
	Force bool
}

// ProcessResult reports a completed (or skipped) invocation.
type ProcessResult struct {
	JobID             string            `json:"job_id"`
	Topic             sections.Key      `json:"topic"`
	Status            ProcessStatus     `json:"status"`
	ArticlesUsed      int               `json:"articles_used"`
	CandidatesFetched int               `json:"candidates_fetched"`
	Partial           core.TopicPartial `json:"partial"`
}

// ProcessTopic performs one state-machine step. Re-running with identical
// arguments and Force false performs no new work and no duplicate write: the
// existing record is returned tagged already-processed.
func (p *Planner) ProcessTopic(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	job, err := p.resolveJob(ctx, req.JobID)
	if err != nil {
		return nil, err
	}

	var key sections.Key
	if req.Topic != "" {
		key, err = sections.ParseToken(req.Topic)
		if err != nil {
			return nil, err
		}
	} else {
		var ok bool
		key, ok = NextTopic(job)
		if !ok {
			return nil, ErrAllProcessed
		}
	}

	// Fast idempotence check; re-verified inside the persist transaction.
	if existing, ok := job.Partials[key.String()]; ok && !req.Force {
		return alreadyProcessed(job.ID, key, existing), nil
	}

	group, ok := resolveGroup(job, key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTopicNotInJob, key)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = sections.Limit(key)
	}

	candidates := buildCandidates(job, group, key, limit, req.Extra)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoCandidates, key)
	}

	result := p.rankSection(ctx, llm.SectionRequest{
		Section:       key,
		Candidates:    candidates,
		Limit:         limit,
		ExcludeTitles: selectedTitles(job),
	})
	if len(result.Items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptySection, key)
	}

	rec := core.TopicPartial{
		Topic:             key.String(),
		UpdatedAt:         time.Now().UTC(),
		Section:           result.Items,
		ArticlesUsed:      len(result.Items),
		CandidatesFetched: len(candidates),
		AIMetadata: core.AIMetadata{
			Model:          result.Model,
			UsedFallback:   result.UsedFallback,
			FallbackReason: result.FallbackReason,
		},
		Input: core.PartialInput{Limit: limit, Extra: req.Extra},
	}

	// First successful section also seeds a coarse overall record, refined
	// later at finalization.
	var overall *core.TopicPartial
	if !job.HasPartial(core.OverallKey) {
		overall = placeholderOverall(rec)
	}

	stored, wrote, err := p.store.PutPartial(ctx, job.ID, key.String(), rec, overall, req.Force)
	if err != nil {
		return nil, fmt.Errorf("failed to persist section %s: %w", key, err)
	}
	if !wrote {
		// Lost the transaction race: another invocation stored this section
		// first. Treated identically to already-processed.
		logger.Info("lost persist race, returning existing record", "job", job.ID, "topic", key)
		return alreadyProcessed(job.ID, key, stored), nil
	}

	logger.Info("section processed",
		"job", job.ID,
		"topic", key,
		"articles_used", rec.ArticlesUsed,
		"candidates", rec.CandidatesFetched,
		"fallback", rec.AIMetadata.UsedFallback,
	)

	return &ProcessResult{
		JobID:             job.ID,
		Topic:             key,
		Status:            StatusProcessed,
		ArticlesUsed:      rec.ArticlesUsed,
		CandidatesFetched: rec.CandidatesFetched,
		Partial:           rec,
	}, nil
}

// rankSection invokes the oracle under the planner's timeout, recovering
// from any oracle failure via the heuristic ranker. The job is never left
// stuck by an oracle outage.
func (p *Planner) rankSection(ctx context.Context, req llm.SectionRequest) *llm.SectionResult {
	if p.oracle == nil {
		return llm.FallbackRankSection(req, "no oracle configured")
	}
	oracleCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	result, err := p.oracle.RankSection(oracleCtx, req)
	if err != nil || result == nil || len(result.Items) == 0 {
		reason := "oracle returned no items"
		if err != nil {
			reason = err.Error()
		}
		logger.Warn("oracle failed, using heuristic fallback", "section", req.Section, "reason", reason)
		return llm.FallbackRankSection(req, reason)
	}
	return result
}

// NextTopic derives the ordered, deduplicated list of resolvable section
// keys from the job's article groups (order = first group resolving to each
// key, in group order) and returns the first one without a partial. ok is
// false when all are present, signaling ready-to-finalize.
func NextTopic(job *core.Job) (sections.Key, bool) {
	for _, key := range resolvableKeys(job) {
		if !job.HasPartial(key.String()) {
			return key, true
		}
	}
	return "", false
}

func resolvableKeys(job *core.Job) []sections.Key {
	var keys []sections.Key
	seen := map[sections.Key]bool{}
	for _, group := range job.Topics {
		key, ok := groupKey(group)
		if ok && !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}

// groupKey resolves one article group to its section: explicit topic match,
// then section-hint membership, then slug match.
func groupKey(group core.TopicGroup) (sections.Key, bool) {
	if key, err := sections.ParseToken(group.Topic); err == nil {
		return key, true
	}
	for _, a := range group.Articles {
		if keys := sections.ResolveHints(a.SectionHints); len(keys) > 0 {
			return keys[0], true
		}
	}
	for _, a := range group.Articles {
		if a.Slug == "" {
			continue
		}
		if key, err := sections.ParseToken(a.Slug); err == nil {
			return key, true
		}
	}
	return "", false
}

// resolveGroup finds the article group backing a section, in group order.
func resolveGroup(job *core.Job, key sections.Key) (core.TopicGroup, bool) {
	for _, group := range job.Topics {
		if k, ok := groupKey(group); ok && k == key {
			return group, true
		}
	}
	return core.TopicGroup{}, false
}

// buildCandidates assembles the section's candidate set: the group's
// articles newest-first truncated to limit, plus up to extra fresh articles
// from other groups, excluding anything already consumed by other processed
// sections on this job and anything already in the primary set.
func buildCandidates(job *core.Job, group core.TopicGroup, key sections.Key, limit, extra int) []core.Article {
	primary := make([]core.Article, len(group.Articles))
	copy(primary, group.Articles)
	sort.SliceStable(primary, func(i, j int) bool {
		return primary[i].PubDate.After(primary[j].PubDate)
	})
	if len(primary) > limit {
		primary = primary[:limit]
	}

	if extra <= 0 {
		return primary
	}

	used := usedArticleKeys(job, key)
	for _, a := range primary {
		used[a.Key()] = true
	}

	var pool []core.Article
	for _, other := range job.Topics {
		if other.Topic == group.Topic {
			continue
		}
		for _, a := range other.Articles {
			if !used[a.Key()] {
				pool = append(pool, a)
			}
		}
	}
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].PubDate.After(pool[j].PubDate)
	})
	if len(pool) > extra {
		pool = pool[:extra]
	}

	return append(primary, pool...)
}

// usedArticleKeys collects the identity keys of every article already chosen
// by another processed section. The section being (re)processed and the
// derived overall entry are skipped, so a forced re-run does not exclude its
// own previous picks. The view is only as fresh as the job snapshot read at
// the start of this invocation; a slightly stale view at most causes a minor
// candidate overlap, which is an accepted tradeoff for avoiding
// cross-invocation locking.
func usedArticleKeys(job *core.Job, current sections.Key) map[string]bool {
	used := map[string]bool{}
	for key, partial := range job.Partials {
		if key == current.String() || key == core.OverallKey {
			continue
		}
		for _, item := range partial.Section {
			used[item.Key()] = true
		}
	}
	return used
}

// selectedTitles lists titles already chosen by processed sections, passed
// to the oracle as a duplicate-avoidance hint.
func selectedTitles(job *core.Job) []string {
	var titles []string
	seen := map[string]bool{}
	for key, partial := range job.Partials {
		if key == core.OverallKey {
			continue
		}
		for _, item := range partial.Section {
			if !seen[item.Title] {
				seen[item.Title] = true
				titles = append(titles, item.Title)
			}
		}
	}
	sort.Strings(titles)
	return titles
}

// placeholderOverall derives a coarse overview record from the first
// processed section's output.
func placeholderOverall(rec core.TopicPartial) *core.TopicPartial {
	highlights := rec.Section
	if len(highlights) > 3 {
		highlights = highlights[:3]
	}
	titles := make([]string, len(highlights))
	for i, item := range highlights {
		titles[i] = item.Title
	}
	return &core.TopicPartial{
		Topic:      core.OverallKey,
		UpdatedAt:  rec.UpdatedAt,
		Overview:   "In today's news: " + strings.Join(titles, "; ") + ".",
		Highlights: highlights,
		AIMetadata: rec.AIMetadata,
	}
}

func alreadyProcessed(jobID string, key sections.Key, rec core.TopicPartial) *ProcessResult {
	return &ProcessResult{
		JobID:             jobID,
		Topic:             key,
		Status:            StatusAlreadyProcessed,
		ArticlesUsed:      rec.ArticlesUsed,
		CandidatesFetched: rec.CandidatesFetched,
		Partial:           rec,
	}
}

func (p *Planner) resolveJob(ctx context.Context, id string) (*core.Job, error) {
	if id != "" {
		job, err := p.store.GetJob(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve job %s: %w", id, err)
		}
		return job, nil
	}
	job, err := p.store.NextProcessableJob(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve next processable job: %w", err)
	}
	return job, nil
}
