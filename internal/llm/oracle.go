// Package llm is the summarization oracle boundary: ranking and summarizing
// candidate articles into newsletter sections via Gemini, with a keyword
// heuristic fallback so an oracle outage never blocks a job.
package llm

import (
	"context"
	"time"

	"newsdesk/internal/core"
	"newsdesk/internal/sections"
)

// SectionRequest asks the oracle to rank and summarize candidates for one
// section. ExcludeTitles hints at stories already selected elsewhere so the
// oracle can avoid duplicates.
type SectionRequest struct {
	Section       sections.Key
	Candidates    []core.Article
	Limit         int
	ExcludeTitles []string
	Instructions  string
}

// SectionResult is the oracle's answer for one section. Items is the ranked,
// summarized subset; the metadata records which model produced it and
// whether the heuristic fallback was used.
type SectionResult struct {
	Items          []core.SectionItem
	Model          string
	UsedFallback   bool
	FallbackReason string
}

// OverviewRequest asks the oracle for a cross-section overview of the full
// deduplicated pool.
type OverviewRequest struct {
	Items      []core.SectionItem
	Highlights int
}

// OverviewResult carries the newsletter-level overview and top highlights.
type OverviewResult struct {
	Overview       string
	Highlights     []core.SectionItem
	Model          string
	UsedFallback   bool
	FallbackReason string
}

// Oracle ranks and summarizes articles. Implementations must treat every
// call as bounded: the caller supplies a context with a deadline and expects
// either a non-empty result or an error it can recover from heuristically.
type Oracle interface {
	RankSection(ctx context.Context, req SectionRequest) (*SectionResult, error)
	Overview(ctx context.Context, req OverviewRequest) (*OverviewResult, error)
}

// DefaultTimeout bounds a single oracle invocation.
const DefaultTimeout = 45 * time.Second
