package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"newsdesk/internal/core"
	"newsdesk/internal/llm"
)

func sectionItem(title, link string, ageHours int) core.SectionItem {
	return core.SectionItem{
		Title:     title,
		Link:      link,
		Publisher: "Example Wire",
		PubDate:   time.Now().Add(-time.Duration(ageHours) * time.Hour),
	}
}

// processedJob is a two-section job with every section already processed,
// ready for finalization.
func processedJob(id string) *core.Job {
	job := twoTopicJob(id)
	job.Partials = map[string]core.TopicPartial{
		"politics": {
			Topic: "politics",
			Section: []core.SectionItem{
				sectionItem("Parliament passes spending bill", "https://example.com/politics/1", 1),
				sectionItem("Minister resigns over leaked memo", "https://example.com/politics/2", 2),
			},
		},
		"business": {
			Topic: "business",
			Section: []core.SectionItem{
				sectionItem("Central bank holds rates steady", "https://example.com/business/1", 1),
				sectionItem("Retail giant posts record profit", "https://example.com/business/4", 4),
			},
		},
	}
	return job
}

func TestFinalize_SectionsRemaining(t *testing.T) {
	store := newMemStore(twoTopicJob("job-1"))
	p := New(store, &stubOracle{}, time.Second)

	if _, err := p.Finalize(context.Background(), "job-1"); !errors.Is(err, ErrSectionsRemaining) {
		t.Errorf("expected ErrSectionsRemaining, got %v", err)
	}
}

func TestFinalize_PersistsPlanAndStatus(t *testing.T) {
	store := newMemStore(processedJob("job-1"))
	oracle := &stubOracle{overviewText: "The day in brief."}
	p := New(store, oracle, time.Second)
	ctx := context.Background()

	result, err := p.Finalize(ctx, "job-1")
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if result.Plan.Overview != "The day in brief." {
		t.Errorf("overview = %q", result.Plan.Overview)
	}
	if result.UsedFallback {
		t.Error("oracle succeeded, plan should not be marked fallback")
	}

	job, err := store.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != core.StatusReadyToSend {
		t.Errorf("status = %q, want %q", job.Status, core.StatusReadyToSend)
	}
	if job.Plan == nil || job.Plan.Overview != result.Plan.Overview {
		t.Error("finalized plan not persisted")
	}
}

func TestFinalize_HighlightsLeaveSections(t *testing.T) {
	store := newMemStore(processedJob("job-1"))
	p := New(store, &stubOracle{}, time.Second)

	result, err := p.Finalize(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(result.Plan.Highlights) != 3 {
		t.Fatalf("highlights = %d, want 3", len(result.Plan.Highlights))
	}

	highlighted := map[string]bool{}
	for _, item := range result.Plan.Highlights {
		highlighted[item.Key()] = true
	}
	total := 0
	for key, items := range result.Plan.Sections {
		for _, item := range items {
			if highlighted[item.Key()] {
				t.Errorf("highlighted story %q still present in section %s", item.Title, key)
			}
			total++
		}
	}
	// 4 stories in, 3 promoted to highlights.
	if total != 1 {
		t.Errorf("remaining section stories = %d, want 1", total)
	}
}

func TestFinalize_DropsCrossSectionURLDuplicate(t *testing.T) {
	job := processedJob("job-1")
	business := job.Partials["business"]
	// Same story syndicated into a second section under a tracking URL.
	business.Section = append(business.Section,
		sectionItem("Parliament passes spending bill", "https://example.com/politics/1?utm_source=rss", 1))
	job.Partials["business"] = business

	store := newMemStore(job)
	p := New(store, &stubOracle{}, time.Second)

	result, err := p.Finalize(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if result.Dropped != 1 {
		t.Errorf("dropped = %d, want 1", result.Dropped)
	}

	seen := 0
	for _, item := range result.Plan.Highlights {
		if item.Title == "Parliament passes spending bill" {
			seen++
		}
	}
	for _, items := range result.Plan.Sections {
		for _, item := range items {
			if item.Title == "Parliament passes spending bill" {
				seen++
			}
		}
	}
	if seen != 1 {
		t.Errorf("duplicated story appears %d times in the plan, want 1", seen)
	}
}

func TestFinalize_DropsTokenOverlapDuplicate(t *testing.T) {
	job := processedJob("job-1")
	politics := job.Partials["politics"]
	politics.Section = append(politics.Section,
		sectionItem("Chancellor unveils emergency housing budget", "https://example.com/politics/3", 3))
	job.Partials["politics"] = politics

	business := job.Partials["business"]
	// Different outlet, different URL, same story.
	business.Section = append(business.Section,
		sectionItem("Chancellor unveils emergency housing budget today", "https://other.com/budget", 2))
	job.Partials["business"] = business

	store := newMemStore(job)
	p := New(store, &stubOracle{}, time.Second)

	result, err := p.Finalize(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if result.Dropped != 1 {
		t.Errorf("dropped = %d, want 1 (token-overlap duplicate)", result.Dropped)
	}
}

func TestFinalize_FallbackOverview(t *testing.T) {
	store := newMemStore(processedJob("job-1"))
	oracle := &stubOracle{overviewErr: errors.New("model overloaded")}
	p := New(store, oracle, time.Second)

	result, err := p.Finalize(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Finalize should recover heuristically, got %v", err)
	}
	if !result.UsedFallback || result.Plan.Model != llm.FallbackModel {
		t.Errorf("expected heuristic overview, got fallback=%v model=%q", result.UsedFallback, result.Plan.Model)
	}
	if result.Plan.Overview == "" || len(result.Plan.Highlights) == 0 {
		t.Error("fallback overview must still fill overview and highlights")
	}

	job, _ := store.GetJob(context.Background(), "job-1")
	if job.Status != core.StatusReadyToSend {
		t.Error("fallback finalization must still move the job to ready-to-send")
	}
}

func toks(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

func TestIsTokenDuplicate(t *testing.T) {
	cases := []struct {
		name string
		a, b map[string]bool
		want bool
	}{
		{
			name: "five shared tokens",
			a:    toks("chancellor", "unveils", "emergency", "housing", "budget", "today"),
			b:    toks("chancellor", "unveils", "emergency", "housing", "budget", "deal"),
			want: true,
		},
		{
			name: "four shared with two long tokens",
			a:    toks("chancellor", "budget", "cut", "tax", "vote", "debate"),
			b:    toks("chancellor", "budget", "cut", "tax", "poll", "floor", "rebels"),
			want: true,
		},
		{
			name: "four short shared tokens in large sets",
			a:    toks("cup", "goal", "win", "veto", "aaa", "bbb", "ccc", "ddd"),
			b:    toks("cup", "goal", "win", "veto", "eee", "fff", "ggg", "hhh", "iii"),
			want: false,
		},
		{
			name: "three shared in large sets",
			a:    toks("rates", "bank", "hold", "aaa", "bbb", "ccc", "ddd", "eee"),
			b:    toks("rates", "bank", "hold", "fff", "ggg", "hhh", "iii", "jjj", "kkk", "lll"),
			want: false,
		},
		{
			name: "three shared dominating a small set",
			a:    toks("rates", "bank", "hold", "pause"),
			b:    toks("rates", "bank", "hold", "cut", "cycle"),
			want: true,
		},
		{
			name: "two shared tokens",
			a:    toks("market", "rally", "tech"),
			b:    toks("market", "rally", "bonds", "yield"),
			want: false,
		},
		{
			name: "empty set never matches",
			a:    toks(),
			b:    toks("market", "rally"),
			want: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isTokenDuplicate(tc.a, tc.b); got != tc.want {
				t.Errorf("isTokenDuplicate = %v, want %v", got, tc.want)
			}
		})
	}
}
