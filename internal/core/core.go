package core

import "time"

// Article represents a single news item pulled from an RSS/Atom feed.
// Articles are immutable once fetched; identity for deduplication is the
// normalized Link, identity for "already used" tracking during planning is
// Slug when present, else Link.
type Article struct {
	Title        string    `json:"title"`           // Headline text
	Description  string    `json:"description"`     // Item description/summary, HTML stripped
	Link         string    `json:"link"`            // Canonical identity key after normalization
	Publisher    string    `json:"publisher"`       // Source outlet name
	Topic        string    `json:"topic"`           // Coarse source-feed label
	Slug         string    `json:"slug,omitempty"`  // Engine-assigned topic key
	PubDate      time.Time `json:"pub_date"`        // Publication timestamp
	SectionHints []string  `json:"section_hints,omitempty"` // Section-key suggestions inherited from the feed
}

// Key returns the identity used for "already used" tracking during planning.
func (a Article) Key() string {
	if a.Slug != "" {
		return a.Slug
	}
	return a.Link
}

// Cluster is a transient group of near-duplicate articles produced by one
// clustering pass. It is consumed immediately to extract its representative
// and never persisted.
type Cluster struct {
	Representative Article   `json:"representative"`
	Members        []Article `json:"members"` // Non-empty, includes the representative
	AvgSimilarity  float64   `json:"avg_similarity"`
}

// TopicGroup is one source feed's articles attached to a job.
type TopicGroup struct {
	Topic    string    `json:"topic"`
	Articles []Article `json:"articles"`
}

// JobStatus enumerates the lifecycle states of a newsletter job.
// "Partially processed" is implicit: status stays news-ready while some but
// not all section keys are present in Partials.
type JobStatus string

const (
	StatusNewsReady   JobStatus = "news-ready"
	StatusReadyToSend JobStatus = "ready-to-send"
	StatusSending     JobStatus = "sending"
	StatusSuccess     JobStatus = "success"
	StatusFailed      JobStatus = "failed"
)

// OverallKey is the reserved Partials entry holding the cross-section
// overview; it is never a processable section.
const OverallKey = "overall"

// Job is the long-lived aggregate root for one newsletter issue.
// A section key appears in Partials if and only if that section has been
// successfully processed at least once; presence is the sole "done" signal.
type Job struct {
	ID        string                  `json:"id"`
	Status    JobStatus               `json:"status"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
	Topics    []TopicGroup            `json:"topics"`
	Partials  map[string]TopicPartial `json:"partials"` // Section key -> partial record, plus OverallKey
	Stats     *PreprocessStats        `json:"preprocess_stats,omitempty"`
	Plan      *FinalPlan              `json:"plan,omitempty"`
}

// HasPartial reports whether the given section key has been processed.
func (j *Job) HasPartial(key string) bool {
	_, ok := j.Partials[key]
	return ok
}

// SectionItem is one chosen article in a newsletter section, with its
// model-generated or derived summary.
type SectionItem struct {
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Link      string    `json:"link"`
	Publisher string    `json:"publisher"`
	Slug      string    `json:"slug,omitempty"`
	PubDate   time.Time `json:"pub_date"`
}

// Key returns the identity used for "already used" tracking, mirroring
// Article.Key.
func (s SectionItem) Key() string {
	if s.Slug != "" {
		return s.Slug
	}
	return s.Link
}

// AIMetadata records how a partial was produced.
type AIMetadata struct {
	Model          string `json:"model"`
	UsedFallback   bool   `json:"used_fallback"`
	FallbackReason string `json:"fallback_reason,omitempty"`
}

// PartialInput records the parameters used to build a section's candidate set.
type PartialInput struct {
	Limit int `json:"limit"`
	Extra int `json:"extra"`
}

// TopicPartial is the persisted result of processing exactly one section for
// one job. Created once per section per job; overwritten only with an
// explicit force flag; written atomically as a whole.
type TopicPartial struct {
	Topic             string        `json:"topic"` // Section key
	UpdatedAt         time.Time     `json:"updated_at"`
	Section           []SectionItem `json:"section"`
	Overview          string        `json:"overview,omitempty"`   // Only on the reserved overall entry
	Highlights        []SectionItem `json:"highlights,omitempty"` // Only on the reserved overall entry
	ArticlesUsed      int           `json:"articles_used"`
	CandidatesFetched int           `json:"candidates_fetched"`
	AIMetadata        AIMetadata    `json:"ai_metadata"`
	Input             PartialInput  `json:"input"`
}

// FinalPlan is the finalized, cross-section-deduplicated newsletter handed to
// the external email formatter.
type FinalPlan struct {
	Overview     string                   `json:"overview"`
	Highlights   []SectionItem            `json:"highlights"`
	Sections     map[string][]SectionItem `json:"sections"` // Section key -> items, highlights removed
	GeneratedAt  time.Time                `json:"generated_at"`
	Model        string                   `json:"model"`
	UsedFallback bool                     `json:"used_fallback"`
}

// PreprocessStats are diagnostic counters emitted by the preprocessing
// pipeline. They are informational only and never drive control flow.
type PreprocessStats struct {
	OriginalCount       int           `json:"original_count"`
	AfterURLDedup       int           `json:"after_url_dedup"`
	ClusterCount        int           `json:"cluster_count"`
	RepresentativeCount int           `json:"representative_count"`
	ReductionPercent    float64       `json:"reduction_percent"`
	ProcessingTime      time.Duration `json:"processing_time"`
	CacheHit            bool          `json:"cache_hit"`
}
