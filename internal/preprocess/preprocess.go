// Package preprocess turns a raw feed pull into the representative article
// set the planner works from. The stage order is fixed: URL dedup, the
// single-hint fast path, topic-aware partitioning, per-partition clustering,
// the representative merge pass, then combination. Each stage feeds the next.
package preprocess

import (
	"net/url"
	"strings"
	"time"

	"newsdesk/internal/clustering"
	"newsdesk/internal/core"
	"newsdesk/internal/logger"
	"newsdesk/internal/sections"
)

// Options configures the pipeline.
type Options struct {
	Threshold           float64  // Clustering edge threshold (deliberately aggressive)
	MergeThreshold      float64  // Looser threshold for the representative merge pass
	MaxClusterSize      int      // Greedy-path bound
	TopicPartition      bool     // Partition by coarse topic before clustering
	PreferredPublishers []string // Representative selection preference
}

// DefaultOptions returns the tuned pipeline defaults.
func DefaultOptions() Options {
	return Options{
		Threshold:      0.15,
		MergeThreshold: 0.45,
		MaxClusterSize: 20,
		TopicPartition: true,
	}
}

// Result is the pipeline output: the final representative set, articles
// fast-pathed straight into a section by an unambiguous feed hint, and
// diagnostic stats.
type Result struct {
	Representatives []core.Article                  `json:"representatives"`
	PreClustered    map[sections.Key][]core.Article `json:"pre_clustered"`
	Stats           core.PreprocessStats            `json:"stats"`
}

// Pipeline owns the stage orchestration and the TTL result cache.
type Pipeline struct {
	opts  Options
	cache *Cache
}

// New creates a pipeline. The cache may be nil to disable caching.
func New(opts Options, cache *Cache) *Pipeline {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultOptions().Threshold
	}
	if opts.MergeThreshold <= 0 {
		opts.MergeThreshold = DefaultOptions().MergeThreshold
	}
	if opts.MaxClusterSize <= 0 {
		opts.MaxClusterSize = DefaultOptions().MaxClusterSize
	}
	return &Pipeline{opts: opts, cache: cache}
}

// Process runs the full pipeline. A cache hit returns the previously computed
// result without recomputation; recomputing is always safe and deterministic
// given the same input.
func (p *Pipeline) Process(articles []core.Article) *Result {
	start := time.Now()

	var cacheKey string
	if p.cache != nil {
		links := make([]string, len(articles))
		for i, a := range articles {
			links[i] = a.Link
		}
		cacheKey = Key(links)
		if cached := p.cache.Get(cacheKey); cached != nil {
			hit := *cached
			hit.Stats.CacheHit = true
			return &hit
		}
	}

	deduped := DedupeByURL(articles)

	fastPathed, remainder := p.hintFastPath(deduped)

	partitions := [][]core.Article{remainder}
	if p.opts.TopicPartition {
		partitions = partitionByTopic(remainder)
	}

	preferred := make(map[string]bool, len(p.opts.PreferredPublishers))
	for _, pub := range p.opts.PreferredPublishers {
		preferred[pub] = true
	}

	clusterOpts := clustering.Options{
		Threshold:           p.opts.Threshold,
		MergeThreshold:      p.opts.MergeThreshold,
		MaxClusterSize:      p.opts.MaxClusterSize,
		PreferredPublishers: preferred,
	}

	var representatives []core.Article
	clusterCount := 0
	for _, partition := range partitions {
		clusters := clustering.Cluster(partition, clusterOpts)
		clusters = clustering.MergeClusters(clusters, p.opts.MergeThreshold)
		clusterCount += len(clusters)
		for _, c := range clusters {
			representatives = append(representatives, c.Representative)
		}
	}

	fastCount := 0
	for _, bucket := range fastPathed {
		fastCount += len(bucket)
	}

	result := &Result{
		Representatives: representatives,
		PreClustered:    fastPathed,
		Stats: core.PreprocessStats{
			OriginalCount:       len(articles),
			AfterURLDedup:       len(deduped),
			ClusterCount:        clusterCount,
			RepresentativeCount: len(representatives) + fastCount,
			ReductionPercent:    reduction(len(articles), len(representatives)+fastCount),
			ProcessingTime:      time.Since(start),
		},
	}

	logger.Debug("preprocess complete",
		"original", result.Stats.OriginalCount,
		"deduped", result.Stats.AfterURLDedup,
		"clusters", result.Stats.ClusterCount,
		"representatives", result.Stats.RepresentativeCount,
		"reduction_pct", result.Stats.ReductionPercent,
	)

	if p.cache != nil {
		p.cache.Set(cacheKey, result)
	}
	return result
}

// hintFastPath assigns any article whose SectionHints name exactly one
// recognized section directly to that section's bucket, bypassing similarity
// computation. Feeds are trusted when unambiguous; articles with zero or
// multiple hinted sections fall through to full clustering.
func (p *Pipeline) hintFastPath(articles []core.Article) (map[sections.Key][]core.Article, []core.Article) {
	buckets := make(map[sections.Key][]core.Article)
	var remainder []core.Article
	for _, a := range articles {
		keys := sections.ResolveHints(a.SectionHints)
		if len(keys) == 1 {
			buckets[keys[0]] = append(buckets[keys[0]], a)
			continue
		}
		remainder = append(remainder, a)
	}
	return buckets, remainder
}

// partitionByTopic groups articles by their coarse topic field so clustering
// never merges across unrelated topic categories. Partition order follows
// first appearance.
func partitionByTopic(articles []core.Article) [][]core.Article {
	index := map[string]int{}
	var partitions [][]core.Article
	for _, a := range articles {
		i, ok := index[a.Topic]
		if !ok {
			i = len(partitions)
			index[a.Topic] = i
			partitions = append(partitions, nil)
		}
		partitions[i] = append(partitions[i], a)
	}
	return partitions
}

// DedupeByURL keeps the newest article per normalized URL, preserving
// first-seen order of the kept articles.
func DedupeByURL(articles []core.Article) []core.Article {
	type slot struct {
		pos     int
		article core.Article
	}
	byURL := map[string]slot{}
	order := 0
	for _, a := range articles {
		key := NormalizeURL(a.Link)
		existing, ok := byURL[key]
		if !ok {
			byURL[key] = slot{pos: order, article: a}
			order++
			continue
		}
		if a.PubDate.After(existing.article.PubDate) {
			byURL[key] = slot{pos: existing.pos, article: a}
		}
	}
	out := make([]core.Article, order)
	for _, s := range byURL {
		out[s.pos] = s.article
	}
	return out
}

// trackingParams are stripped during URL normalization.
var trackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"utm_id", "fbclid", "gclid", "mc_cid", "mc_eid", "ref", "cmp", "ito",
	"ns_mchannel", "ns_campaign", "CMP",
}

// NormalizeURL canonicalizes an article link: force https, strip "www.",
// strip tracking query parameters, strip the fragment and any trailing
// slash. Unparseable input is returned trimmed but otherwise untouched.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(raw, "/")
	}

	u.Scheme = "https"
	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	u.Fragment = ""

	q := u.Query()
	for _, p := range trackingParams {
		q.Del(p)
	}
	u.RawQuery = q.Encode()

	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

func reduction(original, final int) float64 {
	if original == 0 {
		return 0
	}
	return float64(original-final) / float64(original) * 100
}
