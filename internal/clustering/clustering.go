// Package clustering groups near-duplicate articles. The default algorithm
// builds an undirected similarity graph over the input and extracts connected
// components, which captures chained matches a greedy first-match assignment
// misses (A~B, B~C, A!~C still land in one cluster). The pairwise similarity
// pass is O(n^2) — acceptable for hundreds of articles per run, not
// thousands.
package clustering

import (
	"sort"

	"newsdesk/internal/core"
	"newsdesk/internal/similarity"
)

// Options configures a clustering run.
type Options struct {
	Threshold           float64         // Minimum similarity for an edge
	MergeThreshold      float64         // Looser threshold for the representative merge pass
	MaxClusterSize      int             // Enforced only on the greedy path
	PreferredPublishers map[string]bool // Representative selection preference
	Greedy              bool            // Legacy first-match assignment instead of components
}

// DefaultOptions returns the tuned defaults for news headline clustering.
func DefaultOptions() Options {
	return Options{
		Threshold:      0.15,
		MergeThreshold: 0.45,
		MaxClusterSize: 20,
	}
}

// Cluster groups the given articles. Every input article appears in exactly
// one cluster's member list; a cluster of size 1 means no duplicates were
// found. Empty input yields no clusters.
func Cluster(articles []core.Article, opts Options) []core.Cluster {
	if len(articles) == 0 {
		return nil
	}
	if opts.Greedy {
		return greedyCluster(articles, opts)
	}
	return componentCluster(articles, opts)
}

// componentCluster is the graph path: edge iff similarity >= threshold,
// clusters are connected components. Component size is not bounded by
// MaxClusterSize here; the threshold is assumed to self-limit growth.
func componentCluster(articles []core.Article, opts Options) []core.Cluster {
	n := len(articles)
	adjacency := make([][]int, n)
	scores := make(map[[2]int]float64)

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			s := similarity.Score(articles[i], articles[j])
			if s >= opts.Threshold {
				adjacency[i] = append(adjacency[i], j)
				adjacency[j] = append(adjacency[j], i)
				scores[[2]int{i, j}] = s
			}
		}
	}

	visited := make([]bool, n)
	var clusters []core.Cluster
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		component := dfs(i, adjacency, visited)
		sort.Ints(component)
		clusters = append(clusters, buildCluster(articles, component, scores, opts))
	}
	return clusters
}

// dfs collects the connected component containing start, iteratively to keep
// stack depth independent of component size.
func dfs(start int, adjacency [][]int, visited []bool) []int {
	stack := []int{start}
	visited[start] = true
	var component []int
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		component = append(component, node)
		for _, next := range adjacency[node] {
			if !visited[next] {
				visited[next] = true
				stack = append(stack, next)
			}
		}
	}
	return component
}

func buildCluster(articles []core.Article, indices []int, scores map[[2]int]float64, opts Options) core.Cluster {
	members := make([]core.Article, len(indices))
	for i, idx := range indices {
		members[i] = articles[idx]
	}

	var sum float64
	var count int
	for i := 0; i < len(indices); i++ {
		for j := i + 1; j < len(indices); j++ {
			a, b := indices[i], indices[j]
			if a > b {
				a, b = b, a
			}
			if s, ok := scores[[2]int{a, b}]; ok {
				sum += s
				count++
			}
		}
	}
	avg := 1.0
	if count > 0 {
		avg = sum / float64(count)
	}

	return core.Cluster{
		Representative: SelectRepresentative(members, opts.PreferredPublishers),
		Members:        members,
		AvgSimilarity:  avg,
	}
}

// greedyCluster is the legacy first-match path: each article joins the first
// existing cluster containing a member above threshold, bounded by
// MaxClusterSize.
func greedyCluster(articles []core.Article, opts Options) []core.Cluster {
	var clusters []core.Cluster
	for _, article := range articles {
		assigned := false
		for idx := range clusters {
			c := &clusters[idx]
			if opts.MaxClusterSize > 0 && len(c.Members) >= opts.MaxClusterSize {
				continue
			}
			for _, member := range c.Members {
				if similarity.Score(article, member) >= opts.Threshold {
					c.Members = append(c.Members, article)
					assigned = true
					break
				}
			}
			if assigned {
				break
			}
		}
		if !assigned {
			clusters = append(clusters, core.Cluster{
				Representative: article,
				Members:        []core.Article{article},
				AvgSimilarity:  1.0,
			})
		}
	}
	for idx := range clusters {
		clusters[idx].Representative = SelectRepresentative(clusters[idx].Members, opts.PreferredPublishers)
	}
	return clusters
}

// SelectRepresentative picks the article that stands in for a cluster:
// preferred publisher first, then most recently published, ties broken by
// original order.
func SelectRepresentative(members []core.Article, preferred map[string]bool) core.Article {
	best := members[0]
	for _, candidate := range members[1:] {
		if better(candidate, best, preferred) {
			best = candidate
		}
	}
	return best
}

func better(candidate, current core.Article, preferred map[string]bool) bool {
	candPref := preferred[candidate.Publisher]
	currPref := preferred[current.Publisher]
	if candPref != currPref {
		return candPref
	}
	return candidate.PubDate.After(current.PubDate)
}

// MergeClusters is the second, aggressive pass: every pair of cluster
// representatives is compared at the looser merge threshold and matching
// clusters are folded together, the first cluster's representative winning.
// This catches clusters that initial clustering placed as neighbors but not
// components due to threshold granularity.
func MergeClusters(clusters []core.Cluster, mergeThreshold float64) []core.Cluster {
	if len(clusters) < 2 {
		return clusters
	}
	merged := make([]bool, len(clusters))
	var out []core.Cluster
	for i := 0; i < len(clusters); i++ {
		if merged[i] {
			continue
		}
		current := clusters[i]
		for j := i + 1; j < len(clusters); j++ {
			if merged[j] {
				continue
			}
			if similarity.Score(current.Representative, clusters[j].Representative) >= mergeThreshold {
				current.Members = append(current.Members, clusters[j].Members...)
				merged[j] = true
			}
		}
		out = append(out, current)
	}
	return out
}
