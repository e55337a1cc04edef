package clustering

import (
	"testing"
	"time"

	"newsdesk/internal/core"
)

func mkArticle(title, publisher string, age time.Duration) core.Article {
	return core.Article{
		Title:     title,
		Link:      "https://example.com/" + publisher + "/" + title,
		Publisher: publisher,
		PubDate:   time.Now().Add(-age),
	}
}

func TestCluster_Empty(t *testing.T) {
	if clusters := Cluster(nil, DefaultOptions()); clusters != nil {
		t.Errorf("empty input should yield no clusters, got %d", len(clusters))
	}
}

func TestCluster_SingletonIsValid(t *testing.T) {
	a := mkArticle("Completely unique story about quantum biology", "wire", time.Hour)
	clusters := Cluster([]core.Article{a}, DefaultOptions())
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	if len(clusters[0].Members) != 1 || clusters[0].Representative.Title != a.Title {
		t.Error("singleton cluster should contain and represent its sole member")
	}
}

func TestCluster_Coverage(t *testing.T) {
	articles := []core.Article{
		mkArticle("Trump wins election in landslide victory", "ap", time.Hour),
		mkArticle("Trump wins", "reuters", 2*time.Hour),
		mkArticle("Senate passes budget bill after marathon session", "ap", time.Hour),
		mkArticle("Local bakery wins baking award", "gazette", 3*time.Hour),
		mkArticle("Election landslide: Trump declared winner", "bbc", time.Hour),
	}
	clusters := Cluster(articles, DefaultOptions())

	counts := map[string]int{}
	for _, c := range clusters {
		if len(c.Members) == 0 {
			t.Fatal("cluster with no members")
		}
		for _, m := range c.Members {
			counts[m.Link]++
		}
	}
	for _, a := range articles {
		if counts[a.Link] != 1 {
			t.Errorf("article %q appears %d times across clusters, want exactly 1", a.Title, counts[a.Link])
		}
	}
}

func TestCluster_ContainmentPairSameCluster(t *testing.T) {
	a := mkArticle("Trump wins", "reuters", time.Hour)
	b := mkArticle("Trump wins election in landslide victory", "ap", time.Hour)
	clusters := Cluster([]core.Article{a, b}, DefaultOptions())
	if len(clusters) != 1 {
		t.Fatalf("containment pair should cluster together at default threshold, got %d clusters", len(clusters))
	}
	if len(clusters[0].Members) != 2 {
		t.Errorf("expected both articles in one cluster, got %d members", len(clusters[0].Members))
	}
}

func TestCluster_ChainedComponents(t *testing.T) {
	// a~b and b~c should land in one cluster even if a and c alone are a
	// weaker match: connected components capture chained similarity.
	a := mkArticle("Trump wins", "reuters", time.Hour)
	b := mkArticle("Trump wins election in landslide victory", "ap", time.Hour)
	c := mkArticle("Trump wins election", "bbc", time.Hour)
	clusters := Cluster([]core.Article{a, b, c}, DefaultOptions())
	if len(clusters) != 1 {
		t.Fatalf("chained matches should form one component, got %d clusters", len(clusters))
	}
	if len(clusters[0].Members) != 3 {
		t.Errorf("expected 3 members, got %d", len(clusters[0].Members))
	}
}

func TestSelectRepresentative_PreferredPublisher(t *testing.T) {
	members := []core.Article{
		mkArticle("Story", "tabloid", 1*time.Hour),
		mkArticle("Story", "reuters", 5*time.Hour),
		mkArticle("Story", "blog", 2*time.Hour),
	}
	rep := SelectRepresentative(members, map[string]bool{"reuters": true})
	if rep.Publisher != "reuters" {
		t.Errorf("expected preferred publisher, got %q", rep.Publisher)
	}
}

func TestSelectRepresentative_NewestWins(t *testing.T) {
	members := []core.Article{
		mkArticle("Story", "a", 5*time.Hour),
		mkArticle("Story", "b", 1*time.Hour),
		mkArticle("Story", "c", 3*time.Hour),
	}
	rep := SelectRepresentative(members, nil)
	if rep.Publisher != "b" {
		t.Errorf("expected newest article as representative, got %q", rep.Publisher)
	}
}

func TestSelectRepresentative_TieKeepsOriginalOrder(t *testing.T) {
	ts := time.Now()
	members := []core.Article{
		{Title: "Story", Publisher: "first", PubDate: ts},
		{Title: "Story", Publisher: "second", PubDate: ts},
	}
	rep := SelectRepresentative(members, nil)
	if rep.Publisher != "first" {
		t.Errorf("equal candidates should keep original order, got %q", rep.Publisher)
	}
}

func TestMergeClusters(t *testing.T) {
	a := mkArticle("Government announces major tax reform package", "ap", time.Hour)
	b := mkArticle("Major tax reform package announced by government", "bbc", time.Hour)
	clusters := []core.Cluster{
		{Representative: a, Members: []core.Article{a}, AvgSimilarity: 1},
		{Representative: b, Members: []core.Article{b}, AvgSimilarity: 1},
	}
	merged := MergeClusters(clusters, 0.45)
	if len(merged) != 1 {
		t.Fatalf("near-duplicate representatives should merge, got %d clusters", len(merged))
	}
	if merged[0].Representative.Publisher != "ap" {
		t.Errorf("first cluster's representative should win, got %q", merged[0].Representative.Publisher)
	}
	if len(merged[0].Members) != 2 {
		t.Errorf("merged cluster should hold both member lists, got %d", len(merged[0].Members))
	}
}

func TestMergeClusters_UnrelatedStayApart(t *testing.T) {
	a := mkArticle("Local bakery wins baking award", "gazette", time.Hour)
	b := mkArticle("Senate passes budget bill", "ap", time.Hour)
	clusters := []core.Cluster{
		{Representative: a, Members: []core.Article{a}},
		{Representative: b, Members: []core.Article{b}},
	}
	if merged := MergeClusters(clusters, 0.45); len(merged) != 2 {
		t.Errorf("unrelated clusters should not merge, got %d", len(merged))
	}
}

func TestGreedyCluster_RespectsMaxClusterSize(t *testing.T) {
	var articles []core.Article
	for i := 0; i < 5; i++ {
		articles = append(articles, mkArticle("Trump wins election in landslide victory", "pub", time.Duration(i)*time.Minute))
	}
	opts := DefaultOptions()
	opts.Greedy = true
	opts.MaxClusterSize = 2
	clusters := Cluster(articles, opts)
	for _, c := range clusters {
		if len(c.Members) > 2 {
			t.Errorf("greedy path must honor MaxClusterSize, got %d members", len(c.Members))
		}
	}
}

func TestGraphPath_DoesNotBoundClusterSize(t *testing.T) {
	// Known boundary: the component path deliberately ignores
	// MaxClusterSize; the threshold is assumed to self-limit growth.
	var articles []core.Article
	for i := 0; i < 5; i++ {
		articles = append(articles, mkArticle("Trump wins election in landslide victory", "pub", time.Duration(i)*time.Minute))
	}
	opts := DefaultOptions()
	opts.MaxClusterSize = 2
	clusters := Cluster(articles, opts)
	if len(clusters) != 1 || len(clusters[0].Members) != 5 {
		t.Errorf("graph path should form one unbounded component, got %d clusters", len(clusters))
	}
}
