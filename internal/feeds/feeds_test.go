package feeds

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"newsdesk/internal/config"
)

func rssBody(items string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>Example Wire</title>
<link>https://example.com</link>
<description>Example feed</description>
` + items + `
</channel></rss>`
}

func rssItem(title, link string, published time.Time, categories ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<item><title>%s</title><link>%s</link>", title, link)
	fmt.Fprintf(&b, "<description>&lt;p&gt;About %s.&lt;/p&gt;</description>", title)
	fmt.Fprintf(&b, "<pubDate>%s</pubDate>", published.Format(time.RFC1123Z))
	for _, c := range categories {
		fmt.Fprintf(&b, "<category>%s</category>", c)
	}
	b.WriteString("</item>")
	return b.String()
}

func serveRSS(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchAll(t *testing.T) {
	now := time.Now()
	srv := serveRSS(t, rssBody(
		rssItem("Fresh story breaks", "https://example.com/fresh", now.Add(-time.Hour), "politics")+
			rssItem("Stale story fades", "https://example.com/stale", now.Add(-48*time.Hour)),
	))

	f := NewFetcher(24 * time.Hour)
	groups, err := f.FetchAll(context.Background(), []config.Feed{
		{URL: srv.URL, Topic: "politics", Publisher: "Example Wire", SectionHints: []string{"politics"}},
	})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(groups) != 1 || groups[0].Topic != "politics" {
		t.Fatalf("groups = %+v", groups)
	}
	articles := groups[0].Articles
	if len(articles) != 1 {
		t.Fatalf("expected the stale item filtered out, got %d articles", len(articles))
	}

	a := articles[0]
	if a.Title != "Fresh story breaks" || a.Link != "https://example.com/fresh" {
		t.Errorf("article = %+v", a)
	}
	if a.Publisher != "Example Wire" {
		t.Errorf("publisher = %q", a.Publisher)
	}
	if a.Slug != "fresh-story-breaks" {
		t.Errorf("slug = %q", a.Slug)
	}
	if a.Description != "About Fresh story breaks." {
		t.Errorf("description should be HTML-stripped, got %q", a.Description)
	}
	// Source hints come first, item categories after.
	if len(a.SectionHints) != 2 || a.SectionHints[0] != "politics" || a.SectionHints[1] != "politics" {
		t.Errorf("hints = %v", a.SectionHints)
	}
}

func TestFetchAll_PartialFailure(t *testing.T) {
	srv := serveRSS(t, rssBody(rssItem("Only story", "https://example.com/only", time.Now())))
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(bad.Close)

	f := NewFetcher(0)
	groups, err := f.FetchAll(context.Background(), []config.Feed{
		{URL: bad.URL, Topic: "sport"},
		{URL: srv.URL, Topic: "politics"},
	})
	if err != nil {
		t.Fatalf("one healthy feed should be enough: %v", err)
	}
	if len(groups) != 1 || groups[0].Topic != "politics" {
		t.Errorf("groups = %+v", groups)
	}
}

func TestFetchAll_AllFail(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(bad.Close)

	f := NewFetcher(0)
	if _, err := f.FetchAll(context.Background(), []config.Feed{{URL: bad.URL, Topic: "sport"}}); err == nil {
		t.Error("expected an error when every feed fails")
	}
	if _, err := f.FetchAll(context.Background(), nil); err == nil {
		t.Error("expected an error with no feeds configured")
	}
}

func TestFetchAll_FeedTitleAsPublisher(t *testing.T) {
	srv := serveRSS(t, rssBody(rssItem("Untagged story", "https://example.com/u", time.Now())))

	f := NewFetcher(0)
	groups, err := f.FetchAll(context.Background(), []config.Feed{{URL: srv.URL, Topic: "news"}})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if got := groups[0].Articles[0].Publisher; got != "Example Wire" {
		t.Errorf("publisher should default to the feed title, got %q", got)
	}
}

func TestStripHTML(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"<p>Hello <b>world</b></p>", "Hello world"},
		{"plain text stays", "plain text stays"},
		{"  <div>\n  spaced\n  out  </div> ", "spaced out"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := StripHTML(tc.in); got != tc.want {
			t.Errorf("StripHTML(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Breaking: Markets Rally!", "breaking-markets-rally"},
		{"  Trim   me  ", "trim-me"},
		{"already-slugged", "already-slugged"},
		{strings.Repeat("long ", 30), strings.Trim(strings.Repeat("long-", 16), "-")},
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
	if got := Slugify(strings.Repeat("a", 100)); len(got) > 80 {
		t.Errorf("slug length = %d, want <= 80", len(got))
	}
}
