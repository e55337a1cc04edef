package sections

import (
	"strings"
	"testing"
)

func TestParseToken(t *testing.T) {
	cases := []struct {
		input   string
		want    Key
		wantErr bool
	}{
		{"politics", Politics, false},
		{"Politics", Politics, false},
		{" sports ", Sport, false},
		{"world-news", International, false},
		{"tech!", Tech, false},
		{"wild card", WildCard, false},
		{"economy", Business, false},
		{"astrology", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := ParseToken(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseToken(%q) expected error, got %q", tc.input, got)
			} else if !strings.Contains(err.Error(), "allowed topics") {
				t.Errorf("ParseToken(%q) error should list allowed topics: %v", tc.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseToken(%q): %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseToken(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestResolve_Order(t *testing.T) {
	// The explicit topic wins over hints and slug.
	if k, ok := Resolve("politics", []string{"sport"}, "tech"); !ok || k != Politics {
		t.Errorf("topic should win, got %q/%v", k, ok)
	}
	// Hints win over slug when the topic is unparseable.
	if k, ok := Resolve("bbc-feed", []string{"sport"}, "tech"); !ok || k != Sport {
		t.Errorf("hint should win over slug, got %q/%v", k, ok)
	}
	// Slug is the last resort.
	if k, ok := Resolve("bbc-feed", nil, "tech"); !ok || k != Tech {
		t.Errorf("slug should resolve, got %q/%v", k, ok)
	}
	if _, ok := Resolve("bbc-feed", []string{"puzzles"}, "daily-roundup"); ok {
		t.Error("nothing resolvable should return false")
	}
}

func TestResolveHints(t *testing.T) {
	keys := ResolveHints([]string{"sport", "sports", "finance", "puzzles"})
	if len(keys) != 2 || keys[0] != Sport || keys[1] != Business {
		t.Errorf("ResolveHints = %v, want [sport business]", keys)
	}
	if got := ResolveHints(nil); got != nil {
		t.Errorf("no hints should resolve to nothing, got %v", got)
	}
}

func TestLimit(t *testing.T) {
	if got := Limit(Politics); got != 6 {
		t.Errorf("Limit(politics) = %d, want 6", got)
	}
	if got := Limit(Key("unknown")); got != 1 {
		t.Errorf("Limit(unknown) = %d, want minimum 1", got)
	}
}

func TestAllKeysValidAndLimited(t *testing.T) {
	for _, k := range All() {
		if !k.IsValid() {
			t.Errorf("key %q should be valid", k)
		}
		if Limit(k) < 1 {
			t.Errorf("key %q has no usable limit", k)
		}
	}
	if Key("horoscopes").IsValid() {
		t.Error("unknown key should be invalid")
	}
}

func TestKeywordPattern(t *testing.T) {
	if p := KeywordPattern(Sport); p == nil || !p.MatchString("Late goal seals the cup final") {
		t.Error("sport pattern should match match-report language")
	}
	if p := KeywordPattern(Business); p.MatchString("Museum opens new sculpture wing") {
		t.Error("business pattern should not match culture copy")
	}
}
