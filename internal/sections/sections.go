// Package sections defines the closed newsletter section vocabulary: the
// section keys, per-key article limits, the hint and free-text token tables
// used to resolve caller input, and the keyword patterns used by the
// heuristic ranking fallback. Unknown keys are a boundary concern only;
// inside the engine a Key is always one of the constants below.
package sections

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Key identifies one newsletter section.
type Key string

const (
	Commentaries  Key = "commentaries"
	International Key = "international"
	Politics      Key = "politics"
	Business      Key = "business"
	Tech          Key = "tech"
	Sport         Key = "sport"
	Culture       Key = "culture"
	Entertainment Key = "entertainment"
	Science       Key = "science"
	Lifestyle     Key = "lifestyle"
	WildCard      Key = "wildCard"
)

// All lists every section key in newsletter display order.
func All() []Key {
	return []Key{
		Commentaries,
		International,
		Politics,
		Business,
		Tech,
		Sport,
		Culture,
		Entertainment,
		Science,
		Lifestyle,
		WildCard,
	}
}

// IsValid reports whether k is one of the closed section keys.
func (k Key) IsValid() bool {
	switch k {
	case Commentaries, International, Politics, Business, Tech, Sport,
		Culture, Entertainment, Science, Lifestyle, WildCard:
		return true
	}
	return false
}

func (k Key) String() string { return string(k) }

// limits caps how many primary candidates are fetched per section.
var limits = map[Key]int{
	Commentaries:  3,
	International: 6,
	Politics:      6,
	Business:      5,
	Tech:          5,
	Sport:         4,
	Culture:       3,
	Entertainment: 3,
	Science:       3,
	Lifestyle:     3,
	WildCard:      4,
}

// Limit returns the default candidate limit for a section (minimum 1).
func Limit(k Key) int {
	if n, ok := limits[k]; ok && n > 0 {
		return n
	}
	return 1
}

// hintTable maps feed-supplied section hints onto keys. Hints are matched
// case-insensitively after trimming.
var hintTable = map[string]Key{
	"commentaries":  Commentaries,
	"commentary":    Commentaries,
	"opinion":       Commentaries,
	"editorial":     Commentaries,
	"international": International,
	"world":         International,
	"global":        International,
	"politics":      Politics,
	"political":     Politics,
	"election":      Politics,
	"business":      Business,
	"economy":       Business,
	"finance":       Business,
	"markets":       Business,
	"money":         Business,
	"tech":          Tech,
	"technology":    Tech,
	"sport":         Sport,
	"sports":        Sport,
	"culture":       Culture,
	"arts":          Culture,
	"books":         Culture,
	"entertainment": Entertainment,
	"celebrity":     Entertainment,
	"showbiz":       Entertainment,
	"film":          Entertainment,
	"tv":            Entertainment,
	"science":       Science,
	"health":        Science,
	"environment":   Science,
	"climate":       Science,
	"lifestyle":     Lifestyle,
	"travel":        Lifestyle,
	"food":          Lifestyle,
	"fashion":       Lifestyle,
	"wildcard":      WildCard,
	"misc":          WildCard,
	"other":         WildCard,
}

// FromHint resolves a single feed hint to a section key.
func FromHint(hint string) (Key, bool) {
	k, ok := hintTable[strings.ToLower(strings.TrimSpace(hint))]
	return k, ok
}

// ResolveHints maps a hint list onto the distinct section keys it names,
// preserving first-seen order.
func ResolveHints(hints []string) []Key {
	var keys []Key
	seen := map[Key]bool{}
	for _, h := range hints {
		if k, ok := FromHint(h); ok && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

// tokenTable resolves sanitized free-text topic input (letters only,
// lowercased) to a key. It is a superset of the hint table spellings.
var tokenTable = map[string]Key{
	"commentaries":  Commentaries,
	"commentary":    Commentaries,
	"opinion":       Commentaries,
	"opinions":      Commentaries,
	"international": International,
	"world":         International,
	"worldnews":     International,
	"foreign":       International,
	"politics":      Politics,
	"politic":       Politics,
	"political":     Politics,
	"business":      Business,
	"economy":       Business,
	"economic":      Business,
	"finance":       Business,
	"financial":     Business,
	"markets":       Business,
	"tech":          Tech,
	"technology":    Tech,
	"sport":         Sport,
	"sports":        Sport,
	"culture":       Culture,
	"cultural":      Culture,
	"arts":          Culture,
	"art":           Culture,
	"entertainment": Entertainment,
	"celebrity":     Entertainment,
	"showbiz":       Entertainment,
	"science":       Science,
	"scientific":    Science,
	"health":        Science,
	"lifestyle":     Lifestyle,
	"living":        Lifestyle,
	"wildcard":      WildCard,
	"wild":          WildCard,
	"misc":          WildCard,
}

var nonLetters = regexp.MustCompile(`[^a-zA-Z]+`)

// ParseToken sanitizes free-text topic input (strips non-letters, lowercases)
// and resolves it against the token table. Unmatched input returns an error
// listing the allowed tokens.
func ParseToken(input string) (Key, error) {
	sanitized := strings.ToLower(nonLetters.ReplaceAllString(input, ""))
	if k, ok := tokenTable[sanitized]; ok {
		return k, nil
	}
	return "", fmt.Errorf("unknown topic %q: allowed topics are %s", input, strings.Join(allowedTokens(), ", "))
}

func allowedTokens() []string {
	tokens := make([]string, 0, len(tokenTable))
	for t := range tokenTable {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return tokens
}

// Resolve maps an article group onto a section key using the fixed
// resolution order: explicit topic match, then section-hint match, then slug
// match. It returns false when nothing resolves.
func Resolve(topic string, hints []string, slug string) (Key, bool) {
	if k, err := ParseToken(topic); err == nil {
		return k, true
	}
	for _, h := range hints {
		if k, ok := FromHint(h); ok {
			return k, true
		}
	}
	if slug != "" {
		if k, err := ParseToken(slug); err == nil {
			return k, true
		}
	}
	return "", false
}

// keywordPatterns backs the heuristic fallback ranker: per-section patterns
// matched against title and description when the oracle is unavailable.
var keywordPatterns = map[Key]*regexp.Regexp{
	Commentaries:  regexp.MustCompile(`(?i)\b(opinion|op-ed|analysis|column|editorial|comment|view)\b`),
	International: regexp.MustCompile(`(?i)\b(UN|NATO|EU|embassy|border|treaty|foreign|war|ceasefire|summit|sanctions)\b`),
	Politics:      regexp.MustCompile(`(?i)\b(parliament|congress|senate|minister|president|election|vote|bill|policy|government|party)\b`),
	Business:      regexp.MustCompile(`(?i)\b(market|stocks?|shares?|earnings|profit|revenue|merger|acquisition|inflation|economy|bank|IPO)\b`),
	Tech:          regexp.MustCompile(`(?i)\b(AI|software|startup|app|chip|cyber|data|cloud|robot|smartphone|silicon)\b`),
	Sport:         regexp.MustCompile(`(?i)\b(match|league|cup|championship|goal|coach|tournament|olympic|player|season|final)\b`),
	Culture:       regexp.MustCompile(`(?i)\b(museum|exhibition|novel|author|theatre|theater|gallery|festival|heritage|poetry)\b`),
	Entertainment: regexp.MustCompile(`(?i)\b(film|movie|series|album|singer|actor|actress|premiere|box office|streaming|celebrity)\b`),
	Science:       regexp.MustCompile(`(?i)\b(study|research|scientists?|vaccine|species|climate|NASA|telescope|genome|trial)\b`),
	Lifestyle:     regexp.MustCompile(`(?i)\b(recipe|travel|wellness|fitness|fashion|home|diet|holiday|garden)\b`),
	WildCard:      regexp.MustCompile(`(?i)\b(unusual|bizarre|viral|surprising|rare|record-breaking)\b`),
}

// KeywordPattern returns the fallback keyword pattern for a section, or nil
// when the section has none.
func KeywordPattern(k Key) *regexp.Regexp {
	return keywordPatterns[k]
}
