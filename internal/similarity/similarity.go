// Package similarity scores how likely two articles describe the same story.
// Headlines about one event vary wildly across outlets, so no single signal
// is reliable alone: the engine layers cheap high-precision short-circuits
// (conclusive titles, containment, shared verbatim quotes) before falling
// back to a weighted ensemble of eight signals. Scores are deterministic,
// symmetric, side-effect free and always in [0,1].
package similarity

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"newsdesk/internal/core"
)

// Thresholds and weights of the scoring ladder. Tuned for short news
// headlines; see Score for how they are applied.
const (
	titleConclusive     = 0.6
	containmentMin      = 0.7
	containmentDiscount = 0.9
	quoteMin            = 0.5
	quoteDiscount       = 0.95
	keywordStrongMin    = 0.5
	keywordDiscount     = 0.85
	descFallbackMin     = 0.5
	descDiscount        = 0.75
	weakTitleMax        = 0.3
	minQuoteLen         = 10
)

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true,
	"has": true, "have": true, "he": true, "her": true, "his": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"or": true, "say": true, "says": true, "said": true, "she": true,
	"that": true, "the": true, "their": true, "they": true, "this": true,
	"to": true, "was": true, "were": true, "will": true, "with": true,
	"after": true, "amid": true, "over": true, "under": true, "how": true,
	"what": true, "when": true, "where": true, "who": true, "why": true,
	"new": true, "news": true, "not": true, "no": true, "up": true,
}

// commonCapitalized filters capitalized words that are not entities.
var commonCapitalized = map[string]bool{
	"the": true, "a": true, "an": true, "this": true, "that": true,
	"new": true, "breaking": true, "exclusive": true, "live": true,
	"update": true, "updated": true, "watch": true, "video": true,
	"why": true, "how": true, "what": true, "when": true, "who": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
	"january": true, "february": true, "march": true, "april": true,
	"may": true, "june": true, "july": true, "august": true,
	"september": true, "october": true, "november": true, "december": true,
}

var (
	bracketRe  = regexp.MustCompile(`[\(\[\{][^\)\]\}]*[\)\]\}]`)
	numberRe   = regexp.MustCompile(`\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?%|[$£€]\d[\d,]*(?:\.\d+)?(?:\s?(?:bn|billion|m|million|k|trillion))?|\b\d+-\d+\b|\b\d{2,}\b`)
	quoteRe    = regexp.MustCompile(`["\x{201C}]([^"\x{201D}]+)["\x{201D}]|'([^']+)'|\x{2018}([^\x{2019}]+)\x{2019}`)
	locationRe = regexp.MustCompile(`\b(?:in|at|near)\s+([A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+){0,2})`)
	capWordRe  = regexp.MustCompile(`\b[A-Z][a-zA-Z]+\b`)
)

// Score computes the composite similarity between two articles from their
// titles, descriptions and publish timestamps. The ordered short-circuits
// mirror the scoring ladder documented on the package: each early return is
// a deliberate precision/recall tradeoff, not an optimization.
func Score(a, b core.Article) float64 {
	titleSim := titleSimilarity(a.Title, b.Title)
	if titleSim > titleConclusive {
		return clamp(titleSim)
	}

	cont := containment(a.Title, b.Title)
	if cont >= containmentMin {
		return clamp(max(titleSim, cont*containmentDiscount))
	}

	keywordSim := jaccard(extractKeywords(a.Title+" "+a.Description), extractKeywords(b.Title+" "+b.Description))
	numberSim := jaccard(extractNumbers(a.Title+" "+a.Description), extractNumbers(b.Title+" "+b.Description))

	quoteSim := jaccard(extractQuotes(a.Title+" "+a.Description), extractQuotes(b.Title+" "+b.Description))
	if quoteSim >= quoteMin {
		return clamp(max(titleSim, quoteSim*quoteDiscount))
	}

	if numberSim >= 0.5 && keywordSim >= 0.4 {
		return clamp((numberSim + keywordSim) / 2)
	}
	if keywordSim >= keywordStrongMin {
		return clamp(keywordSim * keywordDiscount)
	}

	descSim := jaccard(significantWords(a.Description), significantWords(b.Description))
	if titleSim < weakTitleMax && descSim > descFallbackMin {
		return clamp(descSim * descDiscount)
	}

	locationSim := jaccard(extractLocations(a.Title+" "+a.Description), extractLocations(b.Title+" "+b.Description))

	score := cont*0.25 +
		titleSim*0.20 +
		keywordSim*0.20 +
		numberSim*0.15 +
		quoteSim*0.10 +
		locationSim*0.05 +
		descSim*0.05

	if !a.PubDate.IsZero() && !b.PubDate.IsZero() {
		score *= temporalBoost(a.PubDate, b.PubDate)
	}

	return clamp(score)
}

// Tokens returns the significant word set of text: lowercased, stop words
// and words of length <= 2 removed. Used by cross-section dedup, which works
// on token overlap alone.
func Tokens(text string) map[string]bool {
	return significantWords(text)
}

// titleSimilarity blends word-level Jaccard (60%), character trigram Jaccard
// (25%) and normalized Levenshtein similarity (15%) over boilerplate-stripped
// titles.
func titleSimilarity(a, b string) float64 {
	cleanA, cleanB := cleanTitle(a), cleanTitle(b)
	wordsA, wordsB := significantWords(cleanA), significantWords(cleanB)

	word := jaccard(wordsA, wordsB)
	tri := jaccard(trigrams(cleanA), trigrams(cleanB))
	lev := levenshteinSimilarity(cleanA, cleanB)

	return word*0.6 + tri*0.25 + lev*0.15
}

// containment measures the fraction of the shorter title's significant words
// (length > 2) present in the longer title. Symmetric by construction.
func containment(a, b string) float64 {
	wordsA := significantWords(cleanTitle(a))
	wordsB := significantWords(cleanTitle(b))
	shorter, longer := wordsA, wordsB
	if len(wordsB) < len(wordsA) {
		shorter, longer = wordsB, wordsA
	}
	if len(shorter) == 0 {
		return 0
	}
	found := 0
	for w := range shorter {
		if longer[w] {
			found++
		}
	}
	return float64(found) / float64(len(shorter))
}

// cleanTitle strips bracketed segments, a trailing publisher segment after a
// dash or pipe separator, and lowercases.
func cleanTitle(title string) string {
	t := bracketRe.ReplaceAllString(title, " ")
	for _, sep := range []string{" - ", " | ", " — ", " – "} {
		if idx := strings.LastIndex(t, sep); idx > 0 {
			tail := t[idx+len(sep):]
			if len(strings.Fields(tail)) <= 4 {
				t = t[:idx]
			}
		}
	}
	return strings.ToLower(strings.TrimSpace(t))
}

// significantWords tokenizes, lowercases, drops stop words and words of
// length <= 2, and returns the word set.
func significantWords(text string) map[string]bool {
	words := map[string]bool{}
	for _, w := range tokenize(text) {
		if len(w) > 2 && !stopWords[w] {
			words[w] = true
		}
	}
	return words
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// extractKeywords pulls capitalized words (entity candidates) minus common
// sentence-starters, lowercased.
func extractKeywords(text string) map[string]bool {
	keywords := map[string]bool{}
	for _, w := range capWordRe.FindAllString(text, -1) {
		lower := strings.ToLower(w)
		if len(lower) > 2 && !commonCapitalized[lower] && !stopWords[lower] {
			keywords[lower] = true
		}
	}
	return keywords
}

// extractNumbers pulls numeric entities: comma-grouped numbers, percentages,
// prices, scores, and bare multi-digit numbers. Commas are stripped so that
// "1,200" and "1200" match.
func extractNumbers(text string) map[string]bool {
	numbers := map[string]bool{}
	for _, n := range numberRe.FindAllString(text, -1) {
		numbers[strings.ReplaceAll(strings.TrimSpace(n), ",", "")] = true
	}
	return numbers
}

// extractQuotes pulls quoted substrings of at least minQuoteLen characters,
// normalized to lowercase.
func extractQuotes(text string) map[string]bool {
	quotes := map[string]bool{}
	for _, m := range quoteRe.FindAllStringSubmatch(text, -1) {
		for _, group := range m[1:] {
			q := strings.TrimSpace(group)
			if len(q) >= minQuoteLen {
				quotes[strings.ToLower(q)] = true
			}
		}
	}
	return quotes
}

// extractLocations pulls "in/at/near <Capitalized>" phrases, lowercased.
func extractLocations(text string) map[string]bool {
	locations := map[string]bool{}
	for _, m := range locationRe.FindAllStringSubmatch(text, -1) {
		locations[strings.ToLower(m[1])] = true
	}
	return locations
}

// temporalBoost rewards articles published close together. Same story, same
// news cycle.
func temporalBoost(a, b time.Time) float64 {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff <= 2*time.Hour:
		return 1.15
	case diff <= 6*time.Hour:
		return 1.08
	case diff <= 24*time.Hour:
		return 1.0
	default:
		return 0.95
	}
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if b[k] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func trigrams(s string) map[string]bool {
	grams := map[string]bool{}
	runes := []rune(s)
	for i := 0; i+3 <= len(runes); i++ {
		grams[string(runes[i:i+3])] = true
	}
	return grams
}

// levenshteinSimilarity is 1 - editDistance/maxLen, over runes.
func levenshteinSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	return 1 - float64(prev[len(rb)])/float64(maxLen)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
