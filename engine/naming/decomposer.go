// Package naming splits a raw hospital mention into a main name (the brand
// identity) and a set of location terms (branch/locality qualifiers), so that
// identity and location can be scored independently. All functions are pure
// and deterministic.
package naming

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/arogyalabs/carefind/engine/domain"
	"github.com/arogyalabs/carefind/pkg/fn"
)

// Decomposer holds the compiled place configuration.
type Decomposer struct {
	gaz      domain.Gazetteer
	roadRe   *regexp.Regexp
	trailRe  *regexp.Regexp
	oldNewRe *regexp.Regexp
	kindRe   *regexp.Regexp
}

// New compiles a Decomposer from the given gazetteer.
func New(gaz domain.Gazetteer) *Decomposer {
	roadAlt := strings.Join(gaz.RoadSuffixes, "|")
	return &Decomposer{
		gaz:      gaz,
		roadRe:   regexp.MustCompile(`\b([a-z][a-z0-9]*)\s+(` + roadAlt + `)\b`),
		trailRe:  regexp.MustCompile(`[\s,]+[a-z0-9]+\s+(` + roadAlt + `)[\s.,]*$`),
		oldNewRe: regexp.MustCompile(`\b(old|new)\s+([a-z][a-z0-9]*)\b`),
		kindRe:   regexp.MustCompile(`[\s.,]*(hospitals?|clinics?|medical cent(?:er|re)s?)[\s.,]*$`),
	}
}

// Decompose extracts both parts of a mention in one pass.
func (d *Decomposer) Decompose(raw string) (main string, terms []string) {
	return d.MainName(raw), d.LocationTerms(raw)
}

// LocationTerms returns the union of gazetteer localities, "<word> <roadword>"
// phrases, and "{old|new} <word>" phrases found in the mention, lowercase and
// deduplicated.
func (d *Decomposer) LocationTerms(raw string) []string {
	lower := strings.ToLower(raw)
	var terms []string

	for _, loc := range d.gaz.Localities {
		if containsWord(lower, loc) {
			terms = append(terms, loc)
		}
	}
	for _, m := range d.roadRe.FindAllString(lower, -1) {
		terms = append(terms, m)
	}
	for _, m := range d.oldNewRe.FindAllString(lower, -1) {
		terms = append(terms, m)
	}
	return fn.Unique(terms)
}

// MainName strips recognised location qualifiers and generic hospital
// suffixes from the mention. It may legitimately return "" when the input is
// entirely a location phrase; callers fall back to the raw mention then.
// Applying MainName twice yields the same result as once.
func (d *Decomposer) MainName(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))

	// Cut the trailing clause starting at the earliest gazetteer locality.
	if idx := d.earliestLocality(s); idx >= 0 {
		s = s[:idx]
	}

	for {
		trimmed := d.trailRe.ReplaceAllString(s, "")
		if trimmed == s {
			break
		}
		s = trimmed
	}
	for {
		trimmed := d.kindRe.ReplaceAllString(s, "")
		if trimmed == s {
			break
		}
		s = trimmed
	}

	return strings.Trim(s, " \t.,-")
}

func (d *Decomposer) earliestLocality(s string) int {
	best := -1
	for _, loc := range d.gaz.Localities {
		if idx := indexWord(s, loc); idx >= 0 && (best < 0 || idx < best) {
			best = idx
		}
	}
	return best
}

// indexWord returns the index of needle in s when bounded by non-alphanumeric
// runes on both sides, or -1.
func indexWord(s, needle string) int {
	from := 0
	for {
		idx := strings.Index(s[from:], needle)
		if idx < 0 {
			return -1
		}
		idx += from
		end := idx + len(needle)
		if boundaryBefore(s, idx) && boundaryAfter(s, end) {
			return idx
		}
		from = idx + 1
	}
}

func containsWord(s, needle string) bool {
	return indexWord(s, needle) >= 0
}

func boundaryBefore(s string, idx int) bool {
	if idx == 0 {
		return true
	}
	r := rune(s[idx-1])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(s string, end int) bool {
	if end >= len(s) {
		return true
	}
	r := rune(s[end])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
