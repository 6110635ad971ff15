// Package scoring computes the multi-factor match score between a decomposed
// hospital mention and a candidate record. Weights and thresholds are
// empirically tuned product constants; change them only with product input.
package scoring

import (
	"sort"
	"strings"

	"github.com/arogyalabs/carefind/engine/domain"
)

// Component weights. Fixed by design; never renormalized dynamically.
const (
	WeightName        = 0.4
	WeightLocation    = 0.35
	WeightAddress     = 0.15
	WeightOverallName = 0.1
)

// Confidence band thresholds on the total score.
const (
	ThresholdConfirmed = 0.7
	ThresholdTentative = 0.4
	ThresholdInclude   = 0.25
)

// Band classifies a total score into user-facing confidence levels.
type Band int

const (
	BandExcluded Band = iota
	BandSuggestion
	BandTentative
	BandConfirmed
)

func (b Band) String() string {
	switch b {
	case BandConfirmed:
		return "confirmed"
	case BandTentative:
		return "tentative"
	case BandSuggestion:
		return "suggestion"
	default:
		return "excluded"
	}
}

// BandOf returns the confidence band for a total score.
func BandOf(total float64) Band {
	switch {
	case total >= ThresholdConfirmed:
		return BandConfirmed
	case total >= ThresholdTentative:
		return BandTentative
	case total >= ThresholdInclude:
		return BandSuggestion
	default:
		return BandExcluded
	}
}

// Address-token stopwords; generic words that carry no address signal.
var stopwords = map[string]bool{
	"hospital": true, "medical": true, "center": true, "clinic": true,
	"the": true, "and": true, "of": true, "in": true, "at": true, "on": true,
}

// Score computes the weighted match between a query and one candidate.
// mainName is the decomposed identity; when empty the raw query stands in
// for it. Component fields are stored already scaled by their weights.
func Score(rawQuery, mainName string, locationTerms []string, rec domain.HospitalRecord, src domain.MatchSource) domain.ScoredMatch {
	name := mainName
	if strings.TrimSpace(name) == "" {
		name = rawQuery
	}

	m := domain.ScoredMatch{
		Record:           rec,
		NameScore:        WeightName * nameSimilarity(name, rec.Name),
		LocationScore:    WeightLocation * locationScore(locationTerms, rec),
		AddressScore:     WeightAddress * addressScore(rawQuery, rec.Address),
		OverallNameScore: WeightOverallName * nameSimilarity(rawQuery, rec.Name),
		Source:           src,
	}
	m.TotalScore = m.NameScore + m.LocationScore + m.AddressScore + m.OverallNameScore
	return m
}

// Rank scores every candidate, sorts descending by total score, and keeps
// those at or above the inclusion threshold.
func Rank(rawQuery, mainName string, locationTerms []string, candidates []domain.HospitalRecord, sources []domain.MatchSource) []domain.ScoredMatch {
	matches := make([]domain.ScoredMatch, 0, len(candidates))
	for i, rec := range candidates {
		src := domain.SourceSemantic
		if sources != nil {
			src = sources[i]
		}
		m := Score(rawQuery, mainName, locationTerms, rec, src)
		if m.TotalScore >= ThresholdInclude {
			matches = append(matches, m)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].TotalScore > matches[j].TotalScore
	})
	return matches
}

// nameSimilarity is a token-overlap similarity in [0,1]. Exact match wins,
// then substring containment, then containment-matched token overlap with a
// flat bonus for a solid (>=4 rune) token hit.
func nameSimilarity(query, candidate string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	c := strings.ToLower(strings.TrimSpace(candidate))
	if q == "" || c == "" {
		return 0
	}
	if q == c {
		return 1.0
	}
	if strings.Contains(q, c) || strings.Contains(c, q) {
		return 0.9
	}

	qTokens := strings.Fields(q)
	cTokens := strings.Fields(c)
	matched := 0
	bonus := false
	for _, qt := range qTokens {
		for _, ct := range cTokens {
			if strings.Contains(qt, ct) || strings.Contains(ct, qt) {
				matched++
				if len(qt) >= 4 {
					bonus = true
				}
				break
			}
		}
	}

	denom := len(qTokens)
	if len(cTokens) > denom {
		denom = len(cTokens)
	}
	score := float64(matched) / float64(denom)
	if bonus {
		score += 0.2
	}
	if score > 1 {
		score = 1
	}
	return score
}

// locationScore credits each extracted location term found in the candidate
// address or name; a hyphen/space-split sub-part (>=3 runes) earns half
// credit, first matching sub-part only. Result is the mean credit, capped
// at 1. No location terms means no location signal.
func locationScore(terms []string, rec domain.HospitalRecord) float64 {
	if len(terms) == 0 {
		return 0
	}
	addr := strings.ToLower(rec.Address)
	name := strings.ToLower(rec.Name)

	var credit float64
	for _, term := range terms {
		term = strings.ToLower(term)
		if strings.Contains(addr, term) || strings.Contains(name, term) {
			credit += 1.0
			continue
		}
		for _, part := range splitParts(term) {
			if len(part) < 3 {
				continue
			}
			if strings.Contains(addr, part) || strings.Contains(name, part) {
				credit += 0.5
				break
			}
		}
	}

	score := credit / float64(len(terms))
	if score > 1 {
		score = 1
	}
	return score
}

// addressScore is the fraction of meaningful raw-query tokens found as
// substrings of the candidate address.
func addressScore(rawQuery, address string) float64 {
	addr := strings.ToLower(address)
	var kept int
	var found int
	for _, tok := range strings.Fields(strings.ToLower(rawQuery)) {
		if len(tok) < 3 || stopwords[tok] {
			continue
		}
		kept++
		if strings.Contains(addr, tok) {
			found++
		}
	}
	if kept == 0 {
		return 0
	}
	return float64(found) / float64(kept)
}

func splitParts(term string) []string {
	return strings.FieldsFunc(term, func(r rune) bool {
		return r == '-' || r == ' '
	})
}
