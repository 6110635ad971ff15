package match

import (
	"strings"

	"github.com/arogyalabs/carefind/engine/domain"
)

// cityMatches reports whether a candidate belongs to the query city. A
// candidate passes on an exact city match, on substring containment in
// either direction against its city or address, or when any known alias of
// the query city appears in the candidate's city or address.
func cityMatches(rec domain.HospitalRecord, city string, gaz domain.Gazetteer) bool {
	q := strings.ToLower(strings.TrimSpace(city))
	if q == "" {
		return true
	}
	recCity := strings.ToLower(rec.City)
	recAddr := strings.ToLower(rec.Address)

	if recCity == q {
		return true
	}
	if recCity != "" && (strings.Contains(recCity, q) || strings.Contains(q, recCity)) {
		return true
	}
	if recAddr != "" && (strings.Contains(recAddr, q) || strings.Contains(q, recAddr)) {
		return true
	}
	for _, alias := range gaz.AliasGroup(q) {
		if alias == q {
			continue
		}
		if strings.Contains(recCity, alias) || strings.Contains(recAddr, alias) {
			return true
		}
	}
	return false
}

// filterByCity keeps candidates that belong to the query city. An empty city
// passes everything through unchanged.
func filterByCity(candidates []candidate, city string, gaz domain.Gazetteer) []candidate {
	if strings.TrimSpace(city) == "" {
		return candidates
	}
	out := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		if cityMatches(c.rec, city, gaz) {
			out = append(out, c)
		}
	}
	return out
}
