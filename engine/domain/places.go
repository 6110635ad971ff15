package domain

import "strings"

// Gazetteer carries the locality and city-alias configuration used by name
// decomposition and city filtering. It is injected so new cities and
// localities don't require code changes.
type Gazetteer struct {
	// Localities are known neighbourhood/branch names, lowercase.
	Localities []string
	// CityAliases maps a canonical city spelling to its aliases, all lowercase.
	CityAliases map[string][]string
	// RoadSuffixes are generic road words recognised in "<word> <suffix>" phrases.
	RoadSuffixes []string
}

// DefaultGazetteer returns the built-in place configuration.
func DefaultGazetteer() Gazetteer {
	return Gazetteer{
		Localities: []string{
			"sarjapur", "whitefield", "indiranagar", "koramangala", "jayanagar",
			"malleshwaram", "hebbal", "yelahanka", "marathahalli", "banashankari",
			"basavanagudi", "rajajinagar", "electronic city", "hsr layout",
			"jp nagar", "bannerghatta",
			"andheri", "bandra", "borivali", "powai", "dadar", "thane", "mulund",
			"saket", "dwarka", "rohini", "karol bagh", "vasant kunj", "greater kailash",
			"anna nagar", "adyar", "velachery", "tambaram",
			"salt lake", "gariahat", "howrah",
		},
		CityAliases: map[string][]string{
			"bengaluru": {"bangalore", "banglore"},
			"mumbai":    {"bombay"},
			"new delhi": {"delhi"},
			"chennai":   {"madras"},
			"kolkata":   {"calcutta"},
			"pune":      {"poona"},
		},
		RoadSuffixes: []string{"road", "street", "cross", "layout", "nagar", "pura"},
	}
}

// AliasGroup returns every spelling equivalent to city (itself included),
// lowercase. Alias lookup is bidirectional: "bangalore" and "bengaluru"
// resolve to the same group.
func (g Gazetteer) AliasGroup(city string) []string {
	c := strings.ToLower(strings.TrimSpace(city))
	if c == "" {
		return nil
	}
	for canonical, aliases := range g.CityAliases {
		if c == canonical {
			return append([]string{canonical}, aliases...)
		}
		for _, a := range aliases {
			if c == a {
				return append([]string{canonical}, aliases...)
			}
		}
	}
	return []string{c}
}

// Canonical returns the canonical spelling for a city, or the trimmed
// lowercase input when no alias entry exists.
func (g Gazetteer) Canonical(city string) string {
	c := strings.ToLower(strings.TrimSpace(city))
	if c == "" {
		return ""
	}
	for canonical, aliases := range g.CityAliases {
		if c == canonical {
			return canonical
		}
		for _, a := range aliases {
			if c == a {
				return canonical
			}
		}
	}
	return c
}
