// Package domain defines core domain types, constants, and validation for the
// Carefind matching pipeline. It acts as the validation gate at pipeline entry points.
package domain

import "strings"

// HospitalRecord is the payload stored alongside each indexed point.
// CityExact is a lowercase copy of City used for exact keyword matching;
// UniqueKey is the dedup identity derived from name, city, and address.
type HospitalRecord struct {
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"`
	City      string `json:"city,omitempty"`
	CityExact string `json:"city_exact,omitempty"`
	UniqueKey string `json:"unique_key,omitempty"`
}

// UniqueKey derives the dedup identity for a hospital record.
func UniqueKey(name, city, address string) string {
	return strings.ToLower(name) + "|" + strings.ToLower(city) + "|" + strings.ToLower(address)
}

// Key returns the stored unique key, or reconstructs it for records that
// were ingested without one.
func (r HospitalRecord) Key() string {
	if r.UniqueKey != "" {
		return r.UniqueKey
	}
	return UniqueKey(r.Name, r.City, r.Address)
}

// Action is the structured intent produced by the classifier.
type Action string

const (
	ActionSearch     Action = "search"
	ActionConfirm    Action = "confirm"
	ActionOutOfScope Action = "out_of_scope"
)

// ValidActions is the set of recognised intent actions.
var ValidActions = map[Action]bool{
	ActionSearch: true, ActionConfirm: true, ActionOutOfScope: true,
}

// Intent is produced fresh per user turn and immediately consumed by the
// retrieval layer; it is never persisted.
type Intent struct {
	Action       Action `json:"action"`
	City         string `json:"city,omitempty"`
	HospitalName string `json:"hospital_name,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

// MatchSource records which retrieval strategy produced a candidate.
type MatchSource string

const (
	SourceSemantic MatchSource = "semantic"
	SourceFuzzy    MatchSource = "fuzzy"
)

// ScoredMatch is one ranked candidate. Component scores are already scaled
// by their weights; TotalScore is their sum. It is a heuristic confidence,
// not a probability.
type ScoredMatch struct {
	Record           HospitalRecord `json:"record"`
	NameScore        float64        `json:"name_score"`
	LocationScore    float64        `json:"location_score"`
	AddressScore     float64        `json:"address_score"`
	OverallNameScore float64        `json:"overall_name_score"`
	TotalScore       float64        `json:"total_score"`
	Source           MatchSource    `json:"source"`
}

// Role identifies the author of a transcript turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single entry in a session transcript.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}
