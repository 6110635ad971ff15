package semantic

import "github.com/arogyalabs/carefind/engine/domain"

// SearchResult represents a single index hit. Score is the index's cosine
// similarity for hybrid search and 0 for filter-only retrieval.
type SearchResult struct {
	ID     string                `json:"id"`
	Score  float32               `json:"score"`
	Record domain.HospitalRecord `json:"record"`
}

// VectorRecord represents a single point to store in Qdrant.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Record    domain.HospitalRecord
}
