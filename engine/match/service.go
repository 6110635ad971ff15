// Package match orchestrates hospital retrieval: multi-variant hybrid search
// plus a fuzzy filter-only pass, merged, city-filtered, scored, and ranked.
package match

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/arogyalabs/carefind/engine/domain"
	"github.com/arogyalabs/carefind/engine/embed"
	"github.com/arogyalabs/carefind/engine/naming"
	"github.com/arogyalabs/carefind/engine/scoring"
	"github.com/arogyalabs/carefind/engine/semantic"
	"github.com/arogyalabs/carefind/pkg/fn"
)

// Searcher is the slice of the vector store the orchestrator needs.
type Searcher interface {
	SearchFiltered(ctx context.Context, embedding []float32, limit int, threshold float32, filter *semantic.Filter) ([]semantic.SearchResult, error)
	ScrollFiltered(ctx context.Context, filter *semantic.Filter, limit int) ([]semantic.SearchResult, error)
}

// Options tunes retrieval. The variant and fuzzy limits oversample on
// purpose so the scorer has enough candidates to rank.
type Options struct {
	VariantLimit   int
	FuzzyLimit     int
	MaxResults     int
	ScoreThreshold float32
	SearchTimeout  time.Duration
}

// DefaultOptions are the production retrieval settings.
var DefaultOptions = Options{
	VariantLimit:   15,
	FuzzyLimit:     20,
	MaxResults:     3,
	ScoreThreshold: 0.2,
	SearchTimeout:  10 * time.Second,
}

// Service runs the confirmation and search retrieval flows.
type Service struct {
	embedder embed.Embedder
	store    Searcher
	dec      *naming.Decomposer
	gaz      domain.Gazetteer
	opts     Options
	log      *slog.Logger
}

// New creates a retrieval service. Zero-valued option fields fall back to
// DefaultOptions.
func New(embedder embed.Embedder, store Searcher, gaz domain.Gazetteer, opts Options, log *slog.Logger) *Service {
	if opts.VariantLimit <= 0 {
		opts.VariantLimit = DefaultOptions.VariantLimit
	}
	if opts.FuzzyLimit <= 0 {
		opts.FuzzyLimit = DefaultOptions.FuzzyLimit
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultOptions.MaxResults
	}
	if opts.ScoreThreshold <= 0 {
		opts.ScoreThreshold = DefaultOptions.ScoreThreshold
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = DefaultOptions.SearchTimeout
	}
	return &Service{
		embedder: embedder,
		store:    store,
		dec:      naming.New(gaz),
		gaz:      gaz,
		opts:     opts,
		log:      log,
	}
}

type candidate struct {
	rec domain.HospitalRecord
	src domain.MatchSource
}

// cityDisjunction builds the optional city filter: exact keyword on
// city_exact, or the city as free text in city or address.
func cityDisjunction(city string) *semantic.Filter {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil
	}
	return semantic.AnyOf(
		semantic.Keyword("city_exact", strings.ToLower(city)),
		semantic.Text("city", city),
		semantic.Text("address", city),
	)
}

// queryVariants builds the three retrieval queries for a confirmation. The
// decomposed variant recombines main name and location terms; the city
// variant appends the city when one is known. Duplicates collapse.
func (s *Service) queryVariants(raw, mainName string, terms []string, city string) []string {
	variants := []string{raw}
	if decomposed := strings.TrimSpace(mainName + " " + strings.Join(terms, " ")); decomposed != "" {
		variants = append(variants, decomposed)
	}
	if city != "" {
		variants = append(variants, raw+" "+city)
	} else {
		variants = append(variants, raw)
	}
	return fn.Unique(variants)
}

// Confirm resolves a hospital mention to up to MaxResults ranked candidates.
// Retrieval failures degrade: a failed variant or fuzzy pass is logged and
// skipped, and a total failure yields an empty list, never an error.
func (s *Service) Confirm(ctx context.Context, hospitalName, city string) []domain.ScoredMatch {
	raw := strings.TrimSpace(hospitalName)
	if raw == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()

	mainName, terms := s.dec.Decompose(raw)
	variants := s.queryVariants(raw, mainName, terms, strings.TrimSpace(city))
	filter := cityDisjunction(city)

	// The variant embed+search round-trips are independent; fan out.
	searches := make([]func() []semantic.SearchResult, 0, len(variants))
	for _, q := range variants {
		q := q
		searches = append(searches, func() []semantic.SearchResult {
			return s.searchVariant(ctx, q, filter)
		})
	}
	variantResults := fn.FanOut(searches...)

	seen := make(map[string]bool)
	var merged []candidate
	add := func(rec domain.HospitalRecord, src domain.MatchSource) {
		key := rec.Key()
		if seen[key] {
			return
		}
		seen[key] = true
		merged = append(merged, candidate{rec: rec, src: src})
	}

	for _, results := range variantResults {
		for _, r := range results {
			add(r.Record, domain.SourceSemantic)
		}
	}
	for _, r := range s.fuzzyPass(ctx, raw) {
		add(r.Record, domain.SourceFuzzy)
	}

	merged = filterByCity(merged, city, s.gaz)

	records := make([]domain.HospitalRecord, len(merged))
	sources := make([]domain.MatchSource, len(merged))
	for i, c := range merged {
		records[i] = c.rec
		sources[i] = c.src
	}
	ranked := scoring.Rank(raw, mainName, terms, records, sources)
	if len(ranked) > s.opts.MaxResults {
		ranked = ranked[:s.opts.MaxResults]
	}
	return ranked
}

// searchVariant embeds one query variant and runs the hybrid search. Errors
// drop the variant's contribution.
func (s *Service) searchVariant(ctx context.Context, query string, filter *semantic.Filter) []semantic.SearchResult {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.log.Warn("variant embed failed", "query", query, "error", err)
		return nil
	}
	results, err := s.store.SearchFiltered(ctx, vec, s.opts.VariantLimit, 0, filter)
	if err != nil {
		s.log.Warn("variant search failed", "query", query, "error", err)
		return nil
	}
	return results
}

// fuzzyPass runs the filter-only text match of the raw name against name,
// address, and city. No vector signal is involved.
func (s *Service) fuzzyPass(ctx context.Context, raw string) []semantic.SearchResult {
	filter := semantic.AnyOf(
		semantic.Text("name", raw),
		semantic.Text("address", raw),
		semantic.Text("city", raw),
	)
	results, err := s.store.ScrollFiltered(ctx, filter, s.opts.FuzzyLimit)
	if err != nil {
		s.log.Warn("fuzzy pass failed", "query", raw, "error", err)
		return nil
	}
	return results
}

// SearchHit is one row of the city-listing flow. Score is the index's own
// similarity, not the confirmation scorer's.
type SearchHit struct {
	Name    string  `json:"name"`
	Address string  `json:"address,omitempty"`
	City    string  `json:"city,omitempty"`
	Score   float32 `json:"score"`
}

// Search lists hospitals for a city with a single synthetic-query hybrid
// search. No variant fan-out, no fuzzy fallback, no rescoring.
func (s *Service) Search(ctx context.Context, city string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = s.opts.MaxResults
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()

	city = strings.TrimSpace(city)
	query := "hospitals"
	if city != "" {
		query = "hospitals in " + city
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	results, err := s.store.SearchFiltered(ctx, vec, limit, s.opts.ScoreThreshold, cityDisjunction(city))
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		if r.Record.Name == "" {
			continue
		}
		hits = append(hits, SearchHit{
			Name:    r.Record.Name,
			Address: r.Record.Address,
			City:    r.Record.City,
			Score:   r.Score,
		})
	}
	return hits, nil
}
