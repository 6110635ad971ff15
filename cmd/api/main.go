// Package main implements the Carefind API server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"

	"github.com/arogyalabs/carefind/engine/conversation"
	"github.com/arogyalabs/carefind/engine/domain"
	"github.com/arogyalabs/carefind/engine/embed"
	"github.com/arogyalabs/carefind/engine/intent"
	"github.com/arogyalabs/carefind/engine/match"
	"github.com/arogyalabs/carefind/engine/semantic"
	"github.com/arogyalabs/carefind/engine/session"
	"github.com/arogyalabs/carefind/engine/speech"
	"github.com/arogyalabs/carefind/pkg/fn"
	"github.com/arogyalabs/carefind/pkg/metrics"
	"github.com/arogyalabs/carefind/pkg/mid"
	"github.com/arogyalabs/carefind/pkg/resilience"
)

// Config holds all environment-based configuration.
type Config struct {
	Port          string
	QdrantURL     string
	Collection    string
	OpenAIKey     string
	ChatModel     string
	EmbedProvider string
	OllamaURL     string
	OllamaModel   string
	OllamaDims    int
	CORSOrigin    string
	SessionTTLMin int
	ClassifyRPS   float64
}

func loadConfig() Config {
	return Config{
		Port:          envOr("PORT", "8080"),
		QdrantURL:     envOr("QDRANT_URL", "localhost:6334"),
		Collection:    envOr("QDRANT_COLLECTION", "hospitals"),
		OpenAIKey:     envOr("OPENAI_API_KEY", ""),
		ChatModel:     envOr("CHAT_MODEL", ""),
		EmbedProvider: envOr("EMBED_PROVIDER", "openai"),
		OllamaURL:     envOr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:   envOr("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		OllamaDims:    envIntOr("OLLAMA_EMBED_DIMS", 768),
		CORSOrigin:    envOr("CORS_ORIGIN", "*"),
		SessionTTLMin: envIntOr("SESSION_TTL_MINUTES", 30),
		ClassifyRPS:   envFloatOr("CLASSIFY_RPS", 5),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func newEmbedder(cfg Config) embed.Embedder {
	var e embed.Embedder
	if cfg.EmbedProvider == "ollama" {
		e = embed.NewOllama(cfg.OllamaURL, cfg.OllamaModel, cfg.OllamaDims)
	} else {
		e = embed.NewOpenAI(cfg.OpenAIKey)
	}
	e = embed.WithRetry(e, fn.DefaultRetry)
	return embed.WithBreaker(e, resilience.NewBreaker(resilience.DefaultBreakerOpts))
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	vectorStore, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	embedder := newEmbedder(cfg)
	gaz := domain.DefaultGazetteer()
	reg := metrics.New()

	aiClient := openai.NewClient(cfg.OpenAIKey)
	classifier := intent.New(
		aiClient,
		cfg.ChatModel,
		gaz,
		resilience.NewLimiter(cfg.ClassifyRPS, int(cfg.ClassifyRPS)+1),
		logger,
	)
	synth := speech.New(aiClient)

	matcher := match.New(embedder, vectorStore, gaz, match.DefaultOptions, logger)
	sessions := session.New(time.Duration(cfg.SessionTTLMin) * time.Minute)
	convo := conversation.New(classifier, matcher, sessions, reg, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	turnLimiter := resilience.NewLimiter(cfg.ClassifyRPS, int(cfg.ClassifyRPS)+1)
	mux.Handle("POST /api/turn", mid.Chain(
		handleTurn(convo, synth, logger),
		mid.RateLimit(turnLimiter),
		mid.MaxBody(1<<20),
	))
	mux.HandleFunc("POST /api/confirm", handleConfirm(matcher, logger))
	mux.HandleFunc("POST /api/search", handleSearch(matcher, logger))
	mux.Handle("GET /metrics", reg.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("carefind-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// TurnRequest is the JSON body for POST /api/turn.
type TurnRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Voice     bool   `json:"voice,omitempty"`
}

// TurnResponse is the JSON response for POST /api/turn.
type TurnResponse struct {
	conversation.Reply
	Audio []byte `json:"audio,omitempty"`
}

func handleTurn(convo *conversation.Service, synth *speech.Synthesizer, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TurnRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if req.SessionID == "" || req.Text == "" {
			http.Error(w, "session_id and text are required", http.StatusBadRequest)
			return
		}

		reply := convo.HandleTurn(r.Context(), req.SessionID, req.Text)
		resp := TurnResponse{Reply: reply}
		if req.Voice {
			audio, err := synth.Synthesize(r.Context(), reply.Text)
			if err != nil {
				logger.Warn("tts failed, returning text only", "error", err)
			} else {
				resp.Audio = audio
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ConfirmRequest is the JSON body for POST /api/confirm.
type ConfirmRequest struct {
	HospitalName string `json:"hospital_name"`
	City         string `json:"city,omitempty"`
}

// ConfirmResponse is the JSON response for POST /api/confirm.
type ConfirmResponse struct {
	Matches []domain.ScoredMatch `json:"matches"`
}

func handleConfirm(matcher *match.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ConfirmRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if req.HospitalName == "" {
			http.Error(w, "hospital_name is required", http.StatusBadRequest)
			return
		}
		in := domain.Intent{Action: domain.ActionConfirm, HospitalName: req.HospitalName, City: req.City}
		if err := domain.ValidateIntent(in); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		matches := matcher.Confirm(r.Context(), in.HospitalName, in.City)
		if matches == nil {
			matches = []domain.ScoredMatch{}
		}
		writeJSON(w, http.StatusOK, ConfirmResponse{Matches: matches})
	}
}

// SearchRequest is the JSON body for POST /api/search.
type SearchRequest struct {
	City  string `json:"city,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// SearchResponse is the JSON response for POST /api/search.
type SearchResponse struct {
	Hits []match.SearchHit `json:"hits"`
}

func handleSearch(matcher *match.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		in := domain.Intent{Action: domain.ActionSearch, City: req.City, Limit: req.Limit}
		if err := domain.ValidateIntent(in); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		hits, err := matcher.Search(r.Context(), in.City, in.Limit)
		if err != nil {
			logger.Error("search failed", "city", req.City, "error", err)
			http.Error(w, "search unavailable", http.StatusBadGateway)
			return
		}
		if hits == nil {
			hits = []match.SearchHit{}
		}
		writeJSON(w, http.StatusOK, SearchResponse{Hits: hits})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
