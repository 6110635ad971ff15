// Package main runs the Carefind ingestion worker: it ensures the vector
// collection exists, consumes hospital records from NATS, and optionally
// seeds the stream from a CSV file.
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/arogyalabs/carefind/engine/domain"
	"github.com/arogyalabs/carefind/engine/embed"
	"github.com/arogyalabs/carefind/engine/ingest"
	"github.com/arogyalabs/carefind/engine/semantic"
	"github.com/arogyalabs/carefind/pkg/fn"
	"github.com/arogyalabs/carefind/pkg/natsutil"
	"github.com/arogyalabs/carefind/pkg/resilience"
)

// Config holds all environment-based configuration.
type Config struct {
	NATSURL       string
	QdrantURL     string
	Collection    string
	OpenAIKey     string
	EmbedProvider string
	OllamaURL     string
	OllamaModel   string
	OllamaDims    int
	CSVPath       string
}

func loadConfig() Config {
	return Config{
		NATSURL:       envOr("NATS_URL", nats.DefaultURL),
		QdrantURL:     envOr("QDRANT_URL", "localhost:6334"),
		Collection:    envOr("QDRANT_COLLECTION", "hospitals"),
		OpenAIKey:     envOr("OPENAI_API_KEY", ""),
		EmbedProvider: envOr("EMBED_PROVIDER", "openai"),
		OllamaURL:     envOr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:   envOr("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		OllamaDims:    envIntOr("OLLAMA_EMBED_DIMS", 768),
		CSVPath:       envOr("HOSPITALS_CSV", ""),
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
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(loadConfig(), logger); err != nil {
		logger.Error("ingest worker exited with error", "err", err)
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

	var embedder embed.Embedder
	if cfg.EmbedProvider == "ollama" {
		embedder = embed.NewOllama(cfg.OllamaURL, cfg.OllamaModel, cfg.OllamaDims)
	} else {
		embedder = embed.NewOpenAI(cfg.OpenAIKey)
	}
	embedder = embed.WithRetry(embedder, fn.DefaultRetry)
	embedder = embed.WithBreaker(embedder, resilience.NewBreaker(resilience.DefaultBreakerOpts))

	if err := vectorStore.EnsureCollection(ctx, embedder.Dimensions()); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	sub, err := ingest.StartConsumer(nc, ingest.Deps{
		Embedder: embedder,
		Store:    vectorStore,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer sub.Unsubscribe()

	if cfg.CSVPath != "" {
		if err := publishCSV(ctx, nc, cfg.CSVPath, logger); err != nil {
			return fmt.Errorf("seed from csv: %w", err)
		}
	}

	logger.Info("ingest worker running", "subject", ingest.IngestSubject)
	<-ctx.Done()
	logger.Info("shutdown signal received")
	return nil
}

// publishCSV reads a hospital CSV (name, address, city columns, header row
// required) and publishes one record per row.
func publishCSV(ctx context.Context, nc *nats.Conn, path string, logger *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	nameIdx, ok := col["name"]
	if !ok {
		return fmt.Errorf("csv missing name column")
	}

	field := func(row []string, idx int, ok bool) string {
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}
	addrIdx, hasAddr := col["address"]
	cityIdx, hasCity := col["city"]

	published := 0
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("skipping malformed csv row", "error", err)
			continue
		}
		rec := domain.Normalize(domain.HospitalRecord{
			Name:    field(row, nameIdx, true),
			Address: field(row, addrIdx, hasAddr),
			City:    field(row, cityIdx, hasCity),
		})
		if rec.Name == "" {
			continue
		}
		if err := natsutil.Publish(ctx, nc, ingest.IngestSubject, rec); err != nil {
			return fmt.Errorf("publish %q: %w", rec.Name, err)
		}
		published++
	}
	logger.Info("csv seed published", "records", published, "path", path)
	return nil
}
