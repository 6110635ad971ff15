// Package ingest runs hospital records through a validate → dedup → embed →
// store pipeline, fed by a NATS consumer with retry and DLQ support.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/arogyalabs/carefind/engine/domain"
	"github.com/arogyalabs/carefind/engine/embed"
	"github.com/arogyalabs/carefind/engine/semantic"
	"github.com/arogyalabs/carefind/pkg/fn"
	"github.com/arogyalabs/carefind/pkg/natsutil"
)

const (
	// IngestSubject is the NATS subject for incoming hospital records.
	IngestSubject = "carefind.ingest"
	// DLQSubject receives records that keep failing.
	DLQSubject = "carefind.ingest.dlq"
	// MaxRetries before a record goes to the DLQ.
	MaxRetries = 3

	retryHeader = "X-Retry-Count"
)

// Upserter is the slice of the vector store the pipeline writes to.
type Upserter interface {
	Upsert(ctx context.Context, records []semantic.VectorRecord) error
	HasUniqueKey(ctx context.Context, key string) (bool, error)
}

// Deps holds the pipeline's external dependencies.
type Deps struct {
	Embedder embed.Embedder
	Store    Upserter
	Logger   *slog.Logger
}

// Validate normalizes a record and rejects ones without a name.
var Validate fn.Stage[domain.HospitalRecord, domain.HospitalRecord] = func(_ context.Context, rec domain.HospitalRecord) fn.Result[domain.HospitalRecord] {
	rec = domain.Normalize(rec)
	if err := domain.ValidateRecord(rec); err != nil {
		return fn.Err[domain.HospitalRecord](err)
	}
	return fn.Ok(rec)
}

// NewDedup creates a stage that rejects records whose unique key is already
// indexed. A failed lookup lets the record through; the index invariant is
// best effort under partial outages.
func NewDedup(store Upserter, log *slog.Logger) fn.Stage[domain.HospitalRecord, domain.HospitalRecord] {
	return func(ctx context.Context, rec domain.HospitalRecord) fn.Result[domain.HospitalRecord] {
		exists, err := store.HasUniqueKey(ctx, rec.UniqueKey)
		if err != nil {
			log.Warn("ingest: dedup lookup failed", "unique_key", rec.UniqueKey, "error", err)
			return fn.Ok(rec)
		}
		if exists {
			return fn.Err[domain.HospitalRecord](fmt.Errorf("ingest: %q: %w", rec.Name, domain.ErrDuplicate))
		}
		return fn.Ok(rec)
	}
}

// embeddingText is what gets vectorized for a record.
func embeddingText(rec domain.HospitalRecord) string {
	parts := []string{rec.Name}
	if rec.Address != "" {
		parts = append(parts, rec.Address)
	}
	if rec.City != "" {
		parts = append(parts, rec.City)
	}
	return strings.Join(parts, ", ")
}

type embeddedRecord struct {
	rec domain.HospitalRecord
	vec []float32
}

// NewEmbed creates a stage that vectorizes the record text.
func NewEmbed(embedder embed.Embedder) fn.Stage[domain.HospitalRecord, embeddedRecord] {
	return func(ctx context.Context, rec domain.HospitalRecord) fn.Result[embeddedRecord] {
		vec, err := embedder.Embed(ctx, embeddingText(rec))
		if err != nil {
			return fn.Err[embeddedRecord](fmt.Errorf("ingest: embed: %w", err))
		}
		return fn.Ok(embeddedRecord{rec: rec, vec: vec})
	}
}

// PointID derives the deterministic point id for a record from its unique
// key.
func PointID(rec domain.HospitalRecord) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(rec.Key())).String()
}

// NewStore creates a stage that upserts the embedded record.
func NewStore(store Upserter) fn.Stage[embeddedRecord, string] {
	return func(ctx context.Context, er embeddedRecord) fn.Result[string] {
		record := semantic.VectorRecord{
			ID:        PointID(er.rec),
			Embedding: er.vec,
			Record:    er.rec,
		}
		if err := store.Upsert(ctx, []semantic.VectorRecord{record}); err != nil {
			return fn.Err[string](fmt.Errorf("ingest: upsert: %w", err))
		}
		return fn.Ok(er.rec.UniqueKey)
	}
}

// loggedTap logs entry and exit of a stage with duration.
func loggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(ctx context.Context, t T) fn.Result[T] {
		log.Debug("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Debug("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// NewPipeline wires the full ingestion pipeline.
func NewPipeline(deps Deps) fn.Stage[domain.HospitalRecord, string] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	validated := fn.Then(loggedTap[domain.HospitalRecord]("validate", log), Validate)
	deduped := fn.Then(validated, NewDedup(deps.Store, log))
	embedded := fn.Then(deduped, fn.Then(loggedTap[domain.HospitalRecord]("embed", log), NewEmbed(deps.Embedder)))
	stored := fn.Then(embedded, fn.Then(loggedTap[embeddedRecord]("store", log), NewStore(deps.Store)))
	return stored
}

// dlqMessage is published on repeated failure.
type dlqMessage struct {
	Record  domain.HospitalRecord `json:"record"`
	Error   string                `json:"error"`
	Retries int                   `json:"retries"`
}

// publisher abstracts the retry and DLQ publishes so the consumer's
// dispatch logic is testable without a broker.
type publisher interface {
	publishRetry(ctx context.Context, rec domain.HospitalRecord, retries int) error
	publishDLQ(ctx context.Context, dlq dlqMessage) error
}

// natsPublisher publishes through natsutil so trace context stays on the
// message headers across redeliveries.
type natsPublisher struct {
	nc *nats.Conn
}

func (p natsPublisher) publishRetry(ctx context.Context, rec domain.HospitalRecord, retries int) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	msg := nats.NewMsg(IngestSubject)
	msg.Data = data
	msg.Header.Set(retryHeader, strconv.Itoa(retries))
	return natsutil.PublishMsg(ctx, p.nc, msg)
}

func (p natsPublisher) publishDLQ(ctx context.Context, dlq dlqMessage) error {
	return natsutil.Publish(ctx, p.nc, DLQSubject, dlq)
}

// retryCount reads the retry header off a delivered message.
func retryCount(msg *nats.Msg) int {
	if msg == nil || msg.Header == nil {
		return 0
	}
	n, _ := strconv.Atoi(msg.Header.Get(retryHeader))
	return n
}

// handleRecord runs one record through the pipeline and dispatches the
// outcome: success and duplicates end the message's life, other failures
// are re-published with an incremented retry count until MaxRetries sends
// the record to the DLQ.
func handleRecord(ctx context.Context, pipeline fn.Stage[domain.HospitalRecord, string], pub publisher, rec domain.HospitalRecord, retries int, log *slog.Logger) {
	result := pipeline(ctx, rec)
	if result.IsOk() {
		key, _ := result.Unwrap()
		log.Info("ingest: stored", "unique_key", key)
		return
	}

	_, pipeErr := result.Unwrap()
	if isDuplicate(pipeErr) {
		log.Info("ingest: skipping duplicate", "name", rec.Name)
		return
	}

	retries++
	log.Error("ingest: pipeline failed", "error", pipeErr, "name", rec.Name, "retry", retries)

	if retries >= MaxRetries {
		if err := pub.publishDLQ(ctx, dlqMessage{Record: rec, Error: pipeErr.Error(), Retries: retries}); err != nil {
			log.Error("ingest: DLQ publish failed", "error", err)
		}
		return
	}
	if err := pub.publishRetry(ctx, rec, retries); err != nil {
		log.Error("ingest: retry publish failed", "error", err)
	}
}

// StartConsumer subscribes to the ingest subject and runs each record
// through the pipeline. Trace context is extracted from message headers, so
// spans link back to the original publish even across retries.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	pipeline := NewPipeline(deps)
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	pub := natsPublisher{nc: nc}

	return natsutil.SubscribeMsg(nc, IngestSubject, func(ctx context.Context, rec domain.HospitalRecord, msg *nats.Msg) {
		handleRecord(ctx, pipeline, pub, rec, retryCount(msg), log)
	})
}

func isDuplicate(err error) bool {
	return errors.Is(err, domain.ErrDuplicate)
}
