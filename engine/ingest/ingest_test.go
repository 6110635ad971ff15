package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/arogyalabs/carefind/engine/domain"
	"github.com/arogyalabs/carefind/engine/semantic"
)

type fakeEmbedder struct {
	err   error
	calls []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 2, 3}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 3 }

type fakeStore struct {
	existing  map[string]bool
	lookupErr error
	upsertErr error
	upserted  []semantic.VectorRecord
}

func (f *fakeStore) Upsert(_ context.Context, records []semantic.VectorRecord) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, records...)
	return nil
}

func (f *fakeStore) HasUniqueKey(_ context.Context, key string) (bool, error) {
	if f.lookupErr != nil {
		return false, f.lookupErr
	}
	return f.existing[key], nil
}

func testDeps(e *fakeEmbedder, s *fakeStore) Deps {
	return Deps{
		Embedder: e,
		Store:    s,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestPipelineStoresRecord(t *testing.T) {
	e := &fakeEmbedder{}
	s := &fakeStore{}
	pipeline := NewPipeline(testDeps(e, s))

	rec := domain.HospitalRecord{Name: "Manipal Hospital", Address: "Sarjapur Road", City: "Bengaluru"}
	result := pipeline(context.Background(), rec)
	key, err := result.Unwrap()
	if err != nil {
		t.Fatal(err)
	}
	if key != domain.UniqueKey("Manipal Hospital", "Bengaluru", "Sarjapur Road") {
		t.Fatalf("key = %q", key)
	}
	if len(s.upserted) != 1 {
		t.Fatalf("upserted = %d", len(s.upserted))
	}
	if s.upserted[0].ID != PointID(s.upserted[0].Record) {
		t.Fatal("point id not derived from the record")
	}
	if len(e.calls) != 1 || e.calls[0] != "Manipal Hospital, Sarjapur Road, Bengaluru" {
		t.Fatalf("embed calls = %v", e.calls)
	}
}

func TestPipelineRejectsNamelessRecord(t *testing.T) {
	s := &fakeStore{}
	pipeline := NewPipeline(testDeps(&fakeEmbedder{}, s))

	result := pipeline(context.Background(), domain.HospitalRecord{Address: "nowhere"})
	if result.IsOk() {
		t.Fatal("expected validation failure")
	}
	if len(s.upserted) != 0 {
		t.Fatal("invalid record reached the store")
	}
}

func TestPipelineRejectsDuplicate(t *testing.T) {
	rec := domain.Normalize(domain.HospitalRecord{Name: "Fortis", City: "Mumbai"})
	s := &fakeStore{existing: map[string]bool{rec.UniqueKey: true}}
	pipeline := NewPipeline(testDeps(&fakeEmbedder{}, s))

	result := pipeline(context.Background(), rec)
	_, err := result.Unwrap()
	if !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
	if !isDuplicate(err) {
		t.Fatal("isDuplicate should recognise the wrapped sentinel")
	}
}

func TestPipelineContinuesOnDedupLookupFailure(t *testing.T) {
	s := &fakeStore{lookupErr: errors.New("index flaky")}
	pipeline := NewPipeline(testDeps(&fakeEmbedder{}, s))

	result := pipeline(context.Background(), domain.HospitalRecord{Name: "Apollo"})
	if result.IsErr() {
		t.Fatal("lookup failure should not block ingestion")
	}
	if len(s.upserted) != 1 {
		t.Fatalf("upserted = %d", len(s.upserted))
	}
}

func TestPipelineEmbedFailure(t *testing.T) {
	s := &fakeStore{}
	pipeline := NewPipeline(testDeps(&fakeEmbedder{err: errors.New("embedder down")}, s))

	result := pipeline(context.Background(), domain.HospitalRecord{Name: "Apollo"})
	if result.IsOk() {
		t.Fatal("expected embed failure to propagate")
	}
	if len(s.upserted) != 0 {
		t.Fatal("failed record reached the store")
	}
}

func TestPointIDDeterministic(t *testing.T) {
	a := domain.Normalize(domain.HospitalRecord{Name: "Manipal", City: "Bengaluru"})
	b := domain.Normalize(domain.HospitalRecord{Name: "Manipal", City: "Bengaluru"})
	if PointID(a) != PointID(b) {
		t.Fatal("same record should yield the same point id")
	}
	c := domain.Normalize(domain.HospitalRecord{Name: "Manipal", City: "Pune"})
	if PointID(a) == PointID(c) {
		t.Fatal("different records should yield different point ids")
	}
}

func TestEmbeddingTextSkipsEmptyFields(t *testing.T) {
	got := embeddingText(domain.HospitalRecord{Name: "Apollo"})
	if got != "Apollo" {
		t.Fatalf("text = %q", got)
	}
	got = embeddingText(domain.HospitalRecord{Name: "Apollo", City: "Chennai"})
	if got != "Apollo, Chennai" {
		t.Fatalf("text = %q", got)
	}
}

type fakePublisher struct {
	retries []int
	dlq     []dlqMessage
}

func (f *fakePublisher) publishRetry(_ context.Context, _ domain.HospitalRecord, retries int) error {
	f.retries = append(f.retries, retries)
	return nil
}

func (f *fakePublisher) publishDLQ(_ context.Context, dlq dlqMessage) error {
	f.dlq = append(f.dlq, dlq)
	return nil
}

func dispatchDeps(e *fakeEmbedder, s *fakeStore) (Deps, *fakePublisher) {
	return testDeps(e, s), &fakePublisher{}
}

func TestHandleRecordSuccessPublishesNothing(t *testing.T) {
	deps, pub := dispatchDeps(&fakeEmbedder{}, &fakeStore{})
	pipeline := NewPipeline(deps)

	handleRecord(context.Background(), pipeline, pub, domain.HospitalRecord{Name: "Apollo"}, 0, deps.Logger)
	if len(pub.retries) != 0 || len(pub.dlq) != 0 {
		t.Fatalf("retries = %v, dlq = %v", pub.retries, pub.dlq)
	}
}

func TestHandleRecordDuplicateNotRetried(t *testing.T) {
	rec := domain.Normalize(domain.HospitalRecord{Name: "Apollo", City: "Chennai"})
	deps, pub := dispatchDeps(&fakeEmbedder{}, &fakeStore{existing: map[string]bool{rec.UniqueKey: true}})
	pipeline := NewPipeline(deps)

	handleRecord(context.Background(), pipeline, pub, rec, 0, deps.Logger)
	if len(pub.retries) != 0 || len(pub.dlq) != 0 {
		t.Fatalf("duplicate should end quietly: retries = %v, dlq = %v", pub.retries, pub.dlq)
	}
}

func TestHandleRecordFailureIncrementsRetry(t *testing.T) {
	deps, pub := dispatchDeps(&fakeEmbedder{err: errors.New("embedder down")}, &fakeStore{})
	pipeline := NewPipeline(deps)

	handleRecord(context.Background(), pipeline, pub, domain.HospitalRecord{Name: "Apollo"}, 0, deps.Logger)
	if len(pub.retries) != 1 || pub.retries[0] != 1 {
		t.Fatalf("retries = %v, want one republish with count 1", pub.retries)
	}
	if len(pub.dlq) != 0 {
		t.Fatalf("dlq = %v", pub.dlq)
	}
}

func TestHandleRecordGoesToDLQAfterMaxRetries(t *testing.T) {
	deps, pub := dispatchDeps(&fakeEmbedder{err: errors.New("embedder down")}, &fakeStore{})
	pipeline := NewPipeline(deps)

	handleRecord(context.Background(), pipeline, pub, domain.HospitalRecord{Name: "Apollo"}, MaxRetries-1, deps.Logger)
	if len(pub.retries) != 0 {
		t.Fatalf("retries = %v, want DLQ instead", pub.retries)
	}
	if len(pub.dlq) != 1 || pub.dlq[0].Retries != MaxRetries {
		t.Fatalf("dlq = %+v", pub.dlq)
	}
	if pub.dlq[0].Record.Name != "Apollo" || pub.dlq[0].Error == "" {
		t.Fatalf("dlq message = %+v", pub.dlq[0])
	}
}

func TestRetryCount(t *testing.T) {
	if got := retryCount(nil); got != 0 {
		t.Fatalf("nil msg = %d", got)
	}
	msg := nats.NewMsg(IngestSubject)
	if got := retryCount(msg); got != 0 {
		t.Fatalf("no header = %d", got)
	}
	msg.Header.Set("X-Retry-Count", "2")
	if got := retryCount(msg); got != 2 {
		t.Fatalf("header = %d", got)
	}
}
