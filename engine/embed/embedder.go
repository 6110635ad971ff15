// Package embed provides dense text embedding providers. The same provider,
// model, and dimension must be used at ingestion and query time.
package embed

import (
	"context"

	"github.com/arogyalabs/carefind/pkg/fn"
	"github.com/arogyalabs/carefind/pkg/resilience"
)

// Embedder maps text to fixed-length dense vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// WithBreaker wraps an Embedder so repeated upstream failures trip a circuit
// breaker instead of hammering a dead provider.
func WithBreaker(e Embedder, b *resilience.Breaker) Embedder {
	return &breakerEmbedder{inner: e, breaker: b}
}

type breakerEmbedder struct {
	inner   Embedder
	breaker *resilience.Breaker
}

func (e *breakerEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := e.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		out, err = e.inner.Embed(ctx, text)
		return err
	})
	return out, err
}

func (e *breakerEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := e.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		out, err = e.inner.EmbedBatch(ctx, texts)
		return err
	})
	return out, err
}

func (e *breakerEmbedder) Dimensions() int { return e.inner.Dimensions() }

// WithRetry wraps an Embedder with bounded exponential-backoff retries, for
// transient upstream failures. Compose it inside WithBreaker so a trip of
// the breaker is not retried.
func WithRetry(e Embedder, opts fn.RetryOpts) Embedder {
	return &retryEmbedder{inner: e, opts: opts}
}

type retryEmbedder struct {
	inner Embedder
	opts  fn.RetryOpts
}

func (e *retryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return fn.Retry(ctx, e.opts, func(ctx context.Context) fn.Result[[]float32] {
		return fn.FromPair(e.inner.Embed(ctx, text))
	}).Unwrap()
}

func (e *retryEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return fn.Retry(ctx, e.opts, func(ctx context.Context) fn.Result[[][]float32] {
		return fn.FromPair(e.inner.EmbedBatch(ctx, texts))
	}).Unwrap()
}

func (e *retryEmbedder) Dimensions() int { return e.inner.Dimensions() }
