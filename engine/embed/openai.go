package embed

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIDimensions is the vector size of text-embedding-3-small.
const OpenAIDimensions = 1536

// embeddingsAPI is the slice of the OpenAI client used here; narrow so tests
// can substitute it.
type embeddingsAPI interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIClient implements Embedder using the OpenAI embeddings API.
type OpenAIClient struct {
	api   embeddingsAPI
	model openai.EmbeddingModel
	dims  int
}

// NewOpenAI creates an OpenAI embedding client with text-embedding-3-small.
func NewOpenAI(apiKey string) *OpenAIClient {
	return &OpenAIClient{
		api:   openai.NewClient(apiKey),
		model: openai.SmallEmbedding3,
		dims:  OpenAIDimensions,
	}
}

// Dimensions returns the model's vector size.
func (c *OpenAIClient) Dimensions() int { return c.dims }

// Embed implements Embedder.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch implements Embedder.
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed: got %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}
