package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"lexdraft-backend/config"

	"github.com/google/generative-ai-go/genai"
)

// maxBatchSize is the most texts the embedding API accepts per batch call
const maxBatchSize = 100

var ErrEmbeddingFailed = errors.New("failed to generate embedding")

// Embedder turns text into vectors. Documents and queries use distinct task
// types but live in the same vector space.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// GeminiEmbedder implements Embedder with the Gemini embedding model
type GeminiEmbedder struct {
	client *genai.Client
	model  string
	retry  retryPolicy
}

// NewGeminiEmbedder creates an embedder for cfg.EmbeddingModel
func NewGeminiEmbedder(client *genai.Client, cfg config.GeminiConfig) *GeminiEmbedder {
	return &GeminiEmbedder{
		client: client,
		model:  cfg.EmbeddingModel,
		retry:  retryPolicyFromConfig(cfg),
	}
}

// Model returns the embedding model name
func (e *GeminiEmbedder) Model() string {
	return e.model
}

// EmbedDocuments embeds texts in batches of at most maxBatchSize
func (e *GeminiEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	em := e.client.EmbeddingModel(e.model)
	em.TaskType = genai.TaskTypeRetrievalDocument

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := min(start+maxBatchSize, len(texts))

		batch := em.NewBatch()
		for _, text := range texts[start:end] {
			batch.AddContent(genai.Text(text))
		}

		var resp *genai.BatchEmbedContentsResponse
		err := e.retry.do(ctx, "batch embedding", func(ctx context.Context) error {
			var err error
			resp, err = em.BatchEmbedContents(ctx, batch)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrEmbeddingFailed, end-start, len(resp.Embeddings))
		}
		for _, emb := range resp.Embeddings {
			if emb == nil || len(emb.Values) == 0 {
				return nil, fmt.Errorf("%w: empty embedding in batch", ErrEmbeddingFailed)
			}
			vectors = append(vectors, normalize(emb.Values))
		}
	}
	return vectors, nil
}

// EmbedQuery embeds a single retrieval query
func (e *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	em := e.client.EmbeddingModel(e.model)
	em.TaskType = genai.TaskTypeRetrievalQuery

	var resp *genai.EmbedContentResponse
	err := e.retry.do(ctx, "query embedding", func(ctx context.Context) error {
		var err error
		resp, err = em.EmbedContent(ctx, genai.Text(text))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", ErrEmbeddingFailed)
	}
	return normalize(resp.Embedding.Values), nil
}

// normalize returns v scaled to unit length; a zero vector is returned as is
func normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)

	out := make([]float32, len(v))
	if norm == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// cosineSimilarity returns the cosine of the angle between a and b
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
