// Package engine hosts the behavioral-vector engines: category aggregation,
// vector encoding, similarity ranking and clustering.
package engine

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// EmbeddingService is the vector embedding service interface. It backs the
// embedding-based encoder for natural-language-derived category input; the
// deterministic hashing encoder needs no external service.
type EmbeddingService interface {
	// Embed generates a vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the vector dimension.
	Dimensions() int
}

// EmbeddingConfig configures the OpenAI-compatible embedding client.
type EmbeddingConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

type embeddingService struct {
	client     *openai.Client
	limiter    *rate.Limiter
	model      string
	dimensions int
	timeout    time.Duration
}

// NewEmbeddingService creates an EmbeddingService over any OpenAI-compatible
// provider. Calls are rate limited and bounded by the configured timeout; the
// caller decides what to do on failure (the orchestrator falls back to the
// hashing encoder rather than failing the triggering workflow).
func NewEmbeddingService(cfg *EmbeddingConfig) (EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("embedding api key required")
	}
	if cfg.Dimensions <= 0 {
		return nil, errors.Errorf("invalid embedding dimensions: %d", cfg.Dimensions)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &embeddingService{
		client:     openai.NewClientWithConfig(clientConfig),
		limiter:    rate.NewLimiter(rate.Limit(5), 10),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		timeout:    cfg.Timeout,
	}, nil
}

func (s *embeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.New("no text provided for embedding")
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "embedding rate limit wait canceled")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(s.model),
		Dimensions: s.dimensions,
	}

	resp, err := s.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "create embeddings failed")
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("empty embedding response")
	}

	vector := resp.Data[0].Embedding
	if len(vector) != s.dimensions {
		return nil, errors.Errorf("embedding dimension mismatch: got %d, want %d", len(vector), s.dimensions)
	}
	return vector, nil
}

func (s *embeddingService) Dimensions() int {
	return s.dimensions
}
