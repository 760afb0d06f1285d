// Package embedding provides a matching.Embedder backed by the Gemini
// embeddings API.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultModel     = "text-embedding-004"
	defaultBatchSize = 100
	maxAttempts      = 3
)

var (
	after        = time.After
	retryBackoff = 2 * time.Second
)

// contentEmbedder is the slice of the genai client the Gemini embedder needs.
type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Gemini embeds texts in chunks of at most batchSize per API call.
type Gemini struct {
	models    contentEmbedder
	model     string
	batchSize int
	logger    *zap.Logger
}

// NewGemini creates an embedder configured for the Gemini API backend.
func NewGemini(ctx context.Context, apiKey, model string, batchSize int, logger *zap.Logger) (*Gemini, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGemini(client.Models, model, batchSize, logger), nil
}

func newGemini(models contentEmbedder, model string, batchSize int, logger *zap.Logger) *Gemini {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gemini{models: models, model: model, batchSize: batchSize, logger: logger}
}

func (g *Gemini) Model() string { return g.model }

// Embed returns one vector per text, in order.
func (g *Gemini) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if g == nil || g.models == nil {
		return nil, errors.New("gemini embedder is not initialized")
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += g.batchSize {
		end := min(start+g.batchSize, len(texts))
		vectors, err := g.embedChunk(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed texts %d-%d: %w", start, end-1, err)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (g *Gemini) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = &genai.Content{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: t}},
		}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := g.models.EmbedContent(ctx, g.model, contents, nil)
		if err == nil {
			return vectorsOf(resp, len(texts))
		}
		lastErr = err
		if !isTemporary(err) || attempt == maxAttempts {
			break
		}

		wait := time.Duration(attempt) * retryBackoff
		g.logger.Warn("gemini embedding call failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("texts", len(texts)),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		if err := waitFor(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func vectorsOf(resp *genai.EmbedContentResponse, want int) ([][]float32, error) {
	if resp == nil {
		return nil, errors.New("gemini api returned empty response")
	}
	if len(resp.Embeddings) != want {
		return nil, fmt.Errorf("gemini api returned %d embeddings for %d texts", len(resp.Embeddings), want)
	}
	out := make([][]float32, want)
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("gemini api returned empty embedding at index %d", i)
		}
		out[i] = e.Values
	}
	return out, nil
}

func isTemporary(err error) bool {
	var code int
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	default:
		return false
	}
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func waitFor(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-after(d):
		return nil
	}
}
