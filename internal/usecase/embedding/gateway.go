// Package embedding holds the embedding gateway decorator that every
// retrieval path obtains vectors through.
package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/clipdeck/vidrank/internal/domain"
)

// Gateway wraps an Embedder and guarantees the invariants downstream
// consumers rely on: vectors come back unit-L2-normalized and of constant
// dimensionality. Cosine similarity over normalized vectors is a plain dot
// product, so all stored and query vectors pass through here.
type Gateway struct {
	inner      domain.Embedder
	dimensions int
	logger     *zap.Logger
}

// NewGateway wraps an embedder with normalization and dimension checking.
// dimensions == 0 disables the dimension check.
func NewGateway(inner domain.Embedder, dimensions int, logger *zap.Logger) *Gateway {
	return &Gateway{inner: inner, dimensions: dimensions, logger: logger}
}

// Embed returns a unit-normalized embedding for the text.
func (g *Gateway) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.EmbeddingResult{}, fmt.Errorf("empty text: %w", domain.ErrInvalidQuery)
	}

	start := time.Now()

	result, err := g.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	if g.dimensions > 0 && len(result.Embedding) != g.dimensions {
		g.logger.Error("Embedding dimension mismatch",
			zap.Int("expected", g.dimensions),
			zap.Int("got", len(result.Embedding)),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("expected %d dims, got %d: %w",
			g.dimensions, len(result.Embedding), domain.ErrVectorDimMismatch)
	}

	result.Embedding = domain.Normalize(result.Embedding)

	g.logger.Debug("Embedding computed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}
