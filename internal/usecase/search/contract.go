package search

import (
	"context"

	"github.com/clipdeck/vidrank/internal/domain"
)

// Index is the search-index contract for retrieval.
type Index interface {
	Available(ctx context.Context) bool
	Lexical(ctx context.Context, q *domain.LexicalQuery) ([]domain.Hit, int, error)
	KNN(ctx context.Context, q *domain.KnnQuery) ([]domain.Hit, error)
}

// VideoReader reads documents for the fallback path.
type VideoReader interface {
	ListPublished(ctx context.Context) ([]domain.VideoDocument, error)
}

// ChannelMatcher finds channels for search suggestions.
type ChannelMatcher interface {
	MatchUsername(ctx context.Context, query string, limit int) ([]domain.Channel, error)
}

// SubscriptionReader reads a user's subscribed channel ids.
type SubscriptionReader interface {
	Subscriptions(ctx context.Context, userID string) ([]string, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
