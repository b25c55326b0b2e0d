package recommend

import (
	"context"

	"github.com/clipdeck/vidrank/internal/domain"
)

// Index is the search-index contract for recommendation retrieval.
type Index interface {
	Available(ctx context.Context) bool
	Lexical(ctx context.Context, q *domain.LexicalQuery) ([]domain.Hit, int, error)
	KNN(ctx context.Context, q *domain.KnnQuery) ([]domain.Hit, error)
}

// VideoReader reads documents for profile building and the fallback path.
type VideoReader interface {
	FindByID(ctx context.Context, id string) (domain.VideoDocument, error)
	FindByIDs(ctx context.Context, ids []string) ([]domain.VideoDocument, error)
	ListPublished(ctx context.Context) ([]domain.VideoDocument, error)
}

// ActivityReader reads a user's interaction history.
type ActivityReader interface {
	Subscriptions(ctx context.Context, userID string) ([]string, error)
	WatchHistory(ctx context.Context, userID string) ([]string, error)
	LikedVideos(ctx context.Context, userID string) ([]string, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
