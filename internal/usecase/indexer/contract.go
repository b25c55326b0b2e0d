package indexer

import (
	"context"

	"github.com/clipdeck/vidrank/internal/domain"
)

// VideoStore reads and writes video documents in the document store.
type VideoStore interface {
	Save(ctx context.Context, doc *domain.VideoDocument) error
	FindByID(ctx context.Context, id string) (domain.VideoDocument, error)
	ListAll(ctx context.Context) ([]domain.VideoDocument, error)
	SaveEmbedding(ctx context.Context, id string, vec []float32) error
	Delete(ctx context.Context, id string) error
}

// Index writes denormalized search documents.
type Index interface {
	EnsureIndex(ctx context.Context) error
	Recreate(ctx context.Context) error
	Upsert(ctx context.Context, doc *domain.VideoDocument) error
	UpsertMulti(ctx context.Context, docs []domain.VideoDocument) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// ChannelReader resolves owner display fields for denormalization.
type ChannelReader interface {
	Get(ctx context.Context, id string) (domain.Channel, error)
	GetMulti(ctx context.Context, ids []string) (map[string]domain.Channel, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
