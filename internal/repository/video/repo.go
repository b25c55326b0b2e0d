// Package video persists video documents as flat hashes in the document
// store. The search index keeps its own denormalized copies; this repository
// is the source of truth the index is rebuilt from.
package video

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/clipdeck/vidrank/internal/db"
	"github.com/clipdeck/vidrank/internal/domain"
)

// store is the consumer interface for video hashes (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo implements the video document store over Redis hashes.
type Repo struct {
	store  store
	prefix string
}

// New creates a video repository. keyPrefix namespaces all keys.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, prefix: keyPrefix}
}

// Save writes the full document hash, overwriting existing fields.
func (r *Repo) Save(ctx context.Context, doc *domain.VideoDocument) error {
	if doc.ID == "" {
		return domain.ErrInvalidID
	}
	if err := r.store.HSet(ctx, r.key(doc.ID), buildHashFields(doc)); err != nil {
		return fmt.Errorf("hset video %s: %w", doc.ID, err)
	}
	return nil
}

// FindByID returns one document or domain.ErrVideoNotFound.
func (r *Repo) FindByID(ctx context.Context, id string) (domain.VideoDocument, error) {
	m, err := r.store.HGetAll(ctx, r.key(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.VideoDocument{}, domain.ErrVideoNotFound
		}
		return domain.VideoDocument{}, fmt.Errorf("hgetall video %s: %w", id, err)
	}
	if len(m) == 0 {
		return domain.VideoDocument{}, domain.ErrVideoNotFound
	}
	return parseHashFields(id, m), nil
}

// FindByIDs returns the documents that exist, in input order. Missing ids are
// skipped silently so a stale watch-history entry cannot fail a request.
func (r *Repo) FindByIDs(ctx context.Context, ids []string) ([]domain.VideoDocument, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}
	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi: %w", err)
	}
	docs := make([]domain.VideoDocument, 0, len(ids))
	for i, m := range maps {
		if len(m) == 0 {
			continue
		}
		docs = append(docs, parseHashFields(ids[i], m))
	}
	return docs, nil
}

// ListPublished returns every published document. Used by the heuristic
// scorer and the index rebuild, both of which tolerate a full scan.
func (r *Repo) ListPublished(ctx context.Context) ([]domain.VideoDocument, error) {
	docs, err := r.listAll(ctx)
	if err != nil {
		return nil, err
	}
	published := docs[:0]
	for _, d := range docs {
		if d.IsPublished {
			published = append(published, d)
		}
	}
	return published, nil
}

// ListAll returns every document, published or not.
func (r *Repo) ListAll(ctx context.Context) ([]domain.VideoDocument, error) {
	return r.listAll(ctx)
}

func (r *Repo) listAll(ctx context.Context) ([]domain.VideoDocument, error) {
	keys, err := r.store.Scan(ctx, r.prefix+"video:*")
	if err != nil {
		return nil, fmt.Errorf("scan videos: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi: %w", err)
	}
	docs := make([]domain.VideoDocument, 0, len(keys))
	for i, m := range maps {
		if len(m) == 0 {
			continue
		}
		docs = append(docs, parseHashFields(r.idFromKey(keys[i]), m))
	}
	return docs, nil
}

// SaveEmbedding stores a computed content vector without touching the rest of
// the document.
func (r *Repo) SaveEmbedding(ctx context.Context, id string, vec []float32) error {
	fields := map[string]string{db.FieldEmbedding: vectorToBytes(vec)}
	if err := r.store.HSet(ctx, r.key(id), fields); err != nil {
		return fmt.Errorf("hset embedding %s: %w", id, err)
	}
	return nil
}

// Delete removes a document. Missing documents are not an error: removal is
// idempotent so the indexer can retry.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, r.key(id)); err != nil {
		return fmt.Errorf("del video %s: %w", id, err)
	}
	return nil
}

func (r *Repo) key(id string) string {
	return r.prefix + "video:" + id
}

func (r *Repo) idFromKey(key string) string {
	return strings.TrimPrefix(key, r.prefix+"video:")
}
