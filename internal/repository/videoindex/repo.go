// Package videoindex maintains the FT search index and runs retrieval
// queries against it. Index documents are denormalized copies of the video
// hashes plus owner display fields, kept under their own key prefix so the
// index can be dropped and rebuilt without touching the document store.
package videoindex

import (
	"context"
	"fmt"
	"strings"

	"github.com/clipdeck/vidrank/internal/db"
	"github.com/clipdeck/vidrank/internal/domain"
)

// Field weights for lexical relevance. Title matches dominate, transcript
// matches contribute least.
const (
	titleWeight      = 3.0
	tagsWeight       = 2.0
	transcriptWeight = 0.5
)

// store is the consumer interface for index documents and FT operations (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchLexical(ctx context.Context, q *db.LexicalQuery) (*db.SearchResult, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Options tune the index schema.
type Options struct {
	VectorDim       int
	HNSWM           int
	HNSWEFConstruct int
}

// Repo implements search-index persistence and retrieval.
type Repo struct {
	store  store
	prefix string
	opts   Options
}

// New creates a search index repository. keyPrefix namespaces all keys.
func New(s store, keyPrefix string, opts Options) *Repo {
	return &Repo{store: s, prefix: keyPrefix, opts: opts}
}

// IndexName returns the FT index name.
func (r *Repo) IndexName() string {
	return r.prefix + "idx:video"
}

func (r *Repo) docPrefix() string {
	return r.prefix + "idx:video:"
}

func (r *Repo) docKey(id string) string {
	return r.docPrefix() + id
}

// EnsureIndex creates the FT index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.IndexName())
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		return nil
	}
	def, err := r.indexDefinition()
	if err != nil {
		return err
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// Recreate drops and recreates the index. Index documents survive the drop;
// the new index picks them up as RediSearch rescans the prefix.
func (r *Repo) Recreate(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, r.IndexName()); err != nil && !strings.Contains(err.Error(), "Unknown") {
		return fmt.Errorf("drop index: %w", err)
	}
	def, err := r.indexDefinition()
	if err != nil {
		return err
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

func (r *Repo) indexDefinition() (*db.IndexDefinition, error) {
	def, err := db.NewIndex(r.IndexName()).
		Prefix(r.docPrefix()).
		Tag(db.FieldID).
		TextWeighted(db.FieldTitle, titleWeight).
		TextWeighted(db.FieldTagsText, tagsWeight).
		Text(db.FieldDescription).
		TextWeighted(db.FieldTranscript, transcriptWeight).
		Tag(db.FieldTags).
		Tag(db.FieldOwnerID).
		Tag(db.FieldPublished).
		Tag(db.FieldLanguage).
		Numeric(db.FieldViews, true).
		Numeric(db.FieldPublishedAt, true).
		Numeric(db.FieldDuration, false).
		VectorHNSW(db.FieldEmbedding, r.opts.VectorDim, db.DistanceCosine, r.opts.HNSWM, r.opts.HNSWEFConstruct).
		Build()
	if err != nil {
		return nil, fmt.Errorf("index schema: %w", err)
	}
	return def, nil
}

// Available reports whether the FT index exists and the engine answers.
// Any error counts as unavailable; callers degrade to the heuristic path.
func (r *Repo) Available(ctx context.Context) bool {
	exists, err := r.store.IndexExists(ctx, r.IndexName())
	return err == nil && exists
}

// Lexical runs a weighted full-text query and returns ranked hits plus the
// total match count.
func (r *Repo) Lexical(ctx context.Context, q *domain.LexicalQuery) ([]domain.Hit, int, error) {
	wire := &db.LexicalQuery{
		IndexName:         r.IndexName(),
		Query:             q.Query,
		TextMatchRequired: q.TextMatchRequired,
		Synonyms:          q.Synonyms,
		OwnerBoost:        q.SubscribedOwnerIDs,
		TagBoost:          q.BoostTags,
		PrefixBoost:       q.PrefixBoost,
		BoostRequired:     q.BoostRequired,
		RequireTags:       q.RequireTags,
		PublishedOnly:     true,
		ExcludeIDs:        q.ExcludeIDs,
		SortField:         sortField(q.Sort),
		Offset:            q.Offset,
		Limit:             q.Limit,
	}
	res, err := r.store.SearchLexical(ctx, wire)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return r.toHits(res), res.Total, nil
}

// KNN runs a vector similarity query over published documents.
func (r *Repo) KNN(ctx context.Context, q *domain.KnnQuery) ([]domain.Hit, error) {
	wire := &db.KNNQuery{
		IndexName:     r.IndexName(),
		Vector:        q.Vector,
		K:             q.K,
		NumCandidates: q.NumCandidates,
		PublishedOnly: true,
		ExcludeIDs:    q.ExcludeIDs,
	}
	res, err := r.store.SearchKNN(ctx, wire)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return r.toHits(res), nil
}

// Upsert writes one denormalized index document.
func (r *Repo) Upsert(ctx context.Context, doc *domain.VideoDocument) error {
	if err := r.store.HSet(ctx, r.docKey(doc.ID), buildIndexFields(doc)); err != nil {
		return fmt.Errorf("hset index doc %s: %w", doc.ID, err)
	}
	return nil
}

// UpsertMulti pipelines a batch of index documents. Used by rebuild.
func (r *Repo) UpsertMulti(ctx context.Context, docs []domain.VideoDocument) error {
	if len(docs) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, len(docs))
	for i := range docs {
		items[i] = db.HashSetItem{Key: r.docKey(docs[i].ID), Fields: buildIndexFields(&docs[i])}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset multi index docs: %w", err)
	}
	return nil
}

// Delete removes one index document. Idempotent.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, r.docKey(id)); err != nil {
		return fmt.Errorf("del index doc %s: %w", id, err)
	}
	return nil
}

// Count returns the number of published documents in the index.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, r.IndexName(), fmt.Sprintf("@%s:{true}", db.FieldPublished))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return n, nil
}

func (r *Repo) toHits(res *db.SearchResult) []domain.Hit {
	hits := make([]domain.Hit, 0, len(res.Entries))
	for _, e := range res.Entries {
		id := strings.TrimPrefix(e.Key, r.docPrefix())
		hits = append(hits, domain.Hit{
			VideoID: id,
			Score:   e.Score,
			Video:   parseIndexFields(id, e.Fields),
		})
	}
	return hits
}

func sortField(mode domain.SortMode) string {
	switch mode {
	case domain.SortDate:
		return db.FieldPublishedAt
	case domain.SortViews:
		return db.FieldViews
	default:
		return ""
	}
}
