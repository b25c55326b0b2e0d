package recommend

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/clipdeck/vidrank/internal/domain"
)

type mockIndex struct {
	available bool
	lexicalFn func(ctx context.Context, q *domain.LexicalQuery) ([]domain.Hit, int, error)
	knnFn     func(ctx context.Context, q *domain.KnnQuery) ([]domain.Hit, error)
}

func (m *mockIndex) Available(_ context.Context) bool { return m.available }

func (m *mockIndex) Lexical(ctx context.Context, q *domain.LexicalQuery) ([]domain.Hit, int, error) {
	if m.lexicalFn != nil {
		return m.lexicalFn(ctx, q)
	}
	return nil, 0, nil
}

func (m *mockIndex) KNN(ctx context.Context, q *domain.KnnQuery) ([]domain.Hit, error) {
	if m.knnFn != nil {
		return m.knnFn(ctx, q)
	}
	return nil, nil
}

type mockVideos struct {
	byID      map[string]domain.VideoDocument
	published []domain.VideoDocument
	listErr   error
}

func (m *mockVideos) FindByID(_ context.Context, id string) (domain.VideoDocument, error) {
	doc, ok := m.byID[id]
	if !ok {
		return domain.VideoDocument{}, domain.ErrVideoNotFound
	}
	return doc, nil
}

func (m *mockVideos) FindByIDs(_ context.Context, ids []string) ([]domain.VideoDocument, error) {
	var out []domain.VideoDocument
	for _, id := range ids {
		if doc, ok := m.byID[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (m *mockVideos) ListPublished(_ context.Context) ([]domain.VideoDocument, error) {
	return m.published, m.listErr
}

type mockActivity struct {
	subs    []string
	watched []string
	liked   []string
	err     error
}

func (m *mockActivity) Subscriptions(_ context.Context, _ string) ([]string, error) {
	return m.subs, m.err
}

func (m *mockActivity) WatchHistory(_ context.Context, _ string) ([]string, error) {
	return m.watched, m.err
}

func (m *mockActivity) LikedVideos(_ context.Context, _ string) ([]string, error) {
	return m.liked, m.err
}

type mockEmbedder struct {
	result domain.EmbeddingResult
	err    error
	calls  int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return m.result, nil
}

func newTestService(idx *mockIndex, videos *mockVideos, activity *mockActivity, embed *mockEmbedder) *Service {
	logger := zap.NewNop()
	profiles := NewProfileBuilder(activity, videos, embed, 0, logger)
	s := New(idx, videos, profiles, true, Limits{}, logger)
	s.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func pubDoc(id string, opts ...func(*domain.VideoDocument)) domain.VideoDocument {
	d := domain.VideoDocument{ID: id, IsPublished: true}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}
