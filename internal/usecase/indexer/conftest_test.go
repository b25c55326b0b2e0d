package indexer

import (
	"context"

	"go.uber.org/zap"

	"github.com/clipdeck/vidrank/internal/domain"
)

type mockVideoStore struct {
	saveFn          func(ctx context.Context, doc *domain.VideoDocument) error
	findByIDFn      func(ctx context.Context, id string) (domain.VideoDocument, error)
	listAllFn       func(ctx context.Context) ([]domain.VideoDocument, error)
	saveEmbeddingFn func(ctx context.Context, id string, vec []float32) error
	deleteFn        func(ctx context.Context, id string) error
}

func (m *mockVideoStore) Save(ctx context.Context, doc *domain.VideoDocument) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, doc)
	}
	return nil
}

func (m *mockVideoStore) FindByID(ctx context.Context, id string) (domain.VideoDocument, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return domain.VideoDocument{}, domain.ErrVideoNotFound
}

func (m *mockVideoStore) ListAll(ctx context.Context) ([]domain.VideoDocument, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx)
	}
	return nil, nil
}

func (m *mockVideoStore) SaveEmbedding(ctx context.Context, id string, vec []float32) error {
	if m.saveEmbeddingFn != nil {
		return m.saveEmbeddingFn(ctx, id, vec)
	}
	return nil
}

func (m *mockVideoStore) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockIndex struct {
	ensureFn      func(ctx context.Context) error
	recreateFn    func(ctx context.Context) error
	upsertFn      func(ctx context.Context, doc *domain.VideoDocument) error
	upsertMultiFn func(ctx context.Context, docs []domain.VideoDocument) error
	deleteFn      func(ctx context.Context, id string) error
}

func (m *mockIndex) EnsureIndex(ctx context.Context) error {
	if m.ensureFn != nil {
		return m.ensureFn(ctx)
	}
	return nil
}

func (m *mockIndex) Recreate(ctx context.Context) error {
	if m.recreateFn != nil {
		return m.recreateFn(ctx)
	}
	return nil
}

func (m *mockIndex) Upsert(ctx context.Context, doc *domain.VideoDocument) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, doc)
	}
	return nil
}

func (m *mockIndex) UpsertMulti(ctx context.Context, docs []domain.VideoDocument) error {
	if m.upsertMultiFn != nil {
		return m.upsertMultiFn(ctx, docs)
	}
	return nil
}

func (m *mockIndex) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockIndex) Count(_ context.Context) (int, error) { return 0, nil }

type mockChannels struct {
	getFn      func(ctx context.Context, id string) (domain.Channel, error)
	getMultiFn func(ctx context.Context, ids []string) (map[string]domain.Channel, error)
}

func (m *mockChannels) Get(ctx context.Context, id string) (domain.Channel, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return domain.Channel{ID: id}, nil
}

func (m *mockChannels) GetMulti(ctx context.Context, ids []string) (map[string]domain.Channel, error) {
	if m.getMultiFn != nil {
		return m.getMultiFn(ctx, ids)
	}
	return map[string]domain.Channel{}, nil
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

func newTestService(videos *mockVideoStore, idx *mockIndex, channels *mockChannels, embed *mockEmbedder) *Service {
	return New(videos, idx, channels, embed, true, zap.NewNop())
}
