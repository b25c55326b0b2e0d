package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/clipdeck/vidrank/internal/domain"
)

func embeddedWatch() (*mockVideos, *mockActivity) {
	videos := &mockVideos{byID: map[string]domain.VideoDocument{
		"watched-1": pubDoc("watched-1", func(d *domain.VideoDocument) {
			d.Embedding = []float32{1, 0}
			d.Tags = []string{"golang"}
		}),
	}}
	activity := &mockActivity{
		subs:    []string{"chan-1"},
		watched: []string{"watched-1"},
		liked:   []string{"liked-1"},
	}
	return videos, activity
}

func TestFeed_EmptyUserID(t *testing.T) {
	s := newTestService(&mockIndex{}, &mockVideos{}, &mockActivity{}, &mockEmbedder{})
	if _, err := s.Feed(context.Background(), " ", 1, 10); !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestFeed_PageSizeClamped(t *testing.T) {
	videos, activity := embeddedWatch()
	var gotK, gotCandidates int
	idx := &mockIndex{
		available: true,
		knnFn: func(_ context.Context, q *domain.KnnQuery) ([]domain.Hit, error) {
			gotK, gotCandidates = q.K, q.NumCandidates
			return []domain.Hit{{VideoID: "knn-1", Video: pubDoc("knn-1")}}, nil
		},
	}
	s := newTestService(idx, videos, activity, &mockEmbedder{})

	page, err := s.Feed(context.Background(), "user-1", 1, 100000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.PageSize != 50 {
		t.Errorf("expected page size clamped to 50, got %d", page.PageSize)
	}
	if gotK != 100 || gotCandidates != 150 {
		t.Errorf("knn params not derived from the clamped size: k=%d nc=%d", gotK, gotCandidates)
	}
}

func TestFeed_VectorFusionUnionDedupe(t *testing.T) {
	videos, activity := embeddedWatch()
	idx := &mockIndex{
		available: true,
		knnFn: func(_ context.Context, q *domain.KnnQuery) ([]domain.Hit, error) {
			if q.K != 40 || q.NumCandidates != 80 {
				t.Errorf("knn floors not applied: k=%d nc=%d", q.K, q.NumCandidates)
			}
			if len(q.ExcludeIDs) != 2 {
				t.Errorf("expected watched+liked exclusions, got %v", q.ExcludeIDs)
			}
			return []domain.Hit{
				{VideoID: "knn-1", Score: 0.9},
				{VideoID: "shared", Score: 0.8},
			}, nil
		},
		lexicalFn: func(_ context.Context, q *domain.LexicalQuery) ([]domain.Hit, int, error) {
			if !q.BoostRequired {
				t.Error("boost clauses must be required for the blend query")
			}
			if len(q.SubscribedOwnerIDs) != 1 || len(q.BoostTags) != 1 {
				t.Errorf("profile boosts not wired: %+v", q)
			}
			return []domain.Hit{
				{VideoID: "shared", Score: 2},
				{VideoID: "boost-1", Score: 1},
			}, 2, nil
		},
	}
	s := newTestService(idx, videos, activity, &mockEmbedder{})

	page, err := s.Feed(context.Background(), "u-1", 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Engine != domain.EngineVectorFusion {
		t.Errorf("expected vector-fusion, got %s", page.Engine)
	}
	want := []string{"knn-1", "shared", "boost-1"}
	if len(page.Items) != 3 {
		t.Fatalf("expected union of 3, got %+v", page.Items)
	}
	for i, id := range want {
		if page.Items[i].VideoID != id {
			t.Fatalf("first-occurrence order lost: %+v", page.Items)
		}
	}
}

func TestFeed_NeverReturnsExcluded(t *testing.T) {
	videos, activity := embeddedWatch()
	idx := &mockIndex{
		available: true,
		knnFn: func(_ context.Context, _ *domain.KnnQuery) ([]domain.Hit, error) {
			// Index filter slipped: a watched id comes back anyway.
			return []domain.Hit{
				{VideoID: "watched-1", Score: 0.99},
				{VideoID: "fresh", Score: 0.5},
			}, nil
		},
	}
	s := newTestService(idx, videos, activity, &mockEmbedder{})

	page, err := s.Feed(context.Background(), "u-1", 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, h := range page.Items {
		if h.VideoID == "watched-1" || h.VideoID == "liked-1" {
			t.Fatalf("excluded id in feed: %+v", page.Items)
		}
	}
}

func TestFeed_KNNErrorFallsBack(t *testing.T) {
	videos, activity := embeddedWatch()
	videos.published = []domain.VideoDocument{pubDoc("fallback-1")}
	idx := &mockIndex{
		available: true,
		knnFn: func(_ context.Context, _ *domain.KnnQuery) ([]domain.Hit, error) {
			return nil, domain.ErrIndexUnavailable
		},
	}
	s := newTestService(idx, videos, activity, &mockEmbedder{})

	page, err := s.Feed(context.Background(), "u-1", 1, 10)
	if err != nil {
		t.Fatalf("feed must not fail on index outage: %v", err)
	}
	if page.Engine != domain.EngineFallback {
		t.Errorf("expected fallback engine, got %s", page.Engine)
	}
	if len(page.Items) != 1 || page.Items[0].VideoID != "fallback-1" {
		t.Fatalf("unexpected fallback items: %+v", page.Items)
	}
}

func TestFeed_NoEmbeddingUsesFallback(t *testing.T) {
	videos := &mockVideos{
		byID:      map[string]domain.VideoDocument{},
		published: []domain.VideoDocument{pubDoc("v-1")},
	}
	activity := &mockActivity{}
	idx := &mockIndex{
		available: true,
		knnFn: func(_ context.Context, _ *domain.KnnQuery) ([]domain.Hit, error) {
			t.Fatal("KNN must not run without a preference embedding")
			return nil, nil
		},
	}
	s := newTestService(idx, videos, activity, &mockEmbedder{err: errors.New("down")})

	page, err := s.Feed(context.Background(), "u-1", 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Engine != domain.EngineFallback {
		t.Errorf("expected fallback engine, got %s", page.Engine)
	}
}

func TestFeed_BoostQueryFailureKeepsKNN(t *testing.T) {
	videos, activity := embeddedWatch()
	idx := &mockIndex{
		available: true,
		knnFn: func(_ context.Context, _ *domain.KnnQuery) ([]domain.Hit, error) {
			return []domain.Hit{{VideoID: "knn-1", Score: 0.9}}, nil
		},
		lexicalFn: func(_ context.Context, _ *domain.LexicalQuery) ([]domain.Hit, int, error) {
			return nil, 0, domain.ErrIndexUnavailable
		},
	}
	s := newTestService(idx, videos, activity, &mockEmbedder{})

	page, err := s.Feed(context.Background(), "u-1", 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Engine != domain.EngineVectorFusion || len(page.Items) != 1 {
		t.Fatalf("expected KNN-only fusion result, got %+v", page)
	}
}

func TestRelated_KNNPath(t *testing.T) {
	videos := &mockVideos{byID: map[string]domain.VideoDocument{
		"vid-1": pubDoc("vid-1", func(d *domain.VideoDocument) { d.Embedding = []float32{1, 0} }),
	}}
	idx := &mockIndex{
		available: true,
		knnFn: func(_ context.Context, q *domain.KnnQuery) ([]domain.Hit, error) {
			if q.K != 20 || q.NumCandidates != 50 {
				t.Errorf("unexpected knn params: %+v", q)
			}
			if len(q.ExcludeIDs) != 1 || q.ExcludeIDs[0] != "vid-1" {
				t.Errorf("source video not excluded: %v", q.ExcludeIDs)
			}
			return []domain.Hit{{VideoID: "similar-1", Score: 0.8}}, nil
		},
	}
	s := newTestService(idx, videos, &mockActivity{}, &mockEmbedder{})

	hits, engine, err := s.Related(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if engine != domain.EngineVectorFusion || len(hits) != 1 {
		t.Fatalf("unexpected result: %s %+v", engine, hits)
	}
}

func TestRelated_UnpublishedSourceNotFound(t *testing.T) {
	videos := &mockVideos{byID: map[string]domain.VideoDocument{
		"vid-1": {ID: "vid-1", IsPublished: false},
	}}
	s := newTestService(&mockIndex{}, videos, &mockActivity{}, &mockEmbedder{})

	if _, _, err := s.Related(context.Background(), "vid-1"); !errors.Is(err, domain.ErrVideoNotFound) {
		t.Fatalf("expected ErrVideoNotFound, got %v", err)
	}
}

func TestRelated_TagFallbackOverStore(t *testing.T) {
	videos := &mockVideos{
		byID: map[string]domain.VideoDocument{
			"vid-1": pubDoc("vid-1", func(d *domain.VideoDocument) { d.Tags = []string{"golang"} }),
		},
		published: []domain.VideoDocument{
			pubDoc("vid-1", func(d *domain.VideoDocument) { d.Tags = []string{"golang"} }),
			pubDoc("match-small", func(d *domain.VideoDocument) {
				d.Tags = []string{"golang"}
				d.Views = 10
			}),
			pubDoc("match-big", func(d *domain.VideoDocument) {
				d.Tags = []string{"golang"}
				d.Views = 500
			}),
			pubDoc("other", func(d *domain.VideoDocument) { d.Tags = []string{"knitting"} }),
		},
	}
	s := newTestService(&mockIndex{available: false}, videos, &mockActivity{}, &mockEmbedder{})

	hits, engine, err := s.Related(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if engine != domain.EngineFallback {
		t.Errorf("expected fallback engine, got %s", engine)
	}
	if len(hits) != 2 || hits[0].VideoID != "match-big" {
		t.Fatalf("expected views-ordered tag matches without the source, got %+v", hits)
	}
}

func TestTagDiscovery_Validation(t *testing.T) {
	s := newTestService(&mockIndex{}, &mockVideos{}, &mockActivity{}, &mockEmbedder{})
	if _, _, err := s.TagDiscovery(context.Background(), []string{" ", ""}); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestTagDiscovery_IndexPath(t *testing.T) {
	idx := &mockIndex{
		available: true,
		lexicalFn: func(_ context.Context, q *domain.LexicalQuery) ([]domain.Hit, int, error) {
			if len(q.RequireTags) != 2 {
				t.Errorf("tags not required: %+v", q)
			}
			return []domain.Hit{{VideoID: "vid-1"}}, 1, nil
		},
	}
	s := newTestService(idx, &mockVideos{}, &mockActivity{}, &mockEmbedder{})

	hits, engine, err := s.TagDiscovery(context.Background(), []string{"golang", "testing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if engine != domain.EngineLexical || len(hits) != 1 {
		t.Fatalf("unexpected result: %s %+v", engine, hits)
	}
}
