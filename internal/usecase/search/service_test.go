package search

import (
	"context"
	"errors"
	"testing"
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
	docs []domain.VideoDocument
	err  error
}

func (m *mockVideos) ListPublished(_ context.Context) ([]domain.VideoDocument, error) {
	return m.docs, m.err
}

type mockChannels struct {
	matchFn func(ctx context.Context, query string, limit int) ([]domain.Channel, error)
}

func (m *mockChannels) MatchUsername(ctx context.Context, query string, limit int) ([]domain.Channel, error) {
	if m.matchFn != nil {
		return m.matchFn(ctx, query, limit)
	}
	return nil, nil
}

type mockActivity struct {
	subs []string
	err  error
}

func (m *mockActivity) Subscriptions(_ context.Context, _ string) ([]string, error) {
	return m.subs, m.err
}

type mockEmbedder struct {
	result domain.EmbeddingResult
	err    error
	fn     func(ctx context.Context) (domain.EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, _ string) (domain.EmbeddingResult, error) {
	if m.fn != nil {
		return m.fn(ctx)
	}
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return m.result, nil
}

func newTestService(idx *mockIndex, videos *mockVideos, embed *mockEmbedder) *Service {
	s := New(idx, videos, &mockChannels{}, &mockActivity{}, embed, true, Limits{}, zap.NewNop())
	s.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestSearch_EmptyQuery(t *testing.T) {
	s := newTestService(&mockIndex{}, &mockVideos{}, &mockEmbedder{})
	_, err := s.Search(context.Background(), &Request{Query: "   "})
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestSearch_HybridFusesBothLegs(t *testing.T) {
	idx := &mockIndex{
		available: true,
		lexicalFn: func(_ context.Context, q *domain.LexicalQuery) ([]domain.Hit, int, error) {
			if !q.TextMatchRequired || !q.PrefixBoost {
				t.Errorf("lexical flags not set: %+v", q)
			}
			return []domain.Hit{hit("lex-only", 9), hit("both", 5)}, 2, nil
		},
		knnFn: func(_ context.Context, q *domain.KnnQuery) ([]domain.Hit, error) {
			if q.K != 20 {
				t.Errorf("expected k=20 for small page, got %d", q.K)
			}
			if q.NumCandidates != 60 {
				t.Errorf("expected numCandidates=3k, got %d", q.NumCandidates)
			}
			return []domain.Hit{hit("both", 0.9), hit("knn-only", 0.8)}, nil
		},
	}
	s := newTestService(idx, &mockVideos{}, &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 0}}})

	page, err := s.Search(context.Background(), &Request{Query: "golang", Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Engine != domain.EngineHybrid {
		t.Errorf("expected hybrid engine, got %s", page.Engine)
	}
	if len(page.Items) != 3 {
		t.Fatalf("expected 3 fused items, got %v", ids(page.Items))
	}
	if page.Items[0].VideoID != "both" {
		t.Errorf("expected item in both lists ranked first, got %v", ids(page.Items))
	}
}

func TestSearch_UnsetSortRunsHybrid(t *testing.T) {
	knnCalled := false
	idx := &mockIndex{
		available: true,
		lexicalFn: func(_ context.Context, q *domain.LexicalQuery) ([]domain.Hit, int, error) {
			if q.Sort != "" || q.Offset != 0 {
				t.Errorf("explicit-sort query issued for unset sort: %+v", q)
			}
			return []domain.Hit{hit("lex", 1)}, 1, nil
		},
		knnFn: func(_ context.Context, _ *domain.KnnQuery) ([]domain.Hit, error) {
			knnCalled = true
			return []domain.Hit{hit("knn", 0.9)}, nil
		},
	}
	s := newTestService(idx, &mockVideos{}, &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 0}}})

	page, err := s.Search(context.Background(), &Request{Query: "python", Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !knnCalled {
		t.Fatal("semantic leg skipped when sort is unset")
	}
	if page.Engine != domain.EngineHybrid {
		t.Errorf("expected hybrid engine for unset sort, got %s", page.Engine)
	}
}

func TestSearch_EmbeddingHangSkipsSemanticLeg(t *testing.T) {
	idx := &mockIndex{
		available: true,
		lexicalFn: func(_ context.Context, _ *domain.LexicalQuery) ([]domain.Hit, int, error) {
			return []domain.Hit{hit("a", 1)}, 1, nil
		},
		knnFn: func(_ context.Context, _ *domain.KnnQuery) ([]domain.Hit, error) {
			t.Error("KNN must be skipped when embedding times out")
			return nil, nil
		},
	}
	embed := &mockEmbedder{fn: func(ctx context.Context) (domain.EmbeddingResult, error) {
		<-ctx.Done()
		return domain.EmbeddingResult{}, ctx.Err()
	}}
	s := New(idx, &mockVideos{}, &mockChannels{}, &mockActivity{}, embed, true,
		Limits{EmbedTimeout: 10 * time.Millisecond}, zap.NewNop())

	var (
		page domain.RankedPage
		err  error
	)
	done := make(chan struct{})
	go func() {
		page, err = s.Search(context.Background(), &Request{Query: "golang", Page: 1, PageSize: 10})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("search blocked on a hung embedding call")
	}
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Engine != domain.EngineLexical {
		t.Errorf("expected lexical engine, got %s", page.Engine)
	}
}

func TestSearch_IndexHangFallsBack(t *testing.T) {
	idx := &mockIndex{
		available: true,
		lexicalFn: func(ctx context.Context, _ *domain.LexicalQuery) ([]domain.Hit, int, error) {
			<-ctx.Done()
			return nil, 0, ctx.Err()
		},
	}
	videos := &mockVideos{docs: []domain.VideoDocument{{
		ID: "vid-1", Title: "Python Programming Basics", IsPublished: true,
	}}}
	s := New(idx, videos, &mockChannels{}, &mockActivity{}, &mockEmbedder{err: errors.New("down")}, true,
		Limits{IndexTimeout: 10 * time.Millisecond}, zap.NewNop())

	var (
		page domain.RankedPage
		err  error
	)
	done := make(chan struct{})
	go func() {
		page, err = s.Search(context.Background(), &Request{Query: "python", Page: 1, PageSize: 10})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("search blocked on a hung index call")
	}
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Engine != domain.EngineFallback {
		t.Errorf("expected fallback engine, got %s", page.Engine)
	}
	if len(page.Items) != 1 || page.Items[0].VideoID != "vid-1" {
		t.Fatalf("unexpected fallback items: %v", ids(page.Items))
	}
}

func TestSearch_PageSizeClamped(t *testing.T) {
	var gotLimit int
	idx := &mockIndex{
		available: true,
		lexicalFn: func(_ context.Context, q *domain.LexicalQuery) ([]domain.Hit, int, error) {
			gotLimit = q.Limit
			return []domain.Hit{hit("a", 1)}, 1, nil
		},
	}
	s := newTestService(idx, &mockVideos{}, &mockEmbedder{err: errors.New("down")})

	page, err := s.Search(context.Background(), &Request{Query: "golang", Page: 1, PageSize: 100000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.PageSize != 50 || gotLimit != 50 {
		t.Errorf("expected page size clamped to 50, got %d (limit %d)", page.PageSize, gotLimit)
	}

	page, err = s.Search(context.Background(), &Request{Query: "golang", Page: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.PageSize != 10 || gotLimit != 10 {
		t.Errorf("expected default page size 10, got %d (limit %d)", page.PageSize, gotLimit)
	}
}

func TestSearch_EmbeddingFailureDegradesToLexical(t *testing.T) {
	idx := &mockIndex{
		available: true,
		lexicalFn: func(_ context.Context, _ *domain.LexicalQuery) ([]domain.Hit, int, error) {
			return []domain.Hit{hit("a", 1)}, 1, nil
		},
		knnFn: func(_ context.Context, _ *domain.KnnQuery) ([]domain.Hit, error) {
			t.Fatal("KNN must be skipped when embedding fails")
			return nil, nil
		},
	}
	s := newTestService(idx, &mockVideos{}, &mockEmbedder{err: domain.ErrEmbeddingProviderError})

	page, err := s.Search(context.Background(), &Request{Query: "golang", Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("request must not fail on embedding outage: %v", err)
	}
	if page.Engine != domain.EngineLexical {
		t.Errorf("expected lexical engine, got %s", page.Engine)
	}
}

func TestSearch_LexicalErrorFallsBack(t *testing.T) {
	idx := &mockIndex{
		available: true,
		lexicalFn: func(_ context.Context, _ *domain.LexicalQuery) ([]domain.Hit, int, error) {
			return nil, 0, domain.ErrIndexUnavailable
		},
	}
	videos := &mockVideos{docs: []domain.VideoDocument{{
		ID: "vid-1", Title: "Python Programming Basics", IsPublished: true,
	}}}
	s := newTestService(idx, videos, &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}})

	page, err := s.Search(context.Background(), &Request{Query: "python", Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("request must not fail on index outage: %v", err)
	}
	if page.Engine != domain.EngineFallback {
		t.Errorf("expected fallback engine, got %s", page.Engine)
	}
	if len(page.Items) != 1 || page.Items[0].VideoID != "vid-1" {
		t.Fatalf("unexpected fallback items: %v", ids(page.Items))
	}
}

func TestSearch_IndexUnavailableFallsBack(t *testing.T) {
	videos := &mockVideos{docs: []domain.VideoDocument{
		{ID: "vid-1", Title: "Python Programming Basics", IsPublished: true},
		{ID: "vid-2", Title: "Knitting 101", IsPublished: true},
	}}
	s := newTestService(&mockIndex{available: false}, videos, &mockEmbedder{})

	page, err := s.Search(context.Background(), &Request{Query: "python", Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Engine != domain.EngineFallback {
		t.Errorf("expected fallback engine, got %s", page.Engine)
	}
	for _, h := range page.Items {
		if h.VideoID == "vid-2" {
			t.Fatalf("non-matching doc returned: %v", ids(page.Items))
		}
	}
}

func TestSearch_ExplicitSortSkipsSemanticLeg(t *testing.T) {
	var gotOffset, gotLimit int
	idx := &mockIndex{
		available: true,
		lexicalFn: func(_ context.Context, q *domain.LexicalQuery) ([]domain.Hit, int, error) {
			gotOffset, gotLimit = q.Offset, q.Limit
			if q.Sort != domain.SortDate {
				t.Errorf("sort mode not propagated: %v", q.Sort)
			}
			return []domain.Hit{hit("a", 0)}, 31, nil
		},
		knnFn: func(_ context.Context, _ *domain.KnnQuery) ([]domain.Hit, error) {
			t.Fatal("KNN must not run for explicit sort")
			return nil, nil
		},
	}
	s := newTestService(idx, &mockVideos{}, &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}})

	page, err := s.Search(context.Background(), &Request{Query: "golang", Sort: domain.SortDate, Page: 3, PageSize: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotOffset != 20 || gotLimit != 10 {
		t.Errorf("expected index-side pagination 20/10, got %d/%d", gotOffset, gotLimit)
	}
	if page.Engine != domain.EngineLexical || page.TotalItems != 31 || page.TotalPages != 4 {
		t.Errorf("unexpected page meta: %+v", page)
	}
}

func TestSearch_PaginationStableOverFusedList(t *testing.T) {
	corpus := make([]domain.Hit, 25)
	for i := range corpus {
		corpus[i] = hit(string(rune('a'+i)), float64(25-i))
	}
	idx := &mockIndex{
		available: true,
		lexicalFn: func(_ context.Context, q *domain.LexicalQuery) ([]domain.Hit, int, error) {
			n := q.Limit
			if n > len(corpus) {
				n = len(corpus)
			}
			return corpus[:n], len(corpus), nil
		},
	}
	s := newTestService(idx, &mockVideos{}, &mockEmbedder{err: errors.New("down")})

	page2, err := s.Search(context.Background(), &Request{Query: "golang", Page: 2, PageSize: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page2.Items) != 10 {
		t.Fatalf("expected 10 items on page 2, got %d", len(page2.Items))
	}
	for i, h := range page2.Items {
		if h.VideoID != corpus[10+i].VideoID {
			t.Fatalf("page 2 not items 11-20: %v", ids(page2.Items))
		}
	}
}

func TestSearch_SubscriptionLookupFailureIsNonFatal(t *testing.T) {
	idx := &mockIndex{
		available: true,
		lexicalFn: func(_ context.Context, q *domain.LexicalQuery) ([]domain.Hit, int, error) {
			if q.SubscribedOwnerIDs != nil {
				t.Errorf("expected no boost ids after activity error")
			}
			return []domain.Hit{hit("a", 1)}, 1, nil
		},
	}
	s := New(idx, &mockVideos{}, &mockChannels{}, &mockActivity{err: errors.New("down")},
		&mockEmbedder{err: errors.New("down")}, true, Limits{}, zap.NewNop())

	if _, err := s.Search(context.Background(), &Request{Query: "golang", UserID: "u-1", Page: 1, PageSize: 10}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSuggestions_ShortQuery(t *testing.T) {
	s := newTestService(&mockIndex{}, &mockVideos{}, &mockEmbedder{})
	got, err := s.Suggestions(context.Background(), "p")
	if err != nil || got != nil {
		t.Fatalf("expected nil for short query, got %v / %v", got, err)
	}
}

func TestSuggestions_CombinesTitlesAndChannels(t *testing.T) {
	idx := &mockIndex{
		available: true,
		lexicalFn: func(_ context.Context, q *domain.LexicalQuery) ([]domain.Hit, int, error) {
			if q.Sort != domain.SortViews || q.Limit != 5 {
				t.Errorf("unexpected suggestion query: %+v", q)
			}
			return []domain.Hit{{VideoID: "vid-1", Video: domain.VideoDocument{ID: "vid-1", Title: "Python Basics"}}}, 1, nil
		},
	}
	channels := &mockChannels{matchFn: func(_ context.Context, query string, _ int) ([]domain.Channel, error) {
		if query == "python" {
			return []domain.Channel{{ID: "chan-1", Username: "pythonista"}}, nil
		}
		return nil, nil
	}}
	s := New(idx, &mockVideos{}, channels, &mockActivity{}, &mockEmbedder{}, true, Limits{}, zap.NewNop())

	got, err := s.Suggestions(context.Background(), "python")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected video + channel suggestion, got %+v", got)
	}
	if got[0].Type != "video" || got[0].Display != "Python Basics" {
		t.Errorf("unexpected video suggestion: %+v", got[0])
	}
	if got[1].Type != "channel" || got[1].Username != "pythonista" {
		t.Errorf("unexpected channel suggestion: %+v", got[1])
	}
}

func TestSuggestions_FallbackSortsByViews(t *testing.T) {
	videos := &mockVideos{docs: []domain.VideoDocument{
		{ID: "vid-small", Title: "python intro", IsPublished: true, Views: 10},
		{ID: "vid-big", Title: "Advanced Python", IsPublished: true, Views: 9000},
	}}
	s := newTestService(&mockIndex{available: false}, videos, &mockEmbedder{})

	got, err := s.Suggestions(context.Background(), "python")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "vid-big" {
		t.Fatalf("expected views-ordered titles, got %+v", got)
	}
}
