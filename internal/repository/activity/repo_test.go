package activity

import (
	"context"
	"errors"
	"testing"
)

type mockStore struct {
	smembersFn   func(ctx context.Context, key string) ([]string, error)
	lrangeTailFn func(ctx context.Context, key string, n int) ([]string, error)
}

func (m *mockStore) SMembers(ctx context.Context, key string) ([]string, error) {
	if m.smembersFn != nil {
		return m.smembersFn(ctx, key)
	}
	return nil, nil
}

func (m *mockStore) LRangeTail(ctx context.Context, key string, n int) ([]string, error) {
	if m.lrangeTailFn != nil {
		return m.lrangeTailFn(ctx, key, n)
	}
	return nil, nil
}

func TestSubscriptions_Key(t *testing.T) {
	ms := &mockStore{smembersFn: func(_ context.Context, key string) ([]string, error) {
		if key != "vidrank:user:u-1:subs" {
			t.Errorf("unexpected key: %s", key)
		}
		return []string{"chan-1", "chan-2"}, nil
	}}
	repo := New(ms, "vidrank:")

	subs, err := repo.Subscriptions(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 subs, got %d", len(subs))
	}
}

func TestWatchHistory_Window(t *testing.T) {
	ms := &mockStore{lrangeTailFn: func(_ context.Context, key string, n int) ([]string, error) {
		if key != "vidrank:user:u-1:watched" {
			t.Errorf("unexpected key: %s", key)
		}
		if n != 100 {
			t.Errorf("expected window 100, got %d", n)
		}
		return []string{"vid-9", "vid-3"}, nil
	}}
	repo := New(ms, "vidrank:")

	ids, err := repo.WatchHistory(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[1] != "vid-3" {
		t.Fatalf("order not preserved: %v", ids)
	}
}

func TestLikedVideos_Window(t *testing.T) {
	var gotN int
	ms := &mockStore{lrangeTailFn: func(_ context.Context, _ string, n int) ([]string, error) {
		gotN = n
		return nil, nil
	}}
	repo := New(ms, "vidrank:")

	if _, err := repo.LikedVideos(context.Background(), "u-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotN != 50 {
		t.Errorf("expected window 50, got %d", gotN)
	}
}

func TestSubscriptions_Error(t *testing.T) {
	ms := &mockStore{smembersFn: func(_ context.Context, _ string) ([]string, error) {
		return nil, errors.New("connection reset")
	}}
	repo := New(ms, "vidrank:")

	if _, err := repo.Subscriptions(context.Background(), "u-1"); err == nil {
		t.Fatal("expected error to propagate")
	}
}
