package redis

import (
	"context"

	"github.com/clipdeck/vidrank/internal/db"
)

// SMembers returns all members of a set.
func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	cmd := s.b().Smembers().Key(key).Build()
	members, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpSMembers, Err: err}
	}
	return members, nil
}

// LRangeTail returns the last n list elements in stored order (most recent
// last, matching how the platform appends activity). n <= 0 returns all.
func (s *Store) LRangeTail(ctx context.Context, key string, n int) ([]string, error) {
	start := int64(0)
	if n > 0 {
		start = int64(-n)
	}
	cmd := s.b().Lrange().Key(key).Start(start).Stop(-1).Build()
	items, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpLRange, Err: err}
	}
	return items, nil
}
