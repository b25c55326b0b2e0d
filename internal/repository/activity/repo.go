// Package activity reads user interaction data: channel subscriptions as a
// set, watch history and likes as append-only lists (most recent last).
package activity

import (
	"context"
	"fmt"
)

const (
	// watchHistoryWindow bounds how much history feeds a profile.
	watchHistoryWindow = 100
	// likedWindow bounds how many likes feed a profile.
	likedWindow = 50
)

// store is the consumer interface for activity keys (ISP).
type store interface {
	SMembers(ctx context.Context, key string) ([]string, error)
	LRangeTail(ctx context.Context, key string, n int) ([]string, error)
}

// Repo reads activity data for profile building.
type Repo struct {
	store  store
	prefix string
}

// New creates an activity repository. keyPrefix namespaces all keys.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, prefix: keyPrefix}
}

// Subscriptions returns the ids of channels the user follows. Order is
// unspecified.
func (r *Repo) Subscriptions(ctx context.Context, userID string) ([]string, error) {
	ids, err := r.store.SMembers(ctx, r.prefix+"user:"+userID+":subs")
	if err != nil {
		return nil, fmt.Errorf("smembers subs %s: %w", userID, err)
	}
	return ids, nil
}

// WatchHistory returns up to the last 100 watched video ids, most recent
// last. May contain ids of deleted videos.
func (r *Repo) WatchHistory(ctx context.Context, userID string) ([]string, error) {
	ids, err := r.store.LRangeTail(ctx, r.prefix+"user:"+userID+":watched", watchHistoryWindow)
	if err != nil {
		return nil, fmt.Errorf("lrange watched %s: %w", userID, err)
	}
	return ids, nil
}

// LikedVideos returns up to the last 50 liked video ids, most recent last.
func (r *Repo) LikedVideos(ctx context.Context, userID string) ([]string, error) {
	ids, err := r.store.LRangeTail(ctx, r.prefix+"user:"+userID+":liked", likedWindow)
	if err != nil {
		return nil, fmt.Errorf("lrange liked %s: %w", userID, err)
	}
	return ids, nil
}
