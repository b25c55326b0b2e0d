// Package channel reads denormalized channel display data used to enrich
// index documents and search suggestions.
package channel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/clipdeck/vidrank/internal/db"
	"github.com/clipdeck/vidrank/internal/domain"
)

// store is the consumer interface for channel hashes (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo reads channel hashes.
type Repo struct {
	store  store
	prefix string
}

// New creates a channel repository. keyPrefix namespaces all keys.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, prefix: keyPrefix}
}

// Get returns one channel. Missing channels come back as a zero-value
// Channel with only the ID set, so indexing can proceed without owner data.
func (r *Repo) Get(ctx context.Context, id string) (domain.Channel, error) {
	m, err := r.store.HGetAll(ctx, r.key(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.Channel{ID: id}, nil
		}
		return domain.Channel{}, fmt.Errorf("hgetall channel %s: %w", id, err)
	}
	if len(m) == 0 {
		return domain.Channel{ID: id}, nil
	}
	return parseChannel(id, m), nil
}

// GetMulti returns channels keyed by id. Missing channels are omitted.
func (r *Repo) GetMulti(ctx context.Context, ids []string) (map[string]domain.Channel, error) {
	if len(ids) == 0 {
		return map[string]domain.Channel{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}
	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi channels: %w", err)
	}
	out := make(map[string]domain.Channel, len(ids))
	for i, m := range maps {
		if len(m) == 0 {
			continue
		}
		out[ids[i]] = parseChannel(ids[i], m)
	}
	return out, nil
}

// MatchUsername returns channels whose username contains the query,
// case-insensitive, up to limit. Backed by a key scan; the channel corpus is
// small relative to videos.
func (r *Repo) MatchUsername(ctx context.Context, query string, limit int) ([]domain.Channel, error) {
	if query == "" || limit <= 0 {
		return nil, nil
	}
	keys, err := r.store.Scan(ctx, r.prefix+"channel:*")
	if err != nil {
		return nil, fmt.Errorf("scan channels: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi channels: %w", err)
	}

	needle := strings.ToLower(query)
	out := make([]domain.Channel, 0, limit)
	for i, m := range maps {
		if len(m) == 0 {
			continue
		}
		ch := parseChannel(r.idFromKey(keys[i]), m)
		if strings.Contains(strings.ToLower(ch.Username), needle) {
			out = append(out, ch)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func parseChannel(id string, m map[string]string) domain.Channel {
	return domain.Channel{
		ID:       id,
		Username: m["username"],
		Fullname: m["fullname"],
		Avatar:   m["avatar"],
	}
}

func (r *Repo) key(id string) string {
	return r.prefix + "channel:" + id
}

func (r *Repo) idFromKey(key string) string {
	return strings.TrimPrefix(key, r.prefix+"channel:")
}
