package domain

// ActivityProfile is a transient per-request aggregation of a user's recent
// activity. It is computed on every request and never persisted.
type ActivityProfile struct {
	UserID string

	// SubscribedChannelIDs is the unbounded set of channels the user follows.
	SubscribedChannelIDs []string

	// WatchedVideoIDs holds up to the last 100 watched ids, most-recent-last.
	WatchedVideoIDs []string

	// LikedVideoIDs holds up to the last 50 liked ids.
	LikedVideoIDs []string

	// TopTags holds up to 10 tags by descending frequency over the watched
	// videos' tags. Frequency ties keep first-seen order over the watched
	// iteration (most-recent-last).
	TopTags []string

	// PreferenceEmbedding is the component-wise mean of the watched videos'
	// embeddings, or a lazily generated text embedding when none carry one.
	// Nil when neither is available.
	PreferenceEmbedding []float32
}

// ExclusionSet returns watched+liked ids as a set for result filtering.
func (p *ActivityProfile) ExclusionSet() map[string]struct{} {
	set := make(map[string]struct{}, len(p.WatchedVideoIDs)+len(p.LikedVideoIDs))
	for _, id := range p.WatchedVideoIDs {
		set[id] = struct{}{}
	}
	for _, id := range p.LikedVideoIDs {
		set[id] = struct{}{}
	}
	return set
}

// ExclusionIDs returns the deduplicated watched+liked id list, watched first.
func (p *ActivityProfile) ExclusionIDs() []string {
	seen := make(map[string]struct{}, len(p.WatchedVideoIDs)+len(p.LikedVideoIDs))
	ids := make([]string, 0, len(p.WatchedVideoIDs)+len(p.LikedVideoIDs))
	for _, id := range p.WatchedVideoIDs {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, id := range p.LikedVideoIDs {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}
