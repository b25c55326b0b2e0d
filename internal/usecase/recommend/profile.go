package recommend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/clipdeck/vidrank/internal/domain"
)

const (
	maxTopTags = 10

	// lazyEmbedWindow is how many of the newest watched videos contribute
	// text to the lazy preference embedding.
	lazyEmbedWindow = 20

	defaultEmbedTimeout = 5 * time.Second
)

// ProfileBuilder derives a transient activity profile from a user's recent
// interactions. Profiles are computed per request and never persisted.
type ProfileBuilder struct {
	activity     ActivityReader
	videos       VideoReader
	embed        Embedder
	embedTimeout time.Duration
	logger       *zap.Logger
}

// NewProfileBuilder creates a profile builder. embedTimeout caps the lazy
// preference-embedding call; non-positive values take the default.
func NewProfileBuilder(activity ActivityReader, videos VideoReader, embed Embedder, embedTimeout time.Duration, logger *zap.Logger) *ProfileBuilder {
	if embedTimeout <= 0 {
		embedTimeout = defaultEmbedTimeout
	}
	return &ProfileBuilder{activity: activity, videos: videos, embed: embed, embedTimeout: embedTimeout, logger: logger}
}

// Build assembles the profile: subscriptions, bounded watch/like history,
// top tags by watch frequency, and a preference embedding. The embedding is
// the mean of the watched videos' vectors; when none carry one, a text
// embedding over the newest watched titles is requested lazily, best-effort.
func (b *ProfileBuilder) Build(ctx context.Context, userID string) (domain.ActivityProfile, error) {
	profile := domain.ActivityProfile{UserID: userID}

	subs, err := b.activity.Subscriptions(ctx, userID)
	if err != nil {
		return profile, fmt.Errorf("subscriptions: %w", err)
	}
	profile.SubscribedChannelIDs = subs

	watched, err := b.activity.WatchHistory(ctx, userID)
	if err != nil {
		return profile, fmt.Errorf("watch history: %w", err)
	}
	profile.WatchedVideoIDs = watched

	liked, err := b.activity.LikedVideos(ctx, userID)
	if err != nil {
		return profile, fmt.Errorf("liked videos: %w", err)
	}
	profile.LikedVideoIDs = liked

	// One bounded batch fetch; ids of deleted videos drop out silently.
	watchedDocs, err := b.videos.FindByIDs(ctx, watched)
	if err != nil {
		return profile, fmt.Errorf("watched documents: %w", err)
	}

	profile.TopTags = topTags(watchedDocs)
	profile.PreferenceEmbedding = b.preferenceEmbedding(ctx, watchedDocs)
	return profile, nil
}

// topTags counts tag frequency over the watched documents and returns up to
// 10 tags by descending frequency. Frequency ties keep first-seen order over
// the most-recent-last iteration.
func topTags(docs []domain.VideoDocument) []string {
	freq := make(map[string]int)
	firstSeen := make(map[string]int)
	order := 0
	for _, doc := range docs {
		for _, tag := range doc.Tags {
			if tag == "" {
				continue
			}
			if _, seen := freq[tag]; !seen {
				firstSeen[tag] = order
				order++
			}
			freq[tag]++
		}
	}
	if len(freq) == 0 {
		return nil
	}

	tags := make([]string, 0, len(freq))
	for tag := range freq {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		if freq[tags[i]] != freq[tags[j]] {
			return freq[tags[i]] > freq[tags[j]]
		}
		return firstSeen[tags[i]] < firstSeen[tags[j]]
	})

	if len(tags) > maxTopTags {
		tags = tags[:maxTopTags]
	}
	return tags
}

// preferenceEmbedding averages the stored embeddings of watched documents.
// When no watched document carries one, it embeds the concatenated
// title+description of the newest watched videos. Any failure yields nil,
// never an error: personalization degrades, the request proceeds.
func (b *ProfileBuilder) preferenceEmbedding(ctx context.Context, watchedDocs []domain.VideoDocument) []float32 {
	var vectors [][]float32
	for _, doc := range watchedDocs {
		if len(doc.Embedding) > 0 {
			vectors = append(vectors, doc.Embedding)
		}
	}
	if mean := domain.MeanVector(vectors); mean != nil {
		return mean
	}
	if len(watchedDocs) == 0 {
		return nil
	}

	recent := watchedDocs
	if len(recent) > lazyEmbedWindow {
		recent = recent[len(recent)-lazyEmbedWindow:]
	}
	var sb strings.Builder
	for _, doc := range recent {
		sb.WriteString(doc.Title)
		sb.WriteString("\n")
		sb.WriteString(doc.Description)
		sb.WriteString("\n")
	}
	if strings.TrimSpace(sb.String()) == "" {
		return nil
	}

	ectx, cancel := context.WithTimeout(ctx, b.embedTimeout)
	defer cancel()
	result, err := b.embed.Embed(ectx, sb.String())
	if err != nil {
		b.logger.Warn("Lazy preference embedding failed", zap.Error(err))
		return nil
	}
	return result.Embedding
}
