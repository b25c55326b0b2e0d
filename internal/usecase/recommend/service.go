// Package recommend builds personalized feeds, related-video lists, and
// tag-based discovery. Retrieval failures degrade to the heuristic fallback
// scorer over the document store and are never fatal to a request.
package recommend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/clipdeck/vidrank/internal/domain"
	"github.com/clipdeck/vidrank/internal/metrics"
	"github.com/clipdeck/vidrank/internal/usecase/fallback"
)

const (
	// minFeedK / minFeedCandidates floor the KNN parameters so small pages
	// still pull enough neighbours for union-dedupe.
	minFeedK          = 40
	minFeedCandidates = 80

	// boostQuerySize is the secondary lexical query size for feed blending.
	boostQuerySize = 20

	relatedLimit      = 20
	relatedCandidates = 50
	tagDiscoveryLimit = 20
)

// Limits bounds feed pagination and puts an independent deadline on every
// index call, so a stalled index degrades like a failed one.
type Limits struct {
	DefaultPageSize int
	MaxPageSize     int
	IndexTimeout    time.Duration
}

func (l Limits) withDefaults() Limits {
	if l.DefaultPageSize <= 0 {
		l.DefaultPageSize = 10
	}
	if l.MaxPageSize <= 0 {
		l.MaxPageSize = 50
	}
	if l.IndexTimeout <= 0 {
		l.IndexTimeout = 3 * time.Second
	}
	return l
}

// Service orchestrates recommendation retrieval.
type Service struct {
	index        Index
	videos       VideoReader
	profiles     *ProfileBuilder
	indexEnabled bool
	limits       Limits
	logger       *zap.Logger
	now          func() time.Time
}

// New creates a recommendation service. Zero fields in limits take sane
// defaults.
func New(index Index, videos VideoReader, profiles *ProfileBuilder, indexEnabled bool, limits Limits, logger *zap.Logger) *Service {
	return &Service{
		index:        index,
		videos:       videos,
		profiles:     profiles,
		indexEnabled: indexEnabled,
		limits:       limits.withDefaults(),
		logger:       logger,
		now:          time.Now,
	}
}

// Feed returns one page of the personalized feed. Videos the user already
// watched or liked never appear, on any path.
func (s *Service) Feed(ctx context.Context, userID string, page, pageSize int) (domain.RankedPage, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.RankedPage{}, fmt.Errorf("user id is required: %w", domain.ErrInvalidID)
	}
	page, pageSize = s.clampPage(page, pageSize)

	profile, err := s.profiles.Build(ctx, userID)
	if err != nil {
		return domain.RankedPage{}, fmt.Errorf("build profile: %w", err)
	}

	if s.indexEnabled && profile.PreferenceEmbedding != nil && s.index.Available(ctx) {
		result, ok := s.feedFromIndex(ctx, &profile, page, pageSize)
		if ok {
			metrics.RankingRequestsTotal.WithLabelValues("feed", string(domain.EngineVectorFusion)).Inc()
			return result, nil
		}
		metrics.RankingFallbacksTotal.WithLabelValues("feed", "index_error").Inc()
	} else {
		reason := "index_unavailable"
		if profile.PreferenceEmbedding == nil {
			reason = "no_embedding"
		}
		metrics.RankingFallbacksTotal.WithLabelValues("feed", reason).Inc()
	}

	return s.feedFallback(ctx, &profile, page, pageSize)
}

// feedFromIndex runs KNN on the preference embedding and blends in a
// secondary lexical query boosting subscribed owners and top tags,
// union-deduped first-occurrence-wins. Returns ok=false when the index
// cannot serve, so the caller degrades.
func (s *Service) feedFromIndex(
	ctx context.Context, profile *domain.ActivityProfile, page, pageSize int,
) (domain.RankedPage, bool) {
	exclude := profile.ExclusionIDs()

	k := 2 * pageSize
	if k < minFeedK {
		k = minFeedK
	}
	candidates := 3 * pageSize
	if candidates < minFeedCandidates {
		candidates = minFeedCandidates
	}

	knnHits, err := s.knn(ctx, &domain.KnnQuery{
		Vector:        profile.PreferenceEmbedding,
		K:             k,
		NumCandidates: candidates,
		ExcludeIDs:    exclude,
	})
	if err != nil {
		s.logger.Warn("Feed KNN failed", zap.String("user_id", profile.UserID), zap.Error(err))
		return domain.RankedPage{}, false
	}

	union := knnHits
	if len(profile.SubscribedChannelIDs) > 0 || len(profile.TopTags) > 0 {
		size := pageSize
		if size < boostQuerySize {
			size = boostQuerySize
		}
		boostHits, _, err := s.lexical(ctx, &domain.LexicalQuery{
			SubscribedOwnerIDs: profile.SubscribedChannelIDs,
			BoostTags:          profile.TopTags,
			BoostRequired:      true,
			ExcludeIDs:         exclude,
			Limit:              size,
		})
		if err != nil {
			// The KNN leg already succeeded; losing the boost blend only
			// costs quality.
			s.logger.Warn("Feed boost query failed", zap.String("user_id", profile.UserID), zap.Error(err))
		} else {
			union = dedupeFirstWins(knnHits, boostHits)
		}
	}

	union = dropExcluded(union, profile.ExclusionSet())
	if len(union) == 0 {
		return domain.RankedPage{}, false
	}

	items := domain.Paginate(union, page, pageSize)
	total := len(union)
	if consumed := (page-1)*pageSize + len(items); consumed > total {
		total = consumed
	}
	return domain.NewRankedPage(items, page, pageSize, total, domain.EngineVectorFusion), true
}

func (s *Service) feedFallback(
	ctx context.Context, profile *domain.ActivityProfile, page, pageSize int,
) (domain.RankedPage, error) {
	docs, err := s.videos.ListPublished(ctx)
	if err != nil {
		return domain.RankedPage{}, fmt.Errorf("list published videos: %w", err)
	}
	hits := fallback.Recommend(docs, &domain.FallbackQuery{
		SubscribedOwnerIDs: profile.SubscribedChannelIDs,
		TopTags:            profile.TopTags,
		ExcludeIDs:         profile.ExclusionIDs(),
	}, s.now())

	metrics.RankingRequestsTotal.WithLabelValues("feed", string(domain.EngineFallback)).Inc()
	return domain.NewRankedPage(
		domain.Paginate(hits, page, pageSize),
		page, pageSize, len(hits), domain.EngineFallback,
	), nil
}

// Related returns up to 20 videos similar to the given one: KNN on its
// embedding when possible, tag-based lexical retrieval otherwise, heuristic
// tag match over the document store as the last resort.
func (s *Service) Related(ctx context.Context, videoID string) ([]domain.Hit, domain.Engine, error) {
	if strings.TrimSpace(videoID) == "" {
		return nil, "", fmt.Errorf("video id is required: %w", domain.ErrInvalidID)
	}

	video, err := s.videos.FindByID(ctx, videoID)
	if err != nil {
		return nil, "", fmt.Errorf("find video %s: %w", videoID, err)
	}
	if !video.IsPublished {
		return nil, "", domain.ErrVideoNotFound
	}

	indexUp := s.indexEnabled && s.index.Available(ctx)

	if indexUp && len(video.Embedding) > 0 {
		hits, err := s.knn(ctx, &domain.KnnQuery{
			Vector:        video.Embedding,
			K:             relatedLimit,
			NumCandidates: relatedCandidates,
			ExcludeIDs:    []string{videoID},
		})
		if err != nil {
			s.logger.Warn("Related KNN failed", zap.String("video_id", videoID), zap.Error(err))
		} else if len(hits) > 0 {
			metrics.RankingRequestsTotal.WithLabelValues("related", string(domain.EngineVectorFusion)).Inc()
			return hits, domain.EngineVectorFusion, nil
		}
	}

	if indexUp && len(video.Tags) > 0 {
		hits, _, err := s.lexical(ctx, &domain.LexicalQuery{
			BoostTags:     video.Tags,
			BoostRequired: true,
			ExcludeIDs:    []string{videoID},
			Limit:         relatedLimit,
		})
		if err != nil {
			s.logger.Warn("Related tag query failed", zap.String("video_id", videoID), zap.Error(err))
		} else if len(hits) > 0 {
			metrics.RankingRequestsTotal.WithLabelValues("related", string(domain.EngineLexical)).Inc()
			return hits, domain.EngineLexical, nil
		}
	}

	hits, err := s.relatedFallback(ctx, &video)
	if err != nil {
		return nil, "", err
	}
	metrics.RankingRequestsTotal.WithLabelValues("related", string(domain.EngineFallback)).Inc()
	return hits, domain.EngineFallback, nil
}

func (s *Service) relatedFallback(ctx context.Context, video *domain.VideoDocument) ([]domain.Hit, error) {
	docs, err := s.videos.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("list published videos: %w", err)
	}
	var hits []domain.Hit
	for _, doc := range docs {
		if doc.ID == video.ID || !sharesTag(doc.Tags, video.Tags) {
			continue
		}
		hits = append(hits, domain.Hit{VideoID: doc.ID, Video: doc})
	}
	sortByViews(hits)
	if len(hits) > relatedLimit {
		hits = hits[:relatedLimit]
	}
	return hits, nil
}

// TagDiscovery returns up to 20 published videos carrying at least one of
// the given tags.
func (s *Service) TagDiscovery(ctx context.Context, tags []string) ([]domain.Hit, domain.Engine, error) {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			cleaned = append(cleaned, tag)
		}
	}
	if len(cleaned) == 0 {
		return nil, "", fmt.Errorf("at least one tag is required: %w", domain.ErrInvalidQuery)
	}

	if s.indexEnabled && s.index.Available(ctx) {
		hits, _, err := s.lexical(ctx, &domain.LexicalQuery{
			RequireTags: cleaned,
			Limit:       tagDiscoveryLimit,
		})
		if err != nil {
			s.logger.Warn("Tag discovery query failed", zap.Strings("tags", cleaned), zap.Error(err))
		} else {
			metrics.RankingRequestsTotal.WithLabelValues("tag-discovery", string(domain.EngineLexical)).Inc()
			return hits, domain.EngineLexical, nil
		}
	}

	docs, err := s.videos.ListPublished(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("list published videos: %w", err)
	}
	var hits []domain.Hit
	for _, doc := range docs {
		if !sharesTag(doc.Tags, cleaned) {
			continue
		}
		hits = append(hits, domain.Hit{VideoID: doc.ID, Video: doc})
	}
	sortByViews(hits)
	if len(hits) > tagDiscoveryLimit {
		hits = hits[:tagDiscoveryLimit]
	}
	metrics.RankingRequestsTotal.WithLabelValues("tag-discovery", string(domain.EngineFallback)).Inc()
	return hits, domain.EngineFallback, nil
}

// dedupeFirstWins unions the lists, keeping the first occurrence of each id.
func dedupeFirstWins(lists ...[]domain.Hit) []domain.Hit {
	seen := make(map[string]struct{})
	var out []domain.Hit
	for _, list := range lists {
		for _, h := range list {
			if _, dup := seen[h.VideoID]; dup {
				continue
			}
			seen[h.VideoID] = struct{}{}
			out = append(out, h)
		}
	}
	return out
}

// dropExcluded enforces the exclusion guarantee even if an index document
// slipped through the query-side filter.
func dropExcluded(hits []domain.Hit, excluded map[string]struct{}) []domain.Hit {
	out := hits[:0]
	for _, h := range hits {
		if _, skip := excluded[h.VideoID]; skip {
			continue
		}
		out = append(out, h)
	}
	return out
}

func sharesTag(tags, wanted []string) bool {
	for _, t := range tags {
		for _, w := range wanted {
			if t == w {
				return true
			}
		}
	}
	return false
}

func sortByViews(hits []domain.Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Video.Views != hits[j].Video.Views {
			return hits[i].Video.Views > hits[j].Video.Views
		}
		if !hits[i].Video.PublishedAt.Equal(hits[j].Video.PublishedAt) {
			return hits[i].Video.PublishedAt.After(hits[j].Video.PublishedAt)
		}
		return hits[i].VideoID < hits[j].VideoID
	})
}

// lexical and knn give each index call its own deadline so a stalled index
// cannot hold a feed request past WriteTimeout.
func (s *Service) lexical(ctx context.Context, q *domain.LexicalQuery) ([]domain.Hit, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.limits.IndexTimeout)
	defer cancel()
	return s.index.Lexical(ctx, q)
}

func (s *Service) knn(ctx context.Context, q *domain.KnnQuery) ([]domain.Hit, error) {
	ctx, cancel := context.WithTimeout(ctx, s.limits.IndexTimeout)
	defer cancel()
	return s.index.KNN(ctx, q)
}

func (s *Service) clampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = s.limits.DefaultPageSize
	}
	if pageSize > s.limits.MaxPageSize {
		pageSize = s.limits.MaxPageSize
	}
	return page, pageSize
}
