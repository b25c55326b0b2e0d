// Package search implements hybrid video search: weighted lexical retrieval
// and KNN retrieval issued concurrently, fused by reciprocal rank, with a
// heuristic document-store fallback when the index cannot serve.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/clipdeck/vidrank/internal/domain"
	"github.com/clipdeck/vidrank/internal/metrics"
	"github.com/clipdeck/vidrank/internal/usecase/fallback"
)

const (
	// minKNNSize keeps semantic recall reasonable on small pages.
	minKNNSize = 20

	// candidateFactor scales KNN search breadth relative to k.
	candidateFactor = 3

	maxTitleSuggestions   = 5
	maxChannelSuggestions = 3
	minSuggestionQueryLen = 2
)

// Request carries one search invocation.
type Request struct {
	Query string

	// UserID personalizes ranking with subscription boosts when set.
	UserID string

	Sort     domain.SortMode
	Page     int
	PageSize int
}

// Limits bounds pagination and gives each external call an independent
// timeout, so a hung provider degrades the same way a failed one does.
type Limits struct {
	DefaultPageSize int
	MaxPageSize     int
	EmbedTimeout    time.Duration
	IndexTimeout    time.Duration
}

func (l Limits) withDefaults() Limits {
	if l.DefaultPageSize <= 0 {
		l.DefaultPageSize = 10
	}
	if l.MaxPageSize <= 0 {
		l.MaxPageSize = 50
	}
	if l.EmbedTimeout <= 0 {
		l.EmbedTimeout = 5 * time.Second
	}
	if l.IndexTimeout <= 0 {
		l.IndexTimeout = 3 * time.Second
	}
	return l
}

// Suggestion is one autocomplete entry, either a video title or a channel.
type Suggestion struct {
	Type     string // "video" or "channel"
	ID       string
	Title    string
	Username string
	Fullname string
	Avatar   string
	Display  string
}

// Service handles search requests end to end.
type Service struct {
	index        Index
	videos       VideoReader
	channels     ChannelMatcher
	activity     SubscriptionReader
	embed        Embedder
	indexEnabled bool
	limits       Limits
	logger       *zap.Logger
	now          func() time.Time
}

// New creates a search service. indexEnabled gates the whole index path so
// an unconfigured index short-circuits to the fallback without probing.
// Zero fields in limits take sane defaults.
func New(
	index Index,
	videos VideoReader,
	channels ChannelMatcher,
	activity SubscriptionReader,
	embed Embedder,
	indexEnabled bool,
	limits Limits,
	logger *zap.Logger,
) *Service {
	return &Service{
		index:        index,
		videos:       videos,
		channels:     channels,
		activity:     activity,
		embed:        embed,
		indexEnabled: indexEnabled,
		limits:       limits.withDefaults(),
		logger:       logger,
		now:          time.Now,
	}
}

// Search runs the hybrid retrieval pipeline and returns one ranked page.
// Index and embedding failures degrade the ranking, never fail the request.
func (s *Service) Search(ctx context.Context, req *Request) (domain.RankedPage, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return domain.RankedPage{}, fmt.Errorf("search query is required: %w", domain.ErrInvalidQuery)
	}
	page, pageSize := s.clampPage(req.Page, req.PageSize)

	// The zero value means relevance: callers that never set a sort still
	// get the full hybrid pipeline.
	sortMode := req.Sort
	if sortMode == "" {
		sortMode = domain.SortRelevance
	}

	subs := s.subscriptions(ctx, req.UserID)

	if !s.indexEnabled || !s.index.Available(ctx) {
		metrics.RankingFallbacksTotal.WithLabelValues("search", "index_unavailable").Inc()
		return s.searchFallback(ctx, query, subs, sortMode, page, pageSize)
	}

	result, err := s.searchIndex(ctx, query, subs, sortMode, page, pageSize)
	if err != nil {
		s.logger.Warn("Index search failed, degrading to fallback",
			zap.String("query", query), zap.Error(err))
		metrics.RankingFallbacksTotal.WithLabelValues("search", "index_error").Inc()
		return s.searchFallback(ctx, query, subs, sortMode, page, pageSize)
	}
	return result, nil
}

// searchIndex runs the lexical leg and the semantic leg concurrently, then
// fuses. The semantic leg is skipped (never fatal) when embedding or KNN
// fails; a lexical failure aborts to the caller for fallback handling.
func (s *Service) searchIndex(
	ctx context.Context, query string, subs []string,
	sortMode domain.SortMode, page, pageSize int,
) (domain.RankedPage, error) {
	synonyms := aliasExpansion(query)

	// Explicit sort replaces relevance ranking entirely: paginate in the
	// index, no semantic leg to fuse.
	if sortMode != domain.SortRelevance {
		hits, total, err := s.lexical(ctx, &domain.LexicalQuery{
			Query:              query,
			Synonyms:           synonyms,
			SubscribedOwnerIDs: subs,
			TextMatchRequired:  true,
			PrefixBoost:        true,
			Sort:               sortMode,
			Offset:             (page - 1) * pageSize,
			Limit:              pageSize,
		})
		if err != nil {
			return domain.RankedPage{}, err
		}
		metrics.RankingRequestsTotal.WithLabelValues("search", string(domain.EngineLexical)).Inc()
		return domain.NewRankedPage(hits, page, pageSize, total, domain.EngineLexical), nil
	}

	// Fusion needs the full prefix of both lists up to the requested page so
	// pagination over the fused order stays stable.
	fetchSize := page * pageSize
	k := fetchSize
	if k < minKNNSize {
		k = minKNNSize
	}

	var (
		lexHits  []domain.Hit
		lexTotal int
		lexErr   error
		knnHits  []domain.Hit
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lexHits, lexTotal, lexErr = s.lexical(gctx, &domain.LexicalQuery{
			Query:              query,
			Synonyms:           synonyms,
			SubscribedOwnerIDs: subs,
			TextMatchRequired:  true,
			PrefixBoost:        true,
			Limit:              fetchSize,
		})
		return nil
	})
	g.Go(func() error {
		emb, err := s.embedQuery(gctx, query)
		if err != nil {
			s.logger.Warn("Query embedding failed, skipping semantic leg", zap.Error(err))
			metrics.RankingFallbacksTotal.WithLabelValues("search", "no_embedding").Inc()
			return nil
		}
		hits, err := s.knn(gctx, &domain.KnnQuery{
			Vector:        emb.Embedding,
			K:             k,
			NumCandidates: k * candidateFactor,
		})
		if err != nil {
			s.logger.Warn("KNN search failed, skipping semantic leg", zap.Error(err))
			return nil
		}
		knnHits = hits
		return nil
	})
	_ = g.Wait()

	if lexErr != nil {
		return domain.RankedPage{}, lexErr
	}

	engine := domain.EngineLexical
	fused := lexHits
	if len(knnHits) > 0 {
		engine = domain.EngineHybrid
		fused = fuseRRF(lexHits, knnHits)
	}

	total := lexTotal
	if len(fused) > total {
		total = len(fused)
	}

	metrics.RankingRequestsTotal.WithLabelValues("search", string(engine)).Inc()
	return domain.NewRankedPage(domain.Paginate(fused, page, pageSize), page, pageSize, total, engine), nil
}

func (s *Service) searchFallback(
	ctx context.Context, query string, subs []string,
	sortMode domain.SortMode, page, pageSize int,
) (domain.RankedPage, error) {
	docs, err := s.videos.ListPublished(ctx)
	if err != nil {
		return domain.RankedPage{}, fmt.Errorf("list published videos: %w", err)
	}
	hits := fallback.Search(docs, &domain.FallbackQuery{
		Query:              query,
		SubscribedOwnerIDs: subs,
		Sort:               sortMode,
	}, s.now())

	metrics.RankingRequestsTotal.WithLabelValues("search", string(domain.EngineFallback)).Inc()
	return domain.NewRankedPage(
		domain.Paginate(hits, page, pageSize),
		page, pageSize, len(hits), domain.EngineFallback,
	), nil
}

// Suggestions returns autocomplete entries: up to 5 video titles ordered by
// views and up to 3 channels matched by username. Queries shorter than 2
// characters return nothing.
func (s *Service) Suggestions(ctx context.Context, query string) ([]Suggestion, error) {
	query = strings.TrimSpace(query)
	if len(query) < minSuggestionQueryLen {
		return nil, nil
	}
	terms := expandQuery(query)

	titles, err := s.titleSuggestions(ctx, query, terms)
	if err != nil {
		return nil, err
	}

	channels, err := s.channelSuggestions(ctx, terms)
	if err != nil {
		return nil, err
	}

	out := make([]Suggestion, 0, len(titles)+len(channels))
	for _, h := range titles {
		out = append(out, Suggestion{
			Type:    "video",
			ID:      h.VideoID,
			Title:   h.Video.Title,
			Display: h.Video.Title,
		})
	}
	for _, ch := range channels {
		out = append(out, Suggestion{
			Type:     "channel",
			ID:       ch.ID,
			Username: ch.Username,
			Fullname: ch.Fullname,
			Avatar:   ch.Avatar,
			Display:  ch.Username,
		})
	}
	return out, nil
}

func (s *Service) titleSuggestions(ctx context.Context, query string, terms []string) ([]domain.Hit, error) {
	if s.indexEnabled && s.index.Available(ctx) {
		hits, _, err := s.lexical(ctx, &domain.LexicalQuery{
			Query:             query,
			Synonyms:          aliasExpansion(query),
			TextMatchRequired: true,
			PrefixBoost:       true,
			Sort:              domain.SortViews,
			Limit:             maxTitleSuggestions,
		})
		if err == nil {
			return hits, nil
		}
		s.logger.Warn("Index suggestions failed, degrading to scan", zap.Error(err))
	}

	docs, err := s.videos.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("list published videos: %w", err)
	}
	var hits []domain.Hit
	for _, doc := range docs {
		if titleMatchesAny(doc.Title, terms) {
			hits = append(hits, domain.Hit{VideoID: doc.ID, Video: doc})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Video.Views > hits[j].Video.Views
	})
	if len(hits) > maxTitleSuggestions {
		hits = hits[:maxTitleSuggestions]
	}
	return hits, nil
}

func (s *Service) channelSuggestions(ctx context.Context, terms []string) ([]domain.Channel, error) {
	seen := make(map[string]struct{}, maxChannelSuggestions)
	var out []domain.Channel
	for _, term := range terms {
		matches, err := s.channels.MatchUsername(ctx, term, maxChannelSuggestions)
		if err != nil {
			return nil, fmt.Errorf("match channels: %w", err)
		}
		for _, ch := range matches {
			if _, dup := seen[ch.ID]; dup {
				continue
			}
			seen[ch.ID] = struct{}{}
			out = append(out, ch)
			if len(out) == maxChannelSuggestions {
				return out, nil
			}
		}
	}
	return out, nil
}

func (s *Service) subscriptions(ctx context.Context, userID string) []string {
	if userID == "" || s.activity == nil {
		return nil
	}
	subs, err := s.activity.Subscriptions(ctx, userID)
	if err != nil {
		// Personalization is best-effort: an activity-store hiccup must not
		// fail the search.
		s.logger.Warn("Subscription lookup failed", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	return subs
}

// aliasExpansion returns the expanded term set including the original, or
// nil when no alias matched.
func aliasExpansion(query string) []string {
	terms := expandQuery(query)
	if len(terms) == 1 {
		return nil
	}
	return terms
}

func titleMatchesAny(title string, terms []string) bool {
	lower := strings.ToLower(title)
	for _, term := range terms {
		if strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// lexical, knn, and embedQuery give each outbound call its own deadline so
// a stalled index or provider cannot hold the request past WriteTimeout.
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

func (s *Service) embedQuery(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.limits.EmbedTimeout)
	defer cancel()
	return s.embed.Embed(ctx, text)
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
