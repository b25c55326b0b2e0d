// Package indexer keeps the search index in sync with the document store:
// single-video upserts on write, deletes, and full rebuilds. Embeddings are
// computed lazily on index, never on the read path.
package indexer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/clipdeck/vidrank/internal/domain"
)

// rebuildBatchSize caps a single pipelined index write during Rebuild.
const rebuildBatchSize = 100

// Service synchronizes video documents into the search index.
type Service struct {
	videos       VideoStore
	index        Index
	channels     ChannelReader
	embed        Embedder
	indexEnabled bool
	logger       *zap.Logger
}

// New creates an indexer service.
func New(
	videos VideoStore, index Index, channels ChannelReader,
	embed Embedder, indexEnabled bool, logger *zap.Logger,
) *Service {
	return &Service{
		videos:       videos,
		index:        index,
		channels:     channels,
		embed:        embed,
		indexEnabled: indexEnabled,
		logger:       logger,
	}
}

// Save persists a video document and refreshes its index entry. Index
// failures are logged, not returned: the document store stays the source of
// truth and a rebuild repairs the index later.
func (s *Service) Save(ctx context.Context, doc *domain.VideoDocument) error {
	if err := s.videos.Save(ctx, doc); err != nil {
		return fmt.Errorf("save video: %w", err)
	}
	if err := s.IndexVideo(ctx, doc.ID); err != nil {
		s.logger.Warn("Index sync failed after save", zap.String("video_id", doc.ID), zap.Error(err))
	}
	return nil
}

// IndexVideo writes one video into the search index. The owner's display
// fields are denormalized in, and a missing content embedding is computed and
// persisted back to the document store first. No-op when indexing is off.
func (s *Service) IndexVideo(ctx context.Context, videoID string) error {
	if !s.indexEnabled {
		return nil
	}
	if strings.TrimSpace(videoID) == "" {
		return fmt.Errorf("video id is required: %w", domain.ErrInvalidID)
	}

	video, err := s.videos.FindByID(ctx, videoID)
	if err != nil {
		return fmt.Errorf("find video %s: %w", videoID, err)
	}

	s.enrichOwner(ctx, &video)
	s.ensureEmbedding(ctx, &video)

	if err := s.index.Upsert(ctx, &video); err != nil {
		return fmt.Errorf("index video %s: %w", videoID, err)
	}
	return nil
}

// Remove deletes a video from both the document store and the index.
func (s *Service) Remove(ctx context.Context, videoID string) error {
	if strings.TrimSpace(videoID) == "" {
		return fmt.Errorf("video id is required: %w", domain.ErrInvalidID)
	}
	if err := s.videos.Delete(ctx, videoID); err != nil {
		return fmt.Errorf("delete video %s: %w", videoID, err)
	}
	if !s.indexEnabled {
		return nil
	}
	if err := s.index.Delete(ctx, videoID); err != nil {
		return fmt.Errorf("deindex video %s: %w", videoID, err)
	}
	return nil
}

// Rebuild drops and recreates the index, then reindexes every stored video
// in batches. Owners are resolved once per distinct channel. Videos without
// embeddings are indexed without one; a later IndexVideo fills them in.
// Returns the number of videos indexed.
func (s *Service) Rebuild(ctx context.Context) (int, error) {
	if !s.indexEnabled {
		return 0, domain.ErrIndexUnavailable
	}

	docs, err := s.videos.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list videos: %w", err)
	}

	owners, err := s.lookupOwners(ctx, docs)
	if err != nil {
		s.logger.Warn("Owner lookup failed during rebuild", zap.Error(err))
		owners = nil
	}

	if err := s.index.Recreate(ctx); err != nil {
		return 0, fmt.Errorf("recreate index: %w", err)
	}

	for i := range docs {
		if owner, ok := owners[docs[i].OwnerID]; ok {
			applyOwner(&docs[i], owner)
		}
	}

	indexed := 0
	for start := 0; start < len(docs); start += rebuildBatchSize {
		end := start + rebuildBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		if err := s.index.UpsertMulti(ctx, docs[start:end]); err != nil {
			return indexed, fmt.Errorf("index batch at %d: %w", start, err)
		}
		indexed += end - start
	}

	s.logger.Info("Index rebuilt", zap.Int("videos", indexed))
	return indexed, nil
}

// EnsureIndex creates the index if it does not exist yet.
func (s *Service) EnsureIndex(ctx context.Context) error {
	if !s.indexEnabled {
		return nil
	}
	return s.index.EnsureIndex(ctx)
}

func (s *Service) enrichOwner(ctx context.Context, video *domain.VideoDocument) {
	if video.OwnerID == "" || video.OwnerUsername != "" {
		return
	}
	owner, err := s.channels.Get(ctx, video.OwnerID)
	if err != nil {
		s.logger.Warn("Owner lookup failed",
			zap.String("video_id", video.ID), zap.String("owner_id", video.OwnerID), zap.Error(err))
		return
	}
	applyOwner(video, owner)
}

// ensureEmbedding computes and persists the content embedding when the
// document has none. Failure leaves the video indexable lexically.
func (s *Service) ensureEmbedding(ctx context.Context, video *domain.VideoDocument) {
	if len(video.Embedding) > 0 {
		return
	}
	result, err := s.embed.Embed(ctx, embeddingText(video))
	if err != nil {
		s.logger.Warn("Embedding failed, indexing without vector",
			zap.String("video_id", video.ID), zap.Error(err))
		return
	}
	video.Embedding = result.Embedding
	if err := s.videos.SaveEmbedding(ctx, video.ID, result.Embedding); err != nil {
		s.logger.Warn("Persisting embedding failed",
			zap.String("video_id", video.ID), zap.Error(err))
	}
}

func (s *Service) lookupOwners(ctx context.Context, docs []domain.VideoDocument) (map[string]domain.Channel, error) {
	seen := make(map[string]struct{})
	ids := make([]string, 0, len(docs))
	for i := range docs {
		id := docs[i].OwnerID
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return s.channels.GetMulti(ctx, ids)
}

func applyOwner(video *domain.VideoDocument, owner domain.Channel) {
	video.OwnerUsername = owner.Username
	video.OwnerFullname = owner.Fullname
	video.OwnerAvatar = owner.Avatar
}

// embeddingText is the canonical content text for a video's vector.
func embeddingText(video *domain.VideoDocument) string {
	return strings.Join([]string{
		video.Title,
		video.Description,
		strings.Join(video.Tags, " "),
	}, "\n")
}
