package domain

import "time"

// VideoDocument is the retrievable unit. Display fields (OwnerUsername,
// OwnerAvatar, Thumbnail) are denormalized into the search index so hits can
// be rendered without a join against the channel store.
type VideoDocument struct {
	ID              string
	Title           string
	Description     string
	Tags            []string
	Language        string
	DurationSeconds int
	Views           int64
	IsPublished     bool
	PublishedAt     time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	OwnerID         string
	OwnerUsername   string
	OwnerFullname   string
	OwnerAvatar     string
	Thumbnail       string
	Transcript      string

	// Embedding is the unit-L2-normalized content vector. Nil until computed
	// by the indexing path; constant dimensionality across the corpus.
	Embedding []float32
}

// HasTag reports whether the document carries the given tag.
func (v *VideoDocument) HasTag(tag string) bool {
	for _, t := range v.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Channel holds the denormalized owner fields copied into index documents.
type Channel struct {
	ID       string
	Username string
	Fullname string
	Avatar   string
}

// Hit is a single ranked result. Score is on an engine-specific scale:
// fused RRF scores and fallback heuristic scores are not comparable.
type Hit struct {
	VideoID string
	Score   float64
	Video   VideoDocument
}

// Engine identifies which retrieval path produced a result set.
// Reported for diagnostics only; callers must not branch on it.
type Engine string

const (
	// EngineHybrid is lexical + semantic retrieval fused via RRF.
	EngineHybrid Engine = "hybrid"
	// EngineLexical is index-backed lexical retrieval without a semantic leg.
	EngineLexical Engine = "lexical"
	// EngineVectorFusion is KNN retrieval blended with a lexical boost query.
	EngineVectorFusion Engine = "vector-fusion"
	// EngineFallback is the heuristic scorer over the document store.
	EngineFallback Engine = "fallback"
)

// RankedPage is one page of an ordered result list.
type RankedPage struct {
	Items      []Hit
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
	Engine     Engine
}

// NewRankedPage computes TotalPages from the item count.
func NewRankedPage(items []Hit, page, pageSize, total int, engine Engine) RankedPage {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	return RankedPage{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: totalPages,
		Engine:     engine,
	}
}

// Paginate returns the page-th slice of hits (1-based) without reordering.
func Paginate(hits []Hit, page, pageSize int) []Hit {
	if page < 1 || pageSize < 1 {
		return nil
	}
	start := (page - 1) * pageSize
	if start >= len(hits) {
		return nil
	}
	end := start + pageSize
	if end > len(hits) {
		end = len(hits)
	}
	return hits[start:end]
}
