package domain

import "fmt"

// SortMode selects the ordering for lexical retrieval.
type SortMode string

const (
	// SortRelevance orders by lexical relevance score.
	SortRelevance SortMode = "relevance"
	// SortDate orders by publish time, newest first.
	SortDate SortMode = "date"
	// SortViews orders by view count, then publish time.
	SortViews SortMode = "views"
)

// ParseSortMode parses a sort mode string; empty input means relevance.
func ParseSortMode(s string) (SortMode, error) {
	switch SortMode(s) {
	case "", SortRelevance:
		return SortRelevance, nil
	case SortDate:
		return SortDate, nil
	case SortViews:
		return SortViews, nil
	default:
		return "", fmt.Errorf("%w: unknown sort mode %q", ErrInvalidQuery, s)
	}
}

// LexicalQuery is the typed input for index-backed text retrieval.
// Only published documents are ever matched.
type LexicalQuery struct {
	// Query is the raw user query matched fuzzily across the weighted text
	// fields (title, tags, description, transcript).
	Query string

	// Synonyms is the alias-expanded term set (including the original) used
	// for an optional recall boost. Empty when no alias matched.
	Synonyms []string

	// SubscribedOwnerIDs boosts documents owned by these channels.
	SubscribedOwnerIDs []string

	// BoostTags boosts documents carrying any of these tags.
	BoostTags []string

	// BoostRequired requires at least one owner/tag boost clause to match
	// instead of treating them as optional. Used by recommendation blending,
	// where the query has no text component and would otherwise match the
	// whole corpus.
	BoostRequired bool

	// RequireTags restricts matches to documents carrying at least one of
	// these tags. Used by tag discovery; empty means no restriction.
	RequireTags []string

	// TextMatchRequired controls whether Query must match the text fields.
	// False for pure boost queries (recommendation blending, tag discovery).
	TextMatchRequired bool

	// PrefixBoost adds a phrase-prefix boost over title/tags/description for
	// partial queries.
	PrefixBoost bool

	// ExcludeIDs removes specific documents from the result set.
	ExcludeIDs []string

	Sort   SortMode
	Offset int
	Limit  int
}

// KnnQuery is the typed input for semantic (vector) retrieval.
// The vector must be non-nil, unit length, and of corpus dimensionality;
// callers skip the semantic leg entirely when no embedding is available.
type KnnQuery struct {
	Vector []float32

	// K is the number of neighbours to return.
	K int

	// NumCandidates controls search breadth; must be >= K, 2-3x K recommended.
	NumCandidates int

	// ExcludeIDs removes already seen/liked documents from the result set.
	ExcludeIDs []string
}

// FallbackQuery is the typed input for the heuristic scorer that runs
// directly over the document store when the index is unavailable.
type FallbackQuery struct {
	// Query is substring-matched (case-insensitive) against title,
	// description, and tags. Empty for recommendation scoring, where the
	// match set is "all published, not yet watched".
	Query string

	SubscribedOwnerIDs []string
	TopTags            []string
	ExcludeIDs         []string

	Sort     SortMode
	Page     int
	PageSize int
}
