package db

// Hash field names shared by the document store, the indexing path, and the
// FT query builders. The index schema is built over these names.
const (
	FieldID            = "id"
	FieldTitle         = "title"
	FieldDescription   = "description"
	FieldTagsText      = "tags_text" // space-joined tags for full-text matching
	FieldTranscript    = "transcript"
	FieldTags          = "tags" // comma-separated tags for TAG filtering
	FieldLanguage      = "language"
	FieldDuration      = "duration_seconds"
	FieldViews         = "views"
	FieldOwnerID       = "owner_id"
	FieldOwnerUsername = "owner_username"
	FieldOwnerFullname = "owner_fullname"
	FieldOwnerAvatar   = "owner_avatar"
	FieldThumbnail     = "thumbnail"
	FieldPublished     = "is_published"
	FieldPublishedAt   = "published_at"
	FieldCreatedAt     = "created_at"
	FieldUpdatedAt     = "updated_at"
	FieldEmbedding     = "embedding"
)

// LexicalQuery is the wire-level input for weighted full-text search.
// Field weights (title 3, tags 2, description 1, transcript 0.5) live in the
// FT schema, so the query only names the fields.
type LexicalQuery struct {
	IndexName string

	// Query is fuzzy-OR-matched across the text fields when TextMatchRequired.
	Query             string
	TextMatchRequired bool

	// Optional (boost-only) clauses.
	Synonyms    []string // synonym-expanded terms
	OwnerBoost  []string // subscribed channel ids, matched on the owner tag
	TagBoost    []string // preferred tags
	PrefixBoost bool     // phrase-prefix boost over title/tags/description

	// BoostRequired turns the owner/tag boost clauses into a required OR
	// group (at least one must match). Used by recommendation blending.
	BoostRequired bool

	// RequireTags restricts matches to documents carrying at least one tag.
	RequireTags []string

	PublishedOnly bool
	ExcludeIDs    []string

	// SortField overrides relevance ordering ("published_at", "views").
	// Empty means BM25 relevance with WITHSCORES.
	SortField string

	Offset int
	Limit  int
}

// KNNQuery is the wire-level input for vector similarity search.
type KNNQuery struct {
	IndexName string
	Vector    []float32
	K         int

	// NumCandidates maps to the HNSW EF_RUNTIME parameter (search breadth).
	NumCandidates int

	PublishedOnly bool
	ExcludeIDs    []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
