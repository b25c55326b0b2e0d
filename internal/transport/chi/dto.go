package chi

import (
	"fmt"
	"strings"
	"time"

	"github.com/clipdeck/vidrank/internal/domain"
	searchuc "github.com/clipdeck/vidrank/internal/usecase/search"
)

type errorCode string

const (
	codeBadRequest             errorCode = "bad_request"
	codeValidationFailed       errorCode = "validation_failed"
	codeVideoNotFound          errorCode = "video_not_found"
	codeIndexUnavailable       errorCode = "index_unavailable"
	codeEmbeddingProviderError errorCode = "embedding_provider_error"
	codeInternalError          errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

type ownerResponse struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Fullname string `json:"fullname,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

type videoResponse struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description,omitempty"`
	Tags            []string      `json:"tags,omitempty"`
	Language        string        `json:"language,omitempty"`
	DurationSeconds int           `json:"durationSeconds,omitempty"`
	Views           int64         `json:"views"`
	Thumbnail       string        `json:"thumbnail,omitempty"`
	PublishedAt     *time.Time    `json:"publishedAt,omitempty"`
	CreatedAt       *time.Time    `json:"createdAt,omitempty"`
	Owner           ownerResponse `json:"owner"`
}

type hitResponse struct {
	VideoID string        `json:"videoId"`
	Score   float64       `json:"score"`
	Video   videoResponse `json:"video"`
}

type pageResponse struct {
	Items      []hitResponse `json:"items"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	TotalItems int           `json:"totalItems"`
	TotalPages int           `json:"totalPages"`
	Engine     string        `json:"engine"`
}

type hitListResponse struct {
	Items  []hitResponse `json:"items"`
	Engine string        `json:"engine"`
}

type suggestionResponse struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Username string `json:"username,omitempty"`
	Fullname string `json:"fullname,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Display  string `json:"display"`
}

type suggestionListResponse struct {
	Items []suggestionResponse `json:"items"`
}

type rebuildResponse struct {
	Indexed int `json:"indexed"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// upsertVideoRequest is the write-side document payload.
type upsertVideoRequest struct {
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Tags            []string   `json:"tags"`
	Language        string     `json:"language"`
	DurationSeconds int        `json:"durationSeconds"`
	Views           int64      `json:"views"`
	IsPublished     *bool      `json:"isPublished"`
	PublishedAt     *time.Time `json:"publishedAt"`
	CreatedAt       *time.Time `json:"createdAt"`
	OwnerID         string     `json:"ownerId"`
	Thumbnail       string     `json:"thumbnail"`
	Transcript      string     `json:"transcript"`
}

func (r *upsertVideoRequest) toDocument(id string) (domain.VideoDocument, error) {
	if strings.TrimSpace(r.Title) == "" {
		return domain.VideoDocument{}, fmt.Errorf("title is required")
	}

	doc := domain.VideoDocument{
		ID:              id,
		Title:           r.Title,
		Description:     r.Description,
		Tags:            r.Tags,
		Language:        r.Language,
		DurationSeconds: r.DurationSeconds,
		Views:           r.Views,
		IsPublished:     true,
		OwnerID:         r.OwnerID,
		Thumbnail:       r.Thumbnail,
		Transcript:      r.Transcript,
		UpdatedAt:       time.Now().UTC(),
	}
	if r.IsPublished != nil {
		doc.IsPublished = *r.IsPublished
	}
	if r.CreatedAt != nil {
		doc.CreatedAt = r.CreatedAt.UTC()
	} else {
		doc.CreatedAt = doc.UpdatedAt
	}
	if r.PublishedAt != nil {
		doc.PublishedAt = r.PublishedAt.UTC()
	} else if doc.IsPublished {
		doc.PublishedAt = doc.CreatedAt
	}
	return doc, nil
}

func videoToResponse(v *domain.VideoDocument) videoResponse {
	resp := videoResponse{
		ID:              v.ID,
		Title:           v.Title,
		Description:     v.Description,
		Tags:            v.Tags,
		Language:        v.Language,
		DurationSeconds: v.DurationSeconds,
		Views:           v.Views,
		Thumbnail:       v.Thumbnail,
		Owner: ownerResponse{
			ID:       v.OwnerID,
			Username: v.OwnerUsername,
			Fullname: v.OwnerFullname,
			Avatar:   v.OwnerAvatar,
		},
	}
	if !v.PublishedAt.IsZero() {
		t := v.PublishedAt
		resp.PublishedAt = &t
	}
	if !v.CreatedAt.IsZero() {
		t := v.CreatedAt
		resp.CreatedAt = &t
	}
	return resp
}

func hitsToResponse(hits []domain.Hit) []hitResponse {
	items := make([]hitResponse, len(hits))
	for i := range hits {
		items[i] = hitResponse{
			VideoID: hits[i].VideoID,
			Score:   hits[i].Score,
			Video:   videoToResponse(&hits[i].Video),
		}
	}
	return items
}

func pageToResponse(p *domain.RankedPage) pageResponse {
	return pageResponse{
		Items:      hitsToResponse(p.Items),
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalItems: p.TotalItems,
		TotalPages: p.TotalPages,
		Engine:     string(p.Engine),
	}
}

func suggestionsToResponse(sugs []searchuc.Suggestion) suggestionListResponse {
	items := make([]suggestionResponse, len(sugs))
	for i, s := range sugs {
		items[i] = suggestionResponse{
			Type:     s.Type,
			ID:       s.ID,
			Title:    s.Title,
			Username: s.Username,
			Fullname: s.Fullname,
			Avatar:   s.Avatar,
			Display:  s.Display,
		}
	}
	return suggestionListResponse{Items: items}
}
