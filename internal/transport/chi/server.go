// Package chi exposes the ranking service over HTTP. Routes are registered
// on a chi router; handlers translate between JSON payloads and the usecase
// services and map domain sentinels onto status codes.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/clipdeck/vidrank/internal/domain"
	healthuc "github.com/clipdeck/vidrank/internal/usecase/health"
	indexeruc "github.com/clipdeck/vidrank/internal/usecase/indexer"
	recommenduc "github.com/clipdeck/vidrank/internal/usecase/recommend"
	searchuc "github.com/clipdeck/vidrank/internal/usecase/search"
)

// userIDHeader carries the authenticated user identity resolved upstream.
const userIDHeader = "X-User-ID"

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the usecase services behind the HTTP API.
type Server struct {
	search        *searchuc.Service
	recommend     *recommenduc.Service
	indexer       *indexeruc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	recommend *recommenduc.Service,
	indexer *indexeruc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:    search,
		recommend: recommend,
		indexer:   indexer,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrInvalidID, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrVideoNotFound, http.StatusNotFound, codeVideoNotFound),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, codeIndexUnavailable),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProviderError),
	}
	return s
}

// Routes registers all API routes on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", s.Search)
		r.Get("/search/suggestions", s.Suggestions)
		r.Get("/feed", s.Feed)
		r.Get("/discover", s.Discover)

		r.Put("/videos/{videoID}", s.UpsertVideo)
		r.Delete("/videos/{videoID}", s.DeleteVideo)
		r.Get("/videos/{videoID}/related", s.Related)
		r.Post("/videos/{videoID}/reindex", s.ReindexVideo)

		r.Post("/index/rebuild", s.RebuildIndex)
	})
}

// Search handles GET /api/v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	sort, err := domain.ParseSortMode(r.URL.Query().Get("sort"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	page, pageSize := pageParams(r)
	result, err := s.search.Search(r.Context(), &searchuc.Request{
		Query:    r.URL.Query().Get("q"),
		UserID:   userID(r),
		Sort:     sort,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pageToResponse(&result))
}

// Suggestions handles GET /api/v1/search/suggestions.
func (s *Server) Suggestions(w http.ResponseWriter, r *http.Request) {
	sugs, err := s.search.Suggestions(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestionsToResponse(sugs))
}

// Feed handles GET /api/v1/feed.
func (s *Server) Feed(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	result, err := s.recommend.Feed(r.Context(), userID(r), page, pageSize)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageToResponse(&result))
}

// Related handles GET /api/v1/videos/{videoID}/related.
func (s *Server) Related(w http.ResponseWriter, r *http.Request) {
	hits, engine, err := s.recommend.Related(r.Context(), chi.URLParam(r, "videoID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hitListResponse{
		Items:  hitsToResponse(hits),
		Engine: string(engine),
	})
}

// Discover handles GET /api/v1/discover. Tags come comma-separated in the
// tags query parameter.
func (s *Server) Discover(w http.ResponseWriter, r *http.Request) {
	tags := strings.Split(r.URL.Query().Get("tags"), ",")
	hits, engine, err := s.recommend.TagDiscovery(r.Context(), tags)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hitListResponse{
		Items:  hitsToResponse(hits),
		Engine: string(engine),
	})
}

// UpsertVideo handles PUT /api/v1/videos/{videoID}.
func (s *Server) UpsertVideo(w http.ResponseWriter, r *http.Request) {
	var req upsertVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	doc, err := req.toDocument(chi.URLParam(r, "videoID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	if err := s.indexer.Save(r.Context(), &doc); err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, videoToResponse(&doc))
}

// DeleteVideo handles DELETE /api/v1/videos/{videoID}.
func (s *Server) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	if err := s.indexer.Remove(r.Context(), chi.URLParam(r, "videoID")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReindexVideo handles POST /api/v1/videos/{videoID}/reindex.
func (s *Server) ReindexVideo(w http.ResponseWriter, r *http.Request) {
	if err := s.indexer.IndexVideo(r.Context(), chi.URLParam(r, "videoID")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RebuildIndex handles POST /api/v1/index/rebuild.
func (s *Server) RebuildIndex(w http.ResponseWriter, r *http.Request) {
	indexed, err := s.indexer.Rebuild(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rebuildResponse{Indexed: indexed})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func userID(r *http.Request) string {
	if id := r.Header.Get(userIDHeader); id != "" {
		return id
	}
	return r.URL.Query().Get("userId")
}

func pageParams(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("pageSize"))
	return page, pageSize
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidQuery,
		domain.ErrInvalidID,
		domain.ErrVideoNotFound,
		domain.ErrVectorDimMismatch,
		domain.ErrIndexUnavailable,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
