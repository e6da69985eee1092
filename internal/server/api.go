package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytrelay/internal/models"
	"github.com/desertthunder/ytrelay/internal/services"
	"github.com/desertthunder/ytrelay/internal/shared"
)

// StreamEngine resolves a source reference into a relay-ready response.
type StreamEngine interface {
	Stream(ctx context.Context, sourceID string) (*models.StreamResponse, error)
}

// AttemptSource exposes the recent resolver attempts.
type AttemptSource interface {
	Recent() []models.ResolveAttempt
}

// Status is the body of GET /api/status.
type Status struct {
	Service       string `json:"service"`
	Version       string `json:"version"`
	Resolver      string `json:"resolver"`
	Delegate      string `json:"delegate,omitempty"`
	NodeJS        bool   `json:"node_js"`
	Cookies       bool   `json:"cookies"`
	CookiesPath   string `json:"cookies_path"`
	Timeout       int    `json:"timeout"`
	Port          int    `json:"port"`
	CacheEntries  int    `json:"cache_entries"`
	CacheCapacity int    `json:"cache_capacity"`
	Spotify       bool   `json:"spotify"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type logsResponse struct {
	Logs []models.ResolveAttempt `json:"logs"`
}

type searchResponse struct {
	Results []models.SearchResult `json:"results"`
	Count   int                   `json:"count"`
}

// DefaultSearchTimeout bounds one YouTube search request.
const DefaultSearchTimeout = 30 * time.Second

// API serves the JSON endpoints.
type API struct {
	engine        StreamEngine
	searcher      services.Searcher
	attempts      AttemptSource
	status        func() Status
	logger        *log.Logger
	searchTimeout time.Duration
}

// NewAPI creates an [API]. searcher, attempts and status may be nil; their endpoints then
// answer 503, an empty list and a minimal status respectively.
func NewAPI(engine StreamEngine, searcher services.Searcher, attempts AttemptSource, status func() Status, logger *log.Logger) *API {
	return &API{
		engine:        engine,
		searcher:      searcher,
		attempts:      attempts,
		status:        status,
		logger:        logger,
		searchTimeout: DefaultSearchTimeout,
	}
}

// SetSearchTimeout replaces the search deadline. Non-positive values are ignored.
func (a *API) SetSearchTimeout(d time.Duration) {
	if d > 0 {
		a.searchTimeout = d
	}
}

// Register adds the API routes to r. limit wraps the routes that start resolver or
// search work.
func (a *API) Register(r Router, limit Middleware) {
	if limit == nil {
		limit = func(h http.Handler) http.Handler { return h }
	}
	stream := limit(http.HandlerFunc(a.Stream))
	for _, path := range []string{"/stream/{sourceId}", "/api/stream/{sourceId}"} {
		r.Handle(http.MethodGet, path, stream)
		r.Handle(http.MethodPost, path, stream)
	}
	r.Handle(http.MethodGet, "/api/search/youtube", limit(http.HandlerFunc(a.Search)))
	r.Handle(http.MethodGet, "/health", http.HandlerFunc(a.Health))
	r.Handle(http.MethodGet, "/logs", http.HandlerFunc(a.Logs))
	r.Handle(http.MethodGet, "/api/status", http.HandlerFunc(a.Status))
}

// Stream handles GET|POST /stream/{sourceId} and /api/stream/{sourceId}.
func (a *API) Stream(w http.ResponseWriter, r *http.Request) {
	sourceID := strings.TrimSpace(r.PathValue("sourceId"))
	if sourceID == "" {
		sourceID = strings.TrimSpace(r.URL.Query().Get("id"))
	}

	resp, err := a.engine.Stream(r.Context(), sourceID)
	if err != nil {
		status, msg := streamError(sourceID, err)
		if status >= 500 {
			a.logger.Error("stream request failed", "source", sourceID, "error", err)
		}
		shared.WriteError(w, status, msg)
		return
	}

	shared.WriteJSON(w, http.StatusOK, resp)
}

// streamError maps an engine error to a status code and client message.
func streamError(sourceID string, err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest, "Invalid source ID"
	case errors.Is(err, shared.ErrTrackNotFound):
		return http.StatusNotFound, "No track found for " + sourceID
	case errors.Is(err, shared.ErrTimeout):
		return http.StatusInternalServerError, "Timed out resolving " + sourceID
	default:
		return http.StatusInternalServerError, "Failed to extract stream for " + sourceID
	}
}

// Search handles GET /api/search/youtube?q=&limit=.
func (a *API) Search(w http.ResponseWriter, r *http.Request) {
	if a.searcher == nil {
		shared.WriteError(w, http.StatusServiceUnavailable, "Search is not available")
		return
	}

	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		query = strings.TrimSpace(q.Get("query"))
	}
	if query == "" {
		shared.WriteError(w, http.StatusBadRequest, "Missing query parameter")
		return
	}

	limit := services.DefaultSearchLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			shared.WriteError(w, http.StatusBadRequest, "Invalid limit parameter")
			return
		}
		limit = services.ClampSearchLimit(n)
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.searchTimeout)
	defer cancel()

	results, err := a.searcher.Search(ctx, query, limit)
	if err != nil {
		a.logger.Warn("search failed", "query", query, "error", err)
		shared.WriteError(w, http.StatusBadGateway, "Search failed")
		return
	}
	if results == nil {
		results = []models.SearchResult{}
	}

	shared.WriteJSON(w, http.StatusOK, searchResponse{Results: results, Count: len(results)})
}

// Health handles GET /health.
func (a *API) Health(w http.ResponseWriter, _ *http.Request) {
	shared.WriteJSON(w, http.StatusOK, healthResponse{Status: "healthy", Service: "ytrelay"})
}

// Logs handles GET /logs.
func (a *API) Logs(w http.ResponseWriter, _ *http.Request) {
	logs := []models.ResolveAttempt{}
	if a.attempts != nil {
		logs = a.attempts.Recent()
	}
	shared.WriteJSON(w, http.StatusOK, logsResponse{Logs: logs})
}

// Status handles GET /api/status.
func (a *API) Status(w http.ResponseWriter, _ *http.Request) {
	status := Status{Service: "ytrelay"}
	if a.status != nil {
		status = a.status()
	}
	shared.WriteJSON(w, http.StatusOK, status)
}
