package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/swaggo/swag"

	"github.com/custodia-labs/sercha-retriever/internal/core/domain"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"not ready: collection wiki is not indexed yet"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// ReadyResponse reports each dependency checked by /ready
// @Description Readiness of the engine and backends
type ReadyResponse struct {
	Status string            `json:"status" example:"ready"`
	Checks map[string]string `json:"checks"`
}

// IndexResponse is returned after a successful build
// @Description Completed index build
type IndexResponse struct {
	Status string `json:"status" example:"indexed"`
	*domain.BuildSummary
}

// InitSearchersResponse summarises one activation pass
// @Description Activation report
type InitSearchersResponse struct {
	Count int `json:"count" example:"2"`
	*domain.ActivationReport
}

// CollectionsResponse lists registered collections
// @Description Registered collections
type CollectionsResponse struct {
	Collections []*domain.Collection `json:"collections"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the liveness of the API process
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Checks the retrieval engine and any configured store or lock backend
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Checks: map[string]string{}}
	fail := func(name string, err error) {
		resp.Status = "unavailable"
		resp.Checks[name] = err.Error()
	}

	if s.engine != nil {
		if err := s.engine.HealthCheck(ctx); err != nil {
			fail("engine", err)
		} else {
			resp.Checks["engine"] = "ok"
		}
	}
	for name, p := range s.backends {
		if err := p.Ping(ctx); err != nil {
			fail(name, err)
		} else {
			resp.Checks[name] = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

// handleSwaggerDoc serves the registered OpenAPI document
func (s *Server) handleSwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, http.StatusNotFound, "api documentation not registered")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(doc))
}

// Lifecycle endpoints

// handleIndex godoc
// @Summary      Build a collection index
// @Description  Encodes {name}.tsv into a persisted index. Blocks for the full build. Only valid while the collection is unindexed.
// @Tags         Lifecycle
// @Produce      json
// @Security     BearerAuth
// @Param        name  path      string  true  "Collection name"
// @Success      200   {object}  IndexResponse
// @Failure      400   {object}  ErrorResponse  "Invalid collection name"
// @Failure      404   {object}  ErrorResponse  "Source file missing"
// @Failure      409   {object}  ErrorResponse  "Already indexed, or accelerator busy"
// @Failure      500   {object}  ErrorResponse  "Engine failure"
// @Router       /api/index/{name} [post]
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	summary, err := s.indexService.Build(r.Context(), name)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, IndexResponse{Status: string(domain.StatusIndexed), BuildSummary: summary})
}

// handleInitSearchers godoc
// @Summary      Activate searchers
// @Description  Loads a searcher for every indexed collection. Idempotent. Returns 207 when some collections failed.
// @Tags         Lifecycle
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  InitSearchersResponse
// @Success      207  {object}  InitSearchersResponse  "Some collections failed to activate"
// @Failure      409  {object}  ErrorResponse          "Accelerator busy"
// @Router       /init_searchers [post]
func (s *Server) handleInitSearchers(w http.ResponseWriter, r *http.Request) {
	report, err := s.searcherRegistry.ActivateAll(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if report.HasFailures() {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, InitSearchersResponse{Count: report.Count(), ActivationReport: report})
}

// Query endpoints

// handleSearch godoc
// @Summary      Search a collection
// @Description  Returns the top-k passages of a searchable collection in engine rank order
// @Tags         Search
// @Produce      json
// @Param        name   path      string   true   "Collection name"
// @Param        query  query     string   true   "Query text"
// @Param        k      query     integer  false  "Number of hits (default 10, max 100)"
// @Success      200    {object}  domain.SearchResult
// @Failure      400    {object}  ErrorResponse  "Invalid query or k"
// @Failure      404    {object}  ErrorResponse  "Unknown or not searchable collection"
// @Router       /api/search/{name} [get]
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	q := r.URL.Query()

	k := s.defaultK
	if raw := q.Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "k must be an integer")
			return
		}
		k = n
	}

	result, err := s.searchService.Search(r.Context(), name, q.Get("query"), k)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Status endpoints

// handleListCollections godoc
// @Summary      List collections
// @Description  Lists every registered collection and its lifecycle status
// @Tags         Collections
// @Produce      json
// @Success      200  {object}  CollectionsResponse
// @Router       /api/collections [get]
func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	colls, err := s.collectionService.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if colls == nil {
		colls = []*domain.Collection{}
	}
	writeJSON(w, http.StatusOK, CollectionsResponse{Collections: colls})
}

// handleGetCollection godoc
// @Summary      Get collection status
// @Description  Returns one collection; clients re-poll this after a build request timed out
// @Tags         Collections
// @Produce      json
// @Param        name  path      string  true  "Collection name"
// @Success      200   {object}  domain.Collection
// @Failure      404   {object}  ErrorResponse  "Collection not found"
// @Router       /api/collections/{name} [get]
func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	coll, err := s.collectionService.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, coll)
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNotReady):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyIndexed), errors.Is(err, domain.ErrBusy), errors.Is(err, domain.ErrTimeout):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, context.Canceled):
		// client went away; nobody reads this
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
