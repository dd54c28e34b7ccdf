package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/dubedition/guidecore/internal/errors"
	"github.com/dubedition/guidecore/internal/search"
)

// searchResponse is an outcome plus its user-facing message, so clients
// can show "Type to search" and "No results" without reimplementing the
// state distinction.
type searchResponse struct {
	search.Outcome
	Message string `json:"message,omitempty"`
}

// viewportRequest reports the visible scroll range in estimated document
// offsets.
type viewportRequest struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleIndex serves the live document, fragments in whatever state they
// are in right now.
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	page, err := s.engine.PageHTML()
	if err != nil {
		respondError(w, errors.New(errors.ErrCodeInternal,
			"cannot serialize guide page", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(page))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	outcome := s.engine.Search(query)
	respondJSON(w, http.StatusOK, searchResponse{
		Outcome: outcome,
		Message: outcome.Message(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.engine.Status())
}

// handleMetrics reports aggregated query telemetry for this engine's
// lifetime: state counts, top terms, zero-result queries, latency
// distribution.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.engine.Metrics().Snapshot())
}

func (s *Server) handleFragments(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.engine.Fragments())
}

// handleLoadAll loads every pending fragment. The batch result reports
// per-fragment failures; the request itself succeeds.
func (s *Server) handleLoadAll(w http.ResponseWriter, r *http.Request) {
	result := s.engine.LoadAll(r.Context())
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.engine.RetryFragment(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	info, _ := s.engine.Loader().Record(id)
	respondJSON(w, http.StatusOK, info)
}

// handleViewport triggers lazy loads for the reported visible range and
// answers with the fragment IDs it started.
func (s *Server) handleViewport(w http.ResponseWriter, r *http.Request) {
	var req viewportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.New(errors.ErrCodeInvalidInput,
			"invalid viewport body", err).
			WithSuggestion(`Send {"top": <offset>, "bottom": <offset>}.`))
		return
	}
	if req.Bottom < req.Top {
		respondError(w, errors.New(errors.ErrCodeInvalidInput,
			"viewport bottom is above its top", nil))
		return
	}
	ids := s.engine.Loader().ObserveViewport(r.Context(), req.Top, req.Bottom)
	respondJSON(w, http.StatusOK, map[string]any{"loading": ids})
}

// handleStatic serves site files (stylesheets, images, content fragments)
// relative to the site root. The guide page itself is never served raw;
// the live document owns "/".
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(r.URL.Path, "/")
	rel = filepath.Clean(filepath.FromSlash(rel))
	if rel == "." || strings.HasPrefix(rel, "..") {
		respondError(w, errors.New(errors.ErrCodeInvalidPath,
			"path escapes the site root", nil))
		return
	}
	if rel == filepath.Clean(s.engine.Config().Site.Index) {
		s.handleIndex(w, r)
		return
	}

	path := filepath.Join(s.engine.SiteRoot(), rel)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		respondError(w, errors.New(errors.ErrCodeFileNotFound,
			"no such site file", err).
			WithDetail("path", r.URL.Path))
		return
	}
	http.ServeFile(w, r, path)
}

// respondJSON writes v as a JSON response.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("response encode failed", slog.String("error", err.Error()))
	}
}

// respondError maps an error onto an HTTP status and writes its JSON
// form.
func respondError(w http.ResponseWriter, err error) {
	body, marshalErr := errors.FormatJSON(err)
	if marshalErr != nil {
		http.Error(w, `{"code":"ERR_501_INTERNAL"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(httpStatus(err))
	_, _ = w.Write(body)
}

// httpStatus picks the response status for an error code, walking
// wrapped chains so classified failures keep their mapping.
func httpStatus(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidQuery,
		errors.ErrCodeQueryEmpty, errors.ErrCodeInvalidPath:
		return http.StatusBadRequest
	case errors.ErrCodeFileNotFound, errors.ErrCodeUnknownTarget:
		return http.StatusNotFound
	case errors.ErrCodeFetchTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrCodeFetchUnavailable, errors.ErrCodeHTTPStatus:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
