// Package server provides the HTTP status API of the watchdogd daemon: the
// list of active watches, the recent change journal, and a touch endpoint
// that force-triggers watches by bumping a path's modification time.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	watchdog "github.com/simongeilfus/Watchdog"
	"github.com/simongeilfus/Watchdog/internal/journal"
)

// Registry is the subset of watchdog.Watchdog methods used by the handlers.
// An interface keeps the handlers testable with a fake registry.
type Registry interface {
	// WatchList returns a snapshot of all active watches.
	WatchList() []watchdog.WatchInfo

	// Touch sets the modification time of a path, wildcard-aware.
	Touch(path string, t time.Time) error
}

// ChangeReader is the read side of the change journal used by the handlers.
type ChangeReader interface {
	// Recent returns up to limit changes, newest first.
	Recent(ctx context.Context, limit int) ([]journal.Change, error)
}

// Server holds the dependencies needed by the handlers.
type Server struct {
	dog     Registry
	changes ChangeReader
	logger  *slog.Logger
}

// NewServer creates a Server. A nil logger uses slog.Default().
func NewServer(dog Registry, changes ChangeReader, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{dog: dog, changes: changes, logger: logger}
}

// handleHealthz responds to GET /healthz.
//
// This endpoint does not require authentication and returns HTTP 200 with a
// simple JSON body so orchestrators can verify liveness.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleGetWatches responds to GET /api/v1/watches with a JSON array of all
// active watches, sorted by path.
func (s *Server) handleGetWatches(w http.ResponseWriter, r *http.Request) {
	list := s.dog.WatchList()
	if list == nil {
		list = []watchdog.WatchInfo{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(list)
}

// handleGetChanges responds to GET /api/v1/changes.
//
// Supported query parameters:
//
//	limit – maximum number of results (default 100, max 1000)
//
// Returns HTTP 200 with a JSON array of Change objects, newest first.
func (s *Server) handleGetChanges(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 {
			writeJSONError(w, http.StatusBadRequest, "'limit' must be a positive integer")
			return
		}
		if n > 1000 {
			n = 1000
		}
		limit = n
	}

	changes, err := s.changes.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("status api: query changes", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "failed to query changes")
		return
	}
	if changes == nil {
		changes = []journal.Change{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(changes)
}

// touchRequest is the JSON body of POST /api/v1/touch.
type touchRequest struct {
	// Path is the file, directory, or wildcard to touch. Required.
	Path string `json:"path"`

	// Time is the RFC3339 modification time to set. Empty means now.
	Time string `json:"time,omitempty"`
}

// handleTouch responds to POST /api/v1/touch by setting the modification
// time of the requested path, which force-triggers every watch polling it.
//
// Returns HTTP 204 on success, 400 on a malformed body, 404 when the path
// resolves to nothing.
func (s *Server) handleTouch(w http.ResponseWriter, r *http.Request) {
	var req touchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if req.Path == "" {
		writeJSONError(w, http.StatusBadRequest, "'path' is required")
		return
	}

	var at time.Time
	if req.Time != "" {
		parsed, err := time.Parse(time.RFC3339, req.Time)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "'time' must be a valid RFC3339 timestamp")
			return
		}
		at = parsed
	}

	if err := s.dog.Touch(req.Path, at); err != nil {
		var nferr *watchdog.NotFoundError
		if errors.As(err, &nferr) {
			writeJSONError(w, http.StatusNotFound, nferr.Error())
			return
		}
		s.logger.Error("status api: touch", slog.String("path", req.Path), slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "touch failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
