// Package api provides HTTP API handlers for the Drishti daemon.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/drishti/internal/store"
)

// SessionsHandler handles HTTP requests for session diagnostics.
type SessionsHandler struct {
	store *store.Store
}

// NewSessionsHandler creates a new SessionsHandler with the given store.
func NewSessionsHandler(s *store.Store) *SessionsHandler {
	return &SessionsHandler{store: s}
}

// ServeHTTP implements the http.Handler interface and routes requests to
// appropriate methods.
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/sessions, /api/sessions/{id}, and the
	// subresources /api/sessions/{id}/{events|fits|trace}
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		// Collection endpoint: /api/sessions
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	id, sub, _ := strings.Cut(path, "/")
	if sub == "" {
		// Item endpoint: /api/sessions/{id}
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, id)
		case http.MethodDelete:
			h.delete(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	switch sub {
	case "events":
		h.events(w, r, id)
	case "fits":
		h.fits(w, r, id)
	case "trace":
		h.trace(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "Unknown session resource")
	}
}

// Request and response types

type sessionResponse struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	StartedAt string `json:"started_at"`
	EndedAt   string `json:"ended_at,omitempty"`
	Frames    int64  `json:"frames"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type eventsResponse struct {
	Events []store.Event `json:"events"`
}

type fitsResponse struct {
	Fits []store.Fit `json:"fits"`
}

type traceResponse struct {
	Points []store.GazePoint `json:"points"`
	Total  int64             `json:"total"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// toSessionResponse converts a store.Session to a sessionResponse.
func toSessionResponse(s *store.Session) sessionResponse {
	resp := sessionResponse{
		ID:        s.ID,
		Source:    s.Source,
		StartedAt: s.StartedAt.Format(time.RFC3339),
		Frames:    s.Frames,
	}
	if s.EndedAt != nil {
		resp.EndedAt = s.EndedAt.Format(time.RFC3339)
	}
	return resp
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// ensureSession writes a 404 and returns false when the session does not
// exist.
func (h *SessionsHandler) ensureSession(w http.ResponseWriter, id string) bool {
	if _, err := h.store.Sessions().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
		} else {
			writeError(w, http.StatusInternalServerError, "Failed to get session")
		}
		return false
	}
	return true
}

// list handles GET /api/sessions and returns all sessions, newest first.
func (h *SessionsHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.Sessions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	response := listSessionsResponse{
		Sessions: make([]sessionResponse, 0, len(sessions)),
	}
	for _, s := range sessions {
		response.Sessions = append(response.Sessions, toSessionResponse(s))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/sessions/{id} and returns a single session.
func (h *SessionsHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	session, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// delete handles DELETE /api/sessions/{id} and removes a session along with
// its recorded events, fits, and trace.
func (h *SessionsHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	err := h.store.Sessions().Delete(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// events handles GET /api/sessions/{id}/events.
func (h *SessionsHandler) events(w http.ResponseWriter, r *http.Request, id string) {
	if !h.ensureSession(w, id) {
		return
	}

	events, err := h.store.Events().BySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}
	if events == nil {
		events = []store.Event{}
	}

	writeJSON(w, http.StatusOK, eventsResponse{Events: events})
}

// fits handles GET /api/sessions/{id}/fits.
func (h *SessionsHandler) fits(w http.ResponseWriter, r *http.Request, id string) {
	if !h.ensureSession(w, id) {
		return
	}

	fits, err := h.store.Fits().BySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list fits")
		return
	}
	if fits == nil {
		fits = []store.Fit{}
	}

	writeJSON(w, http.StatusOK, fitsResponse{Fits: fits})
}

// trace handles GET /api/sessions/{id}/trace with an optional ?limit=n.
func (h *SessionsHandler) trace(w http.ResponseWriter, r *http.Request, id string) {
	if !h.ensureSession(w, id) {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	points, err := h.store.Trace().BySession(id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list trace points")
		return
	}
	if points == nil {
		points = []store.GazePoint{}
	}
	total, err := h.store.Trace().CountBySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count trace points")
		return
	}

	writeJSON(w, http.StatusOK, traceResponse{Points: points, Total: total})
}
