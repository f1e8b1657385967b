// Package server provides the HTTP and WebSocket surface for the Drishti
// daemon: health, session diagnostics, calibration control, live tuning, and
// the frame ingest/output streams.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/drishti/internal/app"
	"github.com/ayusman/drishti/internal/landmark"
	"github.com/ayusman/drishti/internal/server/api"
	"github.com/ayusman/drishti/internal/store"
)

// Config holds the server configuration.
type Config struct {
	App       *app.App
	Store     *store.Store
	Ingest    *landmark.ChannelSource
	StaticDir string
}

// Server represents the HTTP server for the Drishti daemon.
type Server struct {
	config Config
	mux    *http.ServeMux
	ingest *IngestHandler
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	// Register session diagnostics if a store is configured
	if s.config.Store != nil {
		sessionsHandler := api.NewSessionsHandler(s.config.Store)
		s.mux.Handle("/api/sessions", sessionsHandler)
		s.mux.Handle("/api/sessions/", sessionsHandler)
	}

	// Register pipeline control and the live output stream if an app is
	// configured
	if s.config.App != nil {
		calibrationHandler := api.NewCalibrationHandler(s.config.App)
		s.mux.Handle("/api/calibration", calibrationHandler)
		s.mux.Handle("/api/calibration/", calibrationHandler)

		s.mux.Handle("/api/tuning", api.NewTuningHandler(s.config.App))
		s.mux.Handle("/api/live", NewLiveHandler(s.config.App))
	}

	// Register the detector ingest endpoint if a channel source is configured
	if s.config.Ingest != nil {
		s.ingest = NewIngestHandler(s.config.Ingest)
		s.mux.Handle("/api/ingest", s.ingest)
	}

	// Serve the dashboard if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}
	if s.config.App != nil {
		response["stats"] = s.config.App.Stats()
		if id := s.config.App.SessionID(); id != "" {
			response["session"] = id
		}
	}
	if s.config.Ingest != nil {
		response["dropped_frames"] = s.config.Ingest.Dropped()
	}
	if s.ingest != nil {
		response["malformed_frames"] = s.ingest.Malformed()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
