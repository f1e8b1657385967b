package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/drishti/internal/app"
	"github.com/ayusman/drishti/internal/landmark"
)

// CalibrationHandler drives the app's calibration session over HTTP.
type CalibrationHandler struct {
	app *app.App
}

// NewCalibrationHandler creates a new CalibrationHandler for the given app.
func NewCalibrationHandler(a *app.App) *CalibrationHandler {
	return &CalibrationHandler{app: a}
}

type startCalibrationResponse struct {
	Targets []landmark.Point `json:"targets"`
}

type capturePointRequest struct {
	Index int `json:"index"`
}

type capturePointResponse struct {
	Collected int `json:"collected"`
}

// ServeHTTP implements the http.Handler interface and routes requests to
// appropriate methods.
func (h *CalibrationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/calibration plus the actions
	// /api/calibration/{start|points|fit}
	path := strings.TrimPrefix(r.URL.Path, "/api/calibration")
	path = strings.TrimPrefix(path, "/")

	switch path {
	case "":
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, h.app.CalibrationState())
		case http.MethodDelete:
			h.app.CancelCalibration()
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "start":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		targets := h.app.BeginCalibration()
		writeJSON(w, http.StatusOK, startCalibrationResponse{Targets: targets})
	case "points":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.capture(w, r)
	case "fit":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.fit(w, r)
	default:
		writeError(w, http.StatusNotFound, "Unknown calibration resource")
	}
}

// capture handles POST /api/calibration/points, pairing one grid target with
// the current gaze sample.
func (h *CalibrationHandler) capture(w http.ResponseWriter, r *http.Request) {
	var req capturePointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	collected, err := h.app.CaptureCalibrationPoint(req.Index)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrPointOutOfRange):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrNotCalibrating), errors.Is(err, app.ErrNoGaze):
			// State conflicts: the client should begin a session, or hold
			// the fixation and retry
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "Failed to capture point")
		}
		return
	}

	writeJSON(w, http.StatusOK, capturePointResponse{Collected: collected})
}

// fit handles POST /api/calibration/fit. A refused fit is a 200 with
// ok=false, not an error: the session stays open for more captures.
func (h *CalibrationHandler) fit(w http.ResponseWriter, r *http.Request) {
	result, err := h.app.FinishCalibration()
	if err != nil {
		if errors.Is(err, app.ErrNotCalibrating) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to fit calibration")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
