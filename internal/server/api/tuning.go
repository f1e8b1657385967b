package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/drishti/internal/app"
	"github.com/ayusman/drishti/internal/config"
)

// TuningHandler reads and applies the live pipeline tuning override.
type TuningHandler struct {
	app *app.App
}

// NewTuningHandler creates a new TuningHandler for the given app.
func NewTuningHandler(a *app.App) *TuningHandler {
	return &TuningHandler{app: a}
}

// ServeHTTP implements the http.Handler interface.
func (h *TuningHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.app.Tuning())
	case http.MethodPut:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// update handles PUT /api/tuning: the body replaces the whole override set;
// absent fields fall back to component defaults.
func (h *TuningHandler) update(w http.ResponseWriter, r *http.Request) {
	var t config.Tuning
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := t.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.app.ApplyTuning(t); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to apply tuning")
		return
	}

	writeJSON(w, http.StatusOK, h.app.Tuning())
}
