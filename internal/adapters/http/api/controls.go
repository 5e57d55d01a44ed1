package api

import (
	"net/http"
)

// ControlsHandler handles control metadata requests.
type ControlsHandler struct {
	deps ControlsDependencies
}

// NewControlsHandler creates a new controls handler.
func NewControlsHandler(deps ControlsDependencies) *ControlsHandler {
	return &ControlsHandler{deps: deps}
}

// HandleGetOptions handles GET /api/options requests.
func (h *ControlsHandler) HandleGetOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Options(r.Context()))
}
