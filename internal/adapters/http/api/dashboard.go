package api

import (
	"net/http"
)

// DashboardHandler renders all figures for query-string inputs.
type DashboardHandler struct {
	deps DashboardDependencies
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(deps DashboardDependencies) *DashboardHandler {
	return &DashboardHandler{deps: deps}
}

// HandleGetDashboard handles GET /api/dashboard?start=&end=&country= requests.
func (h *DashboardHandler) HandleGetDashboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_dashboard"
	in, err := queryInputs(r, h.deps.Options(r.Context()))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	figs, err := h.deps.Render(r.Context(), in)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, figs)
}
