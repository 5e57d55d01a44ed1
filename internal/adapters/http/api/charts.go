package api

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/epidash/internal/domain/aggregate"
)

// ChartHandler serves PNG line charts.
type ChartHandler struct {
	deps ChartDependencies
}

// NewChartHandler creates a new chart handler.
func NewChartHandler(deps ChartDependencies) *ChartHandler {
	return &ChartHandler{deps: deps}
}

// HandleGetChart handles GET /api/charts/{cases|deaths}.png requests.
func (h *ChartHandler) HandleGetChart(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_chart"
	name, ok := strings.CutSuffix(r.PathValue("file"), ".png")
	metric := aggregate.Metric(name)
	if !ok || !metric.Valid() {
		writeFailure(w, NewKind(op, ErrNotFound))
		return
	}
	in, err := queryInputs(r, h.deps.Options(r.Context()))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}

	// Render fully before writing so failures still get a JSON error.
	var buf bytes.Buffer
	if err := h.deps.Chart(r.Context(), &buf, metric, in); err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
