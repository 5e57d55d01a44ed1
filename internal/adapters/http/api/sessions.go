package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/okian/epidash/internal/domain/figure"
)

// maxInputsBody caps the size of a posted input change.
const maxInputsBody = 1 << 16

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

type submitResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
	Version   uint64 `json:"version"`
}

type figuresResponse struct {
	SessionID   string          `json:"session_id"`
	Version     uint64          `json:"version"`
	Ready       bool            `json:"ready"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
	Figures     *figure.Figures `json:"figures,omitempty"`
}

// SessionHandler handles the per-tab session flow: create a session, post
// input changes, poll for published figures.
type SessionHandler struct {
	deps SessionDependencies
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps SessionDependencies) *SessionHandler {
	return &SessionHandler{deps: deps}
}

// HandleCreate handles POST /api/sessions requests.
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_session"
	id, err := h.deps.NewSession(r.Context())
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	w.Header().Set("Location", "/api/sessions/"+id+"/figures")
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: id})
}

// HandleSubmit handles POST /api/sessions/{id}/inputs requests.
func (h *SessionHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_inputs"
	id := r.PathValue("id")

	var req inputsRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxInputsBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	version, err := h.deps.Submit(r.Context(), id, req.inputs(h.deps.Options(r.Context())))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, submitResponse{Status: "accepted", SessionID: id, Version: version})
}

// HandleGetFigures handles GET /api/sessions/{id}/figures requests.
func (h *SessionHandler) HandleGetFigures(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_figures"
	snap, err := h.deps.Snapshot(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	resp := figuresResponse{SessionID: snap.SessionID, Version: snap.Version, Ready: snap.Ready()}
	if snap.Ready() {
		resp.PublishedAt = &snap.PublishedAt
		resp.Figures = &snap.Figures
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleDelete handles DELETE /api/sessions/{id} requests.
func (h *SessionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_session"
	if !h.deps.EndSession(r.Context(), r.PathValue("id")) {
		writeFailure(w, NewKind(op, ErrNotFound))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
