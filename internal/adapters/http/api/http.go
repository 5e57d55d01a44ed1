// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	repository "github.com/okian/epidash/internal/adapters/repository"
	service "github.com/okian/epidash/internal/app"
	"github.com/okian/epidash/internal/domain/aggregate"
	"github.com/okian/epidash/internal/domain/figure"
	"github.com/okian/epidash/internal/domain/model"
	"github.com/okian/epidash/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	ControlsDependencies
	DashboardDependencies
	ChartDependencies
	SessionDependencies
}

// ControlsDependencies exposes the control metadata.
type ControlsDependencies interface {
	Options(ctx context.Context) service.Controls
}

// DashboardDependencies renders figures synchronously.
type DashboardDependencies interface {
	ControlsDependencies
	Render(ctx context.Context, in model.Inputs) (figure.Figures, error)
}

// ChartDependencies draws PNG line charts.
type ChartDependencies interface {
	ControlsDependencies
	Chart(ctx context.Context, w io.Writer, metric aggregate.Metric, in model.Inputs) error
}

// SessionDependencies drives the asynchronous session flow.
type SessionDependencies interface {
	ControlsDependencies
	NewSession(ctx context.Context) (string, error)
	Submit(ctx context.Context, sessionID string, in model.Inputs) (uint64, error)
	Snapshot(ctx context.Context, sessionID string) (repository.Snapshot, error)
	EndSession(ctx context.Context, sessionID string) bool
}

// Server wires HTTP routes for the dashboard API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	controlsHandler  *ControlsHandler
	dashboardHandler *DashboardHandler
	chartHandler     *ChartHandler
	sessionHandler   *SessionHandler

	limiter *rate.Limiter
	logger  logger.Logger
}

// ServerOption applies a configuration option to the Server.
type ServerOption func(*Server)

// WithRateLimit caps API requests per second with the given burst.
// A non-positive rate disables limiting.
func WithRateLimit(perSecond float64, burst int) ServerOption {
	return func(s *Server) {
		if perSecond <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...ServerOption) *Server {
	s := &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		controlsHandler:  NewControlsHandler(deps),
		dashboardHandler: NewDashboardHandler(deps),
		chartHandler:     NewChartHandler(deps),
		sessionHandler:   NewSessionHandler(deps),
		logger:           logger.Get().Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	s.route(mux, "GET /api/options", "options", s.controlsHandler.HandleGetOptions)
	s.route(mux, "GET /api/dashboard", "dashboard", s.dashboardHandler.HandleGetDashboard)
	s.route(mux, "GET /api/charts/{file}", "charts", s.chartHandler.HandleGetChart)
	s.route(mux, "POST /api/sessions", "sessions_create", s.sessionHandler.HandleCreate)
	s.route(mux, "POST /api/sessions/{id}/inputs", "sessions_inputs", s.sessionHandler.HandleSubmit)
	s.route(mux, "GET /api/sessions/{id}/figures", "sessions_figures", s.sessionHandler.HandleGetFigures)
	s.route(mux, "DELETE /api/sessions/{id}", "sessions_delete", s.sessionHandler.HandleDelete)

	s.logger.Debug(ctx, "api routes registered", logger.Bool("rate_limited", s.limiter != nil))
}

func (s *Server) route(mux *http.ServeMux, pattern, endpoint string, h http.HandlerFunc) {
	if s.limiter != nil {
		h = RateLimitMiddleware(s.limiter, h)
	}
	mux.HandleFunc(pattern, MetricsMiddleware(RequestIDMiddleware(h), endpoint))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure picks status and code from the error kind.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}
