// Package status exposes the bridge's operational HTTP surface: health,
// Prometheus metrics, shot history, and the data point catalog.
package status

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opengolfcoach/bridge/internal/adapters/repository"
	"github.com/opengolfcoach/bridge/internal/domain/registry"
	"github.com/opengolfcoach/bridge/pkg/metrics"
)

const defaultShotsLimit = 20

// History provides read access to recorded shots.
type History interface {
	Latest(ctx context.Context, n int) ([]repository.StoredShot, error)
}

// Option configures a Server.
type Option func(*Server)

// WithHistory attaches the shot history backing /api/shots.
func WithHistory(h History) Option {
	return func(s *Server) {
		s.history = h
	}
}

// WithSessionState sets the probe reporting the monitor session state.
func WithSessionState(f func() string) Option {
	return func(s *Server) {
		s.sessionState = f
	}
}

// WithDisplayConnected sets the probe reporting display connectivity.
func WithDisplayConnected(f func() bool) Option {
	return func(s *Server) {
		s.displayConnected = f
	}
}

// Server wires the status routes.
type Server struct {
	history          History
	sessionState     func() string
	displayConnected func() bool
}

// NewServer creates a status server.
func NewServer(opts ...Option) *Server {
	s := &Server{
		sessionState:     func() string { return "unknown" },
		displayConnected: func() bool { return false },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all status routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.handleHealth, "healthz"))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/api/shots", MetricsMiddleware(s.handleShots, "shots"))
	mux.HandleFunc("/api/data-points", MetricsMiddleware(s.handleDataPoints, "data_points"))
}

type healthResponse struct {
	Status           string `json:"status"`
	SessionState     string `json:"session_state"`
	DisplayConnected bool   `json:"display_connected"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:           "ok",
		SessionState:     s.sessionState(),
		DisplayConnected: s.displayConnected(),
	})
}

func (s *Server) handleShots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history_disabled")
		return
	}

	limit := defaultShotsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = n
	}

	shots, err := s.history.Latest(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "history_error")
		return
	}
	if shots == nil {
		shots = []repository.StoredShot{}
	}
	writeJSON(w, http.StatusOK, shots)
}

type dataPointResponse struct {
	ID             string `json:"id"`
	Category       string `json:"category"`
	Label          string `json:"label"`
	UnitImperial   string `json:"unit_imperial,omitempty"`
	UnitMetric     string `json:"unit_metric,omitempty"`
	Derived        bool   `json:"derived"`
	DefaultEnabled bool   `json:"default_enabled"`
}

func (s *Server) handleDataPoints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}

	defs := registry.All()
	out := make([]dataPointResponse, 0, len(defs))
	for _, d := range defs {
		out = append(out, dataPointResponse{
			ID:             d.ID,
			Category:       string(d.Category),
			Label:          d.Label,
			UnitImperial:   d.UnitImperial,
			UnitMetric:     d.UnitMetric,
			Derived:        d.Derived,
			DefaultEnabled: d.DefaultEnabled,
		})
	}
	writeJSON(w, http.StatusOK, out)
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

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorResponse{Code: code, Message: http.StatusText(status)})
}
