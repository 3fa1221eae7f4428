// Package server implements the public HTTP endpoint, wiring C1 (auth
// context extraction) through C6 (the orchestration loop): the one
// surface external callers talk to (spec.md §6).
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/corebridge/agentcore/pkg/orchestrator"
	"github.com/corebridge/agentcore/pkg/rbac"
)

// AuthExtractor is the subset of C1 the server depends on.
type AuthExtractor interface {
	Extract(token string) rbac.Context
}

// Handler is the subset of C6 the server depends on — satisfied by
// *orchestrator.Orchestrator, narrowed so tests can supply a fake loop.
type Handler interface {
	Handle(ctx context.Context, req orchestrator.Request) (orchestrator.Result, error)
}

// Server wires the public HTTP surface. Built with New rather than a
// struct literal so the middleware stack and routes are always
// registered together.
type Server struct {
	router http.Handler

	auth            AuthExtractor
	orch            Handler
	requestDeadline time.Duration
}

// New builds a Server. promReg may be nil, in which case /metrics is
// not mounted at all rather than serving an empty registry.
func New(auth AuthExtractor, orch Handler, requestDeadline time.Duration, promReg *prometheus.Registry) *Server {
	s := &Server{auth: auth, orch: orch, requestDeadline: requestDeadline}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// promReg is a concrete *prometheus.Registry; go through a plain
	// nil check here rather than handing it to newHTTPMetrics directly
	// -- converting a nil *Registry into the prometheus.Registerer
	// interface parameter would produce a non-nil interface value
	// wrapping a nil pointer, and newHTTPMetrics's own nil check would
	// then wrongly try to register against it.
	var registerer prometheus.Registerer
	if promReg != nil {
		registerer = promReg
	}
	r.Use(instrument(newHTTPMetrics(registerer)))

	r.Get("/healthz", s.handleHealthz)
	if promReg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	}
	r.Post("/v1/chat", s.handleChat)

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	rbacCtx := s.auth.Extract(req.Token)
	rbacCtx.SessionID = req.SessionID

	ctx := r.Context()
	if s.requestDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestDeadline)
		defer cancel()
	}

	result, err := s.orch.Handle(ctx, orchestrator.Request{
		Message:   req.Message,
		SessionID: req.SessionID,
		RBAC:      rbacCtx,
	})
	if err != nil {
		// Handle itself never returns a non-nil error in practice (every
		// orchestration failure maps to a Result apology instead); this
		// branch only guards against a future change to that contract.
		slog.Error("server: orchestrator returned an unexpected error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toChatResponse(result))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
