// Package server exposes the service over HTTP: a streaming query
// endpoint, thread state access, health, and metrics. Auth, CORS, and
// rate limiting are left to the deployment's edge.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orchestrahq/maestro/pkg/service"
	"github.com/orchestrahq/maestro/pkg/state"
)

// queryRequest is the POST /v1/query payload.
type queryRequest struct {
	Message     string             `json:"message"`
	ThreadID    string             `json:"thread_id,omitempty"`
	UserContext *state.UserContext `json:"user_context,omitempty"`
	// Stream selects SSE framing; false returns a single JSON result.
	Stream bool `json:"stream"`
}

// Server is the HTTP facade over the service.
type Server struct {
	svc *service.Service
}

// New creates the server.
func New(svc *service.Service) *Server {
	return &Server{svc: svc}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/query", s.handleQuery)
		r.Get("/threads/{threadID}/state", s.handleState)
		r.Get("/threads/{threadID}/history", s.handleHistory)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if !req.Stream {
		result, err := s.svc.Run(r.Context(), req.Message, req.ThreadID, req.UserContext)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	err := s.svc.RunStream(r.Context(), req.Message, req.ThreadID, req.UserContext, func(event service.StreamEvent) error {
		if _, err := w.Write(event.SSE()); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		// The stream is already committed; nothing more can be sent.
		slog.Debug("Stream ended early", "error", err)
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	st, ok, err := s.svc.GetState(r.Context(), threadID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "thread not found"})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	history, err := s.svc.GetHistory(r.Context(), threadID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "thread not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"thread_id": threadID, "messages": history})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}
