package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/judge-sync/internal/app"
	"github.com/JakeFAU/judge-sync/internal/domain"
	"github.com/JakeFAU/judge-sync/internal/metrics"
	"github.com/JakeFAU/judge-sync/internal/syncer"
)

// Service is the caller-facing surface the handlers drive.
type Service interface {
	ListProviders() []app.ProviderStatus
	Sync(name string) error
	SyncNow(ctx context.Context, name string) (syncer.Report, error)
	PendingTaskCount() int
}

// Server wires HTTP handlers to the service.
type Server struct {
	router  chi.Router
	service Service
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(service Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{service: service, logger: logger.Named("api")}

	r := chi.NewRouter()
	r.Use(withRequestID)
	r.Use(s.accessLog)
	r.Use(s.recoverPanics)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/providers", s.listProviders)
		r.Post("/providers/{name}/sync", s.syncProvider)
		r.Get("/tasks", s.tasks)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

type providerResponse struct {
	Name         string `json:"name"`
	LastSyncedAt string `json:"last_synced_at"`
	EverSynced   bool   `json:"ever_synced"`
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listProviders(w http.ResponseWriter, _ *http.Request) {
	statuses := s.service.ListProviders()
	out := make([]providerResponse, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, providerResponse{
			Name:         st.Name,
			LastSyncedAt: st.LastSynced(),
			EverSynced:   st.EverSynced,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"providers": out})
}

func (s *Server) syncProvider(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if wait {
		report, err := s.service.SyncNow(r.Context(), name)
		if err != nil {
			s.writeError(w, statusFor(err), err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, report)
		return
	}
	if err := s.service.Sync(name); err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"provider": name,
		"status":   "queued",
		"pending":  s.service.PendingTaskCount(),
	})
}

func (s *Server) tasks(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]int{"pending": s.service.PendingTaskCount()})
}

func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindInvalidArgument:
		return http.StatusNotFound
	case domain.KindIO, domain.KindAttemptsExhausted, domain.KindRemote:
		return http.StatusBadGateway
	case domain.KindCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
