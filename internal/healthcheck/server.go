package healthcheck

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/model"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/storage"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/pkg/utils"
)

// Server represents a health check HTTP server
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux // Expose mux for adding handlers
	logger     *zap.Logger
	logs       storage.SyncLogRepo
}

// HealthResponse is the response structure for health check endpoints
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// StatusResponse summarises recent sync activity for operators.
type StatusResponse struct {
	LastPullCompleted string      `json:"last_pull_completed,omitempty"`
	LastPushCompleted string      `json:"last_push_completed,omitempty"`
	RecentEntries     interface{} `json:"recent_entries"`
}

// NewServer creates a new health check server
func NewServer(port string, logger *zap.Logger, logs storage.SyncLogRepo) *Server {
	mux := http.NewServeMux()

	server := &Server{
		httpServer: &http.Server{
			Addr:    ":" + port,
			Handler: mux,
		},
		mux:    mux, // Store the mux
		logger: logger,
		logs:   logs,
	}

	// Register default health check endpoints
	mux.HandleFunc("/health", server.handleHealth)
	mux.HandleFunc("/ready", server.handleReady)
	mux.HandleFunc("/status", server.handleStatus)

	return server
}

// RegisterMetricsHandler adds the /metrics endpoint handler.
// Should only be called if metrics are enabled.
func (s *Server) RegisterMetricsHandler(handler http.Handler) {
	s.logger.Info("Registering /metrics endpoint")
	s.mux.Handle("/metrics", handler)
}

// Start begins the HTTP server
func (s *Server) Start() {
	go func() {
		s.logger.Info("Starting health check server", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Health check server error", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping health check server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealth handles the /health endpoint for liveness probes
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "UP",
		Version: "1.0.0",
	}

	utils.WriteJSONResponse(w, http.StatusOK, resp)
}

// handleReady handles the /ready endpoint for readiness probes
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status: "READY",
		Details: map[string]string{
			"timestamp": utils.FormatISO8601(utils.Now()),
		},
	}

	utils.WriteJSONResponse(w, http.StatusOK, resp)
}

// handleStatus reports the latest pass markers and recent audit entries.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	resp := StatusResponse{}

	if last, err := s.logs.LastCompleted(ctx,
		model.ActionClientsCompleted, model.ActionLeadsCompleted); err == nil && last != nil {
		resp.LastPullCompleted = utils.FormatISO8601(*last)
	}
	if last, err := s.logs.LastCompleted(ctx, model.ActionPushCompleted); err == nil && last != nil {
		resp.LastPushCompleted = utils.FormatISO8601(*last)
	}

	entries, err := s.logs.RecentEntries(ctx, limit)
	if err != nil {
		s.logger.Error("Failed to read recent sync log entries", zap.Error(err))
		utils.WriteJSONResponse(w, http.StatusInternalServerError, HealthResponse{Status: "ERROR"})
		return
	}
	resp.RecentEntries = entries

	utils.WriteJSONResponse(w, http.StatusOK, resp)
}
