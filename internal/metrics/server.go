package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pipewright/fdkit/internal/session"
)

// Server is the observability listener: Prometheus scrapes, a health probe,
// and a JSON view of the session store.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// ServerConfig holds observability server configuration.
type ServerConfig struct {
	Addr        string
	MetricsPath string
}

// NewServer creates the observability server. All routes run through the
// metrics and logging middleware.
func NewServer(cfg ServerConfig, reg *Registry, store *session.Store, logger *zap.Logger) *Server {
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/sessions", handleSessions(store))

	handler := HTTPMiddleware(reg)(LoggingMiddleware(logger)(mux))

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting observability server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down observability server")
	return s.httpServer.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// sessionSummary is the list view: everything except the captured bytes.
type sessionSummary struct {
	ID        string         `json:"id"`
	Argv      []string       `json:"argv"`
	Status    session.Status `json:"status"`
	ExitCode  int            `json:"exit_code"`
	Bytes     int64          `json:"bytes"`
	StartedAt time.Time      `json:"started_at"`
}

func handleSessions(store *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			http.Error(w, `{"error":"sessions unavailable"}`, http.StatusServiceUnavailable)
			return
		}

		records := store.List()
		summaries := make([]sessionSummary, 0, len(records))
		for i := range records {
			rec := &records[i]
			summaries = append(summaries, sessionSummary{
				ID:        rec.ID,
				Argv:      rec.Argv,
				Status:    rec.Status,
				ExitCode:  rec.ExitCode,
				Bytes:     rec.Size(),
				StartedAt: rec.StartedAt,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(summaries)
	}
}
