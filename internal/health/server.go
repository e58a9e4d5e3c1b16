package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/john/lastemote/internal/overlay"
)

// StateSource provides the most recent overlay snapshot
type StateSource interface {
	Snapshot() overlay.Snapshot
}

// Server provides the health, state and metrics endpoints
type Server struct {
	server *http.Server
	log    *zap.SugaredLogger
}

// New creates a new status server
func New(addr string, state StateSource, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: NewHandler(state),
		},
		log: logger,
	}
}

// NewHandler builds the status routes
func NewHandler(state StateSource) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		json.NewEncoder(w).Encode(state.Snapshot())
	})

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	s.log.Infof("Status server listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Infof("Shutting down status server...")
	return s.server.Shutdown(ctx)
}
