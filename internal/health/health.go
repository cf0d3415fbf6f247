// Package health serves the per-service health and metrics listener.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Checker probes one dependency; nil means healthy.
type Checker func(ctx context.Context) error

// Server exposes /health and /metrics for one service.
type Server struct {
	service  string
	addr     string
	checkers map[string]Checker
	srv      *http.Server
}

// NewServer builds the listener; components map names to probes.
func NewServer(service, addr string, checkers map[string]Checker) *Server {
	s := &Server{service: service, addr: addr, checkers: checkers}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

type healthResponse struct {
	Service    string            `json:"service"`
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
	Timestamp  time.Time         `json:"ts"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := healthResponse{
		Service:    s.service,
		Status:     "ok",
		Components: make(map[string]string, len(s.checkers)),
		Timestamp:  time.Now().UTC(),
	}
	code := http.StatusOK
	for name, check := range s.checkers {
		if err := check(ctx); err != nil {
			resp.Components[name] = fmt.Sprintf("down: %v", err)
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			resp.Components[name] = "up"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.addr).Msg("health listener started")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("health listener: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		return ctx.Err()
	}
}
