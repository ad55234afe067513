package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/solatis/overseer/internal/core/logging"
)

// MetricsServer serves /metrics and /healthz over plain HTTP.
type MetricsServer struct {
	server   *http.Server
	listener net.Listener
	logger   *slog.Logger
}

// NewMetricsServer creates a listener for addr serving metrics at /metrics.
func NewMetricsServer(addr string, metrics http.Handler, logger *slog.Logger) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	return &MetricsServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logging.Component(logger, "metrics"),
	}
}

// Listen binds the address.
func (m *MetricsServer) Listen() error {
	l, err := net.Listen("tcp", m.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", m.server.Addr, err)
	}
	m.listener = l
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (m *MetricsServer) Addr() net.Addr {
	if m.listener == nil {
		return nil
	}
	return m.listener.Addr()
}

// Start serves until Shutdown.
func (m *MetricsServer) Start() error {
	if m.listener == nil {
		if err := m.Listen(); err != nil {
			return err
		}
	}
	m.logger.Info("metrics listening", "addr", m.listener.Addr().String())
	if err := m.server.Serve(m.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.server.Shutdown(ctx)
}
