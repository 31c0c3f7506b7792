package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/wonny/factorlab/pkg/config"
	"github.com/wonny/factorlab/pkg/logger"
)

// minShutdownGrace is the floor of the drain window for in-flight backtests
const minShutdownGrace = 30 * time.Second

// Server serves the backtest API.
// Group and IC runs execute inside the request, so WriteTimeout bounds a run
// and the shutdown grace is at least that long.
// ⭐ SSOT: API 서버 설정은 이 파일에서만
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
	config     *config.Config
}

// New creates a new API server
func New(cfg *config.Config, log *logger.Logger, router http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      router,
			ReadTimeout:  cfg.API.ReadTimeout,
			WriteTimeout: cfg.API.WriteTimeout, // 백테스트 응답 시간 포함
			IdleTimeout:  60 * time.Second,
		},
		logger: log,
		config: cfg,
	}
}

// ShutdownGrace returns how long Shutdown should wait for running backtests
func (s *Server) ShutdownGrace() time.Duration {
	if s.config.API.WriteTimeout > minShutdownGrace {
		return s.config.API.WriteTimeout
	}
	return minShutdownGrace
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.WithFields(map[string]interface{}{
		"port":           s.config.Port,
		"env":            s.config.Env,
		"rate_limit":     s.config.API.RateLimit,
		"rate_burst":     s.config.API.RateBurst,
		"write_timeout":  s.config.API.WriteTimeout.String(),
		"default_basket": s.config.Backtest.Basket,
	}).Info("Starting factorlab API server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown stops accepting requests and waits for running backtests until ctx ends
func (s *Server) Shutdown(ctx context.Context) error {
	fields := map[string]interface{}{"port": s.config.Port}
	if deadline, ok := ctx.Deadline(); ok {
		fields["grace"] = time.Until(deadline).Round(time.Second).String()
	}
	s.logger.WithFields(fields).Info("Draining in-flight backtests")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("factorlab API server stopped")
	return nil
}
