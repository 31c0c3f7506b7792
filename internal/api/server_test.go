package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/factorlab/pkg/config"
	"github.com/wonny/factorlab/pkg/logger"
)

func TestServer_New(t *testing.T) {
	cfg := &config.Config{
		Port: "8099",
		API:  config.APIConfig{ReadTimeout: 5 * time.Second, WriteTimeout: 2 * time.Minute},
	}
	s := New(cfg, logger.Nop(), http.NotFoundHandler())

	assert.Equal(t, ":8099", s.httpServer.Addr)
	assert.Equal(t, 5*time.Second, s.httpServer.ReadTimeout)
	assert.Equal(t, 2*time.Minute, s.httpServer.WriteTimeout)
}

func TestServer_ShutdownGrace(t *testing.T) {
	tests := []struct {
		name  string
		write time.Duration
		want  time.Duration
	}{
		{"long backtests extend the drain window", 5 * time.Minute, 5 * time.Minute},
		{"short write timeout keeps the floor", 10 * time.Second, minShutdownGrace},
		{"unset write timeout keeps the floor", 0, minShutdownGrace},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&config.Config{Port: "0", API: config.APIConfig{WriteTimeout: tt.write}}, logger.Nop(), http.NotFoundHandler())
			assert.Equal(t, tt.want, s.ShutdownGrace())
		})
	}
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	s := New(&config.Config{Port: "0"}, logger.Nop(), http.NotFoundHandler())

	ctx, cancel := context.WithTimeout(context.Background(), s.ShutdownGrace())
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
}
