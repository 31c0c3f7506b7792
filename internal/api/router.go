package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/factorlab/internal/api/handlers"
	"github.com/wonny/factorlab/pkg/config"
	"github.com/wonny/factorlab/pkg/database"
	"github.com/wonny/factorlab/pkg/logger"
)

// HealthChecker reports database health (database.DB)
type HealthChecker interface {
	HealthCheck(ctx context.Context) (*database.HealthStatus, error)
}

// NewRouter creates and configures the HTTP router.
// db may be nil, in which case /health reports the service only.
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(backtestHandler *handlers.BacktestHandler, runHandler *handlers.RunHandler, db HealthChecker, apiCfg config.APIConfig, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(db)).Methods("GET")

	// API v1
	// 메서드 제한 라우트는 root router에 전체 경로로 등록 (잘못된 메서드 → 405)
	limit := rateLimitMiddleware(apiCfg.RateLimit, apiCfg.RateBurst, log)
	v1 := func(path string, h http.HandlerFunc, method string) {
		r.Handle("/api/v1"+path, limit(h)).Methods(method)
	}

	// Backtest endpoints
	v1("/backtests/group", backtestHandler.RunGroup, http.MethodPost)
	v1("/backtests/ic", backtestHandler.RunIC, http.MethodPost)

	// Run history
	v1("/backtests/runs", runHandler.ListRuns, http.MethodGet)
	v1("/backtests/runs/{id}", runHandler.GetRun, http.MethodGet)

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(db HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"status":  "ok",
			"service": "factorlab-api",
		}
		status := http.StatusOK

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			health, err := db.HealthCheck(ctx)
			body["database"] = health
			if err != nil {
				body["status"] = "degraded"
				status = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
}
