package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/factorlab/internal/api/handlers"
	"github.com/wonny/factorlab/internal/audit"
	"github.com/wonny/factorlab/internal/backtest"
	"github.com/wonny/factorlab/internal/contracts"
	"github.com/wonny/factorlab/pkg/config"
	"github.com/wonny/factorlab/pkg/database"
	"github.com/wonny/factorlab/pkg/logger"
)

type failingRunner struct{}

func (failingRunner) Run(context.Context, backtest.Config) (*backtest.Result, error) {
	return nil, errors.New("no data source")
}

func (failingRunner) LoadIC(context.Context, backtest.Config) (*audit.ICSummary, error) {
	return nil, errors.New("no data source")
}

type emptyHistory struct{}

func (emptyHistory) ListRuns(context.Context, string, int) ([]audit.RunRecord, error) {
	return nil, nil
}

func (emptyHistory) GetRun(_ context.Context, id string) (*audit.RunRecord, error) {
	return nil, &contracts.MissingDataError{Source: "audit.backtest_runs", Field: "run " + id}
}

type fakeDB struct{ err error }

func (f fakeDB) HealthCheck(context.Context) (*database.HealthStatus, error) {
	if f.err != nil {
		return &database.HealthStatus{Error: f.err.Error()}, f.err
	}
	return &database.HealthStatus{Healthy: true}, nil
}

func testRouter(db HealthChecker, apiCfg config.APIConfig) http.Handler {
	h := handlers.NewBacktestHandler(failingRunner{}, config.BacktestConfig{Groups: 5, Basket: "a_share"}, logger.Nop())
	runs := handlers.NewRunHandler(emptyHistory{}, logger.Nop())
	return NewRouter(h, runs, db, apiCfg, logger.Nop())
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		db     HealthChecker
		code   int
		status string
	}{
		{"no database", nil, http.StatusOK, "ok"},
		{"healthy", fakeDB{}, http.StatusOK, "ok"},
		{"down", fakeDB{err: errors.New("refused")}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			testRouter(tt.db, config.APIConfig{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.code, rec.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body["status"])
		})
	}
}

func TestRouter_Routes(t *testing.T) {
	router := testRouter(nil, config.APIConfig{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/backtests/group", strings.NewReader(`{"factor":"size"}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/backtests/ic", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/backtests/group", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/backtests/runs", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/backtests/runs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":0,"runs":[]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/backtests/runs/size_abc", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	router := testRouter(nil, config.APIConfig{RateLimit: 0.001, RateBurst: 2})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/backtests/ic", strings.NewReader(`{}`)))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusTooManyRequests}, codes)

	// 버킷은 모든 v1 라우트가 공유
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/backtests/runs", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// health는 제한 대상 아님
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	rec := httptest.NewRecorder()

	recoveryMiddleware(logger.Nop())(panicking).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
}
