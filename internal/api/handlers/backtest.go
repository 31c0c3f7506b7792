package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/wonny/factorlab/internal/audit"
	"github.com/wonny/factorlab/internal/backtest"
	"github.com/wonny/factorlab/internal/contracts"
	"github.com/wonny/factorlab/internal/s0_data"
	"github.com/wonny/factorlab/pkg/config"
	"github.com/wonny/factorlab/pkg/logger"
)

// BacktestRunner runs group backtests (backtest.GroupEngine)
type BacktestRunner interface {
	Run(ctx context.Context, cfg backtest.Config) (*backtest.Result, error)
	LoadIC(ctx context.Context, cfg backtest.Config) (*audit.ICSummary, error)
}

// BacktestHandler handles backtest API endpoints
// ⭐ SSOT: 백테스트 API 핸들러는 이 구조체에서만
type BacktestHandler struct {
	runner   BacktestRunner
	defaults config.BacktestConfig
	logger   *logger.Logger
}

// NewBacktestHandler creates a new backtest handler
func NewBacktestHandler(runner BacktestRunner, defaults config.BacktestConfig, log *logger.Logger) *BacktestHandler {
	return &BacktestHandler{
		runner:   runner,
		defaults: defaults,
		logger:   log,
	}
}

// BacktestRequest is the JSON body of a backtest request
type BacktestRequest struct {
	Factor     string   `json:"factor"`
	Start      string   `json:"start,omitempty"` // Optional: YYYY-MM-DD
	End        string   `json:"end,omitempty"`   // Optional: YYYY-MM-DD
	Freq       string   `json:"freq,omitempty"`  // Default: m
	Basket     string   `json:"basket,omitempty"`
	Filters    []string `json:"filters,omitempty"`
	Groups     int      `json:"groups,omitempty"`
	LongShort  bool     `json:"long_short"`
	IC         bool     `json:"ic"`
	RankIC     bool     `json:"rank_ic"`
	ReturnMode string   `json:"return_mode,omitempty"` // custom | standard
}

// toConfig validates the request and fills server defaults
func (req BacktestRequest) toConfig(defaults config.BacktestConfig) (backtest.Config, error) {
	if req.Factor == "" {
		return backtest.Config{}, fmt.Errorf("factor is required")
	}

	cfg := backtest.Config{
		Factor:    req.Factor,
		Freq:      req.Freq,
		Groups:    req.Groups,
		LongShort: req.LongShort,
		IC:        req.IC,
		RankIC:    req.RankIC,
	}
	if cfg.Groups == 0 {
		cfg.Groups = defaults.Groups
	}
	if cfg.Groups < 1 {
		return backtest.Config{}, fmt.Errorf("groups must be >= 1")
	}

	basket := req.Basket
	if basket == "" {
		basket = defaults.Basket
	}
	var err error
	if cfg.Basket, err = contracts.ParseBasket(basket); err != nil {
		return backtest.Config{}, err
	}
	for _, name := range req.Filters {
		f, err := contracts.ParseFilter(name)
		if err != nil {
			return backtest.Config{}, err
		}
		cfg.Filters = append(cfg.Filters, f)
	}
	if cfg.ReturnMode, err = s0_data.ParseReturnMode(req.ReturnMode); err != nil {
		return backtest.Config{}, err
	}
	if cfg.Start, err = parseDate("start", req.Start); err != nil {
		return backtest.Config{}, err
	}
	if cfg.End, err = parseDate("end", req.End); err != nil {
		return backtest.Config{}, err
	}
	return cfg, nil
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid '%s' date format (expected YYYY-MM-DD)", field)
	}
	return t, nil
}

// decode reads and validates a request body
func (h *BacktestHandler) decode(w http.ResponseWriter, r *http.Request) (backtest.Config, bool) {
	var req BacktestRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return backtest.Config{}, false
	}

	cfg, err := req.toConfig(h.defaults)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return backtest.Config{}, false
	}
	return cfg, true
}

// RunGroup runs a grouping backtest and returns the full result
// POST /api/v1/backtests/group
func (h *BacktestHandler) RunGroup(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.decode(w, r)
	if !ok {
		return
	}

	result, err := h.runner.Run(r.Context(), cfg)
	if err != nil {
		h.logger.WithError(err).WithField("factor", cfg.Factor).Error("Group backtest failed")
		respondError(w, statusOf(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// ICResponse is the body of an IC request
type ICResponse struct {
	Factor string           `json:"factor"`
	RankIC bool             `json:"rank_ic"`
	IC     *audit.ICSummary `json:"ic"`
}

// RunIC computes the IC series of a factor without the grouping backtest
// POST /api/v1/backtests/ic
func (h *BacktestHandler) RunIC(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.decode(w, r)
	if !ok {
		return
	}
	cfg.IC = true

	summary, err := h.runner.LoadIC(r.Context(), cfg)
	if err != nil {
		h.logger.WithError(err).WithField("factor", cfg.Factor).Error("IC computation failed")
		respondError(w, statusOf(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, ICResponse{Factor: cfg.Factor, RankIC: cfg.RankIC, IC: summary})
}
