package backtest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wonny/factorlab/internal/audit"
	"github.com/wonny/factorlab/internal/calendar"
	"github.com/wonny/factorlab/internal/contracts"
	"github.com/wonny/factorlab/internal/grouping"
	"github.com/wonny/factorlab/internal/s0_data"
	"github.com/wonny/factorlab/pkg/logger"
)

// PortfolioColumn names the single column of a portfolio net-value matrix
const PortfolioColumn = "portfolio"

// Weights maps rebalance date → security → target weight
type Weights map[time.Time]map[string]float64

// PortfolioConfig holds one portfolio backtest run
type PortfolioConfig struct {
	RunID    string  `json:"run_id,omitempty"`
	Strategy string  `json:"strategy"`
	Freq     string  `json:"freq"`
	Weights  Weights `json:"-"`
}

// PortfolioResult holds portfolio backtest results
type PortfolioResult struct {
	RunID      string               `json:"run_id"`
	Strategy   string               `json:"strategy"`
	Start      time.Time            `json:"start"`
	End        time.Time            `json:"end"`
	Returns    *grouping.Matrix     `json:"returns"`
	NetValue   *grouping.Matrix     `json:"net_value"`
	Indicators []audit.IndicatorRow `json:"indicators"`
}

// PortfolioEngine backtests explicit holdings
// ⭐ SSOT: 보유 비중 기반 백테스트는 여기서만
type PortfolioEngine struct {
	prices   contracts.PriceProvider
	cal      *calendar.Calendar
	analyzer *audit.Analyzer
	logger   *logger.Logger
}

// NewPortfolioEngine creates a new portfolio backtest engine
func NewPortfolioEngine(prices contracts.PriceProvider, cal *calendar.Calendar, log *logger.Logger) *PortfolioEngine {
	return &PortfolioEngine{
		prices:   prices,
		cal:      cal,
		analyzer: audit.NewAnalyzer(log),
		logger:   log,
	}
}

// Run holds each rebalance date's weights until the next rebalance date and
// compounds the daily portfolio return Σ w·r.
//
// Weights set on date d earn returns from the next trading date on. The run
// covers the first rebalance date through the last one shifted by Freq.
// Securities without a return on a date contribute nothing.
func (e *PortfolioEngine) Run(ctx context.Context, cfg PortfolioConfig) (*PortfolioResult, error) {
	if len(cfg.Weights) == 0 {
		return nil, &contracts.MissingDataError{Source: "portfolio", Field: "weights"}
	}
	if cfg.Freq == "" {
		cfg.Freq = DefaultFreq
	}
	if cfg.RunID == "" {
		cfg.RunID = GenerateRunID()
	}
	step, err := calendar.ParseStep(cfg.Freq)
	if err != nil {
		return nil, err
	}
	log := e.logger.WithRun(cfg.RunID)

	rebalance := make([]time.Time, 0, len(cfg.Weights))
	holdings := make(map[time.Time]map[string]float64, len(cfg.Weights))
	codeSet := make(map[string]struct{})
	for d, w := range cfg.Weights {
		d = contracts.DateOf(d)
		if !e.cal.IsTradingDay(d) {
			return nil, &contracts.TimingViolationError{
				Stage:  contracts.StagePanel,
				Date:   d,
				Reason: "rebalance date is not a trading day",
			}
		}
		rebalance = append(rebalance, d)
		holdings[d] = w
		for code := range w {
			codeSet[code] = struct{}{}
		}
	}
	sort.Slice(rebalance, func(i, j int) bool { return rebalance[i].Before(rebalance[j]) })

	end, err := e.cal.Shift(rebalance[len(rebalance)-1], step, calendar.Post)
	if err != nil {
		return nil, fmt.Errorf("shift last rebalance date: %w", err)
	}
	dates, err := e.cal.TradingDates(rebalance[0], end, contracts.PeriodDay)
	if err != nil {
		return nil, fmt.Errorf("trading dates: %w", err)
	}

	codes := make([]string, 0, len(codeSet))
	for code := range codeSet {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	log.WithFields(map[string]interface{}{
		"strategy":   cfg.Strategy,
		"start":      dates[0].Format("2006-01-02"),
		"end":        end.Format("2006-01-02"),
		"rebalances": len(rebalance),
		"securities": len(codes),
	}).Info("Starting portfolio backtest")

	bars, err := e.prices.Bars(ctx, codes, dates[0], end)
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}
	returns := s0_data.Returns(bars)

	// T-1 시점 비중으로 T 수익률 계산
	values := make([][]float64, len(dates))
	var held map[string]float64
	for i, d := range dates {
		total := 0.0
		for code, w := range held {
			r, ok := returns[code][d]
			if !ok || math.IsNaN(r) || math.IsNaN(w) {
				continue
			}
			total += w * r
		}
		values[i] = []float64{total}
		if w, ok := holdings[d]; ok {
			held = w
		}
	}

	retMatrix, err := grouping.NewMatrix(dates, []string{PortfolioColumn}, values)
	if err != nil {
		return nil, err
	}
	netValue := grouping.NetValue(retMatrix)

	result := &PortfolioResult{
		RunID:      cfg.RunID,
		Strategy:   cfg.Strategy,
		Start:      dates[0],
		End:        end,
		Returns:    retMatrix,
		NetValue:   netValue,
		Indicators: e.analyzer.Evaluate(netValue),
	}

	log.WithField("rows", len(dates)).Info("Portfolio backtest completed")
	return result, nil
}
