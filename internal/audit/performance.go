package audit

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/factorlab/internal/grouping"
	"github.com/wonny/factorlab/pkg/logger"
)

// TradingDaysPerYear is the annualization convention for every indicator
const TradingDaysPerYear = 252

// IndicatorRow is one line of the indicator table
type IndicatorRow struct {
	Name             string  `json:"name"`
	AnnualizedReturn float64 `json:"annualized_return"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
}

// Analyzer implements S6: performance indicators over net-value matrices
// ⭐ SSOT: 성과 지표 계산은 여기서만
type Analyzer struct {
	logger *logger.Logger
}

// NewAnalyzer creates a new performance analyzer
func NewAnalyzer(log *logger.Logger) *Analyzer {
	return &Analyzer{logger: log}
}

// Evaluate computes the indicator table of a net-value matrix and logs it
func (a *Analyzer) Evaluate(netValue *grouping.Matrix) []IndicatorRow {
	rows := Indicators(netValue)
	for _, r := range rows {
		a.logger.WithFields(map[string]interface{}{
			"column":            r.Name,
			"annualized_return": r.AnnualizedReturn,
			"max_drawdown":      r.MaxDrawdown,
			"sharpe":            r.SharpeRatio,
		}).Debug("Indicator computed")
	}
	return rows
}

// Indicators computes annualized return, max drawdown and Sharpe ratio for
// every column of a net-value matrix.
func Indicators(netValue *grouping.Matrix) []IndicatorRow {
	rows := make([]IndicatorRow, 0, len(netValue.Columns()))
	for _, name := range netValue.Columns() {
		values, _ := netValue.Column(name)
		rows = append(rows, IndicatorRow{
			Name:             name,
			AnnualizedReturn: AnnualizedReturn(values),
			MaxDrawdown:      MaxDrawdown(values),
			SharpeRatio:      SharpeRatio(values),
		})
	}
	return rows
}

// AnnualizedReturn = last^(252/n) − 1 where n counts every row.
// Elapsed calendar time is ignored.
func AnnualizedReturn(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	last := values[len(values)-1]
	return math.Pow(last, TradingDaysPerYear/float64(len(values))) - 1
}

// MaxDrawdown returns the largest peak-to-trough loss as a positive number.
// NaN values are skipped.
func MaxDrawdown(values []float64) float64 {
	peak := math.Inf(-1)
	worst := math.NaN()
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if v > peak {
			peak = v
		}
		dd := v/peak - 1
		if math.IsNaN(worst) || dd < worst {
			worst = dd
		}
	}
	if math.IsNaN(worst) {
		return worst
	}
	if worst < 0 {
		return -worst
	}
	return 0
}

// SharpeRatio = mean(pct) / std(pct) × √252 over daily pct changes of the
// net value, undefined changes counted as 0. std is the sample deviation.
func SharpeRatio(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	pct := PctChange(values)
	for i, v := range pct {
		if math.IsNaN(v) {
			pct[i] = 0
		}
	}
	return stat.Mean(pct, nil) / stat.StdDev(pct, nil) * math.Sqrt(TradingDaysPerYear)
}

// PctChange returns v[i]/v[i-1] − 1, NaN at position 0
func PctChange(values []float64) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = values[i]/values[i-1] - 1
	}
	return out
}
