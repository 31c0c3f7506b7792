package s0_data

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/wonny/factorlab/internal/contracts"
)

// ReturnMode selects how the forward return of a rebalance period is measured
type ReturnMode string

const (
	// ReturnModeCustom measures the adjusted-close move between the two dates
	ReturnModeCustom ReturnMode = "custom"
	// ReturnModeStandard reads the precomputed momentum field stored on the later date
	ReturnModeStandard ReturnMode = "standard"
)

// ParseReturnMode maps a name onto a ReturnMode; empty means custom
func ParseReturnMode(s string) (ReturnMode, error) {
	switch m := ReturnMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ReturnModeCustom:
		return ReturnModeCustom, nil
	case ReturnModeStandard:
		return ReturnModeStandard, nil
	default:
		return "", fmt.Errorf("unknown return mode %q", s)
	}
}

// ForwardReturnSource yields each security's return over (from, to].
// Securities without data are simply absent from the result.
type ForwardReturnSource interface {
	Forward(ctx context.Context, from, to time.Time, securities []string) (map[string]float64, error)
}

// AdjustedPriceForward implements ReturnModeCustom
type AdjustedPriceForward struct {
	prices contracts.PriceProvider
}

// NewAdjustedPriceForward creates the custom forward-return strategy
func NewAdjustedPriceForward(prices contracts.PriceProvider) *AdjustedPriceForward {
	return &AdjustedPriceForward{prices: prices}
}

// Forward implements ForwardReturnSource
func (f *AdjustedPriceForward) Forward(ctx context.Context, from, to time.Time, securities []string) (map[string]float64, error) {
	bars, err := f.prices.Bars(ctx, securities, from, to)
	if err != nil {
		return nil, fmt.Errorf("forward prices %s..%s: %w", from.Format("2006-01-02"), to.Format("2006-01-02"), err)
	}
	return ForwardFromCloses(PostCloses(bars), from, to), nil
}

// ForwardFromCloses computes close[to]/close[from] − 1 for codes priced on both dates
func ForwardFromCloses(closes map[string]map[time.Time]float64, from, to time.Time) map[string]float64 {
	from, to = contracts.DateOf(from), contracts.DateOf(to)
	out := make(map[string]float64)
	for code, byDate := range closes {
		start, ok1 := byDate[from]
		end, ok2 := byDate[to]
		if !ok1 || !ok2 || start == 0 {
			continue
		}
		if r := end/start - 1; !math.IsNaN(r) {
			out[code] = r
		}
	}
	return out
}

// PrecomputedForward implements ReturnModeStandard
type PrecomputedForward struct {
	fundamentals contracts.FundamentalProvider
	period       contracts.Period
}

// NewPrecomputedForward creates the standard strategy for a holding period.
// Only day, week and month periods have a stored field.
func NewPrecomputedForward(fundamentals contracts.FundamentalProvider, period contracts.Period) (*PrecomputedForward, error) {
	switch period {
	case contracts.PeriodDay, contracts.PeriodWeek, contracts.PeriodMonth:
	default:
		return nil, fmt.Errorf("no precomputed return field for period %q", period)
	}
	return &PrecomputedForward{fundamentals: fundamentals, period: period}, nil
}

// Forward implements ForwardReturnSource; from is unused since the field
// already spans the period ending on to.
func (f *PrecomputedForward) Forward(ctx context.Context, _, to time.Time, securities []string) (map[string]float64, error) {
	rows, err := f.fundamentals.Fundamentals(ctx, to, securities)
	if err != nil {
		return nil, fmt.Errorf("forward fundamentals %s: %w", to.Format("2006-01-02"), err)
	}
	out := make(map[string]float64, len(rows))
	for _, row := range rows {
		if v, ok := row.ReturnFor(f.period); ok && !math.IsNaN(v) {
			out[row.Code] = v
		}
	}
	return out, nil
}

// NewForwardReturnSource builds the strategy selected by mode
func NewForwardReturnSource(mode ReturnMode, prices contracts.PriceProvider, fundamentals contracts.FundamentalProvider, period contracts.Period) (ForwardReturnSource, error) {
	switch mode {
	case ReturnModeCustom:
		return NewAdjustedPriceForward(prices), nil
	case ReturnModeStandard:
		return NewPrecomputedForward(fundamentals, period)
	default:
		return nil, fmt.Errorf("unknown return mode %q", mode)
	}
}
