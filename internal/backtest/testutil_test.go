package backtest

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wonny/factorlab/internal/calendar"
	"github.com/wonny/factorlab/internal/contracts"
)

func d(m time.Month, day int) time.Time {
	return time.Date(2024, m, day, 0, 0, 0, 0, time.UTC)
}

// 2024-01-02 ~ 2024-04-30 평일
func tradingDays() []time.Time {
	var dates []time.Time
	for cur := d(time.January, 2); !cur.After(d(time.April, 30)); cur = cur.AddDate(0, 0, 1) {
		if cur.Weekday() == time.Saturday || cur.Weekday() == time.Sunday {
			continue
		}
		dates = append(dates, cur)
	}
	return dates
}

func testCalendar(t *testing.T) *calendar.Calendar {
	t.Helper()
	cal, err := calendar.New(calendar.DeriveDays(tradingDays()))
	require.NoError(t, err)
	return cal
}

// growthBars prices code at 100 × (1+daily)^k on the k-th trading day
func growthBars(code string, daily float64) []contracts.Bar {
	var bars []contracts.Bar
	for k, day := range tradingDays() {
		bars = append(bars, contracts.Bar{
			Code:      code,
			Date:      day,
			Close:     100 * math.Pow(1+daily, float64(k)),
			AdjFactor: 1,
			Volume:    1000,
		})
	}
	return bars
}

type stubPrices struct {
	bars  []contracts.Bar
	calls int
}

func (s *stubPrices) Bars(_ context.Context, securities []string, start, end time.Time) ([]contracts.Bar, error) {
	s.calls++
	want := make(map[string]bool, len(securities))
	for _, c := range securities {
		want[c] = true
	}
	var out []contracts.Bar
	for _, b := range s.bars {
		if securities != nil && !want[b.Code] {
			continue
		}
		if b.Date.Before(start) || b.Date.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

type stubFactors struct {
	obs []contracts.FactorObservation
}

func (s stubFactors) Observations(_ context.Context, factor string, start, end time.Time) ([]contracts.FactorObservation, error) {
	var out []contracts.FactorObservation
	for _, o := range s.obs {
		if !o.Date.Before(start) && !o.Date.After(end) {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return nil, &contracts.MissingDataError{Source: "factor", Field: factor}
	}
	return out, nil
}

type stubUniverse struct {
	members map[time.Time][]string
}

func (s stubUniverse) Members(_ context.Context, date time.Time, basket contracts.Basket, _ ...contracts.Filter) (*contracts.Universe, error) {
	m, ok := s.members[date]
	if !ok {
		return nil, &contracts.MissingDataError{Source: "universe", Date: date, Field: string(basket)}
	}
	return contracts.NewUniverse(date, basket, m), nil
}

// A..D 가 1..4, 1/31 과 2/29 리밸런싱
func fourSecurityFactor() []contracts.FactorObservation {
	var obs []contracts.FactorObservation
	for _, day := range []time.Time{d(time.January, 31), d(time.February, 29)} {
		for i, code := range []string{"A", "B", "C", "D"} {
			obs = append(obs, contracts.FactorObservation{Code: code, Date: day, Value: float64(i + 1)})
		}
	}
	return obs
}

// A 는 매일 +1%, 나머지는 보합
func fourSecurityPrices() *stubPrices {
	var bars []contracts.Bar
	bars = append(bars, growthBars("A", 0.01)...)
	for _, code := range []string{"B", "C", "D"} {
		bars = append(bars, growthBars(code, 0)...)
	}
	return &stubPrices{bars: bars}
}
