package audit

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIC_PerfectCorrelationIsKept(t *testing.T) {
	factor := map[string]float64{"A": 1, "B": 2, "C": 3, "D": 4, "E": 5}
	forward := map[string]float64{}
	for code, f := range factor {
		forward[code] = 0.02*f - 0.01
	}
	date := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	for _, useRank := range []bool{false, true} {
		p := ICAt(date, factor, forward, useRank)
		assert.InDelta(t, 1.0, p.IC, 1e-12, "rank=%v", useRank)
		assert.Less(t, p.PValue, SignificanceLevel)
		assert.Equal(t, 5, p.N)
	}
}

func TestIC_InsignificantIsForcedToZero(t *testing.T) {
	factor := map[string]float64{"A": 1, "B": 2, "C": 3, "D": 4}
	forward := map[string]float64{"A": 1, "B": -1, "C": 1, "D": -1}

	p := ICAt(time.Time{}, factor, forward, false)

	r := -2 / (math.Sqrt(5) * 2)
	tStat := r * math.Sqrt(2/(1-r*r))
	// df=2 인 t 분포의 양측 p-value 닫힌 형태
	wantP := 1 - math.Abs(tStat)/math.Sqrt(2+tStat*tStat)

	assert.InDelta(t, r, p.Correlation, 1e-12)
	assert.InDelta(t, wantP, p.PValue, 1e-9)
	assert.Greater(t, p.PValue, SignificanceLevel)
	assert.Equal(t, 0.0, p.IC)
}

func TestIC_InnerJoinDropsNaN(t *testing.T) {
	factor := map[string]float64{"A": 1, "B": 2, "C": math.NaN(), "D": 4, "E": 5}
	forward := map[string]float64{"A": 1, "B": 2, "C": 3, "D": math.NaN(), "X": 9}

	corr, _, n := IC(factor, forward, false)
	assert.Equal(t, 2, n)
	assert.InDelta(t, 1.0, corr, 1e-12)

	_, p, n := IC(map[string]float64{"A": 1}, forward, false)
	assert.Equal(t, 1, n)
	assert.True(t, math.IsNaN(p))
}

func TestCorrelationPValue_CauchyCase(t *testing.T) {
	// n=3 이면 자유도 1 (코시 분포)
	r := 0.6
	tStat := r / math.Sqrt(1-r*r)
	want := 1 - 2*math.Atan(tStat)/math.Pi

	assert.InDelta(t, want, correlationPValue(r, 3), 1e-9)
	assert.Equal(t, 1.0, correlationPValue(0.3, 2))
	assert.Equal(t, 0.0, correlationPValue(-1, 10))
}

func TestAverageRanks(t *testing.T) {
	assert.Equal(t, []float64{2, 3.5, 3.5, 1}, averageRanks([]float64{10, 20, 20, 5}))
}

func TestSummarizeIC(t *testing.T) {
	s := SummarizeIC([]ICPoint{{IC: 0.1}, {IC: 0.3}, {IC: math.NaN()}})

	assert.InDelta(t, 0.2, s.Mean, 1e-12)
	assert.InDelta(t, 0.2/math.Sqrt(0.02), s.IR, 1e-9)
	assert.Len(t, s.Series, 3)

	empty := SummarizeIC(nil)
	assert.True(t, math.IsNaN(empty.Mean))
	assert.True(t, math.IsNaN(empty.IR))
}
