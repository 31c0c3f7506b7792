package grouping

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Five securities, two month-end rebalance dates, five groups.
func TestPipeline_TwoRebalanceDates(t *testing.T) {
	r1 := day(time.January, 31)
	r2 := day(time.February, 29)
	dates := []time.Time{r1, r2}

	sparse := SparseFactor{
		"A": {r1: 1, r2: 5},
		"B": {r1: 2, r2: 4},
		"C": {r1: 3, r2: 3},
		"D": {r1: 4, r2: 2},
		"E": {r1: 5, r2: 1},
	}
	// r1 수익률은 직전 배정이 없으므로 절대 반영되면 안 됨
	returns := ReturnSeries{
		"A": {r1: 9, r2: 0.02},
		"B": {r1: 9, r2: -0.01},
		"C": {r1: 9, r2: 0.03},
		"D": {r1: 9, r2: 0.05},
		"E": {r1: 9, r2: 0.01},
	}

	panel, err := BuildPanel(sparse, dates, nil)
	require.NoError(t, err)
	bp, err := Bucket(Rank(panel), 5)
	require.NoError(t, err)
	assert.Empty(t, bp.Degenerate())

	// dense percentile k/5 maps to bucket k+1; the top name folds into 5
	want := map[string]int{"A": 2, "B": 3, "C": 4, "D": 5, "E": 5}
	for code, b := range want {
		got, ok := bp.Bucket(code, 0)
		require.True(t, ok)
		assert.Equal(t, b, got, code)
	}

	rows, err := LagAndAlign(bp, returns)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	for _, r := range rows {
		assert.Equal(t, r2, r.Date, "no row may be attributed to the first rebalance date")
	}

	m, err := Aggregate(rows, dates, 5, true)
	require.NoError(t, err)
	require.Equal(t, 2, m.Rows())
	nv := NetValue(m)

	for k := 1; k <= 5; k++ {
		assert.Equal(t, 1.0, nv.At(0, k-1))
	}
	assert.True(t, math.IsNaN(nv.At(1, 0)), "bucket 1 is empty")
	assert.InDelta(t, 1.02, nv.At(1, 1), 1e-12)
	assert.InDelta(t, 0.99, nv.At(1, 2), 1e-12)
	assert.InDelta(t, 1.03, nv.At(1, 3), 1e-12)
	assert.InDelta(t, 1.03, nv.At(1, 4), 1e-12, "D and E share bucket 5")

	ls, _ := m.Column(LongShortColumn)
	assert.Equal(t, 0.0, ls[0])
	assert.True(t, math.IsNaN(ls[1]))
}

// A security with no factor value on a date drops out of that date's ranking
// without moving anyone else.
func TestPipeline_ExcludedSecurityDoesNotShiftRanks(t *testing.T) {
	base := SparseFactor{
		"A": {jan(2): 1},
		"B": {jan(2): 2},
		"C": {jan(2): 3},
	}
	withExtra := SparseFactor{
		"A": {jan(2): 1},
		"B": {jan(2): 2},
		"C": {jan(2): 3},
		"S": {jan(2): 2.5},
	}
	universe := func(time.Time) []string { return []string{"A", "B", "C"} }

	p1, err := BuildPanel(base, []time.Time{jan(2)}, nil)
	require.NoError(t, err)
	p2, err := BuildPanel(withExtra, []time.Time{jan(2)}, universe)
	require.NoError(t, err)

	r1, r2 := Rank(p1), Rank(p2)
	for _, code := range []string{"A", "B", "C"} {
		assert.Equal(t, r1.Value(code, 0), r2.Value(code, 0), code)
	}
}
