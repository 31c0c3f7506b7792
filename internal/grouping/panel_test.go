package grouping

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wonny/factorlab/internal/contracts"
)

func TestBuildPanel_ForwardFill(t *testing.T) {
	dates := []time.Time{jan(2), jan(3), jan(4), jan(5), jan(8)}
	sparse := SparseFactor{
		"A": {jan(2): 1, jan(5): 2},
		"B": {jan(2): 3},
	}

	p, err := BuildPanel(sparse, dates, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, p.Securities())
	assert.Equal(t, dates, p.Dates())
	assert.Equal(t, []float64{1, 1, 1, 2, 2}, p.Series("A"))

	b := p.Series("B")
	assert.Equal(t, []float64{3, 3, 3}, b[:3])
	assert.True(t, math.IsNaN(b[3]), "B has no observation on the second rebalance date")
	assert.True(t, math.IsNaN(b[4]))
}

func TestBuildPanel_NonRebalanceDatesRepeatPreviousDate(t *testing.T) {
	dates := []time.Time{jan(2), jan(3), jan(4), jan(5), jan(8), jan(9)}
	sparse := SparseFactor{
		"A": {jan(2): 0.5, jan(5): -1, jan(9): 4},
		"B": {jan(2): 1.5, jan(5): 2},
		"C": {jan(5): 7, jan(9): 8},
	}
	p, err := BuildPanel(sparse, dates, nil)
	require.NoError(t, err)

	rebalance := map[time.Time]bool{jan(2): true, jan(5): true, jan(9): true}
	for i := 1; i < len(dates); i++ {
		if rebalance[dates[i]] {
			continue
		}
		for _, s := range p.Securities() {
			cur, prev := p.Value(s, i), p.Value(s, i-1)
			if math.IsNaN(prev) {
				assert.True(t, math.IsNaN(cur), "%s on %s", s, dates[i])
				continue
			}
			assert.Equal(t, prev, cur, "%s on %s", s, dates[i])
		}
	}
}

func TestBuildPanel_ReindexOntoUniverse(t *testing.T) {
	dates := []time.Time{jan(2), jan(3)}
	sparse := SparseFactor{
		"A": {jan(2): 1},
		"B": {jan(2): 2},
	}
	resolver := func(d time.Time) []string { return []string{"A", "C"} }

	p, err := BuildPanel(sparse, dates, resolver)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "C"}, p.Securities(), "B is outside the universe")
	assert.Equal(t, []float64{1, 1}, p.Series("A"))
	assert.True(t, math.IsNaN(p.Value("C", 0)), "member without a factor value is NaN")
	assert.True(t, math.IsNaN(p.Value("B", 0)))
	assert.Nil(t, p.Series("B"))
}

func TestBuildPanel_Errors(t *testing.T) {
	sparse := SparseFactor{"A": {jan(3): 1}}

	tests := []struct {
		name    string
		dates   []time.Time
		wantErr error
	}{
		{"starts before first rebalance", []time.Time{jan(2), jan(3)}, contracts.ErrTimingViolation},
		{"not ascending", []time.Time{jan(3), jan(3)}, contracts.ErrTimingViolation},
		{"empty", nil, contracts.ErrMissingData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildPanel(sparse, tt.dates, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestPanel_AccessorsReturnCopies(t *testing.T) {
	p, err := BuildPanel(SparseFactor{"A": {jan(2): 1}}, []time.Time{jan(2), jan(3)}, nil)
	require.NoError(t, err)

	s := p.Series("A")
	s[0] = 99
	d := p.Dates()
	d[0] = jan(31)

	assert.Equal(t, 1.0, p.Value("A", 0))
	assert.Equal(t, jan(2), p.Dates()[0])
}

func TestSparseFromObservations(t *testing.T) {
	obs := []contracts.FactorObservation{
		{Code: "A", Date: time.Date(2024, 1, 5, 15, 0, 0, 0, time.UTC), Value: 1},
		{Code: "A", Date: jan(2), Value: 2},
		{Code: "B", Date: jan(5), Value: 3},
	}
	sf := SparseFromObservations(obs)

	assert.Equal(t, []time.Time{jan(2), jan(5)}, sf.RebalanceDates())
	assert.Equal(t, map[string]float64{"A": 1, "B": 3}, sf.CrossSection(jan(5)))
}
