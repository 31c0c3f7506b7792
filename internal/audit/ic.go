package audit

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// SignificanceLevel is the p-value above which a date's IC is treated as 0
const SignificanceLevel = 0.05

// ICPoint is the information coefficient of one rebalance date
type ICPoint struct {
	Date        time.Time `json:"date"`
	IC          float64   `json:"ic"`          // after the significance policy
	Correlation float64   `json:"correlation"` // raw coefficient
	PValue      float64   `json:"p_value"`
	N           int       `json:"n"`
}

// ICSummary aggregates an IC series
type ICSummary struct {
	Series []ICPoint `json:"series"`
	Mean   float64   `json:"ic_mean"`
	IR     float64   `json:"icir"`
}

// IC correlates a factor cross-section with forward returns over the securities
// present and finite in both. useRank selects Spearman, otherwise Pearson.
// The p-value is two-sided.
func IC(factor, forward map[string]float64, useRank bool) (corr, pValue float64, n int) {
	codes := make([]string, 0, len(factor))
	for code, f := range factor {
		r, ok := forward[code]
		if !ok || math.IsNaN(f) || math.IsNaN(r) || math.IsInf(f, 0) || math.IsInf(r, 0) {
			continue
		}
		codes = append(codes, code)
	}
	sort.Strings(codes)

	x := make([]float64, len(codes))
	y := make([]float64, len(codes))
	for i, code := range codes {
		x[i] = factor[code]
		y[i] = forward[code]
	}
	n = len(codes)
	if n < 2 {
		return math.NaN(), math.NaN(), n
	}
	if useRank {
		x, y = averageRanks(x), averageRanks(y)
	}

	corr = stat.Correlation(x, y, nil)
	return corr, correlationPValue(corr, n), n
}

// ICAt builds the point of one date with the significance policy applied
func ICAt(date time.Time, factor, forward map[string]float64, useRank bool) ICPoint {
	corr, p, n := IC(factor, forward, useRank)
	ic := corr
	if p > SignificanceLevel {
		ic = 0
	}
	return ICPoint{Date: date, IC: ic, Correlation: corr, PValue: p, N: n}
}

// SummarizeIC returns mean IC and mean/std. NaN points are skipped.
func SummarizeIC(points []ICPoint) ICSummary {
	var ics []float64
	for _, p := range points {
		if !math.IsNaN(p.IC) {
			ics = append(ics, p.IC)
		}
	}
	s := ICSummary{Series: points, Mean: math.NaN(), IR: math.NaN()}
	if len(ics) == 0 {
		return s
	}
	s.Mean = stat.Mean(ics, nil)
	if len(ics) > 1 {
		s.IR = s.Mean / stat.StdDev(ics, nil)
	}
	return s
}

func correlationPValue(r float64, n int) float64 {
	switch {
	case math.IsNaN(r):
		return math.NaN()
	case n == 2:
		return 1
	case math.Abs(r) >= 1:
		return 0
	}
	df := float64(n - 2)
	t := r * math.Sqrt(df/((1-r)*(1+r)))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * dist.CDF(-math.Abs(t))
}

// averageRanks assigns 1-based ranks, ties sharing the mean of their positions
func averageRanks(values []float64) []float64 {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	ranks := make([]float64, len(values))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}
