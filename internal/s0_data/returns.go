package s0_data

import (
	"math"
	"sort"
	"time"

	"github.com/wonny/factorlab/internal/contracts"
	"github.com/wonny/factorlab/internal/grouping"
)

// PostCloses indexes adjusted closes (close × adj_factor) by code, then date
func PostCloses(bars []contracts.Bar) map[string]map[time.Time]float64 {
	out := make(map[string]map[time.Time]float64)
	for _, b := range bars {
		byDate, ok := out[b.Code]
		if !ok {
			byDate = make(map[time.Time]float64)
			out[b.Code] = byDate
		}
		byDate[contracts.DateOf(b.Date)] = b.PostClose()
	}
	return out
}

// Returns computes the one-period return of every bar against the previous bar
// of the same security: post_close[d] / post_close[prev] − 1. Each security's
// first bar has no return. Gaps (suspended days without a bar) are bridged.
func Returns(bars []contracts.Bar) grouping.ReturnSeries {
	byCode := make(map[string][]contracts.Bar)
	for _, b := range bars {
		byCode[b.Code] = append(byCode[b.Code], b)
	}

	out := make(grouping.ReturnSeries, len(byCode))
	for code, series := range byCode {
		sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
		returns := make(map[time.Time]float64, len(series))
		for i := 1; i < len(series); i++ {
			prev, cur := series[i-1].PostClose(), series[i].PostClose()
			if prev == 0 || math.IsNaN(prev) || math.IsNaN(cur) {
				continue
			}
			returns[contracts.DateOf(series[i].Date)] = cur/prev - 1
		}
		out[code] = returns
	}
	return out
}
