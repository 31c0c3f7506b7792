// Package grouping turns sparse rebalance-date factor values into bucket
// portfolios and their daily returns.
//
// The pipeline is: BuildPanel (forward fill) → Rank → Bucket → LagAndAlign →
// Aggregate → NetValue. Every stage returns a new value; nothing is mutated
// after construction.
package grouping

import (
	"math"
	"sort"
	"time"

	"github.com/wonny/factorlab/internal/contracts"
)

// SparseFactor holds factor values keyed by security, then rebalance date
type SparseFactor map[string]map[time.Time]float64

// SparseFromObservations groups observations by security.
// Later duplicates of the same (security, date) win.
func SparseFromObservations(obs []contracts.FactorObservation) SparseFactor {
	sf := make(SparseFactor)
	for _, o := range obs {
		byDate, ok := sf[o.Code]
		if !ok {
			byDate = make(map[time.Time]float64)
			sf[o.Code] = byDate
		}
		byDate[contracts.DateOf(o.Date)] = o.Value
	}
	return sf
}

// RebalanceDates returns every date with at least one observation, ascending
func (s SparseFactor) RebalanceDates() []time.Time {
	set := make(map[time.Time]struct{})
	for _, byDate := range s {
		for d := range byDate {
			set[d] = struct{}{}
		}
	}
	dates := make([]time.Time, 0, len(set))
	for d := range set {
		dates = append(dates, d)
	}
	sortDates(dates)
	return dates
}

// CrossSection returns the observed values on date (absent securities omitted)
func (s SparseFactor) CrossSection(date time.Time) map[string]float64 {
	out := make(map[string]float64)
	for code, byDate := range s {
		if v, ok := byDate[date]; ok {
			out[code] = v
		}
	}
	return out
}

// UniverseResolver returns the basket members a rebalance cross-section is
// reindexed onto.
type UniverseResolver func(date time.Time) []string

// Panel is an immutable securities × dates matrix of float values.
// NaN means "no value" for that security on that date.
type Panel struct {
	dates      []time.Time
	securities []string
	index      map[string]int
	values     [][]float64 // [security][date]
}

func newPanel(dates []time.Time, securities []string, values [][]float64) *Panel {
	index := make(map[string]int, len(securities))
	for i, s := range securities {
		index[s] = i
	}
	return &Panel{dates: dates, securities: securities, index: index, values: values}
}

// Dates returns a copy of the panel's date axis
func (p *Panel) Dates() []time.Time {
	return append([]time.Time(nil), p.dates...)
}

// Securities returns a copy of the panel's security axis (sorted)
func (p *Panel) Securities() []string {
	return append([]string(nil), p.securities...)
}

// NumDates returns the length of the date axis
func (p *Panel) NumDates() int {
	return len(p.dates)
}

// Value returns the value of security at date position i, NaN when unknown
func (p *Panel) Value(security string, i int) float64 {
	row, ok := p.index[security]
	if !ok || i < 0 || i >= len(p.dates) {
		return math.NaN()
	}
	return p.values[row][i]
}

// Series returns a copy of one security's values along the date axis
func (p *Panel) Series(security string) []float64 {
	row, ok := p.index[security]
	if !ok {
		return nil
	}
	return append([]float64(nil), p.values[row]...)
}

// CrossSection returns the non-NaN values at date position i
func (p *Panel) CrossSection(i int) map[string]float64 {
	out := make(map[string]float64)
	if i < 0 || i >= len(p.dates) {
		return out
	}
	for row, s := range p.securities {
		if v := p.values[row][i]; !math.IsNaN(v) {
			out[s] = v
		}
	}
	return out
}

// BuildPanel reconstructs a dense daily panel from sparse rebalance-date values.
//
// dates must be ascending and start on a rebalance date. On a rebalance date the
// cross-section is taken from sparse (reindexed onto resolver(date) when resolver
// is non-nil, members without a value becoming NaN); on any other date the
// previous date's cross-section is carried forward unchanged.
func BuildPanel(sparse SparseFactor, dates []time.Time, resolver UniverseResolver) (*Panel, error) {
	if len(dates) == 0 {
		return nil, &contracts.MissingDataError{Source: "panel", Field: "trading_dates"}
	}
	for i := 1; i < len(dates); i++ {
		if !dates[i].After(dates[i-1]) {
			return nil, &contracts.TimingViolationError{
				Stage:  contracts.StagePanel,
				Date:   dates[i],
				Reason: "date sequence is not strictly ascending",
			}
		}
	}

	rebalance := make(map[time.Time]struct{})
	for _, d := range sparse.RebalanceDates() {
		rebalance[d] = struct{}{}
	}
	if _, ok := rebalance[dates[0]]; !ok {
		return nil, &contracts.TimingViolationError{
			Stage:  contracts.StagePanel,
			Date:   dates[0],
			Reason: "panel starts before a rebalance date, nothing to carry forward",
		}
	}

	// 리밸런싱일이 아니면 직전 단면을 그대로 공유 (읽기 전용)
	sections := make([]map[string]float64, len(dates))
	members := make(map[string]struct{})
	for i, d := range dates {
		if _, ok := rebalance[d]; !ok {
			sections[i] = sections[i-1]
			continue
		}
		cs := make(map[string]float64)
		if resolver != nil {
			for _, code := range resolver(d) {
				v, ok := sparse[code][d]
				if !ok {
					v = math.NaN()
				}
				cs[code] = v
			}
		} else {
			for code, byDate := range sparse {
				v, ok := byDate[d]
				if !ok {
					v = math.NaN()
				}
				cs[code] = v
			}
		}
		for code := range cs {
			members[code] = struct{}{}
		}
		sections[i] = cs
	}

	securities := make([]string, 0, len(members))
	for code := range members {
		securities = append(securities, code)
	}
	sort.Strings(securities)

	values := make([][]float64, len(securities))
	for row, code := range securities {
		series := make([]float64, len(dates))
		for i, cs := range sections {
			v, ok := cs[code]
			if !ok {
				v = math.NaN()
			}
			series[i] = v
		}
		values[row] = series
	}

	return newPanel(append([]time.Time(nil), dates...), securities, values), nil
}

func sortDates(dates []time.Time) {
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
}
