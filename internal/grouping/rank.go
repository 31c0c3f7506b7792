package grouping

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wonny/factorlab/internal/contracts"
)

// NoBucket marks a security without a bucket on a date (NaN rank)
const NoBucket = 0

// Rank converts each date's cross-section into dense percentile ranks.
// Tied values share a rank and the percentile is rank / number of distinct values,
// so the highest value always maps to 1.0. NaN stays NaN.
func Rank(p *Panel) *Panel {
	values := make([][]float64, len(p.securities))
	for row := range values {
		values[row] = make([]float64, len(p.dates))
	}

	for i := range p.dates {
		distinct := distinctSorted(p, i)
		for row := range p.securities {
			v := p.values[row][i]
			if math.IsNaN(v) {
				values[row][i] = math.NaN()
				continue
			}
			rank := sort.SearchFloat64s(distinct, v) + 1
			values[row][i] = float64(rank) / float64(len(distinct))
		}
	}

	return newPanel(p.Dates(), p.Securities(), values)
}

func distinctSorted(p *Panel, i int) []float64 {
	seen := make(map[float64]struct{})
	out := make([]float64, 0, len(p.securities))
	for row := range p.securities {
		v := p.values[row][i]
		if math.IsNaN(v) {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}

// BucketPanel is an immutable securities × dates matrix of bucket ids in [1, G].
// NoBucket marks an excluded (NaN-ranked) security.
type BucketPanel struct {
	dates      []time.Time
	securities []string
	index      map[string]int
	buckets    [][]int // [security][date]
	groups     int
	degenerate []contracts.DegenerateCrossSection
}

// Bucket partitions percentile ranks into groups equal-width bins:
// bucket = floor(pct*100 / ((1/groups)*100)) + 1, with groups+1 (pct == 1.0)
// folded into groups. Dates with fewer distinct ranks than groups are recorded
// as degenerate; some of their buckets are simply empty.
func Bucket(ranks *Panel, groups int) (*BucketPanel, error) {
	if groups < 1 {
		return nil, fmt.Errorf("group count must be >= 1, got %d", groups)
	}

	width := (1 / float64(groups)) * 100
	buckets := make([][]int, len(ranks.securities))
	for row := range buckets {
		buckets[row] = make([]int, len(ranks.dates))
	}

	var degenerate []contracts.DegenerateCrossSection
	for i, d := range ranks.dates {
		if n := len(distinctSorted(ranks, i)); n < groups {
			degenerate = append(degenerate, contracts.DegenerateCrossSection{Date: d, Distinct: n, Groups: groups})
		}
		for row := range ranks.securities {
			pct := ranks.values[row][i]
			if math.IsNaN(pct) {
				buckets[row][i] = NoBucket
				continue
			}
			b := int(pct*100/width + 1)
			if b > groups {
				b = groups
			}
			buckets[row][i] = b
		}
	}

	return &BucketPanel{
		dates:      ranks.Dates(),
		securities: ranks.Securities(),
		index:      ranks.index,
		buckets:    buckets,
		groups:     groups,
		degenerate: degenerate,
	}, nil
}

// Groups returns G
func (b *BucketPanel) Groups() int {
	return b.groups
}

// Dates returns a copy of the date axis
func (b *BucketPanel) Dates() []time.Time {
	return append([]time.Time(nil), b.dates...)
}

// Securities returns a copy of the security axis
func (b *BucketPanel) Securities() []string {
	return append([]string(nil), b.securities...)
}

// Bucket returns the bucket of security at date position i
func (b *BucketPanel) Bucket(security string, i int) (int, bool) {
	row, ok := b.index[security]
	if !ok || i < 0 || i >= len(b.dates) {
		return NoBucket, false
	}
	v := b.buckets[row][i]
	return v, v != NoBucket
}

// Members returns the securities in bucket k at date position i, sorted
func (b *BucketPanel) Members(k, i int) []string {
	var out []string
	for row, s := range b.securities {
		if b.buckets[row][i] == k {
			out = append(out, s)
		}
	}
	return out
}

// Degenerate returns the dates whose cross-section could not fill every bucket
func (b *BucketPanel) Degenerate() []contracts.DegenerateCrossSection {
	return append([]contracts.DegenerateCrossSection(nil), b.degenerate...)
}
