package grouping

import (
	"math"
	"time"

	"github.com/wonny/factorlab/internal/contracts"
)

// ReturnSeries holds one-period realized returns keyed by security, then date.
// The return on date d is the move from the previous trading date to d.
type ReturnSeries map[string]map[time.Time]float64

// AlignedRow attributes the return realized on Date to the bucket the security
// was in on the previous trading date.
type AlignedRow struct {
	Security string    `json:"security"`
	Date     time.Time `json:"date"`
	Bucket   int       `json:"bucket"`
	Return   float64   `json:"return"`
}

// LagAndAlign shifts every security's bucket one date forward and joins it to
// the return realized on the new date.
//
// Position 0 has no prior assignment and is dropped, as is any position whose
// previous bucket is empty. Every other position yields a row; a missing return
// is carried as NaN so the date survives aggregation. Rows come out ordered by
// date, then security.
func LagAndAlign(buckets *BucketPanel, returns ReturnSeries) ([]AlignedRow, error) {
	if len(buckets.dates) < 2 {
		var at time.Time
		if len(buckets.dates) == 1 {
			at = buckets.dates[0]
		}
		return nil, &contracts.TimingViolationError{
			Stage:  contracts.StageAlign,
			Date:   at,
			Reason: "lag alignment needs at least two dates of history",
		}
	}

	var rows []AlignedRow
	for i := 1; i < len(buckets.dates); i++ {
		d := buckets.dates[i]
		for row, code := range buckets.securities {
			// i-1 시점의 그룹만 사용 (당일 정보 사용 금지)
			prev := buckets.buckets[row][i-1]
			if prev == NoBucket {
				continue
			}
			r, ok := returns[code][d]
			if !ok {
				r = math.NaN()
			}
			rows = append(rows, AlignedRow{Security: code, Date: d, Bucket: prev, Return: r})
		}
	}
	return rows, nil
}
