package grouping

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// LongShortColumn names the half-spread column of a return matrix
const LongShortColumn = "long-short"

// BucketColumn names the column of bucket k
func BucketColumn(k int) string {
	return strconv.Itoa(k)
}

// Matrix is an immutable dates × columns table of floats
type Matrix struct {
	dates   []time.Time
	columns []string
	values  [][]float64 // [row][column]
}

// NewMatrix copies its inputs into a Matrix. Every row must have one value per column.
func NewMatrix(dates []time.Time, columns []string, values [][]float64) (*Matrix, error) {
	if len(values) != len(dates) {
		return nil, fmt.Errorf("matrix has %d rows for %d dates", len(values), len(dates))
	}
	rows := make([][]float64, len(values))
	for r, row := range values {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("matrix row %d has %d values for %d columns", r, len(row), len(columns))
		}
		rows[r] = append([]float64(nil), row...)
	}
	return &Matrix{
		dates:   append([]time.Time(nil), dates...),
		columns: append([]string(nil), columns...),
		values:  rows,
	}, nil
}

// Dates returns a copy of the row axis
func (m *Matrix) Dates() []time.Time {
	return append([]time.Time(nil), m.dates...)
}

// Columns returns a copy of the column names
func (m *Matrix) Columns() []string {
	return append([]string(nil), m.columns...)
}

// Rows returns the number of rows
func (m *Matrix) Rows() int {
	return len(m.dates)
}

// At returns the value at row r, column c
func (m *Matrix) At(r, c int) float64 {
	return m.values[r][c]
}

// Row returns a copy of row r
func (m *Matrix) Row(r int) []float64 {
	return append([]float64(nil), m.values[r]...)
}

// Column returns a copy of the named column
func (m *Matrix) Column(name string) ([]float64, bool) {
	for c, col := range m.columns {
		if col != name {
			continue
		}
		out := make([]float64, len(m.values))
		for r := range m.values {
			out[r] = m.values[r][c]
		}
		return out, true
	}
	return nil, false
}

// MarshalJSON encodes the matrix column-wise; NaN becomes null
func (m *Matrix) MarshalJSON() ([]byte, error) {
	dates := make([]string, len(m.dates))
	for i, d := range m.dates {
		dates[i] = d.Format("2006-01-02")
	}
	values := make(map[string][]*float64, len(m.columns))
	for c, name := range m.columns {
		col := make([]*float64, len(m.values))
		for r := range m.values {
			if v := m.values[r][c]; !math.IsNaN(v) && !math.IsInf(v, 0) {
				col[r] = &v
			}
		}
		values[name] = col
	}
	return json.Marshal(struct {
		Dates   []string              `json:"dates"`
		Columns []string              `json:"columns"`
		Values  map[string][]*float64 `json:"values"`
	}{dates, m.columns, values})
}

// Aggregate averages aligned returns per (bucket, date) into a return matrix.
//
// Columns are buckets 1..groups, plus LongShortColumn when longShort is set.
// Rows are dates[0] and every date that has at least one aligned row, even when
// all of its returns are NaN. NaN returns are left out of the mean. The first
// row is forced to 0 so compounding starts flat. A bucket with no defined return
// on a date is NaN, and so is the long-short value whenever either leg is NaN.
func Aggregate(rows []AlignedRow, dates []time.Time, groups int, longShort bool) (*Matrix, error) {
	if groups < 1 {
		return nil, fmt.Errorf("group count must be >= 1, got %d", groups)
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("aggregate: empty date sequence")
	}

	type acc struct {
		sum   []float64
		count []int
	}
	byDate := map[time.Time]*acc{dates[0]: {sum: make([]float64, groups), count: make([]int, groups)}}
	for _, r := range rows {
		if r.Bucket < 1 || r.Bucket > groups {
			return nil, fmt.Errorf("aggregate: bucket %d out of range [1, %d] for %s", r.Bucket, groups, r.Security)
		}
		a, ok := byDate[r.Date]
		if !ok {
			a = &acc{sum: make([]float64, groups), count: make([]int, groups)}
			byDate[r.Date] = a
		}
		if math.IsNaN(r.Return) {
			continue
		}
		a.sum[r.Bucket-1] += r.Return
		a.count[r.Bucket-1]++
	}

	rowDates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		rowDates = append(rowDates, d)
	}
	sortDates(rowDates)

	columns := make([]string, 0, groups+1)
	for k := 1; k <= groups; k++ {
		columns = append(columns, BucketColumn(k))
	}
	if longShort {
		columns = append(columns, LongShortColumn)
	}

	values := make([][]float64, len(rowDates))
	for r, d := range rowDates {
		row := make([]float64, len(columns))
		a := byDate[d]
		for k := 0; k < groups; k++ {
			switch {
			case d.Equal(dates[0]):
				row[k] = 0
			case a.count[k] == 0:
				row[k] = math.NaN()
			default:
				row[k] = a.sum[k] / float64(a.count[k])
			}
		}
		if longShort {
			row[groups] = 0.5 * (row[groups-1] - row[0])
		}
		values[r] = row
	}

	return &Matrix{dates: rowDates, columns: columns, values: values}, nil
}

// NetValue compounds every column: value[d] = value[d-1] × (1 + r[d]), starting
// from 1. A NaN return leaves NaN on that date and compounding resumes from the
// last defined value.
func NetValue(returns *Matrix) *Matrix {
	values := make([][]float64, len(returns.values))
	running := make([]float64, len(returns.columns))
	for c := range running {
		running[c] = 1
	}
	for r, row := range returns.values {
		out := make([]float64, len(row))
		for c, v := range row {
			if math.IsNaN(v) {
				out[c] = math.NaN()
				continue
			}
			running[c] *= 1 + v
			out[c] = running[c]
		}
		values[r] = out
	}
	return &Matrix{dates: returns.Dates(), columns: returns.Columns(), values: values}
}
