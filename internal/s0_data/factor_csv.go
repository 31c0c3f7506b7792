package s0_data

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"

	"github.com/wonny/factorlab/internal/contracts"
)

// LoadFactorCSV reads a wide factor matrix: the first column holds security
// codes, every other column is a rebalance date (YYYY-MM-DD). Empty cells and
// NaN become NaN observations; any other non-numeric cell is an error.
func LoadFactorCSV(r io.Reader) ([]contracts.FactorObservation, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.NaNValues([]string{"", "NaN", "nan", "NA"}),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("read factor csv: %w", df.Err)
	}

	names := df.Names()
	if len(names) < 2 || !strings.EqualFold(names[0], "code") {
		return nil, fmt.Errorf("factor csv: want header code,<date>,..., got %v", names)
	}

	codes := df.Col(names[0]).Records()
	out := make([]contracts.FactorObservation, 0, len(codes)*(len(names)-1))
	for _, name := range names[1:] {
		date, err := time.Parse("2006-01-02", strings.TrimSpace(name))
		if err != nil {
			return nil, fmt.Errorf("factor csv: column %q is not a date: %w", name, err)
		}
		col := df.Col(name)
		missing := col.IsNaN()
		records := col.Records()
		for i, code := range codes {
			value := math.NaN()
			if !missing[i] {
				// 숫자가 아닌 값은 NaN으로 바꾸지 않음
				value, err = strconv.ParseFloat(strings.TrimSpace(records[i]), 64)
				if err != nil {
					return nil, fmt.Errorf("factor csv: code %s column %s: value %q is not a number: %w", code, name, records[i], err)
				}
			}
			out = append(out, contracts.FactorObservation{Code: code, Date: date, Value: value})
		}
	}
	return out, nil
}
