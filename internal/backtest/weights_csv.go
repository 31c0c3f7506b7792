package backtest

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// LoadWeightsCSV reads holdings in long form: date,code,weight (one row per
// security per rebalance date). Rows with an empty or NaN weight are skipped.
func LoadWeightsCSV(r io.Reader) (Weights, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.WithTypes(map[string]series.Type{"weight": series.Float}),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("read weights csv: %w", df.Err)
	}
	for _, col := range []string{"date", "code", "weight"} {
		if !hasColumn(df.Names(), col) {
			return nil, fmt.Errorf("weights csv: missing column %q", col)
		}
	}

	dates := df.Col("date").Records()
	codes := df.Col("code").Records()
	weights := df.Col("weight").Float()

	out := make(Weights)
	for i := range dates {
		if math.IsNaN(weights[i]) {
			continue
		}
		d, err := time.Parse("2006-01-02", strings.TrimSpace(dates[i]))
		if err != nil {
			return nil, fmt.Errorf("weights csv row %d: %w", i+2, err)
		}
		byCode, ok := out[d]
		if !ok {
			byCode = make(map[string]float64)
			out[d] = byCode
		}
		byCode[strings.TrimSpace(codes[i])] = weights[i]
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("weights csv: no weights")
	}
	return out, nil
}

func hasColumn(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}
