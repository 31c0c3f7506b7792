package runconfig

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/factorlab/internal/contracts"
	"github.com/wonny/factorlab/internal/s0_data"
)

const sample = `
version: "1"
defaults:
  freq: m
  basket: a_share
  groups: 5
  long_short: true
  ic: true
runs:
  - name: size_hs300
    factor: ln_market_cap
    basket: hs300
    filters: [st, suspended]
    rank_ic: true
    schedule: "0 30 18 * * 1-5"
    window:
      start: "2021-01-29"
      end: "2021-12-31"
  - name: reversal
    factor: reversal_5d
    groups: 10
    long_short: false
    return_mode: standard
`

func TestParse_AppliesDefaults(t *testing.T) {
	f, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, f.Runs, 2)

	size := f.Runs[0]
	assert.Equal(t, "hs300", size.Basket)
	assert.Equal(t, "m", size.Freq)
	assert.Equal(t, 5, size.Groups)

	reversal := f.Runs[1]
	assert.Equal(t, "a_share", reversal.Basket)
	assert.Equal(t, 10, reversal.Groups)
	require.NotNil(t, reversal.LongShort)
	assert.False(t, *reversal.LongShort, "explicit false beats the default")
}

func TestBacktestConfig(t *testing.T) {
	f, err := Parse([]byte(sample))
	require.NoError(t, err)

	cfg, err := f.Runs[0].BacktestConfig()
	require.NoError(t, err)
	assert.Equal(t, "ln_market_cap", cfg.Factor)
	assert.Equal(t, contracts.BasketHS300, cfg.Basket)
	assert.Equal(t, []contracts.Filter{contracts.FilterST, contracts.FilterSuspended}, cfg.Filters)
	assert.Equal(t, time.Date(2021, 1, 29, 0, 0, 0, 0, time.UTC), cfg.Start)
	assert.Equal(t, time.Date(2021, 12, 31, 0, 0, 0, 0, time.UTC), cfg.End)
	assert.True(t, cfg.LongShort)
	assert.True(t, cfg.IC)
	assert.True(t, cfg.RankIC)
	assert.Equal(t, s0_data.ReturnModeCustom, cfg.ReturnMode)
	assert.Regexp(t, `^size_hs300_[0-9a-f]{12}$`, cfg.RunID)

	reversal, err := f.Runs[1].BacktestConfig()
	require.NoError(t, err)
	assert.True(t, reversal.Start.IsZero())
	assert.False(t, reversal.RankIC)
	assert.Equal(t, s0_data.ReturnModeStandard, reversal.ReturnMode)
}

func TestHash_Deterministic(t *testing.T) {
	f, err := Parse([]byte(sample))
	require.NoError(t, err)

	h1, err := Hash(f.Runs[0])
	require.NoError(t, err)
	h2, err := Hash(f.Runs[0])
	require.NoError(t, err)
	assert.Len(t, h1, 64)
	assert.Equal(t, h1, h2)

	other, err := Hash(f.Runs[1])
	require.NoError(t, err)
	assert.NotEqual(t, h1, other)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"unknown field", "runs:\n  - name: a\n    factor: f\n    groups: 5\n    basket: a_share\n    freq: m\n    colour: red\n", ""},
		{"no runs", "version: \"1\"\n", "runs"},
		{"missing name", "runs:\n  - factor: f\n    groups: 5\n    basket: a_share\n    freq: m\n", "runs[0].name"},
		{"duplicate name", "defaults:\n  factor: f\n  groups: 5\n  basket: a_share\n  freq: m\nruns:\n  - name: a\n  - name: a\n", "runs[1].name"},
		{"missing factor", "runs:\n  - name: a\n    groups: 5\n    basket: a_share\n    freq: m\n", "runs[0].factor"},
		{"zero groups", "runs:\n  - name: a\n    factor: f\n    basket: a_share\n    freq: m\n", "runs[0].groups"},
		{"bad basket", "runs:\n  - name: a\n    factor: f\n    groups: 5\n    basket: csi2000\n    freq: m\n", "runs[0].basket"},
		{"bad filter", "runs:\n  - name: a\n    factor: f\n    groups: 5\n    basket: a_share\n    freq: m\n    filters: [liquidity]\n", "runs[0].filters"},
		{"bad freq", "runs:\n  - name: a\n    factor: f\n    groups: 5\n    basket: a_share\n    freq: fortnight\n", "runs[0].freq"},
		{"quarterly standard", "runs:\n  - name: a\n    factor: f\n    groups: 5\n    basket: a_share\n    freq: q\n    return_mode: standard\n", "runs[0].return_mode"},
		{"inverted window", "runs:\n  - name: a\n    factor: f\n    groups: 5\n    basket: a_share\n    freq: m\n    window: {start: \"2021-12-31\", end: \"2021-01-01\"}\n", "runs[0].window"},
		{"bad schedule", "runs:\n  - name: a\n    factor: f\n    groups: 5\n    basket: a_share\n    freq: m\n    schedule: \"every day\"\n", "runs[0].schedule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			if tt.field == "" {
				return
			}
			var verr ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestCheckWarnings(t *testing.T) {
	yes, no := true, false
	f := &File{Runs: []Run{
		{Name: "wide", Groups: 50},
		{Name: "rank", Groups: 5, RankIC: &yes, IC: &no},
		{Name: "report", Groups: 5, Output: Output{Report: &yes}},
	}}

	var codes []string
	for _, w := range CheckWarnings(f) {
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []string{"MANY_GROUPS", "RANK_IC_UNUSED", "REPORT_DIR_DEFAULT"}, codes)
}

func TestLoad_SampleJobFile(t *testing.T) {
	f, raw, err := Load("../../configs/backtests.yaml")
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	require.Len(t, f.Runs, 3)
	assert.Equal(t, "w", f.Runs[1].Freq)
	assert.True(t, f.Runs[2].WantsReport())
}
