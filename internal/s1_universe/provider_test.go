package s1_universe

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/factorlab/internal/calendar"
	"github.com/wonny/factorlab/internal/contracts"
	"github.com/wonny/factorlab/internal/grouping"
	"github.com/wonny/factorlab/pkg/logger"
)

func d(m time.Month, day int) time.Time {
	return time.Date(2024, m, day, 0, 0, 0, 0, time.UTC)
}

func testCalendar(t *testing.T) *calendar.Calendar {
	t.Helper()
	var dates []time.Time
	for cur := d(time.January, 2); !cur.After(d(time.April, 30)); cur = cur.AddDate(0, 0, 1) {
		if cur.Weekday() == time.Saturday || cur.Weekday() == time.Sunday {
			continue
		}
		dates = append(dates, cur)
	}
	cal, err := calendar.New(calendar.DeriveDays(dates))
	require.NoError(t, err)
	return cal
}

type stubSource struct {
	blocks    map[string][]contracts.BlockMember // "index|date"
	traded    map[time.Time][]string
	listings  []contracts.Listing
	st        map[string][]time.Time
	suspended map[string][]time.Time
	calls     map[string]int
}

func (s *stubSource) hit(name string) {
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[name]++
}

func (s *stubSource) Blocks(_ context.Context, date time.Time, indexCode string) ([]contracts.BlockMember, error) {
	s.hit("blocks")
	return s.blocks[indexCode+"|"+date.Format("2006-01-02")], nil
}

func (s *stubSource) TradedCodes(_ context.Context, date time.Time) ([]string, error) {
	s.hit("traded")
	return s.traded[date], nil
}

func (s *stubSource) Listings(context.Context) ([]contracts.Listing, error) {
	s.hit("listings")
	return s.listings, nil
}

func flagged(flags map[string][]time.Time, securities []string, start, end time.Time) []string {
	var out []string
	for _, code := range securities {
		for _, at := range flags[code] {
			if !at.Before(start) && !at.After(end) {
				out = append(out, code)
				break
			}
		}
	}
	return out
}

func (s *stubSource) STCodes(_ context.Context, securities []string, start, end time.Time) ([]string, error) {
	return flagged(s.st, securities, start, end), nil
}

func (s *stubSource) SuspendedCodes(_ context.Context, securities []string, start, end time.Time) ([]string, error) {
	return flagged(s.suspended, securities, start, end), nil
}

func newTestProvider(t *testing.T, src *stubSource, newListingDays int) *Provider {
	t.Helper()
	p := NewProvider(src, testCalendar(t), newListingDays, logger.Nop())
	require.NoError(t, p.Load(context.Background()))
	return p
}

func TestMembers_RequiresLoad(t *testing.T) {
	p := NewProvider(&stubSource{}, testCalendar(t), 0, logger.Nop())
	_, err := p.Members(context.Background(), d(time.March, 1), contracts.BasketAShare)
	assert.Error(t, err)
}

func TestMembers_AShareUsesTradedCodes(t *testing.T) {
	src := &stubSource{traded: map[time.Time][]string{d(time.March, 1): {"600000", "000001", "000001"}}}
	p := newTestProvider(t, src, 0)

	u, err := p.Members(context.Background(), d(time.March, 1).Add(15*time.Hour), contracts.BasketAShare)
	require.NoError(t, err)
	assert.Equal(t, d(time.March, 1), u.Date)
	assert.Equal(t, []string{"000001", "600000"}, u.Members)
	assert.Zero(t, src.calls["blocks"])
}

func TestMembers_IndexUsesClosedMonthEndSnapshot(t *testing.T) {
	src := &stubSource{blocks: map[string][]contracts.BlockMember{
		"000300|2024-02-29": {{Code: "600519", Index: "000300"}, {Code: "000001", Index: "000300"}},
		"000300|2024-03-29": {{Code: "300750", Index: "000300"}},
	}}
	p := newTestProvider(t, src, 0)

	tests := []struct {
		name string
		date time.Time
		want []string
	}{
		{"mid month reads previous month end", d(time.March, 15), []string{"000001", "600519"}},
		{"month end reads itself", d(time.March, 29), []string{"300750"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := p.Members(context.Background(), tt.date, contracts.BasketHS300)
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.Members)
			assert.Equal(t, contracts.BasketHS300, u.Basket)
		})
	}

	_, err := p.Members(context.Background(), d(time.January, 15), contracts.BasketHS300)
	assert.True(t, errors.Is(err, contracts.ErrMissingData), "no month end before the calendar starts")

	_, err = p.Members(context.Background(), d(time.March, 15), contracts.Basket("csi2000"))
	assert.Error(t, err)
}

func TestMembers_ExcludesDelisted(t *testing.T) {
	src := &stubSource{
		traded: map[time.Time][]string{
			d(time.February, 29): {"A", "B"},
			d(time.March, 1):     {"A", "B"},
		},
		listings: []contracts.Listing{
			{Code: "A", ListDate: d(time.January, 2)},
			{Code: "B", ListDate: d(time.January, 2), DelistDate: d(time.March, 1)},
		},
	}
	p := newTestProvider(t, src, 0)

	before, err := p.Members(context.Background(), d(time.February, 29), contracts.BasketAShare)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, before.Members)

	on, err := p.Members(context.Background(), d(time.March, 1), contracts.BasketAShare)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, on.Members)
	assert.Equal(t, contracts.ReasonDelisted, on.Excluded["B"])
}

func TestMembers_Filters(t *testing.T) {
	date := d(time.March, 15)
	src := &stubSource{
		traded: map[time.Time][]string{date: {"A", "B", "C", "D", "E"}},
		listings: []contracts.Listing{
			{Code: "A", ListDate: d(time.January, 2)},
			{Code: "B", ListDate: d(time.January, 2)},
			{Code: "C", ListDate: d(time.January, 2)},
			{Code: "D", ListDate: d(time.March, 11)},
			{Code: "E", ListDate: d(time.March, 8)},
		},
		st:        map[string][]time.Time{"B": {date}, "C": {d(time.March, 14)}},
		suspended: map[string][]time.Time{"C": {date}},
	}
	p := newTestProvider(t, src, 5) // 5 거래일 전 = 3/11

	tests := []struct {
		name     string
		filters  []contracts.Filter
		want     []string
		excluded map[string]contracts.Filter
	}{
		{
			name:     "no filters",
			want:     []string{"A", "B", "C", "D", "E"},
			excluded: map[string]contracts.Filter{},
		},
		{
			name:     "st window is the date itself",
			filters:  []contracts.Filter{contracts.FilterST},
			want:     []string{"A", "C", "D", "E"},
			excluded: map[string]contracts.Filter{"B": contracts.FilterST},
		},
		{
			name:     "suspended",
			filters:  []contracts.Filter{contracts.FilterSuspended},
			want:     []string{"A", "B", "D", "E"},
			excluded: map[string]contracts.Filter{"C": contracts.FilterSuspended},
		},
		{
			name:     "new listing inside the seasoning window",
			filters:  []contracts.Filter{contracts.FilterNewListing},
			want:     []string{"A", "B", "C", "E"},
			excluded: map[string]contracts.Filter{"D": contracts.FilterNewListing},
		},
		{
			name:    "all filters, duplicates ignored",
			filters: []contracts.Filter{contracts.FilterST, contracts.FilterSuspended, contracts.FilterNewListing, contracts.FilterST},
			want:    []string{"A", "E"},
			excluded: map[string]contracts.Filter{
				"B": contracts.FilterST,
				"C": contracts.FilterSuspended,
				"D": contracts.FilterNewListing,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := p.Members(context.Background(), date, contracts.BasketAShare, tt.filters...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.Members)
			assert.Equal(t, tt.excluded, u.Excluded)
		})
	}

	_, err := p.Members(context.Background(), date, contracts.BasketAShare, contracts.Filter("liquidity"))
	assert.Error(t, err)
}

func TestMembers_SuspendedSecurityLeavesSurvivingRanksIntact(t *testing.T) {
	date := d(time.January, 31)
	codes := []string{"A", "B", "C", "D", "E"}
	src := &stubSource{
		traded:    map[time.Time][]string{date: codes},
		suspended: map[string][]time.Time{"E": {date}},
	}
	p := newTestProvider(t, src, 0)

	u, err := p.Members(context.Background(), date, contracts.BasketAShare, contracts.FilterSuspended)
	require.NoError(t, err)
	assert.False(t, u.Contains("E"))

	sparse := grouping.SparseFactor{
		"A": {date: 1}, "B": {date: 2}, "C": {date: 3}, "D": {date: 4}, "E": {date: 5},
	}
	resolver := func(time.Time) []string { return u.Members }

	panel, err := grouping.BuildPanel(sparse, []time.Time{date}, resolver)
	require.NoError(t, err)
	ranks := grouping.Rank(panel)

	assert.True(t, math.IsNaN(ranks.Value("E", 0)))
	assert.Equal(t, []string{"A", "B", "C", "D"}, ranks.Securities())
	for i, code := range []string{"A", "B", "C", "D"} {
		assert.InDelta(t, float64(i+1)/4, ranks.Value(code, 0), 1e-12, code)
	}
}
