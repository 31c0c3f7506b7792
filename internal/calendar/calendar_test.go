package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/factorlab/internal/contracts"
)

func d(m time.Month, day int) time.Time {
	return time.Date(2024, m, day, 0, 0, 0, 0, time.UTC)
}

// 2024-01-02 ~ 2024-04-30 평일, 1/1 과 2/12~2/16 (춘절) 휴장
func testCalendar(t *testing.T) *Calendar {
	t.Helper()
	var dates []time.Time
	for cur := d(time.January, 1); !cur.After(d(time.April, 30)); cur = cur.AddDate(0, 0, 1) {
		if cur.Weekday() == time.Saturday || cur.Weekday() == time.Sunday {
			continue
		}
		if cur.Equal(d(time.January, 1)) || (cur.Month() == time.February && cur.Day() >= 12 && cur.Day() <= 16) {
			continue
		}
		dates = append(dates, cur)
	}
	cal, err := New(DeriveDays(dates))
	require.NoError(t, err)
	return cal
}

type stubRepo struct {
	days []Day
	err  error
}

func (s stubRepo) TradingDays(context.Context) ([]Day, error) { return s.days, s.err }

func TestLoad(t *testing.T) {
	cal, err := Load(context.Background(), stubRepo{days: DeriveDays([]time.Time{d(time.January, 3), d(time.January, 2)})})
	require.NoError(t, err)
	assert.Equal(t, d(time.January, 2), cal.First())
	assert.Equal(t, d(time.January, 3), cal.Last())

	_, err = Load(context.Background(), stubRepo{err: errors.New("db down")})
	assert.ErrorContains(t, err, "db down")

	_, err = Load(context.Background(), stubRepo{})
	assert.True(t, errors.Is(err, contracts.ErrMissingData))
}

func TestNew_RejectsDuplicates(t *testing.T) {
	_, err := New([]Day{{Date: d(time.January, 2)}, {Date: d(time.January, 2).Add(3 * time.Hour)}})
	assert.Error(t, err)
}

func TestTradingDates(t *testing.T) {
	cal := testCalendar(t)

	daily, err := cal.TradingDates(d(time.January, 1), d(time.January, 10), contracts.PeriodDay)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		d(time.January, 2), d(time.January, 3), d(time.January, 4), d(time.January, 5),
		d(time.January, 8), d(time.January, 9), d(time.January, 10),
	}, daily)

	monthly, err := cal.TradingDates(d(time.January, 1), d(time.April, 30), contracts.PeriodMonth)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{d(time.January, 31), d(time.February, 29), d(time.March, 29)}, monthly)

	weekly, err := cal.TradingDates(d(time.February, 1), d(time.February, 29), contracts.PeriodWeek)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{d(time.February, 2), d(time.February, 9), d(time.February, 23)}, weekly)

	_, err = cal.TradingDates(d(time.February, 12), d(time.February, 16), contracts.PeriodDay)
	assert.True(t, errors.Is(err, contracts.ErrMissingData))

	_, err = cal.TradingDates(d(time.March, 1), d(time.February, 1), contracts.PeriodDay)
	assert.Error(t, err)
}

func TestShift(t *testing.T) {
	cal := testCalendar(t)

	tests := []struct {
		name string
		date time.Time
		step string
		dir  Direction
		want time.Time
	}{
		{"zero step", d(time.January, 6), "0", Pre, d(time.January, 6)},
		{"one day pre counts anchor", d(time.January, 5), "1", Pre, d(time.January, 5)},
		{"one day pre from weekend", d(time.January, 6), "1", Pre, d(time.January, 5)},
		{"three days pre", d(time.January, 5), "3", Pre, d(time.January, 3)},
		{"two days post from weekend", d(time.January, 6), "2", Post, d(time.January, 9)},
		{"next month end", d(time.January, 31), "m", Post, d(time.February, 29)},
		{"previous month end", d(time.February, 29), "1m", Pre, d(time.January, 31)},
		{"two month ends ahead", d(time.January, 31), "2m", Post, d(time.March, 29)},
		{"week end across holiday", d(time.February, 9), "w", Post, d(time.February, 23)},
		{"week end from mid week", d(time.January, 10), "w", Pre, d(time.January, 5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step, err := ParseStep(tt.step)
			require.NoError(t, err)
			got, err := cal.Shift(tt.date, step, tt.dir)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShift_OutOfRange(t *testing.T) {
	cal := testCalendar(t)

	_, err := cal.Shift(d(time.March, 29), Periods(1, contracts.PeriodMonth), Post)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrMissingData), "last listed date closes nothing")

	_, err = cal.Shift(d(time.January, 2), Days(2), Pre)
	assert.True(t, errors.Is(err, contracts.ErrMissingData))
}

func TestIsPeriodEnd(t *testing.T) {
	cal := testCalendar(t)

	assert.True(t, cal.IsPeriodEnd(d(time.January, 31), contracts.PeriodMonth))
	assert.False(t, cal.IsPeriodEnd(d(time.January, 30), contracts.PeriodMonth))
	assert.True(t, cal.IsPeriodEnd(d(time.March, 29), contracts.PeriodQuarter))
	assert.True(t, cal.IsPeriodEnd(d(time.January, 30), contracts.PeriodDay))
	assert.False(t, cal.IsPeriodEnd(d(time.January, 6), contracts.PeriodDay), "weekend")
	assert.True(t, cal.IsTradingDay(d(time.February, 9)))
	assert.False(t, cal.IsTradingDay(d(time.February, 13)))
}

func TestClosedMonthEnd(t *testing.T) {
	cal := testCalendar(t)

	tests := []struct {
		date time.Time
		want time.Time
	}{
		{d(time.February, 15), d(time.January, 31)},
		{d(time.February, 29), d(time.February, 29)},
		{d(time.March, 30), d(time.March, 29)},
		{d(time.March, 28), d(time.February, 29)},
	}

	for _, tt := range tests {
		got, err := cal.ClosedMonthEnd(tt.date)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.date.Format("2006-01-02"))
	}
}

func TestParseStep(t *testing.T) {
	tests := []struct {
		in      string
		want    Step
		wantErr bool
	}{
		{"5", Days(5), false},
		{"m", Periods(1, contracts.PeriodMonth), false},
		{"2w", Periods(2, contracts.PeriodWeek), false},
		{"1q", Periods(1, contracts.PeriodQuarter), false},
		{"", Step{}, true},
		{"3x", Step{}, true},
		{"-1", Step{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStep(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}

func TestDeriveDays(t *testing.T) {
	days := DeriveDays([]time.Time{d(time.March, 28), d(time.March, 29), d(time.April, 1)})

	assert.False(t, days[0].MonthEnd)
	assert.True(t, days[1].WeekEnd)
	assert.True(t, days[1].MonthEnd)
	assert.True(t, days[1].QuarterEnd)
	assert.False(t, days[2].MonthEnd, "successor unknown")
}
