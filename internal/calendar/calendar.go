// Package calendar answers trading-date questions from an in-memory copy of
// the exchange calendar, loaded once at startup.
package calendar

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/factorlab/internal/contracts"
)

// Day is one trading day and the period boundaries it closes
type Day struct {
	Date       time.Time `json:"date"`
	WeekEnd    bool      `json:"week_end"`
	MonthEnd   bool      `json:"month_end"`
	QuarterEnd bool      `json:"quarter_end"`
}

// DayRepository loads the full calendar
type DayRepository interface {
	TradingDays(ctx context.Context) ([]Day, error)
}

// Calendar is an immutable, ascending list of trading days
// ⭐ SSOT: 거래일 계산은 이 타입으로만 수행
type Calendar struct {
	days  []Day
	index map[time.Time]int
}

// Load reads every trading day from repo and builds a Calendar
func Load(ctx context.Context, repo DayRepository) (*Calendar, error) {
	days, err := repo.TradingDays(ctx)
	if err != nil {
		return nil, fmt.Errorf("load trading days: %w", err)
	}
	return New(days)
}

// New builds a Calendar. Dates are normalized to UTC midnight, sorted and
// must be unique.
func New(days []Day) (*Calendar, error) {
	if len(days) == 0 {
		return nil, &contracts.MissingDataError{Source: "calendar", Field: "trading_days"}
	}
	sorted := make([]Day, len(days))
	for i, d := range days {
		d.Date = contracts.DateOf(d.Date)
		sorted[i] = d
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	index := make(map[time.Time]int, len(sorted))
	for i, d := range sorted {
		if _, dup := index[d.Date]; dup {
			return nil, fmt.Errorf("calendar: duplicate trading day %s", d.Date.Format("2006-01-02"))
		}
		index[d.Date] = i
	}
	return &Calendar{days: sorted, index: index}, nil
}

// DeriveDays flags period ends from a bare list of trading dates: a date closes
// a week/month/quarter when the next listed date falls in a later one. The last
// date closes nothing since its successor is unknown.
func DeriveDays(dates []time.Time) []Day {
	norm := make([]time.Time, len(dates))
	for i, d := range dates {
		norm[i] = contracts.DateOf(d)
	}
	sort.Slice(norm, func(i, j int) bool { return norm[i].Before(norm[j]) })

	days := make([]Day, len(norm))
	for i, d := range norm {
		days[i].Date = d
		if i+1 == len(norm) {
			continue
		}
		next := norm[i+1]
		y1, w1 := d.ISOWeek()
		y2, w2 := next.ISOWeek()
		days[i].WeekEnd = y1 != y2 || w1 != w2
		days[i].MonthEnd = d.Year() != next.Year() || d.Month() != next.Month()
		days[i].QuarterEnd = d.Year() != next.Year() || quarter(d) != quarter(next)
	}
	return days
}

func quarter(t time.Time) int {
	return (int(t.Month()) - 1) / 3
}

// First returns the earliest trading day
func (c *Calendar) First() time.Time {
	return c.days[0].Date
}

// Last returns the latest trading day
func (c *Calendar) Last() time.Time {
	return c.days[len(c.days)-1].Date
}

// IsTradingDay reports whether date is in the calendar
func (c *Calendar) IsTradingDay(date time.Time) bool {
	_, ok := c.index[contracts.DateOf(date)]
	return ok
}

// IsPeriodEnd reports whether date is the last trading day of its period.
// Every trading day ends a PeriodDay.
func (c *Calendar) IsPeriodEnd(date time.Time, p contracts.Period) bool {
	i, ok := c.index[contracts.DateOf(date)]
	if !ok {
		return false
	}
	return c.days[i].closes(p)
}

func (d Day) closes(p contracts.Period) bool {
	switch p {
	case contracts.PeriodDay:
		return true
	case contracts.PeriodWeek:
		return d.WeekEnd
	case contracts.PeriodMonth:
		return d.MonthEnd
	case contracts.PeriodQuarter:
		return d.QuarterEnd
	default:
		return false
	}
}

// TradingDates returns the trading days in [start, end] closing period p,
// ascending. PeriodDay returns every trading day.
func (c *Calendar) TradingDates(start, end time.Time, p contracts.Period) ([]time.Time, error) {
	start, end = contracts.DateOf(start), contracts.DateOf(end)
	if end.Before(start) {
		return nil, fmt.Errorf("calendar: end %s before start %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	from := sort.Search(len(c.days), func(i int) bool { return !c.days[i].Date.Before(start) })
	var out []time.Time
	for i := from; i < len(c.days) && !c.days[i].Date.After(end); i++ {
		if c.days[i].closes(p) {
			out = append(out, c.days[i].Date)
		}
	}
	if len(out) == 0 {
		return nil, &contracts.MissingDataError{
			Source: "calendar",
			Date:   start,
			Field:  fmt.Sprintf("trading_dates[%s..%s,%s]", start.Format("2006-01-02"), end.Format("2006-01-02"), p),
		}
	}
	return out, nil
}

// Direction is the way Shift walks the calendar
type Direction int

const (
	Pre  Direction = -1 // 과거 방향
	Post Direction = 1  // 미래 방향
)

// Shift moves date by step.
//
// Inclusive steps (plain trading-day counts) count date itself when it is a
// trading day: Shift(d, Days(1), Pre) is the latest trading day on or before d.
// Period steps skip date and land on the N-th period end strictly before
// (Pre) or after (Post) it. A zero-length step returns date unchanged.
func (c *Calendar) Shift(date time.Time, step Step, dir Direction) (time.Time, error) {
	date = contracts.DateOf(date)
	if step.N == 0 {
		return date, nil
	}

	// date 이상(이후)인 첫 인덱스
	pos := sort.Search(len(c.days), func(i int) bool { return !c.days[i].Date.Before(date) })

	found := 0
	if dir == Pre {
		i := pos - 1
		if step.Inclusive && pos < len(c.days) && c.days[pos].Date.Equal(date) {
			i = pos
		}
		for ; i >= 0; i-- {
			if step.Inclusive || c.days[i].closes(step.Period) {
				found++
				if found == step.N {
					return c.days[i].Date, nil
				}
			}
		}
	} else {
		i := pos
		if !step.Inclusive && pos < len(c.days) && c.days[pos].Date.Equal(date) {
			i = pos + 1
		}
		for ; i < len(c.days); i++ {
			if step.Inclusive || c.days[i].closes(step.Period) {
				found++
				if found == step.N {
					return c.days[i].Date, nil
				}
			}
		}
	}

	return time.Time{}, &contracts.MissingDataError{
		Source: "calendar",
		Date:   date,
		Field:  fmt.Sprintf("shift[%s,%d]", step, dir),
	}
}

// ClosedMonthEnd returns the last trading day on or before the most recent
// month-end business day that is not after date.
func (c *Calendar) ClosedMonthEnd(date time.Time) (time.Time, error) {
	date = contracts.DateOf(date)
	anchor := lastBusinessDay(date.Year(), date.Month())
	if date.Before(anchor) {
		prev := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
		anchor = lastBusinessDay(prev.Year(), prev.Month())
	}
	return c.Shift(anchor, Days(1), Pre)
}

func lastBusinessDay(year int, month time.Month) time.Time {
	d := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
