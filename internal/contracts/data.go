package contracts

import (
	"fmt"
	"strings"
	"time"
)

// Period is a calendar granularity for trading-date sequences and shifts
type Period string

const (
	PeriodDay     Period = "d"
	PeriodWeek    Period = "w"
	PeriodMonth   Period = "m"
	PeriodQuarter Period = "q"
)

// ParsePeriod accepts "d", "w", "m", "q" (case-insensitive) and the long forms.
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "d", "day", "daily":
		return PeriodDay, nil
	case "w", "week", "weekly":
		return PeriodWeek, nil
	case "m", "month", "monthly":
		return PeriodMonth, nil
	case "q", "quarter", "quarterly":
		return PeriodQuarter, nil
	default:
		return "", fmt.Errorf("unknown period %q", s)
	}
}

// Bar is one daily price row of a security.
// ⭐ SSOT: 가격 데이터는 이 타입으로만 전달 (alias 속성 없음)
type Bar struct {
	Code      string    `json:"code"`
	Date      time.Time `json:"date"`
	Close     float64   `json:"close"`
	AdjFactor float64   `json:"adj_factor"`
	Volume    int64     `json:"volume"`
}

// PostClose returns the adjustment-factor-scaled close
func (b Bar) PostClose() float64 {
	return b.Close * b.AdjFactor
}

// Suspended reports a zero-volume day
func (b Bar) Suspended() bool {
	return b.Volume == 0
}

// Listing holds listing and delisting dates of a security.
// DelistDate is zero for listed securities.
type Listing struct {
	Code       string    `json:"code"`
	ListDate   time.Time `json:"list_date"`
	DelistDate time.Time `json:"delist_date,omitempty"`
}

// ActiveOn reports whether the security has not been delisted as of date
func (l Listing) ActiveOn(date time.Time) bool {
	return l.DelistDate.IsZero() || date.Before(l.DelistDate)
}

// Fundamental carries precomputed per-security momentum fields
type Fundamental struct {
	Code        string    `json:"code"`
	Date        time.Time `json:"date"`
	DailyReturn *float64  `json:"d_return,omitempty"`
	WeekReturn  *float64  `json:"w_return,omitempty"`
	MonthReturn *float64  `json:"m_return,omitempty"`
}

// ReturnFor picks the momentum field matching the holding period
func (f Fundamental) ReturnFor(p Period) (float64, bool) {
	var v *float64
	switch p {
	case PeriodDay:
		v = f.DailyReturn
	case PeriodWeek:
		v = f.WeekReturn
	case PeriodMonth:
		v = f.MonthReturn
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

// BlockMember is one row of the index membership (block) table
type BlockMember struct {
	Code  string    `json:"code"`
	Date  time.Time `json:"date"`
	Index string    `json:"index"`
	ST    bool      `json:"st"`
}

// FactorObservation is a factor value observed on a rebalance date
type FactorObservation struct {
	Code  string    `json:"code"`
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// DateOf truncates t to a UTC calendar date. Every date used as a map key
// (panels, return series, calendar) must go through it.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
