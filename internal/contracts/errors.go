package contracts

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors. Wrapped errors must stay matchable with errors.Is.
var (
	// ErrMissingData means a provider has no row for a required (security, date, field).
	// It is distinct from a NaN value, which is legitimate "no data" inside a panel.
	ErrMissingData = errors.New("missing data")

	// ErrTimingViolation means a computation would need information from before
	// the first observation (panel before first rebalance, lag with < 2 dates).
	ErrTimingViolation = errors.New("timing violation")

	// ErrDegenerateCrossSection is never returned as a fatal error; it tags
	// warnings and diagnostics.
	ErrDegenerateCrossSection = errors.New("degenerate cross section")
)

// MissingDataError carries the coordinates of an absent upstream value
type MissingDataError struct {
	Source   string
	Security string
	Date     time.Time
	Field    string
}

func (e *MissingDataError) Error() string {
	msg := fmt.Sprintf("%s: missing %s", e.Source, e.Field)
	if e.Security != "" {
		msg += " security=" + e.Security
	}
	if !e.Date.IsZero() {
		msg += " date=" + e.Date.Format("2006-01-02")
	}
	return msg
}

// Unwrap lets errors.Is match ErrMissingData
func (e *MissingDataError) Unwrap() error {
	return ErrMissingData
}

// TimingViolationError reports a lookahead-unsafe request
type TimingViolationError struct {
	Stage  Stage
	Date   time.Time
	Reason string
}

func (e *TimingViolationError) Error() string {
	if e.Date.IsZero() {
		return fmt.Sprintf("%s: timing violation: %s", e.Stage, e.Reason)
	}
	return fmt.Sprintf("%s: timing violation at %s: %s", e.Stage, e.Date.Format("2006-01-02"), e.Reason)
}

// Unwrap lets errors.Is match ErrTimingViolation
func (e *TimingViolationError) Unwrap() error {
	return ErrTimingViolation
}

// DegenerateCrossSection records a date whose cross-section has fewer
// distinct factor values than the requested group count.
type DegenerateCrossSection struct {
	Date     time.Time `json:"date"`
	Distinct int       `json:"distinct"`
	Groups   int       `json:"groups"`
}

func (d DegenerateCrossSection) Error() string {
	return fmt.Sprintf("%s on %s: %d distinct values for %d groups",
		ErrDegenerateCrossSection, d.Date.Format("2006-01-02"), d.Distinct, d.Groups)
}

// Unwrap lets errors.Is match ErrDegenerateCrossSection
func (d DegenerateCrossSection) Unwrap() error {
	return ErrDegenerateCrossSection
}
