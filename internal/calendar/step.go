package calendar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/wonny/factorlab/internal/contracts"
)

// Step is a calendar displacement: N trading days (Inclusive) or N period ends
type Step struct {
	N         int
	Period    contracts.Period
	Inclusive bool
}

// Days is a step of n trading days, counting the anchor date itself
func Days(n int) Step {
	return Step{N: n, Period: contracts.PeriodDay, Inclusive: true}
}

// Periods is a step of n period ends, excluding the anchor date
func Periods(n int, p contracts.Period) Step {
	return Step{N: n, Period: p}
}

var stepPattern = regexp.MustCompile(`^(\d*)([a-zA-Z]*)$`)

// ParseStep accepts "5" (five trading days), "m" (next month end) or "2w"
// (second week end).
func ParseStep(s string) (Step, error) {
	m := stepPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil || (m[1] == "" && m[2] == "") {
		return Step{}, fmt.Errorf("invalid step %q", s)
	}

	n := 1
	if m[1] != "" {
		v, err := strconv.Atoi(m[1])
		if err != nil {
			return Step{}, fmt.Errorf("invalid step %q: %w", s, err)
		}
		n = v
	}
	if m[2] == "" {
		return Days(n), nil
	}

	p, err := contracts.ParsePeriod(m[2])
	if err != nil {
		return Step{}, fmt.Errorf("invalid step %q: %w", s, err)
	}
	return Periods(n, p), nil
}

// String renders the step back in token form
func (s Step) String() string {
	if s.Inclusive {
		return strconv.Itoa(s.N)
	}
	return strconv.Itoa(s.N) + string(s.Period)
}
