package runconfig

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/wonny/factorlab/internal/calendar"
	"github.com/wonny/factorlab/internal/contracts"
	"github.com/wonny/factorlab/internal/s0_data"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// ScheduleParser parses 6-field cron expressions (with seconds) and descriptors
var ScheduleParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(f *File) error {
	if len(f.Runs) == 0 {
		return ValidationError{"runs", "at least one run is required"}
	}

	seen := make(map[string]bool, len(f.Runs))
	for i, r := range f.Runs {
		prefix := fmt.Sprintf("runs[%d]", i)
		if r.Name == "" {
			return ValidationError{prefix + ".name", "required"}
		}
		if seen[r.Name] {
			return ValidationError{prefix + ".name", fmt.Sprintf("duplicate run %q", r.Name)}
		}
		seen[r.Name] = true

		if err := validateRun(prefix, r); err != nil {
			return err
		}
	}
	return nil
}

func validateRun(prefix string, r Run) error {
	if r.Factor == "" {
		return ValidationError{prefix + ".factor", "required"}
	}
	if r.Groups < 1 {
		return ValidationError{prefix + ".groups", "must be >= 1"}
	}
	if _, err := contracts.ParseBasket(r.Basket); err != nil {
		return ValidationError{prefix + ".basket", err.Error()}
	}
	for _, name := range r.Filters {
		if _, err := contracts.ParseFilter(name); err != nil {
			return ValidationError{prefix + ".filters", err.Error()}
		}
	}

	step, err := calendar.ParseStep(r.Freq)
	if err != nil {
		return ValidationError{prefix + ".freq", err.Error()}
	}
	mode, err := s0_data.ParseReturnMode(r.ReturnMode)
	if err != nil {
		return ValidationError{prefix + ".return_mode", err.Error()}
	}
	if mode == s0_data.ReturnModeStandard && step.Period == contracts.PeriodQuarter {
		return ValidationError{prefix + ".return_mode", "standard returns have no quarterly field"}
	}

	start, err := parseDate(r.Window.Start)
	if err != nil {
		return ValidationError{prefix + ".window.start", "must be YYYY-MM-DD"}
	}
	end, err := parseDate(r.Window.End)
	if err != nil {
		return ValidationError{prefix + ".window.end", "must be YYYY-MM-DD"}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return ValidationError{prefix + ".window", "start must not be after end"}
	}

	if r.Schedule != "" {
		if _, err := ScheduleParser.Parse(r.Schedule); err != nil {
			return ValidationError{prefix + ".schedule", err.Error()}
		}
	}
	return nil
}

// CheckWarnings returns recommendation violations (warnings only)
func CheckWarnings(f *File) []Warning {
	var warnings []Warning
	for _, r := range f.Runs {
		if r.Groups > 20 {
			warnings = append(warnings, Warning{
				Code:    "MANY_GROUPS",
				Message: fmt.Sprintf("%s: %d groups leave few names per bucket", r.Name, r.Groups),
			})
		}
		if flag(r.RankIC) && !flag(r.IC) {
			warnings = append(warnings, Warning{
				Code:    "RANK_IC_UNUSED",
				Message: fmt.Sprintf("%s: rank_ic is set but ic is off", r.Name),
			})
		}
		if r.WantsReport() && r.Output.Dir == "" {
			warnings = append(warnings, Warning{
				Code:    "REPORT_DIR_DEFAULT",
				Message: fmt.Sprintf("%s: report dir not set, BACKTEST_REPORT_DIR is used", r.Name),
			})
		}
	}
	return warnings
}
