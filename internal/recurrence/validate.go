package recurrence

import (
	"fmt"
	"rinkside/pkg/model"
)

// RuleError reports a rule field that failed domain validation.
type RuleError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e RuleError) Error() string {
	return fmt.Sprintf("invalid recurrence rule: %s: %s", e.Field, e.Message)
}

// ValidateRule runs the domain checks a rule must pass once, at creation
// time. Expansion assumes a validated rule and does not repeat these checks.
func ValidateRule(rule *model.RecurrenceRule) error {
	if !knownFrequency(rule.Frequency) {
		return RuleError{Field: "frequency", Message: fmt.Sprintf("unrecognized frequency %q", rule.Frequency)}
	}
	if rule.Interval < 1 {
		return RuleError{Field: "interval", Message: "must be at least 1"}
	}
	if rule.StartDate.IsZero() {
		return RuleError{Field: "start_date", Message: "is required"}
	}
	if rule.EndDate != nil && model.DateOf(*rule.EndDate).Before(model.DateOf(rule.StartDate)) {
		return RuleError{Field: "end_date", Message: "must not be before start_date"}
	}
	if rule.Count != nil && *rule.Count < 1 {
		return RuleError{Field: "count", Message: "must be at least 1"}
	}
	for _, d := range rule.WeekDays {
		if d < 0 || d > 6 {
			return RuleError{Field: "week_days", Message: fmt.Sprintf("weekday %d outside [0,6]", d)}
		}
	}
	for _, d := range rule.MonthDays {
		if d < 1 || d > 31 {
			return RuleError{Field: "month_days", Message: fmt.Sprintf("month day %d outside [1,31]", d)}
		}
	}
	for _, m := range rule.Months {
		if m < 0 || m > 11 {
			return RuleError{Field: "months", Message: fmt.Sprintf("month %d outside [0,11]", m)}
		}
	}
	return nil
}
