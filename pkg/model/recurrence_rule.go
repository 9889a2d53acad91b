package model

import "time"

const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
	FrequencyYearly  = "yearly"
)

// RecurrenceRule is owned by its anchor event (1:1) but stored independently
// so split edits can leave the clipped original in place while a fresh rule
// carries the pattern forward.
//
// EndDate and Count are independent termination caps; expansion stops at
// whichever is reached first. If both are absent the caller's query range is
// the only bound.
type RecurrenceRule struct {
	ID             string      `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,uuid4"`
	Frequency      string      `json:"frequency" bson:"frequency" validate:"required,oneof=daily weekly monthly yearly"`
	Interval       int         `json:"interval" bson:"interval" validate:"required,min=1"`
	StartDate      time.Time   `json:"start_date" bson:"start_date" validate:"required"`
	EndDate        *time.Time  `json:"end_date,omitempty" bson:"end_date,omitempty"`
	Count          *int        `json:"count,omitempty" bson:"count,omitempty" validate:"omitempty,min=1"`
	WeekDays       []int       `json:"week_days,omitempty" bson:"week_days,omitempty" validate:"omitempty,weekdays_set"`
	MonthDays      []int       `json:"month_days,omitempty" bson:"month_days,omitempty" validate:"omitempty,monthdays_set"`
	Months         []int       `json:"months,omitempty" bson:"months,omitempty" validate:"omitempty,months_set"`
	ExceptionDates []time.Time `json:"exception_dates,omitempty" bson:"exception_dates,omitempty"`
	CreatedAt      time.Time   `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// HasException matches by calendar date, not instant, so an exception recorded
// in any timezone-normalized form suppresses the whole-day occurrence.
func (r *RecurrenceRule) HasException(date time.Time) bool {
	for _, d := range r.ExceptionDates {
		if SameDate(d, date) {
			return true
		}
	}
	return false
}

// AddException records a date as excluded from expansion. Duplicate dates are
// ignored; the list stays ordered by date.
func (r *RecurrenceRule) AddException(date time.Time) {
	if r.HasException(date) {
		return
	}
	day := DateOf(date)
	i := 0
	for i < len(r.ExceptionDates) && r.ExceptionDates[i].Before(day) {
		i++
	}
	r.ExceptionDates = append(r.ExceptionDates, time.Time{})
	copy(r.ExceptionDates[i+1:], r.ExceptionDates[i:])
	r.ExceptionDates[i] = day
}

// Clone returns a deep copy of the rule.
func (r *RecurrenceRule) Clone() *RecurrenceRule {
	clone := *r
	if r.EndDate != nil {
		end := *r.EndDate
		clone.EndDate = &end
	}
	if r.Count != nil {
		count := *r.Count
		clone.Count = &count
	}
	clone.WeekDays = append([]int(nil), r.WeekDays...)
	clone.MonthDays = append([]int(nil), r.MonthDays...)
	clone.Months = append([]int(nil), r.Months...)
	clone.ExceptionDates = append([]time.Time(nil), r.ExceptionDates...)
	return &clone
}
