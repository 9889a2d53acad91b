package recurrence

import (
	"errors"
	"rinkside/pkg/model"
	"sort"
	"time"
)

var (
	// ErrUnknownFrequency indicates the rule frequency is not supported.
	ErrUnknownFrequency = errors.New("recurrence: unknown frequency")
	// ErrInvalidInterval indicates the rule interval is below 1.
	ErrInvalidInterval = errors.New("recurrence: interval must be at least 1")
	// ErrInvalidRange indicates the query range is not a valid window.
	ErrInvalidRange = errors.New("recurrence: query range end must be after start")
	// ErrInvalidDuration indicates the anchor event duration is not positive.
	ErrInvalidDuration = errors.New("recurrence: anchor duration must be positive")
)

// Expand materializes the occurrences of a recurring series that start within
// queryRange. It is a pure function of its inputs: no cursor is retained, and
// repeated calls with the same arguments return identical sequences.
//
// The sequence is finite, bounded by whichever is tightest of queryRange.End,
// the rule's EndDate (inclusive date), and the rule's Count. Count is a
// series-wide cap: occurrences before queryRange.Start still consume it, so
// the same calendar instant keeps the same index no matter what range is
// queried. Exception dates are suppressed by calendar date and do not consume
// the count.
//
// The rule is assumed to have been validated at creation time (ValidateRule);
// only the guards needed to keep the loop finite are re-checked here.
func Expand(rule *model.RecurrenceRule, anchor *model.Event, queryRange model.TimeWindow) ([]model.Occurrence, error) {
	if !queryRange.Valid() {
		return nil, ErrInvalidRange
	}
	if !knownFrequency(rule.Frequency) {
		return nil, ErrUnknownFrequency
	}
	if rule.Interval < 1 {
		return nil, ErrInvalidInterval
	}

	duration := anchor.Window.Duration()
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	clock := anchor.Window.Start.UTC()

	var lastDay time.Time
	hasLast := false
	if rule.EndDate != nil {
		lastDay = model.DateOf(*rule.EndDate)
		hasLast = true
	}
	rangeEndDay := model.DateOf(queryRange.End)

	occurrences := []model.Occurrence{}
	index := 0

	cur, ok := firstCandidate(rule)
	if !ok {
		return occurrences, nil
	}

	for {
		if hasLast && cur.After(lastDay) {
			break
		}
		if cur.After(rangeEndDay) {
			break
		}

		if !rule.HasException(cur) {
			index++
			if rule.Count != nil && index > *rule.Count {
				break
			}
			start := combine(cur, clock)
			if !start.Before(queryRange.Start) && start.Before(queryRange.End) {
				occurrences = append(occurrences, model.Occurrence{
					SeriesID:      anchor.SeriesID,
					ParentEventID: anchor.ID,
					Title:         anchor.Title,
					Window:        model.TimeWindow{Start: start, End: start.Add(duration)},
					Index:         index,
				})
			}
		}

		next, ok := advance(rule, cur)
		if !ok || !next.After(cur) {
			break
		}
		cur = next
	}

	return occurrences, nil
}

// CountOccurrencesBefore returns how many occurrences the rule produces
// strictly before the given date. Used to carry the remaining count across a
// series split.
func CountOccurrencesBefore(rule *model.RecurrenceRule, date time.Time) int {
	if !knownFrequency(rule.Frequency) || rule.Interval < 1 {
		return 0
	}

	limit := model.DateOf(date)
	var lastDay time.Time
	hasLast := false
	if rule.EndDate != nil {
		lastDay = model.DateOf(*rule.EndDate)
		hasLast = true
	}

	count := 0
	cur, ok := firstCandidate(rule)
	if !ok {
		return 0
	}
	for cur.Before(limit) {
		if hasLast && cur.After(lastDay) {
			break
		}
		if !rule.HasException(cur) {
			count++
			if rule.Count != nil && count >= *rule.Count {
				break
			}
		}
		next, ok := advance(rule, cur)
		if !ok || !next.After(cur) {
			break
		}
		cur = next
	}
	return count
}

// WindowOn projects the anchor's time-of-day and duration onto a calendar
// date, yielding the window the occurrence on that date would occupy.
func WindowOn(anchor *model.Event, date time.Time) model.TimeWindow {
	start := combine(model.DateOf(date), anchor.Window.Start.UTC())
	return model.TimeWindow{Start: start, End: start.Add(anchor.Window.Duration())}
}

func firstCandidate(rule *model.RecurrenceRule) (time.Time, bool) {
	cur := model.DateOf(rule.StartDate)
	if matches(rule, cur) {
		return cur, true
	}
	next, ok := advance(rule, cur)
	if !ok {
		return time.Time{}, false
	}
	return next, true
}

func knownFrequency(freq string) bool {
	switch freq {
	case model.FrequencyDaily, model.FrequencyWeekly, model.FrequencyMonthly, model.FrequencyYearly:
		return true
	}
	return false
}

// matches tests the frequency-specific pattern filter against a date. Only
// the first candidate needs it; advance only produces matching dates.
func matches(rule *model.RecurrenceRule, d time.Time) bool {
	switch rule.Frequency {
	case model.FrequencyDaily:
		return true
	case model.FrequencyWeekly:
		if len(rule.WeekDays) == 0 {
			return true
		}
		return containsInt(rule.WeekDays, int(d.Weekday()))
	case model.FrequencyMonthly:
		if len(rule.MonthDays) == 0 {
			return true
		}
		return containsInt(clipMonthDays(rule.MonthDays, d.Year(), d.Month()), d.Day())
	case model.FrequencyYearly:
		if len(rule.Months) == 0 {
			return true
		}
		return containsInt(rule.Months, int(d.Month())-1)
	}
	return false
}

// advance moves the cursor to the next candidate date for the rule. The
// returned date always matches the pattern filter and is strictly later than
// the input.
func advance(rule *model.RecurrenceRule, d time.Time) (time.Time, bool) {
	switch rule.Frequency {
	case model.FrequencyDaily:
		return d.AddDate(0, 0, rule.Interval), true

	case model.FrequencyWeekly:
		if len(rule.WeekDays) == 0 {
			return d.AddDate(0, 0, 7*rule.Interval), true
		}
		// Search forward up to 7*interval days for the next selected weekday.
		for i := 1; i <= 7*rule.Interval; i++ {
			c := d.AddDate(0, 0, i)
			if containsInt(rule.WeekDays, int(c.Weekday())) {
				return c, true
			}
		}
		return time.Time{}, false

	case model.FrequencyMonthly:
		if len(rule.MonthDays) == 0 {
			base := model.DateOf(rule.StartDate).Day()
			first := firstOfMonth(d).AddDate(0, rule.Interval, 0)
			return dayInMonth(first.Year(), first.Month(), base), true
		}
		// Remaining selected days in the current month, then the first
		// selected day interval months ahead.
		days := clipMonthDays(rule.MonthDays, d.Year(), d.Month())
		for _, day := range days {
			if day > d.Day() {
				return time.Date(d.Year(), d.Month(), day, 0, 0, 0, 0, time.UTC), true
			}
		}
		first := firstOfMonth(d).AddDate(0, rule.Interval, 0)
		days = clipMonthDays(rule.MonthDays, first.Year(), first.Month())
		return time.Date(first.Year(), first.Month(), days[0], 0, 0, 0, 0, time.UTC), true

	case model.FrequencyYearly:
		base := model.DateOf(rule.StartDate)
		if len(rule.Months) == 0 {
			y := d.Year() + rule.Interval
			return dayInMonth(y, base.Month(), base.Day()), true
		}
		months := append([]int(nil), rule.Months...)
		sort.Ints(months)
		for _, m := range months {
			month := time.Month(m + 1)
			if month > d.Month() {
				return dayInMonth(d.Year(), month, base.Day()), true
			}
		}
		y := d.Year() + rule.Interval
		return dayInMonth(y, time.Month(months[0]+1), base.Day()), true
	}
	return time.Time{}, false
}

// clipMonthDays resolves a month-day filter against a concrete month.
// Days beyond the month's length clip to its last day (day 31 in February
// yields Feb 28/29); clipped duplicates collapse so no date repeats. The
// result is sorted and non-empty whenever the filter is non-empty.
func clipMonthDays(monthDays []int, year int, month time.Month) []int {
	last := daysIn(year, month)
	seen := make(map[int]struct{}, len(monthDays))
	days := make([]int, 0, len(monthDays))
	for _, d := range monthDays {
		if d > last {
			d = last
		}
		if d < 1 {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	sort.Ints(days)
	return days
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func dayInMonth(year int, month time.Month, day int) time.Time {
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func firstOfMonth(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func combine(day, clock time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), clock.Nanosecond(), time.UTC)
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
