package reminder

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Pattern computes the next occurrence of a recurring reminder.
//
// Supported grammar:
//
//	daily | weekly | monthly | yearly
//	every <N> <minute|hour|day|week|month|year>[s]
//	cron:<standard five-field expression>
//
// Month and year steps are calendar-anchored and clamp to the last day of
// the target month (Jan 31 + 1 month = Feb 28/29).
type Pattern interface {
	Next(after time.Time) (time.Time, error)
	String() string
}

const cronPrefix = "cron:"

// ParsePattern parses a recurrence pattern.
func ParsePattern(raw string) (Pattern, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("empty pattern")
	}

	if len(s) >= len(cronPrefix) && strings.EqualFold(s[:len(cronPrefix)], cronPrefix) {
		expr := strings.TrimSpace(s[len(cronPrefix):])
		sched, err := cron.ParseStandard(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
		}
		return cronPattern{raw: s, sched: sched}, nil
	}

	lower := strings.ToLower(s)
	switch lower {
	case "daily":
		return step{raw: s, days: 1}, nil
	case "weekly":
		return step{raw: s, days: 7}, nil
	case "monthly":
		return step{raw: s, months: 1}, nil
	case "yearly", "annually":
		return step{raw: s, months: 12}, nil
	}

	fields := strings.Fields(lower)
	if len(fields) < 2 || len(fields) > 3 || fields[0] != "every" {
		return nil, fmt.Errorf("unknown pattern %q", s)
	}
	n := 1
	unit := fields[1]
	if len(fields) == 3 {
		v, err := strconv.Atoi(fields[1])
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("invalid interval count %q", fields[1])
		}
		n = v
		unit = fields[2]
	}

	unit = strings.TrimSuffix(unit, "s")
	if limit, ok := maxInterval[unit]; ok && n > limit {
		return nil, fmt.Errorf("interval %d %ss exceeds %d years", n, unit, maxIntervalYears)
	}

	p := step{raw: s}
	switch unit {
	case "minute":
		p.dur = time.Duration(n) * time.Minute
	case "hour":
		p.dur = time.Duration(n) * time.Hour
	case "day":
		p.days = n
	case "week":
		p.days = 7 * n
	case "month":
		p.months = n
	case "year":
		p.months = 12 * n
	default:
		return nil, fmt.Errorf("unknown interval unit %q", unit)
	}
	return p, nil
}

// maxIntervalYears bounds "every N unit" so that the step never overflows
// a time.Duration or runs past the calendar.
const maxIntervalYears = 100

var maxInterval = map[string]int{
	"minute": maxIntervalYears * 366 * 24 * 60,
	"hour":   maxIntervalYears * 366 * 24,
	"day":    maxIntervalYears * 366,
	"week":   maxIntervalYears * 53,
	"month":  maxIntervalYears * 12,
	"year":   maxIntervalYears,
}

// NextOccurrence applies pattern to fireAt.
func NextOccurrence(pattern string, fireAt time.Time) (time.Time, error) {
	p, err := ParsePattern(pattern)
	if err != nil {
		return time.Time{}, err
	}
	return p.Next(fireAt)
}

type step struct {
	raw    string
	months int
	days   int
	dur    time.Duration
}

func (p step) String() string { return p.raw }

func (p step) Next(after time.Time) (time.Time, error) {
	next := after
	if p.months > 0 {
		next = addMonthsClamped(next, p.months)
	}
	if p.days > 0 {
		next = next.AddDate(0, 0, p.days)
	}
	next = next.Add(p.dur)
	if !next.After(after) {
		return time.Time{}, fmt.Errorf("pattern %q does not advance from %s", p.raw, after.Format(time.RFC3339))
	}
	return next, nil
}

type cronPattern struct {
	raw   string
	sched cron.Schedule
}

func (p cronPattern) String() string { return p.raw }

func (p cronPattern) Next(after time.Time) (time.Time, error) {
	next := p.sched.Next(after)
	if next.IsZero() || !next.After(after) {
		return time.Time{}, fmt.Errorf("cron pattern %q has no occurrence after %s", p.raw, after.Format(time.RFC3339))
	}
	return next, nil
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	first := time.Date(y, m+time.Month(months), 1, hh, mm, ss, t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
