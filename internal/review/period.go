// Package review resolves review periods and produces day, week and month
// review documents from project tasks and commit history.
package review

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/starford/komorebi/internal/apperr"
)

// Period is the review granularity.
type Period string

const (
	Day   Period = "day"
	Week  Period = "week"
	Month Period = "month"
)

// Periods lists the accepted period values.
var Periods = []string{string(Day), string(Week), string(Month)}

// ParsePeriod defaults an empty value to Day.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return Day, nil
	case Day, Week, Month:
		return p, nil
	default:
		return "", fmt.Errorf("period %q (want day, week or month): %w", s, apperr.ErrInvalidArgument)
	}
}

// Range is a resolved period: inclusive wall-clock bounds and its label.
type Range struct {
	Period Period
	Start  time.Time
	End    time.Time
	Label  string
}

var weekLabelRe = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)

// Resolve turns a period and optional explicit label into a date range.
// Weeks follow ISO 8601: they start on Monday and the label carries the ISO
// year, so 2026-W01 begins on 2025-12-29.
func Resolve(period Period, explicit string, now time.Time) (Range, error) {
	explicit = strings.TrimSpace(explicit)
	loc := now.Location()

	switch period {
	case Day:
		day := midnight(now)
		if explicit != "" {
			d, err := time.ParseInLocation(time.DateOnly, explicit, loc)
			if err != nil {
				return Range{}, fmt.Errorf("date %q (want YYYY-MM-DD): %w", explicit, apperr.ErrInvalidArgument)
			}
			day = d
		}
		return Range{Period: Day, Start: day, End: endOfDay(day), Label: day.Format(time.DateOnly)}, nil

	case Week:
		var monday time.Time
		if explicit != "" {
			m, err := mondayOfISOWeek(explicit, loc)
			if err != nil {
				return Range{}, err
			}
			monday = m
		} else {
			today := midnight(now)
			offset := (int(today.Weekday()) + 6) % 7
			monday = today.AddDate(0, 0, -offset)
		}
		return Range{
			Period: Week,
			Start:  monday,
			End:    endOfDay(monday.AddDate(0, 0, 6)),
			Label:  WeekLabel(monday),
		}, nil

	case Month:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		if explicit != "" {
			m, err := time.ParseInLocation("2006-01", explicit, loc)
			if err != nil {
				return Range{}, fmt.Errorf("month %q (want YYYY-MM): %w", explicit, apperr.ErrInvalidArgument)
			}
			first = m
		}
		last := first.AddDate(0, 1, -1)
		return Range{Period: Month, Start: first, End: endOfDay(last), Label: first.Format("2006-01")}, nil
	}
	return Range{}, fmt.Errorf("period %q: %w", period, apperr.ErrInvalidArgument)
}

// WeekLabel formats the ISO week of t as YYYY-Www.
func WeekLabel(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", y, w)
}

func mondayOfISOWeek(label string, loc *time.Location) (time.Time, error) {
	bad := fmt.Errorf("week %q (want YYYY-Www): %w", label, apperr.ErrInvalidArgument)
	m := weekLabelRe.FindStringSubmatch(label)
	if m == nil {
		return time.Time{}, bad
	}
	year, _ := strconv.Atoi(m[1])
	week, _ := strconv.Atoi(m[2])
	if week < 1 || week > isoWeeksIn(year) {
		return time.Time{}, bad
	}
	// January 4th always falls in ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, loc)
	week1 := jan4.AddDate(0, 0, -((int(jan4.Weekday()) + 6) % 7))
	return week1.AddDate(0, 0, (week-1)*7), nil
}

func isoWeeksIn(year int) int {
	_, w := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return w
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999000, t.Location())
}
