package availability

import (
	"fmt"
	"time"
)

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// TimeLayout is the format for slot times of day, 24-hour clock.
const TimeLayout = "15:04"

// DateOnly strips the clock portion of t, keeping year/month/day in UTC.
// All slot dates are normalized through this before storage or comparison.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseTimeOfDay parses an "HH:MM" string into minutes since midnight.
func ParseTimeOfDay(s string) (int, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ValidTimeOfDay reports whether s is a well-formed "HH:MM" string
// aligned to the configured slot granularity.
func ValidTimeOfDay(s string, granularity time.Duration) bool {
	minutes, err := ParseTimeOfDay(s)
	if err != nil {
		return false
	}
	step := int(granularity / time.Minute)
	if step <= 0 {
		return false
	}
	return minutes%step == 0
}

// SlotStart combines a calendar date and an "HH:MM" time of day into the
// instant the slot begins. The time of day must already be validated.
func SlotStart(date time.Time, timeOfDay string) time.Time {
	minutes, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return DateOnly(date)
	}
	return DateOnly(date).Add(time.Duration(minutes) * time.Minute)
}

// TimesBetween generates the "HH:MM" grid for a working day, from
// startHour inclusive to endHour exclusive, stepping by granularity.
func TimesBetween(startHour, endHour int, granularity time.Duration) []string {
	step := int(granularity / time.Minute)
	if step <= 0 || startHour >= endHour {
		return nil
	}

	var times []string
	for m := startHour * 60; m < endHour*60; m += step {
		times = append(times, fmt.Sprintf("%02d:%02d", m/60, m%60))
	}
	return times
}

// DatesFrom returns count consecutive calendar dates starting at from.
func DatesFrom(from time.Time, count int) []time.Time {
	dates := make([]time.Time, 0, count)
	day := DateOnly(from)
	for i := 0; i < count; i++ {
		dates = append(dates, day.AddDate(0, 0, i))
	}
	return dates
}
