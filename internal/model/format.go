package model

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the storage layout for calendar dates.
	DateLayout = "2006-01-02"
	// TimeLayout is the storage layout for wall-clock times.
	TimeLayout = "15:04"
)

// ParseClock converts "HH:MM" (optionally "HH:MM:SS") into minutes since midnight.
func ParseClock(s string) (int, error) {
	if len(s) > 5 {
		s = s[:5]
	}
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time format %q, expected HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes since midnight as "HH:MM", wrapping past 24:00.
func FormatClock(minutes int) string {
	minutes = ((minutes % 1440) + 1440) % 1440
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// NormalizeClock trims seconds so "09:30:00" and "09:30" compare equal.
func NormalizeClock(s string) string {
	if len(s) > 5 {
		return s[:5]
	}
	return s
}

// ParseDate parses a calendar date as a UTC midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

// AddDays shifts a "YYYY-MM-DD" date by n calendar days.
func AddDays(date string, n int) (string, error) {
	d, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return d.AddDate(0, 0, n).Format(DateLayout), nil
}
