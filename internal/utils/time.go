package utils

import (
	"fmt"
	"time"
)

// HourWindow returns [floor(t, 1h), floor(t, 1h)+1h) in UTC.
func HourWindow(t time.Time) (time.Time, time.Time) {
	start := t.UTC().Truncate(time.Hour)
	return start, start.Add(time.Hour)
}

// DayStart returns midnight UTC of t's day.
func DayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts YYYY-MM-DD or RFC3339 and returns the UTC day start.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return DayStart(t), nil
}

// slotTimeLayouts are tried in order. Layouts without a zone are read as UTC.
var slotTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseSlotTime accepts RFC3339 or zone-less "2006-01-02T15:04[:05]" timestamps
// and normalises them to UTC seconds.
func ParseSlotTime(s string) (time.Time, error) {
	for _, layout := range slotTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Truncate(time.Second), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid slot time %q", s)
}

// HourLabel renders an hour of day as "H:00".
func HourLabel(hour int) string {
	return fmt.Sprintf("%d:00", hour)
}
