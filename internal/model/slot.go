package model

import (
	"fmt"
	"sort"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ParseDate parses a calendar date in YYYY-MM-DD form.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil || d.Format(DateLayout) != s {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return d, nil
}

// ParseTimeOfDay parses a 24h HH:MM string and returns its offset from midnight.
func ParseTimeOfDay(s string) (time.Duration, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil || t.Format(TimeLayout) != s {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// ParseSlot combines a date and a time-of-day into an instant in loc.
func ParseSlot(date, clock string, loc *time.Location) (time.Time, error) {
	d, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	offset, err := ParseTimeOfDay(clock)
	if err != nil {
		return time.Time{}, err
	}
	return d.Add(offset), nil
}

// FormatDate renders t's calendar day in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateLayout)
}

// NormalizeSlots validates, de-duplicates and sorts a roster of HH:MM times.
func NormalizeSlots(slots []string) ([]string, error) {
	seen := make(map[string]struct{}, len(slots))
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		if _, err := ParseTimeOfDay(s); err != nil {
			return nil, err
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	// Zero-padded HH:MM sorts lexically in time order.
	sort.Strings(out)
	return out, nil
}
