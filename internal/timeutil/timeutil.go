package timeutil

import (
	"fmt"
	"time"
)

// ToUTC interprets the given wall-clock time on the given calendar day as
// local time in loc and returns the equivalent UTC instant.
//
// During DST transitions Go's zone lookup picks one of the two real
// offsets: a nonexistent spring-forward wall time is read with the
// post-transition offset, landing on the instant just before the gap.
// Either reading keeps slot generation on a transition day deterministic,
// which is all provider-authored schedules need.
func ToUTC(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, loc).UTC()
}

// FromUTC converts a UTC instant to wall-clock time in loc.
func FromUTC(t time.Time, loc *time.Location) time.Time {
	return t.In(loc)
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) overlap. Degenerate (zero-length) intervals never overlap
// anything.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if !aStart.Before(aEnd) || !bStart.Before(bEnd) {
		return false
	}
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// MinutesOverlap is the wall-clock counterpart of Overlaps for
// minute-of-day windows, used when comparing slots against timezone-naive
// recurring rules such as break times.
func MinutesOverlap(aStart, aEnd, bStart, bEnd int) bool {
	if aStart >= aEnd || bStart >= bEnd {
		return false
	}
	return aStart < bEnd && bStart < aEnd
}

// ParseClock parses an "HH:MM" string into minutes since midnight.
func ParseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("invalid clock time %q, want HH:MM", s)
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ClockString formats minutes since midnight as "HH:MM".
func ClockString(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// LoadLocation resolves an IANA timezone name, wrapping the stdlib error so
// callers can report which identifier was rejected.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return nil, fmt.Errorf("timezone name is empty")
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	al, bl := a.In(loc), b.In(loc)
	ay, am, ad := al.Date()
	by, bm, bd := bl.Date()
	return ay == by && am == bm && ad == bd
}
