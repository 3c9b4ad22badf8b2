package domain

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock time in minutes after midnight.
type TimeOfDay int

const minutesPerDay = 24 * 60

func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid time of day %02d:%02d", hour, minute)
	}
	return TimeOfDay(hour*60 + minute), nil
}

// ParseTimeOfDay accepts "HH:MM" and "HH:MM:SS" (seconds are dropped).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay(t.Hour()*60 + t.Minute()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", s)
}

func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) Valid() bool { return t >= 0 && t < minutesPerDay }

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// DateOf truncates t to its calendar date, expressed as midnight UTC. The
// calendar date is taken in t's own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// NextWeekday returns the first date on or after from that falls on day.
func NextWeekday(from time.Time, day time.Weekday) time.Time {
	from = DateOf(from)
	delta := (int(day) - int(from.Weekday()) + 7) % 7
	return from.AddDate(0, 0, delta)
}

// Departed reports whether a sailing has left, given the current instant in the
// schedule's time zone: its date is before today, or it is today and the
// departure time is not after now.
func Departed(date time.Time, departure TimeOfDay, now time.Time) bool {
	today := DateOf(now)
	date = DateOf(date)
	if date.Before(today) {
		return true
	}
	if date.Equal(today) {
		return departure <= TimeOfDayOf(now)
	}
	return false
}
