package risk

import (
	"time"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/settings"
)

// WithinSchedule reports whether now (UTC) falls inside the weekly window. Overnight windows
// (start after end) belong to the day they start on.
func WithinSchedule(s settings.Schedule, now time.Time) bool {
	if !s.Enabled {
		return true
	}
	now = now.UTC()
	minute := now.Hour()*60 + now.Minute()
	day := now.Weekday()
	if s.Start <= s.End {
		return dayAllowed(s.Days, day) && minute >= s.Start && minute < s.End
	}
	if minute >= s.Start {
		return dayAllowed(s.Days, day)
	}
	if minute < s.End {
		return dayAllowed(s.Days, (day+6)%7)
	}
	return false
}

func dayAllowed(days []time.Weekday, day time.Weekday) bool {
	if len(days) == 0 {
		return true
	}
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}
