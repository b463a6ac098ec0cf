package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// clockLayouts are the accepted --clock forms, tried in order.
var clockLayouts = []string{"15:04", "3:04PM", "3:04 PM", "03:04PM", "03:04 PM"}

// ParseDuration reads a session length given either as whole minutes ("150")
// or as a Go duration ("2h30m").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if minutes, err := strconv.Atoi(s); err == nil {
		return time.Duration(minutes) * time.Minute, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, &Error{
			Key: "duration",
			Msg: fmt.Sprintf(`%q is neither minutes (e.g. "150") nor a duration (e.g. "2h30m", "45m")`, s),
		}
	}
	return d, nil
}

// ParseUntil reads a time of day in 24-hour ("22:00") or 12-hour ("10:00PM")
// form and returns its next occurrence after now, in now's location.
func ParseUntil(s string, now time.Time) (time.Time, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, layout := range clockLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		until := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
		if !until.After(now) {
			until = time.Date(now.Year(), now.Month(), now.Day()+1, t.Hour(), t.Minute(), 0, 0, now.Location())
		}
		return until, nil
	}
	return time.Time{}, &Error{
		Key: "clock",
		Msg: fmt.Sprintf(`%q is not a time of day (e.g. "23:30", "11:30PM", "9:45 AM")`, s),
	}
}
