package model

import (
	"fmt"
	"strings"
	"time"
)

// clockLayouts are tried in order. Vendor records come from a CRUD surface
// that never normalized the field, so "9:30 AM", "09:30" and "9:30" all occur.
var clockLayouts = []string{
	"3:04 PM",
	"3:04PM",
	"15:04",
	"3:04",
}

// ParseClock parses a wall-clock string and returns minutes since midnight.
func ParseClock(s string) (int, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty clock string")
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour()*60 + t.Minute(), nil
		}
	}
	return 0, fmt.Errorf("unparseable clock string %q", s)
}

// MinutesOfDay returns minutes since midnight for t in its own location.
func MinutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
