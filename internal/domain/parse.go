package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var clockRe = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// full-width digits and colon are common from Japanese IMEs.
var clockReplacer = strings.NewReplacer(
	"０", "0", "１", "1", "２", "2", "３", "3", "４", "4",
	"５", "5", "６", "6", "７", "7", "８", "8", "９", "9",
	"：", ":",
)

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseClock strictly parses "HH:MM" (00:00..23:59).
func ParseClock(s string) (Clock, error) {
	s = clockReplacer.Replace(strings.TrimSpace(s))
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	return Clock{Hour: h, Minute: mm}, nil
}

// NextDeparture places c on now's date in now's location, rolling to the
// next day when that moment is already past.
func NextDeparture(now time.Time, c Clock) time.Time {
	dep := time.Date(now.Year(), now.Month(), now.Day(), c.Hour, c.Minute, 0, 0, now.Location())
	if dep.Before(now) {
		dep = dep.AddDate(0, 0, 1)
	}
	return dep
}

// FormatClock returns HH:MM of t.
func FormatClock(t time.Time) string {
	return t.Format("15:04")
}
