// Package clockoffset converts between a user's local wall-clock time and
// instants on the single base clock all reminders are scheduled against.
//
// Users carry a flat signed hour offset from the base clock:
// local = base + offset, so base = local - offset. There is no timezone
// database involvement anywhere in this package.
package clockoffset

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NextOccurrence returns the next base-clock instant whose local rendering
// under offsetHours equals hour:minute. The instant is "today" on the base
// clock when that is still strictly in the future relative to nowBase,
// otherwise it rolls forward exactly one day. Seconds and sub-second
// components are zeroed.
//
// The candidate day is chosen in the user's local frame (the offset can
// shift it across a day boundary in either direction) and the future check
// always runs against the final offset-adjusted base instant, never an
// intermediate one. The result is the earliest matching instant, at most
// 24 hours ahead.
func NextOccurrence(hour, minute, offsetHours int, nowBase time.Time) time.Time {
	off := time.Duration(offsetHours) * time.Hour
	nowLocal := nowBase.Add(off)
	local := time.Date(nowLocal.Year(), nowLocal.Month(), nowLocal.Day(),
		hour, minute, 0, 0, nowLocal.Location())
	base := local.Add(-off)
	if !base.After(nowBase) {
		base = base.Add(24 * time.Hour)
	}
	return base
}

// LocalClock renders a base-clock instant as the user's local wall-clock
// hour and minute. Display direction only.
func LocalClock(baseInstant time.Time, offsetHours int) (hour, minute int) {
	local := baseInstant.Add(time.Duration(offsetHours) * time.Hour)
	return local.Hour(), local.Minute()
}

// FormatLocal renders a base-clock instant as "HH:MM" in the user's local
// frame.
func FormatLocal(baseInstant time.Time, offsetHours int) string {
	h, m := LocalClock(baseInstant, offsetHours)
	return fmt.Sprintf("%02d:%02d", h, m)
}

// ParseClock parses a strict "HH:MM" wall-clock string. The error is
// recoverable input validation, surfaced back to the user.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("clock %q: want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("clock %q: hour out of range", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("clock %q: minute out of range", s)
	}
	return hour, minute, nil
}

// ParseOffset parses a user-entered signed hour offset such as "-1", "+2"
// or "7".
func ParseOffset(s string) (int, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, "+")
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("offset %q: want a signed integer number of hours", s)
	}
	return n, nil
}
