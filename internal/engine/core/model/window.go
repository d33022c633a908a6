package model

import (
	"fmt"
	"time"
)

// MaintenanceWindow restricts when a rollout may dispatch orders. Start and
// End are wall-clock times ("HH:MM") interpreted in Timezone. A window whose
// End is at or before Start crosses midnight into the following day. A
// crossing window belongs to the day it starts on: it is open on an allowed
// day from Start to midnight, and continues past midnight regardless of
// whether the following day is allowed.
type MaintenanceWindow struct {
	Start       string         `json:"start"`
	End         string         `json:"end"`
	Timezone    string         `json:"timezone"`
	AllowedDays []time.Weekday `json:"allowedDays"`
}

// Validate reports the first problem with the window definition.
func (w MaintenanceWindow) Validate() error {
	if _, err := parseWallClock(w.Start); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if _, err := parseWallClock(w.End); err != nil {
		return fmt.Errorf("end: %w", err)
	}
	if _, err := time.LoadLocation(w.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	if len(w.AllowedDays) == 0 {
		return fmt.Errorf("at least one allowed day is required")
	}
	seen := map[time.Weekday]bool{}
	for _, d := range w.AllowedDays {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("invalid weekday %d", d)
		}
		if seen[d] {
			return fmt.Errorf("duplicate weekday %s", d)
		}
		seen[d] = true
	}
	return nil
}

// Contains reports whether the window is open at the given instant.
func (w MaintenanceWindow) Contains(t time.Time) bool {
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return false
	}
	local := t.In(loc)

	start, _ := parseWallClock(w.Start)
	end, _ := parseWallClock(w.End)

	// Check today's opening and, for crossing windows, yesterday's.
	if w.dayAllowed(local.Weekday()) {
		open := atWallClock(local, start)
		close := atWallClock(local, end)
		if !end.after(start) {
			close = close.AddDate(0, 0, 1)
		}
		if !local.Before(open) && local.Before(close) {
			return true
		}
	}
	if !end.after(start) {
		prev := local.AddDate(0, 0, -1)
		if w.dayAllowed(prev.Weekday()) {
			open := atWallClock(prev, start)
			close := atWallClock(prev, end).AddDate(0, 0, 1)
			if !local.Before(open) && local.Before(close) {
				return true
			}
		}
	}
	return false
}

// NextOpen returns the earliest instant at or after t when the window is
// open. If t is already inside the window, t is returned unchanged.
func (w MaintenanceWindow) NextOpen(t time.Time) time.Time {
	if w.Contains(t) {
		return t
	}
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return t
	}
	local := t.In(loc)
	start, _ := parseWallClock(w.Start)

	for i := 0; i < 8; i++ {
		day := local.AddDate(0, 0, i)
		if !w.dayAllowed(day.Weekday()) {
			continue
		}
		open := atWallClock(day, start)
		if !open.Before(local) {
			return open
		}
	}
	return t
}

func (w MaintenanceWindow) dayAllowed(d time.Weekday) bool {
	for _, a := range w.AllowedDays {
		if a == d {
			return true
		}
	}
	return false
}

type wallClock struct {
	hour, minute int
}

func (c wallClock) after(o wallClock) bool {
	if c.hour != o.hour {
		return c.hour > o.hour
	}
	return c.minute > o.minute
}

func parseWallClock(s string) (wallClock, error) {
	var c wallClock
	if _, err := fmt.Sscanf(s, "%d:%d", &c.hour, &c.minute); err != nil {
		return c, fmt.Errorf("invalid wall-clock time %q", s)
	}
	if c.hour < 0 || c.hour > 23 || c.minute < 0 || c.minute > 59 {
		return c, fmt.Errorf("invalid wall-clock time %q", s)
	}
	return c, nil
}

func atWallClock(day time.Time, c wallClock) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.hour, c.minute, 0, 0, day.Location())
}
