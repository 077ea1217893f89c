package monitor

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/datavet-systems/datavet/pkg/types"
)

// inMaintenance reports whether any configured maintenance window covers now.
// Maintenance suppresses notifications only; alert state still transitions.
func (m *Monitor) inMaintenance(now time.Time) bool {
	for _, w := range m.maintenance {
		if windowCovers(w, now) {
			return true
		}
	}
	return false
}

// windowCovers reports whether the window covers the given instant. Days and
// dates union; a window naming neither matches every day. Without a start
// time the window covers the whole matching day; without an end time it runs
// to midnight.
func windowCovers(w types.MaintenanceWindow, now time.Time) bool {
	loc := time.UTC
	if w.Timezone != "" {
		if l, err := time.LoadLocation(w.Timezone); err == nil {
			loc = l
		}
	}
	local := now.In(loc)

	if len(w.Days) > 0 || len(w.Dates) > 0 {
		matched := false
		weekday := strings.ToLower(local.Weekday().String())
		for _, d := range w.Days {
			if strings.ToLower(d) == weekday {
				matched = true
			}
		}
		dateStr := local.Format("2006-01-02")
		for _, d := range w.Dates {
			if d == dateStr {
				matched = true
			}
		}
		if !matched {
			return false
		}
	}

	if w.Start == "" {
		return true
	}
	start, err := parseTimeOfDay(w.Start, now, loc)
	if err != nil {
		return false // malformed window never suppresses
	}
	end := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	if w.End != "" {
		if t, perr := parseTimeOfDay(w.End, now, loc); perr == nil {
			end = t
		}
	}
	return !local.Before(start) && local.Before(end)
}

// parseTimeOfDay parses an "HH:MM" string into a time.Time on the same day as
// ref, in the given location.
func parseTimeOfDay(hhmm string, ref time.Time, loc *time.Location) (time.Time, error) {
	hh, mm, ok := strings.Cut(hhmm, ":")
	if !ok {
		return time.Time{}, fmt.Errorf("invalid time format %q: expected HH:MM", hhmm)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return time.Time{}, fmt.Errorf("invalid hour in %q", hhmm)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("invalid minute in %q", hhmm)
	}

	refInLoc := ref.In(loc)
	return time.Date(refInLoc.Year(), refInLoc.Month(), refInLoc.Day(), hour, minute, 0, 0, loc), nil
}
