package mail_sync

import "time"

const (
	DefaultMaxWindows = 52
	windowLength      = 7 * 24 * time.Hour
)

// PlanWindows returns weekly window starts from start up to and including end,
// capped at DefaultMaxWindows.
func PlanWindows(start, end time.Time) []time.Time {
	return PlanWindowsWithLimit(start, end, DefaultMaxWindows)
}

// PlanWindowsWithLimit returns at most limit boundaries, each 7 days after the
// previous one. A boundary equal to end is included. start after end yields none.
func PlanWindowsWithLimit(start, end time.Time, limit int) []time.Time {
	if limit <= 0 || start.After(end) {
		return []time.Time{}
	}

	windows := make([]time.Time, 0, min(limit, int(end.Sub(start)/windowLength)+1))
	for boundary := start; !boundary.After(end) && len(windows) < limit; boundary = boundary.Add(windowLength) {
		windows = append(windows, boundary)
	}
	return windows
}

// WindowEnd is the exclusive end of the window starting at boundary. The last
// window stops one day after the inclusive range end.
func WindowEnd(boundary, end time.Time) time.Time {
	next := boundary.Add(windowLength)
	last := end.Add(24 * time.Hour)
	if last.Before(next) {
		return last
	}
	return next
}

// nextWindowStart returns the boundary following windows when it still lies
// within the range, meaning the plan was truncated.
func nextWindowStart(windows []time.Time, end time.Time) *time.Time {
	if len(windows) == 0 {
		return nil
	}
	next := windows[len(windows)-1].Add(windowLength)
	if next.After(end) {
		return nil
	}
	return &next
}
