package irrigation

import (
	"fmt"
	"time"
)

// Window is a wrap-around time-of-day interval [begin, end) in minutes since
// midnight. A window whose bounds coincide is empty.
type Window struct {
	begin int
	end   int
}

// ParseWindow builds a window from two "HH:MM" bounds. "24:00" is accepted
// and normalized to midnight, so the pair 24:00/00:00 disables the window.
func ParseWindow(begin, end string) (Window, error) {
	b, err := parseHourMinute(begin)
	if err != nil {
		return Window{}, fmt.Errorf("window begin: %w", err)
	}
	e, err := parseHourMinute(end)
	if err != nil {
		return Window{}, fmt.Errorf("window end: %w", err)
	}
	return Window{begin: b, end: e}, nil
}

func parseHourMinute(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("%q is not HH:MM: %w", s, err)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return (h%24)*60 + m, nil
}

// Contains reports whether the time of day of t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if w.begin == w.end {
		return false
	}
	n := t.Hour()*60 + t.Minute()
	if w.begin < w.end {
		return n >= w.begin && n < w.end
	}
	return n >= w.begin || n < w.end // wraps past midnight
}
