package market

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Clock is a time of day in minutes after midnight.
type Clock int

// ParseClock parses "HH:MM" (24h).
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("bad clock time %q (want HH:MM): %w", s, err)
	}
	return Clock(t.Hour()*60 + t.Minute()), nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// sinceMidnight is c as an offset into the day.
func (c Clock) sinceMidnight() time.Duration { return time.Duration(c) * time.Minute }

// wallClock is t's offset into its own day, down to the nanosecond.
func wallClock(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second + time.Duration(t.Nanosecond())
}

// Session is a daily trading window. Both ends are inclusive. A window
// whose Start is after its End wraps midnight. The zero Session keeps
// every bar.
type Session struct {
	Start Clock
	End   Clock
	set   bool
}

// NewSession builds a session from "HH:MM" bounds. Two empty strings give
// the zero (unfiltered) session.
func NewSession(start, end string) (Session, error) {
	if strings.TrimSpace(start) == "" && strings.TrimSpace(end) == "" {
		return Session{}, nil
	}
	s, err := ParseClock(start)
	if err != nil {
		return Session{}, fmt.Errorf("session start: %w", err)
	}
	e, err := ParseClock(end)
	if err != nil {
		return Session{}, fmt.Errorf("session end: %w", err)
	}
	return Session{Start: s, End: e, set: true}, nil
}

// IsZero reports whether the session filters nothing.
func (s Session) IsZero() bool { return !s.set }

// Contains reports whether t's wall clock (in t's own location) lies in the
// session. The end is inclusive only at its exact minute: 17:00:00 is inside
// a window ending 17:00, 17:00:30 is not.
func (s Session) Contains(t time.Time) bool {
	if !s.set {
		return true
	}
	c := wallClock(t)
	start, end := s.Start.sinceMidnight(), s.End.sinceMidnight()
	if s.Start <= s.End {
		return c >= start && c <= end
	}
	return c >= start || c <= end
}

func (s Session) String() string {
	if !s.set {
		return "all"
	}
	return s.Start.String() + "-" + s.End.String()
}

// CleanStats counts what Clean removed or repaired.
type CleanStats struct {
	Input      int
	Duplicates int
	OutOfRange int
	Filled     int
	Dropped    int // leading bars with nothing to fill from
	Output     int
}

// Clean prepares raw bars for the simulator:
//   - sort chronologically (stable, so the first of equal timestamps wins)
//   - drop duplicate timestamps
//   - keep bars inside the session window
//   - forward-fill non-finite fields from the previous kept bar
//
// The input slice is not modified.
func Clean(raw Bars, sess Session) (Bars, CleanStats) {
	st := CleanStats{Input: len(raw)}

	sorted := make(Bars, len(raw))
	copy(sorted, raw)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	out := make(Bars, 0, len(sorted))
	var (
		prev    Bar
		havePrv bool
	)
	for i := range sorted {
		b := sorted[i]

		if i > 0 && b.Time.Equal(sorted[i-1].Time) {
			st.Duplicates++
			continue
		}
		if !sess.Contains(b.Time) {
			st.OutOfRange++
			continue
		}

		if !b.Finite() {
			if !havePrv {
				st.Dropped++
				continue
			}
			b = fillFrom(b, prev)
			st.Filled++
		}

		out = append(out, b)
		prev, havePrv = b, true
	}

	st.Output = len(out)
	return out, st
}

func fillFrom(b, prev Bar) Bar {
	b.Open = orPrev(b.Open, prev.Open)
	b.High = orPrev(b.High, prev.High)
	b.Low = orPrev(b.Low, prev.Low)
	b.Close = orPrev(b.Close, prev.Close)
	b.Volume = orPrev(b.Volume, prev.Volume)
	return b
}

func orPrev(v, prev float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return prev
	}
	return v
}
