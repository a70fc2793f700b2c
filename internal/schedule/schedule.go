// Package schedule decides whether the derivatives market is in session so
// the crawler only walks the chain while quotes move.
package schedule

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/scmhub/calendar"
)

// Default MICs tried in order. Eurex is not always shipped by the calendar
// package; Frankfurt shares its holidays.
var DefaultMICs = []string{"xeur", "xfra"}

// Gate reports whether a moment lies inside a trading session.
type Gate interface {
	InSession(t time.Time) bool
}

// Always is a Gate that never blocks.
type Always struct{}

func (Always) InSession(time.Time) bool { return true }

// Window is the daily session in the exchange's zone, as offsets from
// midnight.
type Window struct {
	Open  time.Duration
	Close time.Duration
}

// DefaultWindow covers the regular ODAX session, 08:00 to 22:00.
var DefaultWindow = Window{Open: 8 * time.Hour, Close: 22 * time.Hour}

// ParseWindow reads "08:00-22:00".
func ParseWindow(s string) (Window, error) {
	var oh, om, ch, cm int
	if _, err := fmt.Sscanf(s, "%d:%d-%d:%d", &oh, &om, &ch, &cm); err != nil {
		return Window{}, fmt.Errorf("parse session window %q: %w", s, err)
	}
	w := Window{
		Open:  time.Duration(oh)*time.Hour + time.Duration(om)*time.Minute,
		Close: time.Duration(ch)*time.Hour + time.Duration(cm)*time.Minute,
	}
	if w.Open >= w.Close || w.Close > 24*time.Hour {
		return Window{}, fmt.Errorf("session window %q is empty", s)
	}
	return w, nil
}

// Session combines an exchange holiday calendar with a daily window.
type Session struct {
	cal      *calendar.Calendar
	loc      *time.Location
	window   Window
	fallback bool
}

// NewSession loads the first known calendar of mics. Without one it falls
// back to Monday to Friday in Europe/Berlin.
func NewSession(mics []string, window Window) *Session {
	if len(mics) == 0 {
		mics = DefaultMICs
	}
	for _, mic := range mics {
		if cal := calendar.GetCalendar(mic); cal != nil {
			slog.Debug("trading calendar loaded", "mic", mic)
			return &Session{cal: cal, loc: cal.Loc, window: window}
		}
	}

	slog.Warn("no trading calendar found, using Mon-Fri fallback", "mics", mics)
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		loc = time.UTC
	}
	return &Session{loc: loc, window: window, fallback: true}
}

// Location is the exchange zone.
func (s *Session) Location() *time.Location { return s.loc }

// IsTradingDay reports whether t's date is a business day.
func (s *Session) IsTradingDay(t time.Time) bool {
	t = t.In(s.loc)
	if s.fallback {
		wd := t.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return s.cal.IsBusinessDay(t)
}

// InSession reports whether t falls on a trading day inside the window.
func (s *Session) InSession(t time.Time) bool {
	if !s.IsTradingDay(t) {
		return false
	}
	t = t.In(s.loc)
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc)
	since := t.Sub(midnight)
	return since >= s.window.Open && since < s.window.Close
}
