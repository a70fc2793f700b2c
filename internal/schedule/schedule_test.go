package schedule

import (
	"testing"
	"time"
)

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("07:30-22:15")
	if err != nil {
		t.Fatalf("ParseWindow() error = %v", err)
	}
	if w.Open != 7*time.Hour+30*time.Minute || w.Close != 22*time.Hour+15*time.Minute {
		t.Fatalf("ParseWindow() = %+v", w)
	}
	for _, bad := range []string{"22:00-08:00", "nope", "08:00-25:00"} {
		if _, err := ParseWindow(bad); err == nil {
			t.Fatalf("ParseWindow(%q) error = nil; want error", bad)
		}
	}
}

func TestSessionBlocksWeekendAndNight(t *testing.T) {
	s := NewSession(nil, DefaultWindow)
	loc := s.Location()

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"weekday morning", time.Date(2025, 12, 3, 10, 0, 0, 0, loc), true},
		{"weekday before open", time.Date(2025, 12, 3, 7, 59, 0, 0, loc), false},
		{"weekday at close", time.Date(2025, 12, 3, 22, 0, 0, 0, loc), false},
		{"saturday", time.Date(2025, 12, 6, 10, 0, 0, 0, loc), false},
		{"sunday", time.Date(2025, 12, 7, 10, 0, 0, 0, loc), false},
	}
	for _, tt := range tests {
		if got := s.InSession(tt.at); got != tt.want {
			t.Fatalf("%s: InSession(%v) = %v; want %v", tt.name, tt.at, got, tt.want)
		}
	}
}

func TestUnknownMICFallsBack(t *testing.T) {
	s := NewSession([]string{"nope"}, DefaultWindow)
	if !s.fallback {
		t.Fatal("fallback = false; want true for unknown MIC")
	}
	if s.IsTradingDay(time.Date(2025, 12, 6, 12, 0, 0, 0, s.Location())) {
		t.Fatal("Saturday reported as trading day")
	}
}

func TestAlways(t *testing.T) {
	if !(Always{}).InSession(time.Time{}) {
		t.Fatal("Always.InSession() = false")
	}
}
