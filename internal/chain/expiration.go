// Package chain holds the options-chain data model: the discovered expiration
// list, per-strike records and the finished per-expiration table.
package chain

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Kind is the expiration cadence.
type Kind int

const (
	Monthly Kind = iota
	Weekly
)

// ContractType returns the one-letter flag used in export headers.
func (k Kind) ContractType() string {
	if k == Weekly {
		return "W"
	}
	return "M"
}

func (k Kind) String() string {
	if k == Weekly {
		return "weekly"
	}
	return "monthly"
}

// Marker tags the two sentinel entries of an expiration list.
type Marker int

const (
	MarkerNone Marker = iota
	MarkerWeekly
	MarkerEnd
)

const (
	weeklyToken = "W"
	endToken    = "E"
	dateLen     = 10
)

// DefaultEndIndices are the accepted positions of the end marker: 4 or 5
// weekly expirations after the monthly range.
var DefaultEndIndices = []int{20, 21, 22}

// ErrCorruptList is returned when discovery produced a list whose end marker
// is missing or sits at an unexpected position.
var ErrCorruptList = errors.New("corrupt expiration list")

// ExpirationEntry is one element of the discovered list.
type ExpirationEntry struct {
	Date   string `json:"date,omitempty"`
	Kind   Kind   `json:"kind"`
	Marker Marker `json:"marker,omitempty"`
}

func (e ExpirationEntry) IsListEnd() bool      { return e.Marker == MarkerEnd }
func (e ExpirationEntry) IsWeeklyStart() bool  { return e.Marker == MarkerWeekly }
func (e ExpirationEntry) IsExpiration() bool   { return e.Marker == MarkerNone }
func (e ExpirationEntry) ContractType() string { return e.Kind.ContractType() }

// Short renders the date the way export headers carry it: 19/12/2025 becomes
// 19.12.25.
func (e ExpirationEntry) Short() string {
	if t, err := time.Parse("02/01/2006", e.Date); err == nil {
		return t.Format("02.01.06")
	}
	s := strings.Replace(e.Date, "/20", ".", 1)
	return strings.Replace(s, "/", ".", 1)
}

// Time parses the entry date. Sentinels return the zero time.
func (e ExpirationEntry) Time() (time.Time, error) {
	if !e.IsExpiration() {
		return time.Time{}, nil
	}
	return time.Parse("02/01/2006", e.Date)
}

func (e ExpirationEntry) String() string {
	switch e.Marker {
	case MarkerWeekly:
		return weeklyToken
	case MarkerEnd:
		return endToken
	}
	return e.Date
}

// ExpirationList is the ordered expirations of one cycle: monthly dates, the
// weekly marker, weekly dates, the end marker.
type ExpirationList struct {
	Entries      []ExpirationEntry `json:"entries"`
	WeeklyOffset int               `json:"weekly_offset"`
	Raw          string            `json:"-"`
}

// ParseList turns the newline-joined discovery text into a list. Tokens that
// are neither a 10-character date nor a W/E marker are dropped, which removes
// button labels that leak into the container text. endIndices lists the
// accepted positions of the end marker; nil means DefaultEndIndices.
func ParseList(raw string, endIndices []int) (ExpirationList, error) {
	if len(endIndices) == 0 {
		endIndices = DefaultEndIndices
	}

	list := ExpirationList{Raw: raw, WeeklyOffset: -1}
	kind := Monthly
	for _, line := range strings.Split(raw, "\n") {
		tok := strings.TrimSpace(line)
		switch {
		case tok == weeklyToken:
			if list.WeeklyOffset >= 0 {
				return ExpirationList{}, fmt.Errorf("%w: second weekly marker at %d", ErrCorruptList, len(list.Entries))
			}
			list.WeeklyOffset = len(list.Entries)
			kind = Weekly
			list.Entries = append(list.Entries, ExpirationEntry{Kind: Weekly, Marker: MarkerWeekly})
		case tok == endToken:
			idx := len(list.Entries)
			if !slices.Contains(endIndices, idx) {
				return ExpirationList{}, fmt.Errorf("%w: end marker at %d, want one of %v", ErrCorruptList, idx, endIndices)
			}
			if list.WeeklyOffset < 0 {
				return ExpirationList{}, fmt.Errorf("%w: no weekly marker before end", ErrCorruptList)
			}
			list.Entries = append(list.Entries, ExpirationEntry{Kind: kind, Marker: MarkerEnd})
			return list, nil
		case len(tok) == dateLen:
			list.Entries = append(list.Entries, ExpirationEntry{Date: tok, Kind: kind})
		}
	}
	return ExpirationList{}, fmt.Errorf("%w: no end marker in %d entries", ErrCorruptList, len(list.Entries))
}

func (l ExpirationList) Len() int { return len(l.Entries) }

// At returns entry i, or ok=false past the end.
func (l ExpirationList) At(i int) (ExpirationEntry, bool) {
	if i < 0 || i >= len(l.Entries) {
		return ExpirationEntry{}, false
	}
	return l.Entries[i], true
}

// ButtonIndex maps list position i to the position of its date button among
// the view's buttons, where button 0 is the view toggle.
func (l ExpirationList) ButtonIndex(i int) int {
	if l.WeeklyOffset >= 0 && i > l.WeeklyOffset {
		return i - l.WeeklyOffset
	}
	return i + 1
}

// HeaderIndex is the product index written into export headers. Weekly
// positions are shifted by the weekly marker.
func (l ExpirationList) HeaderIndex(i int) int {
	if l.WeeklyOffset >= 0 && i > l.WeeklyOffset {
		return i - 1
	}
	return i
}

// Expirations returns the real expiration entries in list order.
func (l ExpirationList) Expirations() []ExpirationEntry {
	out := make([]ExpirationEntry, 0, len(l.Entries))
	for _, e := range l.Entries {
		if e.IsExpiration() {
			out = append(out, e)
		}
	}
	return out
}

// Tokens returns the list in its external form.
func (l ExpirationList) Tokens() []string {
	out := make([]string, len(l.Entries))
	for i, e := range l.Entries {
		out[i] = e.String()
	}
	return out
}
