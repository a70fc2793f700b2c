package chain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FieldCount is the number of positional fields of one side record: the
// strike followed by twelve cells.
const FieldCount = 13

// Side is one of the two parallel option tables.
type Side int

const (
	Call Side = 0
	Put  Side = 1
)

func (s Side) String() string {
	if s == Put {
		return "put"
	}
	return "call"
}

func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Strike is a strike price in canonical form so that renders differing only
// in thousands separators or trailing zeros compare equal.
type Strike struct {
	value decimal.Decimal
	Text  string
}

// ParseStrike parses a rendered strike value such as "23,000.00" or
// "23.000,00".
func ParseStrike(text string) (Strike, error) {
	d, err := ParseNumber(text)
	if err != nil {
		return Strike{}, fmt.Errorf("parse strike %q: %w", text, err)
	}
	return Strike{value: d, Text: strings.TrimSpace(text)}, nil
}

// Equal compares canonical values.
func (s Strike) Equal(o Strike) bool { return s.value.Equal(o.value) }

func (s Strike) IsZero() bool { return s.Text == "" && s.value.IsZero() }

func (s Strike) Decimal() decimal.Decimal { return s.value }

// String returns the canonical form.
func (s Strike) String() string { return s.value.String() }

// MarshalText keeps the rendered form.
func (s Strike) MarshalText() ([]byte, error) { return []byte(s.Text), nil }

func (s *Strike) UnmarshalText(b []byte) error {
	v, err := ParseStrike(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseNumber parses a displayed number, accepting either ',' or '.' as the
// thousands separator.
func ParseNumber(text string) (decimal.Decimal, error) {
	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\'':
			return -1
		}
		return r
	}, strings.TrimSpace(text))
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("empty number")
	}

	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if isGrouped(s, ',') {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 || (isGrouped(s, '.') && !strings.HasPrefix(strings.TrimPrefix(s, "-"), "0.")) {
			s = strings.ReplaceAll(s, ".", "")
		}
	}
	return decimal.NewFromString(s)
}

// isGrouped reports whether every sep in s is followed by exactly three
// digits, as thousands groups are.
func isGrouped(s string, sep byte) bool {
	parts := strings.Split(s, string(sep))
	if len(parts) < 2 {
		return false
	}
	for _, p := range parts[1:] {
		if len(p) != 3 {
			return false
		}
	}
	return true
}

// Quote is one side of a strike row with named fields.
type Quote struct {
	Price        string `json:"price"`
	Volume       string `json:"volume"`
	Bid          string `json:"bid"`
	Ask          string `json:"ask"`
	Time         string `json:"time"`
	Date         string `json:"date"`
	Open         string `json:"open"`
	High         string `json:"high"`
	Low          string `json:"low"`
	Settle       string `json:"settle"`
	OpenInterest string `json:"open_interest"`
}

// fieldMap holds the position of each named field within the 13 positional
// fields of a side record. Call and put tables share a physical column layout
// but map it differently.
type fieldMap struct {
	price, volume, bid, ask, time, date, open, high, low, settle, openInterest int
}

var sideMaps = [2]fieldMap{
	Call: {price: 7, volume: 9, bid: 11, ask: 12, time: 2, date: 3, open: 4, high: 5, low: 6, settle: 10, openInterest: 8},
	Put:  {price: 4, volume: 5, bid: 2, ask: 3, time: 11, date: 12, open: 8, high: 9, low: 10, settle: 7, openInterest: 6},
}

// QuoteFromFields builds the named record for one side from its positional
// fields (index 0 is the strike).
func QuoteFromFields(side Side, fields []string) (Quote, error) {
	if len(fields) < FieldCount {
		return Quote{}, fmt.Errorf("%s record has %d fields, want %d", side, len(fields), FieldCount)
	}
	m := sideMaps[side]
	return Quote{
		Price:        fields[m.price],
		Volume:       fields[m.volume],
		Bid:          fields[m.bid],
		Ask:          fields[m.ask],
		Time:         fields[m.time],
		Date:         fields[m.date],
		Open:         fields[m.open],
		High:         fields[m.high],
		Low:          fields[m.low],
		Settle:       fields[m.settle],
		OpenInterest: fields[m.openInterest],
	}, nil
}

// StrikeRecord is one extracted strike row for both sides. CallLine and
// PutLine keep the serialized form: the strike, a space, then every cell
// followed by a single space.
type StrikeRecord struct {
	Strike   Strike `json:"strike"`
	Call     Quote  `json:"call"`
	Put      Quote  `json:"put"`
	CallLine string `json:"call_line"`
	PutLine  string `json:"put_line"`
}

// Line returns the serialized line of one side.
func (r StrikeRecord) Line(side Side) string {
	if side == Put {
		return r.PutLine
	}
	return r.CallLine
}

// Quote returns the named fields of one side.
func (r StrikeRecord) Quote(side Side) Quote {
	if side == Put {
		return r.Put
	}
	return r.Call
}
