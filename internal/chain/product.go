package chain

import (
	"regexp"
	"strings"
	"time"
)

// SideTotals are the aggregate figures shown under one side table, with
// thousands separators stripped.
type SideTotals struct {
	Volume       string `json:"volume"`
	OpenInterest string `json:"open_interest"`
	Raw          string `json:"raw"`
}

var totalsRe = regexp.MustCompile(`^\D*?([\d.]+)\D+?([\d.]+)\D*$`)

// ParseTotals strips thousands separators from a totals field such as
// "Volume: 11,914OI adj: 195,526" and extracts both figures.
func ParseTotals(text string) SideTotals {
	raw := strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	t := SideTotals{Raw: raw}
	if m := totalsRe.FindStringSubmatch(raw); m != nil {
		t.Volume = m[1]
		t.OpenInterest = m[2]
	}
	return t
}

// ProductTable is the finished table of one expiration.
type ProductTable struct {
	Index      int             `json:"index"`
	Expiration ExpirationEntry `json:"expiration"`
	TradeDate  string          `json:"trade_date"`
	TradeTime  string          `json:"trade_time"`
	CallTotal  SideTotals      `json:"call_total"`
	PutTotal   SideTotals      `json:"put_total"`
	Strikes    []StrikeRecord  `json:"strikes"`
	CapturedAt time.Time       `json:"captured_at"`
}

// ContractType is the M/W flag of the table's expiration.
func (p ProductTable) ContractType() string { return p.Expiration.ContractType() }

// Total returns the totals of one side.
func (p ProductTable) Total(side Side) SideTotals {
	if side == Put {
		return p.PutTotal
	}
	return p.CallTotal
}
