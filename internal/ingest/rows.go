package ingest

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dgnsrekt/odax_crawler/internal/chain"
)

// Row is one options_snapshots record.
type Row struct {
	QuoteTime     time.Time
	CrawlTime     time.Time
	ExpiryDate    time.Time
	MonthlyWeekly string
	OptionType    string
	Strike        decimal.Decimal
	LastTrade     *time.Time
	Open          decimal.NullDecimal
	High          decimal.NullDecimal
	Low           decimal.NullDecimal
	Settle        decimal.NullDecimal
	OpenInterest  *int64
	Volume        *int64
	LastPrice     decimal.NullDecimal
	Bid           decimal.NullDecimal
	Ask           decimal.NullDecimal
	Raw           []byte
}

// Rows converts finished products into records. quote_time is the capture
// minute of the product; the rendered trade date and time of a row become
// last_trade. Rows whose strike or expiration cannot be parsed are counted
// in skipped.
func Rows(tables []chain.ProductTable, crawl time.Time, loc *time.Location) (rows []Row, skipped int) {
	crawl = crawl.UTC()
	for _, p := range tables {
		expiry, err := p.Expiration.Time()
		if err != nil || expiry.IsZero() {
			skipped += 2 * len(p.Strikes)
			continue
		}
		captured := p.CapturedAt
		if captured.IsZero() {
			captured = crawl
		}
		quoteTime := captured.Truncate(time.Minute).UTC()

		for _, r := range p.Strikes {
			for _, side := range [2]chain.Side{chain.Call, chain.Put} {
				q := r.Quote(side)
				raw, _ := json.Marshal(q)
				rows = append(rows, Row{
					QuoteTime:     quoteTime,
					CrawlTime:     crawl,
					ExpiryDate:    expiry,
					MonthlyWeekly: p.Expiration.Kind.String(),
					OptionType:    strings.ToUpper(side.String()),
					Strike:        r.Strike.Decimal(),
					LastTrade:     tradeTime(q.Date, q.Time, loc),
					Open:          number(q.Open),
					High:          number(q.High),
					Low:           number(q.Low),
					Settle:        number(q.Settle),
					OpenInterest:  integer(q.OpenInterest),
					Volume:        integer(q.Volume),
					LastPrice:     number(q.Price),
					Bid:           number(q.Bid),
					Ask:           number(q.Ask),
					Raw:           raw,
				})
			}
		}
	}
	return rows, skipped
}

// number cleans a rendered value; "-" and empty become NULL.
func number(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return decimal.NullDecimal{}
	}
	d, err := chain.ParseNumber(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func integer(s string) *int64 {
	n := number(s)
	if !n.Valid {
		return nil
	}
	v := n.Decimal.IntPart()
	return &v
}

var tradeLayouts = []string{
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"2006-01-02 15:04",
	"02/01/06 15:04",
}

// tradeTime reads the row's date and time cells in loc. A time-only row
// carries no date and is left NULL.
func tradeTime(date, clock string, loc *time.Location) *time.Time {
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	if date == "" || date == "-" || clock == "" || clock == "-" {
		return nil
	}
	for _, layout := range tradeLayouts {
		if t, err := time.ParseInLocation(layout, date+" "+clock, loc); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}
