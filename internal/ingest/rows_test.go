package ingest

import (
	"testing"
	"time"

	"github.com/dgnsrekt/odax_crawler/internal/chain"
)

func TestRowsConvertsBothSides(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	strike, _ := chain.ParseStrike("24,000.00")
	captured := time.Date(2025, 12, 1, 9, 30, 42, 0, berlin)
	p := chain.ProductTable{
		Expiration: chain.ExpirationEntry{Date: "23/01/2026", Kind: chain.Weekly},
		CapturedAt: captured,
		Strikes: []chain.StrikeRecord{{
			Strike: strike,
			Call: chain.Quote{
				Price: "1,234.50", Volume: "1,194", Bid: "1,230.00", Ask: "-",
				Date: "01/12/2025", Time: "09:15:00", OpenInterest: "14,318",
			},
			Put: chain.Quote{Price: "", Volume: "0"},
		}},
	}

	crawl := time.Date(2025, 12, 1, 8, 31, 0, 0, time.UTC)
	rows, skipped := Rows([]chain.ProductTable{p}, crawl, berlin)
	if skipped != 0 || len(rows) != 2 {
		t.Fatalf("Rows() = %d rows, %d skipped; want 2, 0", len(rows), skipped)
	}

	call := rows[0]
	if call.OptionType != "CALL" || call.MonthlyWeekly != "weekly" {
		t.Fatalf("call = %s/%s; want CALL/weekly", call.OptionType, call.MonthlyWeekly)
	}
	if got := call.Strike.String(); got != "24000" {
		t.Fatalf("Strike = %s; want 24000", got)
	}
	if want := time.Date(2025, 12, 1, 8, 30, 0, 0, time.UTC); !call.QuoteTime.Equal(want) {
		t.Fatalf("QuoteTime = %v; want %v", call.QuoteTime, want)
	}
	if want := time.Date(2026, 1, 23, 0, 0, 0, 0, time.UTC); !call.ExpiryDate.Equal(want) {
		t.Fatalf("ExpiryDate = %v; want %v", call.ExpiryDate, want)
	}
	if !call.LastPrice.Valid || call.LastPrice.Decimal.String() != "1234.5" {
		t.Fatalf("LastPrice = %+v; want 1234.5", call.LastPrice)
	}
	if call.Ask.Valid {
		t.Fatalf("Ask = %+v; want NULL for '-'", call.Ask)
	}
	if call.Volume == nil || *call.Volume != 1194 || call.OpenInterest == nil || *call.OpenInterest != 14318 {
		t.Fatalf("Volume/OI = %v/%v; want 1194/14318", call.Volume, call.OpenInterest)
	}
	if call.LastTrade == nil || !call.LastTrade.Equal(time.Date(2025, 12, 1, 8, 15, 0, 0, time.UTC)) {
		t.Fatalf("LastTrade = %v; want 08:15 UTC", call.LastTrade)
	}

	put := rows[1]
	if put.OptionType != "PUT" || put.LastPrice.Valid || put.LastTrade != nil {
		t.Fatalf("put = %+v; want PUT with NULL price and trade", put)
	}
	if put.Volume == nil || *put.Volume != 0 {
		t.Fatalf("put Volume = %v; want 0", put.Volume)
	}
}

func TestRowsSkipsUnparsableExpiration(t *testing.T) {
	strike, _ := chain.ParseStrike("100")
	p := chain.ProductTable{
		Expiration: chain.ExpirationEntry{Date: "garbage!!!"},
		Strikes:    []chain.StrikeRecord{{Strike: strike}},
	}
	rows, skipped := Rows([]chain.ProductTable{p}, time.Now(), time.UTC)
	if len(rows) != 0 || skipped != 2 {
		t.Fatalf("Rows() = %d rows, %d skipped; want 0, 2", len(rows), skipped)
	}
}
