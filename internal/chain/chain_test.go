package chain

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// discoveryText builds the text produced by the discovery states: monthly
// rows, W, weekly rows, E, with a button label leaking in.
func discoveryText(monthly, weekly int) string {
	var b strings.Builder
	for i := 0; i < monthly; i++ {
		fmt.Fprintf(&b, "%02d/01/2026\n", i+1)
	}
	b.WriteString("Show less\n")
	b.WriteString("W\n")
	for i := 0; i < weekly; i++ {
		fmt.Fprintf(&b, "%02d/02/2026\n", i+1)
	}
	b.WriteString("Show less\nE\n")
	return b.String()
}

func TestParseListAcceptsEndMarkerPositions(t *testing.T) {
	for _, tc := range []struct {
		monthly, weekly int
		wantEnd         int
	}{
		{monthly: 15, weekly: 4, wantEnd: 20},
		{monthly: 16, weekly: 4, wantEnd: 21},
		{monthly: 16, weekly: 5, wantEnd: 22},
	} {
		list, err := ParseList(discoveryText(tc.monthly, tc.weekly), nil)
		if err != nil {
			t.Fatalf("ParseList(%d monthly, %d weekly) error = %v", tc.monthly, tc.weekly, err)
		}
		if got := list.Len() - 1; got != tc.wantEnd {
			t.Fatalf("end index = %d; want %d", got, tc.wantEnd)
		}
		if !list.Entries[tc.wantEnd].IsListEnd() {
			t.Fatalf("last entry = %+v; want end marker", list.Entries[tc.wantEnd])
		}
		if list.WeeklyOffset != tc.monthly {
			t.Fatalf("WeeklyOffset = %d; want %d", list.WeeklyOffset, tc.monthly)
		}
		if !list.Entries[list.WeeklyOffset].IsWeeklyStart() {
			t.Fatalf("entry at weekly offset = %+v; want W marker", list.Entries[list.WeeklyOffset])
		}
	}
}

func TestParseListRejectsOtherCounts(t *testing.T) {
	for _, tc := range []struct{ monthly, weekly int }{
		{14, 4}, {16, 6}, {3, 3}, {0, 0},
	} {
		_, err := ParseList(discoveryText(tc.monthly, tc.weekly), nil)
		if !errors.Is(err, ErrCorruptList) {
			t.Fatalf("ParseList(%d monthly, %d weekly) error = %v; want ErrCorruptList", tc.monthly, tc.weekly, err)
		}
	}
}

func TestParseListRequiresEndAndWeeklyMarkers(t *testing.T) {
	noEnd := strings.TrimSuffix(discoveryText(16, 4), "E\n")
	if _, err := ParseList(noEnd, nil); !errors.Is(err, ErrCorruptList) {
		t.Fatalf("missing E: error = %v; want ErrCorruptList", err)
	}
	noWeekly := strings.Replace(discoveryText(17, 4), "W\n", "", 1)
	if _, err := ParseList(noWeekly, nil); !errors.Is(err, ErrCorruptList) {
		t.Fatalf("missing W: error = %v; want ErrCorruptList", err)
	}
}

func TestParseListCustomEndIndices(t *testing.T) {
	raw := "19/12/2025\n16/01/2026\nW\n23/01/2026\n30/01/2026\n06/02/2026\n13/02/2026\nE"
	list, err := ParseList(raw, []int{7})
	if err != nil {
		t.Fatalf("ParseList() error = %v", err)
	}
	want := []string{"19/12/2025", "16/01/2026", "W", "23/01/2026", "30/01/2026", "06/02/2026", "13/02/2026", "E"}
	if diff := cmp.Diff(want, list.Tokens()); diff != "" {
		t.Fatalf("Tokens() mismatch (-want +got):\n%s", diff)
	}
	if list.WeeklyOffset != 2 {
		t.Fatalf("WeeklyOffset = %d; want 2", list.WeeklyOffset)
	}

	kinds := make([]string, 0, list.Len())
	for _, e := range list.Entries {
		kinds = append(kinds, e.ContractType())
	}
	if diff := cmp.Diff([]string{"M", "M", "W", "W", "W", "W", "W", "W"}, kinds); diff != "" {
		t.Fatalf("contract types mismatch (-want +got):\n%s", diff)
	}

	buttons := []int{list.ButtonIndex(0), list.ButtonIndex(1), list.ButtonIndex(3), list.ButtonIndex(6)}
	if diff := cmp.Diff([]int{1, 2, 1, 4}, buttons); diff != "" {
		t.Fatalf("ButtonIndex mismatch (-want +got):\n%s", diff)
	}
	headers := []int{list.HeaderIndex(0), list.HeaderIndex(1), list.HeaderIndex(3), list.HeaderIndex(6)}
	if diff := cmp.Diff([]int{0, 1, 2, 5}, headers); diff != "" {
		t.Fatalf("HeaderIndex mismatch (-want +got):\n%s", diff)
	}
	if got := len(list.Expirations()); got != 6 {
		t.Fatalf("len(Expirations()) = %d; want 6", got)
	}
}

func TestExpirationShort(t *testing.T) {
	e := ExpirationEntry{Date: "19/12/2025"}
	if got, want := e.Short(), "19.12.25"; got != want {
		t.Fatalf("Short() = %q; want %q", got, want)
	}
}

func TestParseStrikeCanonical(t *testing.T) {
	base, err := ParseStrike("23000")
	if err != nil {
		t.Fatalf("ParseStrike() error = %v", err)
	}
	for _, text := range []string{"23,000", "23,000.00", "23.000,00", " 23000.0 ", "23 000"} {
		s, err := ParseStrike(text)
		if err != nil {
			t.Fatalf("ParseStrike(%q) error = %v", text, err)
		}
		if !s.Equal(base) {
			t.Fatalf("ParseStrike(%q) = %s; want equal to %s", text, s, base)
		}
	}
	other, _ := ParseStrike("23,050")
	if other.Equal(base) {
		t.Fatalf("23,050 compared equal to 23000")
	}
	if _, err := ParseStrike("n/a"); err == nil {
		t.Fatalf("ParseStrike(n/a) error = nil; want error")
	}
}

func TestParseNumber(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{"11,914", "11914"},
		{"195.526", "195526"},
		{"12.5", "12.5"},
		{"0.125", "0.125"},
		{"1,234.50", "1234.5"},
		{"1.234,50", "1234.5"},
		{"12,5", "12.5"},
	} {
		d, err := ParseNumber(tc.in)
		if err != nil {
			t.Fatalf("ParseNumber(%q) error = %v", tc.in, err)
		}
		if got := d.String(); got != tc.want {
			t.Fatalf("ParseNumber(%q) = %s; want %s", tc.in, got, tc.want)
		}
	}
}

func TestQuoteFromFieldsKeepsSideAsymmetry(t *testing.T) {
	fields := make([]string, FieldCount)
	for i := range fields {
		fields[i] = fmt.Sprintf("f%d", i)
	}

	call, err := QuoteFromFields(Call, fields)
	if err != nil {
		t.Fatalf("QuoteFromFields(call) error = %v", err)
	}
	wantCall := Quote{Price: "f7", Volume: "f9", Bid: "f11", Ask: "f12", Time: "f2", Date: "f3", Open: "f4", High: "f5", Low: "f6", Settle: "f10", OpenInterest: "f8"}
	if diff := cmp.Diff(wantCall, call); diff != "" {
		t.Fatalf("call quote mismatch (-want +got):\n%s", diff)
	}

	put, err := QuoteFromFields(Put, fields)
	if err != nil {
		t.Fatalf("QuoteFromFields(put) error = %v", err)
	}
	wantPut := Quote{Price: "f4", Volume: "f5", Bid: "f2", Ask: "f3", Time: "f11", Date: "f12", Open: "f8", High: "f9", Low: "f10", Settle: "f7", OpenInterest: "f6"}
	if diff := cmp.Diff(wantPut, put); diff != "" {
		t.Fatalf("put quote mismatch (-want +got):\n%s", diff)
	}

	if _, err := QuoteFromFields(Put, fields[:12]); err == nil {
		t.Fatalf("QuoteFromFields(12 fields) error = nil; want error")
	}
}

func TestParseTotals(t *testing.T) {
	got := ParseTotals("Volume: 11,914OI adj: 195,526")
	want := SideTotals{Volume: "11914", OpenInterest: "195526", Raw: "Volume: 11914OI adj: 195526"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ParseTotals() mismatch (-want +got):\n%s", diff)
	}
}
