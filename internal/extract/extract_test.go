package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dgnsrekt/odax_crawler/internal/surface"
	"github.com/dgnsrekt/odax_crawler/internal/surface/surfacetest"
)

func newPage(misaligned bool) *surfacetest.Surface {
	return surfacetest.New(surfacetest.Config{
		Monthly: []surfacetest.Product{{
			Date:       "19/12/2025",
			Strikes:    []string{"23,000", "23,050", "23,100"},
			Misaligned: misaligned,
		}},
		Weekly: []surfacetest.Product{{Date: "23/01/2026", Strikes: []string{"23,000"}}},
	})
}

func TestLine(t *testing.T) {
	got := Line("23,000", []string{"a", "", "b"})
	if want := "23,000 a  b "; got != want {
		t.Fatalf("Line() = %q; want %q", got, want)
	}
}

func TestCell(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{"23,000", "23,000"},
		{"  1 234.5\n", "1\u00a0234.5"},
		{"17:35\n  CET", "17:35\u00a0CET"},
		{"1\u00a0234", "1\u00a0234"},
		{" \t", ""},
	} {
		if got := Cell(tc.in); got != tc.want {
			t.Fatalf("Cell(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestRowKeepsSpacedCellsInPlace(t *testing.T) {
	page := surfacetest.New(surfacetest.Config{
		Monthly: []surfacetest.Product{{Date: "19/12/2025", Strikes: []string{"23,000"}}},
		Cell: func(p surfacetest.Product, strike string, table, col int) string {
			if col == 6 {
				return "1 234.5"
			}
			return surfacetest.DefaultCell(p, strike, table, col)
		},
	})
	x := New(page, surface.DefaultSelectors())

	rec, err := x.Row(context.Background(), 0, "23,000")
	if err != nil {
		t.Fatalf("Row() error = %v", err)
	}
	if rec.Call.Price != "1\u00a0234.5" || rec.Put.Settle != "1\u00a0234.5" {
		t.Fatalf("call price = %q, put settle = %q; want the spaced cell", rec.Call.Price, rec.Put.Settle)
	}
	if want := "19122025|23000|c07"; rec.Call.OpenInterest != want {
		t.Fatalf("call open interest = %q; want %q", rec.Call.OpenInterest, want)
	}
	for _, line := range []string{rec.CallLine, rec.PutLine} {
		if n := len(strings.Split(strings.TrimSuffix(line, " "), " ")); n != 13 {
			t.Fatalf("line %q has %d fields; want 13", line, n)
		}
	}
}

func TestRowIsIdempotent(t *testing.T) {
	ctx := context.Background()
	page := newPage(false)
	x := New(page, surface.DefaultSelectors())

	first, err := x.Row(ctx, 1, "23,050")
	if err != nil {
		t.Fatalf("Row() error = %v", err)
	}
	second, err := x.Row(ctx, 1, "23,050")
	if err != nil {
		t.Fatalf("Row() second error = %v", err)
	}
	if first.CallLine != second.CallLine || first.PutLine != second.PutLine {
		t.Fatalf("re-extraction differs:\n%q\n%q", first.CallLine+first.PutLine, second.CallLine+second.PutLine)
	}
	if !strings.HasPrefix(first.CallLine, "23,050 ") || !strings.HasSuffix(first.CallLine, " ") {
		t.Fatalf("CallLine = %q; want strike prefix and trailing space", first.CallLine)
	}
	if got := len(strings.Fields(first.PutLine)); got != 13 {
		t.Fatalf("PutLine has %d fields; want 13", got)
	}
	if got, want := first.Call.Price, surfacetest.DefaultCell(surfacetest.Product{Date: "19/12/2025"}, "23,050", 0, 6); got != want {
		t.Fatalf("Call.Price = %q; want %q", got, want)
	}
	if got, want := first.Put.Price, surfacetest.DefaultCell(surfacetest.Product{Date: "19/12/2025"}, "23,050", 1, 3); got != want {
		t.Fatalf("Put.Price = %q; want %q", got, want)
	}
}

func TestRowDetectsMisalignment(t *testing.T) {
	x := New(newPage(true), surface.DefaultSelectors())

	_, err := x.Row(context.Background(), 0, "23,000")
	if !errors.Is(err, ErrRowMisaligned) {
		t.Fatalf("Row() error = %v; want ErrRowMisaligned", err)
	}
	var mis *MisalignmentError
	if !errors.As(err, &mis) {
		t.Fatalf("Row() error = %T; want *MisalignmentError", err)
	}
	if mis.CallCells != 12 || mis.PutCells != 11 {
		t.Fatalf("cells = %d/%d; want 12/11", mis.CallCells, mis.PutCells)
	}
}

func TestRowMissingIsMisaligned(t *testing.T) {
	x := New(newPage(false), surface.DefaultSelectors())
	if _, err := x.Row(context.Background(), 9, "23,000"); !errors.Is(err, ErrRowMisaligned) {
		t.Fatalf("Row(9) error = %v; want ErrRowMisaligned", err)
	}
}
