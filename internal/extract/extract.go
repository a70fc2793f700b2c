// Package extract reads one visible strike row from both side tables and
// serializes it.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgnsrekt/odax_crawler/internal/chain"
	"github.com/dgnsrekt/odax_crawler/internal/surface"
)

// ErrRowMisaligned is returned when the call and put tables disagree on the
// shape of a row. The product being walked cannot be trusted and is aborted.
var ErrRowMisaligned = errors.New("call and put rows misaligned")

// MisalignmentError carries the diagnostic of a misaligned row.
type MisalignmentError struct {
	Row       int
	Strike    string
	CallCells int
	PutCells  int
}

func (e *MisalignmentError) Error() string {
	return fmt.Sprintf("row %d strike %q: call has %d cells, put has %d", e.Row, e.Strike, e.CallCells, e.PutCells)
}

func (e *MisalignmentError) Unwrap() error { return ErrRowMisaligned }

// Extractor reads rows through a surface driver.
type Extractor struct {
	driver surface.Driver
	sel    surface.Selectors
}

func New(driver surface.Driver, sel surface.Selectors) *Extractor {
	return &Extractor{driver: driver, sel: sel}
}

// Row reads visible row i, whose strike cell renders strikeText. Both sides
// must expose exactly the cells the positional field maps cover.
func (x *Extractor) Row(ctx context.Context, i int, strikeText string) (chain.StrikeRecord, error) {
	strike, err := chain.ParseStrike(strikeText)
	if err != nil {
		return chain.StrikeRecord{}, err
	}

	callCells, err := surface.Texts(ctx, x.driver, x.sel.Cells(int(chain.Call), i))
	if err != nil {
		return chain.StrikeRecord{}, fmt.Errorf("read call row %d: %w", i, err)
	}
	putCells, err := surface.Texts(ctx, x.driver, x.sel.Cells(int(chain.Put), i))
	if err != nil {
		return chain.StrikeRecord{}, fmt.Errorf("read put row %d: %w", i, err)
	}
	if len(callCells) != chain.FieldCount-1 || len(putCells) != chain.FieldCount-1 {
		return chain.StrikeRecord{}, &MisalignmentError{Row: i, Strike: strikeText, CallCells: len(callCells), PutCells: len(putCells)}
	}

	strikeText = Cell(strikeText)
	callCells = cells(callCells)
	putCells = cells(putCells)
	call, err := chain.QuoteFromFields(chain.Call, fields(strikeText, callCells))
	if err != nil {
		return chain.StrikeRecord{}, err
	}
	put, err := chain.QuoteFromFields(chain.Put, fields(strikeText, putCells))
	if err != nil {
		return chain.StrikeRecord{}, err
	}

	return chain.StrikeRecord{
		Strike:   strike,
		Call:     call,
		Put:      put,
		CallLine: Line(strikeText, callCells),
		PutLine:  Line(strikeText, putCells),
	}, nil
}

// Line serializes one side: the strike, a space, then each cell followed by
// a single space.
func Line(strike string, cells []string) string {
	var b strings.Builder
	b.WriteString(strike)
	b.WriteByte(' ')
	for _, c := range cells {
		b.WriteString(c)
		b.WriteByte(' ')
	}
	return b.String()
}

// Cell normalizes one rendered cell. Surrounding whitespace is dropped and
// every interior whitespace run becomes one no-break space, so a cell is
// always exactly one field of the space-separated line.
func Cell(text string) string {
	return strings.Join(strings.Fields(text), "\u00a0")
}

func cells(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = Cell(t)
	}
	return out
}

func fields(strike string, cells []string) []string {
	out := make([]string, 0, len(cells)+1)
	out = append(out, strike)
	return append(out, cells...)
}
