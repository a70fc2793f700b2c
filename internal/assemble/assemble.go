// Package assemble turns finished expirations into the cycle document. Each
// product is rendered as soon as it completes and appended to an append-only
// buffer; the buffer is wrapped into a document and reset exactly once per
// cycle.
package assemble

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/odax_crawler/internal/chain"
	"github.com/dgnsrekt/odax_crawler/internal/surface"
)

// Format selects the document rendering.
type Format string

const (
	FormatRaw  Format = "raw"
	FormatHTML Format = "html"
)

// ParseFormat accepts "raw" or "html".
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatRaw:
		return FormatRaw, nil
	case FormatHTML, "":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unknown document format %q", s)
}

// FileName is the name downstream viewers expect for the format.
func (f Format) FileName() string {
	if f == FormatRaw {
		return "DT-DL1odaxtoday.txt"
	}
	return "Alist.html"
}

func (f Format) ContentType() string {
	if f == FormatRaw {
		return "text/plain; charset=utf-8"
	}
	return "text/html; charset=utf-8"
}

// OutputBuffer accumulates rendered products for one cycle.
type OutputBuffer struct {
	b strings.Builder
	n int
}

func (o *OutputBuffer) Append(block string) {
	o.b.WriteString(block)
	o.n++
}

// Products is the number of appended blocks.
func (o *OutputBuffer) Products() int { return o.n }
func (o *OutputBuffer) Len() int      { return o.b.Len() }
func (o *OutputBuffer) String() string {
	return o.b.String()
}

func (o *OutputBuffer) Reset() {
	o.b.Reset()
	o.n = 0
}

// Document is the flushed cycle artifact.
type Document struct {
	CycleID     string
	Format      Format
	Name        string
	ContentType string
	Body        []byte
	Products    int
	Expirations []string
	CreatedAt   time.Time
	// Tables are the products the body was rendered from.
	Tables []chain.ProductTable
}

type renderer interface {
	product(p chain.ProductTable) (string, error)
	wrap(list chain.ExpirationList, body string) (string, error)
}

// Assembler owns the cycle buffer.
type Assembler struct {
	format Format
	r      renderer
	loc    *time.Location
	now    func() time.Time

	cycleID string
	list    chain.ExpirationList
	buf     OutputBuffer
	dates   []string
	tables  []chain.ProductTable
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithClock overrides the trade timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

// WithLocation sets the zone trade date and time are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(a *Assembler) { a.loc = loc }
}

func New(format Format, opts ...Option) *Assembler {
	a := &Assembler{format: format, now: time.Now, loc: time.UTC}
	if format == FormatRaw {
		a.r = rawRenderer{}
	} else {
		a.format = FormatHTML
		a.r = htmlRenderer{}
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Assembler) Format() Format { return a.format }

// Start resets the buffer for a new cycle over list.
func (a *Assembler) Start(cycleID string, list chain.ExpirationList) {
	a.cycleID = cycleID
	a.list = list
	a.buf.Reset()
	a.dates = nil
	a.tables = nil
}

// Pending is the number of products waiting for the next flush.
func (a *Assembler) Pending() int { return a.buf.Products() }

// Product builds the finished table of list entry i. Trade date and time are
// stamped now.
func (a *Assembler) Product(i int, records []chain.StrikeRecord, callTotal, putTotal chain.SideTotals) (chain.ProductTable, error) {
	entry, ok := a.list.At(i)
	if !ok || !entry.IsExpiration() {
		return chain.ProductTable{}, fmt.Errorf("list entry %d is not an expiration", i)
	}
	now := a.now().In(a.loc)
	return chain.ProductTable{
		Index:      a.list.HeaderIndex(i),
		Expiration: entry,
		TradeDate:  now.Format("02.01.2006"),
		TradeTime:  now.Format("15:04:05"),
		CallTotal:  callTotal,
		PutTotal:   putTotal,
		Strikes:    records,
		CapturedAt: now,
	}, nil
}

// Append renders p and adds it to the buffer.
func (a *Assembler) Append(p chain.ProductTable) error {
	block, err := a.r.product(p)
	if err != nil {
		return fmt.Errorf("render %s: %w", p.Expiration.Date, err)
	}
	a.buf.Append(block)
	a.dates = append(a.dates, p.Expiration.Date)
	a.tables = append(a.tables, p)
	return nil
}

// Flush wraps the buffer into the cycle document and resets it.
func (a *Assembler) Flush() (Document, error) {
	body, err := a.r.wrap(a.list, a.buf.String())
	if err != nil {
		return Document{}, fmt.Errorf("wrap document: %w", err)
	}
	doc := Document{
		CycleID:     a.cycleID,
		Format:      a.format,
		Name:        a.format.FileName(),
		ContentType: a.format.ContentType(),
		Body:        []byte(body),
		Products:    a.buf.Products(),
		Expirations: a.dates,
		CreatedAt:   a.now(),
		Tables:      a.tables,
	}
	a.buf.Reset()
	a.dates = nil
	a.tables = nil
	return doc, nil
}

// ReadTotals reads the call and put totals rendered under the side tables.
// ok is false while fewer than two are rendered.
func ReadTotals(ctx context.Context, d surface.Driver, sel surface.Selectors) (call, put chain.SideTotals, ok bool, err error) {
	texts, err := surface.Texts(ctx, d, sel.Sel(sel.Totals))
	if err != nil || len(texts) < 2 {
		return chain.SideTotals{}, chain.SideTotals{}, false, err
	}
	return chain.ParseTotals(texts[0]), chain.ParseTotals(texts[1]), true, nil
}

// sides is the block order inside a product.
var sides = [2]chain.Side{chain.Put, chain.Call}
