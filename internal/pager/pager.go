// Package pager walks every strike of the selected expiration through the
// virtualized strike table, which only renders a small window of rows.
//
// The walk starts at the high edge and moves towards the low edge. The low
// edge strike seen before seeking is the sentinel: extracting it ends the
// walk. Strikes are compared in canonical form so separator drift between
// renders cannot break termination.
package pager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dgnsrekt/odax_crawler/internal/chain"
	"github.com/dgnsrekt/odax_crawler/internal/surface"
)

// ErrNoMovement is returned when the window is exhausted without meeting
// the sentinel and the table cannot page any further.
var ErrNoMovement = errors.New("strike table cannot page further")

// Config bounds the pager.
type Config struct {
	// PageSize is the number of rows one page request moves.
	PageSize int
	// EdgeClicks bounds the clicks used to reach either edge.
	EdgeClicks int
	// SettleTicks is the number of polls without any change after which a
	// seek is treated as not having moved the table.
	SettleTicks int
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = 14
	}
	if c.EdgeClicks <= 0 {
		c.EdgeClicks = 400
	}
	if c.SettleTicks <= 0 {
		c.SettleTicks = 4
	}
	return c
}

// VisitFunc receives visible row i and its strike text.
type VisitFunc func(i int, strike string) error

// Pager holds the walk state of one expiration.
type Pager struct {
	driver surface.Driver
	sel    surface.Selectors
	cfg    Config

	sentinel  chain.Strike
	lastRead  chain.Strike
	hasLast   bool
	rewinds   int
	moved     bool
	prevFirst string
	lastSeen  []string
	unchanged int
	cursor    int
	pages     int
	visited   int
}

func New(driver surface.Driver, sel surface.Selectors, cfg Config) *Pager {
	return &Pager{driver: driver, sel: sel, cfg: cfg.withDefaults()}
}

// Reset clears the walk state before a new expiration.
func (p *Pager) Reset() {
	*p = Pager{driver: p.driver, sel: p.sel, cfg: p.cfg}
}

func (p *Pager) Sentinel() chain.Strike { return p.sentinel }
func (p *Pager) Pages() int             { return p.pages }
func (p *Pager) Visited() int           { return p.visited }

func (p *Pager) rows(ctx context.Context) ([]string, error) {
	return surface.Texts(ctx, p.driver, p.sel.Sel(p.sel.StrikeRows))
}

func (p *Pager) arrow(ctx context.Context, css string) (surface.Element, bool, error) {
	return surface.Nth(ctx, p.driver, p.sel.Sel(css), 0)
}

// Begin remembers the low edge strike as the sentinel and seeks the high
// edge. It returns false while the table is not rendered or while the window
// is still off the low edge; the rewind is clicked again every SettleTicks
// polls until the top arrow is gone.
func (p *Pager) Begin(ctx context.Context) (bool, error) {
	rows, err := p.rows(ctx)
	if err != nil || len(rows) == 0 {
		return false, err
	}

	top, ok, err := p.arrow(ctx, p.sel.ArrowTop)
	if err != nil {
		return false, err
	}
	if ok {
		polls := p.rewinds
		p.rewinds++
		if polls%p.cfg.SettleTicks != 0 {
			return false, nil
		}
		slog.Debug("pager window not at low edge, rewinding", "first_row", rows[0], "polls", polls)
		return false, p.driver.Dispatch(ctx, top, surface.ClickN(p.cfg.EdgeClicks))
	}
	p.rewinds = 0

	sentinel, err := chain.ParseStrike(rows[0])
	if err != nil {
		return false, err
	}
	p.sentinel = sentinel
	p.prevFirst = rows[0]
	p.lastSeen = nil
	p.unchanged = 0

	bottom, ok, err := p.arrow(ctx, p.sel.ArrowBottom)
	if err != nil {
		return false, err
	}
	p.moved = ok
	if ok {
		if err := p.driver.Dispatch(ctx, bottom, surface.ClickN(p.cfg.EdgeClicks)); err != nil {
			return false, err
		}
	}
	slog.Debug("pager seek high edge", "sentinel", sentinel.String(), "moved", p.moved)
	return true, nil
}

// EdgeReached confirms the seek: the first row changed and held still for
// two polls, or nothing moved for SettleTicks polls. On success the walk
// cursor is placed on the last visible row.
func (p *Pager) EdgeReached(ctx context.Context) (bool, error) {
	rows, err := p.rows(ctx)
	if err != nil || len(rows) == 0 {
		return false, err
	}

	reached := false
	switch {
	case !p.moved:
		reached = true
	case rows[0] != p.prevFirst:
		reached = slices.Equal(rows, p.lastSeen)
		p.lastSeen = rows
	default:
		p.unchanged++
		reached = p.unchanged >= p.cfg.SettleTicks
	}
	if reached {
		p.cursor = len(rows) - 1
	}
	return reached, nil
}

// Walk visits the visible rows from the cursor down to row 0. It returns
// true right after visiting the sentinel row.
func (p *Pager) Walk(ctx context.Context, visit VisitFunc) (bool, error) {
	rows, err := p.rows(ctx)
	if err != nil {
		return false, err
	}
	if p.cursor >= len(rows) {
		p.cursor = len(rows) - 1
	}

	for ; p.cursor >= 0; p.cursor-- {
		text := rows[p.cursor]
		strike, err := chain.ParseStrike(text)
		if err != nil {
			return false, err
		}
		if err := visit(p.cursor, text); err != nil {
			return false, err
		}
		p.visited++
		p.lastRead = strike
		p.hasLast = true
		if strike.Equal(p.sentinel) {
			return true, nil
		}
	}
	return false, nil
}

// RequestPage moves the window one page towards the low edge.
func (p *Pager) RequestPage(ctx context.Context) error {
	rows, err := p.rows(ctx)
	if err != nil {
		return err
	}
	top, ok, err := p.arrow(ctx, p.sel.ArrowTop)
	if err != nil {
		return err
	}
	if !ok || len(rows) == 0 {
		return fmt.Errorf("%w: sentinel %s not seen after %d pages", ErrNoMovement, p.sentinel, p.pages)
	}

	n := min(p.cfg.PageSize, len(rows))
	p.prevFirst = rows[0]
	p.lastSeen = nil
	p.pages++
	return p.driver.Dispatch(ctx, top, surface.ClickN(n))
}

// PageReady confirms a page request once the first row changed and the
// window held still for two polls, so a scroll still in flight is never
// walked. The cursor is placed directly below the last visited strike; if
// that strike scrolled out of view the walk resumes at the last visible row.
// A request that never renders is bounded by the caller's await limit.
func (p *Pager) PageReady(ctx context.Context) (bool, error) {
	rows, err := p.rows(ctx)
	if err != nil || len(rows) == 0 || rows[0] == p.prevFirst {
		return false, err
	}
	settled := slices.Equal(rows, p.lastSeen)
	p.lastSeen = rows
	if !settled {
		return false, nil
	}

	p.cursor = len(rows) - 1
	if !p.hasLast {
		return true, nil
	}
	for i, text := range rows {
		strike, err := chain.ParseStrike(text)
		if err != nil {
			return false, err
		}
		if strike.Equal(p.lastRead) {
			p.cursor = i - 1
			break
		}
	}
	return true, nil
}

// Rewind seeks the low edge so the next expiration starts from a known
// position.
func (p *Pager) Rewind(ctx context.Context) error {
	top, ok, err := p.arrow(ctx, p.sel.ArrowTop)
	if err != nil || !ok {
		return err
	}
	return p.driver.Dispatch(ctx, top, surface.ClickN(p.cfg.EdgeClicks))
}
