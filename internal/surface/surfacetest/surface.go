// Package surfacetest provides a scripted stand-in for the quotes page. It
// renders the same hooks as the live page, applies every dispatched action
// only after a configurable number of ticks and virtualizes the strike table
// to a fixed window, so the crawler can be driven end to end without a
// browser.
package surfacetest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dgnsrekt/odax_crawler/internal/surface"
)

// Product is one expiration rendered by the fake page.
type Product struct {
	Date string
	// Strikes in ascending order as the page renders them.
	Strikes   []string
	CallTotal string
	PutTotal  string
	// Misaligned makes the put table render one cell short.
	Misaligned bool
}

// Config describes the fake page.
type Config struct {
	Selectors surface.Selectors
	Monthly   []Product
	Weekly    []Product
	// Window is the number of strike rows rendered at once.
	Window int
	// RowWidth is the number of date buttons on the first filter row; the
	// rest are only rendered once the filter is expanded.
	RowWidth int
	// Lag is the number of ticks between a dispatched action and its render.
	Lag int
	// ScrollPerTick, when positive, makes arrow clicks scroll gradually:
	// once the lag has passed the window moves at most this many rows per
	// tick until it reaches the clicked offset.
	ScrollPerTick int
	// LoadTicks is the number of ticks after a (re)load before anything
	// renders.
	LoadTicks int
	// Cell renders cell col of a strike row; nil uses a deterministic
	// default.
	Cell func(p Product, strike string, table, col int) string
}

const cellsPerRow = 12

type change struct {
	due   int
	apply func()
}

type view struct {
	weekly   bool
	expanded bool
	selected int
	offset   int
}

// Surface is the fake page. It is safe for concurrent use.
type Surface struct {
	cfg Config

	mu       sync.Mutex
	tick     int
	pending  []change
	loaded   bool
	cookie   bool
	rendered view
	// intended is the view once all pending changes render.
	intended view

	// scrollTo is the offset a gradual scroll is heading for.
	scrollTo  int
	scrolling bool

	clicks  map[string]int
	reloads int
}

// New builds a loaded page showing the first monthly expiration.
func New(cfg Config) *Surface {
	if cfg.Window <= 0 {
		cfg.Window = 14
	}
	if cfg.RowWidth <= 0 {
		cfg.RowWidth = 8
	}
	if cfg.Selectors.StrikeRows == "" {
		cfg.Selectors = surface.DefaultSelectors()
	}
	s := &Surface{cfg: cfg, clicks: make(map[string]int)}
	s.reset()
	s.loaded = cfg.LoadTicks == 0
	if !s.loaded {
		s.schedule(cfg.LoadTicks, func() { s.loaded = true })
	}
	return s
}

func (s *Surface) reset() {
	s.cookie = s.cfg.Selectors.CookieReject != ""
	s.rendered = view{}
	s.intended = view{}
	s.pending = nil
	s.scrolling = false
}

// Advance moves the fake clock one tick and renders due changes.
func (s *Surface) Advance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick++
	kept := s.pending[:0]
	var due []change
	for _, c := range s.pending {
		if c.due <= s.tick {
			due = append(due, c)
			continue
		}
		kept = append(kept, c)
	}
	s.pending = kept
	s.stepScroll()
	for _, c := range due {
		c.apply()
	}
}

// stepScroll moves a gradual scroll one step towards its target.
func (s *Surface) stepScroll() {
	if !s.scrolling {
		return
	}
	step := s.cfg.ScrollPerTick
	switch d := s.scrollTo - s.rendered.offset; {
	case d > step:
		s.rendered.offset += step
	case d < -step:
		s.rendered.offset -= step
	default:
		s.rendered.offset = s.scrollTo
		s.scrolling = false
	}
}

// scrollLater renders offset after the lag, either at once or gradually.
func (s *Surface) scrollLater(lag, offset int) {
	if s.cfg.ScrollPerTick <= 0 {
		s.schedule(lag, func() { s.rendered.offset = offset })
		return
	}
	s.schedule(lag, func() {
		s.scrollTo = offset
		s.scrolling = true
	})
}

func (s *Surface) schedule(lag int, fn func()) {
	if lag <= 0 {
		fn()
		return
	}
	s.pending = append(s.pending, change{due: s.tick + lag, apply: fn})
}

// Reload drops the rendered page and renders it again after LoadTicks.
func (s *Surface) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloads++
	s.reset()
	s.loaded = false
	s.schedule(s.cfg.LoadTicks, func() { s.loaded = true })
	return nil
}

// Clicks returns how many clicks were dispatched to css.
func (s *Surface) Clicks(css string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clicks[css]
}

// Reloads returns the number of Reload calls.
func (s *Surface) Reloads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloads
}

// SelectedDate returns the rendered selected expiration.
func (s *Surface) SelectedDate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.product(s.rendered)
	if !ok {
		return ""
	}
	return p.Date
}

func (s *Surface) products(weekly bool) []Product {
	if weekly {
		return s.cfg.Weekly
	}
	return s.cfg.Monthly
}

func (s *Surface) product(v view) (Product, bool) {
	ps := s.products(v.weekly)
	if v.selected < 0 || v.selected >= len(ps) {
		return Product{}, false
	}
	return ps[v.selected], true
}

func (s *Surface) maxOffset(v view) int {
	p, ok := s.product(v)
	if !ok || len(p.Strikes) <= s.cfg.Window {
		return 0
	}
	return len(p.Strikes) - s.cfg.Window
}

func (s *Surface) window() []string {
	p, ok := s.product(s.rendered)
	if !ok {
		return nil
	}
	end := min(s.rendered.offset+s.cfg.Window, len(p.Strikes))
	return p.Strikes[s.rendered.offset:end]
}

// visibleDates returns the date buttons rendered for the current view.
func (s *Surface) visibleDates() []string {
	ps := s.products(s.rendered.weekly)
	n := len(ps)
	if !s.rendered.expanded {
		n = min(n, s.cfg.RowWidth)
	}
	out := make([]string, n)
	for i := range out {
		out[i] = ps[i].Date
	}
	return out
}

func (s *Surface) hasMore() bool {
	return len(s.products(s.rendered.weekly)) > s.cfg.RowWidth
}

func (s *Surface) moreLabel() string {
	if s.rendered.expanded {
		return "Show less"
	}
	return s.cfg.Selectors.ShowMoreLabel
}

func elements(sel surface.Selector, texts ...string) []surface.Element {
	out := make([]surface.Element, len(texts))
	for i, t := range texts {
		out[i] = surface.Element{Selector: sel, Index: i, Text: t}
	}
	return out
}

// Query renders the matches of sel.
func (s *Surface) Query(ctx context.Context, sel surface.Selector) ([]surface.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil, nil
	}

	h := s.cfg.Selectors
	if sel.Scope == h.SideTables {
		return s.cells(sel)
	}

	switch sel.CSS {
	case h.CookieReject:
		if s.cookie {
			return elements(sel, "Reject all"), nil
		}
	case h.QuotesTab:
		return elements(sel, "Prices/Quotes"), nil
	case h.FilterContainer:
		dates := s.visibleDates()
		first := dates[:min(len(dates), s.cfg.RowWidth)]
		text := strings.Join(first, "\n")
		if s.hasMore() {
			text += "\n" + s.moreLabel()
		}
		return elements(sel, "Product\nDAX Options", text), nil
	case h.OtherRows:
		dates := s.visibleDates()
		if len(dates) > s.cfg.RowWidth {
			return elements(sel, strings.Join(dates[s.cfg.RowWidth:], "\n")), nil
		}
	case h.ShowMore:
		if s.hasMore() {
			return elements(sel, s.moreLabel()), nil
		}
	case h.MonthlyButton:
		texts := []string{"Monthly"}
		if !s.rendered.weekly {
			texts = append(texts, s.visibleDates()...)
		}
		return elements(sel, texts...), nil
	case h.WeeklyButton:
		texts := []string{"Weekly"}
		if s.rendered.weekly {
			texts = append(texts, s.visibleDates()...)
		}
		return elements(sel, texts...), nil
	case h.SelectedMonthly, h.SelectedWeekly:
		weekly := sel.CSS == h.SelectedWeekly
		if weekly != s.rendered.weekly {
			return nil, nil
		}
		p, ok := s.product(s.rendered)
		if !ok {
			return nil, nil
		}
		toggle := "Monthly"
		if weekly {
			toggle = "Weekly"
		}
		return elements(sel, toggle, p.Date), nil
	case h.StrikeRows:
		return elements(sel, s.window()...), nil
	case h.Totals:
		p, ok := s.product(s.rendered)
		if !ok {
			return nil, nil
		}
		return elements(sel, p.CallTotal, p.PutTotal), nil
	case h.ArrowTop:
		if s.rendered.offset > 0 {
			return elements(sel, ""), nil
		}
	case h.ArrowBottom:
		if s.rendered.offset < s.maxOffset(s.rendered) {
			return elements(sel, ""), nil
		}
	}
	return nil, nil
}

func (s *Surface) cells(sel surface.Selector) ([]surface.Element, error) {
	var row int
	if _, err := fmt.Sscanf(sel.CSS, s.cfg.Selectors.RowCells, &row); err != nil {
		return nil, fmt.Errorf("surfacetest: bad row selector %q: %w", sel.CSS, err)
	}
	win := s.window()
	if row < 1 || row > len(win) || sel.ScopeIndex < 0 || sel.ScopeIndex > 1 {
		return nil, nil
	}
	p, _ := s.product(s.rendered)
	strike := win[row-1]
	n := cellsPerRow
	if p.Misaligned && sel.ScopeIndex == 1 {
		n--
	}
	texts := make([]string, n)
	for col := range texts {
		texts[col] = s.cell(p, strike, sel.ScopeIndex, col)
	}
	return elements(sel, texts...), nil
}

func (s *Surface) cell(p Product, strike string, table, col int) string {
	if s.cfg.Cell != nil {
		return s.cfg.Cell(p, strike, table, col)
	}
	return DefaultCell(p, strike, table, col)
}

// DefaultCell renders a value unique to the expiration, strike, side and
// column.
func DefaultCell(p Product, strike string, table, col int) string {
	side := "c"
	if table == 1 {
		side = "p"
	}
	return fmt.Sprintf("%s|%s|%s%02d", strings.ReplaceAll(p.Date, "/", ""), strings.ReplaceAll(strike, ",", ""), side, col)
}

// Dispatch applies action to el after the configured lag.
func (s *Surface) Dispatch(ctx context.Context, el surface.Element, action surface.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return fmt.Errorf("surfacetest: page not loaded")
	}
	if action.Kind != surface.ActionClick {
		return fmt.Errorf("surfacetest: unsupported action %q", action.Kind)
	}
	repeat := max(action.Repeat, 1)
	s.clicks[el.Selector.CSS] += repeat

	h := s.cfg.Selectors
	lag := s.cfg.Lag
	switch el.Selector.CSS {
	case h.CookieReject:
		s.schedule(lag, func() { s.cookie = false })
	case h.QuotesTab:
	case h.ShowMore:
		for i := 0; i < repeat; i++ {
			s.intended.expanded = !s.intended.expanded
		}
		expanded := s.intended.expanded
		s.schedule(lag, func() { s.rendered.expanded = expanded })
	case h.MonthlyButton, h.WeeklyButton:
		weekly := el.Selector.CSS == h.WeeklyButton
		if el.Index == 0 {
			s.selectView(view{weekly: weekly}, lag)
			return nil
		}
		if weekly != s.rendered.weekly || el.Index > len(s.visibleDates()) {
			return fmt.Errorf("surfacetest: %s button %d not rendered", el.Selector.CSS, el.Index)
		}
		s.selectView(view{weekly: weekly, expanded: s.intended.expanded, selected: el.Index - 1}, lag)
	case h.ArrowTop:
		s.intended.offset = max(0, s.intended.offset-repeat)
		s.scrollLater(lag, s.intended.offset)
	case h.ArrowBottom:
		s.intended.offset = min(s.maxOffset(s.intended), s.intended.offset+repeat)
		s.scrollLater(lag, s.intended.offset)
	default:
		return fmt.Errorf("surfacetest: nothing to click at %s", el.Selector)
	}
	return nil
}

func (s *Surface) selectView(v view, lag int) {
	s.intended = v
	s.schedule(lag, func() {
		s.rendered = v
		s.scrolling = false
	})
}
