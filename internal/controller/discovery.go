package controller

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dgnsrekt/odax_crawler/internal/chain"
	"github.com/dgnsrekt/odax_crawler/internal/surface"
)

func (c *Controller) awaitSession(ctx context.Context) error {
	if !c.deps.Gate.InSession(c.deps.Now()) {
		if !c.gated {
			slog.Info("outside trading session, waiting")
			c.gated = true
		}
		return nil
	}
	c.gated = false
	c.beginCycle()
	slog.Info("cycle started", "cycle_id", c.cycleID)
	return c.goTo(OpenQuotes)
}

func (c *Controller) openQuotes(ctx context.Context) error {
	if c.sel.CookieReject != "" {
		if _, err := surface.ClickNth(ctx, c.deps.Driver, c.sel.Sel(c.sel.CookieReject), 0, surface.Click); err != nil {
			return err
		}
	}
	ok, err := surface.ClickNth(ctx, c.deps.Driver, c.sel.Sel(c.sel.QuotesTab), 0, surface.Click)
	if err != nil || !ok {
		return err
	}
	return c.sleep(c.cfg.OpenWaitTicks, DiscoverMonthly)
}

func (c *Controller) discoverMonthly(ctx context.Context) error {
	if c.cfg.WarmStart && !c.warmTried && c.deps.Store != nil {
		c.warmTried = true
		raw, ok, err := c.deps.Store.Expirations(ctx)
		switch {
		case err != nil:
			slog.Warn("saved expiration list unreadable", "error", err)
		case ok:
			c.discovery = raw
			c.warm = true
			return c.goTo(ParseList)
		}
	}

	active, err := surface.Count(ctx, c.deps.Driver, c.sel.Selected(false))
	if err != nil {
		return err
	}
	if active == 0 {
		return c.clickToggle(ctx, false)
	}
	text, ok, err := c.captureDates(ctx)
	if err != nil || !ok {
		return err
	}
	c.discovery = text
	return c.goTo(SaveMonthly)
}

func (c *Controller) saveMonthly(ctx context.Context) error {
	ok, err := surface.ClickNth(ctx, c.deps.Driver, c.sel.Buttons(true), 0, surface.Click)
	if err != nil || !ok {
		return err
	}
	c.discoveries++
	return c.goTo(AwaitWeeklyToggle)
}

func (c *Controller) awaitWeeklyToggle(ctx context.Context) error {
	n, err := surface.Count(ctx, c.deps.Driver, c.sel.Buttons(true))
	if err != nil || n <= 1 {
		return err
	}
	return c.goTo(DiscoverWeekly)
}

func (c *Controller) discoverWeekly(ctx context.Context) error {
	text, ok, err := c.captureDates(ctx)
	if err != nil || !ok {
		return err
	}
	c.discovery += "\nW\n" + text + "\nE"
	return c.goTo(ParseList)
}

func (c *Controller) parseList(ctx context.Context) error {
	warm := c.warm
	c.warm = false
	list, err := chain.ParseList(c.discovery, c.cfg.EndIndices)
	if err != nil {
		c.recordFault(err)
		slog.Warn("expiration list rejected, rediscovering", "cycle_id", c.cycleID, "warm_start", warm, "error", err)
		c.discovery = ""
		return c.goTo(DiscoverMonthly)
	}

	if !warm && c.deps.Store != nil {
		if err := c.deps.Store.SaveExpirations(ctx, strings.Join(list.Tokens(), "\n")); err != nil {
			slog.Warn("expiration list not saved", "error", err)
		}
	}
	c.list = list
	c.asm.Start(c.cycleID, list)
	slog.Info("expiration list ready", "cycle_id", c.cycleID, "entries", list.Len(), "weekly_offset", list.WeeklyOffset, "warm_start", warm)
	return c.goTo(AwaitFirstMonthly)
}

// awaitFirstMonthly switches back to the monthly view and waits until the
// first expiration is selected with its strikes rendered.
func (c *Controller) awaitFirstMonthly(ctx context.Context) error {
	first, _ := c.list.At(0)
	el, ok, err := surface.Nth(ctx, c.deps.Driver, c.sel.Selected(false), c.sel.SelectedIndex)
	if err != nil {
		return err
	}
	switch {
	case !ok:
		return c.clickToggle(ctx, false)
	case strings.TrimSpace(el.Text) != first.Date:
		btn, ok, err := surface.Nth(ctx, c.deps.Driver, c.sel.Buttons(false), c.list.ButtonIndex(0))
		if err != nil || !ok {
			return err
		}
		return c.clickOnce(ctx, btn, &c.lastToggle)
	}
	rows, err := surface.Count(ctx, c.deps.Driver, c.sel.Sel(c.sel.StrikeRows))
	if err != nil || rows == 0 {
		return err
	}
	c.index = 0
	c.weekly = false
	c.beginProduct()
	return c.goTo(SeekStrikeEdge)
}

// captureDates returns the expiration text of the rendered view once the
// filter is fully expanded.
func (c *Controller) captureDates(ctx context.Context) (string, bool, error) {
	containers, err := surface.Texts(ctx, c.deps.Driver, c.sel.Sel(c.sel.FilterContainer))
	if err != nil || len(containers) <= c.sel.FilterContainerIndex {
		return "", false, err
	}
	more, hasMore, err := surface.Nth(ctx, c.deps.Driver, c.sel.Sel(c.sel.ShowMore), 0)
	if err != nil {
		return "", false, err
	}
	if hasMore && strings.TrimSpace(more.Text) == c.sel.ShowMoreLabel {
		return "", false, c.clickOnce(ctx, more, &c.lastExpand)
	}

	text := containers[c.sel.FilterContainerIndex]
	if hasMore {
		rows, err := surface.Texts(ctx, c.deps.Driver, c.sel.Sel(c.sel.OtherRows))
		if err != nil || len(rows) == 0 {
			return "", false, err
		}
		text += "\n" + strings.Join(rows, "\n")
	}
	return text, true, nil
}

// expand opens the collapsed filter so dates past the first row render.
func (c *Controller) expand(ctx context.Context) error {
	more, ok, err := surface.Nth(ctx, c.deps.Driver, c.sel.Sel(c.sel.ShowMore), 0)
	if err != nil || !ok || strings.TrimSpace(more.Text) != c.sel.ShowMoreLabel {
		return err
	}
	return c.clickOnce(ctx, more, &c.lastExpand)
}

// clickToggle clicks the monthly or weekly view toggle.
func (c *Controller) clickToggle(ctx context.Context, weekly bool) error {
	el, ok, err := surface.Nth(ctx, c.deps.Driver, c.sel.Buttons(weekly), 0)
	if err != nil || !ok {
		return err
	}
	return c.clickOnce(ctx, el, &c.lastToggle)
}

// clickOnce clicks el unless the previous click tracked by last is younger
// than RetryTicks; a toggle clicked twice before it renders flips back.
func (c *Controller) clickOnce(ctx context.Context, el surface.Element, last *uint64) error {
	if *last != 0 && c.ticks-*last < uint64(c.cfg.RetryTicks) {
		return nil
	}
	if err := c.deps.Driver.Dispatch(ctx, el, surface.Click); err != nil {
		return err
	}
	*last = c.ticks
	return nil
}
