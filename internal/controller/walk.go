package controller

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/dgnsrekt/odax_crawler/internal/assemble"
	"github.com/dgnsrekt/odax_crawler/internal/events"
	"github.com/dgnsrekt/odax_crawler/internal/extract"
	"github.com/dgnsrekt/odax_crawler/internal/pager"
	"github.com/dgnsrekt/odax_crawler/internal/recordlog"
	"github.com/dgnsrekt/odax_crawler/internal/store"
	"github.com/dgnsrekt/odax_crawler/internal/surface"
)

func (c *Controller) selectExpiration(ctx context.Context) error {
	entry, ok := c.list.At(c.index)
	switch {
	case !ok, entry.IsListEnd():
		return c.goTo(Export)
	case entry.IsWeeklyStart():
		ok, err := surface.ClickNth(ctx, c.deps.Driver, c.sel.Buttons(true), 0, surface.Click)
		if err != nil || !ok {
			return err
		}
		c.weekly = true
		c.index++
		return c.goTo(SelectExpiration)
	}

	// Buttons of the other view may still be rendered right after a toggle.
	active, err := surface.Count(ctx, c.deps.Driver, c.sel.Selected(c.weekly))
	if err != nil || active == 0 {
		return err
	}
	btn, ok, err := surface.Nth(ctx, c.deps.Driver, c.sel.Buttons(c.weekly), c.list.ButtonIndex(c.index))
	if err != nil {
		return err
	}
	if !ok {
		return c.expand(ctx)
	}
	if err := c.deps.Driver.Dispatch(ctx, btn, surface.Click); err != nil {
		return err
	}
	return c.goTo(AwaitSelected)
}

func (c *Controller) awaitSelected(ctx context.Context) error {
	entry, _ := c.list.At(c.index)
	el, ok, err := surface.Nth(ctx, c.deps.Driver, c.sel.Selected(c.weekly), c.sel.SelectedIndex)
	if err != nil || !ok || strings.TrimSpace(el.Text) != entry.Date {
		return err
	}
	rows, err := surface.Count(ctx, c.deps.Driver, c.sel.Sel(c.sel.StrikeRows))
	if err != nil || rows == 0 {
		return err
	}
	c.beginProduct()
	return c.goTo(SeekStrikeEdge)
}

func (c *Controller) seekStrikeEdge(ctx context.Context) error {
	ok, err := c.pager.Begin(ctx)
	if err != nil || !ok {
		return err
	}
	return c.goTo(AwaitStrikeEdge)
}

func (c *Controller) awaitStrikeEdge(ctx context.Context) error {
	ok, err := c.pager.EdgeReached(ctx)
	if err != nil || !ok {
		return err
	}
	return c.goTo(PageStrikes)
}

func (c *Controller) pageStrikes(ctx context.Context) error {
	done, err := c.pager.Walk(ctx, func(i int, strike string) error {
		rec, err := c.extractor.Row(ctx, i, strike)
		if err != nil {
			return err
		}
		c.records = append(c.records, rec)
		c.journal(rec.Strike.Text, recordlog.Record{Strike: rec})
		return nil
	})
	if err != nil {
		var mis *extract.MisalignmentError
		if errors.As(err, &mis) {
			return c.abortProduct(err, "row", mis.Row, "call_cells", mis.CallCells, "put_cells", mis.PutCells)
		}
		return err
	}
	c.walkDone = done
	return c.goTo(AdvanceOrFinish)
}

func (c *Controller) advanceOrFinish(ctx context.Context) error {
	if c.walkDone {
		return c.goTo(AssembleTable)
	}
	if err := c.pager.RequestPage(ctx); err != nil {
		if errors.Is(err, pager.ErrNoMovement) {
			return c.abortProduct(err, "visited", c.pager.Visited())
		}
		return err
	}
	return c.goTo(AwaitNextReady)
}

func (c *Controller) awaitNextReady(ctx context.Context) error {
	ok, err := c.pager.PageReady(ctx)
	if err != nil || !ok {
		return err
	}
	return c.goTo(PageStrikes)
}

func (c *Controller) assembleTable(ctx context.Context) error {
	call, put, ok, err := assemble.ReadTotals(ctx, c.deps.Driver, c.sel)
	if err != nil || !ok {
		return err
	}
	p, err := c.asm.Product(c.index, c.records, call, put)
	if err == nil {
		err = c.asm.Append(p)
	}
	if err != nil {
		return c.abortProduct(err)
	}
	c.done++
	slog.Info("product assembled",
		"cycle_id", c.cycleID,
		"index", p.Index,
		"expiration", p.Expiration.Date,
		"contract_type", p.ContractType(),
		"strikes", len(p.Strikes),
		"pages", c.pager.Pages(),
		"top_strike", c.pager.Sentinel().String(),
	)
	events.PublishJSON(c.deps.Events, events.FeedProduct, productEvent{
		CycleID:      c.cycleID,
		Index:        p.Index,
		Expiration:   p.Expiration.Date,
		ContractType: p.ContractType(),
		Strikes:      len(p.Strikes),
		CallTotal:    p.CallTotal.Raw,
		PutTotal:     p.PutTotal.Raw,
	})
	return c.goTo(RewindStrikes)
}

// abortProduct drops the current expiration from the document and moves on.
func (c *Controller) abortProduct(cause error, attrs ...any) error {
	c.aborted++
	c.recordFault(cause)
	entry, _ := c.list.At(c.index)
	args := append([]any{"cycle_id", c.cycleID, "index", c.index, "expiration", entry.Date, "strikes", len(c.records), "error", cause}, attrs...)
	slog.Warn("product aborted", args...)
	c.records = nil
	return c.goTo(RewindStrikes)
}

func (c *Controller) rewindStrikes(ctx context.Context) error {
	if err := c.pager.Rewind(ctx); err != nil {
		return err
	}
	return c.goTo(NextOrExit)
}

// nextOrExit is the cross-instance checkpoint, polled once per product.
func (c *Controller) nextOrExit(ctx context.Context) error {
	if c.deps.Store != nil {
		mode, err := c.deps.Store.Mode(ctx)
		switch {
		case err != nil:
			slog.Warn("mode check failed", "error", err)
		case mode == store.ModeClose:
			slog.Info("close requested, terminating", "cycle_id", c.cycleID, "index", c.index, "pending", c.asm.Pending())
			return c.goTo(Terminated)
		}
	}
	c.index++
	return c.goTo(SelectExpiration)
}

func (c *Controller) export(ctx context.Context) error {
	info := &ExportInfo{CycleID: c.cycleID, At: c.deps.Now()}
	doc, err := c.asm.Flush()
	if err == nil && c.deps.Sink != nil {
		err = c.deps.Sink.Export(ctx, doc)
	}
	info.Name = doc.Name
	info.Products = doc.Products
	info.Bytes = len(doc.Body)
	if err != nil {
		info.Error = err.Error()
		c.recordFault(err)
		slog.Error("cycle export failed", "cycle_id", c.cycleID, "products", doc.Products, "error", err)
	} else {
		slog.Info("cycle exported", "cycle_id", c.cycleID, "name", doc.Name, "products", doc.Products, "bytes", len(doc.Body))
	}
	c.lastExport = info
	c.cycles++
	events.PublishJSON(c.deps.Events, events.FeedExport, info)

	c.index = 0
	if c.deps.Reloader != nil {
		if err := c.deps.Reloader.Reload(ctx); err != nil {
			slog.Warn("page reload failed", "error", err)
		}
	}
	return c.sleep(c.cfg.ReloadWaitTicks, AwaitSession)
}

// journal hands a strike row to the record journal, if one is configured.
func (c *Controller) journal(strike string, rec recordlog.Record) {
	if c.deps.Journal == nil {
		return
	}
	entry, _ := c.list.At(c.index)
	rec.CycleID = c.cycleID
	rec.CapturedAt = c.deps.Now()
	rec.Expiration = entry.Date
	rec.ContractType = entry.ContractType()
	rec.Index = c.list.HeaderIndex(c.index)
	if err := c.deps.Journal.Write(rec); err != nil {
		slog.Warn("strike record dropped", "strike", strike, "error", err)
	}
}

type productEvent struct {
	CycleID      string `json:"cycle_id"`
	Index        int    `json:"index"`
	Expiration   string `json:"expiration"`
	ContractType string `json:"contract_type"`
	Strikes      int    `json:"strikes"`
	CallTotal    string `json:"call_total"`
	PutTotal     string `json:"put_total"`
}
