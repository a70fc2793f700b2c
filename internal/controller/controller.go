// Package controller drives the quotes page through every expiration of the
// DAX options chain. A single cooperative loop calls Tick; each tick runs one
// state handler, which either stays (the page has not rendered the awaited
// change yet) or moves the machine along the transition table.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/odax_crawler/internal/assemble"
	"github.com/dgnsrekt/odax_crawler/internal/chain"
	"github.com/dgnsrekt/odax_crawler/internal/events"
	"github.com/dgnsrekt/odax_crawler/internal/export"
	"github.com/dgnsrekt/odax_crawler/internal/extract"
	"github.com/dgnsrekt/odax_crawler/internal/pager"
	"github.com/dgnsrekt/odax_crawler/internal/recordlog"
	"github.com/dgnsrekt/odax_crawler/internal/schedule"
	"github.com/dgnsrekt/odax_crawler/internal/store"
	"github.com/dgnsrekt/odax_crawler/internal/surface"
)

var (
	// ErrCloseRequested ends Run after the close mode was observed.
	ErrCloseRequested = errors.New("close requested")
	// ErrReentrantTick is returned when Tick is called while a tick runs.
	ErrReentrantTick = errors.New("tick already running")
	// ErrAwaitTimeout aborts a cycle whose awaited render never showed up.
	ErrAwaitTimeout = errors.New("await limit exceeded")
	// ErrIllegalTransition reports a move missing from the transition table.
	ErrIllegalTransition = errors.New("illegal state transition")
)

// Config tunes the state machine. Durations are counted in ticks.
type Config struct {
	Selectors    surface.Selectors
	Pager        pager.Config
	Format       assemble.Format
	Location     *time.Location
	EndIndices   []int
	WarmStart    bool
	TickInterval time.Duration
	// AwaitLimit bounds the ticks any polling state may stay put.
	AwaitLimit      int
	OpenWaitTicks   int
	ReloadWaitTicks int
	// RetryTicks spaces repeated clicks on toggles and the show-more button.
	RetryTicks int
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = 500 * time.Millisecond
	}
	if c.AwaitLimit <= 0 {
		c.AwaitLimit = 240
	}
	if c.OpenWaitTicks < 0 {
		c.OpenWaitTicks = 0
	}
	if c.ReloadWaitTicks < 0 {
		c.ReloadWaitTicks = 0
	}
	if c.RetryTicks <= 0 {
		c.RetryTicks = 4
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	return c
}

// ModeStore is the cross-instance state the controller reads and writes.
type ModeStore interface {
	Mode(ctx context.Context) (store.Mode, error)
	Expirations(ctx context.Context) (string, bool, error)
	SaveExpirations(ctx context.Context, raw string) error
}

// RecordWriter receives every extracted strike row.
type RecordWriter interface {
	Write(rec recordlog.Record) error
}

// Deps are the collaborators of a Controller. Only Driver is required.
type Deps struct {
	Driver   surface.Driver
	Reloader surface.Reloader
	Store    ModeStore
	Sink     export.Sink
	Gate     schedule.Gate
	Journal  RecordWriter
	Events   events.Publisher
	Now      func() time.Time
	NewID    func() string
}

// Controller is the crawl state machine. Its fields are owned by the tick
// loop; Status is safe to call from other goroutines.
type Controller struct {
	cfg       Config
	deps      Deps
	sel       surface.Selectors
	pager     *pager.Pager
	extractor *extract.Extractor
	asm       *assemble.Assembler

	running atomic.Bool

	state      State
	resume     State
	waitLeft   int
	stateTicks int
	ticks      uint64
	moved      bool

	cycleID    string
	discovery  string
	warm       bool
	warmTried  bool
	list       chain.ExpirationList
	index      int
	weekly     bool
	walkDone   bool
	records    []chain.StrikeRecord
	gated      bool
	lastToggle uint64
	lastExpand uint64

	discoveries int
	done        int
	aborted     int
	cycles      int
	lastExport  *ExportInfo
	lastFault   *Fault

	mu     sync.RWMutex
	status Status
}

// New builds a controller in AwaitSession.
func New(cfg Config, deps Deps) *Controller {
	cfg = cfg.withDefaults()
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.Gate == nil {
		deps.Gate = schedule.Always{}
	}
	c := &Controller{
		cfg:       cfg,
		deps:      deps,
		sel:       cfg.Selectors,
		pager:     pager.New(deps.Driver, cfg.Selectors, cfg.Pager),
		extractor: extract.New(deps.Driver, cfg.Selectors),
		asm:       assemble.New(cfg.Format, assemble.WithClock(deps.Now), assemble.WithLocation(cfg.Location)),
		state:     AwaitSession,
	}
	c.publishStatus()
	return c
}

// State returns the current state. It must only be called from the loop.
func (c *Controller) State() State { return c.state }

// Run ticks until ctx is cancelled or a close request terminates the
// machine, in which case it returns ErrCloseRequested.
func (c *Controller) Run(ctx context.Context) error {
	t := time.NewTicker(c.cfg.TickInterval)
	defer t.Stop()

	slog.Info("controller started", "tick", c.cfg.TickInterval, "format", c.asm.Format(), "await_limit", c.cfg.AwaitLimit)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			err := c.Tick(ctx)
			if errors.Is(err, ErrCloseRequested) {
				slog.Info("controller terminated", "cycles", c.cycles, "products", c.done)
				return err
			}
			if err != nil {
				slog.Warn("tick failed", "state", c.state, "error", err)
			}
		}
	}
}

// Tick runs the handler of the current state once.
func (c *Controller) Tick(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrReentrantTick
	}
	defer c.running.Store(false)
	defer c.publishStatus()

	if c.state == Terminated {
		return ErrCloseRequested
	}
	c.ticks++
	c.moved = false

	err := c.handle(ctx)
	switch {
	case errors.Is(err, ErrIllegalTransition):
		slog.Error("state machine fault", "state", c.state, "error", err)
		c.restart(ctx, err)
		return nil
	case err != nil:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Debug("tick not ready", "state", c.state, "error", err)
	}

	if c.state == Terminated {
		return ErrCloseRequested
	}
	if !c.moved {
		c.stateTicks++
		if c.state.awaits() && c.stateTicks > c.cfg.AwaitLimit {
			c.restart(ctx, fmt.Errorf("%w: %s after %d ticks", ErrAwaitTimeout, c.state, c.stateTicks))
		}
	}
	return nil
}

func (c *Controller) handle(ctx context.Context) error {
	switch c.state {
	case AwaitSession:
		return c.awaitSession(ctx)
	case OpenQuotes:
		return c.openQuotes(ctx)
	case DiscoverMonthly:
		return c.discoverMonthly(ctx)
	case SaveMonthly:
		return c.saveMonthly(ctx)
	case AwaitWeeklyToggle:
		return c.awaitWeeklyToggle(ctx)
	case DiscoverWeekly:
		return c.discoverWeekly(ctx)
	case ParseList:
		return c.parseList(ctx)
	case AwaitFirstMonthly:
		return c.awaitFirstMonthly(ctx)
	case SelectExpiration:
		return c.selectExpiration(ctx)
	case AwaitSelected:
		return c.awaitSelected(ctx)
	case SeekStrikeEdge:
		return c.seekStrikeEdge(ctx)
	case AwaitStrikeEdge:
		return c.awaitStrikeEdge(ctx)
	case PageStrikes:
		return c.pageStrikes(ctx)
	case AdvanceOrFinish:
		return c.advanceOrFinish(ctx)
	case AwaitNextReady:
		return c.awaitNextReady(ctx)
	case AssembleTable:
		return c.assembleTable(ctx)
	case RewindStrikes:
		return c.rewindStrikes(ctx)
	case NextOrExit:
		return c.nextOrExit(ctx)
	case Export:
		return c.export(ctx)
	case Wait:
		return c.wait()
	}
	return fmt.Errorf("%w: no handler for %s", ErrIllegalTransition, c.state)
}

// goTo moves the machine, validating the move against the table.
func (c *Controller) goTo(to State) error {
	from := c.state
	if !Allowed(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	c.state = to
	c.stateTicks = 0
	c.moved = true
	c.lastToggle = 0
	c.lastExpand = 0

	slog.Debug("state transition", "from", from, "to", to, "cycle_id", c.cycleID, "index", c.index)
	events.PublishJSON(c.deps.Events, events.FeedState, stateEvent{
		From:    from.String(),
		To:      to.String(),
		CycleID: c.cycleID,
		Index:   c.index,
		At:      c.deps.Now(),
	})
	return nil
}

// sleep parks the machine in Wait for n ticks before moving to resume.
func (c *Controller) sleep(n int, resume State) error {
	if !Allowed(c.state, resume) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, c.state, resume)
	}
	c.resume = resume
	c.waitLeft = n
	return c.goTo(Wait)
}

func (c *Controller) wait() error {
	if c.waitLeft > 0 {
		c.waitLeft--
		return nil
	}
	return c.goTo(c.resume)
}

// restart aborts the cycle, reloads the page and starts over once the page
// had time to load.
func (c *Controller) restart(ctx context.Context, cause error) {
	c.recordFault(cause)
	slog.Warn("cycle aborted, reloading page", "state", c.state, "cycle_id", c.cycleID, "index", c.index, "error", cause)
	if c.deps.Reloader != nil {
		if err := c.deps.Reloader.Reload(ctx); err != nil {
			slog.Warn("page reload failed", "error", err)
		}
	}
	if err := c.sleep(c.cfg.ReloadWaitTicks, AwaitSession); err != nil {
		slog.Error("restart failed", "error", err)
	}
}

func (c *Controller) recordFault(err error) {
	c.lastFault = &Fault{State: c.state.String(), Error: err.Error(), At: c.deps.Now()}
	events.PublishJSON(c.deps.Events, events.FeedFault, c.lastFault)
}

// beginCycle resets the per-cycle context.
func (c *Controller) beginCycle() {
	c.cycleID = c.deps.NewID()
	c.discovery = ""
	c.warm = false
	c.warmTried = false
	c.list = chain.ExpirationList{}
	c.index = 0
	c.weekly = false
	c.records = nil
}

// beginProduct resets the per-expiration walk.
func (c *Controller) beginProduct() {
	c.pager.Reset()
	c.records = nil
	c.walkDone = false
}

func (c *Controller) publishStatus() {
	st := c.snapshot()
	c.mu.Lock()
	c.status = st
	c.mu.Unlock()
}

// Status returns the snapshot taken after the last tick.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

type stateEvent struct {
	From    string    `json:"from"`
	To      string    `json:"to"`
	CycleID string    `json:"cycle_id,omitempty"`
	Index   int       `json:"index"`
	At      time.Time `json:"at"`
}
