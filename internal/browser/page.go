package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// TabResolver reports the target id of the quotes tab.
type TabResolver interface {
	TargetID(ctx context.Context) (string, error)
}

// TabResolverFunc adapts a function to TabResolver.
type TabResolverFunc func(ctx context.Context) (string, error)

func (f TabResolverFunc) TargetID(ctx context.Context) (string, error) { return f(ctx) }

// Page reloads and opens the quotes tab through chromedp. Queries and clicks
// go through the lighter evaluation client; Page only handles navigation.
type Page struct {
	cdpURL  string
	url     string
	tabs    TabResolver
	timeout time.Duration

	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	targetID    string
}

// NewPage builds a Page for the browser at cdpURL. url is opened by Open.
func NewPage(cdpURL, url string, tabs TabResolver, timeout time.Duration) *Page {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Page{cdpURL: cdpURL, url: url, tabs: tabs, timeout: timeout}
}

func (p *Page) allocatorLocked() context.Context {
	if p.allocCtx == nil {
		p.allocCtx, p.allocCancel = chromedp.NewRemoteAllocator(context.Background(), p.cdpURL)
	}
	return p.allocCtx
}

// tabLocked returns a chromedp context attached to the current quotes tab.
func (p *Page) tabLocked(ctx context.Context) (context.Context, error) {
	id, err := p.tabs.TargetID(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve quotes tab: %w", err)
	}
	if p.tabCtx != nil && id == p.targetID {
		return p.tabCtx, nil
	}
	if p.tabCancel != nil {
		p.tabCancel()
	}
	p.tabCtx, p.tabCancel = chromedp.NewContext(p.allocatorLocked(), chromedp.WithTargetID(target.ID(id)))
	p.targetID = id
	return p.tabCtx, nil
}

func (p *Page) run(ctx context.Context, tabCtx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(tabCtx, p.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// Reload reloads the quotes tab. It implements surface.Reloader.
func (p *Page) Reload(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tabCtx, err := p.tabLocked(ctx)
	if err != nil {
		return err
	}
	if err := p.run(ctx, tabCtx, chromedp.Reload()); err != nil {
		// The tab may have been replaced; attach afresh next time.
		p.tabCancel()
		p.tabCtx, p.tabCancel, p.targetID = nil, nil, ""
		return fmt.Errorf("reload quotes tab: %w", err)
	}
	slog.Info("quotes tab reloaded", "target_id", p.targetID)
	return nil
}

// Open creates a new tab on the quotes page, for when none is open.
func (p *Page) Open(ctx context.Context) error {
	if p.url == "" {
		return fmt.Errorf("open quotes tab: no url configured")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tabCancel != nil {
		p.tabCancel()
	}
	p.tabCtx, p.tabCancel = chromedp.NewContext(p.allocatorLocked())
	if err := p.run(ctx, p.tabCtx, chromedp.Navigate(p.url)); err != nil {
		p.tabCancel()
		p.tabCtx, p.tabCancel, p.targetID = nil, nil, ""
		return fmt.Errorf("open quotes tab: %w", err)
	}
	if c := chromedp.FromContext(p.tabCtx); c != nil && c.Target != nil {
		p.targetID = string(c.Target.TargetID)
	}
	slog.Info("quotes tab opened", "url", p.url, "target_id", p.targetID)
	return nil
}

// Close releases the chromedp contexts. The tab itself stays open unless
// Open created it.
func (p *Page) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tabCancel != nil {
		p.tabCancel()
	}
	if p.allocCancel != nil {
		p.allocCancel()
	}
	p.tabCtx, p.tabCancel, p.allocCtx, p.allocCancel = nil, nil, nil, nil
}
