package browser

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestReloadReportsUnresolvedTab(t *testing.T) {
	missing := errors.New("no page target matches eurex.com")
	p := NewPage("http://127.0.0.1:9222", "", TabResolverFunc(func(context.Context) (string, error) {
		return "", missing
	}), 0)
	defer p.Close()

	err := p.Reload(context.Background())
	if !errors.Is(err, missing) {
		t.Fatalf("Reload() error = %v; want %v", err, missing)
	}
	if !strings.Contains(err.Error(), "resolve quotes tab") {
		t.Fatalf("Reload() error = %q", err)
	}
	if p.allocCtx != nil {
		t.Fatal("Reload() allocated a chromedp context before resolving the tab")
	}
}

func TestOpenRequiresURL(t *testing.T) {
	p := NewPage("http://127.0.0.1:9222", "", nil, 0)
	if err := p.Open(context.Background()); err == nil {
		t.Fatal("Open() error = nil; want missing url error")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	p := NewPage("http://127.0.0.1:9222", "", nil, 0)
	p.Close()
	p.Close()
}
