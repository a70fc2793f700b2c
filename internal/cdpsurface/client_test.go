package cdpsurface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/dgnsrekt/odax_crawler/internal/surface"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func withDefaultHTTPClient(t *testing.T, transport http.RoundTripper) {
	t.Helper()
	origClient := http.DefaultClient
	t.Cleanup(func() {
		http.DefaultClient = origClient
	})
	http.DefaultClient = &http.Client{
		Transport: transport,
	}
}

const quotesURL = "https://www.eurex.com/ex-en/markets/idx/dax/DAX-Options-139884"

// fakeBrowser serves the DevTools HTTP endpoints and answers evaluations
// with eval(expression).
func fakeBrowser(t *testing.T, eval func(expr string) string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/json/version", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"webSocketDebuggerUrl": "ws://" + r.Host + "/devtools/browser"})
	})
	mux.HandleFunc("/json/list", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]string{
			{"id": "blank", "type": "page", "url": "about:blank"},
			{"id": "worker", "type": "service_worker", "url": quotesURL},
			{"id": "quotes", "type": "page", "url": quotesURL, "title": "DAX Options"},
		})
	})
	mux.HandleFunc("/devtools/browser", func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			data, err := wsutil.ReadClientText(conn)
			if err != nil {
				return
			}
			var req struct {
				ID     int64           `json:"id"`
				Method string          `json:"method"`
				Params json.RawMessage `json:"params"`
			}
			if err := json.Unmarshal(data, &req); err != nil {
				return
			}
			var result any = map[string]any{}
			switch req.Method {
			case "Target.attachToTarget":
				result = map[string]string{"sessionId": "session-1"}
			case "Runtime.evaluate":
				var p struct {
					Expression string `json:"expression"`
				}
				_ = json.Unmarshal(req.Params, &p)
				result = map[string]any{"result": map[string]any{"type": "string", "value": eval(p.Expression)}}
			}
			resp, _ := json.Marshal(map[string]any{"id": req.ID, "result": result})
			if err := wsutil.WriteServerText(conn, resp); err != nil {
				return
			}
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestQueryAndDispatchOverCDP(t *testing.T) {
	var (
		mu   sync.Mutex
		seen string
	)
	last := func() string {
		mu.Lock()
		defer mu.Unlock()
		return seen
	}
	srv := fakeBrowser(t, func(expr string) string {
		mu.Lock()
		seen = expr
		mu.Unlock()
		if strings.Contains(expr, "target.click()") {
			return `{"ok":true,"data":{"clicks":3}}`
		}
		return `{"ok":true,"data":["19/12/2025","16/01/2026"]}`
	})

	c := NewClient(srv.URL, "eurex.com", 2*time.Second)
	ctx := context.Background()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	tab, err := c.Tab(ctx)
	if err != nil {
		t.Fatalf("Tab() error = %v", err)
	}
	if tab.TargetID != "quotes" {
		t.Fatalf("Tab().TargetID = %q; want quotes", tab.TargetID)
	}

	sel := surface.Selector{CSS: "._filterButton_15sg6_42._monthly_15sg6_63"}
	els, err := c.Query(ctx, sel)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(els) != 2 || els[1].Text != "16/01/2026" || els[1].Index != 1 || els[1].Selector != sel {
		t.Fatalf("Query() = %+v", els)
	}
	if !strings.Contains(last(), jsString(sel.CSS)) {
		t.Fatalf("query expression does not carry the selector: %s", last())
	}

	if err := c.Dispatch(ctx, els[1], surface.ClickN(3)); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if js := last(); !strings.Contains(js, "n < 3") || !strings.Contains(js, "matches()[1]") {
		t.Fatalf("click expression = %s", js)
	}
}

func TestDispatchReportsMissingElement(t *testing.T) {
	srv := fakeBrowser(t, func(string) string {
		return `{"ok":false,"error_code":"ELEMENT_NOT_FOUND","error_message":"no element at 4"}`
	})
	c := NewClient(srv.URL, "eurex.com", time.Second)
	defer c.Close()

	err := c.Dispatch(context.Background(), surface.Element{Selector: surface.Selector{CSS: ".x"}, Index: 4}, surface.Click)
	var coded *CodedError
	if !errors.As(err, &coded) || coded.Code != CodeElementNotFound {
		t.Fatalf("Dispatch() error = %v; want %s", err, CodeElementNotFound)
	}
}

func TestDispatchRejectsUnknownAction(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "", time.Second)
	err := c.Dispatch(context.Background(), surface.Element{}, surface.Action{Kind: "hover"})
	var coded *CodedError
	if !errors.As(err, &coded) || coded.Code != CodeValidation {
		t.Fatalf("Dispatch() error = %v; want %s", err, CodeValidation)
	}
}

func TestFindTabWrapsListTargetsError(t *testing.T) {
	withDefaultHTTPClient(t, roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path == "/json/list" {
			return &http.Response{
				StatusCode: http.StatusInternalServerError,
				Body:       io.NopCloser(strings.NewReader(`oops`)),
			}, nil
		}
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader(``))}, nil
	}))

	c := &Client{cdp: newRawCDP("http://example.com")}
	err := c.findTabLocked(context.Background())

	var codedErr *CodedError
	if !errors.As(err, &codedErr) {
		t.Fatalf("findTabLocked() = %T; want *CodedError", err)
	}
	if codedErr.Code != CodeCDPUnavailable {
		t.Fatalf("error code = %s; want %s", codedErr.Code, CodeCDPUnavailable)
	}
	if !strings.Contains(codedErr.Message, "failed to list targets") {
		t.Fatalf("error message = %q; want to contain %q", codedErr.Message, "failed to list targets")
	}
}

func TestFindTabWithoutMatchingPage(t *testing.T) {
	withDefaultHTTPClient(t, roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`[{"id":"a","type":"page","url":"https://example.com/"}]`)),
		}, nil
	}))

	c := &Client{cdp: newRawCDP("http://example.com"), tabFilter: "eurex.com", sessionID: "stale"}
	err := c.findTabLocked(context.Background())

	var codedErr *CodedError
	if !errors.As(err, &codedErr) || codedErr.Code != CodeTabNotFound {
		t.Fatalf("findTabLocked() = %v; want %s", err, CodeTabNotFound)
	}
	if c.sessionID != "" {
		t.Fatalf("sessionID = %q; want cleared", c.sessionID)
	}
}

func TestShouldRetry(t *testing.T) {
	c := &Client{}
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"cdp unavailable", newError(CodeCDPUnavailable, "connect", nil), true},
		{"transient eval", newError(CodeEvalFailure, "evaluation failed", errors.New("rawcdp: connection closed")), true},
		{"script error", newError(CodeEvalFailure, "evaluation failed", errors.New("TypeError: x is null")), false},
		{"missing element", newError(CodeElementNotFound, "no element", nil), false},
		{"timeout", newError(CodeEvalTimeout, "evaluation timed out", context.DeadlineExceeded), false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.shouldRetry(tt.err); got != tt.want {
				t.Fatalf("shouldRetry(%v) = %v; want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDecodeEnvelope(t *testing.T) {
	var out []string
	if err := decodeEnvelope(`{"ok":true,"data":["a"]}`, &out); err != nil || len(out) != 1 {
		t.Fatalf("decodeEnvelope(ok) = %v, %v", out, err)
	}

	err := decodeEnvelope(`{"ok":false,"error_message":"boom"}`, nil)
	var coded *CodedError
	if !errors.As(err, &coded) || coded.Code != CodeEvalFailure || coded.Message != "boom" {
		t.Fatalf("decodeEnvelope(failed) = %v", err)
	}

	if err := decodeEnvelope(`not json`, nil); err == nil {
		t.Fatal("decodeEnvelope(garbage) = nil; want error")
	}
}

func TestCleanupLockedLogsDetachFailure(t *testing.T) {
	var buf bytes.Buffer
	oldLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() {
		slog.SetDefault(oldLogger)
	})

	c := &Client{cdp: &rawCDP{}, sessionID: "session-1"}
	c.cleanupLocked()

	if !strings.Contains(buf.String(), "detach cleanup failed") {
		t.Fatalf("expected detach cleanup debug log, got %q", buf.String())
	}
	if c.cdp != nil || c.sessionID != "" {
		t.Fatalf("cleanupLocked() left cdp=%v session=%q", c.cdp, c.sessionID)
	}
}
