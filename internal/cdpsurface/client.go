// Package cdpsurface implements the surface driver over the Chrome DevTools
// Protocol. Every query and dispatch is one Runtime.evaluate on the quotes
// tab; the page answers with a JSON envelope.
package cdpsurface

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/odax_crawler/internal/surface"
)

// transientHints are substrings in error causes that indicate a transient
// failure worth one retry.
var transientHints = []string{
	"target closed",
	"session closed",
	"websocket",
	"connection reset",
	"broken pipe",
	"eof",
	"connection refused",
	"connection closed",
	"not connected",
}

// Client attaches to the first page target whose URL contains the tab
// filter. It is safe for concurrent use; evaluations are serialized.
type Client struct {
	cdpURL      string
	tabFilter   string
	evalTimeout time.Duration

	mu        sync.Mutex
	cdp       *rawCDP
	tab       TabInfo
	sessionID string

	evalMu sync.Mutex
}

type evalEnvelope struct {
	OK           bool            `json:"ok"`
	Data         json.RawMessage `json:"data,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

func NewClient(cdpURL, tabFilter string, evalTimeout time.Duration) *Client {
	if evalTimeout <= 0 {
		evalTimeout = 5 * time.Second
	}
	return &Client{
		cdpURL:      cdpURL,
		tabFilter:   strings.ToLower(strings.TrimSpace(tabFilter)),
		evalTimeout: evalTimeout,
	}
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.cdpURL == "" {
		return newError(CodeCDPUnavailable, "missing CDP URL", nil)
	}

	slog.Info("cdpsurface connect start", "cdp_url", c.cdpURL)
	c.cleanupLocked()

	c.cdp = newRawCDP(c.cdpURL)
	if err := c.cdp.connect(ctx); err != nil {
		c.cdp = nil
		return newError(CodeCDPUnavailable, "connect to CDP failed", err)
	}
	if err := c.findTabLocked(ctx); err != nil {
		c.cleanupLocked()
		return err
	}

	slog.Info("cdpsurface connect ok", "target_id", c.tab.TargetID, "url", c.tab.URL)
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupLocked()
	return nil
}

func (c *Client) cleanupLocked() {
	if c.cdp != nil {
		if c.sessionID != "" {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			if err := c.cdp.detachFromTarget(ctx, c.sessionID); err != nil {
				slog.Debug("detach cleanup failed", "session_id", c.sessionID, "error", err)
			}
			cancel()
		}
		c.cdp.close()
		c.cdp = nil
	}
	c.sessionID = ""
	c.tab = TabInfo{}
}

// Tab returns the attached tab, resolving it first if needed.
func (c *Client) Tab(ctx context.Context) (TabInfo, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return TabInfo{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tab, nil
}

// TargetID reports the target id of the attached tab.
func (c *Client) TargetID(ctx context.Context) (string, error) {
	tab, err := c.Tab(ctx)
	if err != nil {
		return "", err
	}
	return tab.TargetID, nil
}

// findTabLocked picks the quotes tab among the open page targets.
func (c *Client) findTabLocked(ctx context.Context) error {
	if c.cdp == nil {
		return newError(CodeCDPUnavailable, "CDP client not connected", nil)
	}
	targets, err := c.cdp.listTargets(ctx)
	if err != nil {
		return newError(CodeCDPUnavailable, "failed to list targets", err)
	}
	for _, t := range targets {
		if t.Type != "page" {
			continue
		}
		if c.tabFilter != "" && !strings.Contains(strings.ToLower(t.URL), c.tabFilter) {
			continue
		}
		if c.tab.TargetID != string(t.TargetID) {
			c.sessionID = ""
		}
		c.tab = TabInfo{TargetID: string(t.TargetID), URL: t.URL, Title: t.Title}
		return nil
	}
	c.tab = TabInfo{}
	c.sessionID = ""
	return newError(CodeTabNotFound, "no page target matches "+c.tabFilter, nil)
}

// Query implements surface.Driver.
func (c *Client) Query(ctx context.Context, sel surface.Selector) ([]surface.Element, error) {
	var texts []string
	if err := c.eval(ctx, jsQuery(sel), &texts); err != nil {
		return nil, err
	}
	out := make([]surface.Element, len(texts))
	for i, t := range texts {
		out[i] = surface.Element{Selector: sel, Index: i, Text: t}
	}
	return out, nil
}

// Dispatch implements surface.Driver. The element is looked up again by
// selector and index, so a re-render between query and dispatch is harmless.
func (c *Client) Dispatch(ctx context.Context, el surface.Element, action surface.Action) error {
	if action.Kind != surface.ActionClick {
		return newError(CodeValidation, "unsupported action "+string(action.Kind), nil)
	}
	var out struct {
		Clicks int `json:"clicks"`
	}
	if err := c.eval(ctx, jsClick(el, max(action.Repeat, 1)), &out); err != nil {
		return err
	}
	slog.Debug("cdpsurface dispatch", "selector", el.Selector.String(), "index", el.Index, "clicks", out.Clicks)
	return nil
}

// eval runs js once and retries once after recovering from a transient
// failure.
func (c *Client) eval(ctx context.Context, js string, out any) error {
	c.evalMu.Lock()
	defer c.evalMu.Unlock()

	err := c.evalOnce(ctx, js, out)
	if err == nil || !c.shouldRetry(err) {
		return err
	}

	slog.Warn("cdpsurface eval retry after transient failure", "error", err)
	if asCode(err, CodeCDPUnavailable) {
		if recErr := c.reconnect(ctx); recErr != nil {
			slog.Error("cdpsurface reconnect failed during retry", "error", recErr)
			return recErr
		}
	} else {
		c.mu.Lock()
		syncErr := c.findTabLocked(ctx)
		c.mu.Unlock()
		if syncErr != nil {
			slog.Warn("cdpsurface tab refresh failed during retry", "error", syncErr)
		}
	}
	return c.evalOnce(ctx, js, out)
}

func (c *Client) evalOnce(ctx context.Context, js string, out any) error {
	if err := c.ensureConnected(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	cdp := c.cdp
	c.mu.Unlock()
	if cdp == nil {
		return newError(CodeCDPUnavailable, "CDP client not connected", nil)
	}

	sessionID, err := c.ensureSession(ctx, cdp)
	if err != nil {
		return err
	}

	evalCtx, evalCancel := context.WithTimeout(ctx, c.evalTimeout)
	defer evalCancel()

	raw, err := cdp.evaluate(evalCtx, sessionID, js)
	if err != nil {
		slog.Warn("cdpsurface eval failed", "target_id", c.tab.TargetID, "error", err)
		c.mu.Lock()
		c.sessionID = ""
		c.mu.Unlock()

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(evalCtx.Err(), context.DeadlineExceeded) {
			return newError(CodeEvalTimeout, "evaluation timed out", err)
		}
		return newError(CodeEvalFailure, "evaluation failed", err)
	}
	return decodeEnvelope(raw, out)
}

func decodeEnvelope(raw string, out any) error {
	var env evalEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return newError(CodeEvalFailure, "invalid evaluation envelope", err)
	}
	if !env.OK {
		code := env.ErrorCode
		if code == "" {
			code = CodeEvalFailure
		}
		return newError(code, env.ErrorMessage, nil)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return newError(CodeEvalFailure, "invalid evaluation data", err)
	}
	return nil
}

// ensureSession returns the session attached to the quotes tab.
func (c *Client) ensureSession(ctx context.Context, cdp *rawCDP) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sessionID != "" {
		return c.sessionID, nil
	}
	if c.tab.TargetID == "" {
		if err := c.findTabLocked(ctx); err != nil {
			return "", err
		}
	}
	sid, err := cdp.attachToTarget(ctx, c.tab.TargetID)
	if err != nil {
		return "", newError(CodeCDPUnavailable, "attach to target failed", err)
	}
	c.sessionID = sid
	slog.Debug("cdpsurface session attached", "target_id", c.tab.TargetID, "session_id", sid)
	return sid, nil
}

func (c *Client) reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) ensureConnected(ctx context.Context) error {
	c.mu.Lock()
	connected := c.cdp != nil
	c.mu.Unlock()
	if connected {
		return nil
	}
	return c.reconnect(ctx)
}

func (c *Client) shouldRetry(err error) bool {
	var coded *CodedError
	if !errors.As(err, &coded) {
		return false
	}

	switch coded.Code {
	case CodeCDPUnavailable:
		return true
	case CodeEvalFailure:
		if coded.Cause == nil {
			return false
		}
		cause := strings.ToLower(coded.Cause.Error())
		for _, hint := range transientHints {
			if strings.Contains(cause, hint) {
				return true
			}
		}
	}
	return false
}

func asCode(err error, code string) bool {
	var coded *CodedError
	if !errors.As(err, &coded) {
		return false
	}
	return coded.Code == code
}
