// Package surface defines the element-query contract the crawler uses to read
// and drive the quotes page. Implementations only report what is rendered;
// effects of a dispatched action are observed by later queries.
package surface

import (
	"context"
	"fmt"
)

// Selector addresses a set of elements. When Scope is set, CSS is evaluated
// inside the ScopeIndex-th match of Scope instead of the whole document.
type Selector struct {
	Scope      string `json:"scope,omitempty"`
	ScopeIndex int    `json:"scope_index,omitempty"`
	CSS        string `json:"css"`
}

func (s Selector) String() string {
	if s.Scope == "" {
		return s.CSS
	}
	return fmt.Sprintf("%s[%d] %s", s.Scope, s.ScopeIndex, s.CSS)
}

// Element is one rendered match of a Selector at the time of the query.
type Element struct {
	Selector Selector `json:"selector"`
	Index    int      `json:"index"`
	Text     string   `json:"text"`
}

// ActionKind names a fire-and-forget interaction.
type ActionKind string

const ActionClick ActionKind = "click"

// Action is dispatched against an element. Repeat > 1 asks the driver to
// perform the interaction that many times within one dispatch, stopping early
// if the element stops being rendered.
type Action struct {
	Kind   ActionKind `json:"kind"`
	Repeat int        `json:"repeat,omitempty"`
}

// Click is a single click.
var Click = Action{Kind: ActionClick, Repeat: 1}

// ClickN clicks n times in one dispatch.
func ClickN(n int) Action {
	if n < 1 {
		n = 1
	}
	return Action{Kind: ActionClick, Repeat: n}
}

// Driver queries and drives the rendered page.
type Driver interface {
	Query(ctx context.Context, sel Selector) ([]Element, error)
	Dispatch(ctx context.Context, el Element, action Action) error
}

// Reloader reloads the page the Driver is attached to.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Nth returns the i-th match of sel, or ok=false when fewer are rendered.
func Nth(ctx context.Context, d Driver, sel Selector, i int) (Element, bool, error) {
	els, err := d.Query(ctx, sel)
	if err != nil {
		return Element{}, false, err
	}
	if i < 0 || i >= len(els) {
		return Element{}, false, nil
	}
	return els[i], true, nil
}

// Count returns the number of rendered matches of sel.
func Count(ctx context.Context, d Driver, sel Selector) (int, error) {
	els, err := d.Query(ctx, sel)
	if err != nil {
		return 0, err
	}
	return len(els), nil
}

// ClickNth clicks the i-th match of sel. It reports false when the element is
// not rendered, which callers treat as not-ready.
func ClickNth(ctx context.Context, d Driver, sel Selector, i int, action Action) (bool, error) {
	el, ok, err := Nth(ctx, d, sel, i)
	if err != nil || !ok {
		return false, err
	}
	if err := d.Dispatch(ctx, el, action); err != nil {
		return false, err
	}
	return true, nil
}

// Texts returns the text of every match of sel in order.
func Texts(ctx context.Context, d Driver, sel Selector) ([]string, error) {
	els, err := d.Query(ctx, sel)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(els))
	for i, el := range els {
		out[i] = el.Text
	}
	return out, nil
}
