package cdpsurface

import (
	"strings"
	"testing"

	"github.com/dgnsrekt/odax_crawler/internal/surface"
)

func TestJSString(t *testing.T) {
	if got := jsString(`[id="tabsTab-1.1"]`); got != `"[id=\"tabsTab-1.1\"]"` {
		t.Fatalf("jsString = %s", got)
	}
}

func TestQueryScopesIntoSideTable(t *testing.T) {
	sel := surface.DefaultSelectors().Cells(1, 3)
	js := jsQuery(sel)
	for _, want := range []string{
		`var scope = ".react-table";`,
		`document.querySelectorAll(scope)[1]`,
		`"tbody \u003e tr:nth-child(4) \u003e td"`,
		"(function(){\ntry {",
	} {
		if !strings.Contains(js, want) {
			t.Fatalf("jsQuery() missing %q:\n%s", want, js)
		}
	}
}

func TestQueryWithoutScopeUsesDocument(t *testing.T) {
	js := jsQuery(surface.Selector{CSS: ".a"})
	if !strings.Contains(js, `var scope = "";`) {
		t.Fatalf("jsQuery() = %s", js)
	}
}

func TestClickRepeatsAndStopsWhenDetached(t *testing.T) {
	js := jsClick(surface.Element{Selector: surface.Selector{CSS: ".arrow"}, Index: 0}, 400)
	for _, want := range []string{"n < 400", "target.isConnected", "matches()[0]", CodeElementNotFound} {
		if !strings.Contains(js, want) {
			t.Fatalf("jsClick() missing %q:\n%s", want, js)
		}
	}
}
