package assemble

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/dgnsrekt/odax_crawler/internal/chain"
)

// htmlRenderer writes a self-contained viewer: a sticky header listing every
// expiration with a put/call toggle, then one content block per product and
// side. Every value needed to re-import the document is carried in data
// attributes or cells.
type htmlRenderer struct{}

type htmlSide struct {
	Side     string
	Product  chain.ProductTable
	Totals   chain.SideTotals
	Rows     []htmlRow
	TypeAttr string
}

type htmlRow struct {
	Strike string
	Quote  chain.Quote
}

type htmlPage struct {
	Monthly []string
	Weekly  []string
	Columns []string
	Body    template.HTML
}

var columns = []string{"strike", "price", "volume", "bid", "ask", "time", "date", "open", "high", "low", "settle", "OpenInt."}

var productTmpl = template.Must(template.New("product").Parse(`<div class="content" data-side="{{.Side}}" data-expiration="{{.Product.Expiration.Date}}" data-short="{{.Product.Expiration.Short}}" data-kind="{{.Product.Expiration.Kind}}" data-index="{{.Product.Index}}" data-trade-date="{{.Product.TradeDate}}" data-trade-time="{{.Product.TradeTime}}">
<table type="{{.TypeAttr}}" data-volume="{{.Totals.Volume}}" data-open-interest="{{.Totals.OpenInterest}}" data-totals="{{.Totals.Raw}}">
{{- range .Rows}}
<tr data-strike="{{.Strike}}">
  <td>{{.Strike}}</td>
  <td>{{.Quote.Price}}</td>
  <td>{{.Quote.Volume}}</td>
  <td>{{.Quote.Bid}}</td>
  <td>{{.Quote.Ask}}</td>
  <td>{{.Quote.Time}}</td>
  <td>{{.Quote.Date}}</td>
  <td>{{.Quote.Open}}</td>
  <td>{{.Quote.High}}</td>
  <td>{{.Quote.Low}}</td>
  <td>{{.Quote.Settle}}</td>
  <td>{{.Quote.OpenInterest}}</td>
</tr>
{{- end}}
</table>
</div>
`))

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>ODAX</title>
<style>
body { font-family: monospace; margin: 0; }
.sticky { position: sticky; top: 0; background: #fff; border-bottom: 1px solid #888; }
.sticky th.type, .sticky td.type { cursor: pointer; padding: 0 .4em; }
.sticky th.active { background: #cde; }
.content { display: none; }
.content.shown { display: block; }
.content td { text-align: right; padding: 0 .5em; }
</style>
</head>
<body>
<div class="sticky">
<div class="products">
<table><tr>
  <td class="type" data-toggle-side>PUT</td>
{{- range .Monthly}}
  <th class="type" data-show="{{.}}">{{.}}</th>
{{- end}}
</tr></table>
<table><tr>
  <th>weekly</th>
{{- range .Weekly}}
  <th class="type" data-show="{{.}}">{{.}}</th>
{{- end}}
</tr></table>
</div>
<div class="header"><table><tr><td>ODAX</td></tr></table></div>
<table><tr>
{{- range .Columns}}
  <td>{{.}}</td>
{{- end}}
</tr></table>
</div>
{{.Body}}
<script>
(function () {
  var side = "put", shown = null;
  function render() {
    document.querySelectorAll(".content").forEach(function (el) {
      var on = el.dataset.side === side && (shown === null || el.dataset.short === shown);
      el.classList.toggle("shown", on);
    });
    document.querySelectorAll("[data-show]").forEach(function (el) {
      el.classList.toggle("active", el.dataset.show === shown);
    });
  }
  document.querySelectorAll("[data-show]").forEach(function (el) {
    el.addEventListener("click", function () { shown = el.dataset.show; render(); });
  });
  document.querySelectorAll("[data-toggle-side]").forEach(function (el) {
    el.addEventListener("click", function () {
      side = side === "put" ? "call" : "put";
      el.textContent = side.toUpperCase();
      render();
    });
  });
  var first = document.querySelector("[data-show]");
  if (first) { shown = first.dataset.show; }
  render();
})();
</script>
</body>
</html>
`))

func (htmlRenderer) product(p chain.ProductTable) (string, error) {
	var b strings.Builder
	for _, side := range sides {
		totals := p.Total(side)
		data := htmlSide{
			Side:     side.String(),
			Product:  p,
			Totals:   totals,
			TypeAttr: fmt.Sprintf("%s ProductDate: %s  Contracts: %s Open Interests: %s", strings.ToUpper(side.String()), p.Expiration.Short(), totals.Volume, totals.OpenInterest),
		}
		for _, r := range p.Strikes {
			data.Rows = append(data.Rows, htmlRow{Strike: r.Strike.Text, Quote: r.Quote(side)})
		}
		if err := productTmpl.Execute(&b, data); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

func (htmlRenderer) wrap(list chain.ExpirationList, body string) (string, error) {
	page := htmlPage{Columns: columns, Body: template.HTML(body)}
	for _, e := range list.Expirations() {
		if e.Kind == chain.Weekly {
			page.Weekly = append(page.Weekly, e.Short())
		} else {
			page.Monthly = append(page.Monthly, e.Short())
		}
	}
	var b strings.Builder
	if err := pageTmpl.Execute(&b, page); err != nil {
		return "", err
	}
	return b.String(), nil
}
