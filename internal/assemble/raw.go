package assemble

import (
	"strconv"
	"strings"

	"github.com/dgnsrekt/odax_crawler/internal/chain"
)

const (
	rawMagic = "EUREX_ODAX_PAGE"
	crlf     = "\r\n"
)

// rawRenderer writes the line format read by the desktop viewer:
//
//	EUREX_ODAX_PAGE
//	<trade date> <trade time> <index> <M|W>
//	<expiration> <totals>
//	put|call
//	<strike> <cell> <cell> ... one line per strike
type rawRenderer struct{}

func (rawRenderer) product(p chain.ProductTable) (string, error) {
	var b strings.Builder
	for _, side := range sides {
		writeRawBlock(&b, p, side)
	}
	return b.String(), nil
}

func (rawRenderer) wrap(_ chain.ExpirationList, body string) (string, error) {
	return body, nil
}

func writeRawBlock(b *strings.Builder, p chain.ProductTable, side chain.Side) {
	b.WriteString(rawMagic + crlf)
	b.WriteString(p.TradeDate + " " + p.TradeTime + " " + strconv.Itoa(p.Index) + " " + p.ContractType() + crlf)

	sep := " "
	if side == chain.Call {
		sep = "  "
	}
	b.WriteString(p.Expiration.Short() + sep + p.Total(side).Raw + crlf)
	b.WriteString(side.String() + crlf)
	for _, r := range p.Strikes {
		b.WriteString(r.Line(side) + crlf)
	}
}
