package assemble

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dgnsrekt/odax_crawler/internal/chain"
)

// Entry is one (expiration, side, strike) triple recovered from a document.
type Entry struct {
	Expiration   string      `json:"expiration"`
	ContractType string      `json:"contract_type"`
	Side         chain.Side  `json:"side"`
	Strike       string      `json:"strike"`
	Quote        chain.Quote `json:"quote"`
}

// Import reads a flushed document back into its entries.
func Import(format Format, body []byte) ([]Entry, error) {
	if format == FormatRaw {
		return importRaw(body)
	}
	return importHTML(body)
}

func importHTML(body []byte) ([]Entry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	var out []Entry
	var importErr error
	doc.Find("div.content").EachWithBreak(func(_ int, block *goquery.Selection) bool {
		side := chain.Call
		if block.AttrOr("data-side", "") == chain.Put.String() {
			side = chain.Put
		}
		ct := chain.Monthly.ContractType()
		if block.AttrOr("data-kind", "") == chain.Weekly.String() {
			ct = chain.Weekly.ContractType()
		}
		short := block.AttrOr("data-short", "")

		block.Find("tr[data-strike]").EachWithBreak(func(_ int, row *goquery.Selection) bool {
			cells := row.Find("td").Map(func(_ int, td *goquery.Selection) string {
				return strings.TrimSpace(td.Text())
			})
			if len(cells) != len(columns) {
				importErr = fmt.Errorf("%s %s strike %s: %d cells, want %d", short, side, row.AttrOr("data-strike", "?"), len(cells), len(columns))
				return false
			}
			out = append(out, Entry{
				Expiration:   short,
				ContractType: ct,
				Side:         side,
				Strike:       cells[0],
				Quote: chain.Quote{
					Price:        cells[1],
					Volume:       cells[2],
					Bid:          cells[3],
					Ask:          cells[4],
					Time:         cells[5],
					Date:         cells[6],
					Open:         cells[7],
					High:         cells[8],
					Low:          cells[9],
					Settle:       cells[10],
					OpenInterest: cells[11],
				},
			})
			return true
		})
		return importErr == nil
	})
	if importErr != nil {
		return nil, importErr
	}
	return out, nil
}

// importRaw walks the line format block by block. A block starts with the
// magic line and is followed by the stamp, expiration, side and strike lines.
func importRaw(body []byte) ([]Entry, error) {
	var (
		out   []Entry
		ct    string
		short string
		side  chain.Side
		state int
		line  int
	)
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line++
		text := strings.TrimSuffix(sc.Text(), "\r")
		if text == rawMagic {
			state = 1
			continue
		}
		switch state {
		case 1:
			f := strings.Fields(text)
			if len(f) < 4 {
				return nil, fmt.Errorf("line %d: bad stamp %q", line, text)
			}
			ct = f[len(f)-1]
			state = 2
		case 2:
			short, _, _ = strings.Cut(text, " ")
			state = 3
		case 3:
			switch text {
			case chain.Put.String():
				side = chain.Put
			case chain.Call.String():
				side = chain.Call
			default:
				return nil, fmt.Errorf("line %d: bad side %q", line, text)
			}
			state = 4
		case 4:
			if text == "" {
				continue
			}
			// Every field, the last included, is followed by one space.
			fields := strings.Split(strings.TrimSuffix(text, " "), " ")
			if len(fields) != chain.FieldCount {
				return nil, fmt.Errorf("line %d: %d fields, want %d", line, len(fields), chain.FieldCount)
			}
			q, err := chain.QuoteFromFields(side, fields)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			out = append(out, Entry{Expiration: short, ContractType: ct, Side: side, Strike: fields[0], Quote: q})
		default:
			return nil, fmt.Errorf("line %d: data before %s", line, rawMagic)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
