// Package lineitem projects rows in the items segment into InvoiceLines:
// description, quantity, unit, unit price and total amount.
package lineitem

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rezonia/faktura-processor/internal/layout"
	"github.com/rezonia/faktura-processor/internal/model"
	"github.com/rezonia/faktura-processor/internal/money"
)

// KnownUnits are the unit words recognized near a quantity token.
var KnownUnits = map[string]bool{
	"st": true, "kg": true, "h": true, "m2": true, "m²": true,
	"ea": true, "ltr": true, "l": true, "day": true, "dag": true,
	"tim": true, "pkt": true, "ml": true,
}

// indexedRow carries a row's tokens pre-sorted by X once; candidate scanning
// works on indices into that one sorted slice and never re-sorts per
// candidate (the explicit hot-path constraint).
type indexedRow struct {
	tokens []model.Token
}

func indexRow(row model.Row) indexedRow {
	sorted := append([]model.Token(nil), row.Tokens...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].BBox.X < sorted[j].BBox.X })
	return indexedRow{tokens: sorted}
}

// IsLineCandidate reports whether a row contains an amount-like token and
// so is a candidate line item.
func IsLineCandidate(row model.Row) bool {
	for _, tok := range row.Tokens {
		if money.LooksLikeAmount(tok.Text) {
			return true
		}
	}
	return false
}

// ParseRows walks the items segment's rows, projecting each line-candidate
// row (plus its merged wrap rows) to an InvoiceLine. Footer-keyword rows end
// the scan per the stop rule: a hard keyword always stops; a soft keyword
// stops only when the row itself also carries a total-like amount.
func ParseRows(rows []model.Row, pageWidth float64) []model.InvoiceLine {
	var lines []model.InvoiceLine
	lineNo := 0

	for i := 0; i < len(rows); i++ {
		row := rows[i]
		if stopsItems(row) {
			break
		}
		if !IsLineCandidate(row) {
			continue
		}

		lineNo++
		wraps := layout.DetectWraps(rows, i, pageWidth)
		line := projectLine(row, lineNo, wraps)
		lines = append(lines, line)
		i += len(wraps)
	}

	return lines
}

func stopsItems(row model.Row) bool {
	lower := strings.ToLower(row.Text)
	for _, kw := range layout.HardTotalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	for _, kw := range layout.SoftTotalKeywords {
		if strings.Contains(lower, kw) && IsLineCandidate(row) {
			return true
		}
	}
	return false
}

func projectLine(row model.Row, lineNo int, wraps []model.Row) model.InvoiceLine {
	ir := indexRow(row)

	amountIdx := rightmostAmountIndex(ir)
	total := decimal.Zero
	if amountIdx >= 0 {
		if parsed, err := money.ParseSwedish(ir.tokens[amountIdx].Text); err == nil {
			total = parsed
		}
	}

	quantity := leftmostIntegerIndex(ir)
	unit := nearestUnit(ir, quantity)
	unitPrice := rightmostBeforeIndex(ir, amountIdx)

	description := descriptionText(ir, amountIdx)
	allRows := append([]model.Row{row}, wraps...)
	description = layout.JoinWrappedDescription(description, wraps)

	line := model.InvoiceLine{
		Rows:        allRows,
		LineNumber:  lineNo,
		Description: description,
		Unit:        unit,
		Total:       total,
	}
	if quantity >= 0 {
		if q, err := money.ParseSwedish(ir.tokens[quantity].Text); err == nil {
			line.Quantity = &q
		}
	}
	if unitPrice >= 0 {
		if up, err := money.ParseSwedish(ir.tokens[unitPrice].Text); err == nil {
			line.UnitPrice = &up
		}
	}
	return line
}

func rightmostAmountIndex(ir indexedRow) int {
	for i := len(ir.tokens) - 1; i >= 0; i-- {
		if money.LooksLikeAmount(ir.tokens[i].Text) {
			return i
		}
	}
	return -1
}

func leftmostIntegerIndex(ir indexedRow) int {
	for i, tok := range ir.tokens {
		if isPlainInteger(tok.Text) {
			return i
		}
	}
	return -1
}

func isPlainInteger(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func nearestUnit(ir indexedRow, quantityIdx int) string {
	if quantityIdx < 0 {
		return ""
	}
	for i := quantityIdx; i < len(ir.tokens) && i <= quantityIdx+3; i++ {
		candidate := strings.ToLower(strings.TrimSpace(ir.tokens[i].Text))
		if KnownUnits[candidate] {
			return ir.tokens[i].Text
		}
	}
	return ""
}

func rightmostBeforeIndex(ir indexedRow, amountIdx int) int {
	if amountIdx <= 0 {
		return -1
	}
	for i := amountIdx - 1; i >= 0; i-- {
		if money.LooksLikeAmount(ir.tokens[i].Text) {
			return i
		}
	}
	return -1
}

func descriptionText(ir indexedRow, amountIdx int) string {
	end := len(ir.tokens)
	if amountIdx >= 0 {
		end = amountIdx
	}
	var parts []string
	for i := 0; i < end; i++ {
		text := strings.TrimSpace(ir.tokens[i].Text)
		if text == "" || isPlainInteger(text) {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " ")
}
