// Package layout reconstructs spatial structure over a page's tokens: rows,
// header/items/footer segments, and wrapped line-item continuation rows.
package layout

import (
	"math"
	"sort"
	"strings"

	"github.com/rezonia/faktura-processor/internal/model"
	"github.com/rezonia/faktura-processor/internal/money"
)

// HardTotalKeywords end the items segment unconditionally.
var HardTotalKeywords = []string{
	"summa att betala", "att betala", "totalt", "delsumma", "nettobelopp", "moms",
}

// SoftTotalKeywords end the items segment only when the row also carries an
// amount-like token.
var SoftTotalKeywords = []string{
	"summa", "lista", "spec", "bifogad", "fraktavgift",
}

// GroupRows clusters tokens into rows by Y-center tolerance
// min(5pt, 0.02*pageHeight), sorting each row's tokens by X.
func GroupRows(tokens []model.Token, pageHeight float64) []model.Row {
	if len(tokens) == 0 {
		return nil
	}

	tol := math.Min(5, 0.02*pageHeight)

	sorted := append([]model.Token(nil), tokens...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].BBox.CenterY() < sorted[j].BBox.CenterY()
	})

	var rows []model.Row
	var current []model.Token
	var currentY float64

	flush := func() {
		if len(current) == 0 {
			return
		}
		sort.Slice(current, func(i, j int) bool { return current[i].BBox.X < current[j].BBox.X })
		rows = append(rows, buildRow(current))
	}

	for _, tok := range sorted {
		cy := tok.BBox.CenterY()
		if len(current) == 0 {
			current = []model.Token{tok}
			currentY = cy
			continue
		}
		if math.Abs(cy-currentY) <= tol {
			current = append(current, tok)
			// recompute running mean so drift across a wide row is tolerated
			currentY = (currentY*float64(len(current)-1) + cy) / float64(len(current))
			continue
		}
		flush()
		current = []model.Token{tok}
		currentY = cy
	}
	flush()

	return rows
}

func buildRow(tokens []model.Token) model.Row {
	xStart := tokens[0].BBox.X
	xEnd := tokens[0].BBox.X + tokens[0].BBox.W
	ySum := 0.0
	var text strings.Builder

	for i, tok := range tokens {
		xEnd = math.Max(xEnd, tok.BBox.X+tok.BBox.W)
		ySum += tok.BBox.CenterY()
		if i > 0 {
			text.WriteByte(' ')
		}
		text.WriteString(tok.Text)
	}

	return model.Row{
		Tokens:  tokens,
		YCenter: ySum / float64(len(tokens)),
		XStart:  xStart,
		XEnd:    xEnd,
		Text:    text.String(),
	}
}

// Segmentize splits a page's rows into header/items/footer segments.
// Position-based default (top 30% / middle 40% / bottom 30%) with
// content-based overrides: strong total keywords pull a row into footer,
// strong item-row patterns (a leading integer quantity followed by an
// amount-like token) pull it into items.
func Segmentize(rows []model.Row, pageHeight float64) []model.Segment {
	if len(rows) == 0 {
		return nil
	}

	headerBound := 0.30 * pageHeight
	footerBound := 0.70 * pageHeight

	kindFor := func(row model.Row) model.SegmentKind {
		lower := strings.ToLower(row.Text)
		if containsAny(lower, HardTotalKeywords) {
			return model.SegmentFooter
		}
		if looksLikeItemRow(row) {
			return model.SegmentItems
		}
		if row.YCenter <= headerBound {
			return model.SegmentHeader
		}
		if row.YCenter >= footerBound {
			return model.SegmentFooter
		}
		return model.SegmentItems
	}

	var segments []model.Segment
	var cur *model.Segment

	for _, row := range rows {
		kind := kindFor(row)
		if cur == nil || cur.Kind != kind {
			if cur != nil {
				segments = append(segments, *cur)
			}
			cur = &model.Segment{Kind: kind, YStart: row.YCenter}
		}
		cur.Rows = append(cur.Rows, row)
		cur.YEnd = row.YCenter
	}
	if cur != nil {
		segments = append(segments, *cur)
	}

	return segments
}

// looksLikeItemRow recognizes a strong line-item shape: a leading
// quantity-like integer token followed later by an amount-like token, which
// overrides the positional header/footer default into items.
func looksLikeItemRow(row model.Row) bool {
	if len(row.Tokens) < 2 {
		return false
	}
	first := strings.TrimSpace(row.Tokens[0].Text)
	if !isPlainInteger(first) {
		return false
	}
	return rowHasAmount(row)
}

func isPlainInteger(s string) bool {
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

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// MaxWraps caps the number of continuation rows merged into one line item.
const MaxWraps = 3

// IsWrapRow reports whether row is a wrap continuation of productRow: no
// amount-like token, and its X start within ±0.02*pageWidth of the product
// row's description start.
func IsWrapRow(row model.Row, productXStart, pageWidth float64) bool {
	if rowHasAmount(row) {
		return false
	}
	return math.Abs(row.XStart-productXStart) <= 0.02*pageWidth
}

func rowHasAmount(row model.Row) bool {
	for _, tok := range row.Tokens {
		if money.LooksLikeAmount(tok.Text) {
			return true
		}
	}
	return false
}

// DetectWraps walks rows after a product row and returns the wrap rows to
// merge, stopping at an amount, an X-start deviation, or after MaxWraps.
func DetectWraps(rows []model.Row, productRowIdx int, pageWidth float64) []model.Row {
	if productRowIdx < 0 || productRowIdx >= len(rows) {
		return nil
	}
	productXStart := rows[productRowIdx].XStart

	var wraps []model.Row
	for i := productRowIdx + 1; i < len(rows) && len(wraps) < MaxWraps; i++ {
		if !IsWrapRow(rows[i], productXStart, pageWidth) {
			break
		}
		wraps = append(wraps, rows[i])
	}
	return wraps
}

// JoinWrappedDescription space-joins a product row's description with its
// wrap rows' text (never newline-joined, per spec).
func JoinWrappedDescription(description string, wraps []model.Row) string {
	parts := []string{description}
	for _, w := range wraps {
		if strings.TrimSpace(w.Text) == "" {
			continue
		}
		parts = append(parts, strings.TrimSpace(w.Text))
	}
	return strings.Join(parts, " ")
}
