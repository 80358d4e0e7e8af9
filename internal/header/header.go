// Package header extracts the invoice number (the header's critical,
// hard-gated field) plus the companion supplier/date/reference fields.
package header

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rezonia/faktura-processor/internal/model"
)

// HardGate is the calibrated-confidence floor a critical field's value must
// clear to be retained (confidence is always kept; the value is nulled below it).
const HardGate = 0.95

// TieMargin: two top candidates with different values and a score delta
// below this are both treated as unresolvable.
const TieMargin = 0.03

var invoiceNumberKeywords = []string{"fakturanummer", "invoice number", "invoice no", "nr", "no"}

var alnumPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9\-/]{1,23}[A-Za-z0-9]$`)
var orgNumberPattern = regexp.MustCompile(`^\d{10}$`)
var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$|^\d{2}[-./]\d{2}[-./]\d{4}$`)

// Candidate is a scored invoice-number candidate before selection.
type Candidate struct {
	Value       string
	Score       float64
	RowIndex    int
	Page        int
	BBox        model.Rect
	Tokens      []model.Token
}

// Weights sum to 1.0, per spec.
const (
	WeightKeywordProximity = 0.35
	WeightHeaderPosition   = 0.30
	WeightFormat           = 0.20
	WeightUniqueness       = 0.10
	WeightTokenConfidence  = 0.05
)

// GenerateCandidates walks the header segment (plus adjacent rows for
// keyword proximity) and builds scored invoice-number candidates.
func GenerateCandidates(page *model.Page, segments []model.Segment) []Candidate {
	var headerRows []model.Row
	for _, seg := range segments {
		if seg.Kind == model.SegmentHeader {
			headerRows = append(headerRows, seg.Rows...)
		}
	}
	if len(headerRows) == 0 {
		headerRows = allRows(segments)
	}

	valueCounts := map[string]int{}
	var raw []Candidate

	for rowIdx, row := range headerRows {
		for _, tok := range row.Tokens {
			text := strings.TrimSpace(tok.Text)
			if len(text) < 3 || len(text) > 25 {
				continue
			}
			if !alnumPattern.MatchString(text) && !isAlnumLoose(text) {
				continue
			}
			raw = append(raw, Candidate{
				Value:    text,
				RowIndex: rowIdx,
				Page:     page.Index,
				BBox:     tok.BBox,
				Tokens:   []model.Token{tok},
			})
			valueCounts[text]++
		}
	}

	for i := range raw {
		raw[i].Score = score(raw[i], headerRows, valueCounts)
	}

	return raw
}

func isAlnumLoose(s string) bool {
	hasDigit, hasAlpha := false, false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z'):
			hasAlpha = true
		case r == '-' || r == '/':
		default:
			return false
		}
	}
	return hasDigit || hasAlpha
}

func allRows(segments []model.Segment) []model.Row {
	var rows []model.Row
	for _, seg := range segments {
		rows = append(rows, seg.Rows...)
	}
	return rows
}

func score(c Candidate, headerRows []model.Row, valueCounts map[string]int) float64 {
	s := 0.0
	s += WeightKeywordProximity * keywordProximityScore(c, headerRows)
	s += WeightHeaderPosition * 1.0 // full credit: GenerateCandidates sources header-segment rows, or every row when there is no header segment
	s += WeightFormat * formatPlausibility(c.Value)
	s += WeightUniqueness * uniquenessScore(c.Value, valueCounts)
	s += WeightTokenConfidence * tokenConfidenceAverage(c.Tokens)
	return s
}

func keywordProximityScore(c Candidate, rows []model.Row) float64 {
	if c.RowIndex < 0 || c.RowIndex >= len(rows) {
		return 0
	}
	if rowHasKeyword(rows[c.RowIndex]) {
		return 1.0
	}
	for _, delta := range []int{-1, 1} {
		idx := c.RowIndex + delta
		if idx >= 0 && idx < len(rows) && rowHasKeyword(rows[idx]) {
			return 0.5
		}
	}
	return 0
}

func rowHasKeyword(row model.Row) bool {
	lower := strings.ToLower(row.Text)
	for _, kw := range invoiceNumberKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func formatPlausibility(value string) float64 {
	if datePattern.MatchString(value) {
		return 0
	}
	if orgNumberPattern.MatchString(value) {
		return 0
	}
	if alnumPattern.MatchString(value) || isAlnumLoose(value) {
		return 1.0
	}
	return 0.3
}

func uniquenessScore(value string, counts map[string]int) float64 {
	n := counts[value]
	if n <= 1 {
		return 1.0
	}
	return 1.0 / float64(n)
}

func tokenConfidenceAverage(tokens []model.Token) float64 {
	if len(tokens) == 0 {
		return 0.5
	}
	sum := 0.0
	n := 0
	for _, t := range tokens {
		if t.Confidence != nil {
			sum += *t.Confidence / 100.0
			n++
		}
	}
	if n == 0 {
		return 1.0 // embedded-text tokens carry no OCR confidence; treat as fully trusted
	}
	return sum / float64(n)
}

// SelectionResult is the outcome of picking among scored candidates.
type SelectionResult struct {
	Value    string
	Score    float64
	Tied     bool
	Winner   *Candidate
}

// Select picks the top-scoring candidate, applying the tie rule: if the top
// two candidates disagree on value and their score delta is below
// TieMargin, the field is unresolved (tied).
func Select(candidates []Candidate) SelectionResult {
	if len(candidates) == 0 {
		return SelectionResult{}
	}

	best := candidates[0]
	second := Candidate{}
	haveSecond := false
	for _, c := range candidates[1:] {
		if c.Score > best.Score {
			second = best
			haveSecond = true
			best = c
			continue
		}
		if !haveSecond || c.Score > second.Score {
			second = c
			haveSecond = true
		}
	}

	if haveSecond && second.Value != best.Value && (best.Score-second.Score) < TieMargin {
		return SelectionResult{Score: best.Score, Tied: true}
	}

	b := best
	return SelectionResult{Value: best.Value, Score: best.Score, Winner: &b}
}

// PrefixRepair scans tokens for a longer digit run containing the selected
// number; a 10-digit run ending in a year-like suffix (06/24/25/26) is
// truncated to its first 8 characters, correcting a common truncation bug
// where a trailing year gets pasted onto the real number.
func PrefixRepair(selected string, tokens []model.Token) string {
	yearSuffixes := []string{"06", "24", "25", "26"}
	for _, tok := range tokens {
		text := strings.TrimSpace(tok.Text)
		if len(text) != 10 || !isAllDigits(text) {
			continue
		}
		if !strings.Contains(text, selected) {
			continue
		}
		suffix := text[len(text)-2:]
		for _, y := range yearSuffixes {
			if suffix == y {
				return text[:8]
			}
		}
	}
	return selected
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

var corporateSuffixes = []string{"ab", "hb", "kb", "ek för", "aktiebolag"}

// ExtractSupplier picks the supplier name from the earliest header rows,
// preferring lines containing a corporate suffix and skipping rows that
// themselves contain invoice-number keywords.
func ExtractSupplier(segments []model.Segment) string {
	for _, seg := range segments {
		if seg.Kind != model.SegmentHeader {
			continue
		}
		for _, row := range seg.Rows {
			lower := strings.ToLower(row.Text)
			if rowHasKeyword(row) {
				continue
			}
			for _, suffix := range corporateSuffixes {
				if strings.HasSuffix(strings.TrimSpace(lower), suffix) || strings.Contains(lower, " "+suffix+" ") {
					return strings.TrimSpace(row.Text)
				}
			}
		}
	}
	for _, seg := range segments {
		if seg.Kind != model.SegmentHeader {
			continue
		}
		for _, row := range seg.Rows {
			if !rowHasKeyword(row) && strings.TrimSpace(row.Text) != "" {
				return strings.TrimSpace(row.Text)
			}
		}
	}
	return ""
}

var swedishMonths = map[string]string{
	"januari": "01", "februari": "02", "mars": "03", "april": "04",
	"maj": "05", "juni": "06", "juli": "07", "augusti": "08",
	"september": "09", "oktober": "10", "november": "11", "december": "12",
}

var numericDateForms = []string{"2006-01-02", "02/01/2006", "02.01.2006", "02-01-2006"}

// NormalizeDate parses a date in one of the known Swedish forms (numeric
// DD/MM/YYYY variants, or a textual "2 januari 2024" form) to ISO YYYY-MM-DD.
// Returns "" if no known form matches.
func NormalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, layout := range numericDateForms {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}

	fields := strings.Fields(strings.ToLower(raw))
	if len(fields) == 3 {
		day := fields[0]
		month, ok := swedishMonths[fields[1]]
		year := fields[2]
		if ok && isAllDigits(day) && isAllDigits(year) && len(year) == 4 {
			if len(day) == 1 {
				day = "0" + day
			}
			return fmt.Sprintf("%s-%s-%s", year, month, day)
		}
	}
	return ""
}

var referenceKeywords = []string{"referens", "fakturareferens", "betalningsreferens"}

// ExtractReference scans the header rows for a reference keyword and
// returns the trailing text on that row.
func ExtractReference(segments []model.Segment) string {
	for _, seg := range segments {
		if seg.Kind != model.SegmentHeader {
			continue
		}
		for _, row := range seg.Rows {
			lower := strings.ToLower(row.Text)
			for _, kw := range referenceKeywords {
				idx := strings.Index(lower, kw)
				if idx < 0 {
					continue
				}
				rest := strings.TrimSpace(row.Text[idx+len(kw):])
				rest = strings.TrimPrefix(rest, ":")
				return strings.TrimSpace(rest)
			}
		}
	}
	return ""
}

// Scorer adapts GenerateCandidates+Select into boundary.CandidateScorer,
// scoring a page's invoice-number candidates using only that page's rows as
// the header zone (the boundary detector doesn't yet know segment layout).
type Scorer struct{}

func (Scorer) BestInvoiceNumberScore(page *model.Page) float64 {
	segments := []model.Segment{{Kind: model.SegmentHeader, Rows: page.Rows}}
	candidates := GenerateCandidates(page, segments)
	return Select(candidates).Score
}

// BuildTraceability assembles the invoice-number Traceability from a
// selected candidate.
func BuildTraceability(c Candidate, excerpt string) model.Traceability {
	var bbox model.Rect
	var summaries []model.TokenSummary
	for i, t := range c.Tokens {
		if i == 0 {
			bbox = t.BBox
		} else {
			bbox = bbox.Union(t.BBox)
		}
		summaries = append(summaries, model.TokenSummary{Text: t.Text, BBox: t.BBox})
	}
	return model.NewTraceability("invoice_number", c.Value, c.Page, bbox, c.RowIndex, excerpt, summaries)
}
