// Package boundary detects where one PDF file splits into several logical
// invoices.
package boundary

import (
	"regexp"
	"strings"

	"github.com/rezonia/faktura-processor/internal/model"
)

// Keywords are the "invoice-start" keyword equivalents this detector scans
// for. "faktura" plus its common Swedish invoice-number synonyms.
var Keywords = []string{"faktura", "fakturanummer", "invoice"}

var datePattern = regexp.MustCompile(`\b\d{4}[-./]\d{2}[-./]\d{2}\b|\b\d{2}[-./]\d{2}[-./]\d{4}\b`)
var amountPattern = regexp.MustCompile(`\b\d{1,3}([ .]?\d{3})*,\d{2}\b`)

// CandidateScorer scores an invoice-number candidate on a page; the boundary
// detector needs only the top score, not the value — it is satisfied by
// internal/header's scorer.
type CandidateScorer interface {
	BestInvoiceNumberScore(page *model.Page) float64
}

// Detect scans a document's pages in order and returns the page ranges that
// make up each logical invoice, covering every page.
func Detect(doc *model.Document, scorer CandidateScorer) []model.PageRange {
	if len(doc.Pages) == 0 {
		return nil
	}

	var starts []int
	for _, page := range doc.Pages {
		if startsInvoice(page, scorer) {
			starts = append(starts, page.Index)
		}
	}
	if len(starts) == 0 || starts[0] != 1 {
		starts = append([]int{1}, starts...)
	}

	ranges := make([]model.PageRange, 0, len(starts))
	for i, start := range starts {
		end := doc.PageCount
		if i+1 < len(starts) {
			end = starts[i+1] - 1
		}
		if start > end {
			continue
		}
		ranges = append(ranges, model.PageRange{Start: start, End: end})
	}
	return ranges
}

func startsInvoice(page *model.Page, scorer CandidateScorer) bool {
	if page.Index == 1 {
		// page 1 always starts the first invoice; no need to re-detect it
		return false
	}
	if !hasKeyword(page) {
		return false
	}

	if scorer != nil && scorer.BestInvoiceNumberScore(page) >= 0.6 {
		return true
	}
	return dateAndAmountShareRow(page)
}

func hasKeyword(page *model.Page) bool {
	for _, row := range page.Rows {
		lower := strings.ToLower(row.Text)
		for _, kw := range Keywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

// dateAndAmountShareRow requires a date pattern and an amount pattern on the
// same row as the keyword — the second, weaker of the two boundary signals.
// A bare "faktura" next to unrelated alphanumerics never satisfies this.
func dateAndAmountShareRow(page *model.Page) bool {
	for _, row := range page.Rows {
		lower := strings.ToLower(row.Text)
		hasKw := false
		for _, kw := range Keywords {
			if strings.Contains(lower, kw) {
				hasKw = true
				break
			}
		}
		if !hasKw {
			continue
		}
		if datePattern.MatchString(row.Text) && amountPattern.MatchString(row.Text) {
			return true
		}
	}
	return false
}
