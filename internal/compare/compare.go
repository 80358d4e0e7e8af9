// Package compare scores the results of both extraction paths (embedded-text
// and OCR) for a logical invoice and selects the better one per the
// three-rule order.
package compare

import (
	"github.com/rezonia/faktura-processor/internal/model"
	"github.com/rezonia/faktura-processor/internal/tokenize"
)

// HardGate mirrors reconcile.HardGate; duplicated here to keep this package
// free of a reconcile import (compare only reasons about confidences, not
// reconciliation status).
const HardGate = 0.95

// MinTokenDensity is the token count above which an embedded-text page is
// treated as full quality. Below it, quality scales down linearly. There is
// no documented formula for pdf_text_quality; this is the resolution of that
// open question, recorded in DESIGN.md.
const MinTokenDensity = 50

// OcrMedianGate is the minimum OCR median confidence (0-100) for accepting
// the OCR path under rule 2.
const OcrMedianGate = 70.0

// PathResult is one path's (embedded or OCR) outcome for a logical invoice.
type PathResult struct {
	Source                  model.ExtractionSource
	Invoice                 model.VirtualInvoice
	InvoiceNumberConfidence float64
	TotalConfidence         float64
	ValidationPassed        bool
	TextQuality             float64
	OcrMetrics              tokenize.PageMetrics
	DpiUsed                 int
	ReasonFlags             []string
}

// TextQualityFromTokenCount gives the embedded-text path's quality score.
func TextQualityFromTokenCount(tokenCount int) float64 {
	if tokenCount <= 0 {
		return 0
	}
	q := float64(tokenCount) / float64(MinTokenDensity)
	if q > 1 {
		q = 1
	}
	return q
}

// TextQualityFromOcrMetrics gives the OCR path's quality score: one minus the
// low-confidence fraction, so a page that's mostly clean OCR scores near 1.
func TextQualityFromOcrMetrics(metrics tokenize.PageMetrics) float64 {
	q := 1 - metrics.LowConfFraction
	if q < 0 {
		q = 0
	}
	return q
}

// Selection is the outcome of Choose: which path won and why.
type Selection struct {
	Chosen      model.ExtractionSource
	Invoice     model.VirtualInvoice
	ReasonFlags []string
}

// Choose applies the three-rule selection order from the OCR-vs-embedded
// comparison. Embedded is the tie-break default in rule 3.
func Choose(embedded, ocr PathResult) Selection {
	var flags []string

	if embedded.InvoiceNumberConfidence >= HardGate &&
		embedded.TotalConfidence >= HardGate &&
		embedded.TextQuality >= 0.5 {
		return Selection{Chosen: model.SourceEmbedded, Invoice: embedded.Invoice, ReasonFlags: embedded.ReasonFlags}
	}
	if embedded.TextQuality < 0.5 {
		flags = append(flags, "pdf_text_quality<0.5")
	}

	if ocr.InvoiceNumberConfidence >= HardGate &&
		ocr.TotalConfidence >= HardGate &&
		ocr.OcrMetrics.Median >= OcrMedianGate &&
		ocr.TextQuality >= 0.5 {
		return Selection{Chosen: model.SourceOcr, Invoice: ocr.Invoice, ReasonFlags: append(flags, ocr.ReasonFlags...)}
	}
	if ocr.OcrMetrics.Median < OcrMedianGate {
		flags = append(flags, "ocr_median_conf<70")
	}
	if ocr.TextQuality < 0.5 {
		flags = append(flags, "ocr_text_quality<0.5")
	}

	// rule 3: validation_passed, then higher total confidence, then higher
	// invoice-number confidence, tie-break to embedded
	if ocr.ValidationPassed && !embedded.ValidationPassed {
		return Selection{Chosen: model.SourceOcr, Invoice: ocr.Invoice, ReasonFlags: flags}
	}
	if embedded.ValidationPassed && !ocr.ValidationPassed {
		return Selection{Chosen: model.SourceEmbedded, Invoice: embedded.Invoice, ReasonFlags: flags}
	}
	if ocr.TotalConfidence > embedded.TotalConfidence {
		return Selection{Chosen: model.SourceOcr, Invoice: ocr.Invoice, ReasonFlags: flags}
	}
	if embedded.TotalConfidence > ocr.TotalConfidence {
		return Selection{Chosen: model.SourceEmbedded, Invoice: embedded.Invoice, ReasonFlags: flags}
	}
	if ocr.InvoiceNumberConfidence > embedded.InvoiceNumberConfidence {
		return Selection{Chosen: model.SourceOcr, Invoice: ocr.Invoice, ReasonFlags: flags}
	}
	return Selection{Chosen: model.SourceEmbedded, Invoice: embedded.Invoice, ReasonFlags: flags}
}

// ShouldRetryDpi reports whether the OCR path should be re-rendered at the
// retry DPI and re-run: ocr_mean < 55, at most once per page (the caller is
// responsible for not calling this twice for the same page).
func ShouldRetryDpi(ocrMean float64) bool {
	return ocrMean < 55
}
