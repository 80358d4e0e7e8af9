// Package invoicelib is the public API for the faktura-processor pipeline:
// run a batch of Swedish invoice PDFs through extraction, calibration, and
// reconciliation, and read back the run report.
package invoicelib

import (
	"github.com/rezonia/faktura-processor/internal/model"
)

// Re-export core model types for callers that don't need internal/ access.
type (
	VirtualInvoice   = model.VirtualInvoice
	InvoiceHeader    = model.InvoiceHeader
	InvoiceLine      = model.InvoiceLine
	ValidationResult = model.ValidationResult
	FileResult       = model.FileResult
	RunReport        = model.RunReport
	QueueEntry       = model.QueueEntry
	Traceability     = model.Traceability
	Status           = model.Status
	ExtractionSource = model.ExtractionSource
)

// Re-export status constants.
const (
	StatusOK      = model.StatusOK
	StatusPartial = model.StatusPartial
	StatusReview  = model.StatusReview
	StatusFailed  = model.StatusFailed
)

// Re-export extraction-source constants.
const (
	SourceEmbedded = model.SourceEmbedded
	SourceOcr      = model.SourceOcr
	SourceAiText   = model.SourceAiText
	SourceAiVision = model.SourceAiVision
)

// Re-export error types, per spec.md §7's taxonomy.
type (
	PdfReadError      = model.PdfReadError
	RenderError       = model.RenderError
	OcrError          = model.OcrError
	TokenizationEmpty = model.TokenizationEmpty
	AiError           = model.AiError
	PatternStoreError = model.PatternStoreError
)
