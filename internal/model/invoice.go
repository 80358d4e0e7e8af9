package model

import "github.com/shopspring/decimal"

// PageRange is an inclusive [Start, End] page span covering one logical
// invoice inside a Document.
type PageRange struct {
	Start int `json:"page_start"`
	End   int `json:"page_end"`
}

// TokenSummary is a minimal per-token trace entry kept for traceability
// evidence without retaining the full Token.
type TokenSummary struct {
	Text string `json:"text"`
	BBox Rect   `json:"bbox"`
}

// Traceability records how a critical field's value was derived: the page,
// the union bbox of matched tokens, the row it came from, a short excerpt
// and a token summary.
type Traceability struct {
	FieldTag string         `json:"field"`
	Value    string         `json:"value"`
	Page     int            `json:"page"`
	BBox     Rect           `json:"bbox"`
	RowIndex int            `json:"row_index"`
	Excerpt  string         `json:"excerpt"` // truncated at 120 chars
	Tokens   []TokenSummary `json:"tokens"`
}

// NewTraceability truncates excerpt to the 120-char limit the data model demands.
func NewTraceability(fieldTag, value string, page int, bbox Rect, rowIndex int, excerpt string, tokens []TokenSummary) Traceability {
	if len(excerpt) > 120 {
		excerpt = excerpt[:120]
	}
	return Traceability{
		FieldTag: fieldTag,
		Value:    value,
		Page:     page,
		BBox:     bbox,
		RowIndex: rowIndex,
		Excerpt:  excerpt,
		Tokens:   tokens,
	}
}

// InvoiceLine is one product line: description, optional quantity/unit/unit
// price, and a required total amount. Rows is the source of truth (wrap rows
// appended in reading order); LineNumber is 1-based.
type InvoiceLine struct {
	Rows        []Row            `json:"-"`
	LineNumber  int              `json:"line_number"`
	Description string           `json:"description"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	Unit        string           `json:"unit,omitempty"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
	Total       decimal.Decimal  `json:"total"`
}

// TotalCandidate is a scored, not-yet-selected total-amount candidate.
type TotalCandidate struct {
	Value            decimal.Decimal `json:"value"`
	RawScore         float64         `json:"raw_score"`
	CalibratedScore  float64         `json:"calibrated_score"`
	Class            KeywordClass    `json:"keyword_class"`
	ValidationPassed bool            `json:"validation_passed"`
	Traceability     Traceability    `json:"traceability"`
}

// InvoiceHeader carries the invoice's header-level facts: the two critical
// fields (invoice number, total) with separate confidences and
// traceabilities, plus companion fields with no hard gate.
type InvoiceHeader struct {
	InvoiceNumber           string           `json:"invoice_number,omitempty"` // "" if below gate
	InvoiceNumberConfidence float64          `json:"invoice_number_confidence"`
	InvoiceNumberTrace      *Traceability    `json:"invoice_number_trace,omitempty"`
	InvoiceNumberTied       bool             `json:"invoice_number_tied"`

	InvoiceDate string `json:"invoice_date,omitempty"` // ISO YYYY-MM-DD or absent
	Supplier    string `json:"supplier,omitempty"`
	Reference   string `json:"reference,omitempty"`

	Total           decimal.Decimal  `json:"total"` // zero value if below gate
	TotalConfidence float64          `json:"total_confidence"`
	TotalTrace      *Traceability    `json:"total_trace,omitempty"`
	TotalCandidates []TotalCandidate `json:"total_candidates,omitempty"` // top-5
}

// ValidationResult is the output of reconciliation.
type ValidationResult struct {
	Status    Status          `json:"status"`
	LinesSum  decimal.Decimal `json:"lines_sum"`
	Diff      decimal.Decimal `json:"diff"` // total - lines_sum
	Tolerance decimal.Decimal `json:"tolerance"`
	Reasons   []string        `json:"reasons,omitempty"`
}

// ExtractionDetail records the path-selection quality metrics and routing
// reasons for one VirtualInvoice, as required by the run report.
type ExtractionDetail struct {
	MethodUsed      ExtractionSource `json:"method_used"`
	Dpi             int              `json:"dpi_used,omitempty"`
	PdfTextQuality  float64          `json:"pdf_text_quality"`
	OcrTextQuality  float64          `json:"ocr_text_quality"`
	OcrMean         float64          `json:"ocr_mean,omitempty"`
	OcrMedian       float64          `json:"ocr_median,omitempty"`
	LowConfFraction float64          `json:"low_conf_fraction,omitempty"`
	ReasonFlags     []string         `json:"reason_flags,omitempty"`
	VisionReason    []string         `json:"vision_reason,omitempty"`
}

// VirtualInvoice is one logical invoice found within a Document.
type VirtualInvoice struct {
	ID               string            `json:"id"`
	Pages            PageRange         `json:"pages"`
	Header           InvoiceHeader     `json:"header"`
	Lines            []InvoiceLine     `json:"lines"`
	Validation       ValidationResult  `json:"validation"`
	ExtractionSource ExtractionSource  `json:"extraction_source"`
	ExtractionDetail ExtractionDetail  `json:"extraction_detail"`
}

// FileResult summarizes the outcome of processing one input file.
type FileResult struct {
	Path      string            `json:"path"`
	Invoices  []*VirtualInvoice `json:"invoices"`
	Err       string            `json:"error,omitempty"`
	Stage     string            `json:"stage,omitempty"`
}

// QueueEntry is one validation-queue row surfaced for manual review.
type QueueEntry struct {
	Path             string           `json:"path"`
	InvoiceID        string           `json:"invoice_id"`
	Supplier         string           `json:"supplier,omitempty"`
	TotalCandidates  []TotalCandidate `json:"total_candidates,omitempty"`
	Trace            *Traceability    `json:"trace,omitempty"`
	ExtractionSource ExtractionSource `json:"extraction_source"`
}

// RunReport is the single serialized document produced at the end of a batch run.
type RunReport struct {
	Files           []FileResult `json:"files"`
	ValidationQueue []QueueEntry `json:"validation_queue"`
	Validation      *QueueEntry  `json:"validation,omitempty"` // legacy mirror of queue[0]
}

// AppendFile adds a file's results and folds any REVIEW invoices into the
// validation queue, preserving discovery order.
func (r *RunReport) AppendFile(fr FileResult) {
	r.Files = append(r.Files, fr)
	for _, inv := range fr.Invoices {
		if inv.Validation.Status != StatusReview {
			continue
		}
		id := inv.Header.InvoiceNumber
		if id == "" {
			id = inv.ID
		}
		entry := QueueEntry{
			Path:             fr.Path,
			InvoiceID:        id,
			Supplier:         inv.Header.Supplier,
			TotalCandidates:  inv.Header.TotalCandidates,
			Trace:            inv.Header.TotalTrace,
			ExtractionSource: inv.ExtractionSource,
		}
		r.ValidationQueue = append(r.ValidationQueue, entry)
		if r.Validation == nil {
			r.Validation = &entry
		}
	}
}
