// Package model holds the data types shared across the extraction pipeline:
// documents, pages, tokens, rows and segments on the layout side; headers,
// lines, validation results and run reports on the result side.
package model

import "time"

// PageKind classifies whether a page carries a usable embedded text layer.
type PageKind int

const (
	PageUnknown PageKind = iota
	PageEmbeddedText
	PageScanned
)

func (k PageKind) String() string {
	switch k {
	case PageEmbeddedText:
		return "embedded_text"
	case PageScanned:
		return "scanned"
	default:
		return "unknown"
	}
}

// ExtractionSource names which path produced a VirtualInvoice's final values.
type ExtractionSource int

const (
	SourceUnknown ExtractionSource = iota
	SourceEmbedded
	SourceOcr
	SourceAiText
	SourceAiVision
)

func (s ExtractionSource) String() string {
	switch s {
	case SourceEmbedded:
		return "embedded"
	case SourceOcr:
		return "ocr"
	case SourceAiText:
		return "ai_text"
	case SourceAiVision:
		return "ai_vision"
	default:
		return "unknown"
	}
}

// SegmentKind is the position of a Segment within a page.
type SegmentKind int

const (
	SegmentUnknown SegmentKind = iota
	SegmentHeader
	SegmentItems
	SegmentFooter
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentHeader:
		return "header"
	case SegmentItems:
		return "items"
	case SegmentFooter:
		return "footer"
	default:
		return "unknown"
	}
}

// KeywordClass tags a footer amount candidate by the nearest keyword's
// relationship to VAT.
type KeywordClass int

const (
	KeywordNone KeywordClass = iota
	KeywordWithVat
	KeywordGeneric
	KeywordWithoutVat
)

func (k KeywordClass) String() string {
	switch k {
	case KeywordWithVat:
		return "with_vat"
	case KeywordGeneric:
		return "generic"
	case KeywordWithoutVat:
		return "without_vat"
	default:
		return "none"
	}
}

// Status is the final trust status of a VirtualInvoice.
type Status int

const (
	StatusUnknown Status = iota
	StatusOK
	StatusPartial
	StatusReview
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusPartial:
		return "PARTIAL"
	case StatusReview:
		return "REVIEW"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Rect is an axis-aligned bounding box in page points (origin top-left).
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Union returns the smallest Rect containing both r and other.
func (r Rect) Union(other Rect) Rect {
	x0 := min(r.X, other.X)
	y0 := min(r.Y, other.Y)
	x1 := max(r.X+r.W, other.X+other.W)
	y1 := max(r.Y+r.H, other.Y+other.H)
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// CenterY returns the vertical center of the rect.
func (r Rect) CenterY() float64 { return r.Y + r.H/2 }

// Token is a single word-level text fragment on a page.
type Token struct {
	Text       string  `json:"text"`
	BBox       Rect    `json:"bbox"`
	Confidence *float64 `json:"confidence,omitempty"` // present iff OCR-sourced, in [0,100]
	FontName   string  `json:"font_name,omitempty"`
	FontSize   float64 `json:"font_size,omitempty"`
}

// NewOcrToken builds a Token from an OCR word record, dropping negative
// confidences per the tokenizer contract.
func NewOcrToken(text string, bbox Rect, confidence float64) (Token, bool) {
	if confidence < 0 {
		return Token{}, false
	}
	c := confidence
	return Token{Text: text, BBox: bbox, Confidence: &c}, true
}

// Row is a horizontal band of tokens sharing a Y-alignment tolerance.
// Tokens is the source of truth; Text is a cached convenience value.
type Row struct {
	Tokens  []Token `json:"tokens"`
	YCenter float64 `json:"y_center"`
	XStart  float64 `json:"x_start"`
	XEnd    float64 `json:"x_end"`
	Text    string  `json:"text"`
}

// Segment is a contiguous run of rows labeled header/items/footer.
type Segment struct {
	Kind   SegmentKind `json:"kind"`
	Rows   []Row       `json:"rows"`
	YStart float64     `json:"y_start"`
	YEnd   float64     `json:"y_end"`
}

// Page is one page of a Document: geometry, classification, tokens and
// (once segmented) its rows and segments.
type Page struct {
	Index       int      `json:"index"` // 1-based
	Width       float64  `json:"width"`
	Height      float64  `json:"height"`
	Kind        PageKind `json:"kind"`
	Tokens      []Token  `json:"tokens,omitempty"`
	Rows        []Row    `json:"rows,omitempty"`
	Segments    []Segment `json:"segments,omitempty"`
	RenderedDpi int      `json:"rendered_dpi,omitempty"`
}

// Document is one opened PDF file: its pages and identifying metadata.
type Document struct {
	Path      string
	Pages     []*Page
	PageCount int
	OpenedAt  time.Time
}

// Page returns the 1-indexed page, or nil if out of range.
func (d *Document) Page(index int) *Page {
	if index < 1 || index > len(d.Pages) {
		return nil
	}
	return d.Pages[index-1]
}

// ImageHandle is an opaque rendered page image plus the DPI it was rendered at.
type ImageHandle struct {
	Bytes  []byte
	Width  int
	Height int
	Dpi    int
	Page   int
}
