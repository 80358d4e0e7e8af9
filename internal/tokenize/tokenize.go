// Package tokenize turns a PDF page into a common Token stream, either from
// embedded text (pdfcpu's content-stream extraction) or from OCR over a
// rendered image, via an abstract OcrEngine.
package tokenize

import (
	"context"
	"sort"

	"github.com/rezonia/faktura-processor/internal/model"
	"github.com/rezonia/faktura-processor/internal/pdfdoc"
)

// TextRun is one run of embedded text pdfcpu's content-stream walk yields:
// text plus its bounding box in page points and, when the font resources
// carry it, the font name and size.
type TextRun struct {
	Text     string
	BBox     model.Rect
	FontName string
	FontSize float64
}

// EmbeddedTextExtractor pulls reading-order text runs out of a page's
// content stream. pdfcpu's own public API is geometry/structure-oriented, so
// the concrete extraction is an external collaborator (bound at pipeline
// construction) — this tokenizer only converts whatever runs it receives.
type EmbeddedTextExtractor interface {
	Extract(path string, pageIndex int) ([]TextRun, error)
}

// EmbeddedTextTokenizer converts each TextRun into one Token, in the order the
// extractor returns them; row grouping is left to layout.GroupRows.
type EmbeddedTextTokenizer struct {
	Extractor EmbeddedTextExtractor
}

func NewEmbeddedTextTokenizer(extractor EmbeddedTextExtractor) *EmbeddedTextTokenizer {
	return &EmbeddedTextTokenizer{Extractor: extractor}
}

// Tokenize reads the page's text runs and returns tokens in page points.
// Returns an empty, non-nil slice (never an error) when the page simply has
// no embedded text — that's TokenizationEmpty territory for the caller to
// decide, not a tokenizer-level failure.
func (t *EmbeddedTextTokenizer) Tokenize(path string, page *model.Page) ([]model.Token, error) {
	runs, err := t.Extractor.Extract(path, page.Index)
	if err != nil {
		return nil, model.NewPdfReadError(path, "embedded text extraction failed", err)
	}

	tokens := make([]model.Token, 0, len(runs))
	for _, r := range runs {
		tokens = append(tokens, model.Token{
			Text:     r.Text,
			BBox:     r.BBox,
			FontName: r.FontName,
			FontSize: r.FontSize,
		})
	}
	return tokens, nil
}

// WordRecord is one OCR word result: text, pixel-space bbox, confidence
// on a 0-100 scale.
type WordRecord struct {
	Text      string
	PixelBBox model.Rect
	Confidence float64
}

// OcrEngine recognizes words in a rendered page image. Shaped after
// lh0x0-tax-ai-tools' OCRService: a single call returning word-level results
// for one image, no streaming.
type OcrEngine interface {
	Recognize(ctx context.Context, image model.ImageHandle) ([]WordRecord, error)
}

// OcrTokenizer scales OCR word records from pixel space to page points and
// computes the per-page quality metrics bundle.
type OcrTokenizer struct {
	Engine OcrEngine
}

func NewOcrTokenizer(engine OcrEngine) *OcrTokenizer {
	return &OcrTokenizer{Engine: engine}
}

// PageMetrics bundles the OCR quality signals the compare stage needs.
type PageMetrics struct {
	Mean            float64
	Median          float64
	LowConfFraction float64 // share of tokens with confidence below LowConfThreshold
}

const LowConfThreshold = 60.0

// Tokenize runs OCR over the rendered image, scales results to page points,
// and returns tokens alongside the page's quality metrics.
func (t *OcrTokenizer) Tokenize(ctx context.Context, image model.ImageHandle) ([]model.Token, PageMetrics, error) {
	words, err := t.Engine.Recognize(ctx, image)
	if err != nil {
		return nil, PageMetrics{}, model.NewOcrError(image.Page, "OCR recognition failed", err)
	}

	scale := pdfdoc.PointsPerInch / float64(image.Dpi)
	tokens := make([]model.Token, 0, len(words))
	confidences := make([]float64, 0, len(words))

	for _, w := range words {
		tok, ok := model.NewOcrToken(w.Text, scalePixelBBox(w.PixelBBox, scale), w.Confidence)
		if !ok {
			continue
		}
		tokens = append(tokens, tok)
		confidences = append(confidences, w.Confidence)
	}

	return tokens, computeMetrics(confidences), nil
}

func scalePixelBBox(b model.Rect, scale float64) model.Rect {
	return model.Rect{X: b.X * scale, Y: b.Y * scale, W: b.W * scale, H: b.H * scale}
}

func computeMetrics(confidences []float64) PageMetrics {
	if len(confidences) == 0 {
		return PageMetrics{}
	}
	sorted := append([]float64(nil), confidences...)
	sort.Float64s(sorted)

	sum := 0.0
	low := 0
	for _, c := range sorted {
		sum += c
		if c < LowConfThreshold {
			low++
		}
	}

	mid := len(sorted) / 2
	median := sorted[mid]
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}

	return PageMetrics{
		Mean:            sum / float64(len(sorted)),
		Median:          median,
		LowConfFraction: float64(low) / float64(len(sorted)),
	}
}

// GoogleVisionEngine adapts a VisionClient (not the concrete Cloud Vision
// SDK, to keep core free of a hard GCP dependency) into an OcrEngine. This
// module ships no VisionClient implementation; callers supply one.
type VisionClient interface {
	DetectText(ctx context.Context, imageBytes []byte) ([]WordRecord, error)
}

type GoogleVisionEngine struct {
	Client VisionClient
}

func NewGoogleVisionEngine(client VisionClient) *GoogleVisionEngine {
	return &GoogleVisionEngine{Client: client}
}

func (e *GoogleVisionEngine) Recognize(ctx context.Context, image model.ImageHandle) ([]WordRecord, error) {
	return e.Client.DetectText(ctx, image.Bytes)
}
