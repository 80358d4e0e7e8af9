package pipeline

import (
	"context"
	"strings"

	"github.com/rezonia/faktura-processor/internal/layout"
	"github.com/rezonia/faktura-processor/internal/model"
	"github.com/rezonia/faktura-processor/internal/pdfdoc"
	"github.com/rezonia/faktura-processor/internal/tokenize"
)

// layoutForBoundary tokenizes every page in the document once, up front, and
// writes the resulting Rows/Segments onto each model.Page. pdfdoc.Open only
// fills in page geometry, so without this pass boundary.Detect would scan
// pages with no Rows and never see an invoice-start keyword. Embedded text
// is preferred since it needs no rasterization; OCR runs only as a fallback
// for pages with no usable text layer. Per-invoice extraction still
// re-tokenizes its own page range afterward to run the full embedded/OCR
// comparison, so this pass is purely in service of boundary detection.
func (p *Pipeline) layoutForBoundary(ctx context.Context, doc *model.Document) {
	var embedded *tokenize.EmbeddedTextTokenizer
	if p.textExtractor != nil {
		embedded = tokenize.NewEmbeddedTextTokenizer(p.textExtractor)
	}
	var ocr *tokenize.OcrTokenizer
	if p.ocrEngine != nil {
		ocr = tokenize.NewOcrTokenizer(p.ocrEngine)
	}

	for _, page := range doc.Pages {
		tokens := p.layoutPageTokens(ctx, doc.Path, page, embedded, ocr)
		if len(tokens) == 0 {
			continue
		}

		page.Tokens = tokens
		page.Kind = pdfdoc.Classify(page)
		page.Rows = layout.GroupRows(tokens, page.Height)
		page.Segments = layout.Segmentize(page.Rows, page.Height)
	}
}

func (p *Pipeline) layoutPageTokens(ctx context.Context, path string, page *model.Page, embedded *tokenize.EmbeddedTextTokenizer, ocr *tokenize.OcrTokenizer) []model.Token {
	if embedded != nil {
		if tokens, err := embedded.Tokenize(path, page); err == nil && len(tokens) > 0 {
			return tokens
		}
	}
	if ocr == nil || p.renderer == nil {
		return nil
	}
	image, err := p.renderer.Render(path, page.Index, pdfdoc.BaselineDPI)
	if err != nil {
		return nil
	}
	tokens, _, err := ocr.Tokenize(ctx, image)
	if err != nil {
		return nil
	}
	return tokens
}

// buildPageContext renders a page's segments back to text for the AI
// escalation prompt, dropping rows whose OCR tokens are mostly below the
// confidence threshold — garbled OCR text misleads the model more than
// having no context at all.
func buildPageContext(page *model.Page) string {
	if page == nil {
		return ""
	}
	var sb strings.Builder
	for _, seg := range page.Segments {
		for _, row := range seg.Rows {
			if isGarbledRow(row) {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(row.Text)
		}
	}
	return sb.String()
}

func isGarbledRow(row model.Row) bool {
	var sum float64
	var n int
	for _, tok := range row.Tokens {
		if tok.Confidence == nil {
			continue
		}
		sum += *tok.Confidence
		n++
	}
	if n == 0 {
		return false
	}
	return sum/float64(n) < tokenize.LowConfThreshold
}
