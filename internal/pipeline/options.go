package pipeline

import (
	"github.com/rezonia/faktura-processor/internal/aifallback"
	"github.com/rezonia/faktura-processor/internal/calibration"
	"github.com/rezonia/faktura-processor/internal/patternstore"
	"github.com/rezonia/faktura-processor/internal/pdfdoc"
	"github.com/rezonia/faktura-processor/internal/tokenize"
)

// Option configures a Pipeline at construction time.
type Option func(*Pipeline)

// WithRenderer supplies the page rasterizer the OCR path needs.
func WithRenderer(r pdfdoc.Renderer) Option {
	return func(p *Pipeline) { p.renderer = r }
}

// WithOCREngine supplies the OCR word-recognition backend.
func WithOCREngine(e tokenize.OcrEngine) Option {
	return func(p *Pipeline) { p.ocrEngine = e }
}

// WithEmbeddedTextExtractor supplies the embedded-text reading-order extractor.
func WithEmbeddedTextExtractor(ex tokenize.EmbeddedTextExtractor) Option {
	return func(p *Pipeline) { p.textExtractor = ex }
}

// WithAIFallback supplies the AI text/vision escalation client. Nil disables
// AI escalation entirely; the pipeline then only ever produces heuristic results.
func WithAIFallback(c *aifallback.Client) Option {
	return func(p *Pipeline) { p.ai = c }
}

// WithPatternStore supplies the learned-pattern boost store.
func WithPatternStore(s *patternstore.Store) Option {
	return func(p *Pipeline) { p.patterns = s }
}

// WithInvoiceNumberCalibration supplies the invoice-number field's calibration model.
func WithInvoiceNumberCalibration(m *calibration.Model) Option {
	return func(p *Pipeline) { p.invoiceNumberModel = m }
}

// WithTotalCalibration supplies the total-amount field's calibration model.
func WithTotalCalibration(m *calibration.Model) Option {
	return func(p *Pipeline) { p.totalModel = m }
}

// WithWorkers sets the batch worker pool size. NewPipeline defaults to 4;
// non-positive values leave the current size unchanged.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}
