// Package pipeline orchestrates the full per-invoice extraction sequence:
// tokenize both paths, lay out, extract header/lines/footer, calibrate,
// boost from learned patterns, reconcile, compare paths, and escalate to AI
// when the heuristic result falls short.
package pipeline

import (
	"context"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/rezonia/faktura-processor/internal/aifallback"
	"github.com/rezonia/faktura-processor/internal/boundary"
	"github.com/rezonia/faktura-processor/internal/calibration"
	"github.com/rezonia/faktura-processor/internal/compare"
	"github.com/rezonia/faktura-processor/internal/footer"
	"github.com/rezonia/faktura-processor/internal/header"
	"github.com/rezonia/faktura-processor/internal/model"
	"github.com/rezonia/faktura-processor/internal/money"
	"github.com/rezonia/faktura-processor/internal/patternstore"
	"github.com/rezonia/faktura-processor/internal/pdfdoc"
	"github.com/rezonia/faktura-processor/internal/reconcile"
	"github.com/rezonia/faktura-processor/internal/retry"
	"github.com/rezonia/faktura-processor/internal/tokenize"
)

// Pipeline is constructed via functional options. NewPipeline with no options
// has no embedded-text extractor, OCR engine or AI client, so both extraction
// paths fail and AI escalation is off until those collaborators are supplied.
type Pipeline struct {
	renderer      pdfdoc.Renderer
	ocrEngine     tokenize.OcrEngine
	textExtractor tokenize.EmbeddedTextExtractor
	ai            *aifallback.Client
	patterns      *patternstore.Store

	invoiceNumberModel *calibration.Model
	totalModel         *calibration.Model

	workers int
}

// NewPipeline builds a Pipeline, applying the given options over sensible defaults.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		renderer: pdfdoc.NullRenderer{},
		workers:  4,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var headerDatePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}|\d{2}[-./]\d{2}[-./]\d{4}`)

// ProcessFile runs the full pipeline over one PDF file, returning a
// model.FileResult (never an error return — failures are folded into the
// FileResult's Err field so a batch run can continue past one bad file).
func (p *Pipeline) ProcessFile(ctx context.Context, path string) model.FileResult {
	doc, err := pdfdoc.Open(path)
	if err != nil {
		return model.FileResult{Path: path, Err: err.Error(), Stage: "open"}
	}

	p.layoutForBoundary(ctx, doc)

	ranges := boundary.Detect(doc, header.Scorer{})

	var invoices []*model.VirtualInvoice
	for _, pr := range ranges {
		inv, err := p.processInvoice(ctx, doc, pr)
		if err != nil {
			invoices = append(invoices, &model.VirtualInvoice{
				Pages: pr,
				Validation: model.ValidationResult{
					Status:  model.StatusFailed,
					Reasons: []string{err.Error()},
				},
			})
			continue
		}
		invoices = append(invoices, inv)
	}

	return model.FileResult{Path: path, Invoices: invoices}
}

// ProcessBatch runs ProcessFile over every path with a bounded worker pool,
// folding the results into a single RunReport in discovery order. A single
// file's failure never aborts the batch — ProcessFile already folds failures
// into its FileResult, so the errgroup here never actually sees an error.
func (p *Pipeline) ProcessBatch(ctx context.Context, paths []string) *model.RunReport {
	report := &model.RunReport{}
	if len(paths) == 0 {
		return report
	}
	results := make([]model.FileResult, len(paths))

	workers := p.workers
	if workers <= 0 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			results[i] = p.ProcessFile(gctx, path)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		report.AppendFile(r)
	}
	return report
}

func (p *Pipeline) processInvoice(ctx context.Context, doc *model.Document, pr model.PageRange) (*model.VirtualInvoice, error) {
	embedded, embErr := p.extractEmbedded(doc, pr)
	ocrResult, ocrErr := p.extractOcr(ctx, doc, pr)

	if embErr != nil && ocrErr != nil {
		return nil, fmt.Errorf("both extraction paths failed: embedded=%v ocr=%v", embErr, ocrErr)
	}
	if embErr != nil {
		return &ocrResult.Invoice, nil
	}
	if ocrErr != nil {
		return &embedded.Invoice, nil
	}

	selection := compare.Choose(embedded, ocrResult)
	invoice := selection.Invoice
	invoice.ExtractionDetail.ReasonFlags = selection.ReasonFlags

	p.escalate(ctx, doc, pr, &invoice)

	return &invoice, nil
}

// escalate runs the total-amount retry ladder: if the heuristic result
// hasn't reached the target confidence, invoke the vision-LLM first when both
// text qualities are poor, then the text-LLM, stopping as soon as the
// confidence clears the target or retry.Decide gives up.
func (p *Pipeline) escalate(ctx context.Context, doc *model.Document, pr model.PageRange, invoice *model.VirtualInvoice) {
	if p.ai == nil {
		return
	}

	pageContext := buildPageContext(doc.Page(pr.End))
	candidates := candidateStrings(invoice.Header.TotalCandidates)

	state := retry.State{
		BestCalibratedConfidence: invoice.Header.TotalConfidence,
		PdfTextQuality:           invoice.ExtractionDetail.PdfTextQuality,
		OcrTextQuality:           invoice.ExtractionDetail.OcrTextQuality,
	}

	for state.Attempt < retry.MaxAttempts {
		action := retry.Decide(state)
		switch action {
		case retry.ActionAcceptHeuristic, retry.ActionGiveUp:
			return
		case retry.ActionInvokeTextLLM:
			state.TextLLMAlreadyTried = true
			result, err := p.ai.ExtractTotalText(ctx, footerExcerpt(invoice), invoice.Validation.LinesSum.String(), candidates, pageContext)
			if err == nil && result != nil {
				p.applyAiResult(invoice, *result, model.SourceAiText)
				state.BestCalibratedConfidence = invoice.Header.TotalConfidence
			}
		case retry.ActionInvokeVisionLLM:
			state.VisionLLMAlreadyTried = true
			invoice.ExtractionDetail.VisionReason = retry.VisionReason(state)
			image, err := p.renderer.Render(doc.Path, pr.End, pdfdoc.BaselineDPI)
			if err == nil {
				result, aiErr := p.ai.ExtractTotalVision(ctx, image, pageContext)
				if aiErr == nil && result != nil {
					p.applyAiResult(invoice, *result, model.SourceAiVision)
					state.BestCalibratedConfidence = invoice.Header.TotalConfidence
				}
			}
		}
		state.Attempt++
	}
}

// candidateStrings renders the already-scored top total candidates for the
// AI prompt, so escalation sees what the heuristic stage already considered
// instead of starting blind.
func candidateStrings(candidates []model.TotalCandidate) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.Value.String())
	}
	return out
}

func (p *Pipeline) applyAiResult(invoice *model.VirtualInvoice, result aifallback.TotalExtraction, source model.ExtractionSource) {
	heuristicTop := invoice.Header.TotalConfidence
	diff := result.Amount.Sub(invoice.Validation.LinesSum).Abs()
	validationPassed := diff.LessThanOrEqual(money.Tolerance(result.Amount))

	confidence := result.Confidence
	if boosted, implausible := footer.ImplausibleLinesSumBoost(result.Amount, invoice.Validation.LinesSum, confidence); implausible {
		confidence = boosted
		validationPassed = true
	}

	if !footer.AcceptAiResult(footer.AiResult{Amount: result.Amount, Confidence: confidence, ValidationPassed: validationPassed}, heuristicTop) {
		return
	}

	invoice.Header.Total = result.Amount
	invoice.Header.TotalConfidence = confidence
	invoice.ExtractionSource = source
	invoice.ExtractionDetail.MethodUsed = source

	rec := reconcile.Reconcile(reconcile.Input{
		InvoiceNumberConfidence: invoice.Header.InvoiceNumberConfidence,
		TotalConfidence:         confidence,
		HasInvoiceNumberTrace:   invoice.Header.InvoiceNumberTrace != nil,
		HasTotalTrace:           invoice.Header.TotalTrace != nil,
		Total:                   result.Amount,
		Lines:                   invoice.Lines,
	})
	invoice.Validation = rec
}

func footerExcerpt(invoice *model.VirtualInvoice) string {
	if invoice.Header.TotalTrace != nil {
		return invoice.Header.TotalTrace.Excerpt
	}
	return ""
}

func sumDecimals(lines []model.InvoiceLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Total)
	}
	return sum
}
