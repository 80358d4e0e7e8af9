package pipeline

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rezonia/faktura-processor/internal/calibration"
	"github.com/rezonia/faktura-processor/internal/compare"
	"github.com/rezonia/faktura-processor/internal/footer"
	"github.com/rezonia/faktura-processor/internal/header"
	"github.com/rezonia/faktura-processor/internal/layout"
	"github.com/rezonia/faktura-processor/internal/lineitem"
	"github.com/rezonia/faktura-processor/internal/model"
	"github.com/rezonia/faktura-processor/internal/patternstore"
	"github.com/rezonia/faktura-processor/internal/pdfdoc"
	"github.com/rezonia/faktura-processor/internal/reconcile"
	"github.com/rezonia/faktura-processor/internal/tokenize"
)

// pageLayout is one page's rows/segments after tokenizing and segmenting it,
// tagged with the metadata buildInvoice needs to assemble the full invoice.
type pageLayout struct {
	page     *model.Page
	rows     []model.Row
	segments []model.Segment
}

func (p *Pipeline) extractEmbedded(doc *model.Document, pr model.PageRange) (compare.PathResult, error) {
	if p.textExtractor == nil {
		return compare.PathResult{}, model.NewTokenizationEmpty(pr.Start, model.SourceEmbedded)
	}
	tokenizer := tokenize.NewEmbeddedTextTokenizer(p.textExtractor)

	var pages []pageLayout
	totalTokens := 0
	for idx := pr.Start; idx <= pr.End; idx++ {
		page := doc.Page(idx)
		if page == nil {
			continue
		}
		tokens, err := tokenizer.Tokenize(doc.Path, page)
		if err != nil {
			return compare.PathResult{}, err
		}
		rows := layout.GroupRows(tokens, page.Height)
		segments := layout.Segmentize(rows, page.Height)
		pages = append(pages, pageLayout{page: page, rows: rows, segments: segments})
		totalTokens += len(tokens)
	}
	if len(pages) == 0 {
		return compare.PathResult{}, model.NewTokenizationEmpty(pr.Start, model.SourceEmbedded)
	}

	textQuality := compare.TextQualityFromTokenCount(totalTokens / len(pages))
	result := p.buildInvoice(pages, pr, model.SourceEmbedded, textQuality, tokenize.PageMetrics{}, 0)
	return result, nil
}

func (p *Pipeline) extractOcr(ctx context.Context, doc *model.Document, pr model.PageRange) (compare.PathResult, error) {
	if p.renderer == nil || p.ocrEngine == nil {
		return compare.PathResult{}, model.NewTokenizationEmpty(pr.Start, model.SourceOcr)
	}
	tokenizer := tokenize.NewOcrTokenizer(p.ocrEngine)

	dpi := pdfdoc.BaselineDPI
	var pages []pageLayout
	var allMetrics []tokenize.PageMetrics
	for idx := pr.Start; idx <= pr.End; idx++ {
		page := doc.Page(idx)
		if page == nil {
			continue
		}
		image, err := p.renderer.Render(doc.Path, idx, dpi)
		if err != nil {
			return compare.PathResult{}, err
		}
		tokens, metrics, err := tokenizer.Tokenize(ctx, image)
		if err != nil {
			return compare.PathResult{}, err
		}
		if compare.ShouldRetryDpi(metrics.Mean) {
			dpi = pdfdoc.RetryDPI
			image, err = p.renderer.Render(doc.Path, idx, dpi)
			if err == nil {
				tokens, metrics, err = tokenizer.Tokenize(ctx, image)
				if err != nil {
					return compare.PathResult{}, err
				}
			}
		}
		rows := layout.GroupRows(tokens, page.Height)
		segments := layout.Segmentize(rows, page.Height)
		pages = append(pages, pageLayout{page: page, rows: rows, segments: segments})
		allMetrics = append(allMetrics, metrics)
	}
	if len(pages) == 0 {
		return compare.PathResult{}, model.NewTokenizationEmpty(pr.Start, model.SourceOcr)
	}

	metrics := averageMetrics(allMetrics)
	textQuality := compare.TextQualityFromOcrMetrics(metrics)
	result := p.buildInvoice(pages, pr, model.SourceOcr, textQuality, metrics, dpi)
	return result, nil
}

func averageMetrics(all []tokenize.PageMetrics) tokenize.PageMetrics {
	if len(all) == 0 {
		return tokenize.PageMetrics{}
	}
	var mean, median, low float64
	for _, m := range all {
		mean += m.Mean
		median += m.Median
		low += m.LowConfFraction
	}
	n := float64(len(all))
	return tokenize.PageMetrics{Mean: mean / n, Median: median / n, LowConfFraction: low / n}
}

// buildInvoice runs header/line/footer extraction and calibration over an
// already-tokenized, already-laid-out set of pages for one logical invoice.
func (p *Pipeline) buildInvoice(pages []pageLayout, pr model.PageRange, source model.ExtractionSource, textQuality float64, metrics tokenize.PageMetrics, dpi int) compare.PathResult {
	first := pages[0]
	last := pages[len(pages)-1]

	candidates := header.GenerateCandidates(first.page, first.segments)
	selection := header.Select(candidates)
	invoiceNumber := selection.Value
	if selection.Winner != nil {
		invoiceNumber = header.PrefixRepair(selection.Value, first.page.Tokens)
	}
	invoiceNumberRaw := selection.Score
	invoiceNumberConfidence := calibration.Calibrate(p.invoiceNumberModel, invoiceNumberRaw)

	supplier := header.ExtractSupplier(first.segments)
	reference := header.ExtractReference(first.segments)
	invoiceDate := extractDate(first.segments)

	var allItemRows []model.Row
	for _, pl := range pages {
		allItemRows = append(allItemRows, rowsOfKind(pl.segments, model.SegmentItems)...)
	}
	lines := lineitem.ParseRows(allItemRows, first.page.Width)
	linesSum := sumDecimals(lines)

	footerRows := rowsOfKind(last.segments, model.SegmentFooter)
	footerCandidates := footer.GenerateCandidates(footerRows)

	var bestCandidate *footer.Candidate
	var bestCalibrated float64
	var bestValidation bool
	scored := make([]footer.Candidate, 0, len(footerCandidates))
	for _, c := range footerCandidates {
		raw, validated := footer.ScoreCandidate(c, footer.ScoreParams{
			LinesSum:       linesSum,
			FooterRowCount: len(footerRows),
		})
		c.Score = raw
		c.ValidationPassed = validated
		scored = append(scored, c)
		calibrated := calibration.Calibrate(p.totalModel, raw)
		if bestCandidate == nil || calibrated > bestCalibrated {
			cc := c
			bestCandidate = &cc
			bestCalibrated = calibrated
			bestValidation = validated
		}
	}

	hdr := model.InvoiceHeader{
		InvoiceDate: invoiceDate,
		Supplier:    supplier,
		Reference:   reference,
	}
	if invoiceNumberConfidence >= criticalFieldGate {
		hdr.InvoiceNumber = invoiceNumber
	}
	hdr.InvoiceNumberConfidence = invoiceNumberConfidence
	hdr.InvoiceNumberTied = selection.Tied
	if selection.Winner != nil {
		trace := header.BuildTraceability(*selection.Winner, selection.Winner.Value)
		hdr.InvoiceNumberTrace = &trace
	}

	var total decimal.Decimal
	if bestCandidate != nil {
		total = bestCandidate.Value
		hdr.TotalConfidence = bestCalibrated
		if bestCalibrated >= criticalFieldGate {
			hdr.Total = total
		}
		bbox := model.Rect{}
		if len(bestCandidate.Row.Tokens) > 0 {
			bbox = bestCandidate.Row.Tokens[0].BBox
		}
		trace := model.NewTraceability("total", total.String(), last.page.Index, bbox, bestCandidate.RowIndex, bestCandidate.Row.Text, nil)
		hdr.TotalTrace = &trace
	}
	hdr.TotalCandidates = topCandidates(scored, p.totalModel, 5)

	if p.patterns != nil && supplier != "" {
		applyPatternBoost(p.patterns, &hdr, total, supplier, footerSignatureOf(footerRows))
	}

	validation := reconcile.Reconcile(reconcile.Input{
		InvoiceNumberConfidence: hdr.InvoiceNumberConfidence,
		TotalConfidence:         hdr.TotalConfidence,
		HasInvoiceNumberTrace:   hdr.InvoiceNumberTrace != nil,
		HasTotalTrace:           hdr.TotalTrace != nil,
		Total:                   total,
		Lines:                   lines,
	})

	invoice := model.VirtualInvoice{
		Pages:            pr,
		Header:           hdr,
		Lines:            lines,
		Validation:       validation,
		ExtractionSource: source,
		ExtractionDetail: model.ExtractionDetail{
			MethodUsed:      source,
			Dpi:             dpi,
			PdfTextQuality:  textQuality,
			OcrTextQuality:  textQuality,
			OcrMean:         metrics.Mean,
			OcrMedian:       metrics.Median,
			LowConfFraction: metrics.LowConfFraction,
		},
	}
	if source == model.SourceEmbedded {
		invoice.ExtractionDetail.OcrTextQuality = 0
	} else {
		invoice.ExtractionDetail.PdfTextQuality = 0
	}

	return compare.PathResult{
		Source:                  source,
		Invoice:                 invoice,
		InvoiceNumberConfidence: hdr.InvoiceNumberConfidence,
		TotalConfidence:         hdr.TotalConfidence,
		ValidationPassed:        bestValidation,
		TextQuality:             textQuality,
		OcrMetrics:              metrics,
		DpiUsed:                 dpi,
	}
}

func rowsOfKind(segments []model.Segment, kind model.SegmentKind) []model.Row {
	var rows []model.Row
	for _, seg := range segments {
		if seg.Kind == kind {
			rows = append(rows, seg.Rows...)
		}
	}
	return rows
}

func extractDate(segments []model.Segment) string {
	for _, seg := range segments {
		for _, row := range seg.Rows {
			if m := headerDatePattern.FindString(row.Text); m != "" {
				return header.NormalizeDate(m)
			}
		}
	}
	return ""
}

func footerSignatureOf(rows []model.Row) string {
	if len(rows) == 0 {
		return ""
	}
	return rows[len(rows)-1].Text
}

func applyPatternBoost(store *patternstore.Store, hdr *model.InvoiceHeader, total decimal.Decimal, supplier, footerSignature string) {
	normalized := patternstore.NormalizeSupplier(supplier)
	layoutHash := patternstore.LayoutHash(normalized, footerSignature)
	if hdr.TotalTrace == nil {
		return
	}
	pattern, similarity, found := store.Match(normalized, layoutHash, hdr.TotalTrace.BBox)
	if !found || similarity < patternstore.MinSimilarity {
		return
	}
	boosted := hdr.TotalConfidence + pattern.Boost
	if boosted > 1 {
		boosted = 1
	}
	hdr.TotalConfidence = boosted
	if boosted >= criticalFieldGate {
		hdr.Total = total
	}
	_ = store.RecordUsage(pattern)
}

func topCandidates(scored []footer.Candidate, calModel *calibration.Model, n int) []model.TotalCandidate {
	top := footer.TopN(scored, n)
	out := make([]model.TotalCandidate, 0, len(top))
	for _, c := range top {
		out = append(out, model.TotalCandidate{
			Value:            c.Value,
			RawScore:         c.Score,
			CalibratedScore:  calibration.Calibrate(calModel, c.Score),
			Class:            c.Class,
			ValidationPassed: c.ValidationPassed,
		})
	}
	return out
}

// criticalFieldGate mirrors header.HardGate/reconcile.HardGate.
const criticalFieldGate = 0.95
