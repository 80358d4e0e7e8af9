package pipeline

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/faktura-processor/internal/footer"
	"github.com/rezonia/faktura-processor/internal/model"
	"github.com/rezonia/faktura-processor/internal/pdfdoc"
	"github.com/rezonia/faktura-processor/internal/tokenize"
)

type fakeEmbeddedExtractor struct {
	runs []tokenize.TextRun
	err  error
}

func (f fakeEmbeddedExtractor) Extract(path string, pageIndex int) ([]tokenize.TextRun, error) {
	return f.runs, f.err
}

type fakeOcrEngine struct {
	words []tokenize.WordRecord
	err   error
}

func (f fakeOcrEngine) Recognize(ctx context.Context, image model.ImageHandle) ([]tokenize.WordRecord, error) {
	return f.words, f.err
}

func TestDetectFormat_PDF(t *testing.T) {
	assert.Equal(t, FormatPDF, DetectFormat([]byte("%PDF-1.7 rest of file")))
}

func TestDetectFormat_Unknown(t *testing.T) {
	assert.Equal(t, FormatUnknown, DetectFormat([]byte("not a pdf")))
}

func TestFormat_String(t *testing.T) {
	assert.Equal(t, "pdf", FormatPDF.String())
	assert.Equal(t, "unknown", FormatUnknown.String())
}

func TestNewPipeline_DefaultsToFourWorkers(t *testing.T) {
	p := NewPipeline()
	assert.Equal(t, 4, p.workers)
}

func TestNewPipeline_WithWorkersOverridesDefault(t *testing.T) {
	p := NewPipeline(WithWorkers(8))
	assert.Equal(t, 8, p.workers)
}

func TestNewPipeline_WithWorkersIgnoresNonPositive(t *testing.T) {
	p := NewPipeline(WithWorkers(-1))
	assert.Equal(t, 4, p.workers)
}

func TestNewPipeline_WithEmbeddedTextExtractor(t *testing.T) {
	ex := fakeEmbeddedExtractor{}
	p := NewPipeline(WithEmbeddedTextExtractor(ex))
	assert.NotNil(t, p.textExtractor)
}

func TestNewPipeline_WithOCREngine(t *testing.T) {
	engine := fakeOcrEngine{}
	p := NewPipeline(WithOCREngine(engine))
	assert.NotNil(t, p.ocrEngine)
}

func tokenRow(text string, x, y, w, h float64) tokenize.TextRun {
	return tokenize.TextRun{Text: text, BBox: model.Rect{X: x, Y: y, W: w, H: h}}
}

func TestExtractEmbedded_NoExtractorFails(t *testing.T) {
	p := NewPipeline()
	doc := &model.Document{Path: "x.pdf", Pages: []*model.Page{{Index: 1, Width: 600, Height: 800}}}
	_, err := p.extractEmbedded(doc, model.PageRange{Start: 1, End: 1})
	require.Error(t, err)
}

func TestExtractEmbedded_EmptyPageYieldsTokenizationEmpty(t *testing.T) {
	p := NewPipeline(WithEmbeddedTextExtractor(fakeEmbeddedExtractor{}))
	doc := &model.Document{Path: "x.pdf", Pages: []*model.Page{{Index: 1, Width: 600, Height: 800}}}
	result, err := p.extractEmbedded(doc, model.PageRange{Start: 1, End: 1})
	require.NoError(t, err)
	assert.Equal(t, model.SourceEmbedded, result.Source)
}

func TestExtractOcr_NoCollaboratorsFails(t *testing.T) {
	p := NewPipeline()
	doc := &model.Document{Path: "x.pdf", Pages: []*model.Page{{Index: 1, Width: 600, Height: 800}}}
	_, err := p.extractOcr(context.Background(), doc, model.PageRange{Start: 1, End: 1})
	require.Error(t, err)
}

func TestRowsOfKind_FiltersBySegmentKind(t *testing.T) {
	segments := []model.Segment{
		{Kind: model.SegmentHeader, Rows: []model.Row{{Text: "header"}}},
		{Kind: model.SegmentItems, Rows: []model.Row{{Text: "item 1"}, {Text: "item 2"}}},
		{Kind: model.SegmentFooter, Rows: []model.Row{{Text: "footer"}}},
	}
	items := rowsOfKind(segments, model.SegmentItems)
	require.Len(t, items, 2)
	assert.Equal(t, "item 1", items[0].Text)
}

func TestExtractDate_FindsIsoDate(t *testing.T) {
	segments := []model.Segment{
		{Rows: []model.Row{{Text: "Fakturadatum: 2026-03-14"}}},
	}
	assert.Equal(t, "2026-03-14", extractDate(segments))
}

func TestExtractDate_NoMatchReturnsEmpty(t *testing.T) {
	segments := []model.Segment{{Rows: []model.Row{{Text: "no date here"}}}}
	assert.Equal(t, "", extractDate(segments))
}

func TestFooterSignatureOf_LastRowText(t *testing.T) {
	rows := []model.Row{{Text: "first"}, {Text: "last"}}
	assert.Equal(t, "last", footerSignatureOf(rows))
}

func TestFooterSignatureOf_EmptyRows(t *testing.T) {
	assert.Equal(t, "", footerSignatureOf(nil))
}

func TestSumDecimals(t *testing.T) {
	lines := []model.InvoiceLine{
		{Total: decimal.NewFromInt(100)},
		{Total: decimal.NewFromInt(250)},
	}
	assert.True(t, decimal.NewFromInt(350).Equal(sumDecimals(lines)))
}

func TestTopCandidates_SortsAndCalibrates(t *testing.T) {
	scored := []footer.Candidate{
		{Value: decimal.NewFromInt(100), Score: 0.2},
		{Value: decimal.NewFromInt(500), Score: 0.9},
	}
	out := topCandidates(scored, nil, 5)
	require.Len(t, out, 2)
	assert.True(t, out[0].Value.Equal(decimal.NewFromInt(500)))
	// a nil calibration model passes the raw score through
	assert.InDelta(t, 0.9, out[0].CalibratedScore, 1e-9)
}

func TestApplyPatternBoost_NoTraceIsNoop(t *testing.T) {
	hdr := &model.InvoiceHeader{TotalConfidence: 0.5}
	applyPatternBoost(nil, hdr, decimal.NewFromInt(100), "acme", "sig")
	assert.Equal(t, 0.5, hdr.TotalConfidence)
}

func TestFooterExcerpt_NilTraceReturnsEmpty(t *testing.T) {
	invoice := &model.VirtualInvoice{}
	assert.Equal(t, "", footerExcerpt(invoice))
}

func TestFooterExcerpt_UsesTraceExcerpt(t *testing.T) {
	invoice := &model.VirtualInvoice{
		Header: model.InvoiceHeader{
			TotalTrace: &model.Traceability{Excerpt: "Total: 1 250,00 kr"},
		},
	}
	assert.Equal(t, "Total: 1 250,00 kr", footerExcerpt(invoice))
}

func TestProcessBatch_EmptyPaths(t *testing.T) {
	p := NewPipeline()
	report := p.ProcessBatch(context.Background(), nil)
	assert.Empty(t, report.Files)
}

func TestProcessFile_OpenFailureReportsErrorNotPanic(t *testing.T) {
	p := NewPipeline()
	result := p.ProcessFile(context.Background(), "/nonexistent/invoice.pdf")
	assert.NotEmpty(t, result.Err)
	assert.Equal(t, "open", result.Stage)
}

func TestLayoutForBoundary_PopulatesRowsFromEmbeddedText(t *testing.T) {
	runs := []tokenize.TextRun{
		{Text: "Faktura", BBox: model.Rect{X: 0, Y: 700, W: 50, H: 12}},
		{Text: "2026-03-14", BBox: model.Rect{X: 60, Y: 700, W: 60, H: 12}},
		{Text: "1 250,00", BBox: model.Rect{X: 130, Y: 700, W: 60, H: 12}},
	}
	p := NewPipeline(WithEmbeddedTextExtractor(fakeEmbeddedExtractor{runs: runs}))
	doc := &model.Document{
		Path:      "x.pdf",
		Pages:     []*model.Page{{Index: 1, Width: 600, Height: 800}, {Index: 2, Width: 600, Height: 800}},
		PageCount: 2,
	}

	p.layoutForBoundary(context.Background(), doc)

	for _, page := range doc.Pages {
		require.NotEmpty(t, page.Rows)
		assert.Equal(t, model.PageEmbeddedText, page.Kind)
	}
}

func TestLayoutForBoundary_NoCollaboratorsLeavesRowsEmpty(t *testing.T) {
	p := NewPipeline()
	doc := &model.Document{Path: "x.pdf", Pages: []*model.Page{{Index: 1, Width: 600, Height: 800}}}
	p.layoutForBoundary(context.Background(), doc)
	assert.Empty(t, doc.Pages[0].Rows)
}

func TestLayoutForBoundary_FallsBackToOcrWhenEmbeddedEmpty(t *testing.T) {
	words := []tokenize.WordRecord{
		{Text: "Faktura", PixelBBox: model.Rect{X: 0, Y: 100, W: 50, H: 20}, Confidence: 95},
	}
	p := NewPipeline(
		WithEmbeddedTextExtractor(fakeEmbeddedExtractor{}),
		WithOCREngine(fakeOcrEngine{words: words}),
		WithRenderer(pdfdoc.FuncRenderer(func(path string, page int, dpi int) ([]byte, int, int, error) {
			return nil, 600, 800, nil
		})),
	)
	doc := &model.Document{Path: "x.pdf", Pages: []*model.Page{{Index: 1, Width: 600, Height: 800}}}

	p.layoutForBoundary(context.Background(), doc)

	require.NotEmpty(t, doc.Pages[0].Rows)
	assert.Equal(t, model.PageScanned, doc.Pages[0].Kind)
}

func TestBuildPageContext_NilPageReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", buildPageContext(nil))
}

func TestBuildPageContext_JoinsSegmentRowsSkippingGarbled(t *testing.T) {
	lowConf := 10.0
	highConf := 95.0
	page := &model.Page{
		Segments: []model.Segment{
			{Rows: []model.Row{
				{Text: "Att betala 1 250,00", Tokens: []model.Token{{Text: "x", Confidence: &highConf}}},
				{Text: "garbled nonsense", Tokens: []model.Token{{Text: "y", Confidence: &lowConf}}},
			}},
		},
	}
	ctx := buildPageContext(page)
	assert.Contains(t, ctx, "Att betala 1 250,00")
	assert.NotContains(t, ctx, "garbled nonsense")
}

func TestIsGarbledRow_NoConfidenceTokensNeverGarbled(t *testing.T) {
	row := model.Row{Tokens: []model.Token{{Text: "plain embedded text"}}}
	assert.False(t, isGarbledRow(row))
}

func TestCandidateStrings_RendersValues(t *testing.T) {
	candidates := []model.TotalCandidate{
		{Value: decimal.NewFromInt(1250)},
		{Value: decimal.NewFromInt(1000)},
	}
	out := candidateStrings(candidates)
	require.Len(t, out, 2)
	assert.Equal(t, "1250", out[0])
}
