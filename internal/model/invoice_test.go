package model_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/faktura-processor/internal/model"
)

func TestTraceability_ExcerptTruncation(t *testing.T) {
	long := ""
	for i := 0; i < 200; i++ {
		long += "x"
	}
	tr := model.NewTraceability("total", "12 500,00", 1, model.Rect{}, 3, long, nil)
	assert.Len(t, tr.Excerpt, 120)
}

func TestRect_Union(t *testing.T) {
	a := model.Rect{X: 0, Y: 0, W: 10, H: 10}
	b := model.Rect{X: 5, Y: 5, W: 10, H: 10}
	u := a.Union(b)
	assert.Equal(t, model.Rect{X: 0, Y: 0, W: 15, H: 15}, u)
}

func TestDocument_Page_OutOfRange(t *testing.T) {
	doc := &model.Document{Pages: []*model.Page{{Index: 1}, {Index: 2}}, PageCount: 2}
	require.NotNil(t, doc.Page(1))
	assert.Nil(t, doc.Page(0))
	assert.Nil(t, doc.Page(3))
}

func TestRunReport_AppendFile_BuildsQueueInDiscoveryOrder(t *testing.T) {
	report := &model.RunReport{}

	ok := &model.VirtualInvoice{ID: "inv-1", Validation: model.ValidationResult{Status: model.StatusOK}}
	review := &model.VirtualInvoice{
		ID:         "inv-2",
		Header:     model.InvoiceHeader{InvoiceNumber: "", Supplier: "Acme AB"},
		Validation: model.ValidationResult{Status: model.StatusReview},
	}

	report.AppendFile(model.FileResult{Path: "a.pdf", Invoices: []*model.VirtualInvoice{ok, review}})

	require.Len(t, report.ValidationQueue, 1)
	assert.Equal(t, "inv-2", report.ValidationQueue[0].InvoiceID)
	require.NotNil(t, report.Validation)
	assert.Equal(t, "inv-2", report.Validation.InvoiceID)
}

func TestNewOcrToken_DropsNegativeConfidence(t *testing.T) {
	_, ok := model.NewOcrToken("100,00", model.Rect{}, -1)
	assert.False(t, ok)

	tok, ok := model.NewOcrToken("100,00", model.Rect{}, 87.5)
	require.True(t, ok)
	require.NotNil(t, tok.Confidence)
	assert.Equal(t, 87.5, *tok.Confidence)
}

func TestInvoiceLine_TotalIsDecimal(t *testing.T) {
	line := model.InvoiceLine{LineNumber: 1, Total: decimal.RequireFromString("199.00")}
	assert.True(t, line.Total.Equal(decimal.RequireFromString("199.00")))
}

func TestParseError_style_errors_wrap_cause(t *testing.T) {
	cause := assert.AnError
	err := model.NewAiError("extract_total_text", "malformed json", cause)

	require.Contains(t, err.Error(), "extract_total_text")
	require.ErrorIs(t, err, cause)
}

func TestValidationError(t *testing.T) {
	err := model.NewValidationError("invoice_number", "12345", "length", "must be 3-25 chars")

	require.Contains(t, err.Error(), "invoice_number")
	require.Contains(t, err.Error(), "12345")
	require.Contains(t, err.Error(), "3-25 chars")
}
