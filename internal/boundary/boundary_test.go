package boundary_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/faktura-processor/internal/boundary"
	"github.com/rezonia/faktura-processor/internal/model"
)

type fakeScorer struct {
	scores map[int]float64
}

func (f fakeScorer) BestInvoiceNumberScore(page *model.Page) float64 {
	return f.scores[page.Index]
}

func TestDetect_SinglePageDocument(t *testing.T) {
	doc := &model.Document{PageCount: 1, Pages: []*model.Page{{Index: 1}}}
	ranges := boundary.Detect(doc, nil)
	require.Len(t, ranges, 1)
	assert.Equal(t, model.PageRange{Start: 1, End: 1}, ranges[0])
}

func TestDetect_SplitsOnStrongCandidateScore(t *testing.T) {
	doc := &model.Document{
		PageCount: 2,
		Pages: []*model.Page{
			{Index: 1, Rows: []model.Row{{Text: "Faktura 2024-1001"}}},
			{Index: 2, Rows: []model.Row{{Text: "Faktura 2024-1002"}}},
		},
	}
	scorer := fakeScorer{scores: map[int]float64{2: 0.7}}

	ranges := boundary.Detect(doc, scorer)
	require.Len(t, ranges, 2)
	assert.Equal(t, model.PageRange{Start: 1, End: 1}, ranges[0])
	assert.Equal(t, model.PageRange{Start: 2, End: 2}, ranges[1])
}

func TestDetect_SplitsOnDateAndAmountShareRow(t *testing.T) {
	doc := &model.Document{
		PageCount: 2,
		Pages: []*model.Page{
			{Index: 1, Rows: []model.Row{{Text: "Faktura 2024-1001"}}},
			{Index: 2, Rows: []model.Row{{Text: "Faktura 2024-01-15 12 500,00"}}},
		},
	}
	ranges := boundary.Detect(doc, fakeScorer{})
	require.Len(t, ranges, 2)
}

func TestDetect_RejectsBareKeywordWithUnrelatedAlphanumerics(t *testing.T) {
	doc := &model.Document{
		PageCount: 2,
		Pages: []*model.Page{
			{Index: 1, Rows: []model.Row{{Text: "Faktura 2024-1001"}}},
			{Index: 2, Rows: []model.Row{{Text: "Faktura ABC123XYZ ref9988"}}},
		},
	}
	ranges := boundary.Detect(doc, fakeScorer{scores: map[int]float64{2: 0.3}})
	// No strong signal on page 2 -> no split, single invoice covering both pages.
	require.Len(t, ranges, 1)
	assert.Equal(t, model.PageRange{Start: 1, End: 2}, ranges[0])
}

func TestDetect_NoPages(t *testing.T) {
	doc := &model.Document{}
	assert.Nil(t, boundary.Detect(doc, nil))
}
