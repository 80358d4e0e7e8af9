package lineitem_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/faktura-processor/internal/lineitem"
	"github.com/rezonia/faktura-processor/internal/model"
)

func tok(text string, x float64) model.Token {
	return model.Token{Text: text, BBox: model.Rect{X: x, W: 10, H: 10}}
}

func TestParseRows_BasicLine(t *testing.T) {
	rows := []model.Row{
		{Text: "1 Produkt A st 100,00 100,00", XStart: 10, Tokens: []model.Token{
			tok("1", 10), tok("Produkt", 30), tok("A", 60), tok("st", 80), tok("100,00", 120), tok("100,00", 180),
		}},
	}
	lines := lineitem.ParseRows(rows, 600)
	require.Len(t, lines, 1)
	assert.Equal(t, 1, lines[0].LineNumber)
	assert.True(t, lines[0].Total.Equal(decimal.RequireFromString("100.00")))
	require.NotNil(t, lines[0].Quantity)
	assert.Equal(t, "st", lines[0].Unit)
}

func TestParseRows_StopsOnHardKeyword(t *testing.T) {
	rows := []model.Row{
		{Text: "1 Produkt A 100,00", XStart: 10, Tokens: []model.Token{tok("1", 10), tok("100,00", 120)}},
		{Text: "Att betala 100,00", XStart: 10, Tokens: []model.Token{tok("Att", 10), tok("betala", 40), tok("100,00", 120)}},
		{Text: "2 Produkt B 200,00", XStart: 10, Tokens: []model.Token{tok("2", 10), tok("200,00", 120)}},
	}
	lines := lineitem.ParseRows(rows, 600)
	require.Len(t, lines, 1)
	assert.Equal(t, "1 Produkt A 100,00", rowsToText(lines[0]))
}

func TestParseRows_SoftKeywordOnlyStopsWithAmount(t *testing.T) {
	rows := []model.Row{
		{Text: "1 Produkt A 100,00", XStart: 10, Tokens: []model.Token{tok("1", 10), tok("100,00", 120)}},
		{Text: "Bifogad spec", XStart: 10, Tokens: []model.Token{tok("Bifogad", 10), tok("spec", 40)}},
		{Text: "2 Produkt B 200,00", XStart: 10, Tokens: []model.Token{tok("2", 10), tok("200,00", 120)}},
	}
	lines := lineitem.ParseRows(rows, 600)
	// "Bifogad spec" has no amount, so it does not stop the scan.
	assert.Len(t, lines, 2)
}

func TestParseRows_MergesWrapRows(t *testing.T) {
	rows := []model.Row{
		{Text: "1 Produkt A 100,00", XStart: 10, Tokens: []model.Token{tok("1", 10), tok("100,00", 120)}},
		{Text: "tillägg beskrivning", XStart: 12, Tokens: []model.Token{tok("tillägg", 12)}},
	}
	lines := lineitem.ParseRows(rows, 600)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0].Description, "tillägg")
}

func rowsToText(line model.InvoiceLine) string {
	if len(line.Rows) == 0 {
		return ""
	}
	return line.Rows[0].Text
}
