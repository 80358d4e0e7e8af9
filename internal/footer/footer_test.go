package footer_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/faktura-processor/internal/footer"
	"github.com/rezonia/faktura-processor/internal/model"
)

func TestGenerateCandidates_OneCandidatePerAmountToken(t *testing.T) {
	rows := []model.Row{
		{Text: "Att betala 12 500,00", Tokens: []model.Token{{Text: "Att"}, {Text: "betala"}, {Text: "12 500,00"}}},
	}
	candidates := footer.GenerateCandidates(rows)
	require.Len(t, candidates, 1)
	assert.Equal(t, model.KeywordWithVat, candidates[0].Class)
	assert.True(t, candidates[0].Value.Equal(decimal.RequireFromString("12500.00")))
}

func TestScoreCandidate_FullCreditWithinTolerance(t *testing.T) {
	c := footer.Candidate{Value: decimal.RequireFromString("12500.00"), Class: model.KeywordWithVat}
	params := footer.ScoreParams{LinesSum: decimal.RequireFromString("12500.00"), FooterRowCount: 1}

	score, passed := footer.ScoreCandidate(c, params)
	assert.True(t, passed)
	assert.Greater(t, score, 0.7)
}

func TestScoreCandidate_WithoutVatPenalized(t *testing.T) {
	withVat := footer.Candidate{Value: decimal.RequireFromString("12500.00"), Class: model.KeywordWithVat}
	withoutVat := footer.Candidate{Value: decimal.RequireFromString("12500.00"), Class: model.KeywordWithoutVat}
	params := footer.ScoreParams{LinesSum: decimal.RequireFromString("12500.00"), FooterRowCount: 1}

	scoreWith, _ := footer.ScoreCandidate(withVat, params)
	scoreWithout, _ := footer.ScoreCandidate(withoutVat, params)
	assert.Greater(t, scoreWith, scoreWithout)
}

func TestShouldTriggerAI(t *testing.T) {
	assert.True(t, footer.ShouldTriggerAI(true, nil, 0))
	assert.False(t, footer.ShouldTriggerAI(false, nil, 0))
	assert.True(t, footer.ShouldTriggerAI(true, []footer.Candidate{{}}, 0.80))
	assert.False(t, footer.ShouldTriggerAI(true, []footer.Candidate{{}}, 0.96))
}

func TestAcceptAiResult_HigherConfidenceWins(t *testing.T) {
	ai := footer.AiResult{Confidence: 0.97}
	assert.True(t, footer.AcceptAiResult(ai, 0.90))
}

func TestAcceptAiResult_ValidationPassedWithinMargin(t *testing.T) {
	ai := footer.AiResult{Confidence: 0.86, ValidationPassed: true}
	assert.True(t, footer.AcceptAiResult(ai, 0.90))
}

func TestAcceptAiResult_RejectedWhenBothFail(t *testing.T) {
	ai := footer.AiResult{Confidence: 0.5, ValidationPassed: false}
	assert.False(t, footer.AcceptAiResult(ai, 0.90))
}

func TestImplausibleLinesSumBoost_AppliesOverride(t *testing.T) {
	boosted, implausible := footer.ImplausibleLinesSumBoost(
		decimal.RequireFromString("12500.00"),
		decimal.RequireFromString("50.00"),
		0.80,
	)
	assert.True(t, implausible)
	assert.InDelta(t, 0.90, boosted, 0.001)
}

func TestImplausibleLinesSumBoost_ExactMatchAddsSecondBoost(t *testing.T) {
	boosted, implausible := footer.ImplausibleLinesSumBoost(
		decimal.RequireFromString("12500.00"),
		decimal.RequireFromString("12500.00").Add(decimal.RequireFromString("600")),
		0.80,
	)
	_ = implausible
	assert.LessOrEqual(t, boosted, 1.0)
}

func TestTopN_LimitsAndSortsDescending(t *testing.T) {
	candidates := []footer.Candidate{{Score: 0.5}, {Score: 0.9}, {Score: 0.7}}
	top := footer.TopN(candidates, 2)
	require.Len(t, top, 2)
	assert.Equal(t, 0.9, top[0].Score)
	assert.Equal(t, 0.7, top[1].Score)
}
