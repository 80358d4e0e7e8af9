// Package footer generates and scores total-amount candidates from the
// footer segment, and implements the AI trigger/acceptance rules around it.
package footer

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rezonia/faktura-processor/internal/model"
	"github.com/rezonia/faktura-processor/internal/money"
)

var withVatKeywords = []string{
	"att betala", "inkl moms", "inklusive moms", "slutsumma", "summa att betala",
	"totalsumma", "totalt att betala", "belopp att betala",
}
var genericKeywords = []string{"total", "totalt", "summa"}
var withoutVatKeywords = []string{
	"exkl moms", "exklusive moms", "delsumma", "netto att betala", "nettobelopp",
}

// Candidate is a scored total-amount candidate, pre-calibration.
type Candidate struct {
	Value    decimal.Decimal
	Class    model.KeywordClass
	RowIndex int
	Row      model.Row
	Score    float64
	ValidationPassed bool
}

// The eight weights sum to 1.05; ScoreCandidate clamps the total to [0, 1].
const (
	WeightKeywordClass    = 0.32
	WeightPosition        = 0.18
	WeightMathValidation  = 0.32
	WeightRelativeSize    = 0.08
	WeightFontSignal      = 0.05
	WeightVatProximity    = 0.05
	WeightCurrencySymbol  = 0.03
	WeightRowIsolation    = 0.02
)

// GenerateCandidates builds one candidate per amount-like footer token, with
// no top-N clipping at generation time.
func GenerateCandidates(footerRows []model.Row) []Candidate {
	var candidates []Candidate
	for i, row := range footerRows {
		for _, tok := range row.Tokens {
			if !money.LooksLikeAmount(tok.Text) {
				continue
			}
			val, err := money.ParseSwedish(tok.Text)
			if err != nil {
				continue
			}
			candidates = append(candidates, Candidate{
				Value:    val,
				Class:    classify(row.Text),
				RowIndex: i,
				Row:      row,
			})
		}
	}
	return candidates
}

func classify(rowText string) model.KeywordClass {
	lower := strings.ToLower(rowText)
	if containsAny(lower, withVatKeywords) {
		return model.KeywordWithVat
	}
	if containsAny(lower, withoutVatKeywords) {
		return model.KeywordWithoutVat
	}
	if containsAny(lower, genericKeywords) {
		return model.KeywordGeneric
	}
	return model.KeywordNone
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// ScoreParams bundles the context ScoreCandidate needs beyond the candidate
// itself: the lines sum it's validated against, footer geometry for the
// position/isolation/font factors.
type ScoreParams struct {
	LinesSum        decimal.Decimal
	FooterRowCount  int
	FooterAvgFontSize float64
	CandidateFontSize float64
	RowSpacing      float64 // vertical spacing above this row
	MedianRowHeight float64
	NearVatRow      bool // within 1-3 rows of a "moms" row
	HasCurrencySymbol bool
	IsLargestInFooter bool
}

// ScoreCandidate applies the eight-factor weighted model.
func ScoreCandidate(c Candidate, p ScoreParams) (float64, bool) {
	score := 0.0
	score += WeightKeywordClass * keywordClassScore(c.Class)
	score += WeightPosition * positionScore(c.RowIndex, p.FooterRowCount)

	mathScore, validationPassed := mathValidationScore(c.Value, p.LinesSum)
	score += WeightMathValidation * mathScore

	if p.IsLargestInFooter {
		score += WeightRelativeSize
	}
	if p.FooterAvgFontSize > 0 && p.CandidateFontSize >= p.FooterAvgFontSize*1.10 {
		score += WeightFontSignal
	}
	if p.NearVatRow {
		score += WeightVatProximity
	}
	if p.HasCurrencySymbol {
		score += WeightCurrencySymbol
	}
	if p.MedianRowHeight > 0 && p.RowSpacing >= p.MedianRowHeight*1.5 {
		score += WeightRowIsolation
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, validationPassed
}

func keywordClassScore(class model.KeywordClass) float64 {
	switch class {
	case model.KeywordWithVat:
		return 1.0
	case model.KeywordGeneric:
		return 0.6
	case model.KeywordWithoutVat:
		return -0.5
	default:
		return 0.3
	}
}

func positionScore(rowIndex, footerRowCount int) float64 {
	if footerRowCount <= 1 {
		return 1.0
	}
	// right-alignment/position in footer: later rows score higher
	return float64(rowIndex) / float64(footerRowCount-1)
}

// mathValidationScore grades the candidate against Σ line totals: full
// credit within tolerance, graded partial credit for near-matches.
func mathValidationScore(value, linesSum decimal.Decimal) (float64, bool) {
	diff := value.Sub(linesSum).Abs()
	tol := money.Tolerance(value)
	if diff.LessThanOrEqual(tol) {
		return 1.0, true
	}
	if diff.LessThanOrEqual(decimal.NewFromInt(5)) {
		return 0.25, false
	}
	if diff.LessThanOrEqual(decimal.NewFromInt(50)) {
		return 0.15, false
	}
	return 0.0, false
}

// TopN returns the top n candidates by score, descending. Used to persist
// the top-5 in the header for the review UI.
func TopN(candidates []Candidate, n int) []Candidate {
	sorted := append([]Candidate(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// ShouldTriggerAI reports whether the AI fallback should be invoked for the
// total field: no candidates at all, or the best calibrated score < 0.95.
func ShouldTriggerAI(aiEnabled bool, candidates []Candidate, bestCalibratedScore float64) bool {
	if !aiEnabled {
		return false
	}
	return len(candidates) == 0 || bestCalibratedScore < 0.95
}

// AiResult is the outcome of an AI total-extraction call.
type AiResult struct {
	Amount           decimal.Decimal
	Confidence       float64
	ValidationPassed bool
}

// AcceptAiResult applies the post-AI acceptance rule: use the AI result when
// its confidence beats the heuristic top score, or when it passes validation
// and is within 0.05 of the heuristic top.
func AcceptAiResult(ai AiResult, heuristicTopScore float64) bool {
	if ai.Confidence > heuristicTopScore {
		return true
	}
	if ai.ValidationPassed && (heuristicTopScore-ai.Confidence) <= 0.05 {
		return true
	}
	return false
}

// ImplausibleLinesSumBoost detects the override case where Σ lines is
// implausible relative to the AI total, and returns the boosted confidence
// (capped at 1.0) plus whether validation should be marked passed.
func ImplausibleLinesSumBoost(aiAmount, linesSum decimal.Decimal, baseConfidence float64) (float64, bool) {
	diff := aiAmount.Sub(linesSum).Abs()
	threshold := decimal.Max(decimal.NewFromInt(500), aiAmount.Mul(decimal.NewFromFloat(0.15)))

	implausible := diff.GreaterThan(threshold) ||
		(linesSum.LessThan(decimal.NewFromInt(100)) && aiAmount.GreaterThan(decimal.NewFromInt(1000)))

	if !implausible {
		return baseConfidence, false
	}

	boosted := baseConfidence + 0.10
	if aiAmount.Equal(linesSum) {
		boosted += 0.10
	}
	if boosted > 1.0 {
		boosted = 1.0
	}
	return boosted, true
}
