// Package reconcile computes arithmetic reconciliation between a header's
// total and the sum of its line items, and assigns the final invoice status.
package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/rezonia/faktura-processor/internal/model"
	"github.com/rezonia/faktura-processor/internal/money"
)

// HardGate is the minimum calibrated confidence both critical fields must
// clear for an OK status.
const HardGate = 0.95

// Input bundles everything the status assignment needs.
type Input struct {
	InvoiceNumberConfidence float64
	TotalConfidence         float64
	HasInvoiceNumberTrace   bool
	HasTotalTrace           bool
	Total                   decimal.Decimal
	Lines                   []model.InvoiceLine
	FatalExtractionError    bool
}

// Reconcile computes lines_sum/diff/tolerance and assigns OK/PARTIAL/REVIEW/
// FAILED exactly per the hard-gated correctness rule.
func Reconcile(in Input) model.ValidationResult {
	linesSum := sumLines(in.Lines)
	diff := in.Total.Sub(linesSum)
	tol := money.Tolerance(in.Total)

	var reasons []string

	if in.FatalExtractionError {
		reasons = append(reasons, "fatal_extraction_error")
		return model.ValidationResult{
			Status:   model.StatusFailed,
			LinesSum: linesSum,
			Diff:     diff,
			Tolerance: tol,
			Reasons:  reasons,
		}
	}

	headerGatesPass := in.InvoiceNumberConfidence >= HardGate &&
		in.TotalConfidence >= HardGate &&
		in.HasInvoiceNumberTrace &&
		in.HasTotalTrace

	arithmeticOK := diff.Abs().LessThanOrEqual(tol)

	var status model.Status
	switch {
	case headerGatesPass && arithmeticOK:
		status = model.StatusOK
	case headerGatesPass && !arithmeticOK:
		status = model.StatusPartial
		reasons = append(reasons, "arithmetic_reconciliation_failed")
	default:
		status = model.StatusReview
		if in.InvoiceNumberConfidence < HardGate {
			reasons = append(reasons, "invoice_number_confidence_below_gate")
		}
		if in.TotalConfidence < HardGate {
			reasons = append(reasons, "total_confidence_below_gate")
		}
		if !in.HasInvoiceNumberTrace {
			reasons = append(reasons, "invoice_number_traceability_missing")
		}
		if !in.HasTotalTrace {
			reasons = append(reasons, "total_traceability_missing")
		}
	}

	return model.ValidationResult{
		Status:    status,
		LinesSum:  linesSum,
		Diff:      diff,
		Tolerance: tol,
		Reasons:   reasons,
	}
}

func sumLines(lines []model.InvoiceLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Total)
	}
	return sum
}
