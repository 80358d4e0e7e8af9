// Package report serializes a run's RunReport to JSON and CSV, the two
// output formats batch consumers read.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rezonia/faktura-processor/internal/model"
)

// WriteJSON encodes the report as indented JSON, matching the teacher's
// json.Encoder SetIndent convention.
func WriteJSON(w io.Writer, r *model.RunReport) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// csvColumns are the tabular export's columns, per spec.md §1 ("every
// product line becomes one row") and §6's required column list (invoice
// number, supplier, date, reference, line total, calibrated confidences for
// the critical fields, status, lines_sum, diff, extraction_source). The
// file/error columns bookend the row; line-item columns sit between the
// header facts and the trust/status trailer, appended rather than
// interleaved so ordinal-position consumers survive future additions.
var csvColumns = []string{
	"file", "invoice_id", "supplier", "invoice_date", "reference",
	"line_number", "description", "quantity", "unit", "unit_price", "line_total",
	"invoice_number_confidence", "total_confidence",
	"status", "lines_sum", "diff", "extraction_source", "error",
}

// WriteCSV emits the consolidated row-per-line-item tabular export: one row
// per InvoiceLine, annotated with the owning invoice's header facts and
// trust status. Invoices with no parsed lines still get a single row so the
// invoice isn't silently dropped from the export.
func WriteCSV(w io.Writer, r *model.RunReport) error {
	if _, err := fmt.Fprintln(w, strings.Join(csvColumns, ",")); err != nil {
		return err
	}

	for _, f := range r.Files {
		if f.Err != "" {
			blank := make([]string, len(csvColumns)-2) // minus file, error
			if err := writeCSVRow(w, f.Path, blank, f.Err); err != nil {
				return err
			}
			continue
		}
		for _, inv := range f.Invoices {
			if inv == nil {
				continue
			}
			if err := writeInvoiceRows(w, f.Path, inv); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeInvoiceRows(w io.Writer, path string, inv *model.VirtualInvoice) error {
	header := []string{
		escapeCSV(inv.Header.InvoiceNumber),
		escapeCSV(inv.Header.Supplier),
		inv.Header.InvoiceDate,
		escapeCSV(inv.Header.Reference),
	}
	trailer := []string{
		fmt.Sprintf("%.4f", inv.Header.InvoiceNumberConfidence),
		fmt.Sprintf("%.4f", inv.Header.TotalConfidence),
		inv.Validation.Status.String(),
		inv.Validation.LinesSum.String(),
		inv.Validation.Diff.String(),
		inv.ExtractionSource.String(),
	}

	if len(inv.Lines) == 0 {
		fields := append(append([]string{}, header...), "", "", "", "", "", "")
		fields = append(fields, trailer...)
		return writeCSVRow(w, path, fields, "")
	}

	for _, line := range inv.Lines {
		fields := append(append([]string{}, header...),
			fmt.Sprintf("%d", line.LineNumber),
			escapeCSV(line.Description),
			decimalOrEmpty(line.Quantity),
			escapeCSV(line.Unit),
			decimalOrEmpty(line.UnitPrice),
			line.Total.String(),
		)
		fields = append(fields, trailer...)
		if err := writeCSVRow(w, path, fields, ""); err != nil {
			return err
		}
	}
	return nil
}

func writeCSVRow(w io.Writer, path string, middle []string, errMsg string) error {
	row := append([]string{escapeCSV(path)}, middle...)
	row = append(row, escapeCSV(errMsg))
	_, err := fmt.Fprintln(w, strings.Join(row, ","))
	return err
}

func decimalOrEmpty(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return "\"" + strings.ReplaceAll(s, "\"", "\"\"") + "\""
	}
	return s
}
