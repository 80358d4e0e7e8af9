package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/faktura-processor/internal/report"
	"github.com/rezonia/faktura-processor/pkg/invoicelib"
)

var (
	outputFile   string
	batchTimeout time.Duration
)

var processCmd = &cobra.Command{
	Use:   "process [files or directories...]",
	Short: "Process invoice PDFs",
	Long: `Process one or more invoice PDFs (or directories of PDFs) and extract
structured, reconciled invoice data.

Examples:
  faktura-processor process invoice.pdf
  faktura-processor process invoices/ -o report.json
  faktura-processor process *.pdf -f table`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	processCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "Overall batch timeout")
}

func runProcess(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no PDF files found to process")
	}
	printVerbose("Found %d files to process\n", len(files))

	opts := invoicelib.DefaultPipelineOptions()
	opts.AiAPIKey = resolved.AiAPIKey
	opts.AiBaseURL = resolved.AiBaseURL
	opts.AiTextModel = resolved.AiTextModel
	opts.AiVisionModel = resolved.AiVisionModel
	opts.PatternStorePath = resolved.PatternStorePath
	opts.TotalCalibrationPath = calibrationTotal
	opts.InvoiceNumberCalibrationPath = calibrationNumber
	opts.Workers = resolved.Workers

	processor, err := invoicelib.NewProcessor(opts)
	if err != nil {
		return fmt.Errorf("failed to build processor: %w", err)
	}

	if opts.AiAPIKey != "" {
		printVerbose("AI fallback enabled (text: %s, vision: %s)\n", opts.AiTextModel, opts.AiVisionModel)
	}

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	runReport := processor.ProcessBatch(ctx, files)

	return outputReport(runReport)
}

func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", arg, err)
		}

		if len(matches) == 0 {
			info, err := os.Stat(arg)
			if err != nil {
				return nil, fmt.Errorf("file not found: %s", arg)
			}
			if info.IsDir() {
				err := filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
					if err != nil {
						return err
					}
					if !info.IsDir() && isPDF(path) {
						files = append(files, path)
					}
					return nil
				})
				if err != nil {
					return nil, err
				}
			} else {
				files = append(files, arg)
			}
			continue
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				continue
			}
			if !info.IsDir() && isPDF(match) {
				files = append(files, match)
			}
		}
	}

	return files, nil
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

func outputReport(r *invoicelib.RunReport) error {
	var writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		writer = f
	}

	switch outputFormat {
	case "json":
		return report.WriteJSON(writer, r)
	case "csv":
		return report.WriteCSV(writer, r)
	case "table":
		return outputTable(writer, r)
	default:
		return fmt.Errorf("unsupported output format: %s", outputFormat)
	}
}

// outputTable renders a row-per-line-item export as an aligned text table:
// one row per InvoiceLine, annotated with the owning invoice's header facts
// and trust status. Unlike WriteCSV it has no quantity, unit, unit-price or
// error columns; a failed file's error goes in the invoice-number column.
func outputTable(w *os.File, r *invoicelib.RunReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tINVOICE NUMBER\tSUPPLIER\tDATE\tREFERENCE\tLINE\tDESCRIPTION\tLINE TOTAL\tINV# CONF\tTOTAL CONF\tSTATUS\tLINES SUM\tDIFF\tSOURCE")

	for _, f := range r.Files {
		if f.Err != "" {
			fmt.Fprintf(tw, "%s\tERROR: %s\t\t\t\t\t\t\t\t\t\t\t\n", f.Path, f.Err)
			continue
		}
		for _, inv := range f.Invoices {
			if inv == nil {
				continue
			}
			outputInvoiceRows(tw, f.Path, inv)
		}
	}

	return tw.Flush()
}

func outputInvoiceRows(tw *tabwriter.Writer, path string, inv *invoicelib.VirtualInvoice) {
	trailer := func(w io.Writer) {
		fmt.Fprintf(w, "%.2f\t%.2f\t%s\t%s\t%s\t%s\n",
			inv.Header.InvoiceNumberConfidence,
			inv.Header.TotalConfidence,
			inv.Validation.Status.String(),
			inv.Validation.LinesSum.String(),
			inv.Validation.Diff.String(),
			inv.ExtractionSource.String(),
		)
	}

	if len(inv.Lines) == 0 {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\t\t\t",
			path, inv.Header.InvoiceNumber, inv.Header.Supplier, inv.Header.InvoiceDate, inv.Header.Reference)
		trailer(tw)
		return
	}

	for _, line := range inv.Lines {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t",
			path, inv.Header.InvoiceNumber, inv.Header.Supplier, inv.Header.InvoiceDate, inv.Header.Reference,
			line.LineNumber, line.Description, line.Total.String())
		trailer(tw)
	}
}
