package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/faktura-processor/internal/config"
	"github.com/rezonia/faktura-processor/internal/obslog"
)

var (
	version = "1.0.0"

	verbose           bool
	outputFormat      string
	aiAPIKey          string
	aiBaseURL         string
	aiTextModel       string
	aiVisionModel     string
	patternStore      string
	calibrationNumber string
	calibrationTotal  string
	workers           int
	logLevel          string
	logFormat         string

	resolved config.Config
)

var rootCmd = &cobra.Command{
	Use:   "faktura-processor",
	Short: "Extract structured data from Swedish invoice PDFs",
	Long: `faktura-processor turns a batch of Swedish invoice PDFs into structured,
reconciled invoice data, escalating to OCR and AI fallback only when the
heuristic extraction can't clear the hard-gated correctness bar.

Examples:
  # Process a directory of PDFs
  faktura-processor process invoices/ -o report.json

  # Process with AI fallback enabled
  faktura-processor process *.pdf --api-key <openrouter-key>

  # Start the HTTP API server
  faktura-processor serve --address :8080

  # Train a calibration model from labeled samples
  faktura-processor calibrate train samples.json -o total_model.json`,
	Version: version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "json", "Output format (json, csv, table)")
	rootCmd.PersistentFlags().StringVar(&aiAPIKey, "api-key", "", "API key for AI fallback provider (env: AI_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&aiBaseURL, "ai-base-url", "", "AI API base URL (env: AI_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&aiTextModel, "ai-text-model", "", "AI model for text total extraction (env: AI_TEXT_MODEL)")
	rootCmd.PersistentFlags().StringVar(&aiVisionModel, "ai-vision-model", "", "AI model for vision total extraction (env: AI_VISION_MODEL)")
	rootCmd.PersistentFlags().StringVar(&patternStore, "pattern-store", "", "Path to the learned-pattern bbolt store (env: PATTERN_STORE_PATH)")
	rootCmd.PersistentFlags().StringVar(&calibrationNumber, "calibration-invoice-number", "", "Path to the invoice-number calibration model")
	rootCmd.PersistentFlags().StringVar(&calibrationTotal, "calibration-total", "", "Path to the total-amount calibration model")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "Batch worker pool size (default: number of CPUs)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (console, json)")

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	resolved = config.Resolve(config.Config{
		AiAPIKey:         aiAPIKey,
		AiBaseURL:        aiBaseURL,
		AiTextModel:      aiTextModel,
		AiVisionModel:    aiVisionModel,
		PatternStorePath: patternStore,
		CalibrationPath:  calibrationTotal,
		Workers:          workers,
		LogLevel:         logLevel,
		LogFormat:        logFormat,
	})

	if err := obslog.Setup(obslog.LogConfig{
		Level:      resolved.LogLevel,
		Format:     resolved.LogFormat,
		TimeFormat: resolved.LogTimeFormat,
		Output:     resolved.LogOutput,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "warning: logging setup failed: %v\n", err)
	}
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
