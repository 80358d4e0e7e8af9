// Package obslog configures structured logging for batch runs: one global
// zerolog logger, with per-file/per-invoice child loggers that carry the
// fields a run's log stream needs to line up with its run report.
package obslog

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string // trace, debug, info, warn, error, fatal, panic
	Format     string // json, console
	TimeFormat string // RFC3339, Unix, or custom format
	Output     string // stdout, stderr, or file path
}

// DefaultConfig returns a sensible default logging configuration.
func DefaultConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		Format:     "console",
		TimeFormat: time.RFC3339,
		Output:     "stdout",
	}
}

// Setup initializes the global logger with the provided configuration.
func Setup(config LogConfig) error {
	level, err := zerolog.ParseLevel(strings.ToLower(config.Level))
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer
	switch config.Output {
	case "stdout", "":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return err
		}
		output = file
	}

	if strings.ToLower(config.Format) != "json" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: config.TimeFormat, NoColor: false}
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger()

	if config.TimeFormat != "" {
		zerolog.TimeFieldFormat = config.TimeFormat
	}

	return nil
}

// ForFile returns a child logger scoped to one input file.
func ForFile(file string) zerolog.Logger {
	return log.Logger.With().Str("file", file).Logger()
}

// ForInvoice returns a child logger scoped to one logical invoice within a file.
func ForInvoice(file, invoiceID string) zerolog.Logger {
	return log.Logger.With().Str("file", file).Str("invoice_id", invoiceID).Logger()
}

// WithStage returns a derived logger tagged with the current pipeline stage
// (e.g. "header", "footer", "ai_fallback").
func WithStage(logger zerolog.Logger, stage string) zerolog.Logger {
	return logger.With().Str("stage", stage).Logger()
}
