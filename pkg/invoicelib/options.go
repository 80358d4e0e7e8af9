package invoicelib

// PipelineOptions configures a Processor's collaborators and records the
// hard-gated correctness thresholds. NewProcessor does not pass the four
// threshold fields on: the pipeline always applies its own fixed gates
// (0.95, 0.5, 70 and 55), whatever values are set here.
type PipelineOptions struct {
	// CriticalConfidence is the calibrated-confidence floor both the invoice
	// number and total must clear for an OK status.
	CriticalConfidence float64

	// TextQualityThreshold is the path-selection text-quality gate.
	TextQualityThreshold float64

	// OCRMedianThreshold is the OCR median-confidence gate for accepting the OCR path.
	OCRMedianThreshold float64

	// OCRMeanRetryThreshold triggers a second OCR pass at a higher DPI.
	OCRMeanRetryThreshold float64

	// AiAPIKey enables AI text/vision escalation when non-empty.
	AiAPIKey      string
	AiBaseURL     string
	AiTextModel   string
	AiVisionModel string

	// PatternStorePath, if non-empty, opens a bbolt-backed learned-pattern store.
	PatternStorePath string

	// InvoiceNumberCalibrationPath and TotalCalibrationPath, if non-empty, load
	// trained isotonic calibration models for the two critical fields.
	InvoiceNumberCalibrationPath string
	TotalCalibrationPath         string

	// Workers bounds the batch worker pool. Zero defaults to runtime.NumCPU.
	Workers int
}

// DefaultPipelineOptions returns the spec-mandated thresholds with AI
// escalation and pattern learning disabled (no API key, no store path).
func DefaultPipelineOptions() PipelineOptions {
	return PipelineOptions{
		CriticalConfidence:    0.95,
		TextQualityThreshold:  0.5,
		OCRMedianThreshold:    70,
		OCRMeanRetryThreshold: 55,
		AiBaseURL:             "https://openrouter.ai/api/v1",
		AiTextModel:           "openai/gpt-4o-mini",
		AiVisionModel:         "openai/gpt-4o",
	}
}
