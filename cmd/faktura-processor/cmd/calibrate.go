package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/faktura-processor/internal/calibration"
)

// sampleFile is the on-disk shape of a labeled calibration training/validation set.
type sampleFile struct {
	Samples []struct {
		RawScore float64 `json:"raw_score"`
		Correct  bool    `json:"correct"`
	} `json:"samples"`
}

func loadSamples(path string) ([]calibration.Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read samples file: %w", err)
	}
	var sf sampleFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse samples file: %w", err)
	}
	samples := make([]calibration.Sample, len(sf.Samples))
	for i, s := range sf.Samples {
		samples[i] = calibration.Sample{RawScore: s.RawScore, Correct: s.Correct}
	}
	return samples, nil
}

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Train and validate confidence calibration models",
}

var calibrateOutput string

var calibrateTrainCmd = &cobra.Command{
	Use:   "train <samples.json>",
	Short: "Fit an isotonic calibration model from labeled raw-score samples",
	Long: `Fit an isotonic-regression calibration model from a JSON samples file
({"samples": [{"raw_score": 0.8, "correct": true}, ...]}) and write the
trained knots to --output.`,
	Args: cobra.ExactArgs(1),
	RunE: runCalibrateTrain,
}

var calibrateValidateCmd = &cobra.Command{
	Use:   "validate <samples.json>",
	Short: "Check calibration drift against a fresh labeled sample set",
	Long: `Bin a fresh labeled sample set into 10 equal-frequency quantiles,
report expected/maximum calibration error, and flag whether recalibration
is warranted.`,
	Args: cobra.ExactArgs(1),
	RunE: runCalibrateValidate,
}

func init() {
	rootCmd.AddCommand(calibrateCmd)
	calibrateCmd.AddCommand(calibrateTrainCmd)
	calibrateCmd.AddCommand(calibrateValidateCmd)

	calibrateTrainCmd.Flags().StringVarP(&calibrateOutput, "output", "o", "model.json", "Path to write the trained model")
}

func runCalibrateTrain(cmd *cobra.Command, args []string) error {
	samples, err := loadSamples(args[0])
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("samples file contains no samples")
	}

	model, err := calibration.Train(samples)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	if err := calibration.Save(model, calibrateOutput); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}

	fmt.Printf("Trained model from %d samples (%d knots) -> %s\n", len(samples), len(model.Knots), calibrateOutput)
	return nil
}

func runCalibrateValidate(cmd *cobra.Command, args []string) error {
	samples, err := loadSamples(args[0])
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("samples file contains no samples")
	}

	report := calibration.Validate(samples)

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return err
	}

	if report.NeedsRecalibrate {
		return fmt.Errorf("calibration drift detected: ECE=%.4f exceeds threshold at n=%d", report.ECE, report.SampleCount)
	}
	return nil
}
