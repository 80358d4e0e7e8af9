package calibration_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/faktura-processor/internal/calibration"
)

func TestTrain_IsMonotoneNonDecreasing(t *testing.T) {
	samples := []calibration.Sample{
		{RawScore: 0.2, Correct: false},
		{RawScore: 0.4, Correct: false},
		{RawScore: 0.4, Correct: true},
		{RawScore: 0.6, Correct: true},
		{RawScore: 0.9, Correct: true},
	}

	model, err := calibration.Train(samples)
	require.NoError(t, err)

	for i := 1; i < len(model.Knots); i++ {
		assert.GreaterOrEqual(t, model.Knots[i].Calibrated, model.Knots[i-1].Calibrated)
	}
}

func TestCalibrate_NilModelIsIdentity(t *testing.T) {
	assert.Equal(t, 0.73, calibration.Calibrate(nil, 0.73))
}

func TestCalibrate_NilModelClipsToUnitRange(t *testing.T) {
	assert.Equal(t, 1.0, calibration.Calibrate(nil, 1.5))
	assert.Equal(t, 0.0, calibration.Calibrate(nil, -0.2))
}

func TestCalibrate_InterpolatesBetweenKnots(t *testing.T) {
	model := &calibration.Model{Knots: []calibration.Knot{
		{Score: 0.0, Calibrated: 0.0},
		{Score: 1.0, Calibrated: 1.0},
	}}
	assert.InDelta(t, 0.5, calibration.Calibrate(model, 0.5), 0.001)
}

func TestCalibrate_ClampsOutsideKnotRange(t *testing.T) {
	model := &calibration.Model{Knots: []calibration.Knot{
		{Score: 0.3, Calibrated: 0.1},
		{Score: 0.8, Calibrated: 0.9},
	}}
	assert.Equal(t, 0.1, calibration.Calibrate(model, 0.0))
	assert.Equal(t, 0.9, calibration.Calibrate(model, 1.0))
}

func TestValidate_FlagsRecalibrationAboveThreshold(t *testing.T) {
	var samples []calibration.Sample
	for i := 0; i < 600; i++ {
		// raw score systematically overconfident relative to actual correctness
		samples = append(samples, calibration.Sample{RawScore: 0.95, Correct: i%2 == 0})
	}
	report := calibration.Validate(samples)
	assert.True(t, report.NeedsRecalibrate)
	assert.Greater(t, report.ECE, 0.05)
}

func TestValidate_RelaxedThresholdForSmallSamples(t *testing.T) {
	var samples []calibration.Sample
	for i := 0; i < 50; i++ {
		samples = append(samples, calibration.Sample{RawScore: 0.9, Correct: i%10 == 0})
	}
	report := calibration.Validate(samples)
	assert.Equal(t, 50, report.SampleCount)
	// ECE is about 0.8 here, well above the relaxed 0.08 threshold
	assert.True(t, report.NeedsRecalibrate)
}

func TestLoad_EmptyPathReturnsNilModel(t *testing.T) {
	model, err := calibration.Load("")
	require.NoError(t, err)
	assert.Nil(t, model)
}
