package obslog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/faktura-processor/internal/obslog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := obslog.DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
}

func TestSetup_ValidLevel(t *testing.T) {
	err := obslog.Setup(obslog.LogConfig{Level: "debug", Format: "json", Output: "stdout"})
	require.NoError(t, err)
}

func TestSetup_InvalidLevelErrors(t *testing.T) {
	err := obslog.Setup(obslog.LogConfig{Level: "not-a-level", Output: "stdout"})
	assert.Error(t, err)
}

func TestForFileAndForInvoice_DoNotPanic(t *testing.T) {
	require.NoError(t, obslog.Setup(obslog.DefaultConfig()))
	logger := obslog.ForFile("invoice.pdf")
	logger.Info().Msg("processing")

	invLogger := obslog.ForInvoice("invoice.pdf", "40615472")
	invLogger.Info().Msg("extracting header")

	staged := obslog.WithStage(invLogger, "header")
	staged.Info().Msg("scoring candidates")
}
