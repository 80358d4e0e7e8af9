package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rezonia/faktura-processor/internal/config"
)

func TestResolve_FlagWinsOverEnv(t *testing.T) {
	os.Setenv("AI_API_KEY", "from-env")
	defer os.Unsetenv("AI_API_KEY")

	cfg := config.Resolve(config.Config{AiAPIKey: "from-flag"})
	assert.Equal(t, "from-flag", cfg.AiAPIKey)
}

func TestResolve_FallsBackToEnvWhenFlagEmpty(t *testing.T) {
	os.Setenv("AI_API_KEY", "from-env")
	defer os.Unsetenv("AI_API_KEY")

	cfg := config.Resolve(config.Config{})
	assert.Equal(t, "from-env", cfg.AiAPIKey)
}

func TestResolve_FallsBackToHardDefault(t *testing.T) {
	os.Unsetenv("AI_BASE_URL")
	cfg := config.Resolve(config.Config{})
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.AiBaseURL)
}

func TestResolve_WorkersDefaultsToPositive(t *testing.T) {
	os.Unsetenv("WORKERS")
	cfg := config.Resolve(config.Config{})
	assert.Greater(t, cfg.Workers, 0)
}

func TestResolve_WorkersFlagWins(t *testing.T) {
	cfg := config.Resolve(config.Config{Workers: 7})
	assert.Equal(t, 7, cfg.Workers)
}
