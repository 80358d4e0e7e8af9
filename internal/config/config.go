// Package config resolves runtime settings flag-first, then environment
// variable, then hard default — never the reverse, so an explicit CLI flag
// always wins over a stale environment.
package config

import (
	"os"
	"runtime"
)

// Config holds the pipeline's runtime settings.
type Config struct {
	AiAPIKey        string
	AiBaseURL       string
	AiTextModel     string
	AiVisionModel   string
	PatternStorePath string
	CalibrationPath string
	Workers         int

	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Resolve builds a Config from already-parsed flag values, falling back to
// environment variables and then the listed defaults for anything left
// blank/zero by the flag layer.
func Resolve(flags Config) Config {
	cfg := flags
	cfg.AiAPIKey = firstNonEmpty(cfg.AiAPIKey, os.Getenv("AI_API_KEY"), "")
	cfg.AiBaseURL = firstNonEmpty(cfg.AiBaseURL, os.Getenv("AI_BASE_URL"), "https://openrouter.ai/api/v1")
	cfg.AiTextModel = firstNonEmpty(cfg.AiTextModel, os.Getenv("AI_TEXT_MODEL"), "openai/gpt-4o-mini")
	cfg.AiVisionModel = firstNonEmpty(cfg.AiVisionModel, os.Getenv("AI_VISION_MODEL"), "openai/gpt-4o")
	cfg.PatternStorePath = firstNonEmpty(cfg.PatternStorePath, os.Getenv("PATTERN_STORE_PATH"), "patterns.db")
	cfg.CalibrationPath = firstNonEmpty(cfg.CalibrationPath, os.Getenv("CALIBRATION_MODEL_PATH"), "")
	cfg.LogLevel = firstNonEmpty(cfg.LogLevel, os.Getenv("LOG_LEVEL"), "info")
	cfg.LogFormat = firstNonEmpty(cfg.LogFormat, os.Getenv("LOG_FORMAT"), "console")
	cfg.LogTimeFormat = firstNonEmpty(cfg.LogTimeFormat, os.Getenv("LOG_TIME_FORMAT"), "2006-01-02T15:04:05Z07:00")
	cfg.LogOutput = firstNonEmpty(cfg.LogOutput, os.Getenv("LOG_OUTPUT"), "stdout")
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers()
	}
	return cfg
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func defaultWorkers() int {
	n := getEnvInt("WORKERS", 0)
	if n > 0 {
		return n
	}
	return runtime.NumCPU()
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return fallback
		}
		n = n*10 + int(c-'0')
	}
	return n
}
