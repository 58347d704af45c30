package app

import (
	"time"

	"github.com/freightdesk/rulelearn-backend/internal/platform/envutil"
)

type Config struct {
	Port    string
	LogMode string

	PatternThreshold    int
	PatternSampleWindow int
	ConfidenceFloor     float64

	SimDefaultSampleSize int
	SimMaxSampleSize     int
	SimWorkers           int

	SeedRulesPath     string
	ReattemptInterval time.Duration
}

func LoadConfig() Config {
	return Config{
		Port:    envutil.String("PORT", "8080"),
		LogMode: envutil.String("LOG_MODE", "development"),

		PatternThreshold:    envutil.Int("PATTERN_THRESHOLD", 3),
		PatternSampleWindow: envutil.Int("PATTERN_SAMPLE_WINDOW", 20),
		ConfidenceFloor:     envutil.Float("INFERENCE_CONFIDENCE_FLOOR", 0.6),

		SimDefaultSampleSize: envutil.Int("SIM_DEFAULT_SAMPLE_SIZE", 200),
		SimMaxSampleSize:     envutil.Int("SIM_MAX_SAMPLE_SIZE", 1000),
		SimWorkers:           envutil.Int("SIM_WORKERS", 8),

		SeedRulesPath:     envutil.String("SEED_RULES_PATH", ""),
		ReattemptInterval: envutil.Duration("REATTEMPT_INTERVAL", time.Minute),
	}
}
