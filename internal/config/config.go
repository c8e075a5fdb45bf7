// Package config loads the kernel's environment-variable tunables, mirroring
// the fleet-telemetry simulator's os.Getenv-with-default convention, with an
// optional .env file loaded via godotenv.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds every tunable the engine and advisor client read at startup.
// Defaults match the normative values in spec.md §4.4/§4.7/§5.
type Config struct {
	TickRate              time.Duration // one simulation tick; default 1/30s
	AdvisorBaseURL        string
	AdvisorModel          string
	AdvisorWorkers        int64
	AdvisorProbeTimeout   time.Duration
	AdvisorRequestTimeout time.Duration
}

// Load reads configuration from the environment, first loading a .env file
// at envPath if present (a missing file is not an error — mirrors
// godotenv's typical opt-in usage in the retrieval pack).
func Load(envPath string) Config {
	if envPath == "" {
		envPath = ".env"
	}
	if err := godotenv.Load(envPath); err != nil {
		logrus.WithField("path", envPath).Debug("no .env file loaded")
	}

	cfg := Config{
		TickRate:              time.Second / 30,
		AdvisorBaseURL:        "http://localhost:11434",
		AdvisorModel:          "llama3.2:1b",
		AdvisorWorkers:        4,
		AdvisorProbeTimeout:   2 * time.Second,
		AdvisorRequestTimeout: 8 * time.Second,
	}

	if v := os.Getenv("TICK_RATE_HZ"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 {
			cfg.TickRate = time.Duration(float64(time.Second) / n)
		}
	}
	if v := os.Getenv("ADVISOR_BASE_URL"); v != "" {
		cfg.AdvisorBaseURL = v
	}
	if v := os.Getenv("ADVISOR_MODEL"); v != "" {
		cfg.AdvisorModel = v
	}
	if v := os.Getenv("ADVISOR_WORKERS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.AdvisorWorkers = n
		}
	}
	if v := os.Getenv("ADVISOR_PROBE_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AdvisorProbeTimeout = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("ADVISOR_REQUEST_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AdvisorRequestTimeout = time.Duration(n) * time.Second
		}
	}
	return cfg
}
