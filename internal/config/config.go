// Package config loads the environment-variable configuration contract
// for the gateway and worker binaries. Unlike the monolith this codebase
// grew out of, there is no YAML file to parse: the wire contract in
// spec §6 names environment variables directly, so loading them is the
// entire job.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/optimus-oj/judger/internal/model"
)

const (
	defaultDefaultTimeoutMs = 5000
	defaultMaxTimeoutMs     = 30000
	defaultResultTTLSeconds = 3600
	defaultPort             = 8080
	// defaultMaxOutputBytes mirrors the teacher's SandboxConfig.MaxOutputSize
	// default (FashOJ-Judger/internal/config/config.go) of 16MB per stream.
	defaultMaxOutputBytes = 16 * 1024 * 1024
)

// LoadDotEnv loads a local .env file if one is present, without
// overriding variables already set in the real environment. Missing
// files are not an error — most deployments set real env vars.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// GatewayConfig is the gateway process's environment-derived configuration.
type GatewayConfig struct {
	RedisURL         string
	Port             int
	DefaultTimeoutMs int64
	MaxTimeoutMs     int64
}

// LoadGatewayConfig reads GatewayConfig from the environment, applying
// spec-mandated defaults for anything unset. DEFAULT_TIMEOUT_MS is the
// gateway's own concern — spec.md §4.2 has it applied when a submission
// omits timeout_ms, not the worker.
func LoadGatewayConfig() (GatewayConfig, error) {
	cfg := GatewayConfig{
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		Port:             defaultPort,
		DefaultTimeoutMs: defaultDefaultTimeoutMs,
		MaxTimeoutMs:     defaultMaxTimeoutMs,
	}
	if v, ok := os.LookupEnv("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return GatewayConfig{}, fmt.Errorf("PORT: invalid integer %q", v)
		}
		cfg.Port = port
	}
	if v, ok := os.LookupEnv("DEFAULT_TIMEOUT_MS"); ok {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return GatewayConfig{}, fmt.Errorf("DEFAULT_TIMEOUT_MS: invalid integer %q", v)
		}
		cfg.DefaultTimeoutMs = ms
	}
	if v, ok := os.LookupEnv("MAX_TIMEOUT_MS"); ok {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return GatewayConfig{}, fmt.Errorf("MAX_TIMEOUT_MS: invalid integer %q", v)
		}
		cfg.MaxTimeoutMs = ms
	}
	return cfg, nil
}

// WorkerConfig is the worker process's environment-derived configuration.
// Every field here is validated crash-fast at startup per spec §4.3 —
// see internal/worker.ValidateConfig.
type WorkerConfig struct {
	Language       model.Language
	Queue          string
	Image          string
	RedisURL       string
	MaxTimeoutMs   int64
	ResultTTL      time.Duration
	MaxOutputBytes int64
}

// LoadWorkerConfig reads the raw environment variables a worker needs.
// It does not validate cross-field invariants (queue-matches-language,
// image-prefix-matches-language) — that is ValidateConfig's job, kept
// separate so the crash-fast diagnostics name the exact failing check.
func LoadWorkerConfig() (WorkerConfig, error) {
	cfg := WorkerConfig{
		Language:       model.Language(os.Getenv("OPTIMUS_LANGUAGE")),
		Queue:          os.Getenv("OPTIMUS_QUEUE"),
		Image:          os.Getenv("OPTIMUS_IMAGE"),
		RedisURL:       os.Getenv("REDIS_URL"),
		MaxTimeoutMs:   defaultMaxTimeoutMs,
		ResultTTL:      defaultResultTTLSeconds * time.Second,
		MaxOutputBytes: defaultMaxOutputBytes,
	}
	if v, ok := os.LookupEnv("MAX_TIMEOUT_MS"); ok {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return WorkerConfig{}, fmt.Errorf("MAX_TIMEOUT_MS: invalid integer %q", v)
		}
		cfg.MaxTimeoutMs = ms
	}
	if v, ok := os.LookupEnv("RESULT_TTL_SECONDS"); ok {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return WorkerConfig{}, fmt.Errorf("RESULT_TTL_SECONDS: invalid integer %q", v)
		}
		cfg.ResultTTL = time.Duration(secs) * time.Second
	}
	if v, ok := os.LookupEnv("MAX_OUTPUT_BYTES"); ok {
		bytes, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return WorkerConfig{}, fmt.Errorf("MAX_OUTPUT_BYTES: invalid integer %q", v)
		}
		cfg.MaxOutputBytes = bytes
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
