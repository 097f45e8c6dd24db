package worker

import (
	"strings"
	"testing"

	"github.com/optimus-oj/judger/internal/config"
	"github.com/optimus-oj/judger/internal/model"
)

func validConfig() config.WorkerConfig {
	return config.WorkerConfig{
		Language: model.LangPython,
		Queue:    "optimus:queue:python",
		Image:    "optimus-python:latest",
		RedisURL: "redis://localhost:6379/0",
	}
}

func TestValidateConfigAccepts(t *testing.T) {
	if err := ValidateConfig(validConfig()); err != nil {
		t.Fatalf("expected valid config to pass, got %v", err)
	}
}

func TestValidateConfigMissingLanguage(t *testing.T) {
	cfg := validConfig()
	cfg.Language = ""
	assertErrorContains(t, ValidateConfig(cfg), "OPTIMUS_LANGUAGE not set")
}

func TestValidateConfigInvalidLanguage(t *testing.T) {
	cfg := validConfig()
	cfg.Language = model.Language("cobol")
	assertErrorContains(t, ValidateConfig(cfg), "invalid language")
}

func TestValidateConfigMissingQueue(t *testing.T) {
	cfg := validConfig()
	cfg.Queue = ""
	assertErrorContains(t, ValidateConfig(cfg), "OPTIMUS_QUEUE not set")
}

func TestValidateConfigQueueMismatch(t *testing.T) {
	cfg := validConfig()
	cfg.Queue = "optimus:queue:java"
	assertErrorContains(t, ValidateConfig(cfg), "Queue mismatch")
}

func TestValidateConfigMissingImage(t *testing.T) {
	cfg := validConfig()
	cfg.Image = ""
	assertErrorContains(t, ValidateConfig(cfg), "OPTIMUS_IMAGE not set")
}

func TestValidateConfigImageMismatch(t *testing.T) {
	cfg := validConfig()
	cfg.Image = "optimus-java:latest"
	assertErrorContains(t, ValidateConfig(cfg), "Image mismatch")
}

func TestValidateConfigMissingRedisURL(t *testing.T) {
	cfg := validConfig()
	cfg.RedisURL = ""
	assertErrorContains(t, ValidateConfig(cfg), "REDIS_URL not set")
}

func assertErrorContains(t *testing.T, err error, substr string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error containing %q, got nil", substr)
	}
	if !strings.Contains(strings.ToLower(err.Error()), strings.ToLower(substr)) {
		t.Fatalf("expected error containing %q, got %q", substr, err.Error())
	}
}
