// Package model defines the wire-level job and result types shared by
// the gateway, the broker codec, and every worker. Every type here is a
// closed contract: gateway and worker must agree on it byte-for-byte.
package model

import (
	"fmt"

	"github.com/google/uuid"
)

// Language is a closed enumeration of supported languages. It drives
// queue naming and sandbox image selection. A job's language is
// immutable from submission to result publication.
type Language string

const (
	LangPython Language = "python"
	LangJava   Language = "java"
	LangRust   Language = "rust"
)

// AllLanguages is the single source of truth for supported languages.
// Add a new language here and it propagates to the gateway's validator,
// the worker's startup check, and the language registry.
func AllLanguages() []Language {
	return []Language{LangPython, LangJava, LangRust}
}

// ParseLanguage parses a language from its lowercase wire form.
func ParseLanguage(s string) (Language, error) {
	for _, l := range AllLanguages() {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown language %q", s)
}

func (l Language) Valid() bool {
	_, err := ParseLanguage(string(l))
	return err == nil
}

// JobMetadata tracks retry attempts for the broker result-publish path.
// It does not enable test-case-level retries, which are forbidden.
type JobMetadata struct {
	Attempts          int    `json:"attempts"`
	MaxAttempts       int    `json:"max_attempts"`
	LastFailureReason string `json:"last_failure_reason,omitempty"`
}

func DefaultJobMetadata() JobMetadata {
	return JobMetadata{Attempts: 0, MaxAttempts: 3}
}

// TestCase is immutable once a job is sealed. Workers must not mutate it.
type TestCase struct {
	TestID         int    `json:"test_id"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	Weight         int    `json:"weight"`
}

// JobRequest is the unit of work. Write-once after the gateway seals it.
type JobRequest struct {
	ID         string      `json:"id"`
	Language   Language    `json:"language"`
	SourceCode string      `json:"source_code"`
	Stdin      string      `json:"stdin,omitempty"`
	TestCases  []TestCase  `json:"test_cases"`
	TimeoutMs  int64       `json:"timeout_ms"`
	Metadata   JobMetadata `json:"metadata"`
}

// TestStatus is the tagged outcome of a single test case.
type TestStatus string

const (
	StatusPassed            TestStatus = "passed"
	StatusFailed            TestStatus = "failed"
	StatusRuntimeError      TestStatus = "runtime_error"
	StatusTimeLimitExceeded TestStatus = "time_limit_exceeded"
	StatusCompileError      TestStatus = "compile_error"
)

func (s TestStatus) Valid() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusRuntimeError, StatusTimeLimitExceeded, StatusCompileError:
		return true
	default:
		return false
	}
}

// TestResult captures one test case's execution outcome.
type TestResult struct {
	TestID          int        `json:"test_id"`
	Status          TestStatus `json:"status"`
	Stdout          string     `json:"stdout"`
	Stderr          string     `json:"stderr"`
	ExitCode        *int       `json:"exit_code,omitempty"`
	ExecutionTimeMs int64      `json:"execution_time_ms"`
	Weight          int        `json:"weight"`
}

// JobStatus is the tagged overall state of a job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	// JobTimedOut is reserved for a future job-level timeout distinct
	// from the per-test timeout. No code path emits it today.
	JobTimedOut JobStatus = "timed_out"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobQueued, JobRunning, JobCompleted, JobFailed, JobTimedOut:
		return true
	default:
		return false
	}
}

// ExecutionResult is the published outcome of a job.
type ExecutionResult struct {
	JobID         string       `json:"job_id"`
	OverallStatus JobStatus    `json:"overall_status"`
	Score         int          `json:"score"`
	MaxScore      int          `json:"max_score"`
	Results       []TestResult `json:"results"`
	TotalTimeMs   int64        `json:"total_time_ms"`
	Metadata      JobMetadata  `json:"metadata"`
}

// NewJobID assigns a fresh 128-bit random job identifier.
func NewJobID() string {
	return uuid.NewString()
}
