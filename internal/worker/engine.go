// Package worker implements the per-language dispatch loop described in
// spec.md §4.3: strict crash-fast startup validation, then a blocking
// dequeue → execute → publish loop. It is split the way the original
// Rust worker split it — engine.go knows HOW to execute and nothing
// about scoring, evaluator.go knows scoring and nothing about Docker —
// so the sandbox backend stays swappable without touching correctness
// logic.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/optimus-oj/judger/internal/languages"
	"github.com/optimus-oj/judger/internal/model"
	"github.com/optimus-oj/judger/internal/sandbox"
)

// TestExecutionOutput is the raw outcome of executing one test case,
// before the evaluator judges correctness. Engine sets the error flags;
// it never looks at TestCase.ExpectedOutput.
type TestExecutionOutput struct {
	TestID          int
	Stdout          string
	Stderr          string
	ExitCode        int
	ExecutionTimeMs int64
	TimedOut        bool
	RuntimeError    bool
	CompileError    bool
}

// Engine executes a single test case inside a sandbox container for one
// fixed (image, language runtime) pair. It is a thin adapter over
// *sandbox.Driver so a future execution backend (a pooled runner, a
// remote execution service) can be substituted without touching
// evaluator.go or worker.go's dispatch loop.
type Engine struct {
	driver         *sandbox.Driver
	image          string
	runtime        languages.RuntimeConfig
	maxOutputBytes int64
}

// NewEngine builds an Engine bound to one job's image and language
// runtime configuration. maxOutputBytes caps stdout/stderr capture per
// stream per spec.md §4.4.4.
func NewEngine(driver *sandbox.Driver, image string, runtime languages.RuntimeConfig, maxOutputBytes int64) *Engine {
	return &Engine{driver: driver, image: image, runtime: runtime, maxOutputBytes: maxOutputBytes}
}

// Execute runs one test case and translates the sandbox's raw Outcome
// into a TestExecutionOutput. It never returns an error for outcomes
// the taxonomy already covers (timeout, non-zero exit, compile
// failure) — those become flagged outputs instead, so the dispatch
// loop can keep running the job's remaining test cases exactly as
// spec.md §7 requires ("the affected test is RuntimeError ... remaining
// tests proceed").
func (e *Engine) Execute(ctx context.Context, sourceCode string, tc model.TestCase, timeout time.Duration) TestExecutionOutput {
	outcome, err := e.driver.RunTest(ctx, sandbox.RunSpec{
		Image:          e.image,
		Runtime:        e.runtime,
		SourceCode:     sourceCode,
		Stdin:          tc.Input,
		Timeout:        timeout,
		MaxOutputBytes: e.maxOutputBytes,
	})
	if err != nil {
		return TestExecutionOutput{
			TestID:       tc.TestID,
			Stderr:       fmt.Sprintf("sandbox error: %v", err),
			RuntimeError: true,
		}
	}

	status, _ := sandbox.Classify(outcome)
	out := TestExecutionOutput{
		TestID:          tc.TestID,
		Stdout:          outcome.Stdout,
		Stderr:          outcome.Stderr,
		ExitCode:        outcome.ExitCode,
		ExecutionTimeMs: outcome.DurationMs,
	}
	switch status {
	case "time_limit_exceeded":
		out.TimedOut = true
	case "compile_error":
		out.CompileError = true
	case "runtime_error":
		out.RuntimeError = true
	}
	return out
}

// ExecuteJob runs every test case in job sequentially — spec.md §4.3
// forbids parallelizing test cases within a job, since the per-test
// timeout and resource accounting depend on serialization — and
// returns outputs in the same order job.TestCases was given in, which
// evaluator.Evaluate relies on to preserve ascending test_id ordering
// (spec.md §8 invariant 4).
func (e *Engine) ExecuteJob(ctx context.Context, job *model.JobRequest) []TestExecutionOutput {
	timeout := time.Duration(job.TimeoutMs) * time.Millisecond
	outputs := make([]TestExecutionOutput, 0, len(job.TestCases))
	for _, tc := range job.TestCases {
		outputs = append(outputs, e.Execute(ctx, job.SourceCode, tc, timeout))
	}
	return outputs
}
