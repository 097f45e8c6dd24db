package worker

import (
	"sort"
	"strings"

	"github.com/optimus-oj/judger/internal/model"
)

// Evaluate is a pure function: it knows nothing about Docker, nothing
// about Redis, nothing about sandboxing. It only compares raw execution
// outputs against each test case's expected output and aggregates a
// score. Grounded on the original Rust worker's evaluator.rs, with one
// correction: that draft computed overall status as "Completed if
// total_score > 0", which spec.md supersedes — the authoritative rule
// (spec.md §3, §8 invariant 3) is "Completed iff every test Passed".
func Evaluate(job *model.JobRequest, outputs []TestExecutionOutput) *model.ExecutionResult {
	byID := make(map[int]model.TestCase, len(job.TestCases))
	var maxScore int
	for _, tc := range job.TestCases {
		byID[tc.TestID] = tc
		maxScore += tc.Weight
	}

	results := make([]model.TestResult, 0, len(outputs))
	var score int
	allPassed := true
	var totalTimeMs int64

	for _, out := range outputs {
		tc := byID[out.TestID]
		status := classifyOutput(out, tc)
		if status != model.StatusPassed {
			allPassed = false
		} else {
			score += tc.Weight
		}
		exitCode := out.ExitCode
		results = append(results, model.TestResult{
			TestID:          out.TestID,
			Status:          status,
			Stdout:          out.Stdout,
			Stderr:          out.Stderr,
			ExitCode:        &exitCode,
			ExecutionTimeMs: out.ExecutionTimeMs,
			Weight:          tc.Weight,
		})
		totalTimeMs += out.ExecutionTimeMs
	}

	overall := model.JobFailed
	if len(results) > 0 && allPassed {
		overall = model.JobCompleted
	}

	// spec.md §8 invariant 4 is unconditional — ascending test_id holds
	// regardless of what order the job's test cases or outputs arrived
	// in, not only when the submitter happened to order them already.
	sort.Slice(results, func(i, j int) bool {
		return results[i].TestID < results[j].TestID
	})

	return &model.ExecutionResult{
		JobID:         job.ID,
		OverallStatus: overall,
		Score:         score,
		MaxScore:      maxScore,
		Results:       results,
		TotalTimeMs:   totalTimeMs,
		Metadata:      job.Metadata,
	}
}

// classifyOutput applies spec.md §3's per-test taxonomy: the engine's
// error flags take priority, and only a clean exit triggers the
// trimmed-exact-match comparison against the expected output.
func classifyOutput(out TestExecutionOutput, tc model.TestCase) model.TestStatus {
	switch {
	case out.CompileError:
		return model.StatusCompileError
	case out.TimedOut:
		return model.StatusTimeLimitExceeded
	case out.RuntimeError:
		return model.StatusRuntimeError
	case trimmedEqual(out.Stdout, tc.ExpectedOutput):
		return model.StatusPassed
	default:
		return model.StatusFailed
	}
}

// trimmedEqual implements spec.md's "trimmed exact-match" comparator:
// equality after removing leading and trailing whitespace.
func trimmedEqual(actual, expected string) bool {
	return strings.TrimSpace(actual) == strings.TrimSpace(expected)
}
