package sandbox

import "github.com/optimus-oj/judger/internal/languages"

// Outcome is the raw result of running one test case inside a
// container, before the evaluator compares stdout against the expected
// output. It carries exactly what the 5-case taxonomy in spec.md §4.4.5
// needs and nothing about correctness.
type Outcome struct {
	Stdout     string
	Stderr     string
	ExitCode   int
	TimedOut   bool
	OOMKilled  bool
	DurationMs int64
}

// Classify maps a raw Outcome onto the non-comparison branches of the
// 5-case taxonomy. needsComparison is true only when the process
// exited 0 without timing out or being killed — the caller must then
// trim-compare stdout against the expected output to decide between
// Passed and Failed.
func Classify(o Outcome) (status string, needsComparison bool) {
	switch {
	case o.TimedOut:
		return "time_limit_exceeded", false
	case o.ExitCode == languages.CompileErrorExitCode:
		return "compile_error", false
	case o.OOMKilled || o.ExitCode != 0:
		return "runtime_error", false
	default:
		return "", true
	}
}
