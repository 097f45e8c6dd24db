package sandbox

import (
	"testing"

	"github.com/optimus-oj/judger/internal/languages"
)

func TestClassifyTimeout(t *testing.T) {
	status, needsComparison := Classify(Outcome{TimedOut: true})
	if status != "time_limit_exceeded" || needsComparison {
		t.Fatalf("got status=%q needsComparison=%v", status, needsComparison)
	}
}

func TestClassifyCompileError(t *testing.T) {
	status, needsComparison := Classify(Outcome{ExitCode: languages.CompileErrorExitCode})
	if status != "compile_error" || needsComparison {
		t.Fatalf("got status=%q needsComparison=%v", status, needsComparison)
	}
}

func TestClassifyOOMKilled(t *testing.T) {
	status, needsComparison := Classify(Outcome{OOMKilled: true})
	if status != "runtime_error" || needsComparison {
		t.Fatalf("got status=%q needsComparison=%v", status, needsComparison)
	}
}

func TestClassifyNonZeroExit(t *testing.T) {
	status, needsComparison := Classify(Outcome{ExitCode: 1})
	if status != "runtime_error" || needsComparison {
		t.Fatalf("got status=%q needsComparison=%v", status, needsComparison)
	}
}

func TestClassifyCleanExitNeedsComparison(t *testing.T) {
	status, needsComparison := Classify(Outcome{ExitCode: 0})
	if status != "" || !needsComparison {
		t.Fatalf("got status=%q needsComparison=%v", status, needsComparison)
	}
}

func TestClassifyTimeoutTakesPriorityOverExitCode(t *testing.T) {
	status, _ := Classify(Outcome{TimedOut: true, ExitCode: languages.CompileErrorExitCode})
	if status != "time_limit_exceeded" {
		t.Fatalf("timeout should take priority, got %q", status)
	}
}
