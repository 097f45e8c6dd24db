package languages

import "github.com/optimus-oj/judger/internal/model"

// rustConfig describes the optimus-rust image convention: source is
// written to a workspace file and compiled with rustc before each test
// run. Replaces the teacher's C++ compiler entry — C++ is not in
// spec.md's closed Language enum. 512MB per spec.md §4.4.
func rustConfig() RuntimeConfig {
	return RuntimeConfig{
		Language:      model.LangRust,
		ImagePrefix:   "optimus-rust:",
		WorkspaceFile: "main.rs",
		CompileCmd:    []string{"rustc", "-O", "main.rs", "-o", "solution"},
		RunCmd:        []string{"./solution"},
		MemoryLimitMB: 512,
		CPUQuota:      1.0,
		Compiles:      true,
	}
}
