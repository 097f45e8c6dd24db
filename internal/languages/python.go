package languages

import "github.com/optimus-oj/judger/internal/model"

// pythonConfig describes the optimus-python image convention: no
// compile step, source written to the workspace and run directly,
// 256MB memory per spec.md §4.4.
func pythonConfig() RuntimeConfig {
	return RuntimeConfig{
		Language:      model.LangPython,
		ImagePrefix:   "optimus-python:",
		WorkspaceFile: "solution.py",
		RunCmd:        []string{"python3", "solution.py"},
		MemoryLimitMB: 256,
		CPUQuota:      0.5,
		Compiles:      false,
	}
}
