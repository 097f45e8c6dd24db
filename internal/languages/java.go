package languages

import "github.com/optimus-oj/judger/internal/model"

// javaConfig describes the optimus-java image convention: source is
// written to a workspace file (javac needs a real .java file on disk,
// named after the public class) and compiled before each test run;
// a compile failure exits CompileErrorExitCode per the registry's
// convention. 512MB per spec.md §4.4.
func javaConfig() RuntimeConfig {
	return RuntimeConfig{
		Language:      model.LangJava,
		ImagePrefix:   "optimus-java:",
		WorkspaceFile: "Main.java",
		CompileCmd:    []string{"javac", "Main.java"},
		RunCmd:        []string{"java", "Main"},
		MemoryLimitMB: 512,
		CPUQuota:      1.0,
		Compiles:      true,
	}
}
