package sandbox

import (
	"encoding/json"
	"fmt"

	libseccomp "github.com/seccomp/libseccomp-golang"
)

// dockerSeccompProfile mirrors the shape Docker's daemon expects for a
// custom seccomp profile passed via HostConfig.SecurityOpt
// ("seccomp=<path-or-inline-json>").
type dockerSeccompProfile struct {
	DefaultAction string              `json:"defaultAction"`
	Syscalls      []dockerSeccompRule `json:"syscalls"`
}

type dockerSeccompRule struct {
	Names  []string `json:"names"`
	Action string   `json:"action"`
}

// allowedSyscalls is the baseline allow-list a sandboxed test process
// needs: I/O, memory management, signal handling, process bookkeeping.
// Anything not on this list is killed, not merely denied with EPERM —
// untrusted code should not be able to probe for what it can't do.
var allowedSyscalls = []string{
	"read", "write", "readv", "writev", "close", "fstat", "lseek", "dup", "dup2", "dup3",
	"mmap", "mprotect", "munmap", "brk", "mremap", "msync", "mincore", "madvise",
	"rt_sigaction", "rt_sigprocmask", "rt_sigreturn", "rt_sigpending",
	"sigaltstack", "restart_syscall", "clone", "execve", "exit", "exit_group",
	"arch_prctl", "set_tid_address", "set_robust_list", "sysinfo", "uname", "times",
	"futex", "getrlimit", "getuid", "getgid", "geteuid", "getegid", "getppid", "getpgrp",
	"getpid", "gettid", "capget", "capset", "prlimit64",
	"stat", "lstat", "newfstatat",
	"access", "faccessat",
	"open", "openat",
	"fcntl", "ioctl",
	"getcwd", "readlink", "readlinkat",
	"gettimeofday", "clock_gettime", "clock_getres", "clock_nanosleep",
	"mbind", "get_mempolicy", "set_mempolicy",
}

// BuildSeccompProfileJSON resolves allowedSyscalls against the current
// architecture's syscall table via libseccomp-golang (the validation
// the teacher's in-process LoadSeccompProfile performed) and marshals
// the survivors into a Docker seccomp-profile JSON document, suitable
// for HostConfig.SecurityOpt. The teacher loaded a filter directly into
// its own process with libseccomp's BPF loader — infeasible once the
// sandboxed process is a container's own init rather than a thread of
// this binary, per the teacher's own comment on that dead end. This
// keeps the dependency's real job (syscall-name to syscall-number
// resolution, which varies by architecture) while fixing the
// architectural mismatch.
func BuildSeccompProfileJSON() ([]byte, error) {
	var resolved []string
	for _, name := range allowedSyscalls {
		if _, err := libseccomp.GetSyscallFromName(name); err != nil {
			continue // not available on this architecture, skip
		}
		resolved = append(resolved, name)
	}
	if len(resolved) == 0 {
		return nil, fmt.Errorf("seccomp: no syscalls resolved for this architecture")
	}

	profile := dockerSeccompProfile{
		DefaultAction: "SCMP_ACT_KILL",
		Syscalls: []dockerSeccompRule{
			{Names: resolved, Action: "SCMP_ACT_ALLOW"},
		},
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("marshal seccomp profile: %w", err)
	}
	return data, nil
}
