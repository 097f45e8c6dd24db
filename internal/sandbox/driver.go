// Package sandbox drives one container per test case against the
// Docker daemon: create with resource caps and no network, deliver the
// source code, optionally compile, feed the test's stdin, wait with a
// wall-clock bound, collect capped output, and tear the container down
// on every exit path. No two test cases ever share a container — the
// pack's only repo that drives a real container runtime end-to-end,
// itstheanurag-executioner, is the model this is built on, generalized
// from its single-submission exec sequence to a fresh container per
// test and resource limits sourced from per-language RuntimeConfig.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"go.uber.org/zap"

	"github.com/optimus-oj/judger/internal/languages"
)

// oomExitCode is the exit code a SIGKILL-terminated process reports
// (128 + SIGKILL). Docker's exec API does not surface a dedicated
// OOM flag for exec'd processes the way ContainerInspect does for a
// container's own init process, so this is the practical signal used
// to approximate spec.md's "killed by OOM or signal" branch.
const oomExitCode = 137

// fallbackMaxOutputBytes is used only if a RunSpec arrives with
// MaxOutputBytes unset (e.g. a hand-built spec in a test) — every real
// caller threads config.WorkerConfig.MaxOutputBytes through instead,
// per spec.md §4.4.4's "configurable byte limit."
const fallbackMaxOutputBytes = 2 * 1024 * 1024

// RunSpec is everything the driver needs to execute one test case.
type RunSpec struct {
	Image          string
	Runtime        languages.RuntimeConfig
	SourceCode     string
	Stdin          string
	Timeout        time.Duration
	MaxOutputBytes int64
}

// Driver wraps a Docker API client. It holds no per-test state; every
// RunTest call creates, uses, and destroys its own container.
type Driver struct {
	cli     *client.Client
	logger  *zap.Logger
	pull    *ImagePuller
	seccomp string // "seccomp=<profile-json>", empty if the profile failed to build
}

// NewDriver connects to the Docker daemon using the standard
// environment-derived configuration (DOCKER_HOST, DOCKER_CERT_PATH,
// etc.), negotiating the API version against the running daemon, and
// builds the seccomp profile every sandboxed container will run under.
func NewDriver(logger *zap.Logger) (*Driver, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("connect to docker: %w", err)
	}
	d := &Driver{cli: cli, logger: logger, pull: NewImagePuller(cli, logger)}
	profile, err := BuildSeccompProfileJSON()
	if err != nil {
		logger.Warn("seccomp profile unavailable, falling back to docker default", zap.Error(err))
	} else {
		d.seccomp = "seccomp=" + string(profile)
	}
	return d, nil
}

// Close releases the underlying Docker client's connections.
func (d *Driver) Close() error {
	return d.cli.Close()
}

// securityOpts returns the docker HostConfig.SecurityOpt list for a
// sandboxed container, including the seccomp profile when one built
// successfully at startup.
func (d *Driver) securityOpts() []string {
	opts := []string{"no-new-privileges"}
	if d.seccomp != "" {
		opts = append(opts, d.seccomp)
	}
	return opts
}

// EnsureImage verifies spec's image is present locally, pulling it on a
// cache miss. Used both for worker-startup pre-pull and the per-job
// cache health check (spec.md §4.3).
func (d *Driver) EnsureImage(ctx context.Context, image string) error {
	return d.pull.Ensure(ctx, image)
}

// ImagePresent reports whether image is already cached locally, without
// attempting a pull.
func (d *Driver) ImagePresent(ctx context.Context, image string) bool {
	return d.pull.Present(ctx, image)
}

// RunTest creates a fresh container, runs one test case to completion
// or timeout, and guarantees the container is removed before returning
// — including on panics and context cancellation, via defer.
func (d *Driver) RunTest(ctx context.Context, spec RunSpec) (Outcome, error) {
	pidsLimit := int64(64)
	memBytes := spec.Runtime.MemoryLimitMB * 1024 * 1024
	cpuQuota := int64(spec.Runtime.CPUQuota * 100000)

	resp, err := d.cli.ContainerCreate(ctx, &container.Config{
		Image:           spec.Image,
		Cmd:             []string{"sleep", "infinity"},
		OpenStdin:       true,
		StdinOnce:       true,
		NetworkDisabled: true,
		WorkingDir:      "/home/sandbox",
		User:            "nobody",
	}, &container.HostConfig{
		Resources: container.Resources{
			Memory:     memBytes,
			MemorySwap: memBytes,
			CPUPeriod:  100000,
			CPUQuota:   cpuQuota,
			PidsLimit:  &pidsLimit,
		},
		NetworkMode:    "none",
		ReadonlyRootfs: true,
		SecurityOpt:    d.securityOpts(),
		CapDrop:        []string{"ALL"},
		Tmpfs: map[string]string{
			"/home/sandbox": "rw,exec,nosuid,size=64m,mode=1777",
			"/tmp":           "rw,noexec,nosuid,size=16m,mode=1777",
		},
	}, nil, nil, "")
	if err != nil {
		return Outcome{}, fmt.Errorf("create container: %w", err)
	}
	defer func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := d.cli.ContainerRemove(removeCtx, resp.ID, container.RemoveOptions{Force: true}); err != nil {
			d.logger.Warn("failed to remove container", zap.String("container_id", resp.ID), zap.Error(err))
		}
	}()

	if err := d.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return Outcome{}, fmt.Errorf("start container: %w", err)
	}

	if err := d.writeSource(ctx, resp.ID, spec.Runtime.WorkspaceFile, spec.SourceCode); err != nil {
		return Outcome{}, fmt.Errorf("write source: %w", err)
	}

	maxOutputBytes := int(spec.MaxOutputBytes)
	if maxOutputBytes <= 0 {
		maxOutputBytes = fallbackMaxOutputBytes
	}

	if spec.Runtime.Compiles {
		outcome, compiled, err := d.runExec(ctx, resp.ID, spec.Runtime.CompileCmd, "", spec.Timeout, maxOutputBytes)
		if err != nil {
			return Outcome{}, fmt.Errorf("compile: %w", err)
		}
		if !compiled {
			outcome.ExitCode = languages.CompileErrorExitCode
			return outcome, nil
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, spec.Timeout)
	defer cancel()

	start := time.Now()
	outcome, _, err := d.runExec(runCtx, resp.ID, spec.Runtime.RunCmd, spec.Stdin, spec.Timeout, maxOutputBytes)
	outcome.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		if runCtx.Err() != nil {
			return Outcome{TimedOut: true, DurationMs: outcome.DurationMs}, nil
		}
		return Outcome{}, fmt.Errorf("run: %w", err)
	}
	if outcome.ExitCode == oomExitCode {
		outcome.OOMKilled = true
	}
	return outcome, nil
}

// writeSource delivers the source code into the container's writable
// workspace by piping it through the stdin of a dedicated write exec —
// CopyToContainer does not work against the tmpfs-backed workspace.
func (d *Driver) writeSource(ctx context.Context, containerID, filename, source string) error {
	execResp, err := d.cli.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		Cmd:         []string{"sh", "-c", fmt.Sprintf("cat > /home/sandbox/%s", filename)},
		AttachStdin: true,
	})
	if err != nil {
		return fmt.Errorf("create write exec: %w", err)
	}
	attach, err := d.cli.ContainerExecAttach(ctx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return fmt.Errorf("attach write exec: %w", err)
	}
	defer attach.Close()

	if _, err := attach.Conn.Write([]byte(source)); err != nil {
		return fmt.Errorf("write source bytes: %w", err)
	}
	if err := attach.CloseWrite(); err != nil {
		return fmt.Errorf("close write stream: %w", err)
	}
	return d.waitForExec(ctx, execResp.ID)
}

// runExec runs cmd inside containerID, feeding stdin if non-empty, and
// returns the captured outcome. The second return reports whether the
// process exited 0, distinguishing a real compile failure from a
// transport error in the caller.
func (d *Driver) runExec(ctx context.Context, containerID string, cmd []string, stdin string, timeout time.Duration, maxOutputBytes int) (Outcome, bool, error) {
	execResp, err := d.cli.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		Cmd:          cmd,
		WorkingDir:   "/home/sandbox",
		AttachStdin:  stdin != "",
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return Outcome{}, false, fmt.Errorf("create exec: %w", err)
	}
	attach, err := d.cli.ContainerExecAttach(ctx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return Outcome{}, false, fmt.Errorf("attach exec: %w", err)
	}
	defer attach.Close()

	if stdin != "" {
		if _, err := attach.Conn.Write([]byte(stdin)); err != nil {
			return Outcome{}, false, fmt.Errorf("write stdin: %w", err)
		}
		_ = attach.CloseWrite()
	}

	var stdout, stderr bytes.Buffer
	done := make(chan error, 1)
	go func() {
		// maxOutputBytes applies independently per stream.
		_, copyErr := stdcopy.StdCopy(
			&limitedWriter{w: &stdout, limit: maxOutputBytes},
			&limitedWriter{w: &stderr, limit: maxOutputBytes},
			attach.Reader,
		)
		done <- copyErr
	}()

	select {
	case err := <-done:
		if err != nil {
			return Outcome{}, false, fmt.Errorf("read exec output: %w", err)
		}
	case <-time.After(timeout + time.Second):
		return Outcome{TimedOut: true}, false, nil
	case <-ctx.Done():
		return Outcome{TimedOut: true}, false, nil
	}

	inspect, err := d.cli.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return Outcome{}, false, fmt.Errorf("inspect exec: %w", err)
	}
	outcome := Outcome{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: inspect.ExitCode,
	}
	return outcome, inspect.ExitCode == 0, nil
}

// waitForExec polls until a non-attached exec (e.g. the source write)
// finishes running.
func (d *Driver) waitForExec(ctx context.Context, execID string) error {
	for {
		inspect, err := d.cli.ContainerExecInspect(ctx, execID)
		if err != nil {
			return fmt.Errorf("inspect exec: %w", err)
		}
		if !inspect.Running {
			if inspect.ExitCode != 0 {
				return fmt.Errorf("exec %s exited %d", execID, inspect.ExitCode)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
}

// limitedWriter truncates after limit bytes instead of erroring, so a
// result-bomb test program can't wedge the copy goroutine — the excess
// is simply discarded.
type limitedWriter struct {
	w     io.Writer
	limit int
	n     int
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if l.n >= l.limit {
		return len(p), nil
	}
	remaining := l.limit - l.n
	if remaining > len(p) {
		remaining = len(p)
	}
	written, err := l.w.Write(p[:remaining])
	l.n += written
	return len(p), err
}
