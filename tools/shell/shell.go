// Package shell is a reference host-side implementation of a "shell" tool:
// it runs a command inside a throwaway Docker container rather than on the
// host's own filesystem, exercising replcore's Bridge contract end to end
// in tests (§bridge, §4.2). The interpreter never imports this package —
// a real host registers it behind its own Bridge.InvokeTool.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/go-connections/nat"

	"github.com/turnscript/replcore"
)

// dockerClient is the narrow subset of *client.Client the runner needs,
// kept as an interface so tests can exercise Runner without a daemon.
type dockerClient interface {
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig any, platform any, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// blockedSubstrings mirrors the teacher shell tool's safety blocklist.
var blockedSubstrings = []string{"rm -rf /", "sudo ", "mkfs", "> /dev/", "dd if="}

// Runner executes shell commands inside a sandboxed Docker container.
type Runner struct {
	cli        dockerClient
	image      string
	workingDir string
	timeout    time.Duration
	memoryMB   int64
}

// NewRunner builds a Runner. timeout and memoryMB default to 30s/256MB when
// non-positive.
func NewRunner(cli dockerClient, image, workingDir string, timeout time.Duration, memoryMB int64) *Runner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if memoryMB <= 0 {
		memoryMB = 256
	}
	return &Runner{cli: cli, image: image, workingDir: workingDir, timeout: timeout, memoryMB: memoryMB}
}

// Definition describes the shell tool for inclusion in an init message's
// tool list (§4.1).
func (r *Runner) Definition() replcore.ToolDef {
	return replcore.ToolDef{
		Name:        "shell",
		Description: "Execute a shell command inside a sandboxed container. Returns combined stdout/stderr.",
		Params: []replcore.Param{
			{Name: "command", Type: "str", Description: "shell command to run", Required: true},
			{Name: "timeout_sec", Type: "int", Description: "override the default timeout, capped at 300s"},
		},
		Returns:          "string",
		InjectIntoPrompt: true,
	}
}

// Run executes params["command"] in a fresh container and returns the
// combined, truncated output. A blocked or malformed command is reported
// through the returned error, a plain error value rather than a
// *replcore.ToolError.
func (r *Runner) Run(ctx context.Context, params map[string]any) (string, error) {
	command, _ := params["command"].(string)
	if command == "" {
		return "", fmt.Errorf("shell: command is required")
	}

	lower := strings.ToLower(command)
	for _, b := range blockedSubstrings {
		if strings.Contains(lower, b) {
			return "", fmt.Errorf("shell: command blocked for safety: %s", b)
		}
	}

	timeout := r.timeout
	if v, ok := params["timeout_sec"]; ok {
		if secs := toSeconds(v); secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
	}
	if timeout > 300*time.Second {
		timeout = 300 * time.Second
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if rc, err := r.cli.ImagePull(runCtx, r.image, image.PullOptions{}); err == nil {
		io.Copy(io.Discard, rc)
		rc.Close()
	}

	resp, err := r.cli.ContainerCreate(runCtx, &container.Config{
		Image:      r.image,
		Cmd:        []string{"sh", "-c", command},
		WorkingDir: r.workingDir,
		Tty:        false,
	}, &container.HostConfig{
		AutoRemove: false,
		Resources: container.Resources{
			Memory: r.memoryMB * 1024 * 1024,
		},
		PortBindings: nat.PortMap{},
	}, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("shell: create container: %w", err)
	}
	defer r.cli.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})

	if err := r.cli.ContainerStart(runCtx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("shell: start container: %w", err)
	}

	statusCh, errCh := r.cli.ContainerWait(runCtx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			if runCtx.Err() == context.DeadlineExceeded {
				return "", fmt.Errorf("shell: command timed out after %s", timeout)
			}
			return "", fmt.Errorf("shell: wait: %w", err)
		}
	case <-statusCh:
	case <-runCtx.Done():
		return "", fmt.Errorf("shell: command timed out after %s", timeout)
	}

	logs, err := r.cli.ContainerLogs(runCtx, resp.ID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", fmt.Errorf("shell: logs: %w", err)
	}
	defer logs.Close()

	var out bytes.Buffer
	io.Copy(&out, logs)
	output := out.String()

	const maxOutput = 4000
	if len(output) > maxOutput {
		output = output[:maxOutput] + "\n... (truncated)"
	}
	if output == "" {
		output = "(no output)"
	}
	return output, nil
}

func toSeconds(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
