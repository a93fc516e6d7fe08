package shell

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
)

// fakeDockerClient is a deterministic stand-in for *client.Client, letting
// tests exercise Runner.Run without a daemon.
type fakeDockerClient struct {
	logs       string
	createErr  error
	startErr   error
	waitErr    error
	waitStatus int64
	blockWait  bool
}

func (f *fakeDockerClient) ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(nil)), nil
}

func (f *fakeDockerClient) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig any, platform any, containerName string) (container.CreateResponse, error) {
	if f.createErr != nil {
		return container.CreateResponse{}, f.createErr
	}
	return container.CreateResponse{ID: "fake-container"}, nil
}

func (f *fakeDockerClient) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	return f.startErr
}

func (f *fakeDockerClient) ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	statusCh := make(chan container.WaitResponse, 1)
	errCh := make(chan error, 1)
	if f.blockWait {
		return statusCh, errCh
	}
	if f.waitErr != nil {
		errCh <- f.waitErr
		return statusCh, errCh
	}
	statusCh <- container.WaitResponse{StatusCode: f.waitStatus}
	return statusCh, errCh
}

func (f *fakeDockerClient) ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader([]byte(f.logs))), nil
}

func (f *fakeDockerClient) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	return nil
}

func TestRunnerRunReturnsLogs(t *testing.T) {
	cli := &fakeDockerClient{logs: "hello\n"}
	r := NewRunner(cli, "alpine:3.20", "/work", time.Second, 128)

	out, err := r.Run(context.Background(), map[string]any{"command": "echo hello"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "hello\n" {
		t.Errorf("Run() = %q, want %q", out, "hello\n")
	}
}

func TestRunnerRunEmptyCommandErrors(t *testing.T) {
	cli := &fakeDockerClient{}
	r := NewRunner(cli, "alpine:3.20", "/work", time.Second, 128)

	_, err := r.Run(context.Background(), map[string]any{"command": ""})
	if err == nil {
		t.Fatal("Run: expected error for empty command")
	}
}

func TestRunnerRunBlockedCommand(t *testing.T) {
	cli := &fakeDockerClient{}
	r := NewRunner(cli, "alpine:3.20", "/work", time.Second, 128)

	_, err := r.Run(context.Background(), map[string]any{"command": "sudo reboot"})
	if err == nil {
		t.Fatal("Run: expected blocked-command error")
	}
}

func TestRunnerRunNoOutputReportsPlaceholder(t *testing.T) {
	cli := &fakeDockerClient{logs: ""}
	r := NewRunner(cli, "alpine:3.20", "/work", time.Second, 128)

	out, err := r.Run(context.Background(), map[string]any{"command": "true"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "(no output)" {
		t.Errorf("Run() = %q, want (no output)", out)
	}
}

func TestRunnerRunTruncatesLongOutput(t *testing.T) {
	cli := &fakeDockerClient{logs: string(bytes.Repeat([]byte("x"), 5000))}
	r := NewRunner(cli, "alpine:3.20", "/work", time.Second, 128)

	out, err := r.Run(context.Background(), map[string]any{"command": "yes"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) >= 5000 {
		t.Errorf("Run() output not truncated, len = %d", len(out))
	}
}

func TestRunnerRunCreateErrorPropagates(t *testing.T) {
	cli := &fakeDockerClient{createErr: io.ErrClosedPipe}
	r := NewRunner(cli, "alpine:3.20", "/work", time.Second, 128)

	_, err := r.Run(context.Background(), map[string]any{"command": "echo hi"})
	if err == nil {
		t.Fatal("Run: expected create-container error to propagate")
	}
}

func TestRunnerRunTimeoutExceeded(t *testing.T) {
	cli := &fakeDockerClient{blockWait: true}
	r := NewRunner(cli, "alpine:3.20", "/work", 20*time.Millisecond, 128)

	_, err := r.Run(context.Background(), map[string]any{"command": "sleep 10"})
	if err == nil {
		t.Fatal("Run: expected timeout error")
	}
}

func TestRunnerDefinitionName(t *testing.T) {
	r := NewRunner(&fakeDockerClient{}, "alpine:3.20", "/work", time.Second, 128)
	def := r.Definition()
	if def.Name != "shell" {
		t.Errorf("Definition().Name = %q, want shell", def.Name)
	}
	if !def.InjectIntoPrompt {
		t.Error("shell should be InjectIntoPrompt")
	}
}
