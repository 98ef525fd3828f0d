// Package shellscript provides a demonstration processor that runs a shell
// script inside a short-lived Docker container, grounded on the shape of
// the teacher's internal/docker.Client.CreateAndStartContainer but trimmed
// to exactly what one processor needs: no ContainerClient/TaskExecutor
// contract, no REST-facing types.
package shellscript

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
)

// RunParams describes a single script execution.
type RunParams struct {
	Image         string
	Script        string
	Env           []string
	MemoryLimitMB int64
	CPUQuota      int64
	PidsLimit     int64
}

// RunResult is what comes back from the container once it exits.
type RunResult struct {
	ExitCode int64
	Stdout   string
	Stderr   string
}

// sdkClient is the slice of *client.Client this runner drives, narrowed so
// tests can substitute a mock the way internal/docker's SDKClientInterface
// does for the teacher's Client.
type sdkClient interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *specs.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	Ping(ctx context.Context) (types.Ping, error)
	Close() error
}

// DockerRunner executes shell scripts in containers via the Docker SDK
// directly, the way the teacher's Client wraps *client.Client, minus the
// ContainerClient abstraction layer this plugin has no use for.
type DockerRunner struct {
	cli    sdkClient
	logger *slog.Logger
}

// NewDockerRunner dials the Docker daemon and pings it, mirroring
// internal/docker.NewClient's FromEnv-plus-Ping handshake.
func NewDockerRunner(ctx context.Context, logger *slog.Logger, host string) (*DockerRunner, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	if _, err := cli.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping docker daemon: %w", err)
	}
	return &DockerRunner{cli: cli, logger: logger}, nil
}

// newDockerRunnerWithClient builds a DockerRunner around an already-dialed
// client, letting tests substitute a mock sdkClient without touching a real
// daemon.
func newDockerRunnerWithClient(cli sdkClient, logger *slog.Logger) *DockerRunner {
	return &DockerRunner{cli: cli, logger: logger}
}

// Run creates a container that executes params.Script with "sh -c", waits
// for it to exit, collects its output, and removes it.
func (r *DockerRunner) Run(ctx context.Context, params RunParams) (*RunResult, error) {
	containerConfig := &container.Config{
		Image:        params.Image,
		Cmd:          []string{"sh", "-c", params.Script},
		Env:          params.Env,
		Tty:          false,
		AttachStdout: true,
		AttachStderr: true,
	}
	hostConfig := &container.HostConfig{
		Resources: container.Resources{
			Memory:    params.MemoryLimitMB * 1024 * 1024,
			CPUQuota:  params.CPUQuota,
			PidsLimit: &params.PidsLimit,
		},
		SecurityOpt: []string{"no-new-privileges"},
	}

	resp, err := r.cli.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}
	defer func() {
		if err := r.cli.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true}); err != nil && !errdefs.IsNotFound(err) {
			r.logger.Warn("failed to remove container", "container_id", resp.ID, "error", err)
		}
	}()

	if err := r.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("start container %s: %w", resp.ID, err)
	}

	statusCh, errCh := r.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	var exitCode int64
	select {
	case err := <-errCh:
		if err != nil {
			return nil, fmt.Errorf("wait for container %s: %w", resp.ID, err)
		}
	case status := <-statusCh:
		exitCode = status.StatusCode
	}

	logs, err := r.cli.ContainerLogs(ctx, resp.ID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return nil, fmt.Errorf("fetch logs for container %s: %w", resp.ID, err)
	}
	defer logs.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		r.logger.Warn("failed to demultiplex container logs", "container_id", resp.ID, "error", err)
	}

	return &RunResult{ExitCode: exitCode, Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

// Close releases the underlying Docker SDK client connection.
func (r *DockerRunner) Close() error {
	return r.cli.Close()
}
