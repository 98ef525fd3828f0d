package shellscript

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockSDKClient mirrors internal/docker's MockSDKClient, narrowed to the
// methods sdkClient declares.
type mockSDKClient struct {
	mock.Mock
}

func (m *mockSDKClient) ContainerCreate(ctx context.Context, cfg *container.Config, hostCfg *container.HostConfig, netCfg *network.NetworkingConfig, platform *specs.Platform, name string) (container.CreateResponse, error) {
	args := m.Called(ctx, cfg, hostCfg, netCfg, platform, name)
	return args.Get(0).(container.CreateResponse), args.Error(1)
}

func (m *mockSDKClient) ContainerStart(ctx context.Context, id string, opts container.StartOptions) error {
	args := m.Called(ctx, id, opts)
	return args.Error(0)
}

func (m *mockSDKClient) ContainerWait(ctx context.Context, id string, cond container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	args := m.Called(ctx, id, cond)
	return args.Get(0).(<-chan container.WaitResponse), args.Get(1).(<-chan error)
}

func (m *mockSDKClient) ContainerLogs(ctx context.Context, id string, opts container.LogsOptions) (io.ReadCloser, error) {
	args := m.Called(ctx, id, opts)
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *mockSDKClient) ContainerRemove(ctx context.Context, id string, opts container.RemoveOptions) error {
	args := m.Called(ctx, id, opts)
	return args.Error(0)
}

func (m *mockSDKClient) Ping(ctx context.Context) (types.Ping, error) {
	args := m.Called(ctx)
	return args.Get(0).(types.Ping), args.Error(1)
}

func (m *mockSDKClient) Close() error {
	return m.Called().Error(0)
}

func waitSuccess(exitCode int64) (<-chan container.WaitResponse, <-chan error) {
	statusCh := make(chan container.WaitResponse, 1)
	statusCh <- container.WaitResponse{StatusCode: exitCode}
	return statusCh, make(chan error, 1)
}

func TestDockerRunner_RunReturnsExitCodeAndOutput(t *testing.T) {
	cli := &mockSDKClient{}
	cli.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, "").
		Return(container.CreateResponse{ID: "c1"}, nil)
	cli.On("ContainerStart", mock.Anything, "c1", mock.Anything).Return(nil)
	statusCh, errCh := waitSuccess(0)
	cli.On("ContainerWait", mock.Anything, "c1", container.WaitConditionNotRunning).Return(statusCh, errCh)
	cli.On("ContainerLogs", mock.Anything, "c1", mock.Anything).Return(io.NopCloser(strings.NewReader("")), nil)
	cli.On("ContainerRemove", mock.Anything, "c1", mock.Anything).Return(nil)

	runner := newDockerRunnerWithClient(cli, slog.Default())
	result, err := runner.Run(context.Background(), RunParams{Image: "alpine:latest", Script: "echo hi"})
	require.NoError(t, err)
	require.Equal(t, int64(0), result.ExitCode)
	cli.AssertExpectations(t)
}

func TestDockerRunner_RunSurfacesNonZeroExit(t *testing.T) {
	cli := &mockSDKClient{}
	cli.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, "").
		Return(container.CreateResponse{ID: "c2"}, nil)
	cli.On("ContainerStart", mock.Anything, "c2", mock.Anything).Return(nil)
	statusCh, errCh := waitSuccess(1)
	cli.On("ContainerWait", mock.Anything, "c2", container.WaitConditionNotRunning).Return(statusCh, errCh)
	cli.On("ContainerLogs", mock.Anything, "c2", mock.Anything).Return(io.NopCloser(strings.NewReader("")), nil)
	cli.On("ContainerRemove", mock.Anything, "c2", mock.Anything).Return(nil)

	runner := newDockerRunnerWithClient(cli, slog.Default())
	result, err := runner.Run(context.Background(), RunParams{Image: "alpine:latest", Script: "exit 1"})
	require.NoError(t, err)
	require.Equal(t, int64(1), result.ExitCode)
}

func TestDockerRunner_RunPropagatesCreateError(t *testing.T) {
	cli := &mockSDKClient{}
	cli.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, "").
		Return(container.CreateResponse{}, errors.New("daemon unreachable"))

	runner := newDockerRunnerWithClient(cli, slog.Default())
	_, err := runner.Run(context.Background(), RunParams{Image: "alpine:latest", Script: "echo hi"})
	require.Error(t, err)
}
