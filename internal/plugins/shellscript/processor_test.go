package shellscript

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/go-partisan/partisan/internal/task"
)

func newTestProcessor(t *testing.T, cli *mockSDKClient, args task.Arguments) *Processor {
	t.Helper()
	runner := newDockerRunnerWithClient(cli, slog.Default())
	factory := New(runner, Config{DefaultImage: "alpine:latest", DefaultTimeoutSeconds: 30})
	p, err := factory(args)
	require.NoError(t, err)
	return p.(*Processor)
}

func TestProcessor_MissingScriptArgumentFails(t *testing.T) {
	p := newTestProcessor(t, &mockSDKClient{}, task.Arguments{Kwargs: map[string]interface{}{}})
	_, err := p.Run(context.Background())
	require.Error(t, err)
}

func TestProcessor_RunsScriptSuccessfully(t *testing.T) {
	cli := &mockSDKClient{}
	cli.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, "").
		Return(container.CreateResponse{ID: "c1"}, nil)
	cli.On("ContainerStart", mock.Anything, "c1", mock.Anything).Return(nil)
	statusCh, errCh := waitSuccess(0)
	cli.On("ContainerWait", mock.Anything, "c1", container.WaitConditionNotRunning).Return(statusCh, errCh)
	cli.On("ContainerLogs", mock.Anything, "c1", mock.Anything).Return(io.NopCloser(strings.NewReader("ok")), nil)
	cli.On("ContainerRemove", mock.Anything, "c1", mock.Anything).Return(nil)

	p := newTestProcessor(t, cli, task.Arguments{Kwargs: map[string]interface{}{"script": "echo ok"}})
	out, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, out)
}

func TestProcessor_NonZeroExitIsRetryableError(t *testing.T) {
	cli := &mockSDKClient{}
	cli.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, "").
		Return(container.CreateResponse{ID: "c2"}, nil)
	cli.On("ContainerStart", mock.Anything, "c2", mock.Anything).Return(nil)
	statusCh, errCh := waitSuccess(7)
	cli.On("ContainerWait", mock.Anything, "c2", container.WaitConditionNotRunning).Return(statusCh, errCh)
	cli.On("ContainerLogs", mock.Anything, "c2", mock.Anything).Return(io.NopCloser(strings.NewReader("")), nil)
	cli.On("ContainerRemove", mock.Anything, "c2", mock.Anything).Return(nil)

	p := newTestProcessor(t, cli, task.Arguments{Kwargs: map[string]interface{}{"script": "exit 7"}})
	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrScriptFailed))
}

func TestProcessor_PolicyDeclaresRetryOnScriptFailure(t *testing.T) {
	p := newTestProcessor(t, &mockSDKClient{}, task.Arguments{})
	policy := p.Policy()
	require.NotNil(t, policy.RetryConfig)
	assert.ErrorIs(t, policy.RetryConfig.RetryOnErrors[0], ErrScriptFailed)
}
