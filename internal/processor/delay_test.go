package processor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-partisan/partisan/internal/processor"
	"github.com/go-partisan/partisan/internal/store"
	"github.com/go-partisan/partisan/internal/task"
)

type reportProcessor struct {
	args   task.Arguments
	policy processor.Policy
}

func (p *reportProcessor) Run(_ context.Context) (interface{}, error) { return nil, nil }
func (p *reportProcessor) ClassName() string                         { return "ReportProcessor" }
func (p *reportProcessor) Policy() processor.Policy                  { return p.policy }

func TestDelay_CreatesTask(t *testing.T) {
	clock := task.NewFakeClock(time.Now())
	s := store.NewFakeStore(clock)
	p := &reportProcessor{policy: processor.Policy{Queue: "reports", Priority: 7}}

	created, err := processor.Delay(context.Background(), s, p, task.Arguments{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "reports", created.QueueName)
	assert.Equal(t, 7, created.Priority)
	assert.Equal(t, 1, s.Len())
}

func TestDelay_PriorityOverride(t *testing.T) {
	clock := task.NewFakeClock(time.Now())
	s := store.NewFakeStore(clock)
	p := &reportProcessor{policy: processor.Policy{Priority: 7}}
	override := 1

	created, err := processor.Delay(context.Background(), s, p, task.Arguments{}, &override)
	require.NoError(t, err)
	assert.Equal(t, 1, created.Priority)
}

func TestDelay_UniqueForParamsReturnsExisting(t *testing.T) {
	clock := task.NewFakeClock(time.Now())
	s := store.NewFakeStore(clock)
	p := &reportProcessor{policy: processor.Policy{UniqueForParams: true}}
	args := task.Arguments{Args: []interface{}{"weekly"}, Kwargs: map[string]interface{}{}}

	first, err := processor.Delay(context.Background(), s, p, args, nil)
	require.NoError(t, err)

	second, err := processor.Delay(context.Background(), s, p, args, nil)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, s.Len())
}

func TestDelayForRetry_BumpsCounterAndReschedules(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := task.NewFakeClock(now)
	s := store.NewFakeStore(clock)

	tk := task.New("ReportProcessor", task.Arguments{})
	require.NoError(t, s.Create(context.Background(), tk))

	cfg := task.ErrorsHandleConfig{
		RetryOnErrors: []error{assert.AnError},
		RetriesCount:  3,
		RetryPause:    30 * time.Second,
		Strategy:      task.DelayStrategyConstant,
	}
	require.NoError(t, processor.DelayForRetry(context.Background(), s, clock, tk, cfg))

	stored, ok := s.Get(tk.ID)
	require.True(t, ok)
	assert.Equal(t, 1, stored.TriesCount())
	assert.Equal(t, now.Add(30*time.Second), stored.ExecuteAfter)
	assert.Equal(t, task.StatusNew, stored.Status)
}
