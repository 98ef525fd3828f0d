package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/go-partisan/partisan/internal/task"
)

// FakeStore is an in-memory Store used by unit tests that exercise the
// claim/retry/postpone/orphan-reset contract without a live Postgres
// instance, mirroring the row-locking semantics with a plain mutex.
type FakeStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*task.Task
	clock task.Clock
}

func NewFakeStore(clock task.Clock) *FakeStore {
	return &FakeStore{tasks: make(map[uuid.UUID]*task.Task), clock: clock}
}

func (s *FakeStore) Create(_ context.Context, t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.tasks[t.ID] = &cp
	return nil
}

func (s *FakeStore) FindUniqueNew(_ context.Context, queueName, processorClass string, args task.Arguments) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	argsJSON, _ := json.Marshal(args)
	for _, t := range s.tasks {
		if t.QueueName != queueName || t.ProcessorClass != processorClass || t.Status != task.StatusNew {
			continue
		}
		candidate, _ := json.Marshal(t.Arguments)
		if string(candidate) == string(argsJSON) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *FakeStore) ClaimForProcess(_ context.Context, queueName string, count int) ([]*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	var candidates []*task.Task
	for _, t := range s.tasks {
		if t.QueueName == queueName && t.Status == task.StatusNew && !t.ExecuteAfter.After(now) {
			candidates = append(candidates, t)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].ExecuteAfter.Before(candidates[j].ExecuteAfter)
	})
	if count > 0 && len(candidates) > count {
		candidates = candidates[:count]
	}
	out := make([]*task.Task, 0, len(candidates))
	for _, t := range candidates {
		t.Status = task.StatusInProcess
		t.UpdatedAt = now
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (s *FakeStore) ResetOrphans(_ context.Context, queueName string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if t.QueueName == queueName && t.Status == task.StatusInProcess {
			t.Status = task.StatusNew
			n++
		}
	}
	return n, nil
}

func (s *FakeStore) Complete(_ context.Context, id uuid.UUID, deleteOnComplete bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if deleteOnComplete {
		delete(s.tasks, id)
		return nil
	}
	t, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	t.Status = task.StatusFinished
	t.UpdatedAt = s.clock.Now()
	return nil
}

func (s *FakeStore) Fail(_ context.Context, id uuid.UUID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	t.Status = task.StatusError
	t.Extra.Message = message
	t.UpdatedAt = s.clock.Now()
	return nil
}

func (s *FakeStore) Retry(_ context.Context, id uuid.UUID, triesCount int, executeAfter time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	t.Status = task.StatusNew
	t.SetTriesCount(triesCount)
	t.ExecuteAfter = executeAfter
	t.UpdatedAt = s.clock.Now()
	return nil
}

func (s *FakeStore) Postpone(_ context.Context, id uuid.UUID, postponesCount int, executeAfter time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	t.Status = task.StatusNew
	t.SetPostponesCount(postponesCount)
	t.ExecuteAfter = executeAfter
	t.UpdatedAt = s.clock.Now()
	return nil
}

// Get is a test-only accessor, not part of the Store interface.
func (s *FakeStore) Get(id uuid.UUID) (*task.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	cp := *t
	return &cp, true
}

// Len is a test-only accessor.
func (s *FakeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// All is a test-only accessor returning a snapshot of every stored task.
func (s *FakeStore) All() []*task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*task.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		cp := *t
		out = append(out, &cp)
	}
	return out
}
