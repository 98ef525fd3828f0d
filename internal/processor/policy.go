package processor

import "github.com/go-partisan/partisan/internal/task"

// Policy is the per-processor configuration bound at registration time,
// grounded on django_partisan's RETRY_ON_ERROR_CONFIG/POSTPONE_CONFIG class
// attributes and spec.md's ErrorsHandleConfig/PostponeConfig.
type Policy struct {
	Queue           string
	Priority        int
	UniqueForParams bool
	RetryConfig     *task.ErrorsHandleConfig
	PostponeConfig  *task.PostponeConfig
}

func (p Policy) queueOrDefault() string {
	if p.Queue == "" {
		return task.DefaultQueueName
	}
	return p.Queue
}

func (p Policy) priorityOrDefault() int {
	if p.Priority == 0 {
		return DefaultPriority
	}
	return p.Priority
}
