package task

import (
	"fmt"
	"time"
)

// DelayStrategy selects how the retry pause grows across attempts.
type DelayStrategy string

const (
	DelayStrategyConstant    DelayStrategy = "constant"
	DelayStrategyIncremental DelayStrategy = "incremental"
)

// ErrorsHandleConfig is the retry policy bound to a processor, grounded on
// django_partisan.config.processor_configs.ErrorsHandleConfig.
type ErrorsHandleConfig struct {
	// RetryOnErrors lists the error sentinels/types that trigger a retry
	// rather than a terminal failure. Checked with errors.Is by the caller;
	// empty is invalid.
	RetryOnErrors []error
	RetriesCount  int
	RetryPause    time.Duration
	Strategy      DelayStrategy
}

func (c ErrorsHandleConfig) Validate() error {
	if len(c.RetryOnErrors) == 0 {
		return fmt.Errorf("retry_on_errors must be defined and not empty")
	}
	if c.RetriesCount < 1 {
		return fmt.Errorf("retries_count must be 1 or greater")
	}
	if c.RetryPause < 0 {
		return fmt.Errorf("retry_pause must not be negative")
	}
	switch c.Strategy {
	case DelayStrategyConstant, DelayStrategyIncremental:
	default:
		return fmt.Errorf("retry_pause_strategy must be constant or incremental")
	}
	return nil
}

// ShouldBeRetried mirrors shoud_be_retried: tryNum is 1-indexed.
func (c ErrorsHandleConfig) ShouldBeRetried(tryNum int) bool {
	return tryNum <= c.RetriesCount
}

// NewExecuteAfterForRetry mirrors get_new_datetime_for_retry.
func (c ErrorsHandleConfig) NewExecuteAfterForRetry(now time.Time, tryNum int) (time.Time, error) {
	if !c.ShouldBeRetried(tryNum) {
		return time.Time{}, fmt.Errorf("task should not be delayed, tries ended")
	}
	if c.Strategy == DelayStrategyConstant {
		return now.Add(c.RetryPause), nil
	}
	return now.Add(c.RetryPause * time.Duration(tryNum)), nil
}

// PostponeConfig bounds how many times a task may postpone itself before it
// is failed outright, grounded on processor_configs.PostponeConfig.
type PostponeConfig struct {
	MaxPostpones int
}

func (c PostponeConfig) Validate() error {
	if c.MaxPostpones < 1 {
		return fmt.Errorf("max_postpones must be 1 or greater")
	}
	return nil
}

// NewExecuteAfterForPostpone mirrors get_new_datetime_for_postpone.
func (c PostponeConfig) NewExecuteAfterForPostpone(now time.Time, postponeFor time.Duration) time.Time {
	return now.Add(postponeFor)
}
