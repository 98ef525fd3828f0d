package store

import "errors"

var (
	ErrDuplicate      = errors.New("duplicate task")
	ErrForeignKey     = errors.New("foreign key violation")
	ErrCheckViolation = errors.New("check constraint violation")
	ErrNotFound       = errors.New("task not found")
)
