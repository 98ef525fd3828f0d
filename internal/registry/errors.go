package registry

import "errors"

var (
	ErrNotFound           = errors.New("processor class not found: is it registered?")
	ErrAlreadyRegistered  = errors.New("processor class already registered")
)
