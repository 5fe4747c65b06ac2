package domain

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrNotInitialized     = errors.New("graph not initialized")
	ErrAlreadyInitialized = errors.New("graph already initialized")
	ErrIndexOutOfRange    = errors.New("criterion index out of range")
	ErrDependencyCycle    = errors.New("dependency would introduce a cycle")
	ErrRevisionConflict   = errors.New("document revision conflict")
	ErrPersistence        = errors.New("document persistence failed")
)
