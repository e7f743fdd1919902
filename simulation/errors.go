package simulation

import "errors"

// Typed failures returned by Supervisor operations. Match them with errors.Is.
var (
	ErrValidation       = errors.New("invalid simulation")
	ErrNotFound         = errors.New("simulation not found")
	ErrInvalidState     = errors.New("invalid simulation state")
	ErrConcurrencyLimit = errors.New("concurrency limit reached")
)
