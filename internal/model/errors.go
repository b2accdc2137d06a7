package model

import "errors"

// Common errors used across the application
var (
	// Player errors
	ErrPlayerNotFound  = errors.New("player not found")
	ErrPlayerExists    = errors.New("player already exists")
	ErrSessionNotFound = errors.New("session token not found")

	// Queue errors
	ErrAlreadyQueued = errors.New("connection is already queued")
	ErrNotQueued     = errors.New("connection left the queue before admission")

	// Game pool errors
	ErrPoolStopped = errors.New("game pool is stopped")

	// Config errors
	ErrInvalidMatchMode = errors.New("invalid match mode: must be 'fifo' or 'ranked'")
)
