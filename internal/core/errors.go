package core

import "errors"

var (
	// ErrNotStarted is returned by registry operations attempted before Start
	// or after Stop.
	ErrNotStarted = errors.New("engine not started")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("engine already started")

	// ErrStopped is returned by Start once the engine has reached STOPPED.
	ErrStopped = errors.New("engine stopped")

	// ErrSessionNotFound is returned for an unknown or unregistered session id.
	ErrSessionNotFound = errors.New("session not found")
)
