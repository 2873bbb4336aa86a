package domain

import "errors"

// Task errors
var (
	ErrTaskNotFound = errors.New("task: not found")
	ErrTaskExists   = errors.New("task: already exists")
	ErrTaskTerminal = errors.New("task: already in a terminal state")
)

// Remote errors
var (
	ErrConnection      = errors.New("remote: connection failed")
	ErrInvalidResponse = errors.New("remote: invalid response")
)
