package session

import "errors"

// Precondition violations surfaced to the offending client as a
// command-rejected event. None of them mutate session state.
var (
	ErrPollAlreadyActive = errors.New("a poll is already active")
	ErrNoActivePoll      = errors.New("no active poll")
	ErrEmptyQuestion     = errors.New("poll question is required")
	ErrTooFewOptions     = errors.New("poll needs at least two options")
	ErrInvalidDuration   = errors.New("poll duration must be positive")
)
