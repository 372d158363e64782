package domain

import "errors"

var (
	// ErrRemoteUnreachable means the remote store could not be reached;
	// callers fall back to the local cache, never fail the mutation.
	ErrRemoteUnreachable = errors.New("remote store unreachable")

	// ErrRemoteRejected means the remote store refused the operation
	// (permissions, quota). Same fallback policy as unreachable.
	ErrRemoteRejected = errors.New("remote store rejected operation")

	ErrTaskNotFound  = errors.New("task not found")
	ErrEmptyTaskText = errors.New("task text is empty")
)
