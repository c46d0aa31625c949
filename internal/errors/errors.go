package errors

import "errors"

// Startup errors.
var (
	ErrSourceNotFound = errors.New("source directory does not exist")
	ErrSourceNotDir   = errors.New("source is not a directory")
	ErrAlreadyStarted = errors.New("replicator already started")
	ErrNotStarted     = errors.New("replicator not started")
	ErrRootsOverlap   = errors.New("source and target overlap")
)

// ErrUnknownHandle is returned when resolving a handle that is not (or no
// longer) registered.
var ErrUnknownHandle = errors.New("unknown watch handle")
