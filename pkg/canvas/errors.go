package canvas

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation error")
	ErrNetwork           = errors.New("network failure")
	ErrStreamParse       = errors.New("stream parse error")
	ErrAlreadyInProgress = errors.New("generation already in progress")
)

// NotFoundError reports a stale id referencing a deleted or unknown entity.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e == nil {
		return ErrNotFound.Error()
	}
	return fmt.Sprintf("%s %q %s", e.Resource, e.ID, ErrNotFound)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError reports invalid input before it ever reaches the wire.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ErrValidation.Error()
	}
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%s (%s): %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NetworkError reports a transport failure or a non-2xx gateway response.
type NetworkError struct {
	Operation  string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e == nil {
		return ErrNetwork.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s during %s: status %d", ErrNetwork, e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s during %s: %v", ErrNetwork, e.Operation, e.Err)
}

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

func (e *NetworkError) Unwrap() error { return e.Err }

// StreamParseError reports a malformed SSE payload. The reconciler logs and
// skips these without aborting the stream.
type StreamParseError struct {
	Payload string
	Err     error
}

func (e *StreamParseError) Error() string {
	if e == nil {
		return ErrStreamParse.Error()
	}
	return fmt.Sprintf("%s: %v", ErrStreamParse, e.Err)
}

func (e *StreamParseError) Is(target error) bool { return target == ErrStreamParse }

func (e *StreamParseError) Unwrap() error { return e.Err }

// AlreadyInProgressError reports a duplicate sendMessage on a node that is
// still generating.
type AlreadyInProgressError struct {
	NodeID NodeID
}

func (e *AlreadyInProgressError) Error() string {
	if e == nil {
		return ErrAlreadyInProgress.Error()
	}
	return fmt.Sprintf("node %s: %s", e.NodeID, ErrAlreadyInProgress)
}

func (e *AlreadyInProgressError) Is(target error) bool { return target == ErrAlreadyInProgress }
