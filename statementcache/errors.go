package statementcache

import (
	"errors"
	"fmt"
)

var (
	// ErrNilToken is returned when releasing a nil lock token.
	ErrNilToken = errors.New("statementcache: nil lock token")

	// ErrTokenReleased is returned when a lock token is released more than
	// once. Double release is a caller error and is reported, never
	// silently ignored.
	ErrTokenReleased = errors.New("statementcache: lock token already released")
)

// LockAcquisitionError reports a failed partition lock acquisition, usually
// due to caller cancellation or timeout while waiting. No partial
// acquisition state survives the failure.
type LockAcquisitionError struct {
	Partition string
	Cause     error
}

// Error implements the error interface.
func (e *LockAcquisitionError) Error() string {
	return fmt.Sprintf("statementcache: acquiring lock on partition %q: %v", e.Partition, e.Cause)
}

// Unwrap exposes the underlying cause, typically context.Canceled or
// context.DeadlineExceeded.
func (e *LockAcquisitionError) Unwrap() error {
	return e.Cause
}
