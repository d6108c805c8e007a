// Package errors defines the error taxonomy surfaced at the buffer and
// index APIs, matching the signals a caller is expected to handle
// differently (roll back, retry, or treat as a no-op).
package errors

import "errors"

// BufferAbortError means a transaction's own pin set would exceed the pool
// size, or that re-pin recovery could not make progress. The caller must
// roll back the transaction; retrying the same pin will not help.
type BufferAbortError struct {
	message string
}

func NewBufferAbortError(message string) *BufferAbortError {
	return &BufferAbortError{message: message}
}

func (e *BufferAbortError) Error() string {
	return "buffer_abort: " + e.message
}

// LockAbortError means the lock manager detected a deadlock or a lock wait
// that timed out. The transaction has already been (or must be) rolled
// back by the time this reaches the caller.
type LockAbortError struct {
	message string
}

func NewLockAbortError(message string) *LockAbortError {
	return &LockAbortError{message: message}
}

func (e *LockAbortError) Error() string {
	return "lock_abort: " + e.message
}

// ErrUnsupportedOperation is returned when a write is attempted on a
// read-only transaction.
var ErrUnsupportedOperation = errors.New("unsupported_operation: write attempted on read-only transaction")

// ErrInvalidRange marks a before_first call on an empty (lo > hi) range.
// Per spec this is handled silently by the cursor (it simply yields no
// rows); the error exists so internal code can distinguish the case from a
// true failure, but index.BeforeFirst never returns it to the caller.
var ErrInvalidRange = errors.New("invalid_range: search range is empty")

// IsBufferAbort reports whether err is (or wraps) a BufferAbortError.
func IsBufferAbort(err error) bool {
	var target *BufferAbortError
	return errors.As(err, &target)
}

// IsLockAbort reports whether err is (or wraps) a LockAbortError.
func IsLockAbort(err error) bool {
	var target *LockAbortError
	return errors.As(err, &target)
}
