package store

import (
	"errors"
	"fmt"
)

// Sentinel errors for the store package.
// Use errors.Is() to check for these errors.
var (
	// ErrNotFound is returned when no live mailbox matches the requested
	// path or id.
	ErrNotFound = errors.New("store: mailbox not found")

	// ErrMailboxExists is returned when a save would occupy a
	// (namespace, user, name) triple already held by a different mailbox.
	ErrMailboxExists = errors.New("store: mailbox already exists")

	// ErrMalformedQuery is returned when a query is built with only one of
	// namespace and user set.
	ErrMalformedQuery = errors.New("store: malformed query")

	// ErrInvalidID is returned when an empty or foreign id is supplied
	// where an assigned one is required.
	ErrInvalidID = errors.New("store: invalid mailbox id")

	// ErrNotConnected is returned when operations are attempted before Connect().
	ErrNotConnected = errors.New("store: not connected")

	// ErrAlreadyConnected is returned when Connect() is called twice.
	ErrAlreadyConnected = errors.New("store: already connected")

	// ErrStorage marks failures of the underlying backend (I/O, transaction,
	// driver). The opaque cause is attached via StorageError.
	ErrStorage = errors.New("store: storage failure")
)

// StorageError wraps a backend failure with the operation that hit it.
// It matches ErrStorage under errors.Is, and the driver error is reachable
// through errors.As / Unwrap.
type StorageError struct {
	Op    string // mapper operation, e.g. "save", "find-by-path"
	Cause error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Cause)
}

func (e *StorageError) Unwrap() error { return e.Cause }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// NewStorageError wraps a driver error for the given operation.
func NewStorageError(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &StorageError{Op: op, Cause: cause}
}

// Error checking helpers.

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsMailboxExists(err error) bool {
	return errors.Is(err, ErrMailboxExists)
}

func IsMalformedQuery(err error) bool {
	return errors.Is(err, ErrMalformedQuery)
}

func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}
