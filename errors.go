package mailboxtree

import (
	"errors"
	"fmt"

	"github.com/rbaliyan/mailboxtree/store"
)

// Sentinel errors for the mailboxtree package.
// Use errors.Is() to check for these errors.
//
// Errors raised by the storage layer pass through the facade unchanged,
// so the corresponding sentinels here are the store-level errors
// themselves: errors.Is(err, mailboxtree.ErrNotFound) and
// errors.Is(err, store.ErrNotFound) are the same check.
var (
	// ErrNotFound is returned when a mailbox cannot be found.
	ErrNotFound = store.ErrNotFound

	// ErrMailboxExists is returned when a create or rename targets a path
	// that is already taken.
	ErrMailboxExists = store.ErrMailboxExists

	// ErrMalformedQuery is returned when a search query is built without
	// both a namespace and a user.
	ErrMalformedQuery = store.ErrMalformedQuery

	// ErrInvalidID is returned when an invalid mailbox id is provided.
	ErrInvalidID = store.ErrInvalidID

	// ErrMapperRequired is returned when no mapper is configured.
	ErrMapperRequired = errors.New("mailboxtree: mapper is required")

	// ErrNotConnected is returned when operations are attempted before Connect().
	// Wraps store.ErrNotConnected for consistent error checking.
	ErrNotConnected = fmt.Errorf("mailboxtree: %w", store.ErrNotConnected)

	// ErrAlreadyConnected is returned when Connect() is called twice.
	// Wraps store.ErrAlreadyConnected for consistent error checking.
	ErrAlreadyConnected = fmt.Errorf("mailboxtree: %w", store.ErrAlreadyConnected)
)

// EventPublishError is returned when an operation succeeded but its
// lifecycle event failed to publish and event errors are configured as
// fatal. The mailbox state change has already happened; callers that see
// this error must not retry the operation itself.
type EventPublishError struct {
	// Event is the name of the event that failed (e.g. "MailboxCreated").
	Event string
	// MailboxID identifies the mailbox the event was about.
	MailboxID store.MailboxID
	// Err is the underlying publish error.
	Err error
}

func (e *EventPublishError) Error() string {
	return fmt.Sprintf("mailboxtree: publish %s for mailbox %s: %v", e.Event, e.MailboxID, e.Err)
}

func (e *EventPublishError) Unwrap() error {
	return e.Err
}
