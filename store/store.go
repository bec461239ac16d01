// Package store defines the storage contract for the hierarchical mailbox
// (folder) tree of a mail server. Implementations live in store/memory,
// store/postgres, store/mongo, and store/cached subpackages.
//
// # One contract, many engines
//
// A mailbox is addressed by (namespace, user, name), where the name is a
// delimiter-joined hierarchy such as "INBOX.work.todo". Every backend,
// whatever its native query capability, must reproduce three things
// identically:
//
//  1. Addressing: no two live mailboxes share a (namespace, user, name)
//     triple, and ids stay opaque backend-assigned handles.
//
//  2. Pattern matching: the two-symbol grammar of Wildcard, where '%' is
//     the only metacharacter and everything else - notably '?' - is
//     literal. Backends translating to LIKE or regex must escape their own
//     metacharacters in the literal portions first.
//
//  3. Concurrency: the uniqueness check and the insert inside Save are one
//     atomic storage operation. Two concurrent saves of the same path
//     yield exactly one success and one ErrMailboxExists, never two of
//     either. This is enforced with database-native mechanisms (unique
//     constraints, compare-and-swap), not check-then-write sequences and
//     not external locks.
//
// Reads (List, FindWithPathLike, HasChildren) observe a point-in-time
// snapshot: they may lag concurrent writes, but they never surface a
// half-written record. No operation requires the caller to hold a lock
// across calls.
//
// Mappers attach no retry policy. ErrNotFound and ErrMailboxExists are
// final; ErrStorage failures are surfaced as-is for the backend driver or
// the caller to deal with.
package store

import "context"

// IDGenerator produces fresh mailbox ids for a mapper instance. Generation
// state is owned by the mapper it was injected into; there is no ambient
// generator, so tests can substitute a deterministic one.
type IDGenerator func() MailboxID

// Mapper is the storage contract for the mailbox tree, implemented once per
// backend.
//
// All operations are safe for concurrent use. A failed operation leaves the
// persisted state as if the call never happened, and never returns a
// partially-constructed mailbox alongside an error.
type Mapper interface {
	// Connect prepares the backend (schema, indexes, connectivity check).
	Connect(ctx context.Context) error

	// Close releases the mapper. The owner of the underlying connection
	// remains responsible for closing it.
	Close(ctx context.Context) error

	// Save persists the mailbox, assigning a fresh id when mailbox.ID is
	// zero, and returns the persisted value. Saving a path occupied by a
	// different mailbox fails with ErrMailboxExists; the existence check
	// and the write are atomic with respect to concurrent saves. Saving
	// with an assigned id replaces that record, which is how a rename
	// (path replacement) is expressed.
	Save(ctx context.Context, mailbox Mailbox) (Mailbox, error)

	// Delete removes the record matching mailbox.ID, or mailbox.Path when
	// the id is unassigned. Deleting a mailbox that does not exist returns
	// ErrNotFound. (Policy note: silent success on a missing mailbox is a
	// legitimate backend choice elsewhere; every backend in this module
	// surfaces ErrNotFound so callers can rely on one behavior.)
	Delete(ctx context.Context, mailbox Mailbox) error

	// FindByPath returns the mailbox at exactly the given path, or
	// ErrNotFound. The name is never interpreted as a pattern, even when
	// it contains wildcard-looking characters.
	FindByPath(ctx context.Context, path MailboxPath) (Mailbox, error)

	// FindByID returns the mailbox with the given id, or ErrNotFound.
	FindByID(ctx context.Context, id MailboxID) (Mailbox, error)

	// List returns every mailbox across all tenants, without duplicates or
	// omissions of what existed at call time. Ordering is unspecified.
	List(ctx context.Context) ([]Mailbox, error)

	// HasChildren reports whether another mailbox of the same
	// (namespace, user) is named mailbox.Path.Name + delimiter + suffix
	// for a non-empty suffix. Identically-named parents of other tenants
	// contribute nothing.
	HasChildren(ctx context.Context, mailbox Mailbox, delimiter rune) (bool, error)

	// FindWithPathLike returns the mailboxes of the query's tenant whose
	// name satisfies the query's expression. An empty result means zero
	// matches; failures are always reported as errors, never as an empty
	// slice.
	FindWithPathLike(ctx context.Context, query Query) ([]Mailbox, error)
}
