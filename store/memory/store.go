// Package memory provides an in-memory store.Mapper for testing.
// Data is not persisted; the package exists as the reference
// implementation every other backend is held against.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rbaliyan/mailboxtree/store"
)

// Compile-time check
var _ store.Mapper = (*Mapper)(nil)

// Mapper implements store.Mapper with in-memory maps.
//
// A single mutex guards both indexes, which makes Save's check-and-insert
// atomic under concurrent access and gives List and the search operations
// a consistent snapshot to copy out of.
type Mapper struct {
	opts      *options
	logger    *slog.Logger
	connected int32

	mu     sync.RWMutex
	byID   map[store.MailboxID]store.Mailbox
	byPath map[store.MailboxPath]store.MailboxID
}

// New creates an in-memory mapper.
func New(opts ...Option) *Mapper {
	o := newOptions(opts...)
	return &Mapper{
		opts:   o,
		logger: o.logger,
		byID:   make(map[store.MailboxID]store.Mailbox),
		byPath: make(map[store.MailboxPath]store.MailboxID),
	}
}

// Connect marks the mapper as connected.
func (m *Mapper) Connect(_ context.Context) error {
	if !atomic.CompareAndSwapInt32(&m.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}
	return nil
}

// Close marks the mapper as disconnected.
func (m *Mapper) Close(_ context.Context) error {
	atomic.StoreInt32(&m.connected, 0)
	return nil
}

func (m *Mapper) checkConnected() error {
	if atomic.LoadInt32(&m.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}

// Save persists the mailbox, assigning an id when it has none.
// The uniqueness check and the write happen under one lock acquisition,
// so a race between two saves of the same path yields exactly one
// ErrMailboxExists.
func (m *Mapper) Save(ctx context.Context, mailbox store.Mailbox) (store.Mailbox, error) {
	if err := m.checkConnected(); err != nil {
		return store.Mailbox{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if occupant, taken := m.byPath[mailbox.Path]; taken && occupant != mailbox.ID {
		return store.Mailbox{}, store.ErrMailboxExists
	}

	if mailbox.ID.IsZero() {
		mailbox.ID = m.opts.generateID()
	}

	// A save with an assigned id replaces the record; drop the old path
	// index entry when the path changed (rename).
	if previous, ok := m.byID[mailbox.ID]; ok && previous.Path != mailbox.Path {
		delete(m.byPath, previous.Path)
	}

	m.byID[mailbox.ID] = mailbox
	m.byPath[mailbox.Path] = mailbox.ID
	return mailbox, nil
}

// Delete removes the record by id, or by path when the id is unassigned.
// Deleting a missing mailbox returns store.ErrNotFound.
func (m *Mapper) Delete(ctx context.Context, mailbox store.Mailbox) error {
	if err := m.checkConnected(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := mailbox.ID
	if id.IsZero() {
		var ok bool
		id, ok = m.byPath[mailbox.Path]
		if !ok {
			return store.ErrNotFound
		}
	}

	existing, ok := m.byID[id]
	if !ok {
		return store.ErrNotFound
	}

	delete(m.byID, id)
	delete(m.byPath, existing.Path)
	return nil
}

// FindByPath returns the mailbox at exactly the given path.
func (m *Mapper) FindByPath(ctx context.Context, path store.MailboxPath) (store.Mailbox, error) {
	if err := m.checkConnected(); err != nil {
		return store.Mailbox{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byPath[path]
	if !ok {
		return store.Mailbox{}, store.ErrNotFound
	}
	return m.byID[id], nil
}

// FindByID returns the mailbox with the given id.
func (m *Mapper) FindByID(ctx context.Context, id store.MailboxID) (store.Mailbox, error) {
	if err := m.checkConnected(); err != nil {
		return store.Mailbox{}, err
	}
	if id.IsZero() {
		return store.Mailbox{}, store.ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	mailbox, ok := m.byID[id]
	if !ok {
		return store.Mailbox{}, store.ErrNotFound
	}
	return mailbox, nil
}

// List returns a snapshot of every mailbox across all tenants.
func (m *Mapper) List(ctx context.Context) ([]store.Mailbox, error) {
	if err := m.checkConnected(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	mailboxes := make([]store.Mailbox, 0, len(m.byID))
	for _, mailbox := range m.byID {
		mailboxes = append(mailboxes, mailbox)
	}
	return mailboxes, nil
}

// HasChildren reports whether the mailbox has a descendant in the same
// tenant under the given delimiter.
func (m *Mapper) HasChildren(ctx context.Context, mailbox store.Mailbox, delimiter rune) (bool, error) {
	if err := m.checkConnected(); err != nil {
		return false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for path := range m.byPath {
		if path.SameTenant(mailbox.Path) && store.HasChildName(mailbox.Path.Name, path.Name, delimiter) {
			return true, nil
		}
	}
	return false, nil
}

// FindWithPathLike returns the query tenant's mailboxes whose name
// satisfies the query expression, straight from the reference predicate.
func (m *Mapper) FindWithPathLike(ctx context.Context, query store.Query) ([]store.Mailbox, error) {
	if err := m.checkConnected(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []store.Mailbox
	for _, mailbox := range m.byID {
		if query.Matches(mailbox) {
			matches = append(matches, mailbox)
		}
	}
	return matches, nil
}
