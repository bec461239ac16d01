package store

import "fmt"

// Well-known namespaces. The namespace is the top-level partition of the
// mailbox address space; most deployments only ever use the personal one.
const (
	// NamespacePersonal is the default namespace for a user's own mailboxes.
	NamespacePersonal = "#private"

	// DefaultDelimiter separates hierarchy segments within a mailbox name.
	DefaultDelimiter = '.'
)

// MailboxPath identifies a mailbox by namespace, user, and hierarchical name.
// The name is a delimiter-joined string of segments (e.g. "INBOX.work.todo").
//
// MailboxPath is an immutable value: equality is structural on all three
// fields, and a rename is modeled as saving a Mailbox whose Path field was
// replaced, never as delete-then-create.
type MailboxPath struct {
	Namespace string
	User      string
	Name      string
}

// NewPath creates a mailbox path in an explicit namespace.
func NewPath(namespace, user, name string) MailboxPath {
	return MailboxPath{Namespace: namespace, User: user, Name: name}
}

// UserPath creates a mailbox path in the personal namespace.
func UserPath(user, name string) MailboxPath {
	return MailboxPath{Namespace: NamespacePersonal, User: user, Name: name}
}

// Child returns the path of a direct child of p.
func (p MailboxPath) Child(segment string, delimiter rune) MailboxPath {
	return MailboxPath{
		Namespace: p.Namespace,
		User:      p.User,
		Name:      p.Name + string(delimiter) + segment,
	}
}

// SameTenant reports whether two paths belong to the same namespace and user.
func (p MailboxPath) SameTenant(other MailboxPath) bool {
	return p.Namespace == other.Namespace && p.User == other.User
}

func (p MailboxPath) String() string {
	return fmt.Sprintf("%s:%s:%s", p.Namespace, p.User, p.Name)
}

// MailboxID is an opaque identifier assigned by a mapper when a mailbox is
// first saved. Callers must not construct or parse one; its shape differs
// between backends. The zero value means "not yet saved".
type MailboxID string

// IsZero reports whether the id has been assigned.
func (id MailboxID) IsZero() bool { return id == "" }

func (id MailboxID) String() string { return string(id) }

// Mailbox is a single folder in the mailbox tree.
//
// UIDValidity is the IMAP validity marker generated when the mailbox is
// created. It is carried, never interpreted: mappers persist and return it
// untouched.
type Mailbox struct {
	ID          MailboxID
	Path        MailboxPath
	UIDValidity uint64
}

// NewMailbox creates an unsaved mailbox for the given path.
// The mapper assigns an ID on the first successful Save.
func NewMailbox(path MailboxPath, uidValidity uint64) Mailbox {
	return Mailbox{Path: path, UIDValidity: uidValidity}
}

func (m Mailbox) String() string {
	return fmt.Sprintf("Mailbox{id=%s path=%s uidValidity=%d}", m.ID, m.Path, m.UIDValidity)
}
