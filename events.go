package mailboxtree

import (
	"context"
	"fmt"
	"time"

	"github.com/rbaliyan/event/v3"
)

// Event names for mailbox lifecycle events.
const (
	EventNameMailboxCreated = "mailboxtree.mailbox.created"
	EventNameMailboxRenamed = "mailboxtree.mailbox.renamed"
	EventNameMailboxDeleted = "mailboxtree.mailbox.deleted"
)

// MailboxCreatedEvent is published when a mailbox is created.
type MailboxCreatedEvent struct {
	MailboxID   string    `json:"mailbox_id"`
	Namespace   string    `json:"namespace"`
	User        string    `json:"user"`
	Name        string    `json:"name"`
	UIDValidity uint64    `json:"uid_validity"`
	CreatedAt   time.Time `json:"created_at"`
}

// MailboxRenamedEvent is published when a mailbox moves to a new path.
// The id and UIDValidity are unchanged by a rename.
type MailboxRenamedEvent struct {
	MailboxID string    `json:"mailbox_id"`
	Namespace string    `json:"namespace"`
	User      string    `json:"user"`
	OldName   string    `json:"old_name"`
	NewName   string    `json:"new_name"`
	RenamedAt time.Time `json:"renamed_at"`
}

// MailboxDeletedEvent is published when a mailbox is deleted. DeleteSubtree
// publishes one event per removed mailbox.
type MailboxDeletedEvent struct {
	MailboxID string    `json:"mailbox_id"`
	Namespace string    `json:"namespace"`
	User      string    `json:"user"`
	Name      string    `json:"name"`
	DeletedAt time.Time `json:"deleted_at"`
}

// ServiceEvents provides access to per-service event instances.
// Each service creates its own events bound to its own event bus,
// enabling independent event routing and parallel testing.
//
// Subscribe to events:
//
//	svc.Events().MailboxCreated.Subscribe(ctx, handler)
//	svc.Events().MailboxRenamed.Subscribe(ctx, handler)
//	svc.Events().MailboxDeleted.Subscribe(ctx, handler)
type ServiceEvents struct {
	// MailboxCreated is published when a mailbox is created.
	MailboxCreated event.Event[MailboxCreatedEvent]

	// MailboxRenamed is published when a mailbox moves to a new path.
	MailboxRenamed event.Event[MailboxRenamedEvent]

	// MailboxDeleted is published when a mailbox is deleted.
	MailboxDeleted event.Event[MailboxDeletedEvent]
}

// newServiceEvents creates per-service event instances with a unique name prefix.
func newServiceEvents(namePrefix string) *ServiceEvents {
	return &ServiceEvents{
		MailboxCreated: event.New[MailboxCreatedEvent](namePrefix + "." + EventNameMailboxCreated),
		MailboxRenamed: event.New[MailboxRenamedEvent](namePrefix + "." + EventNameMailboxRenamed),
		MailboxDeleted: event.New[MailboxDeletedEvent](namePrefix + "." + EventNameMailboxDeleted),
	}
}

// registerServiceEvents registers per-service events with the given bus.
func registerServiceEvents(ctx context.Context, bus *event.Bus, events *ServiceEvents) error {
	if err := event.Register(ctx, bus, events.MailboxCreated); err != nil {
		return fmt.Errorf("register MailboxCreated: %w", err)
	}
	if err := event.Register(ctx, bus, events.MailboxRenamed); err != nil {
		return fmt.Errorf("register MailboxRenamed: %w", err)
	}
	if err := event.Register(ctx, bus, events.MailboxDeleted); err != nil {
		return fmt.Errorf("register MailboxDeleted: %w", err)
	}
	return nil
}
