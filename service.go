package mailboxtree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbaliyan/event/v3"
	"github.com/rbaliyan/event/v3/transport/noop"
	eventredis "github.com/rbaliyan/event/v3/transport/redis"
	"github.com/rbaliyan/mailboxtree/store"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Type aliases for commonly used store types.
// These allow users to work with the mailboxtree package without importing
// store directly.
type (
	Mailbox     = store.Mailbox
	MailboxID   = store.MailboxID
	MailboxPath = store.MailboxPath
	Query       = store.Query
)

// ServiceHealth provides health and state information about the service.
type ServiceHealth interface {
	// IsConnected returns true if the service is connected and ready.
	IsConnected() bool
}

// Service manages a hierarchical mailbox tree over a pluggable storage
// backend. It adds UIDValidity allocation, lifecycle events, and
// instrumentation on top of the raw store.Mapper contract.
//
// Composed of:
//   - ServiceHealth: Health and state queries (IsConnected)
type Service interface {
	ServiceHealth

	// Connect establishes connections to the storage backend and event bus.
	Connect(ctx context.Context) error
	// Close closes all connections.
	Close(ctx context.Context) error

	// Create creates a mailbox at the given path, allocating a fresh
	// UIDValidity. Returns ErrMailboxExists if the path is taken.
	Create(ctx context.Context, path store.MailboxPath) (store.Mailbox, error)
	// Rename moves a saved mailbox to a new path. The id and UIDValidity
	// are preserved. Returns ErrMailboxExists if the target path is taken.
	Rename(ctx context.Context, mailbox store.Mailbox, newPath store.MailboxPath) (store.Mailbox, error)
	// Delete removes a single mailbox. Children are left in place; a
	// child's existence never depends on its parent's.
	Delete(ctx context.Context, mailbox store.Mailbox) error
	// DeleteSubtree removes a mailbox and every descendant under the
	// configured delimiter, returning how many mailboxes were removed.
	DeleteSubtree(ctx context.Context, path store.MailboxPath) (int, error)

	// Get returns the mailbox at exactly the given path.
	Get(ctx context.Context, path store.MailboxPath) (store.Mailbox, error)
	// GetByID returns the mailbox with the given id.
	GetByID(ctx context.Context, id store.MailboxID) (store.Mailbox, error)
	// List returns every mailbox across all namespaces and users.
	List(ctx context.Context) ([]store.Mailbox, error)
	// HasChildren reports whether the mailbox has at least one child under
	// the configured delimiter, within its own namespace and user.
	HasChildren(ctx context.Context, mailbox store.Mailbox) (bool, error)

	// Search returns the mailboxes matching a user-bound query.
	Search(ctx context.Context, query store.Query) ([]store.Mailbox, error)
	// SearchPattern searches one tenant's mailboxes with a wildcard
	// pattern, where '%' matches any run of characters (including the
	// delimiter) and every other character, '?' included, is literal.
	SearchPattern(ctx context.Context, namespace, user, pattern string) ([]store.Mailbox, error)

	// Events returns per-service event instances for subscribing and
	// publishing. Each service has its own events bound to its own event
	// bus, enabling independent event routing and parallel testing.
	Events() *ServiceEvents
}

// Connection states for the service.
const (
	stateDisconnected int32 = 0
	stateConnecting   int32 = 1
	stateConnected    int32 = 2
)

// service is the default implementation of Service.
type service struct {
	mapper   store.Mapper
	logger   *slog.Logger
	opts     *options
	state    int32 // stateDisconnected, stateConnecting, or stateConnected
	otel     *otelInstrumentation
	eventBus *event.Bus
	events   *ServiceEvents
}

// NewService creates a new mailbox tree service.
// Call Connect() to establish connections to the backend.
//
// Caching is NOT included here. If you need caching, wrap your mapper with
// the store/cached decorator before passing it in; the service treats a
// cached mapper exactly like any other backend.
func NewService(opts ...Option) (Service, error) {
	o := newOptions(opts...)

	if o.mapper == nil {
		return nil, ErrMapperRequired
	}

	otelInstr, err := newOtelInstrumentation(o)
	if err != nil {
		return nil, fmt.Errorf("init otel: %w", err)
	}

	return &service{
		mapper: o.mapper,
		logger: o.logger,
		opts:   o,
		otel:   otelInstr,
	}, nil
}

// Events returns per-service event instances for subscribing and publishing.
func (s *service) Events() *ServiceEvents {
	return s.events
}

// IsConnected returns true if the service is connected and ready.
func (s *service) IsConnected() bool {
	return atomic.LoadInt32(&s.state) == stateConnected
}

func (s *service) checkConnected() error {
	if atomic.LoadInt32(&s.state) != stateConnected {
		return ErrNotConnected
	}
	return nil
}

// Connect establishes connections to the storage backend and event bus.
func (s *service) Connect(ctx context.Context) error {
	// Three-state transition prevents operations from seeing partial
	// initialization: stateDisconnected -> stateConnecting -> stateConnected
	if !atomic.CompareAndSwapInt32(&s.state, stateDisconnected, stateConnecting) {
		return ErrAlreadyConnected
	}

	// Reset to disconnected on failure, set to connected on success
	success := false
	defer func() {
		if success {
			atomic.StoreInt32(&s.state, stateConnected)
		} else {
			atomic.StoreInt32(&s.state, stateDisconnected)
		}
	}()

	if err := s.mapper.Connect(ctx); err != nil {
		return fmt.Errorf("connect mapper: %w", err)
	}

	if err := s.initEventBus(ctx); err != nil {
		s.mapper.Close(ctx)
		return fmt.Errorf("init event bus: %w", err)
	}

	success = true
	s.logger.Info("mailboxtree service connected")
	return nil
}

// busCounter generates unique suffixes for event bus names.
var busCounter int64

// initEventBus initializes the event bus for this service. Each service
// creates its own bus with its own uniquely named events.
func (s *service) initEventBus(ctx context.Context) error {
	serviceName := s.opts.serviceName
	if serviceName == "" {
		serviceName = "mailboxtree"
	}
	// Each bus needs a unique name, so append a counter suffix
	busName := fmt.Sprintf("%s-%d", serviceName, atomic.AddInt64(&busCounter, 1))

	var bus *event.Bus
	var err error

	switch {
	case s.opts.eventTransport != nil:
		s.logger.Info("initializing event bus with custom transport")
		bus, err = event.NewBus(busName, event.WithTransport(s.opts.eventTransport))
	case s.opts.redisClient != nil:
		s.logger.Info("initializing event bus with Redis transport")
		t, transportErr := eventredis.New(s.opts.redisClient)
		if transportErr != nil {
			return fmt.Errorf("create redis transport: %w", transportErr)
		}
		bus, err = event.NewBus(busName, event.WithTransport(t))
	default:
		s.logger.Debug("initializing event bus with noop transport")
		bus, err = event.NewBus(busName, event.WithTransport(noop.New()))
	}

	if err != nil {
		return fmt.Errorf("create event bus: %w", err)
	}
	s.eventBus = bus

	s.events = newServiceEvents(busName)
	if err := registerServiceEvents(ctx, bus, s.events); err != nil {
		bus.Close(ctx)
		return fmt.Errorf("register service events: %w", err)
	}

	return nil
}

// Close closes the event bus and the storage backend.
func (s *service) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.state, stateConnected, stateDisconnected) {
		return nil
	}

	var errs []error

	// Close the event bus only if using a real transport. The noop bus
	// holds no resources.
	if s.eventBus != nil && (s.opts.eventTransport != nil || s.opts.redisClient != nil) {
		if err := s.eventBus.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close event bus: %w", err))
		}
	}

	if err := s.mapper.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close mapper: %w", err))
	}

	return errors.Join(errs...)
}

// Create creates a mailbox at the given path with a fresh UIDValidity.
func (s *service) Create(ctx context.Context, path store.MailboxPath) (store.Mailbox, error) {
	if err := s.checkConnected(); err != nil {
		return store.Mailbox{}, err
	}

	start := time.Now()
	ctx, end := s.otel.startSpan(ctx, "mailboxtree.Create",
		attribute.String("mailbox.path", path.String()),
	)

	mailbox, err := s.mapper.Save(ctx, store.NewMailbox(path, s.opts.uidValidity()))
	end(err)
	s.otel.recordCreate(ctx, time.Since(start), err)
	if err != nil {
		return store.Mailbox{}, err
	}

	s.logger.Debug("mailbox created", "id", mailbox.ID, "path", mailbox.Path)

	if pubErr := s.events.MailboxCreated.Publish(ctx, MailboxCreatedEvent{
		MailboxID:   string(mailbox.ID),
		Namespace:   mailbox.Path.Namespace,
		User:        mailbox.Path.User,
		Name:        mailbox.Path.Name,
		UIDValidity: mailbox.UIDValidity,
		CreatedAt:   time.Now().UTC(),
	}); pubErr != nil {
		if s.opts.eventErrorsFatal {
			// The mailbox exists; return it WITH the error.
			return mailbox, &EventPublishError{Event: "MailboxCreated", MailboxID: mailbox.ID, Err: pubErr}
		}
		s.opts.safeEventPublishFailure("MailboxCreated", pubErr)
	}

	return mailbox, nil
}

// Rename moves a saved mailbox to newPath, keeping id and UIDValidity.
func (s *service) Rename(ctx context.Context, mailbox store.Mailbox, newPath store.MailboxPath) (store.Mailbox, error) {
	if err := s.checkConnected(); err != nil {
		return store.Mailbox{}, err
	}
	if mailbox.ID.IsZero() {
		return store.Mailbox{}, ErrInvalidID
	}

	start := time.Now()
	ctx, end := s.otel.startSpan(ctx, "mailboxtree.Rename",
		attribute.String("mailbox.id", string(mailbox.ID)),
		attribute.String("mailbox.path", mailbox.Path.String()),
		attribute.String("mailbox.new_path", newPath.String()),
	)

	oldPath := mailbox.Path
	mailbox.Path = newPath
	renamed, err := s.mapper.Save(ctx, mailbox)
	end(err)
	s.otel.recordRename(ctx, time.Since(start), err)
	if err != nil {
		return store.Mailbox{}, err
	}

	s.logger.Debug("mailbox renamed", "id", renamed.ID, "from", oldPath, "to", renamed.Path)

	if pubErr := s.events.MailboxRenamed.Publish(ctx, MailboxRenamedEvent{
		MailboxID: string(renamed.ID),
		Namespace: renamed.Path.Namespace,
		User:      renamed.Path.User,
		OldName:   oldPath.Name,
		NewName:   renamed.Path.Name,
		RenamedAt: time.Now().UTC(),
	}); pubErr != nil {
		if s.opts.eventErrorsFatal {
			return renamed, &EventPublishError{Event: "MailboxRenamed", MailboxID: renamed.ID, Err: pubErr}
		}
		s.opts.safeEventPublishFailure("MailboxRenamed", pubErr)
	}

	return renamed, nil
}

// Delete removes a single mailbox. Returns ErrNotFound if it does not exist.
func (s *service) Delete(ctx context.Context, mailbox store.Mailbox) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	start := time.Now()
	ctx, end := s.otel.startSpan(ctx, "mailboxtree.Delete",
		attribute.String("mailbox.id", string(mailbox.ID)),
		attribute.String("mailbox.path", mailbox.Path.String()),
	)

	err := s.mapper.Delete(ctx, mailbox)
	end(err)
	s.otel.recordDelete(ctx, time.Since(start), 1, err)
	if err != nil {
		return err
	}

	s.logger.Debug("mailbox deleted", "id", mailbox.ID, "path", mailbox.Path)
	s.publishDeleted(ctx, mailbox)
	return nil
}

// publishDeleted publishes a MailboxDeleted event, honoring the failure
// policy. Fatal event errors are surfaced by the caller.
func (s *service) publishDeleted(ctx context.Context, mailbox store.Mailbox) {
	if pubErr := s.events.MailboxDeleted.Publish(ctx, MailboxDeletedEvent{
		MailboxID: string(mailbox.ID),
		Namespace: mailbox.Path.Namespace,
		User:      mailbox.Path.User,
		Name:      mailbox.Path.Name,
		DeletedAt: time.Now().UTC(),
	}); pubErr != nil {
		s.opts.safeEventPublishFailure("MailboxDeleted", pubErr)
	}
}

// DeleteSubtree removes the mailbox at path and all its descendants,
// returning how many mailboxes were removed. Descendants are deleted with
// bounded concurrency; a mailbox removed by a concurrent actor mid-flight
// is skipped rather than failing the whole operation.
func (s *service) DeleteSubtree(ctx context.Context, path store.MailboxPath) (int, error) {
	if err := s.checkConnected(); err != nil {
		return 0, err
	}

	start := time.Now()
	ctx, end := s.otel.startSpan(ctx, "mailboxtree.DeleteSubtree",
		attribute.String("mailbox.path", path.String()),
	)

	removed, err := s.deleteSubtree(ctx, path)
	end(err)
	s.otel.recordDelete(ctx, time.Since(start), removed, err)
	return removed, err
}

func (s *service) deleteSubtree(ctx context.Context, path store.MailboxPath) (int, error) {
	root, err := s.mapper.FindByPath(ctx, path)
	if err != nil {
		return 0, err
	}

	// The prefix wildcard can over-match when the parent name itself
	// contains '%', so candidates are re-checked against the real
	// parent/child relation.
	candidates, err := s.mapper.FindWithPathLike(ctx, store.ChildrenOf(path, s.opts.delimiter))
	if err != nil {
		return 0, err
	}

	victims := []store.Mailbox{root}
	for _, candidate := range candidates {
		if store.HasChildName(path.Name, candidate.Path.Name, s.opts.delimiter) {
			victims = append(victims, candidate)
		}
	}

	var (
		mu      sync.Mutex
		deleted []store.Mailbox
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.maxConcurrentDeletes)
	for _, victim := range victims {
		g.Go(func() error {
			if err := s.mapper.Delete(gctx, victim); err != nil {
				if store.IsNotFound(err) {
					// Already gone; a concurrent deleter won.
					return nil
				}
				return err
			}
			mu.Lock()
			deleted = append(deleted, victim)
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()

	for _, mailbox := range deleted {
		s.publishDeleted(ctx, mailbox)
	}
	if len(deleted) > 0 {
		s.logger.Debug("subtree deleted", "root", path, "removed", len(deleted))
	}
	return len(deleted), err
}

// Get returns the mailbox at exactly the given path.
func (s *service) Get(ctx context.Context, path store.MailboxPath) (store.Mailbox, error) {
	if err := s.checkConnected(); err != nil {
		return store.Mailbox{}, err
	}

	start := time.Now()
	ctx, end := s.otel.startSpan(ctx, "mailboxtree.Get",
		attribute.String("mailbox.path", path.String()),
	)

	mailbox, err := s.mapper.FindByPath(ctx, path)
	end(err)
	s.otel.recordGet(ctx, time.Since(start), err)
	return mailbox, err
}

// GetByID returns the mailbox with the given id.
func (s *service) GetByID(ctx context.Context, id store.MailboxID) (store.Mailbox, error) {
	if err := s.checkConnected(); err != nil {
		return store.Mailbox{}, err
	}

	start := time.Now()
	ctx, end := s.otel.startSpan(ctx, "mailboxtree.GetByID",
		attribute.String("mailbox.id", string(id)),
	)

	mailbox, err := s.mapper.FindByID(ctx, id)
	end(err)
	s.otel.recordGet(ctx, time.Since(start), err)
	return mailbox, err
}

// List returns every mailbox across all namespaces and users.
func (s *service) List(ctx context.Context) ([]store.Mailbox, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	start := time.Now()
	ctx, end := s.otel.startSpan(ctx, "mailboxtree.List")

	mailboxes, err := s.mapper.List(ctx)
	end(err)
	s.otel.recordList(ctx, time.Since(start), len(mailboxes), err)
	return mailboxes, err
}

// HasChildren reports whether the mailbox has at least one child under the
// configured delimiter.
func (s *service) HasChildren(ctx context.Context, mailbox store.Mailbox) (bool, error) {
	if err := s.checkConnected(); err != nil {
		return false, err
	}

	start := time.Now()
	ctx, end := s.otel.startSpan(ctx, "mailboxtree.HasChildren",
		attribute.String("mailbox.path", mailbox.Path.String()),
	)

	has, err := s.mapper.HasChildren(ctx, mailbox, s.opts.delimiter)
	end(err)
	s.otel.recordHasChildren(ctx, time.Since(start), err)
	return has, err
}

// Search returns the mailboxes matching a user-bound query.
func (s *service) Search(ctx context.Context, query store.Query) ([]store.Mailbox, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	start := time.Now()
	ctx, end := s.otel.startSpan(ctx, "mailboxtree.Search",
		attribute.String("query.namespace", query.Namespace()),
		attribute.String("query.user", query.User()),
	)

	mailboxes, err := s.mapper.FindWithPathLike(ctx, query)
	end(err)
	s.otel.recordSearch(ctx, time.Since(start), len(mailboxes), err)
	return mailboxes, err
}

// SearchPattern searches one tenant's mailboxes with a '%' wildcard pattern.
func (s *service) SearchPattern(ctx context.Context, namespace, user, pattern string) ([]store.Mailbox, error) {
	query, err := store.NewQuery().
		UserAndNamespace(namespace, user).
		Expression(store.Wildcard(pattern)).
		Build()
	if err != nil {
		return nil, err
	}
	return s.Search(ctx, query)
}
