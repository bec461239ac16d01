// Package mailboxtree provides hierarchical mailbox (folder) storage for Go.
//
// A mailbox is a named node in a per-user folder tree, addressed by a
// MailboxPath of namespace, user, and delimiter-joined name. The package
// manages the tree metadata only: creating, renaming, deleting, and
// searching mailboxes. Message content is out of scope.
//
// All functionality is exposed via interfaces, with pluggable storage
// backends (MongoDB, PostgreSQL, in-memory, Redis-cached).
//
// # Basic Usage
//
//	// Create in-memory store for testing
//	mapper := memory.New()
//
//	// Create the tree service
//	svc, err := mailboxtree.NewService(
//	    mailboxtree.WithMapper(mapper),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Connect initializes indexes/schema
//	if err := svc.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close(ctx)
//
//	// Create a mailbox
//	inbox, err := svc.Create(ctx, store.UserPath("benwa", "INBOX"))
//
//	// Search with a wildcard: '%' matches any run of characters
//	found, err := svc.SearchPattern(ctx, store.NamespacePersonal, "benwa", "INBOX%")
//
// # Storage Backends
//
// The store package provides implementations for:
//   - MongoDB (store/mongo) - accepts *mongo.Client
//   - PostgreSQL (store/postgres) - accepts *sqlx.DB or *sql.DB
//   - In-memory (store/memory) - for testing
//   - Redis cache decorator (store/cached) - wraps any backend
//
// Every backend satisfies the same contract; the storetest package
// exports the conformance suite used to verify it.
//
// # Events
//
// The service publishes typed events for mailbox lifecycle notifications.
// Events use the github.com/rbaliyan/event/v3 library which supports
// multiple transports (Redis Streams, NATS, Kafka, in-memory channel).
//
// To enable events, pass WithRedisClient or WithEventTransport when
// creating the service:
//
//	svc, err := mailboxtree.NewService(
//	    mailboxtree.WithMapper(mapper),
//	    mailboxtree.WithRedisClient(redisClient),
//	)
//
// Events are automatically registered during Connect(). Access per-service
// events via the Events() method:
//
//	events := svc.Events()
//	events.MailboxCreated.Subscribe(ctx, handler)
//	events.MailboxRenamed.Subscribe(ctx, handler)
//	events.MailboxDeleted.Subscribe(ctx, handler)
package mailboxtree
