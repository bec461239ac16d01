// Package mongo provides a MongoDB implementation of store.Mapper.
//
// Path uniqueness is enforced by a unique compound index on
// (namespace, user, name); Save relies on the index to resolve concurrent
// saves of the same path atomically inside the server. Wildcard queries
// are translated into anchored $regex predicates with the literal portions
// quoted, so only '%' ever acts as a metacharacter.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/rbaliyan/mailboxtree/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Compile-time check
var _ store.Mapper = (*Mapper)(nil)

// Mapper implements store.Mapper using MongoDB.
type Mapper struct {
	client     *mongo.Client
	db         *mongo.Database
	collection *mongo.Collection
	opts       *options
	connected  int32
	logger     *slog.Logger
}

// mailboxDoc mirrors one collection document. The mapper-generated id is
// stored directly as _id, so MailboxID stays the only identity in play.
type mailboxDoc struct {
	ID          string `bson:"_id"`
	Namespace   string `bson:"namespace"`
	User        string `bson:"user"`
	Name        string `bson:"name"`
	UIDValidity uint64 `bson:"uid_validity"`
}

func (d mailboxDoc) toMailbox() store.Mailbox {
	return store.Mailbox{
		ID:          store.MailboxID(d.ID),
		Path:        store.NewPath(d.Namespace, d.User, d.Name),
		UIDValidity: d.UIDValidity,
	}
}

func newDoc(mailbox store.Mailbox) mailboxDoc {
	return mailboxDoc{
		ID:          string(mailbox.ID),
		Namespace:   mailbox.Path.Namespace,
		User:        mailbox.Path.User,
		Name:        mailbox.Path.Name,
		UIDValidity: mailbox.UIDValidity,
	}
}

// New creates a MongoDB mapper with the provided client.
// Call Connect() to initialize the collection and indexes.
func New(client *mongo.Client, opts ...Option) *Mapper {
	o := newOptions(opts...)
	return &Mapper{
		client: client,
		opts:   o,
		logger: o.logger,
	}
}

// Connect verifies connectivity and creates the indexes.
func (m *Mapper) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&m.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}

	if m.client == nil {
		atomic.StoreInt32(&m.connected, 0)
		return fmt.Errorf("mongo: client is required")
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.timeout)
	defer cancel()

	if err := m.client.Ping(ctx, nil); err != nil {
		atomic.StoreInt32(&m.connected, 0)
		return store.NewStorageError("connect", err)
	}

	m.db = m.client.Database(m.opts.database)
	m.collection = m.db.Collection(m.opts.collection)

	if err := m.ensureIndexes(ctx); err != nil {
		atomic.StoreInt32(&m.connected, 0)
		return store.NewStorageError("ensure-indexes", err)
	}

	m.logger.Info("connected to MongoDB",
		"database", m.opts.database, "collection", m.opts.collection)
	return nil
}

// Close marks the mapper as disconnected.
// The caller is responsible for closing the MongoDB client.
func (m *Mapper) Close(ctx context.Context) error {
	atomic.StoreInt32(&m.connected, 0)
	return nil
}

func (m *Mapper) checkConnected() error {
	if atomic.LoadInt32(&m.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}

// ensureIndexes creates the unique path index and the tenant index.
func (m *Mapper) ensureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		// The unique constraint that makes Save's check-and-insert atomic.
		{
			Keys: bson.D{
				bson.E{Key: "namespace", Value: 1},
				bson.E{Key: "user", Value: 1},
				bson.E{Key: "name", Value: 1},
			},
			Options: mongoopts.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				bson.E{Key: "namespace", Value: 1},
				bson.E{Key: "user", Value: 1},
			},
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}
