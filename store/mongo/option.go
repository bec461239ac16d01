package mongo

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rbaliyan/mailboxtree/store"
)

// Default configuration values.
const (
	DefaultDatabase   = "mailboxtree"
	DefaultCollection = "mailboxes"
	DefaultTimeout    = 10 * time.Second
)

// options holds MongoDB mapper configuration.
type options struct {
	database   string
	collection string
	timeout    time.Duration
	generateID store.IDGenerator
	logger     *slog.Logger
}

func newOptions(opts ...Option) *options {
	o := &options{
		database:   DefaultDatabase,
		collection: DefaultCollection,
		timeout:    DefaultTimeout,
		generateID: func() store.MailboxID { return store.MailboxID(uuid.NewString()) },
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures a MongoDB mapper.
type Option func(*options)

// WithDatabase sets the database name.
func WithDatabase(name string) Option {
	return func(o *options) {
		if name != "" {
			o.database = name
		}
	}
}

// WithCollection sets the collection name.
func WithCollection(name string) Option {
	return func(o *options) {
		if name != "" {
			o.collection = name
		}
	}
}

// WithTimeout sets the per-operation timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithIDGenerator substitutes the id generator. Defaults to random UUIDs.
func WithIDGenerator(gen store.IDGenerator) Option {
	return func(o *options) {
		if gen != nil {
			o.generateID = gen
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
