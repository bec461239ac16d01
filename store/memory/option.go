package memory

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/rbaliyan/mailboxtree/store"
)

// options holds in-memory mapper configuration.
type options struct {
	generateID store.IDGenerator
	logger     *slog.Logger
}

func newOptions(opts ...Option) *options {
	o := &options{
		generateID: func() store.MailboxID { return store.MailboxID(uuid.NewString()) },
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures an in-memory mapper.
type Option func(*options)

// WithIDGenerator substitutes the id generator, typically with a
// deterministic one in tests. Defaults to random UUIDs.
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
