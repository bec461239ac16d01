package cached

import (
	"log/slog"
	"time"
)

// Default configuration values.
const (
	DefaultTTL       = 5 * time.Minute
	DefaultKeyPrefix = "mailboxtree:"
)

// options holds cache decorator configuration.
type options struct {
	ttl       time.Duration
	keyPrefix string
	logger    *slog.Logger
}

func newOptions(opts ...Option) *options {
	o := &options{
		ttl:       DefaultTTL,
		keyPrefix: DefaultKeyPrefix,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures the cache decorator.
type Option func(*options)

// WithTTL sets how long cached lookups stay valid.
func WithTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.ttl = d
		}
	}
}

// WithKeyPrefix sets the Redis key prefix, letting several trees share one
// Redis without colliding.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.keyPrefix = prefix
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
