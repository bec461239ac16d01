package mailboxtree

import (
	"log/slog"
	"math/rand/v2"

	"github.com/rbaliyan/event/v3/transport"
	"github.com/rbaliyan/mailboxtree/store"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Default configuration values.
const (
	// DefaultDelimiter separates hierarchy levels in mailbox names.
	DefaultDelimiter = store.DefaultDelimiter

	// DefaultMaxConcurrentDeletes bounds the fan-out of DeleteSubtree.
	DefaultMaxConcurrentDeletes = 4
)

// UIDValidityGenerator produces the UIDValidity value assigned to newly
// created mailboxes. Implementations must never return zero.
type UIDValidityGenerator func() uint64

// randomUIDValidity is the default generator. UIDValidity only has to be
// non-zero and unlikely to repeat when a path is deleted and recreated;
// IMAP constrains it to 32 bits.
func randomUIDValidity() uint64 {
	for {
		if v := uint64(rand.Uint32()); v != 0 {
			return v
		}
	}
}

// options holds service configuration.
type options struct {
	mapper store.Mapper
	logger *slog.Logger

	delimiter            rune
	uidValidity          UIDValidityGenerator
	maxConcurrentDeletes int

	// OpenTelemetry
	tracingEnabled bool
	metricsEnabled bool
	serviceName    string
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	// Event handling
	eventErrorsFatal      bool                    // If true, event publishing failures cause the operation to fail
	eventTransport        transport.Transport     // Event transport (optional, uses noop if nil)
	redisClient           redis.UniversalClient   // Redis client for event transport (optional, uses noop if nil)
	onEventPublishFailure EventPublishFailureFunc // Callback for event publish failures (always set)
}

// EventPublishFailureFunc is called when an event fails to publish.
// The eventName is the name of the event (e.g., "MailboxCreated"), and err
// is the publish error.
type EventPublishFailureFunc func(eventName string, err error)

// safeEventPublishFailure calls the event failure callback with panic recovery.
// If the callback panics, the panic is logged and suppressed to prevent
// cascading failures.
func (o *options) safeEventPublishFailure(eventName string, err error) {
	if o.onEventPublishFailure == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic in event publish failure handler",
				"event", eventName,
				"original_error", err,
				"panic", r,
			)
		}
	}()
	o.onEventPublishFailure(eventName, err)
}

// newOptions creates options with defaults and applies provided options.
func newOptions(opts ...Option) *options {
	o := &options{
		logger:               slog.Default(),
		delimiter:            DefaultDelimiter,
		uidValidity:          randomUIDValidity,
		maxConcurrentDeletes: DefaultMaxConcurrentDeletes,
	}
	for _, opt := range opts {
		opt(o)
	}

	// Ensure event failure callback is always set
	if o.onEventPublishFailure == nil {
		o.onEventPublishFailure = func(eventName string, err error) {
			o.logger.Error("failed to publish event", "event", eventName, "error", err)
		}
	}

	return o
}

// Option configures a service.
type Option func(*options)

// --- Core Options ---

// WithMapper sets the storage backend (required).
func WithMapper(m store.Mapper) Option {
	return func(o *options) {
		if m != nil {
			o.mapper = m
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

// WithDelimiter sets the hierarchy delimiter used by HasChildren and
// DeleteSubtree. Default is '.'.
func WithDelimiter(d rune) Option {
	return func(o *options) {
		if d != 0 {
			o.delimiter = d
		}
	}
}

// WithUIDValidityGenerator sets the generator for UIDValidity values
// assigned on Create. Default is a random non-zero 32-bit value.
func WithUIDValidityGenerator(fn UIDValidityGenerator) Option {
	return func(o *options) {
		if fn != nil {
			o.uidValidity = fn
		}
	}
}

// WithMaxConcurrentDeletes bounds how many mailboxes DeleteSubtree removes
// in parallel. Default is 4.
func WithMaxConcurrentDeletes(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConcurrentDeletes = n
		}
	}
}

// --- OTel Options ---

// WithTracing enables or disables OpenTelemetry tracing.
// When enabled, spans are created for all service operations.
// Default is disabled.
func WithTracing(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
	}
}

// WithMetrics enables or disables OpenTelemetry metrics.
// When enabled, metrics are collected for all service operations.
// Default is disabled.
func WithMetrics(enabled bool) Option {
	return func(o *options) {
		o.metricsEnabled = enabled
	}
}

// WithOTel enables both OpenTelemetry tracing and metrics.
// This is a convenience function equivalent to calling
// WithTracing(true) and WithMetrics(true).
func WithOTel(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
		o.metricsEnabled = enabled
	}
}

// WithServiceName sets the service name for OpenTelemetry telemetry and
// event bus naming. Default is "mailboxtree".
func WithServiceName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.serviceName = name
		}
	}
}

// WithTracerProvider sets a custom OpenTelemetry tracer provider.
// Default uses the global tracer provider from otel.GetTracerProvider().
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// WithMeterProvider sets a custom OpenTelemetry meter provider.
// Default uses the global meter provider from otel.GetMeterProvider().
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

// --- Event Options ---

// WithEventErrorsFatal configures whether event publishing failures should
// cause the operation to fail. By default, event failures are logged but
// the operation succeeds (the mailbox change has already been persisted).
//
// Set to true if your application requires guaranteed event delivery, for
// example when events drive critical downstream processes.
func WithEventErrorsFatal(fatal bool) Option {
	return func(o *options) {
		o.eventErrorsFatal = fatal
	}
}

// WithEventTransport sets the event transport for publishing and subscribing.
// When provided, events are published via the given transport for reliable
// delivery. If not provided, a noop transport is used (events are silently
// dropped).
func WithEventTransport(t transport.Transport) Option {
	return func(o *options) {
		if t != nil {
			o.eventTransport = t
		}
	}
}

// WithRedisClient sets a Redis client for the event transport.
// When provided, events are published to Redis Streams for reliable delivery.
// If not provided, a noop transport is used (events are silently dropped).
//
// Compatible with *redis.Client, *redis.ClusterClient, and redis.UniversalClient.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *options) {
		if client != nil {
			o.redisClient = client
		}
	}
}

// WithEventPublishFailureHandler sets a callback for event publishing
// failures. This callback is invoked whenever an event fails to publish
// (and eventErrorsFatal is false). Use this for custom logging, metrics,
// or alerting on event failures.
//
// By default, failures are logged using the configured logger.
func WithEventPublishFailureHandler(fn EventPublishFailureFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.onEventPublishFailure = fn
		}
	}
}
