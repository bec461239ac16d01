package mailboxtree

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/rbaliyan/mailboxtree"
)

// otelInstrumentation holds OpenTelemetry instrumentation for the service.
type otelInstrumentation struct {
	enabled bool

	// Tracing
	tracingEnabled bool
	tracer         trace.Tracer

	// Metrics
	metricsEnabled bool

	createLatency metric.Float64Histogram
	createCount   metric.Int64Counter
	createErrors  metric.Int64Counter
	renameLatency metric.Float64Histogram
	renameCount   metric.Int64Counter
	renameErrors  metric.Int64Counter
	deleteLatency metric.Float64Histogram
	deleteCount   metric.Int64Counter
	deleteErrors  metric.Int64Counter
	getLatency    metric.Float64Histogram
	getCount      metric.Int64Counter
	getErrors     metric.Int64Counter

	hasChildrenLatency metric.Float64Histogram
	hasChildrenCount   metric.Int64Counter
	hasChildrenErrors  metric.Int64Counter

	listLatency   metric.Float64Histogram
	listCount     metric.Int64Counter
	listErrors    metric.Int64Counter
	searchLatency metric.Float64Histogram
	searchCount   metric.Int64Counter
	searchErrors  metric.Int64Counter
}

// newOtelInstrumentation creates new OTel instrumentation from options.
func newOtelInstrumentation(opts *options) (*otelInstrumentation, error) {
	o := &otelInstrumentation{
		enabled:        opts.tracingEnabled || opts.metricsEnabled,
		tracingEnabled: opts.tracingEnabled,
		metricsEnabled: opts.metricsEnabled,
	}

	if !o.enabled {
		return o, nil
	}

	// Initialize tracer
	if opts.tracingEnabled {
		tp := opts.tracerProvider
		if tp == nil {
			tp = otel.GetTracerProvider()
		}
		o.tracer = tp.Tracer(instrumentationName)
	}

	// Initialize metrics
	if opts.metricsEnabled {
		mp := opts.meterProvider
		if mp == nil {
			mp = otel.GetMeterProvider()
		}
		if err := o.initMetrics(mp); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// initMetrics initializes all metric instruments.
func (o *otelInstrumentation) initMetrics(mp metric.MeterProvider) error {
	meter := mp.Meter(instrumentationName)

	var err error

	// Create metrics
	o.createLatency, err = meter.Float64Histogram(
		"mailboxtree.create.duration",
		metric.WithDescription("Duration of create operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	o.createCount, err = meter.Int64Counter(
		"mailboxtree.create.count",
		metric.WithDescription("Number of mailboxes created"),
	)
	if err != nil {
		return err
	}

	o.createErrors, err = meter.Int64Counter(
		"mailboxtree.create.errors",
		metric.WithDescription("Number of create errors"),
	)
	if err != nil {
		return err
	}

	// Rename metrics
	o.renameLatency, err = meter.Float64Histogram(
		"mailboxtree.rename.duration",
		metric.WithDescription("Duration of rename operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	o.renameCount, err = meter.Int64Counter(
		"mailboxtree.rename.count",
		metric.WithDescription("Number of rename operations"),
	)
	if err != nil {
		return err
	}

	o.renameErrors, err = meter.Int64Counter(
		"mailboxtree.rename.errors",
		metric.WithDescription("Number of rename errors"),
	)
	if err != nil {
		return err
	}

	// Delete metrics
	o.deleteLatency, err = meter.Float64Histogram(
		"mailboxtree.delete.duration",
		metric.WithDescription("Duration of delete operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	o.deleteCount, err = meter.Int64Counter(
		"mailboxtree.delete.count",
		metric.WithDescription("Number of delete operations"),
	)
	if err != nil {
		return err
	}

	o.deleteErrors, err = meter.Int64Counter(
		"mailboxtree.delete.errors",
		metric.WithDescription("Number of delete errors"),
	)
	if err != nil {
		return err
	}

	// Get metrics
	o.getLatency, err = meter.Float64Histogram(
		"mailboxtree.get.duration",
		metric.WithDescription("Duration of get operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	o.getCount, err = meter.Int64Counter(
		"mailboxtree.get.count",
		metric.WithDescription("Number of get operations"),
	)
	if err != nil {
		return err
	}

	o.getErrors, err = meter.Int64Counter(
		"mailboxtree.get.errors",
		metric.WithDescription("Number of get errors"),
	)
	if err != nil {
		return err
	}

	// HasChildren metrics
	o.hasChildrenLatency, err = meter.Float64Histogram(
		"mailboxtree.has_children.duration",
		metric.WithDescription("Duration of children checks"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	o.hasChildrenCount, err = meter.Int64Counter(
		"mailboxtree.has_children.count",
		metric.WithDescription("Number of children checks"),
	)
	if err != nil {
		return err
	}

	o.hasChildrenErrors, err = meter.Int64Counter(
		"mailboxtree.has_children.errors",
		metric.WithDescription("Number of children check errors"),
	)
	if err != nil {
		return err
	}

	// List metrics
	o.listLatency, err = meter.Float64Histogram(
		"mailboxtree.list.duration",
		metric.WithDescription("Duration of list operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	o.listCount, err = meter.Int64Counter(
		"mailboxtree.list.count",
		metric.WithDescription("Number of list operations"),
	)
	if err != nil {
		return err
	}

	o.listErrors, err = meter.Int64Counter(
		"mailboxtree.list.errors",
		metric.WithDescription("Number of list errors"),
	)
	if err != nil {
		return err
	}

	// Search metrics
	o.searchLatency, err = meter.Float64Histogram(
		"mailboxtree.search.duration",
		metric.WithDescription("Duration of search operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	o.searchCount, err = meter.Int64Counter(
		"mailboxtree.search.count",
		metric.WithDescription("Number of search operations"),
	)
	if err != nil {
		return err
	}

	o.searchErrors, err = meter.Int64Counter(
		"mailboxtree.search.errors",
		metric.WithDescription("Number of search errors"),
	)
	if err != nil {
		return err
	}

	return nil
}

// startSpan starts a new span if tracing is enabled.
// Caller should invoke the returned func with the operation error when done.
func (o *otelInstrumentation) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if !o.tracingEnabled || o.tracer == nil {
		return ctx, func(error) {}
	}
	ctx, span := o.tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// recordCreate records create operation metrics.
func (o *otelInstrumentation) recordCreate(ctx context.Context, duration time.Duration, err error) {
	if !o.metricsEnabled {
		return
	}

	o.createLatency.Record(ctx, duration.Seconds())
	o.createCount.Add(ctx, 1)
	if err != nil {
		o.createErrors.Add(ctx, 1)
	}
}

// recordRename records rename operation metrics.
func (o *otelInstrumentation) recordRename(ctx context.Context, duration time.Duration, err error) {
	if !o.metricsEnabled {
		return
	}

	o.renameLatency.Record(ctx, duration.Seconds())
	o.renameCount.Add(ctx, 1)
	if err != nil {
		o.renameErrors.Add(ctx, 1)
	}
}

// recordDelete records delete operation metrics. Subtree deletes report
// the number of mailboxes removed.
func (o *otelInstrumentation) recordDelete(ctx context.Context, duration time.Duration, removed int, err error) {
	if !o.metricsEnabled {
		return
	}

	attrs := metric.WithAttributes(
		attribute.Int("removed_count", removed),
	)

	o.deleteLatency.Record(ctx, duration.Seconds(), attrs)
	o.deleteCount.Add(ctx, 1, attrs)
	if err != nil {
		o.deleteErrors.Add(ctx, 1, attrs)
	}
}

// recordGet records get operation metrics.
func (o *otelInstrumentation) recordGet(ctx context.Context, duration time.Duration, err error) {
	if !o.metricsEnabled {
		return
	}

	o.getLatency.Record(ctx, duration.Seconds())
	o.getCount.Add(ctx, 1)
	if err != nil {
		o.getErrors.Add(ctx, 1)
	}
}

// recordHasChildren records children check metrics.
func (o *otelInstrumentation) recordHasChildren(ctx context.Context, duration time.Duration, err error) {
	if !o.metricsEnabled {
		return
	}

	o.hasChildrenLatency.Record(ctx, duration.Seconds())
	o.hasChildrenCount.Add(ctx, 1)
	if err != nil {
		o.hasChildrenErrors.Add(ctx, 1)
	}
}

// recordList records list operation metrics.
func (o *otelInstrumentation) recordList(ctx context.Context, duration time.Duration, resultCount int, err error) {
	if !o.metricsEnabled {
		return
	}

	attrs := metric.WithAttributes(
		attribute.Int("result_count", resultCount),
	)

	o.listLatency.Record(ctx, duration.Seconds(), attrs)
	o.listCount.Add(ctx, 1, attrs)
	if err != nil {
		o.listErrors.Add(ctx, 1, attrs)
	}
}

// recordSearch records search operation metrics.
func (o *otelInstrumentation) recordSearch(ctx context.Context, duration time.Duration, resultCount int, err error) {
	if !o.metricsEnabled {
		return
	}

	attrs := metric.WithAttributes(
		attribute.Int("result_count", resultCount),
	)

	o.searchLatency.Record(ctx, duration.Seconds(), attrs)
	o.searchCount.Add(ctx, 1, attrs)
	if err != nil {
		o.searchErrors.Add(ctx, 1, attrs)
	}
}
