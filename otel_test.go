package mailboxtree

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/rbaliyan/mailboxtree/store"
)

// recordingMeterProvider counts measurements per instrument name so tests
// can see which instruments an operation reports through.
type recordingMeterProvider struct {
	noop.MeterProvider
	counts map[string]int
}

func newRecordingMeterProvider() *recordingMeterProvider {
	return &recordingMeterProvider{counts: make(map[string]int)}
}

func (p *recordingMeterProvider) Meter(string, ...metric.MeterOption) metric.Meter {
	return &recordingMeter{provider: p}
}

type recordingMeter struct {
	noop.Meter
	provider *recordingMeterProvider
}

func (m *recordingMeter) Int64Counter(name string, _ ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	return &recordingInt64Counter{name: name, provider: m.provider}, nil
}

func (m *recordingMeter) Float64Histogram(name string, _ ...metric.Float64HistogramOption) (metric.Float64Histogram, error) {
	return &recordingFloat64Histogram{name: name, provider: m.provider}, nil
}

type recordingInt64Counter struct {
	noop.Int64Counter
	name     string
	provider *recordingMeterProvider
}

func (c *recordingInt64Counter) Add(context.Context, int64, ...metric.AddOption) {
	c.provider.counts[c.name]++
}

type recordingFloat64Histogram struct {
	noop.Float64Histogram
	name     string
	provider *recordingMeterProvider
}

func (h *recordingFloat64Histogram) Record(context.Context, float64, ...metric.RecordOption) {
	h.provider.counts[h.name]++
}

// Children checks must report through their own instruments, not blend
// into the point-lookup ones.
func TestHasChildrenMetricsUseOwnInstruments(t *testing.T) {
	ctx := context.Background()
	provider := newRecordingMeterProvider()
	svc := setupTestService(t, WithMetrics(true), WithMeterProvider(provider))

	parent, err := svc.Create(ctx, store.UserPath("benwa", "INBOX"))
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	if _, err := svc.Create(ctx, store.UserPath("benwa", "INBOX.work")); err != nil {
		t.Fatalf("create child: %v", err)
	}

	has, err := svc.HasChildren(ctx, parent)
	if err != nil {
		t.Fatalf("has children: %v", err)
	}
	if !has {
		t.Fatal("expected children")
	}

	if got := provider.counts["mailboxtree.has_children.count"]; got != 1 {
		t.Errorf("has_children.count = %d, want 1", got)
	}
	if got := provider.counts["mailboxtree.has_children.duration"]; got != 1 {
		t.Errorf("has_children.duration = %d, want 1", got)
	}
	if got := provider.counts["mailboxtree.has_children.errors"]; got != 0 {
		t.Errorf("has_children.errors = %d, want 0", got)
	}
	if got := provider.counts["mailboxtree.get.count"]; got != 0 {
		t.Errorf("get.count = %d, want 0; children checks must not count as gets", got)
	}
}
