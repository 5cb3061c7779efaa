package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsTracer turns records into OpenTelemetry metrics.
type MetricsTracer struct {
	records  metric.Int64Counter
	replayed metric.Int64Histogram
	dropped  metric.Int64Counter
}

// NewMetricsTracer creates a MetricsTracer whose instruments come from the
// given meter.
func NewMetricsTracer(meter metric.Meter) (*MetricsTracer, error) {
	records, err := meter.Int64Counter("lagbuffer.records",
		metric.WithDescription("Number of reconciler records by position"),
	)
	if err != nil {
		return nil, err
	}

	replayed, err := meter.Int64Histogram("lagbuffer.replayed",
		metric.WithDescription("Events replayed by an out-of-order update"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	dropped, err := meter.Int64Counter("lagbuffer.dropped",
		metric.WithDescription("Log entries dropped by swaps and prunes"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	return &MetricsTracer{
		records:  records,
		replayed: replayed,
		dropped:  dropped,
	}, nil
}

// Trace records the metrics of a record.
func (t *MetricsTracer) Trace(rec Record) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("buffer", rec.Buffer),
		attribute.String("position", rec.Pos.Name),
	)

	t.records.Add(ctx, 1, attrs)

	if rec.Replayed > 0 {
		t.replayed.Record(ctx, int64(rec.Replayed),
			metric.WithAttributes(attribute.String("buffer", rec.Buffer)))
	}

	if rec.Dropped > 0 {
		t.dropped.Add(ctx, int64(rec.Dropped), attrs)
	}
}
