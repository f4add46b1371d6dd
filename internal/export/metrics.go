package export

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "swimlens/export"

type metrics struct {
	frames   metric.Int64Counter
	runs     metric.Int64Counter
	duration metric.Float64Histogram
}

// newMetrics creates the export instruments from the global meter provider.
// Without an installed SDK they record nothing.
func newMetrics() *metrics {
	m := otel.Meter(meterName)
	var (
		out metrics
		err error
	)
	if out.frames, err = m.Int64Counter("swimlens.export.frames",
		metric.WithDescription("Frames written by exports")); err != nil {
		out.frames, _ = noop.Meter{}.Int64Counter("swimlens.export.frames")
	}
	if out.runs, err = m.Int64Counter("swimlens.export.runs",
		metric.WithDescription("Finished export runs by status")); err != nil {
		out.runs, _ = noop.Meter{}.Int64Counter("swimlens.export.runs")
	}
	if out.duration, err = m.Float64Histogram("swimlens.export.duration",
		metric.WithDescription("Wall time of export runs"),
		metric.WithUnit("s")); err != nil {
		out.duration, _ = noop.Meter{}.Float64Histogram("swimlens.export.duration")
	}
	return &out
}

func (m *metrics) frame(ctx context.Context) {
	m.frames.Add(ctx, 1)
}

func (m *metrics) run(ctx context.Context, status string, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.runs.Add(context.WithoutCancel(ctx), 1, attrs)
	m.duration.Record(context.WithoutCancel(ctx), elapsed.Seconds(), attrs)
}
