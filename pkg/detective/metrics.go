package detective

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("detective")
	meter  = otel.Meter("detective")
)

var (
	detectLatency      metric.Float64Histogram
	detectTotal        metric.Int64Counter
	detectDependencies metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		detectLatency, err = meter.Float64Histogram(
			"detective_duration_seconds",
			metric.WithDescription("Duration of dependency detection for one file"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		detectTotal, err = meter.Int64Counter(
			"detective_files_total",
			metric.WithDescription("Total number of files run through a detective"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		detectDependencies, err = meter.Int64Histogram(
			"detective_dependencies",
			metric.WithDescription("Number of dependencies found per file"),
		)
		if err != nil {
			metricsErr = err
		}
	})
	return metricsErr
}

func recordDetectMetrics(ctx context.Context, d Dialect, duration time.Duration, deps int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("dialect", d.String()),
		attribute.Bool("success", success),
	)
	detectLatency.Record(ctx, duration.Seconds(), attrs)
	detectTotal.Add(ctx, 1, attrs)
	if success {
		detectDependencies.Record(ctx, int64(deps), metric.WithAttributes(attribute.String("dialect", d.String())))
	}
}

func startDetectSpan(ctx context.Context, d Dialect, path string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "detective.Detect",
		trace.WithAttributes(
			attribute.String("detective.dialect", d.String()),
			attribute.String("detective.file", path),
		),
	)
}

func setDetectSpanResult(span trace.Span, deps int) {
	span.SetAttributes(attribute.Int("detective.dependency_count", deps))
}
