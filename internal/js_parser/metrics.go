package js_parser

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/aperturerobotics/detective/internal/js_ast"
)

var (
	tracer = otel.Tracer("detective.js_parser")
	meter  = otel.Meter("detective.js_parser")
)

var (
	parseLatency metric.Float64Histogram
	parseTotal   metric.Int64Counter
	parseErrors  metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		parseLatency, err = meter.Float64Histogram(
			"ast_parse_duration_seconds",
			metric.WithDescription("Duration of source parsing"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		parseTotal, err = meter.Int64Counter(
			"ast_parse_total",
			metric.WithDescription("Total number of parse operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		parseErrors, err = meter.Int64Counter(
			"ast_parse_errors_total",
			metric.WithDescription("Total number of sources that failed to parse"),
		)
		if err != nil {
			metricsErr = err
		}
	})
	return metricsErr
}

func recordParseMetrics(ctx context.Context, lang js_ast.Language, duration time.Duration, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("language", lang.String()),
		attribute.Bool("success", success),
	)
	parseLatency.Record(ctx, duration.Seconds(), attrs)
	parseTotal.Add(ctx, 1, attrs)
	if !success {
		parseErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("language", lang.String())))
	}
}

// startParseSpan starts a span the caller must end.
func startParseSpan(ctx context.Context, lang js_ast.Language, filename string, size int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "js_parser.Parse",
		trace.WithAttributes(
			attribute.String("ast.language", lang.String()),
			attribute.String("ast.file", filename),
			attribute.Int("ast.content_size", size),
		),
	)
}

func setParseSpanResult(span trace.Span, stmtCount int) {
	span.SetAttributes(attribute.Int("ast.stmt_count", stmtCount))
}
