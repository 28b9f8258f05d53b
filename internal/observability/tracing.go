package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Uses the global otel providers; without a configured SDK these are no-ops,
// so instrumentation is always safe to call.
const scopeName = "gitlabmr/server"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)

	toolCalls    metric.Int64Counter
	toolDuration metric.Float64Histogram
)

func init() {
	var err error
	toolCalls, err = meter.Int64Counter("mcp.tool.calls",
		metric.WithDescription("Number of tool executions"))
	if err != nil {
		log.Printf("otel: failed to create counter: %v", err)
	}
	toolDuration, err = meter.Float64Histogram("mcp.tool.duration",
		metric.WithDescription("Tool execution duration"),
		metric.WithUnit("ms"))
	if err != nil {
		log.Printf("otel: failed to create histogram: %v", err)
	}
}

// StartToolSpan opens a span for one tool execution.
func StartToolSpan(ctx context.Context, module, tool string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "tools/call",
		trace.WithAttributes(
			attribute.String("mcp.module", module),
			attribute.String("mcp.tool", tool),
		))
}

// EndToolSpan records the outcome and closes the span. An empty errMsg means
// success.
func EndToolSpan(span trace.Span, elapsed time.Duration, errMsg string) {
	status := "success"
	if errMsg != "" {
		status = "error"
		span.SetStatus(codes.Error, errMsg)
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	if toolCalls != nil {
		toolCalls.Add(context.Background(), 1, attrs)
	}
	if toolDuration != nil {
		toolDuration.Record(context.Background(), float64(elapsed.Milliseconds()), attrs)
	}
	span.End()
}
