package agent

import (
	"context"
	"time"

	"ventwave/internal/llm"
	"ventwave/internal/trace"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// runTool executes call against tool inside a "tool.<name>" span tagged
// with the analysis id. Arguments are recorded by size only.
func runTool(ctx context.Context, tool Tool, call llm.ToolCall) (string, error) {
	ctx, span := trace.Tracer().Start(ctx, "tool."+call.Name,
		oteltrace.WithSpanKind(oteltrace.SpanKindInternal),
		oteltrace.WithAttributes(
			attribute.String("gen_ai.tool.name", call.Name),
			attribute.String("gen_ai.tool.call.id", call.ID),
			attribute.Int("gen_ai.tool.input_length", len(call.Arguments)),
			attribute.String("analysis.id", AnalysisIDFromContext(ctx)),
		),
	)
	defer span.End()

	start := time.Now()
	result, err := tool.Execute(ctx, call.Arguments)
	span.SetAttributes(attribute.Int64("tool.duration_ms", time.Since(start).Milliseconds()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetAttributes(attribute.Int("gen_ai.tool.output_length", len(result)))
	return result, nil
}
