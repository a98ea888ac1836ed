package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ventwave/internal/history"
	"ventwave/internal/llm"
	"ventwave/internal/trace"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const defaultMaxToolRounds = 4

type RunnerOption func(*Runner)

// WithHistory records every completed analysis in store.
func WithHistory(store *history.Store) RunnerOption {
	return func(r *Runner) { r.history = store }
}

// WithMaxToolRounds bounds how many times tool results are fed back to the
// model within one Send.
func WithMaxToolRounds(n int) RunnerOption {
	return func(r *Runner) {
		if n >= 0 {
			r.maxToolRounds = n
		}
	}
}

// Runner sends user turns for one agent definition. It holds no
// per-conversation state; every Send is independent.
type Runner struct {
	client        llm.Client
	cfg           *Config
	history       *history.Store
	maxToolRounds int
}

func NewRunner(client llm.Client, cfg *Config, opts ...RunnerOption) (*Runner, error) {
	if cfg == nil {
		return nil, &ConfigError{Field: "config", Reason: "agent config is required"}
	}
	if client == nil {
		return nil, &ConfigError{Field: "client", Reason: "model client is required"}
	}
	r := &Runner{
		client:        client,
		cfg:           cfg,
		maxToolRounds: defaultMaxToolRounds,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Runner) Config() *Config { return r.cfg }

// Send dispatches input to the model. Errors from the credential source and
// the model client are returned as-is. emit is never called concurrently,
// even while tools run in parallel.
func (r *Runner) Send(ctx context.Context, input llm.Input, emit func(Event)) (*llm.Response, error) {
	emit = serialize(emit)
	if input.Empty() {
		emit(Event{Type: EventError, Data: llm.ErrEmptyInput.Error()})
		return nil, llm.ErrEmptyInput
	}

	analysisID := history.NewID()
	ctx = ContextWithAnalysisID(ctx, analysisID)
	model := r.cfg.Model()

	ctx, span := trace.Tracer().Start(ctx, "agent.send",
		oteltrace.WithAttributes(
			attribute.String("agent.name", r.cfg.Name()),
			attribute.String("analysis.id", analysisID),
			attribute.String("llm.provider", model.Provider),
			attribute.String("llm.model", model.ModelID),
			attribute.Int("input.images", len(input.Images)),
		),
	)
	defer span.End()

	fail := func(err error) (*llm.Response, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		emit(Event{Type: EventError, Data: err.Error()})
		return nil, err
	}

	key, err := model.Credential.Resolve(ctx)
	if err != nil {
		slog.Error("resolving credential failed", "agent", r.cfg.Name(), "credential", model.Credential.Name(), "error", err)
		return fail(err)
	}

	req := llm.Request{
		Model:        model.ModelID,
		Instructions: r.cfg.SystemPrompt(),
		Input:        input,
		Tools:        r.cfg.toolSpecs(),
		APIKey:       key,
	}

	start := time.Now()
	var usage llm.Usage
	var resp *llm.Response

	for round := 0; ; round++ {
		llmCtx, llmSpan := trace.Tracer().Start(ctx, "llm.send",
			oteltrace.WithAttributes(attribute.Int("llm.round", round)),
		)
		resp, err = r.client.Send(llmCtx, req, func(token string) {
			emit(Event{Type: EventToken, Data: token})
		})
		if err != nil {
			llmSpan.RecordError(err)
			llmSpan.SetStatus(codes.Error, err.Error())
			llmSpan.End()
			return fail(err)
		}
		llmSpan.SetAttributes(
			attribute.String("llm.response_model", resp.Model),
			attribute.Int64("llm.input_tokens", resp.Usage.InputTokens),
			attribute.Int64("llm.output_tokens", resp.Usage.OutputTokens),
			attribute.Int("llm.tool_calls", len(resp.ToolCalls)),
		)
		llmSpan.End()

		usage.InputTokens += resp.Usage.InputTokens
		usage.OutputTokens += resp.Usage.OutputTokens

		if len(resp.ToolCalls) == 0 {
			break
		}
		if round >= r.maxToolRounds {
			slog.Warn("tool round limit reached", "agent", r.cfg.Name(), "analysis_id", analysisID, "rounds", round)
			break
		}

		req.Continuation = &llm.Continuation{
			ResponseID: resp.ID,
			Outputs:    r.act(ctx, resp.ToolCalls, emit),
		}
	}

	resp.Usage = usage
	slog.Debug("analysis completed",
		"agent", r.cfg.Name(),
		"analysis_id", analysisID,
		"model", model.ModelID,
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
	)

	r.record(ctx, analysisID, input, resp, time.Since(start))

	emit(Event{Type: EventDone, Data: map[string]string{"analysis_id": analysisID, "text": resp.Text}})
	return resp, nil
}

func serialize(emit func(Event)) func(Event) {
	if emit == nil {
		return func(Event) {}
	}
	var mu sync.Mutex
	return func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		emit(ev)
	}
}

// act executes tool calls in parallel and returns their outputs in call
// order. Tool failures are reported to the model, not to the caller.
func (r *Runner) act(ctx context.Context, calls []llm.ToolCall, emit func(Event)) []llm.ToolOutput {
	for _, call := range calls {
		emit(Event{Type: EventToolCall, Data: map[string]string{
			"name":      call.Name,
			"arguments": call.Arguments,
		}})
	}

	var wg sync.WaitGroup
	outputs := make([]llm.ToolOutput, len(calls))

	for i, call := range calls {
		wg.Add(1)
		go func(i int, call llm.ToolCall) {
			defer wg.Done()

			content := r.execute(ctx, call)
			outputs[i] = llm.ToolOutput{CallID: call.ID, Output: content}
			emit(Event{Type: EventToolResult, Data: map[string]string{
				"name":    call.Name,
				"content": content,
			}})
		}(i, call)
	}

	wg.Wait()
	return outputs
}

func (r *Runner) execute(ctx context.Context, call llm.ToolCall) string {
	tool, ok := r.cfg.tool(call.Name)
	if !ok {
		slog.Warn("unknown tool call", "name", call.Name)
		return "error: unknown tool"
	}

	result, err := runTool(ctx, tool, call)
	if err != nil {
		slog.Warn("tool execution failed", "name", call.Name, "error", err)
		return "error: " + err.Error()
	}
	return result
}

func (r *Runner) record(ctx context.Context, id string, input llm.Input, resp *llm.Response, elapsed time.Duration) {
	if r.history == nil {
		return
	}
	model := r.cfg.Model()
	_, err := r.history.Record(ctx, history.Analysis{
		ID:           id,
		Agent:        r.cfg.Name(),
		Provider:     model.Provider,
		Model:        model.ModelID,
		Prompt:       input.Text,
		ImageCount:   len(input.Images),
		Response:     resp.Text,
		ResponseID:   resp.ID,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		Duration:     elapsed,
	})
	if err != nil {
		slog.Warn("failed to record analysis", "analysis_id", id, "error", err)
	}
}
