package agent

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ventwave/internal/db"
	"ventwave/internal/history"
	"ventwave/internal/llm"
	"ventwave/internal/secret"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient replays scripted responses and records every request.
type fakeClient struct {
	mu        sync.Mutex
	responses []*llm.Response
	err       error
	requests  []llm.Request
	tokens    []string
}

func (f *fakeClient) Send(_ context.Context, req llm.Request, onToken func(string)) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return &llm.Response{Text: "default"}, nil
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	if onToken != nil && resp.Text != "" {
		onToken(resp.Text)
	}
	return resp, nil
}

type errProvider struct{ err error }

func (p errProvider) GetSecret(context.Context, string) (secret.Value, error) {
	return secret.Value{}, p.err
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) emit(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventType, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Type
	}
	return out
}

func newTestConfig(t *testing.T, tools ...Tool) (*Config, *countingProvider) {
	t.Helper()
	p := &countingProvider{}
	cfg, err := Build("Ventilator Asynchrony Expert", "model-x", secret.Named(p, "GEMINI_API_KEY"), tools, OutputMarkdown, WithProvider("openai"))
	require.NoError(t, err)
	return cfg, p
}

func TestNewRunnerRequiresConfigAndClient(t *testing.T) {
	cfg, _ := newTestConfig(t)

	_, err := NewRunner(&fakeClient{}, nil)
	requireConfigError(t, err, "config")

	_, err = NewRunner(nil, cfg)
	requireConfigError(t, err, "client")
}

func TestSendEmptyToolSet(t *testing.T) {
	cfg, p := newTestConfig(t)
	client := &fakeClient{responses: []*llm.Response{{ID: "r1", Text: "### 1. Waveform Identification", Usage: llm.Usage{InputTokens: 10, OutputTokens: 3}}}}
	r, err := NewRunner(client, cfg)
	require.NoError(t, err)

	var log eventLog
	resp, err := r.Send(context.Background(), llm.Input{Text: "analyze"}, log.emit)
	require.NoError(t, err)
	assert.Equal(t, "### 1. Waveform Identification", resp.Text)

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	assert.Equal(t, "model-x", req.Model)
	assert.Equal(t, cfg.SystemPrompt(), req.Instructions)
	assert.Empty(t, req.Tools)
	assert.Nil(t, req.Continuation)
	assert.Equal(t, "k-GEMINI_API_KEY", req.APIKey.Reveal())
	assert.Equal(t, 1, p.calls)

	assert.Equal(t, []EventType{EventToken, EventDone}, log.types())
}

func TestSendResolvesCredentialPerCall(t *testing.T) {
	cfg, p := newTestConfig(t)
	client := &fakeClient{}
	r, err := NewRunner(client, cfg)
	require.NoError(t, err)

	for range 2 {
		_, err := r.Send(context.Background(), llm.Input{Text: "x"}, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, p.calls)
	assert.Equal(t, "k-GEMINI_API_KEY", client.requests[0].APIKey.Reveal())
	assert.Equal(t, "kk-GEMINI_API_KEY", client.requests[1].APIKey.Reveal())
}

func TestSendEmptyInput(t *testing.T) {
	cfg, p := newTestConfig(t)
	client := &fakeClient{}
	r, err := NewRunner(client, cfg)
	require.NoError(t, err)

	_, err = r.Send(context.Background(), llm.Input{Text: "  "}, nil)
	assert.ErrorIs(t, err, llm.ErrEmptyInput)
	assert.Empty(t, client.requests)
	assert.Zero(t, p.calls)
}

func TestSendPassesClientErrorThrough(t *testing.T) {
	cfg, _ := newTestConfig(t)
	boom := errors.New("503 model overloaded")
	r, err := NewRunner(&fakeClient{err: boom}, cfg)
	require.NoError(t, err)

	var log eventLog
	_, err = r.Send(context.Background(), llm.Input{Text: "x"}, log.emit)
	assert.Same(t, boom, err)
	assert.Equal(t, []EventType{EventError}, log.types())
}

func TestSendPassesCredentialErrorThrough(t *testing.T) {
	missing := errors.New("vault sealed")
	cfg, err := Build("a", "m", secret.Named(errProvider{err: missing}, "K"), nil, OutputPlain)
	require.NoError(t, err)
	client := &fakeClient{}
	r, err := NewRunner(client, cfg)
	require.NoError(t, err)

	_, err = r.Send(context.Background(), llm.Input{Text: "x"}, nil)
	assert.Same(t, missing, err)
	assert.Empty(t, client.requests)
}

func TestSendRunsTools(t *testing.T) {
	search := &stubTool{name: "literature_search", result: "3 papers"}
	broken := &stubTool{name: "broken", err: errors.New("offline")}
	cfg, _ := newTestConfig(t, search, broken)

	client := &fakeClient{responses: []*llm.Response{
		{ID: "r1", ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: "literature_search", Arguments: `{"query":"early cycling"}`},
			{ID: "c2", Name: "broken", Arguments: `{}`},
			{ID: "c3", Name: "missing", Arguments: `{}`},
		}, Usage: llm.Usage{InputTokens: 5, OutputTokens: 1}},
		{ID: "r2", Text: "done", Usage: llm.Usage{InputTokens: 7, OutputTokens: 2}},
	}}
	r, err := NewRunner(client, cfg)
	require.NoError(t, err)

	var log eventLog
	resp, err := r.Send(context.Background(), llm.Input{Text: "x"}, log.emit)
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Text)
	assert.Equal(t, llm.Usage{InputTokens: 12, OutputTokens: 3}, resp.Usage)

	require.Len(t, client.requests, 2)
	assert.Len(t, client.requests[0].Tools, 2)
	cont := client.requests[1].Continuation
	require.NotNil(t, cont)
	assert.Equal(t, "r1", cont.ResponseID)
	assert.Equal(t, []llm.ToolOutput{
		{CallID: "c1", Output: "3 papers"},
		{CallID: "c2", Output: "error: offline"},
		{CallID: "c3", Output: "error: unknown tool"},
	}, cont.Outputs)

	types := log.types()
	assert.Equal(t, EventToolCall, types[0])
	assert.Equal(t, EventDone, types[len(types)-1])
}

func TestSendStopsAtToolRoundLimit(t *testing.T) {
	cfg, _ := newTestConfig(t, &stubTool{name: "t", result: "ok"})
	loop := func() *llm.Response {
		return &llm.Response{ID: "r", ToolCalls: []llm.ToolCall{{ID: "c", Name: "t"}}}
	}
	client := &fakeClient{responses: []*llm.Response{loop(), loop(), loop(), loop()}}
	r, err := NewRunner(client, cfg, WithMaxToolRounds(1))
	require.NoError(t, err)

	resp, err := r.Send(context.Background(), llm.Input{Text: "x"}, nil)
	require.NoError(t, err)
	assert.Len(t, client.requests, 2)
	assert.NotEmpty(t, resp.ToolCalls)
}

func TestSendRecordsHistory(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "h.db"))
	require.NoError(t, err)
	defer database.Close()
	require.NoError(t, database.Migrate())
	store := history.NewStore(database)

	cfg, _ := newTestConfig(t)
	client := &fakeClient{responses: []*llm.Response{{ID: "resp-9", Text: "analysis", Usage: llm.Usage{InputTokens: 4, OutputTokens: 2}}}}
	r, err := NewRunner(client, cfg, WithHistory(store))
	require.NoError(t, err)

	var log eventLog
	_, err = r.Send(context.Background(), llm.Input{Text: "what is this", Images: []llm.Image{{MIMEType: "image/png"}}}, log.emit)
	require.NoError(t, err)

	recent, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	a := recent[0]
	assert.Equal(t, "Ventilator Asynchrony Expert", a.Agent)
	assert.Equal(t, "openai", a.Provider)
	assert.Equal(t, "what is this", a.Prompt)
	assert.Equal(t, 1, a.ImageCount)
	assert.Equal(t, "analysis", a.Response)
	assert.Equal(t, "resp-9", a.ResponseID)

	done := log.events[len(log.events)-1]
	assert.Equal(t, a.ID, done.Data.(map[string]string)["analysis_id"])
}

func TestRunnerConcurrentSends(t *testing.T) {
	cfg, _ := newTestConfig(t)
	client := &fakeClient{}
	r, err := NewRunner(client, cfg)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Send(context.Background(), llm.Input{Text: "x"}, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, client.requests, 8)
}

func TestSendSerializesEmitAcrossParallelTools(t *testing.T) {
	var tools []Tool
	var calls []llm.ToolCall
	for i := range 8 {
		name := fmt.Sprintf("tool_%d", i)
		tools = append(tools, &stubTool{name: name, result: "ok"})
		calls = append(calls, llm.ToolCall{ID: fmt.Sprintf("c%d", i), Name: name, Arguments: "{}"})
	}
	cfg, _ := newTestConfig(t, tools...)
	client := &fakeClient{responses: []*llm.Response{
		{ID: "r1", ToolCalls: calls},
		{ID: "r2", Text: "done"},
	}}
	r, err := NewRunner(client, cfg)
	require.NoError(t, err)

	var inFlight, overlaps atomic.Int32
	var events []EventType
	_, err = r.Send(context.Background(), llm.Input{Text: "analyze"}, func(ev Event) {
		if inFlight.Add(1) > 1 {
			overlaps.Add(1)
		}
		time.Sleep(time.Millisecond)
		events = append(events, ev.Type)
		inFlight.Add(-1)
	})
	require.NoError(t, err)

	assert.Zero(t, overlaps.Load())
	var results int
	for _, ev := range events {
		if ev == EventToolResult {
			results++
		}
	}
	assert.Equal(t, 8, results)
}
