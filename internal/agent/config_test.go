package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"ventwave/internal/instructions"
	"ventwave/internal/secret"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvider hands out a value it generates itself, so a test can tell
// whether a resolved credential came from it.
type countingProvider struct {
	mu    sync.Mutex
	calls int
	names []string
}

func (p *countingProvider) GetSecret(_ context.Context, name string) (secret.Value, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.names = append(p.names, name)
	return secret.NewValue(strings.Repeat("k", p.calls) + "-" + name), nil
}

type stubTool struct {
	name   string
	result string
	err    error
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub " + s.name }
func (s *stubTool) InputSchema() any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
func (s *stubTool) Execute(context.Context, string) (string, error) { return s.result, s.err }

func requireConfigError(t *testing.T, err error, field string) {
	t.Helper()
	var ce *ConfigError
	require.True(t, errors.As(err, &ce), "want *ConfigError, got %v", err)
	assert.Equal(t, field, ce.Field)
}

func TestBuildEmptyNameFails(t *testing.T) {
	src := secret.Named(&countingProvider{}, "GEMINI_API_KEY")
	cfg, err := Build("", "model-x", src, nil, OutputMarkdown)
	assert.Nil(t, cfg)
	requireConfigError(t, err, "name")

	_, err = Build("   ", "model-x", src, nil, OutputMarkdown)
	requireConfigError(t, err, "name")
}

func TestBuildEmptyModelFails(t *testing.T) {
	src := secret.Named(&countingProvider{}, "GEMINI_API_KEY")
	cfg, err := Build("Name", "", src, nil, OutputMarkdown)
	assert.Nil(t, cfg)
	requireConfigError(t, err, "model")
}

func TestBuildOtherValidation(t *testing.T) {
	src := secret.Named(&countingProvider{}, "K")

	_, err := Build("Name", "model-x", nil, nil, OutputMarkdown)
	requireConfigError(t, err, "credential")

	_, err = Build("Name", "model-x", src, nil, OutputMode("html"))
	requireConfigError(t, err, "output")

	_, err = Build("Name", "model-x", src, nil, OutputMarkdown, WithProvider("llama"))
	requireConfigError(t, err, "provider")

	_, err = Build("Name", "model-x", src, []Tool{&stubTool{name: "a"}, &stubTool{name: "a"}}, OutputMarkdown)
	requireConfigError(t, err, "tools[1]")

	_, err = Build("Name", "model-x", src, []Tool{&stubTool{}}, OutputMarkdown)
	requireConfigError(t, err, "tools[0]")

	_, err = Build("Name", "model-x", src, nil, OutputMarkdown, WithInstructions(instructions.Payload{}))
	requireConfigError(t, err, "instructions")
}

func TestBuildRejectsToolsOnGemini(t *testing.T) {
	src := secret.Named(&countingProvider{}, "K")
	tools := []Tool{&stubTool{name: "literature_search"}}

	_, err := Build("Name", "gemini-2.0-flash-exp", src, tools, OutputMarkdown)
	requireConfigError(t, err, "tools")

	_, err = Build("Name", "gemini-2.0-flash-exp", src, tools, OutputMarkdown, WithProvider("gemini"))
	requireConfigError(t, err, "tools")

	cfg, err := Build("Name", "gpt-4o", src, tools, OutputMarkdown, WithProvider("openai"))
	require.NoError(t, err)
	assert.Equal(t, []string{"literature_search"}, cfg.ToolNames())
}

func TestBuildDoesNotResolveCredential(t *testing.T) {
	p := &countingProvider{}
	_, err := Build("Name", "model-x", secret.Named(p, "GEMINI_API_KEY"), nil, OutputMarkdown)
	require.NoError(t, err)
	assert.Zero(t, p.calls)
}

func TestBuildCredentialTracesToProvider(t *testing.T) {
	p := &countingProvider{}
	cfg, err := Build("Name", "model-x", secret.Named(p, "GEMINI_API_KEY"), nil, OutputMarkdown)
	require.NoError(t, err)

	v, err := cfg.Model().Credential.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "k-GEMINI_API_KEY", v.Reveal())
	assert.Equal(t, []string{"GEMINI_API_KEY"}, p.names)

	// Each resolve goes back to the provider.
	v, err = cfg.Model().Credential.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "kk-GEMINI_API_KEY", v.Reveal())
}

func TestBuildDefaults(t *testing.T) {
	cfg, err := Build("Ventilator Asynchrony Expert", "gemini-2.0-flash-exp", secret.Named(&countingProvider{}, "K"), nil, OutputMarkdown)
	require.NoError(t, err)

	assert.Equal(t, "Ventilator Asynchrony Expert", cfg.Name())
	assert.Equal(t, "gemini", cfg.Model().Provider)
	assert.Equal(t, "gemini-2.0-flash-exp", cfg.Model().ModelID)
	assert.Equal(t, OutputMarkdown, cfg.OutputMode())
	assert.Empty(t, cfg.Tools())
	assert.Empty(t, cfg.ToolNames())
	assert.Nil(t, cfg.toolSpecs())
	assert.Equal(t, instructions.Build(), cfg.Instructions())
}

func TestSystemPrompt(t *testing.T) {
	src := secret.Named(&countingProvider{}, "K")
	md, err := Build("a", "m", src, nil, OutputMarkdown)
	require.NoError(t, err)
	plain, err := Build("a", "m", src, nil, OutputPlain)
	require.NoError(t, err)

	payload := instructions.Build().String()
	assert.True(t, strings.HasPrefix(md.SystemPrompt(), payload))
	assert.True(t, strings.HasPrefix(plain.SystemPrompt(), payload))
	assert.Contains(t, md.SystemPrompt(), "Use markdown")
	assert.Contains(t, plain.SystemPrompt(), "plain text")
	assert.Equal(t, md.SystemPrompt(), md.SystemPrompt())
}

func TestConfigIsImmutable(t *testing.T) {
	tools := []Tool{&stubTool{name: "a"}, &stubTool{name: "b"}}
	cfg, err := Build("a", "m", secret.Named(&countingProvider{}, "K"), tools, OutputMarkdown, WithProvider("openai"))
	require.NoError(t, err)

	tools[0] = &stubTool{name: "changed"}
	got := cfg.Tools()
	got[1] = &stubTool{name: "changed"}
	assert.Equal(t, []string{"a", "b"}, cfg.ToolNames())

	p := cfg.Instructions()
	p.OutputTemplate.Sections[0].Title = "changed"
	assert.Equal(t, "Waveform Identification", cfg.Instructions().OutputTemplate.Sections[0].Title)

	before := cfg.SystemPrompt()
	p.DomainKnowledge = "changed"
	assert.Equal(t, before, cfg.SystemPrompt())
}

func TestParseOutputMode(t *testing.T) {
	m, err := ParseOutputMode("Markdown")
	require.NoError(t, err)
	assert.Equal(t, OutputMarkdown, m)

	m, err = ParseOutputMode(" plain ")
	require.NoError(t, err)
	assert.Equal(t, OutputPlain, m)

	_, err = ParseOutputMode("rtf")
	requireConfigError(t, err, "output")
}

func TestRegistrySelect(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "b"})
	r.Register(&stubTool{name: "a"})

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Name())

	none, err := r.Select(nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	sel, err := r.Select([]string{"b"})
	require.NoError(t, err)
	require.Len(t, sel, 1)
	assert.Equal(t, "b", sel[0].Name())

	_, err = r.Select([]string{"c"})
	requireConfigError(t, err, "tools")
}

func TestFromProfile(t *testing.T) {
	p := &countingProvider{}
	r := NewRegistry()
	r.Register(&stubTool{name: "literature_search"})

	cfg, err := FromProfile(AgentProfile{
		Name:       "Ventilator Asynchrony Expert",
		Provider:   "openai",
		Model:      "gpt-4o",
		Credential: "OPENAI_API_KEY",
		Output:     "plain",
		Tools:      []string{"literature_search"},
	}, p, r)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Model().Provider)
	assert.Equal(t, OutputPlain, cfg.OutputMode())
	assert.Equal(t, []string{"literature_search"}, cfg.ToolNames())
	assert.Equal(t, "OPENAI_API_KEY", cfg.Model().Credential.Name())
	assert.Zero(t, p.calls)

	_, err = FromProfile(AgentProfile{Name: "a", Model: "m", Output: "markdown"}, p, r)
	requireConfigError(t, err, "credential")

	_, err = FromProfile(AgentProfile{Name: "a", Model: "m", Credential: "K", Output: "markdown"}, nil, r)
	requireConfigError(t, err, "credential")

	_, err = FromProfile(AgentProfile{Name: "a", Model: "m", Credential: "K", Output: "markdown", Tools: []string{"shell"}}, p, r)
	requireConfigError(t, err, "tools")

	_, err = FromProfile(AgentProfile{Name: "", Model: "m", Credential: "K", Output: "markdown"}, p, nil)
	requireConfigError(t, err, "name")
}
