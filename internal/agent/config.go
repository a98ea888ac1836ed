package agent

import (
	"fmt"
	"slices"
	"strings"

	"ventwave/internal/instructions"
	"ventwave/internal/llm"
	"ventwave/internal/secret"
)

// OutputMode selects how the model is asked to format its answer.
type OutputMode string

const (
	OutputMarkdown OutputMode = "markdown"
	OutputPlain    OutputMode = "plain"
)

func ParseOutputMode(s string) (OutputMode, error) {
	m := OutputMode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", &ConfigError{Field: "output", Reason: fmt.Sprintf("must be %q or %q, got %q", OutputMarkdown, OutputPlain, s)}
	}
	return m, nil
}

func (m OutputMode) Valid() bool {
	return m == OutputMarkdown || m == OutputPlain
}

func (m OutputMode) directive() string {
	if m == OutputPlain {
		return "Respond in plain text. Do not use markdown formatting."
	}
	return "Use markdown to format your answers."
}

// ConfigError reports a missing or invalid agent configuration field. It
// is never retried: a request is not attempted while one is outstanding.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid agent config: %s: %s", e.Field, e.Reason)
}

// ModelClientDescriptor identifies the hosted model and how to authenticate
// against it. Credential is a handle; the secret is read only when a
// request is dispatched.
type ModelClientDescriptor struct {
	Provider   string
	ModelID    string
	Credential secret.Source
}

// Config is an immutable agent definition. It is safe for concurrent use.
type Config struct {
	name         string
	model        ModelClientDescriptor
	tools        []Tool
	output       OutputMode
	instructions instructions.Payload
	systemPrompt string
}

type buildOptions struct {
	provider     string
	instructions *instructions.Payload
}

type Option func(*buildOptions)

// WithProvider selects the model provider. Defaults to gemini.
func WithProvider(name string) Option {
	return func(o *buildOptions) { o.provider = name }
}

// WithInstructions replaces the default instruction payload.
func WithInstructions(p instructions.Payload) Option {
	return func(o *buildOptions) {
		c := p.Clone()
		o.instructions = &c
	}
}

// supportsTools reports whether provider's client runs tool rounds.
func supportsTools(provider string) bool {
	return provider != llm.ProviderGemini
}

// Build validates its inputs and returns the agent definition. It performs
// no I/O and does not resolve the credential.
func Build(name, modelID string, credential secret.Source, tools []Tool, mode OutputMode, opts ...Option) (*Config, error) {
	o := buildOptions{provider: llm.ProviderGemini}
	for _, opt := range opts {
		opt(&o)
	}

	if strings.TrimSpace(name) == "" {
		return nil, &ConfigError{Field: "name", Reason: "is required"}
	}
	if strings.TrimSpace(modelID) == "" {
		return nil, &ConfigError{Field: "model", Reason: "is required"}
	}
	if !slices.Contains(llm.Providers(), o.provider) {
		return nil, &ConfigError{Field: "provider", Reason: fmt.Sprintf("must be one of %v, got %q", llm.Providers(), o.provider)}
	}
	if credential == nil {
		return nil, &ConfigError{Field: "credential", Reason: "a credential source is required"}
	}
	if !mode.Valid() {
		return nil, &ConfigError{Field: "output", Reason: fmt.Sprintf("unknown output mode %q", mode)}
	}

	seen := make(map[string]bool, len(tools))
	for i, t := range tools {
		if t == nil || t.Name() == "" {
			return nil, &ConfigError{Field: fmt.Sprintf("tools[%d]", i), Reason: "tool has no name"}
		}
		if seen[t.Name()] {
			return nil, &ConfigError{Field: fmt.Sprintf("tools[%d]", i), Reason: fmt.Sprintf("duplicate tool %q", t.Name())}
		}
		seen[t.Name()] = true
	}
	if len(tools) > 0 && !supportsTools(o.provider) {
		return nil, &ConfigError{Field: "tools", Reason: fmt.Sprintf("provider %q does not support tools", o.provider)}
	}

	payload := instructions.Build()
	if o.instructions != nil {
		payload = *o.instructions
	}
	if payload.Empty() {
		return nil, &ConfigError{Field: "instructions", Reason: "payload is empty"}
	}

	return &Config{
		name: name,
		model: ModelClientDescriptor{
			Provider:   o.provider,
			ModelID:    modelID,
			Credential: credential,
		},
		tools:        slices.Clone(tools),
		output:       mode,
		instructions: payload,
		systemPrompt: payload.String() + "\n" + mode.directive() + "\n",
	}, nil
}

func (c *Config) Name() string { return c.name }

func (c *Config) Model() ModelClientDescriptor { return c.model }

func (c *Config) OutputMode() OutputMode { return c.output }

// Tools returns a copy of the tool set, in declaration order.
func (c *Config) Tools() []Tool { return slices.Clone(c.tools) }

func (c *Config) ToolNames() []string {
	names := make([]string, len(c.tools))
	for i, t := range c.tools {
		names[i] = t.Name()
	}
	return names
}

func (c *Config) Instructions() instructions.Payload { return c.instructions.Clone() }

// SystemPrompt is the instruction payload followed by the output-mode
// directive.
func (c *Config) SystemPrompt() string { return c.systemPrompt }

func (c *Config) tool(name string) (Tool, bool) {
	for _, t := range c.tools {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

func (c *Config) toolSpecs() []llm.ToolSpec {
	if len(c.tools) == 0 {
		return nil
	}
	specs := make([]llm.ToolSpec, 0, len(c.tools))
	for _, t := range c.tools {
		schema, _ := t.InputSchema().(map[string]any)
		specs = append(specs, llm.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  schema,
		})
	}
	return specs
}
