package agent

import "ventwave/internal/secret"

// AgentProfile is the declarative, file-backed form of an agent. Credential
// names a secret; it never holds the secret itself.
type AgentProfile struct {
	Name       string
	Provider   string
	Model      string
	Credential string
	Output     string
	Tools      []string // tool names; empty = no tools
}

// FromProfile resolves the profile's tool names against registry and builds
// the agent definition. The credential stays unresolved until a request is
// sent.
func FromProfile(p AgentProfile, secrets secret.Provider, registry *Registry) (*Config, error) {
	if p.Credential == "" {
		return nil, &ConfigError{Field: "credential", Reason: "secret name is required"}
	}
	if secrets == nil {
		return nil, &ConfigError{Field: "credential", Reason: "no secret provider"}
	}

	mode, err := ParseOutputMode(p.Output)
	if err != nil {
		return nil, err
	}

	if registry == nil {
		registry = NewRegistry()
	}
	tools, err := registry.Select(p.Tools)
	if err != nil {
		return nil, err
	}

	var opts []Option
	if p.Provider != "" {
		opts = append(opts, WithProvider(p.Provider))
	}
	return Build(p.Name, p.Model, secret.Named(secrets, p.Credential), tools, mode, opts...)
}
