package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

var (
	validProviders = []string{"gemini", "openai"}
	validOutputs   = []string{"markdown", "plain"}

	// Secret names look like environment variables.
	secretNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

	// Shapes of provider keys that have no business in a config file.
	literalKeyRe = regexp.MustCompile(`^(AIza[0-9A-Za-z_-]{20,}|sk-[0-9A-Za-z_-]{16,})$`)
)

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	a := cfg.Agent
	if strings.TrimSpace(a.Name) == "" {
		add("agent.name", "is required")
	}
	if strings.TrimSpace(a.Model) == "" {
		add("agent.model", "is required")
	}
	if !slices.Contains(validProviders, a.Provider) {
		add("agent.provider", "must be one of %v, got %q", validProviders, a.Provider)
	}
	if !slices.Contains(validOutputs, strings.ToLower(a.Output)) {
		add("agent.output", "must be one of %v, got %q", validOutputs, a.Output)
	}
	if a.MaxToolRounds < 0 {
		add("agent.max_tool_rounds", "must be >= 0, got %d", a.MaxToolRounds)
	}
	checkSecretName(add, "agent.credential", a.Credential, true)

	seen := map[string]bool{}
	for i, name := range a.Tools {
		if seen[name] {
			add(fmt.Sprintf("agent.tools[%d]", i), "duplicate tool %q", name)
		}
		seen[name] = true
	}
	if len(a.Tools) > 0 && a.Provider == "gemini" {
		add("agent.tools", "provider %q does not support tools", a.Provider)
	}

	for name, l := range cfg.LLMs {
		if !slices.Contains(validProviders, name) {
			add("llm."+name, "unknown provider, must be one of %v", validProviders)
			continue
		}
		if l != nil && l.TimeoutSeconds < 0 {
			add("llm."+name+".timeout_seconds", "must be >= 0, got %d", l.TimeoutSeconds)
		}
	}

	if cfg.Gateway.MaxUploadMB < 0 {
		add("gateway.max_upload_mb", "must be >= 0, got %d", cfg.Gateway.MaxUploadMB)
	}
	if cfg.DB.Enabled && cfg.DB.Path == "" {
		add("db.path", "required when db.enabled")
	}
	if cfg.Trace.Enabled && cfg.Trace.Endpoint == "" {
		add("trace.endpoint", "required when trace.enabled")
	}
	if r := cfg.Trace.SampleRatio; r < 0 || r > 1 {
		add("trace.sample_ratio", "must be between 0 and 1, got %g", r)
	}
	checkSecretName(add, "trace.api_key_secret", cfg.Trace.APIKeySecret, false)
	checkSecretName(add, "services.brave.api_key_secret", cfg.Services.Brave.APIKeySecret, false)
	if slices.Contains(a.Tools, "literature_search") && cfg.Services.Brave.APIKeySecret == "" {
		add("services.brave.api_key_secret", "required when literature_search is enabled")
	}

	return issues
}

func checkSecretName(add func(string, string, ...any), path, name string, required bool) {
	switch {
	case name == "":
		if required {
			add(path, "is required (name of an environment variable or secret file)")
		}
	case literalKeyRe.MatchString(name):
		add(path, "looks like a credential value; set the name of a secret instead")
	case !secretNameRe.MatchString(name):
		add(path, "invalid secret name %q", name)
	}
}
