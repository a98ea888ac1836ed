package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Agent    AgentConfig           `toml:"agent"`
	LLMs     map[string]*LLMConfig `toml:"llm"`
	Secrets  SecretsConfig         `toml:"secrets"`
	Gateway  GatewayConfig         `toml:"gateway"`
	DB       DBConfig              `toml:"db"`
	Trace    TraceConfig           `toml:"trace"`
	Services ServicesConfig        `toml:"services"`
}

// AgentConfig describes the single agent. Credential names a secret.
type AgentConfig struct {
	Name          string   `toml:"name"`
	Provider      string   `toml:"provider"`
	Model         string   `toml:"model"`
	Credential    string   `toml:"credential"`
	Output        string   `toml:"output"`
	Tools         []string `toml:"tools"`
	MaxToolRounds int      `toml:"max_tool_rounds"`
}

type LLMConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

func (c *LLMConfig) Timeout() time.Duration {
	if c == nil {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type SecretsConfig struct {
	Dir string `toml:"dir"`
}

type GatewayConfig struct {
	Addr        string `toml:"addr"`
	MaxUploadMB int    `toml:"max_upload_mb"`
}

type DBConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type TraceConfig struct {
	Enabled      bool    `toml:"enabled"`
	Endpoint     string  `toml:"endpoint"`
	URLPath      string  `toml:"url_path"`
	Insecure     bool    `toml:"insecure"`
	APIKeySecret string  `toml:"api_key_secret"`
	SampleRatio  float64 `toml:"sample_ratio"`
}

type ServicesConfig struct {
	Brave BraveConfig `toml:"brave"`
}

type BraveConfig struct {
	APIKeySecret string `toml:"api_key_secret"`
}

// Defaults reproduce the stock ventilator asynchrony agent.
func Defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			Name:          "Ventilator Asynchrony Expert",
			Provider:      "gemini",
			Model:         "gemini-2.0-flash-exp",
			Credential:    "GEMINI_API_KEY",
			Output:        "markdown",
			Tools:         []string{},
			MaxToolRounds: 4,
		},
		LLMs: map[string]*LLMConfig{
			"gemini": {TimeoutSeconds: 120},
			"openai": {TimeoutSeconds: 120},
		},
		Gateway: GatewayConfig{
			Addr:        ":8484",
			MaxUploadMB: 20,
		},
		DB: DBConfig{
			Enabled: true,
			Path:    defaultDBPath(),
		},
		Trace: TraceConfig{
			APIKeySecret: "OTLP_API_KEY",
		},
		Services: ServicesConfig{
			Brave: BraveConfig{APIKeySecret: "BRAVE_API_KEY"},
		},
	}
}

// Load reads the config at path, or the default location when path is
// empty. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = Path()
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to path as TOML, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		return fmt.Errorf("encoding config: %w", err)
	}
	return f.Close()
}

// Path is the default config file location.
func Path() string {
	dir, _ := os.UserConfigDir()
	return filepath.Join(dir, "ventwave", "config.toml")
}

func defaultDBPath() string {
	dir, _ := os.UserHomeDir()
	return filepath.Join(dir, ".local", "share", "ventwave", "ventwave.db")
}
