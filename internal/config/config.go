package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sokinpui/devx.go/internal/normalize"
)

// ErrNoAPIKey is returned by ResolveAPIKey when no key can be found.
var ErrNoAPIKey = errors.New("no API key configured")

type Config struct {
	LLM struct {
		Provider      string `yaml:"provider"` // "openai" or "gemini"
		BaseURL       string `yaml:"base_url"`
		APIKey        string `yaml:"api_key"`
		APIKeyEnv     string `yaml:"api_key_env"`
		Model         string `yaml:"model"`
		MaxTokens     int    `yaml:"max_output_tokens"`
		ContextTokens int    `yaml:"context_tokens"` // token budget for the thread history sent along with a prompt
	} `yaml:"llm"`

	History struct {
		MaxComments int `yaml:"max_comments"` // thread comments sent with each prompt
	} `yaml:"history"`

	// Languages is the allow-list of fence info strings stripped from
	// model responses. Empty means normalize.DefaultLanguages.
	Languages []string `yaml:"languages"`

	Log struct {
		Path        string `yaml:"path"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`

	// defaultModel is set when LLM.Model was filled in by applyDefaults.
	defaultModel bool
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultModel(c.LLM.Provider)
		c.defaultModel = true
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 1000
	}
	if c.LLM.ContextTokens == 0 {
		c.LLM.ContextTokens = 3000
	}
	if c.History.MaxComments == 0 {
		c.History.MaxComments = 8
	}
	if len(c.Languages) == 0 {
		c.Languages = append([]string(nil), normalize.DefaultLanguages...)
	}
}

// DefaultModel returns the model used for provider when none is configured.
func DefaultModel(provider string) string {
	if provider == "gemini" {
		return "gemini-1.5-flash"
	}
	return "gpt-3.5-turbo"
}

// Override applies command-line choices on top of the file. A provider change
// also switches the model unless one was configured or given.
func (c *Config) Override(provider, model string) {
	if provider = strings.ToLower(strings.TrimSpace(provider)); provider != "" {
		c.LLM.Provider = provider
		if c.defaultModel {
			c.LLM.Model = DefaultModel(provider)
		}
	}
	if model != "" {
		c.LLM.Model = model
		c.defaultModel = false
	}
}

// DefaultPath returns ~/.config/devx/config.yaml, honoring XDG_CONFIG_HOME.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "devx", "config.yaml")
}

// Load reads the YAML file at path and fills in defaults. A missing file is
// not an error when path is the default location.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyDefaults()

	if cfg.Log.Path != "" {
		cfg.Log.Path = expandHome(cfg.Log.Path)
	}

	return &cfg, nil
}

// ResolveAPIKey returns the key for the configured provider. Order:
//  1. llm.api_key
//  2. the variable named by llm.api_key_env (a leading $ is allowed)
//  3. OPENAI_API_KEY or GEMINI_API_KEY, by provider
func (c *Config) ResolveAPIKey() (string, error) {
	if c.LLM.APIKey != "" {
		return c.LLM.APIKey, nil
	}
	if env := strings.TrimPrefix(c.LLM.APIKeyEnv, "$"); env != "" {
		if v := os.Getenv(env); v != "" {
			return v, nil
		}
	}

	fallback := "OPENAI_API_KEY"
	if c.LLM.Provider == "gemini" {
		fallback = "GEMINI_API_KEY"
	}
	if v := os.Getenv(fallback); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: set llm.api_key, llm.api_key_env or %s", ErrNoAPIKey, fallback)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
