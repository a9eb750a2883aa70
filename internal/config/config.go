package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models aitracker.yml.
type Config struct {
	Notifications struct {
		Enabled        bool   `yaml:"enabled"`
		Channel        string `yaml:"channel"`
		Command        string `yaml:"command"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"notifications"`
	Dispatch struct {
		Command         string           `yaml:"command"`
		DefaultSession  string           `yaml:"default_session"`
		Routes          map[string]Route `yaml:"routes"`
		CleanupPolicy   string           `yaml:"cleanup_policy"`
		PoolSize        int              `yaml:"pool_size"`
		TimeoutSeconds  int              `yaml:"timeout_seconds"`
		CallbackBaseURL string           `yaml:"callback_base_url"`
		CallbackSecret  string           `yaml:"callback_secret"`
	} `yaml:"dispatch"`
}

// Route maps an ai_tool name to the agent that should pick up its work.
type Route struct {
	Agent   string `yaml:"agent"`
	Session string `yaml:"session"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Notifications.TimeoutSeconds < 0 {
		return fmt.Errorf("config.notifications.timeout_seconds must be >= 0")
	}
	if c.Dispatch.DefaultSession == "" {
		return fmt.Errorf("config.dispatch.default_session is required")
	}
	switch c.Dispatch.CleanupPolicy {
	case "", "keep", "delete":
	default:
		return fmt.Errorf("config.dispatch.cleanup_policy must be keep or delete")
	}
	for tool, route := range c.Dispatch.Routes {
		if tool == "" {
			return fmt.Errorf("config.dispatch.routes contains empty tool name")
		}
		if route.Agent == "" {
			return fmt.Errorf("route for tool %s has empty agent", tool)
		}
	}
	if c.Dispatch.PoolSize < 0 {
		return fmt.Errorf("config.dispatch.pool_size must be >= 0")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "aitracker.yml")
}

// Load reads and validates config from the workspace, falling back to
// defaults when no file exists.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config back to the workspace file.
func Save(workspace string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(Path(workspace), data, 0o644)
}

const defaultTemplate = `notifications:
  enabled: true
  channel: telegram
  command: clawdbot
  timeout_seconds: 10

dispatch:
  command: clawdbot
  default_session: ai-tracker
  cleanup_policy: keep
  pool_size: 4
  timeout_seconds: 30
  callback_base_url: http://127.0.0.1:8080/api
  callback_secret: ""
  routes:
    claude:
      agent: claude
      session: ai-tracker-claude
    chatgpt:
      agent: chatgpt
      session: ai-tracker-chatgpt
    gemini:
      agent: gemini
      session: ai-tracker-gemini
`
