// Package main provides the CLI entry point for the local coworker agent
// session server.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mweinbach/agent-coworker-sub008/internal/agent"
	"github.com/mweinbach/agent-coworker-sub008/internal/mcp"
)

// Config is the CLI's own thin config document; full app-level config
// merging (layered env/file/flag precedence) is left out. Grounded on the teacher's
// internal/mcp.Config: flat YAML with `yaml:"..."` tags, no layered
// env/file precedence engine.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Auth struct {
		Token string `yaml:"token"`
	} `yaml:"auth"`

	Providers struct {
		Anthropic struct {
			APIKey       string `yaml:"api_key"`
			BaseURL      string `yaml:"base_url"`
			DefaultModel string `yaml:"default_model"`
		} `yaml:"anthropic"`
		OpenAI struct {
			APIKey string `yaml:"api_key"`
		} `yaml:"openai"`
	} `yaml:"providers"`

	MCP mcp.Config `yaml:"mcp"`

	Workspace struct {
		Root string `yaml:"root"`
	} `yaml:"workspace"`

	Turn struct {
		MaxSteps          int `yaml:"max_steps"`
		ToolConcurrency   int `yaml:"tool_concurrency"`
		ToolTimeoutSeconds int `yaml:"tool_timeout_seconds"`
	} `yaml:"turn"`
}

// defaultConfigPath is where loadConfig looks when --config is unset,
// matching the teacher's convention of a dotfile config path under the
// user's home directory.
func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "coworker.yaml"
	}
	return home + "/.coworker/config.yaml"
}

// defaultStateDir is where the CLI keeps persistent local state (resolved
// credentials). Falls back to the working directory if the home directory
// can't be determined.
func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".coworker"
	}
	return home + "/.coworker"
}

// loadConfig reads path as YAML, falling back to an all-defaults Config if
// the file does not exist (the server can still run with env-provided API
// keys). Any other read or parse error is returned.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{}
	cfg.Server.Addr = ":8787"
	cfg.Turn.MaxSteps = 25
	cfg.Turn.ToolConcurrency = 4
	cfg.Turn.ToolTimeoutSeconds = 60

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides lets ANTHROPIC_API_KEY / OPENAI_API_KEY / NEXUS_AUTH_TOKEN
// fill in whatever the config file left blank.
func applyEnvOverrides(cfg *Config) {
	if cfg.Providers.Anthropic.APIKey == "" {
		cfg.Providers.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.Providers.OpenAI.APIKey == "" {
		cfg.Providers.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Auth.Token == "" {
		cfg.Auth.Token = os.Getenv("NEXUS_AUTH_TOKEN")
	}
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		cfg.Server.Addr = ":8787"
	}
}

// turnOptions translates the config's flat turn.* fields into
// agent.TurnOptions, starting from agent.DefaultTurnOptions so unset fields
// keep the library's defaults.
func (c *Config) turnOptions() agent.TurnOptions {
	opts := agent.DefaultTurnOptions()
	if c.Turn.MaxSteps > 0 {
		opts.MaxSteps = c.Turn.MaxSteps
	}
	if c.Turn.ToolConcurrency > 0 {
		opts.ToolConcurrency = c.Turn.ToolConcurrency
	}
	if c.Turn.ToolTimeoutSeconds > 0 {
		opts.ToolTimeout = time.Duration(c.Turn.ToolTimeoutSeconds) * time.Second
	}
	return opts
}
