package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/mweinbach/agent-coworker-sub008/internal/agent"
	"github.com/mweinbach/agent-coworker-sub008/internal/agent/providers"
	"github.com/mweinbach/agent-coworker-sub008/internal/credentials"
)

// newCredentialResolver builds the CredentialResolver (internal/credentials
// package) and seeds it with whatever static API keys the config carries.
// OAuth providers are not registered here: neither shipped provider in this
// CLI uses refreshable OAuth tokens, only static API keys.
func newCredentialResolver(cfg *Config, logger *slog.Logger) (*credentials.Resolver, error) {
	dir := filepath.Join(defaultStateDir(), "credentials")
	store, err := credentials.NewFileStore(dir)
	if err != nil {
		return nil, err
	}
	resolver := credentials.NewResolver(store, logger)
	if cfg.Providers.Anthropic.APIKey != "" {
		resolver.SetAPIKey("anthropic", cfg.Providers.Anthropic.APIKey)
	}
	if cfg.Providers.OpenAI.APIKey != "" {
		resolver.SetAPIKey("openai", cfg.Providers.OpenAI.APIKey)
	}
	return resolver, nil
}

// newProviderFactory returns the server.ProviderFactory hook: resolving a
// provider name to a freshly credentialed agent.LLMProvider on every call
// (session creation resolves the provider once, so a fresh resolve per call
// keeps credentials current without a provider-instance cache).
func newProviderFactory(cfg *Config, resolver *credentials.Resolver) func(name string) (agent.LLMProvider, error) {
	return func(name string) (agent.LLMProvider, error) {
		material, err := resolver.Resolve(context.Background(), name)
		if err != nil {
			return nil, fmt.Errorf("resolve credentials for %q: %w", name, err)
		}

		switch name {
		case "anthropic":
			return providers.NewAnthropicProvider(providers.AnthropicConfig{
				APIKey:       material.AccessToken,
				BaseURL:      cfg.Providers.Anthropic.BaseURL,
				DefaultModel: cfg.Providers.Anthropic.DefaultModel,
			})
		case "openai":
			return providers.NewOpenAIProvider(material.AccessToken), nil
		default:
			return nil, fmt.Errorf("unknown provider %q", name)
		}
	}
}
