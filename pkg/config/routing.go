package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zen-systems/relaygate/pkg/capability"
	"github.com/zen-systems/relaygate/pkg/pricing"
)

// RoutingConfig holds provider metadata and call policy.
type RoutingConfig struct {
	Providers map[string]ProviderConfig `yaml:"providers,omitempty"`
	Default   RouteTarget               `yaml:"default,omitempty"`
	Retry     RetryConfig               `yaml:"retry,omitempty"`
	Fallback  FallbackConfig            `yaml:"fallback,omitempty"`
	Aliases   map[string]string         `yaml:"aliases,omitempty"`
	// MaxCost stops dispatching once the running bill reaches it. Zero is
	// unlimited.
	MaxCost float64 `yaml:"max_cost,omitempty"`
}

// ProviderConfig describes one upstream provider.
type ProviderConfig struct {
	BaseURL         string                 `yaml:"base_url,omitempty"`
	Protocol        string                 `yaml:"protocol,omitempty"`
	MaxOutputTokens *int                   `yaml:"max_output_tokens,omitempty"`
	Capabilities    capability.Registry    `yaml:"capabilities,omitempty"`
	Pricing         *pricing.Card          `yaml:"pricing,omitempty"`
	Models          map[string]ModelConfig `yaml:"models,omitempty"`
}

// ModelConfig carries per-model overrides.
type ModelConfig struct {
	Slug         string              `yaml:"slug,omitempty"`
	Capabilities capability.Registry `yaml:"capabilities,omitempty"`
	Pricing      *pricing.Card       `yaml:"pricing,omitempty"`
}

// RouteTarget specifies a provider and model combination.
type RouteTarget struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

func (t RouteTarget) String() string {
	return t.Provider + "/" + t.Model
}

// RetryConfig defines retry and backoff behavior.
type RetryConfig struct {
	MaxRetries    int `yaml:"max_retries,omitempty"`
	BaseBackoffMs int `yaml:"base_backoff_ms,omitempty"`
	MaxBackoffMs  int `yaml:"max_backoff_ms,omitempty"`
}

// FallbackConfig defines provider/model fallbacks. Chains are keyed by
// "provider/model" or by provider alone.
type FallbackConfig struct {
	AllowFallback bool                     `yaml:"allow_fallback,omitempty"`
	FallbackChain map[string][]RouteTarget `yaml:"fallback_chain,omitempty"`
}

// LoadRoutingConfig reads routing configuration from a YAML file.
func LoadRoutingConfig(path string) (*RoutingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg RoutingConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyRoutingDefaults(&cfg)
	return &cfg, nil
}

// DefaultRoutingConfig returns the built-in provider table.
func DefaultRoutingConfig() *RoutingConfig {
	cfg := &RoutingConfig{
		Providers: map[string]ProviderConfig{
			"openai": {
				Protocol: "openai.chat.completions",
				Models: map[string]ModelConfig{
					"gpt-5.2": {Pricing: &pricing.Card{Currency: "USD", Meters: map[string]float64{
						pricing.MeterInputText:   1.75,
						pricing.MeterCachedInput: 0.175,
						pricing.MeterOutputText:  14,
					}}},
				},
			},
			"anthropic": {
				Protocol:        "anthropic.messages",
				MaxOutputTokens: intPtr(64000),
				Models: map[string]ModelConfig{
					"claude-sonnet-4": {
						Slug: "claude-sonnet-4-20250514",
						Pricing: &pricing.Card{Currency: "USD", Meters: map[string]float64{
							pricing.MeterInputText:   3,
							pricing.MeterCachedInput: 0.3,
							pricing.MeterOutputText:  15,
						}},
					},
				},
			},
			"google": {
				Protocol:        "openai.chat.completions",
				MaxOutputTokens: intPtr(65536),
				Models: map[string]ModelConfig{
					"gemini-embedding-001": {Pricing: &pricing.Card{Currency: "USD", Meters: map[string]float64{
						pricing.MeterInputText: 0.15,
					}}},
					"gemini-2.5-flash": {Pricing: &pricing.Card{Currency: "USD", Meters: map[string]float64{
						pricing.MeterInputText:  0.3,
						pricing.MeterOutputText: 2.5,
					}}},
				},
			},
			"deepseek": {
				Protocol: "openai.chat.completions",
				Models: map[string]ModelConfig{
					"deepseek-chat": {Pricing: &pricing.Card{Currency: "USD", Meters: map[string]float64{
						pricing.MeterInputText:   0.28,
						pricing.MeterCachedInput: 0.028,
						pricing.MeterOutputText:  0.42,
					}}},
				},
			},
		},
		Default: RouteTarget{
			Provider: "anthropic",
			Model:    "claude-sonnet-4",
		},
		Aliases: map[string]string{
			"fast":    "gemini-2.5-flash",
			"quality": "claude-sonnet-4",
			"cheap":   "deepseek-chat",
			"embed":   "gemini-embedding-001",
		},
	}

	applyRoutingDefaults(cfg)
	return cfg
}

func applyRoutingDefaults(cfg *RoutingConfig) {
	if cfg == nil {
		return
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 2
	}
	if cfg.Retry.BaseBackoffMs == 0 {
		cfg.Retry.BaseBackoffMs = 200
	}
	if cfg.Retry.MaxBackoffMs == 0 {
		cfg.Retry.MaxBackoffMs = 2000
	}
	if cfg.Retry.MaxBackoffMs < cfg.Retry.BaseBackoffMs {
		cfg.Retry.MaxBackoffMs = cfg.Retry.BaseBackoffMs
	}
	if len(cfg.Providers) == 0 {
		return
	}
	normalized := make(map[string]ProviderConfig, len(cfg.Providers))
	for name, p := range cfg.Providers {
		normalized[strings.ToLower(name)] = p
	}
	cfg.Providers = normalized
}

// Provider returns the configuration for a provider id.
func (c *RoutingConfig) Provider(name string) (ProviderConfig, bool) {
	if c == nil || c.Providers == nil {
		return ProviderConfig{}, false
	}
	p, ok := c.Providers[strings.ToLower(name)]
	return p, ok
}

// Slug returns the upstream model id configured for model, or "".
func (c *RoutingConfig) Slug(provider, model string) string {
	p, ok := c.Provider(provider)
	if !ok {
		return ""
	}
	return p.Models[model].Slug
}

// MaxOutputTokens returns the provider-level output ceiling, if any.
func (c *RoutingConfig) MaxOutputTokens(provider string) *int {
	p, ok := c.Provider(provider)
	if !ok || p.MaxOutputTokens == nil {
		return nil
	}
	return intPtr(*p.MaxOutputTokens)
}

// BaseURL returns the configured upstream base URL for provider, or "".
func (c *RoutingConfig) BaseURL(provider string) string {
	p, _ := c.Provider(provider)
	return p.BaseURL
}

// Catalog builds the capability catalog. Provider-level metadata is stored
// under the wildcard model.
func (c *RoutingConfig) Catalog() *capability.Catalog {
	cat := capability.NewCatalog()
	if c == nil {
		return cat
	}
	for name, p := range c.Providers {
		if p.Capabilities != nil {
			cat.Set(name, capability.Wildcard, p.Capabilities)
		}
		for model, m := range p.Models {
			if m.Capabilities != nil {
				cat.Set(name, model, m.Capabilities)
			}
		}
	}
	return cat
}

// PricingTable builds the rate table. Provider-level cards become the
// provider default.
func (c *RoutingConfig) PricingTable() pricing.Table {
	table := make(pricing.Table)
	if c == nil {
		return table
	}
	for name, p := range c.Providers {
		models := make(map[string]*pricing.Card)
		if p.Pricing != nil {
			models[pricing.DefaultModel] = p.Pricing
		}
		for model, m := range p.Models {
			if m.Pricing != nil {
				models[model] = m.Pricing
			}
		}
		if len(models) > 0 {
			table[name] = models
		}
	}
	return table
}

// Chain returns the fallback targets for provider and model, or nil when
// fallback is disabled.
func (c *RoutingConfig) Chain(provider, model string) []RouteTarget {
	if c == nil || !c.Fallback.AllowFallback || c.Fallback.FallbackChain == nil {
		return nil
	}
	if chain, ok := c.Fallback.FallbackChain[fmt.Sprintf("%s/%s", provider, model)]; ok {
		return chain
	}
	if chain, ok := c.Fallback.FallbackChain[provider]; ok {
		return chain
	}
	return nil
}

func intPtr(v int) *int { return &v }
