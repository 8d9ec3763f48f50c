package config

import (
	"fmt"
	"sort"
	"strings"
)

// ModelAliases manages model alias resolution and validation.
type ModelAliases struct {
	Aliases   map[string]string   `yaml:"aliases"`
	Providers map[string][]string `yaml:"providers"`
}

// NewModelAliases collects the aliases and per-provider model lists of a
// routing config.
func NewModelAliases(cfg *RoutingConfig) *ModelAliases {
	aliases := &ModelAliases{
		Aliases:   make(map[string]string),
		Providers: make(map[string][]string),
	}
	if cfg == nil {
		return aliases
	}
	for k, v := range cfg.Aliases {
		aliases.Aliases[k] = v
	}
	for name, p := range cfg.Providers {
		models := make([]string, 0, len(p.Models))
		for m := range p.Models {
			models = append(models, m)
		}
		sort.Strings(models)
		aliases.Providers[name] = models
	}
	return aliases
}

// Resolve returns the canonical model name for an alias.
// If the input is not an alias, it returns the input unchanged.
func (a *ModelAliases) Resolve(modelOrAlias string) string {
	if a == nil || a.Aliases == nil {
		return modelOrAlias
	}
	if canonical, ok := a.Aliases[modelOrAlias]; ok {
		return canonical
	}
	return modelOrAlias
}

// IsAlias returns true if the given string is a known alias.
func (a *ModelAliases) IsAlias(name string) bool {
	if a == nil || a.Aliases == nil {
		return false
	}
	_, ok := a.Aliases[name]
	return ok
}

// ValidateModel checks if a model exists in the provider's list.
// Returns nil if valid, or an error describing the problem.
func (a *ModelAliases) ValidateModel(provider, model string) error {
	if a == nil || a.Providers == nil {
		return nil // No validation possible without provider info
	}

	models, ok := a.Providers[strings.ToLower(provider)]
	if !ok {
		return fmt.Errorf("unknown provider %q", provider)
	}

	for _, m := range models {
		if m == model {
			return nil
		}
	}

	return fmt.Errorf("model %q not in %s provider list", model, provider)
}

// ListAliases returns a copy of the aliases map.
func (a *ModelAliases) ListAliases() map[string]string {
	if a == nil || a.Aliases == nil {
		return make(map[string]string)
	}
	result := make(map[string]string, len(a.Aliases))
	for k, v := range a.Aliases {
		result[k] = v
	}
	return result
}

// ListProviders returns a sorted list of provider names.
func (a *ModelAliases) ListProviders() []string {
	if a == nil || a.Providers == nil {
		return nil
	}
	providers := make([]string, 0, len(a.Providers))
	for p := range a.Providers {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	return providers
}

// GetProviderModels returns the models for a given provider.
func (a *ModelAliases) GetProviderModels(provider string) []string {
	if a == nil || a.Providers == nil {
		return nil
	}
	return a.Providers[strings.ToLower(provider)]
}

// GetProviderForModel returns the provider name for a canonical model. When
// several providers list the model the alphabetically first wins.
func (a *ModelAliases) GetProviderForModel(model string) string {
	for _, provider := range a.ListProviders() {
		for _, m := range a.Providers[provider] {
			if m == model {
				return provider
			}
		}
	}
	return ""
}

// Target resolves an alias and fills in the provider when it is empty.
func (a *ModelAliases) Target(provider, modelOrAlias string) (RouteTarget, error) {
	model := a.Resolve(modelOrAlias)
	if provider == "" {
		provider = a.GetProviderForModel(model)
		if provider == "" {
			return RouteTarget{}, fmt.Errorf("no provider configured for model %q", model)
		}
	}
	return RouteTarget{Provider: strings.ToLower(provider), Model: model}, nil
}

// ValidateRoutingConfig checks the default target and every fallback chain
// entry against the provider model lists.
// Returns a slice of validation errors (empty if all valid).
func (a *ModelAliases) ValidateRoutingConfig(cfg *RoutingConfig) []error {
	if a == nil || cfg == nil {
		return nil
	}

	var errors []error

	if cfg.Default.Provider != "" {
		model := a.Resolve(cfg.Default.Model)
		if err := a.ValidateModel(cfg.Default.Provider, model); err != nil {
			errors = append(errors, fmt.Errorf("default: %w", err))
		}
	}

	keys := make([]string, 0, len(cfg.Fallback.FallbackChain))
	for k := range cfg.Fallback.FallbackChain {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		for i, target := range cfg.Fallback.FallbackChain[key] {
			model := a.Resolve(target.Model)
			if err := a.ValidateModel(target.Provider, model); err != nil {
				errors = append(errors, fmt.Errorf("fallback %q[%d]: %w", key, i, err))
			}
		}
	}

	return errors
}

// DefaultAliases returns the default model aliases configuration.
func DefaultAliases() *ModelAliases {
	return NewModelAliases(DefaultRoutingConfig())
}
