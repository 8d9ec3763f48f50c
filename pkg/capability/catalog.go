package capability

import "strings"

// Wildcard is the model key that applies to every model of a provider.
const Wildcard = "*"

// Catalog holds capability registries per provider and model. It is built
// once and then only read; Set must not race with Lookup.
type Catalog struct {
	entries map[string]map[string]Registry
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]map[string]Registry)}
}

// Set stores the registry for provider and model. Use Wildcard as the model
// for provider-wide metadata.
func (c *Catalog) Set(provider, model string, reg Registry) {
	provider = strings.ToLower(provider)
	models, ok := c.entries[provider]
	if !ok {
		models = make(map[string]Registry)
		c.entries[provider] = models
	}
	models[model] = reg
}

// Lookup returns the registry for provider and model, the provider-wide
// registry when the model has none, and nil otherwise.
func (c *Catalog) Lookup(provider, model string) Registry {
	if c == nil {
		return nil
	}
	models, ok := c.entries[strings.ToLower(provider)]
	if !ok {
		return nil
	}
	if reg, ok := models[model]; ok {
		return reg
	}
	return models[Wildcard]
}

// Providers returns the providers that have at least one registry.
func (c *Catalog) Providers() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.entries))
	for p := range c.entries {
		out = append(out, p)
	}
	return out
}
