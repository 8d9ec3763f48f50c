package config

import (
	"testing"
)

func TestResolve(t *testing.T) {
	aliases := &ModelAliases{
		Aliases: map[string]string{
			"fast":    "gemini-2.5-flash",
			"quality": "claude-sonnet-4",
		},
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "resolve known alias",
			input:    "fast",
			expected: "gemini-2.5-flash",
		},
		{
			name:     "resolve another alias",
			input:    "quality",
			expected: "claude-sonnet-4",
		},
		{
			name:     "unknown alias returns input unchanged",
			input:    "unknown-model",
			expected: "unknown-model",
		},
		{
			name:     "canonical model returns unchanged",
			input:    "gemini-2.5-flash",
			expected: "gemini-2.5-flash",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := aliases.Resolve(tt.input)
			if result != tt.expected {
				t.Errorf("Resolve(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestResolve_NilAliases(t *testing.T) {
	var aliases *ModelAliases
	result := aliases.Resolve("fast")
	if result != "fast" {
		t.Errorf("Resolve on nil should return input, got %q", result)
	}
	if aliases.GetProviderForModel("fast") != "" {
		t.Errorf("GetProviderForModel on nil should return empty")
	}
}

func TestIsAlias(t *testing.T) {
	aliases := &ModelAliases{
		Aliases: map[string]string{
			"fast": "gemini-2.5-flash",
		},
	}

	if !aliases.IsAlias("fast") {
		t.Error("IsAlias should return true for known alias")
	}

	if aliases.IsAlias("unknown") {
		t.Error("IsAlias should return false for unknown alias")
	}

	if aliases.IsAlias("gemini-2.5-flash") {
		t.Error("IsAlias should return false for canonical model name")
	}
}

func TestValidateModel(t *testing.T) {
	aliases := &ModelAliases{
		Providers: map[string][]string{
			"openai":    {"gpt-5.2", "gpt-5.1"},
			"anthropic": {"claude-sonnet-4"},
		},
	}

	tests := []struct {
		name      string
		provider  string
		model     string
		wantError bool
	}{
		{
			name:      "valid model for provider",
			provider:  "openai",
			model:     "gpt-5.2",
			wantError: false,
		},
		{
			name:      "provider is case-insensitive",
			provider:  "Anthropic",
			model:     "claude-sonnet-4",
			wantError: false,
		},
		{
			name:      "invalid model for provider",
			provider:  "openai",
			model:     "claude-sonnet-4",
			wantError: true,
		},
		{
			name:      "unknown provider",
			provider:  "unknown",
			model:     "some-model",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := aliases.ValidateModel(tt.provider, tt.model)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateModel(%q, %q) error = %v, wantError %v",
					tt.provider, tt.model, err, tt.wantError)
			}
		})
	}
}

func TestGetProviderForModel(t *testing.T) {
	aliases := &ModelAliases{
		Providers: map[string][]string{
			"openai":    {"gpt-5.2", "shared"},
			"anthropic": {"claude-sonnet-4", "shared"},
		},
	}

	tests := []struct {
		model    string
		expected string
	}{
		{"gpt-5.2", "openai"},
		{"claude-sonnet-4", "anthropic"},
		{"shared", "anthropic"},
		{"unknown-model", ""},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			result := aliases.GetProviderForModel(tt.model)
			if result != tt.expected {
				t.Errorf("GetProviderForModel(%q) = %q, want %q", tt.model, result, tt.expected)
			}
		})
	}
}

func TestTarget(t *testing.T) {
	aliases := &ModelAliases{
		Aliases:   map[string]string{"embed": "gemini-embedding-001"},
		Providers: map[string][]string{"google": {"gemini-embedding-001"}},
	}

	target, err := aliases.Target("", "embed")
	if err != nil {
		t.Fatalf("Target() error = %v", err)
	}
	if target.Provider != "google" || target.Model != "gemini-embedding-001" {
		t.Fatalf("unexpected target %s", target)
	}

	target, err = aliases.Target("Mock", "anything")
	if err != nil || target.Provider != "mock" {
		t.Fatalf("explicit provider should be kept, got %s, %v", target, err)
	}

	if _, err := aliases.Target("", "unknown"); err == nil {
		t.Fatal("expected error for model without provider")
	}
}

func TestNewModelAliases(t *testing.T) {
	cfg := &RoutingConfig{
		Aliases: map[string]string{"fast": "b"},
		Providers: map[string]ProviderConfig{
			"openai": {Models: map[string]ModelConfig{"b": {}, "a": {}}},
		},
	}

	aliases := NewModelAliases(cfg)
	models := aliases.GetProviderModels("openai")
	if len(models) != 2 || models[0] != "a" || models[1] != "b" {
		t.Fatalf("expected sorted models, got %v", models)
	}

	cfg.Aliases["fast"] = "changed"
	if aliases.Resolve("fast") != "b" {
		t.Error("NewModelAliases should copy the alias map")
	}
}

func TestListAliases(t *testing.T) {
	aliases := &ModelAliases{
		Aliases: map[string]string{
			"fast":    "gemini-2.5-flash",
			"quality": "claude-sonnet-4",
		},
	}

	list := aliases.ListAliases()

	if len(list) != 2 {
		t.Errorf("expected 2 aliases, got %d", len(list))
	}

	if list["fast"] != "gemini-2.5-flash" {
		t.Error("ListAliases should include 'fast' alias")
	}

	// Verify it's a copy
	list["new"] = "value"
	if aliases.Aliases["new"] == "value" {
		t.Error("ListAliases should return a copy, not the original")
	}
}

func TestValidateRoutingConfig(t *testing.T) {
	aliases := &ModelAliases{
		Aliases: map[string]string{
			"fast": "gemini-2.5-flash",
		},
		Providers: map[string][]string{
			"google":    {"gemini-2.5-flash"},
			"anthropic": {"claude-sonnet-4"},
		},
	}

	validConfig := &RoutingConfig{
		Default: RouteTarget{Provider: "anthropic", Model: "claude-sonnet-4"},
		Fallback: FallbackConfig{
			AllowFallback: true,
			FallbackChain: map[string][]RouteTarget{
				"anthropic": {{Provider: "google", Model: "fast"}},
			},
		},
	}

	errors := aliases.ValidateRoutingConfig(validConfig)
	if len(errors) != 0 {
		t.Errorf("expected no errors for valid config, got %v", errors)
	}

	invalidConfig := &RoutingConfig{
		Default: RouteTarget{Provider: "anthropic", Model: "claude-sonnet-4"},
		Fallback: FallbackConfig{
			FallbackChain: map[string][]RouteTarget{
				"anthropic": {{Provider: "google", Model: "nonexistent-model"}},
			},
		},
	}

	errors = aliases.ValidateRoutingConfig(invalidConfig)
	if len(errors) != 1 {
		t.Errorf("expected 1 error for invalid config, got %d", len(errors))
	}
}

func TestDefaultAliases(t *testing.T) {
	aliases := DefaultAliases()

	if aliases == nil {
		t.Fatal("DefaultAliases should not return nil")
	}

	if len(aliases.Aliases) == 0 {
		t.Error("DefaultAliases should have aliases")
	}

	if len(aliases.Providers) == 0 {
		t.Error("DefaultAliases should have providers")
	}

	if aliases.Resolve("embed") != "gemini-embedding-001" {
		t.Error("'embed' alias should resolve to 'gemini-embedding-001'")
	}

	if errs := aliases.ValidateRoutingConfig(DefaultRoutingConfig()); len(errs) != 0 {
		t.Errorf("default routing config should validate, got %v", errs)
	}
}
