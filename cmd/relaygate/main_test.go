package main

import (
	"testing"

	"github.com/zen-systems/relaygate/pkg/capability"
	"github.com/zen-systems/relaygate/pkg/config"
	"github.com/zen-systems/relaygate/pkg/schema"
)

func TestResolveTarget(t *testing.T) {
	cfg := &config.Config{RoutingConfig: config.DefaultRoutingConfig()}

	target, err := resolveTarget(cfg, "", "")
	if err != nil {
		t.Fatalf("resolveTarget: %v", err)
	}
	if target != cfg.RoutingConfig.Default {
		t.Fatalf("expected default target, got %s", target)
	}

	target, err = resolveTarget(cfg, "", "embed")
	if err != nil {
		t.Fatalf("resolveTarget: %v", err)
	}
	if target.String() != "google/gemini-embedding-001" {
		t.Fatalf("unexpected alias target %s", target)
	}

	if _, err := resolveTarget(cfg, "openai", ""); err == nil {
		t.Fatalf("expected error for provider without model")
	}
}

func TestParamValue(t *testing.T) {
	req := &schema.ChatRequest{Temperature: schema.Float(0.5), MaxTokens: schema.Int(128)}

	tests := []struct {
		id   capability.ParamID
		want string
	}{
		{capability.Temperature, "0.5"},
		{capability.MaxTokens, "128"},
		{capability.TopP, "unset"},
		{capability.ReasoningEffort, "unset"},
	}
	for _, tt := range tests {
		if got := paramValue(req, tt.id); got != tt.want {
			t.Errorf("paramValue(%s) = %q, want %q", tt.id, got, tt.want)
		}
	}

	req.Reasoning = &schema.Reasoning{MaxTokens: schema.Int(2048)}
	if got := paramValue(req, capability.ReasoningMaxTokens); got != "2048" {
		t.Errorf("reasoning max tokens = %q", got)
	}
}

func TestByokKey(t *testing.T) {
	byokFlag = ""
	if byokKey("openai") != nil {
		t.Fatalf("expected no key without --byok")
	}

	byokFlag = "sk-test"
	defer func() { byokFlag = "" }()
	k := byokKey("openai")
	if k == nil || k.Key != "sk-test" || k.Provider != "openai" {
		t.Fatalf("unexpected key %+v", k)
	}
}
