package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/zen-systems/relaygate/pkg/schema"
)

func TestMetricsRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveAttempt("google", "embeddings", 200, 150*time.Millisecond)
	m.ObserveUsage("google", "gemini", &schema.Usage{InputTokens: 1, OutputTokens: 1})
	m.ObserveClamps([]string{"temperature"})
	m.ObserveProbe("google", "hit")
	m.ObserveCost("google", "USD", 0.5)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}
	expected := map[string]bool{
		"relaygate_provider_attempts_total":  false,
		"relaygate_provider_latency_seconds": false,
		"relaygate_provider_tokens_total":    false,
		"relaygate_param_clamps_total":       false,
		"relaygate_usage_probe_total":        false,
		"relaygate_cost_total":               false,
	}
	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("metric %q not found in registry", name)
		}
	}
}

func TestObserveAttemptLabels(t *testing.T) {
	m := New(nil)
	m.ObserveAttempt("openai", "chat.completions", 429, time.Second)
	m.ObserveAttempt("openai", "chat.completions", 0, time.Second)

	if got := testutil.ToFloat64(m.ProviderAttempts.WithLabelValues("openai", "chat.completions", "429")); got != 1 {
		t.Fatalf("expected one 429 attempt, got %v", got)
	}
	if got := testutil.ToFloat64(m.ProviderAttempts.WithLabelValues("openai", "chat.completions", "error")); got != 1 {
		t.Fatalf("expected one transport error attempt, got %v", got)
	}
}

func TestObserveUsageDirections(t *testing.T) {
	m := New(nil)
	m.ObserveUsage("anthropic", "claude", &schema.Usage{
		InputTokens:       30,
		OutputTokens:      5,
		CachedInputTokens: schema.Int(20),
	})

	if got := testutil.ToFloat64(m.ProviderTokens.WithLabelValues("anthropic", "claude", "input")); got != 30 {
		t.Fatalf("input tokens: got %v", got)
	}
	if got := testutil.ToFloat64(m.ProviderTokens.WithLabelValues("anthropic", "claude", "cached")); got != 20 {
		t.Fatalf("cached tokens: got %v", got)
	}
	if got := testutil.CollectAndCount(m.ProviderTokens); got != 3 {
		t.Fatalf("expected 3 series (no reasoning), got %d", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveAttempt("x", "y", 200, time.Second)
	m.ObserveUsage("x", "y", &schema.Usage{})
	m.ObserveClamps([]string{"top_p"})
	m.ObserveProbe("x", "miss")
	m.ObserveCost("x", "USD", 1)
}

func TestObserveProbeIgnoresSkipped(t *testing.T) {
	m := New(nil)
	m.ObserveProbe("google", "")
	if got := testutil.CollectAndCount(m.UsageProbes); got != 0 {
		t.Fatalf("expected no probe series, got %d", got)
	}
}
