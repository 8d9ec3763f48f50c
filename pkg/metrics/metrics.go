// Package metrics exposes Prometheus counters for provider calls, token
// accounting and parameter clamping.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zen-systems/relaygate/pkg/schema"
)

// LLMBuckets covers provider latencies from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	ProviderAttempts *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	ProviderTokens   *prometheus.CounterVec
	ParamClamps      *prometheus.CounterVec
	UsageProbes      *prometheus.CounterVec
	Cost             *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which is convenient in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProviderAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relaygate_provider_attempts_total",
				Help: "Provider call attempts",
			},
			[]string{"provider", "endpoint", "status"},
		),
		ProviderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relaygate_provider_latency_seconds",
				Help:    "Provider latency",
				Buckets: LLMBuckets,
			},
			[]string{"provider", "endpoint"},
		),
		ProviderTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relaygate_provider_tokens_total",
				Help: "Token count",
			},
			[]string{"provider", "model", "direction"},
		),
		ParamClamps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relaygate_param_clamps_total",
				Help: "Request parameters adjusted by normalization",
			},
			[]string{"param"},
		),
		UsageProbes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relaygate_usage_probe_total",
				Help: "Fallback token-count probes",
			},
			[]string{"provider", "outcome"},
		),
		Cost: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relaygate_cost_total",
				Help: "Billed amount",
			},
			[]string{"provider", "currency"},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.ProviderAttempts,
			m.ProviderLatency,
			m.ProviderTokens,
			m.ParamClamps,
			m.UsageProbes,
			m.Cost,
		)
	}
	return m
}

// ObserveAttempt records one provider call. Status 0 means no HTTP response.
func (m *Metrics) ObserveAttempt(provider, endpoint string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.ProviderAttempts.WithLabelValues(provider, endpoint, label).Inc()
	m.ProviderLatency.WithLabelValues(provider, endpoint).Observe(elapsed.Seconds())
}

// ObserveUsage adds the usage of a completed call.
func (m *Metrics) ObserveUsage(provider, model string, u *schema.Usage) {
	if m == nil || u == nil {
		return
	}
	m.ProviderTokens.WithLabelValues(provider, model, "input").Add(float64(u.InputTokens))
	m.ProviderTokens.WithLabelValues(provider, model, "output").Add(float64(u.OutputTokens))
	if u.CachedInputTokens != nil {
		m.ProviderTokens.WithLabelValues(provider, model, "cached").Add(float64(*u.CachedInputTokens))
	}
	if u.ReasoningTokens != nil {
		m.ProviderTokens.WithLabelValues(provider, model, "reasoning").Add(float64(*u.ReasoningTokens))
	}
}

// ObserveClamps counts adjusted parameters.
func (m *Metrics) ObserveClamps(params []string) {
	if m == nil {
		return
	}
	for _, p := range params {
		m.ParamClamps.WithLabelValues(p).Inc()
	}
}

// ObserveProbe counts a fallback token-count probe. Empty outcomes are
// ignored.
func (m *Metrics) ObserveProbe(provider, outcome string) {
	if m == nil || outcome == "" {
		return
	}
	m.UsageProbes.WithLabelValues(provider, outcome).Inc()
}

// ObserveCost adds a billed amount.
func (m *Metrics) ObserveCost(provider, currency string, amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.Cost.WithLabelValues(provider, currency).Add(amount)
}
