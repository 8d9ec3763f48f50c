// Package dispatch runs one canonical call end to end: capability lookup,
// normalization, execution with retry and fallback, metrics and budget
// accounting.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zen-systems/relaygate/pkg/adapter"
	"github.com/zen-systems/relaygate/pkg/capability"
	"github.com/zen-systems/relaygate/pkg/config"
	"github.com/zen-systems/relaygate/pkg/metrics"
	"github.com/zen-systems/relaygate/pkg/normalize"
	"github.com/zen-systems/relaygate/pkg/pricing"
	"github.com/zen-systems/relaygate/pkg/schema"
	"github.com/zen-systems/relaygate/pkg/tokens"
)

// Call is one request to dispatch.
type Call struct {
	// RequestID is generated when empty.
	RequestID string
	Provider  string
	Model     string
	Endpoint  adapter.Endpoint
	// Protocol is the wire shape the request arrived in. When empty the
	// provider's configured protocol applies.
	Protocol normalize.Protocol

	Chat *schema.ChatRequest
	Body json.RawMessage
	BYOK *adapter.BYOKKey
}

// Attempt reports one Execute call.
type Attempt struct {
	Provider     string        `json:"provider"`
	Model        string        `json:"model"`
	Status       int           `json:"status,omitempty"`
	Usage        *schema.Usage `json:"usage,omitempty"`
	Bill         pricing.Bill  `json:"bill"`
	Retries      int           `json:"retries"`
	FallbackUsed bool          `json:"fallback_used,omitempty"`
	Elapsed      time.Duration `json:"elapsed"`
	Error        string        `json:"error,omitempty"`
}

// Outcome is everything Dispatch learned about a call.
type Outcome struct {
	RequestID string `json:"request_id"`
	// Result is the final result: the completed one, or the last failure.
	Result *adapter.Result `json:"result,omitempty"`
	// Request is the normalized chat request sent to the final target.
	Request  *schema.ChatRequest `json:"request,omitempty"`
	Clamped  []string            `json:"clamped,omitempty"`
	Estimate *schema.Usage       `json:"estimate,omitempty"`
	Attempts []Attempt           `json:"attempts"`
}

// Dispatcher is safe for concurrent use once built.
type Dispatcher struct {
	registry  *adapter.Registry
	routing   *config.RoutingConfig
	catalog   *capability.Catalog
	table     pricing.Table
	keys      adapter.KeyResolver
	tracker   *pricing.Tracker
	metrics   *metrics.Metrics
	estimator *tokens.Estimator
	logger    *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithKeys sets the credential resolver handed to executors.
func WithKeys(keys adapter.KeyResolver) Option {
	return func(d *Dispatcher) { d.keys = keys }
}

// WithCatalog overrides the capability catalog built from the routing config.
func WithCatalog(c *capability.Catalog) Option {
	return func(d *Dispatcher) { d.catalog = c }
}

// WithTracker overrides the budget tracker.
func WithTracker(t *pricing.Tracker) Option {
	return func(d *Dispatcher) { d.tracker = t }
}

// WithMetrics records attempts on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithEstimator attaches a local token estimate to chat outcomes.
func WithEstimator(e *tokens.Estimator) Option {
	return func(d *Dispatcher) { d.estimator = e }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// New builds a dispatcher over registry. A nil routing config means default
// retry settings, no fallback, no pricing and no capability metadata.
func New(registry *adapter.Registry, routing *config.RoutingConfig, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		routing:  routing,
		catalog:  routing.Catalog(),
		table:    routing.PricingTable(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.tracker == nil {
		maxCost := 0.0
		if routing != nil {
			maxCost = routing.MaxCost
		}
		d.tracker = pricing.NewTracker(d.table, maxCost)
	}
	return d
}

// Tracker returns the running cost tracker.
func (d *Dispatcher) Tracker() *pricing.Tracker {
	return d.tracker
}

// Dispatch executes call against its target and, on failure, the configured
// fallback chain. Transient failures are retried with exponential backoff.
// The returned Outcome is non-nil whenever at least one attempt was made; the
// error is set when no target completed.
func (d *Dispatcher) Dispatch(ctx context.Context, call Call) (*Outcome, error) {
	if d.registry == nil {
		return nil, errors.New("dispatcher has no executor registry")
	}
	if call.Endpoint == "" {
		call.Endpoint = adapter.EndpointChat
	}
	switch call.Endpoint {
	case adapter.EndpointChat:
		if call.Chat == nil {
			return nil, errors.New("chat call without a request")
		}
		if call.Model == "" {
			call.Model = call.Chat.Model
		}
	case adapter.EndpointEmbeddings:
		if len(call.Body) == 0 {
			return nil, errors.New("embeddings call without a body")
		}
	}
	if call.Provider == "" || call.Model == "" {
		return nil, fmt.Errorf("call needs a provider and a model (got %q/%q)", call.Provider, call.Model)
	}

	out := &Outcome{RequestID: call.RequestID}
	if out.RequestID == "" {
		out.RequestID = uuid.NewString()
	}
	logger := d.logger.With("request_id", out.RequestID, "endpoint", string(call.Endpoint))

	retry := retrySettings(d.routing)
	var lastErr error

	for idx, target := range buildTargets(strings.ToLower(call.Provider), call.Model, d.routing) {
		exec, err := d.registry.For(target.Provider, call.Endpoint)
		if err != nil {
			if idx == 0 {
				return out, err
			}
			logger.Warn("skipping fallback target",
				"provider", target.Provider,
				"model", target.Model,
				"error", err,
			)
			continue
		}
		ec := d.execContext(call, target, out, logger)

		for attempt := 0; attempt <= retry.MaxRetries; attempt++ {
			if err := d.tracker.Check(target.Provider, target.Model); err != nil {
				return out, err
			}

			start := time.Now()
			res := exec.Execute(ctx, ec)
			elapsed := time.Since(start)
			out.Result = res

			report := Attempt{
				Provider:     target.Provider,
				Model:        target.Model,
				Status:       statusOf(res),
				Retries:      attempt,
				FallbackUsed: idx > 0,
				Elapsed:      elapsed,
			}
			d.metrics.ObserveAttempt(target.Provider, string(call.Endpoint), report.Status, elapsed)
			d.metrics.ObserveProbe(target.Provider, string(res.UsageProbe))

			if res.OK() {
				report.Usage = res.Usage
				report.Bill = res.Bill
				out.Attempts = append(out.Attempts, report)
				d.metrics.ObserveUsage(target.Provider, target.Model, res.Usage)
				d.metrics.ObserveCost(target.Provider, res.Bill.Currency, res.Bill.Amount)
				d.tracker.Record(res.Usage, res.Bill)
				logger.Debug("call completed",
					"provider", target.Provider,
					"model", target.Model,
					"status", report.Status,
					"retries", attempt,
					"elapsed", elapsed,
				)
				return out, nil
			}

			lastErr = res.Err()
			if ctxErr := ctx.Err(); ctxErr != nil {
				report.Error = ctxErr.Error()
				out.Attempts = append(out.Attempts, report)
				return out, ctxErr
			}
			if !adapter.IsTransient(lastErr) || attempt == retry.MaxRetries {
				report.Error = lastErr.Error()
				out.Attempts = append(out.Attempts, report)
				logger.Warn("call failed",
					"provider", target.Provider,
					"model", target.Model,
					"status", report.Status,
					"retries", attempt,
					"error", lastErr,
				)
				break
			}

			backoff := computeBackoff(retry.BaseBackoffMs, retry.MaxBackoffMs, attempt)
			logger.Debug("retrying transient failure",
				"provider", target.Provider,
				"model", target.Model,
				"status", report.Status,
				"backoff", backoff,
			)
			if err := sleepWithContext(ctx, backoff); err != nil {
				report.Error = err.Error()
				out.Attempts = append(out.Attempts, report)
				return out, err
			}
		}
	}

	if lastErr == nil {
		lastErr = errors.New("provider call failed")
	}
	return out, lastErr
}

// execContext prepares the per-target execution context. Chat requests are
// normalized against the target's capabilities; the outcome keeps the last
// normalized request and its clamps.
func (d *Dispatcher) execContext(call Call, target config.RouteTarget, out *Outcome, logger *slog.Logger) *adapter.ExecContext {
	card, _ := d.table.For(target.Provider, target.Model)
	ec := &adapter.ExecContext{
		RequestID:         out.RequestID,
		Endpoint:          call.Endpoint,
		Model:             target.Model,
		ProviderModelSlug: d.routing.Slug(target.Provider, target.Model),
		Body:              call.Body,
		Pricing:           card,
		Keys:              d.keys,
		BYOK:              call.BYOK,
		Logger:            logger.With("provider", target.Provider),
	}
	if call.Endpoint != adapter.EndpointChat {
		return ec
	}

	req := call.Chat
	if req.Model != target.Model {
		req = req.Clone()
		req.Model = target.Model
	}
	normalized := normalize.Normalize(req, target.Provider, d.protocolFor(call, target.Provider), normalize.Options{
		Capabilities:            d.catalog.Lookup(target.Provider, target.Model),
		ProviderMaxOutputTokens: d.routing.MaxOutputTokens(target.Provider),
		ModelForReasoning:       ec.UpstreamModel(),
	})

	var clamped []string
	for _, id := range normalize.Changes(req, normalized) {
		clamped = append(clamped, string(id))
	}
	d.metrics.ObserveClamps(clamped)
	if len(clamped) > 0 {
		logger.Debug("request normalized", "provider", target.Provider, "model", target.Model, "clamped", clamped)
	}

	out.Request = normalized
	out.Clamped = clamped
	if d.estimator != nil && out.Estimate == nil {
		out.Estimate = d.estimator.Project(normalized)
	}
	ec.Chat = normalized
	return ec
}

func (d *Dispatcher) protocolFor(call Call, provider string) normalize.Protocol {
	if call.Protocol != normalize.ProtocolNone {
		return call.Protocol
	}
	p, ok := d.routing.Provider(provider)
	if !ok {
		return normalize.ProtocolNone
	}
	protocol, _ := normalize.ParseProtocol(p.Protocol)
	return protocol
}

func statusOf(res *adapter.Result) int {
	if res == nil {
		return 0
	}
	if res.Upstream != nil && res.Upstream.Status != 0 {
		return res.Upstream.Status
	}
	if res.Failure != nil {
		return res.Failure.Status
	}
	return 0
}
