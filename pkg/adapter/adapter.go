// Package adapter defines the provider executor contract and its
// implementations.
//
// An Executor turns one canonical call into one upstream call (two when the
// usage probe fires) and reports the outcome as a Result. Upstream failures
// are data, not errors: a failed Result still carries the status, the mapped
// request and the key source so callers can log and bill the attempt.
package adapter

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/zen-systems/relaygate/pkg/pricing"
	"github.com/zen-systems/relaygate/pkg/schema"
)

// Endpoint names the capability an executor serves.
type Endpoint string

const (
	EndpointChat       Endpoint = "chat.completions"
	EndpointEmbeddings Endpoint = "embeddings"
)

// Executor performs calls for one provider.
type Executor interface {
	// Name returns the provider id.
	Name() string

	// Endpoints lists the capabilities this executor implements.
	Endpoints() []Endpoint

	// Execute performs one call. It never returns nil.
	Execute(ctx context.Context, ec *ExecContext) *Result
}

// ExecContext is everything an executor needs for one call.
type ExecContext struct {
	RequestID         string
	Endpoint          Endpoint
	Model             string
	ProviderModelSlug string

	// Chat is the normalized request for chat endpoints.
	Chat *schema.ChatRequest
	// Body is the raw request body for endpoints that sanitize their own input.
	Body json.RawMessage

	Pricing *pricing.Card
	Keys    KeyResolver
	BYOK    *BYOKKey
	Logger  *slog.Logger
}

// UpstreamModel is the model id sent on the wire: the slug when configured.
func (ec *ExecContext) UpstreamModel() string {
	if ec.ProviderModelSlug != "" {
		return ec.ProviderModelSlug
	}
	return ec.Model
}

func (ec *ExecContext) logger() *slog.Logger {
	if ec.Logger != nil {
		return ec.Logger
	}
	return slog.Default()
}

// supports reports whether e lists endpoint.
func supports(e Executor, endpoint Endpoint) bool {
	for _, ep := range e.Endpoints() {
		if ep == endpoint {
			return true
		}
	}
	return false
}
