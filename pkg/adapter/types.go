package adapter

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zen-systems/relaygate/pkg/pricing"
	"github.com/zen-systems/relaygate/pkg/schema"
)

// Kind tags a Result.
type Kind string

const (
	KindCompleted Kind = "completed"
	KindFailed    Kind = "failed"
)

// Upstream describes the provider response that produced a Result.
type Upstream struct {
	Status    int         `json:"status"`
	RequestID string      `json:"request_id,omitempty"`
	Header    http.Header `json:"-"`
}

// Failure is the structured description of a failed call.
type Failure struct {
	Status    int    `json:"status"`
	Type      string `json:"type,omitempty"`
	Message   string `json:"message"`
	Temporary bool   `json:"temporary,omitempty"`
}

// Err converts the failure into an error that IsTransient understands.
func (f *Failure) Err() error {
	if f == nil {
		return nil
	}
	return &AdapterError{Status: f.Status, Temporary: f.Temporary, Err: errors.New(f.Message)}
}

// Result is the outcome of one Execute call.
type Result struct {
	Kind     Kind      `json:"kind"`
	Upstream *Upstream `json:"upstream,omitempty"`

	// Body is the canonical response: a schema.ChatCompletion or a
	// schema.EmbeddingsResponse, or a pass-through of an already canonical
	// upstream body.
	Body        json.RawMessage `json:"body,omitempty"`
	RawResponse json.RawMessage `json:"raw_response,omitempty"`

	Usage *schema.Usage `json:"usage,omitempty"`
	Bill  pricing.Bill  `json:"bill"`

	MappedRequest json.RawMessage `json:"mapped_request,omitempty"`
	KeySource     KeySource       `json:"key_source,omitempty"`
	BYOKKeyID     string          `json:"byok_key_id,omitempty"`

	// UsageProbe reports whether a side-channel token count was needed.
	UsageProbe ProbeOutcome `json:"usage_probe,omitempty"`

	Failure *Failure `json:"failure,omitempty"`
}

// ProbeOutcome describes the fallback token-count call.
type ProbeOutcome string

const (
	ProbeSkipped ProbeOutcome = ""
	ProbeHit     ProbeOutcome = "hit"
	ProbeMiss    ProbeOutcome = "miss"
	ProbeError   ProbeOutcome = "error"
)

// OK reports whether the call completed.
func (r *Result) OK() bool {
	return r != nil && r.Kind == KindCompleted
}

// Err returns nil for completed results and the failure as an error
// otherwise.
func (r *Result) Err() error {
	if r.OK() {
		return nil
	}
	if r == nil || r.Failure == nil {
		return &AdapterError{Err: errors.New("call failed without detail")}
	}
	return r.Failure.Err()
}

func failed(status int, typ, msg string) *Result {
	return &Result{
		Kind: KindFailed,
		Failure: &Failure{
			Status:    status,
			Type:      typ,
			Message:   msg,
			Temporary: transientStatus(status),
		},
	}
}

func (r *Result) withKey(k ResolvedKey) *Result {
	r.KeySource = k.Source
	r.BYOKKeyID = k.BYOKID
	return r
}

func (r *Result) withMapped(payload any) *Result {
	if payload == nil {
		return r
	}
	if raw, err := json.Marshal(payload); err == nil {
		r.MappedRequest = raw
	}
	return r
}

// price attaches usage and its bill.
func (r *Result) price(u *schema.Usage, card *pricing.Card) *Result {
	r.Usage = u
	if u != nil {
		r.Bill = pricing.Compute(u, card)
	} else {
		r.Bill = pricing.Bill{Currency: "USD", Unpriced: card == nil}
	}
	return r
}
