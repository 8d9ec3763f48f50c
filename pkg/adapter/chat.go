package adapter

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/zen-systems/relaygate/pkg/schema"
)

// ChatOption configures an SDK-backed chat executor.
type ChatOption func(*chatConfig)

type chatConfig struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

// WithProviderName registers the executor under another provider id, for
// wire-compatible providers.
func WithProviderName(name string) ChatOption {
	return func(c *chatConfig) { c.name = strings.ToLower(name) }
}

// WithBaseURL points the executor at another API host.
func WithBaseURL(url string) ChatOption {
	return func(c *chatConfig) { c.baseURL = url }
}

// WithHTTPClient sets the HTTP client used by the SDK.
func WithHTTPClient(client *http.Client) ChatOption {
	return func(c *chatConfig) { c.httpClient = client }
}

func newChatConfig(name string, opts []ChatOption) chatConfig {
	cfg := chatConfig{name: name}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{}
	}
	return cfg
}

// chatInput returns the request or the failed result for a missing one.
func chatInput(ec *ExecContext) (*schema.ChatRequest, *Result) {
	if ec.Chat == nil {
		return nil, failed(http.StatusBadRequest, FailureRequest, "chat request is required")
	}
	if len(ec.Chat.Messages) == 0 {
		return nil, failed(http.StatusBadRequest, FailureRequest, "chat request has no messages")
	}
	return ec.Chat, nil
}

// completed wraps a chat answer into a priced result.
func completed(ec *ExecContext, completion *schema.ChatCompletion, u *schema.Usage, upstream *Upstream) *Result {
	completion.Usage = u
	res := &Result{Kind: KindCompleted, Upstream: upstream}
	if body, err := json.Marshal(completion); err == nil {
		res.Body = body
	}
	return res.price(u, ec.Pricing)
}

func upstreamFrom(resp *http.Response) *Upstream {
	if resp == nil {
		return &Upstream{Status: http.StatusOK}
	}
	return (&rawResponse{Status: resp.StatusCode, Header: resp.Header}).upstream()
}
