package adapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/zen-systems/relaygate/pkg/reasoning"
	"github.com/zen-systems/relaygate/pkg/schema"
	"github.com/zen-systems/relaygate/pkg/usage"
)

const (
	anthropicDefaultMaxTokens = 4096
	anthropicMinThinking      = 1024
)

// AnthropicMessages executes chat requests against the Messages API.
type AnthropicMessages struct {
	cfg chatConfig
}

// NewAnthropicMessages creates the executor.
func NewAnthropicMessages(opts ...ChatOption) *AnthropicMessages {
	return &AnthropicMessages{cfg: newChatConfig("anthropic", opts)}
}

// Name returns the provider id.
func (a *AnthropicMessages) Name() string {
	return a.cfg.name
}

// Endpoints lists the supported capabilities.
func (a *AnthropicMessages) Endpoints() []Endpoint {
	return []Endpoint{EndpointChat}
}

// Execute implements Executor.
func (a *AnthropicMessages) Execute(ctx context.Context, ec *ExecContext) *Result {
	key, res := resolveKey(ec, a.Name())
	if res != nil {
		return res
	}
	req, res := chatInput(ec)
	if res != nil {
		return res.withKey(key)
	}

	params := anthropicParams(req, ec.UpstreamModel())

	opts := []option.RequestOption{
		option.WithAPIKey(key.Key),
		option.WithHTTPClient(a.cfg.httpClient),
		option.WithMaxRetries(0),
	}
	if a.cfg.baseURL != "" {
		opts = append(opts, option.WithBaseURL(a.cfg.baseURL))
	}
	client := anthropic.NewClient(opts...)

	var httpResp *http.Response
	resp, err := client.Messages.New(ctx, params, option.WithResponseInto(&httpResp))
	if err != nil {
		return failureFromError(err, anthropicStatus).withKey(key).withMapped(params)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	u, _ := usage.Reconcile([]byte(resp.Usage.RawJSON()))

	completion := schema.NewChatCompletion(resp.ID, ec.Model, text, anthropicFinish(string(resp.StopReason)), 0)
	out := completed(ec, completion, u, upstreamFrom(httpResp))
	out.RawResponse = []byte(resp.RawJSON())
	return out.withKey(key).withMapped(params)
}

func anthropicParams(req *schema.ChatRequest, model string) anthropic.MessageNewParams {
	maxTokens := anthropicDefaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
	}
	if system := req.SystemPrompt(); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	for _, m := range req.Messages {
		switch m.Role {
		case schema.RoleSystem:
			continue
		case schema.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	// Extended thinking rejects sampling overrides.
	if budget, ok := thinkingBudget(req.Reasoning, maxTokens); ok {
		params.Thinking = anthropic.ThinkingConfigParamUnion{
			OfEnabled: &anthropic.ThinkingConfigEnabledParam{BudgetTokens: int64(budget)},
		}
		return params
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = anthropic.Float(*req.TopP)
	}
	return params
}

// thinkingBudget derives the thinking budget from an explicit token budget or
// from the effort level. Budgets must be at least 1024 and below max_tokens.
func thinkingBudget(r *schema.Reasoning, maxTokens int) (int, bool) {
	if r == nil || (r.Enabled != nil && !*r.Enabled) {
		return 0, false
	}
	budget := 0
	switch {
	case r.MaxTokens != nil:
		budget = *r.MaxTokens
	case r.Effort != "":
		effort, ok := reasoning.Parse(r.Effort)
		if !ok {
			return 0, false
		}
		budget = reasoning.BudgetFor(effort, maxTokens)
	}
	budget = min(budget, maxTokens-1)
	if budget < anthropicMinThinking {
		return 0, false
	}
	return budget, true
}

func anthropicFinish(stop string) string {
	switch stop {
	case "end_turn", "stop_sequence":
		return schema.FinishStop
	case "max_tokens":
		return schema.FinishLength
	case "":
		return ""
	}
	return schema.FinishOther
}

func anthropicStatus(err error) (int, bool) {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}
	return 0, false
}
