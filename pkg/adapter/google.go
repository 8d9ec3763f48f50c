package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"google.golang.org/genai"

	"github.com/zen-systems/relaygate/pkg/reasoning"
	"github.com/zen-systems/relaygate/pkg/schema"
	"github.com/zen-systems/relaygate/pkg/usage"
)

// Gemini thinking budgets are capped per model; this is the widest cap.
const googleMaxThinkingBudget = 24576

// GoogleChat executes chat requests through the Gemini SDK.
type GoogleChat struct {
	cfg chatConfig
}

// NewGoogleChat creates the executor.
func NewGoogleChat(opts ...ChatOption) *GoogleChat {
	return &GoogleChat{cfg: newChatConfig("google", opts)}
}

// Name returns the provider id.
func (a *GoogleChat) Name() string {
	return a.cfg.name
}

// Endpoints lists the supported capabilities.
func (a *GoogleChat) Endpoints() []Endpoint {
	return []Endpoint{EndpointChat}
}

type googleMappedRequest struct {
	Model    string                       `json:"model"`
	Contents []*genai.Content             `json:"contents"`
	Config   *genai.GenerateContentConfig `json:"generationConfig,omitempty"`
}

// Execute implements Executor.
func (a *GoogleChat) Execute(ctx context.Context, ec *ExecContext) *Result {
	key, res := resolveKey(ec, a.Name())
	if res != nil {
		return res
	}
	req, res := chatInput(ec)
	if res != nil {
		return res.withKey(key)
	}

	model := ec.UpstreamModel()
	contents, config := googleParams(req)
	mapped := googleMappedRequest{Model: model, Contents: contents, Config: config}

	cc := &genai.ClientConfig{
		APIKey:     key.Key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: a.cfg.httpClient,
	}
	if a.cfg.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: a.cfg.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return failureFromError(err, nil).withKey(key).withMapped(mapped)
	}

	resp, err := client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return failureFromError(err, googleStatus).withKey(key).withMapped(mapped)
	}

	var text, finish string
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		cand := resp.Candidates[0]
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if part != nil && part.Text != "" && !part.Thought {
					text += part.Text
				}
			}
		}
		finish = googleFinish(cand.FinishReason)
	}

	var u *schema.Usage
	if resp.UsageMetadata != nil {
		if raw, err := json.Marshal(resp.UsageMetadata); err == nil {
			u, _ = usage.Reconcile(raw)
		}
	}

	completion := schema.NewChatCompletion(resp.ResponseID, ec.Model, text, finish, time.Now().Unix())
	out := completed(ec, completion, u, &Upstream{Status: 200})
	if raw, err := json.Marshal(resp); err == nil {
		out.RawResponse = raw
	}
	return out.withKey(key).withMapped(mapped)
}

func googleParams(req *schema.ChatRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case schema.RoleSystem:
			continue
		case schema.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	config := &genai.GenerateContentConfig{}
	if system := req.SystemPrompt(); system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.TopP != nil {
		config.TopP = genai.Ptr(float32(*req.TopP))
	}
	if req.FrequencyPenalty != nil {
		config.FrequencyPenalty = genai.Ptr(float32(*req.FrequencyPenalty))
	}
	if req.PresencePenalty != nil {
		config.PresencePenalty = genai.Ptr(float32(*req.PresencePenalty))
	}
	if req.TopLogprobs != nil {
		config.ResponseLogprobs = true
		config.Logprobs = genai.Ptr(int32(*req.TopLogprobs))
	}
	if req.MaxTokens != nil {
		config.MaxOutputTokens = int32(*req.MaxTokens)
	}
	if budget, ok := googleThinkingBudget(req.Reasoning); ok {
		config.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(int32(budget))}
	}
	return contents, config
}

func googleThinkingBudget(r *schema.Reasoning) (int, bool) {
	if r == nil {
		return 0, false
	}
	if r.Enabled != nil && !*r.Enabled {
		return 0, true
	}
	if r.MaxTokens != nil {
		return min(*r.MaxTokens, googleMaxThinkingBudget), true
	}
	if effort, ok := reasoning.Parse(r.Effort); ok {
		return reasoning.BudgetFor(effort, googleMaxThinkingBudget), true
	}
	return 0, false
}

func googleFinish(reason genai.FinishReason) string {
	switch reason {
	case genai.FinishReasonStop:
		return schema.FinishStop
	case genai.FinishReasonMaxTokens:
		return schema.FinishLength
	case "":
		return ""
	}
	return schema.FinishOther
}

func googleStatus(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, true
	}
	return 0, false
}
