package adapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/zen-systems/relaygate/pkg/schema"
	"github.com/zen-systems/relaygate/pkg/usage"
)

// DeepSeekBaseURL is the OpenAI-compatible DeepSeek API host.
const DeepSeekBaseURL = "https://api.deepseek.com/v1"

// OpenAIChat executes chat completions through the OpenAI SDK. It also serves
// OpenAI-compatible providers via WithProviderName and WithBaseURL.
type OpenAIChat struct {
	cfg chatConfig
}

// NewOpenAIChat creates the executor.
func NewOpenAIChat(opts ...ChatOption) *OpenAIChat {
	return &OpenAIChat{cfg: newChatConfig("openai", opts)}
}

// NewDeepSeekChat is OpenAIChat pointed at DeepSeek.
func NewDeepSeekChat(opts ...ChatOption) *OpenAIChat {
	opts = append([]ChatOption{WithProviderName("deepseek"), WithBaseURL(DeepSeekBaseURL)}, opts...)
	return NewOpenAIChat(opts...)
}

// Name returns the provider id.
func (a *OpenAIChat) Name() string {
	return a.cfg.name
}

// Endpoints lists the supported capabilities.
func (a *OpenAIChat) Endpoints() []Endpoint {
	return []Endpoint{EndpointChat}
}

// Execute implements Executor.
func (a *OpenAIChat) Execute(ctx context.Context, ec *ExecContext) *Result {
	key, res := resolveKey(ec, a.Name())
	if res != nil {
		return res
	}
	req, res := chatInput(ec)
	if res != nil {
		return res.withKey(key)
	}

	params := openAIParams(req, ec.UpstreamModel())

	opts := []option.RequestOption{
		option.WithAPIKey(key.Key),
		option.WithHTTPClient(a.cfg.httpClient),
		option.WithMaxRetries(0),
	}
	if a.cfg.baseURL != "" {
		opts = append(opts, option.WithBaseURL(a.cfg.baseURL))
	}
	client := openai.NewClient(opts...)

	var httpResp *http.Response
	resp, err := client.Chat.Completions.New(ctx, params, option.WithResponseInto(&httpResp))
	if err != nil {
		return failureFromError(err, openAIStatus).withKey(key).withMapped(params)
	}

	text, finish := "", ""
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
		finish = string(resp.Choices[0].FinishReason)
	}
	u, _ := usage.Reconcile([]byte(resp.Usage.RawJSON()))

	completion := schema.NewChatCompletion(resp.ID, ec.Model, text, finish, resp.Created)
	out := completed(ec, completion, u, upstreamFrom(httpResp))
	out.RawResponse = []byte(resp.RawJSON())
	return out.withKey(key).withMapped(params)
}

func openAIParams(req *schema.ChatRequest, model string) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		switch m.Role {
		case schema.RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case schema.RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = openai.Float(*req.TopP)
	}
	if req.FrequencyPenalty != nil {
		params.FrequencyPenalty = openai.Float(*req.FrequencyPenalty)
	}
	if req.PresencePenalty != nil {
		params.PresencePenalty = openai.Float(*req.PresencePenalty)
	}
	if req.TopLogprobs != nil {
		params.Logprobs = openai.Bool(true)
		params.TopLogprobs = openai.Int(int64(*req.TopLogprobs))
	}
	if req.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*req.MaxTokens))
	}
	if req.Reasoning != nil && req.Reasoning.Effort != "" {
		params.ReasoningEffort = shared.ReasoningEffort(req.Reasoning.Effort)
	}
	return params
}

func openAIStatus(err error) (int, bool) {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}
	return 0, false
}
