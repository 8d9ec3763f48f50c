package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"
	"google.golang.org/genai"

	"github.com/zen-systems/relaygate/pkg/schema"
	"github.com/zen-systems/relaygate/pkg/usage"
)

// GoogleAIStudioBaseURL is the public Gemini API host.
const GoogleAIStudioBaseURL = "https://generativelanguage.googleapis.com"

// GoogleEmbeddings calls the Gemini embedContent and batchEmbedContents
// endpoints over plain HTTP.
type GoogleEmbeddings struct {
	baseURL    string
	httpClient *http.Client
}

// NewGoogleEmbeddings creates the executor. An empty baseURL selects the
// public endpoint.
func NewGoogleEmbeddings(baseURL string, client *http.Client) *GoogleEmbeddings {
	if baseURL == "" {
		baseURL = GoogleAIStudioBaseURL
	}
	if client == nil {
		client = &http.Client{}
	}
	return &GoogleEmbeddings{baseURL: baseURL, httpClient: client}
}

// Name returns the provider id.
func (g *GoogleEmbeddings) Name() string {
	return "google"
}

// Endpoints lists the supported capabilities.
func (g *GoogleEmbeddings) Endpoints() []Endpoint {
	return []Endpoint{EndpointEmbeddings}
}

type embedContentRequest struct {
	Model                string         `json:"model,omitempty"`
	Content              *genai.Content `json:"content"`
	TaskType             string         `json:"taskType,omitempty"`
	Title                string         `json:"title,omitempty"`
	OutputDimensionality *int           `json:"outputDimensionality,omitempty"`
}

type batchEmbedContentsRequest struct {
	Requests []embedContentRequest `json:"requests"`
}

type countTokensRequest struct {
	Contents []*genai.Content `json:"contents"`
}

// Execute implements Executor.
func (g *GoogleEmbeddings) Execute(ctx context.Context, ec *ExecContext) *Result {
	key, res := resolveKey(ec, g.Name())
	if res != nil {
		return res
	}

	req, err := schema.SanitizeEmbeddings(ec.Body)
	if err != nil {
		return failed(http.StatusBadRequest, FailureRequest, err.Error()).withKey(key)
	}
	requested := ec.Model
	if requested == "" {
		requested = req.Model
	}
	model := ec.UpstreamModel()
	if model == "" {
		model = req.Model
	}
	req.Model = model

	payload, endpoint := buildEmbedPayload(req, model)
	log := ec.logger().With("provider", g.Name(), "model", model, "request_id", ec.RequestID)

	raw, err := postJSON(ctx, g.httpClient, g.url(model, endpoint, key.Key), nil, payload)
	if err != nil {
		return failureFromError(err, nil).withKey(key).withMapped(payload)
	}
	if !raw.ok() {
		return raw.failure().withKey(key).withMapped(payload)
	}

	out := &Result{
		Kind:        KindCompleted,
		Upstream:    raw.upstream(),
		RawResponse: raw.rawJSON(),
	}
	out.withKey(key).withMapped(payload)

	u, ok := extractEmbeddingUsage(raw.JSON)
	if !ok {
		u, out.UsageProbe = g.countTokens(ctx, model, key.Key, req.Input.Values, log)
	}

	body, err := mapEmbeddings(raw, requested, u)
	if err != nil {
		return failureFromError(err, nil).withKey(key).withMapped(payload)
	}
	out.Body = body
	return out.price(u, ec.Pricing)
}

func (g *GoogleEmbeddings) url(model, endpoint, key string) string {
	return fmt.Sprintf("%s/v1beta/models/%s%s?key=%s", g.baseURL, url.PathEscape(model), endpoint, url.QueryEscape(key))
}

func buildEmbedPayload(req *schema.EmbeddingsRequest, model string) (any, string) {
	var opts schema.GoogleEmbeddingOptions
	if req.Options != nil && req.Options.Google != nil {
		opts = *req.Options.Google
	}
	dims := opts.OutputDimensionality
	if dims == nil {
		dims = req.Dimensions
	}

	entry := func(text string) embedContentRequest {
		return embedContentRequest{
			Content:              genai.NewContentFromText(text, genai.RoleUser),
			TaskType:             opts.TaskType,
			Title:                opts.Title,
			OutputDimensionality: dims,
		}
	}

	if !req.Input.Batch {
		return entry(req.Input.Values[0]), ":embedContent"
	}
	batch := batchEmbedContentsRequest{Requests: make([]embedContentRequest, 0, len(req.Input.Values))}
	for _, text := range req.Input.Values {
		e := entry(text)
		e.Model = "models/" + model
		batch.Requests = append(batch.Requests, e)
	}
	return batch, ":batchEmbedContents"
}

// countTokens is the side-channel probe used when the embeddings response
// carried no usage. It shares ctx with the primary call.
func (g *GoogleEmbeddings) countTokens(ctx context.Context, model, key string, inputs []string, log *slog.Logger) (*schema.Usage, ProbeOutcome) {
	contents := make([]*genai.Content, 0, len(inputs))
	for _, text := range inputs {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	raw, err := postJSON(ctx, g.httpClient, g.url(model, ":countTokens", key), nil, countTokensRequest{Contents: contents})
	if err != nil {
		log.Debug("token count probe failed", "error", err)
		return nil, ProbeError
	}
	if !raw.ok() {
		log.Debug("token count probe rejected", "status", raw.Status)
		return nil, ProbeError
	}

	total, _ := readInt(raw.JSON, "totalTokens", "totalTokenCount", "tokenCount", "tokens", "usageMetadata.totalTokenCount")
	if total <= 0 {
		log.Debug("token count probe returned no total")
		return nil, ProbeMiss
	}
	log.Debug("token count probe", "total_tokens", total)
	return embeddingUsage(nil, total), ProbeHit
}

var embeddingCountFields = []string{
	"totalTokenCount",
	"totalTokens",
	"promptTokenCount",
	"promptTokens",
	"inputTokenCount",
	"inputTokens",
	"tokenCount",
	"tokens",
	"usage.totalTokenCount",
	"usage.totalTokens",
	"usage.promptTokenCount",
	"usage.inputTokenCount",
}

// extractEmbeddingUsage gathers usage from the top-level usageMetadata and
// from per-entry usage objects of batch responses.
func extractEmbeddingUsage(body gjson.Result) (*schema.Usage, bool) {
	if !body.IsObject() {
		return nil, false
	}

	var entries []gjson.Result
	if meta := body.Get("usageMetadata"); meta.Exists() {
		entries = append(entries, meta)
	}
	for _, list := range []string{"embeddings", "requests"} {
		for _, item := range body.Get(list).Array() {
			for _, field := range []string{"usageMetadata", "usage"} {
				if v := item.Get(field); v.Exists() {
					entries = append(entries, v)
				}
			}
		}
	}

	var merged *schema.Usage
	total := 0
	for _, entry := range entries {
		if u, ok := usage.FromResult(entry); ok {
			merged = merged.Add(u)
		}
		n, _ := readInt(entry, embeddingCountFields...)
		total += n
	}

	if total == 0 {
		return merged, merged != nil
	}
	return embeddingUsage(merged, total), true
}

// embeddingUsage assigns one total to every embeddings meter.
func embeddingUsage(base *schema.Usage, total int) *schema.Usage {
	u := base.Add(nil)
	if u == nil {
		u = &schema.Usage{}
	}
	u.InputTokens = total
	u.OutputTokens = 0
	u.TotalTokens = total
	u.SetExt(schema.ExtEmbeddingTokens, total)
	return u
}

// mapEmbeddings converts the Gemini response into the canonical list. A body
// that is already list-shaped is passed through.
func mapEmbeddings(raw *rawResponse, model string, u *schema.Usage) (json.RawMessage, error) {
	var items []gjson.Result
	switch {
	case raw.JSON.Get("embeddings").IsArray():
		items = raw.JSON.Get("embeddings").Array()
	case raw.JSON.Get("embedding").Exists():
		items = []gjson.Result{raw.JSON.Get("embedding")}
	}

	if len(items) == 0 && raw.JSON.Get("data").IsArray() {
		return json.RawMessage(raw.Body), nil
	}

	resp := schema.EmbeddingsResponse{
		Object: "list",
		Data:   make([]schema.Embedding, 0, len(items)),
		Model:  model,
	}
	for i, item := range items {
		values := item.Get("values")
		if !values.Exists() {
			values = item.Get("embedding.values")
		}
		vec := make([]float64, 0, len(values.Array()))
		for _, v := range values.Array() {
			vec = append(vec, v.Float())
		}
		resp.Data = append(resp.Data, schema.Embedding{Object: "embedding", Embedding: vec, Index: i})
	}
	if u != nil {
		embedding := u.ExtValue(schema.ExtEmbeddingTokens)
		if embedding == 0 {
			embedding = u.InputTokens
		}
		resp.Usage = &schema.EmbeddingsUsage{
			TotalTokens:     u.TotalTokens,
			EmbeddingTokens: embedding,
			InputTextTokens: u.InputTokens,
		}
	}

	out, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode embeddings response: %w", err)
	}
	return out, nil
}

// readInt returns the first numeric value under paths.
func readInt(res gjson.Result, paths ...string) (int, bool) {
	for _, p := range paths {
		if v := res.Get(p); v.Type == gjson.Number {
			return int(v.Int()), true
		}
	}
	return 0, false
}
