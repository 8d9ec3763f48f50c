package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"
	"sync"

	"github.com/zen-systems/relaygate/pkg/schema"
)

const mockDimensions = 8

// Mock returns deterministic responses for local runs and tests. It needs no
// credentials.
type Mock struct {
	name            string
	responses       map[string]string
	defaultResponse string

	// Usage overrides the word-count usage when set.
	Usage *schema.Usage
	// FailTimes makes the first N calls fail with FailStatus.
	FailTimes  int
	FailStatus int

	mu    sync.Mutex
	calls int
}

// NewMock creates a mock executor registered as name, "mock" when empty.
func NewMock(name string) *Mock {
	if name == "" {
		name = "mock"
	}
	return &Mock{
		name:            name,
		responses:       make(map[string]string),
		defaultResponse: "mock response:",
	}
}

// NewMockWithResponses creates a mock answering known prompts verbatim.
func NewMockWithResponses(name string, responses map[string]string, defaultResponse string) *Mock {
	m := NewMock(name)
	for k, v := range responses {
		m.responses[k] = v
	}
	if defaultResponse != "" {
		m.defaultResponse = defaultResponse
	}
	return m
}

// Name returns the provider id.
func (m *Mock) Name() string {
	return m.name
}

// Endpoints lists the supported capabilities.
func (m *Mock) Endpoints() []Endpoint {
	return []Endpoint{EndpointChat, EndpointEmbeddings}
}

// Calls returns how many times Execute ran.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Execute implements Executor.
func (m *Mock) Execute(ctx context.Context, ec *ExecContext) *Result {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return failureFromError(err, nil)
	}
	if call <= m.FailTimes {
		status := m.FailStatus
		if status == 0 {
			status = http.StatusServiceUnavailable
		}
		res := failed(status, FailureUpstream, fmt.Sprintf("mock failure %d", call))
		res.Upstream = &Upstream{Status: status}
		return res
	}

	switch ec.Endpoint {
	case EndpointEmbeddings:
		return m.embed(ec)
	default:
		return m.chat(ec)
	}
}

func (m *Mock) chat(ec *ExecContext) *Result {
	req, res := chatInput(ec)
	if res != nil {
		return res
	}
	prompt := req.Messages[len(req.Messages)-1].Content
	text, ok := m.responses[prompt]
	if !ok {
		text = fmt.Sprintf("%s\n%s", m.defaultResponse, prompt)
	}

	u := m.Usage
	if u == nil {
		in := 0
		for _, msg := range req.Messages {
			in += len(strings.Fields(msg.Content))
		}
		out := len(strings.Fields(text))
		u = &schema.Usage{InputTokens: in, OutputTokens: out, TotalTokens: in + out}
	}

	completion := schema.NewChatCompletion("mock-"+ec.RequestID, ec.Model, text, schema.FinishStop, 0)
	out := completed(ec, completion, u, &Upstream{Status: http.StatusOK})
	out.KeySource = KeySourceGateway
	return out.withMapped(req)
}

func (m *Mock) embed(ec *ExecContext) *Result {
	req, err := schema.SanitizeEmbeddings(ec.Body)
	if err != nil {
		return failed(http.StatusBadRequest, FailureRequest, err.Error())
	}

	resp := schema.EmbeddingsResponse{Object: "list", Model: ec.Model}
	total := 0
	for i, text := range req.Input.Values {
		resp.Data = append(resp.Data, schema.Embedding{Object: "embedding", Embedding: mockVector(text), Index: i})
		total += len(strings.Fields(text))
	}
	u := m.Usage
	if u == nil {
		u = embeddingUsage(nil, total)
	}
	resp.Usage = &schema.EmbeddingsUsage{TotalTokens: u.TotalTokens, EmbeddingTokens: u.TotalTokens, InputTextTokens: u.InputTokens}

	out := &Result{Kind: KindCompleted, Upstream: &Upstream{Status: http.StatusOK}, KeySource: KeySourceGateway}
	if body, err := json.Marshal(resp); err == nil {
		out.Body = body
	}
	return out.withMapped(req).price(u, ec.Pricing)
}

// mockVector derives a stable unit-range vector from text.
func mockVector(text string) []float64 {
	vec := make([]float64, mockDimensions)
	for i := range vec {
		h := fnv.New32a()
		fmt.Fprintf(h, "%d:%s", i, text)
		vec[i] = float64(h.Sum32()%2000)/1000 - 1
	}
	return vec
}
