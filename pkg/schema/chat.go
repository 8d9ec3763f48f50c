// Package schema defines the provider-agnostic request, response and usage
// shapes that sit between protocol decoding and provider execution.
package schema

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// Reasoning carries the hidden-reasoning controls of a chat request.
type Reasoning struct {
	Effort    string `json:"effort,omitempty"`
	Summary   string `json:"summary,omitempty"`
	Enabled   *bool  `json:"enabled,omitempty"`
	MaxTokens *int   `json:"max_tokens,omitempty"`
}

// Equal reports whether two reasoning blocks are structurally identical.
func (r *Reasoning) Equal(other *Reasoning) bool {
	if r == nil || other == nil {
		return r == nil && other == nil
	}
	if r.Effort != other.Effort || r.Summary != other.Summary {
		return false
	}
	if !equalPtr(r.Enabled, other.Enabled) {
		return false
	}
	return equalPtr(r.MaxTokens, other.MaxTokens)
}

// Clone returns an independent copy of the reasoning block.
func (r *Reasoning) Clone() *Reasoning {
	if r == nil {
		return nil
	}
	out := *r
	out.Enabled = clonePtr(r.Enabled)
	out.MaxTokens = clonePtr(r.MaxTokens)
	return &out
}

// ChatRequest is the canonical chat request handed to the normalization
// engine and then to a provider executor.
type ChatRequest struct {
	Model            string     `json:"model"`
	Stream           bool       `json:"stream,omitempty"`
	Messages         []Message  `json:"messages"`
	Temperature      *float64   `json:"temperature,omitempty"`
	TopP             *float64   `json:"top_p,omitempty"`
	FrequencyPenalty *float64   `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64   `json:"presence_penalty,omitempty"`
	TopLogprobs      *int       `json:"top_logprobs,omitempty"`
	MaxTokens        *int       `json:"max_tokens,omitempty"`
	Reasoning        *Reasoning `json:"reasoning,omitempty"`
}

// Clone returns a deep copy; the result shares no memory with r.
func (r *ChatRequest) Clone() *ChatRequest {
	if r == nil {
		return nil
	}
	out := *r
	if r.Messages != nil {
		out.Messages = make([]Message, len(r.Messages))
		copy(out.Messages, r.Messages)
	}
	out.Temperature = clonePtr(r.Temperature)
	out.TopP = clonePtr(r.TopP)
	out.FrequencyPenalty = clonePtr(r.FrequencyPenalty)
	out.PresencePenalty = clonePtr(r.PresencePenalty)
	out.TopLogprobs = clonePtr(r.TopLogprobs)
	out.MaxTokens = clonePtr(r.MaxTokens)
	out.Reasoning = r.Reasoning.Clone()
	return &out
}

// SystemPrompt joins all system messages, in order, with blank lines.
func (r *ChatRequest) SystemPrompt() string {
	var out string
	for _, m := range r.Messages {
		if m.Role != RoleSystem {
			continue
		}
		if out != "" {
			out += "\n\n"
		}
		out += m.Content
	}
	return out
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
