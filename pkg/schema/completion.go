package schema

// Finish reasons reported on a ChatChoice.
const (
	FinishStop   = "stop"
	FinishLength = "length"
	FinishOther  = "other"
)

// ChatChoice is one candidate answer.
type ChatChoice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// ChatCompletion is the canonical non-streaming chat response.
type ChatCompletion struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   *Usage       `json:"usage,omitempty"`
}

// Text returns the content of the first choice, or "".
func (c *ChatCompletion) Text() string {
	if c == nil || len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Message.Content
}

// NewChatCompletion wraps a single assistant answer.
func NewChatCompletion(id, model, text, finish string, created int64) *ChatCompletion {
	return &ChatCompletion{
		ID:      id,
		Object:  "chat.completion",
		Created: created,
		Model:   model,
		Choices: []ChatChoice{{
			Message:      Message{Role: RoleAssistant, Content: text},
			FinishReason: finish,
		}},
	}
}
