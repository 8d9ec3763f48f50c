package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// EmbeddingInput is either a single string or a batch of strings.
type EmbeddingInput struct {
	Values []string
	Batch  bool
}

// SingleInput returns an input holding one string.
func SingleInput(s string) EmbeddingInput {
	return EmbeddingInput{Values: []string{s}}
}

// BatchInput returns an input holding the given strings as a batch.
func BatchInput(values ...string) EmbeddingInput {
	return EmbeddingInput{Values: values, Batch: true}
}

// UnmarshalJSON accepts a string or an array of scalars.
func (in *EmbeddingInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*in = EmbeddingInput{}
		return nil
	}
	if data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		values := make([]string, 0, len(raw))
		for _, item := range raw {
			values = append(values, scalarString(item))
		}
		*in = EmbeddingInput{Values: values, Batch: true}
		return nil
	}
	*in = EmbeddingInput{Values: []string{scalarString(data)}}
	return nil
}

// MarshalJSON writes a string for single inputs and an array for batches.
func (in EmbeddingInput) MarshalJSON() ([]byte, error) {
	if !in.Batch && len(in.Values) == 1 {
		return json.Marshal(in.Values[0])
	}
	if in.Values == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(in.Values)
}

func scalarString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// GoogleEmbeddingOptions are Gemini-specific request-shaping hints.
type GoogleEmbeddingOptions struct {
	OutputDimensionality *int   `json:"output_dimensionality,omitempty"`
	TaskType             string `json:"task_type,omitempty"`
	Title                string `json:"title,omitempty"`
}

// EmbeddingOptions groups provider-specific embedding hints.
type EmbeddingOptions struct {
	Google *GoogleEmbeddingOptions `json:"google,omitempty"`
}

// EmbeddingsRequest is the canonical embeddings request.
type EmbeddingsRequest struct {
	Model          string            `json:"model"`
	Input          EmbeddingInput    `json:"input"`
	Dimensions     *int              `json:"dimensions,omitempty"`
	EncodingFormat string            `json:"encoding_format,omitempty"`
	User           string            `json:"user,omitempty"`
	Options        *EmbeddingOptions `json:"embedding_options,omitempty"`
}

// ErrEmptyInput is returned when an embeddings request carries no input.
var ErrEmptyInput = errors.New("embeddings input is empty")

// SanitizeEmbeddings decodes raw into the embeddings request shape. Unknown
// fields are dropped.
func SanitizeEmbeddings(raw []byte) (*EmbeddingsRequest, error) {
	var req EmbeddingsRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("invalid embeddings request: %w", err)
	}
	if len(req.Input.Values) == 0 {
		return nil, ErrEmptyInput
	}
	if req.Dimensions != nil && *req.Dimensions <= 0 {
		req.Dimensions = nil
	}
	return &req, nil
}

// Embedding is one vector in a canonical embeddings response.
type Embedding struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

// EmbeddingsUsage reports token counts for an embeddings call. Embeddings
// have no output phase, so all three counts carry the same total.
type EmbeddingsUsage struct {
	TotalTokens     int `json:"total_tokens"`
	EmbeddingTokens int `json:"embedding_tokens"`
	InputTextTokens int `json:"input_text_tokens"`
}

// EmbeddingsResponse is the canonical list-shaped embeddings response.
type EmbeddingsResponse struct {
	Object string           `json:"object"`
	Data   []Embedding      `json:"data"`
	Model  string           `json:"model"`
	Usage  *EmbeddingsUsage `json:"usage,omitempty"`
}
