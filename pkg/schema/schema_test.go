package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatRequest_CloneIsIndependent(t *testing.T) {
	orig := &ChatRequest{
		Model:       "gpt-5",
		Messages:    []Message{{Role: RoleUser, Content: "hi"}},
		Temperature: Float(0.7),
		MaxTokens:   Int(100),
		Reasoning:   &Reasoning{Effort: "low", MaxTokens: Int(512)},
	}
	clone := orig.Clone()

	*clone.Temperature = 1.5
	*clone.MaxTokens = 1
	clone.Messages[0].Content = "changed"
	clone.Reasoning.Effort = "high"
	*clone.Reasoning.MaxTokens = 1

	assert.Equal(t, 0.7, *orig.Temperature)
	assert.Equal(t, 100, *orig.MaxTokens)
	assert.Equal(t, "hi", orig.Messages[0].Content)
	assert.Equal(t, "low", orig.Reasoning.Effort)
	assert.Equal(t, 512, *orig.Reasoning.MaxTokens)
}

func TestReasoning_Equal(t *testing.T) {
	var nilReasoning *Reasoning
	assert.True(t, nilReasoning.Equal(nil))
	assert.False(t, nilReasoning.Equal(&Reasoning{}))
	assert.True(t, (&Reasoning{Effort: "low", MaxTokens: Int(3)}).Equal(&Reasoning{Effort: "low", MaxTokens: Int(3)}))
	assert.False(t, (&Reasoning{Effort: "low", MaxTokens: Int(3)}).Equal(&Reasoning{Effort: "low", MaxTokens: Int(4)}))
	assert.False(t, (&Reasoning{Summary: "auto"}).Equal(&Reasoning{}))
}

func TestSystemPrompt(t *testing.T) {
	req := &ChatRequest{Messages: []Message{
		{Role: RoleSystem, Content: "a"},
		{Role: RoleUser, Content: "u"},
		{Role: RoleSystem, Content: "b"},
	}}
	assert.Equal(t, "a\n\nb", req.SystemPrompt())
}

func TestUsage_Add(t *testing.T) {
	a := &Usage{InputTokens: 1, OutputTokens: 2, TotalTokens: 3, CachedInputTokens: Int(1)}
	b := &Usage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30, Ext: map[string]int{ExtOutputImageTokens: 5}}

	sum := a.Add(b)
	assert.Equal(t, 11, sum.InputTokens)
	assert.Equal(t, 22, sum.OutputTokens)
	assert.Equal(t, 33, sum.TotalTokens)
	require.NotNil(t, sum.CachedInputTokens)
	assert.Equal(t, 1, *sum.CachedInputTokens)
	assert.Nil(t, sum.ReasoningTokens)
	assert.Equal(t, 5, sum.ExtValue(ExtOutputImageTokens))

	var none *Usage
	assert.Nil(t, none.Add(nil))
	assert.Equal(t, 30, none.Add(b).TotalTokens)
}

func TestEmbeddingInput_JSON(t *testing.T) {
	var single EmbeddingsRequest
	require.NoError(t, json.Unmarshal([]byte(`{"model":"m","input":"hello"}`), &single))
	assert.False(t, single.Input.Batch)
	assert.Equal(t, []string{"hello"}, single.Input.Values)

	var batch EmbeddingsRequest
	require.NoError(t, json.Unmarshal([]byte(`{"model":"m","input":["a",2,"c"]}`), &batch))
	assert.True(t, batch.Input.Batch)
	assert.Equal(t, []string{"a", "2", "c"}, batch.Input.Values)

	out, err := json.Marshal(single.Input)
	require.NoError(t, err)
	assert.JSONEq(t, `"hello"`, string(out))

	out, err = json.Marshal(BatchInput("x"))
	require.NoError(t, err)
	assert.JSONEq(t, `["x"]`, string(out))
}

func TestSanitizeEmbeddings(t *testing.T) {
	req, err := SanitizeEmbeddings([]byte(`{
		"model": "text-embedding-004",
		"input": ["a", "b"],
		"dimensions": 0,
		"unknown": true,
		"embedding_options": {"google": {"task_type": "RETRIEVAL_DOCUMENT", "title": "doc"}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-004", req.Model)
	assert.Nil(t, req.Dimensions)
	require.NotNil(t, req.Options)
	assert.Equal(t, "RETRIEVAL_DOCUMENT", req.Options.Google.TaskType)

	_, err = SanitizeEmbeddings([]byte(`{"model":"m","input":[]}`))
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = SanitizeEmbeddings([]byte(`not json`))
	assert.Error(t, err)
}
