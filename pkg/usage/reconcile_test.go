package usage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/zen-systems/relaygate/pkg/schema"
)

func TestReconcile_GoogleImageOutput(t *testing.T) {
	raw := []byte(`{
		"promptTokenCount": 66,
		"candidatesTokenCount": 1536,
		"totalTokenCount": 2027,
		"thoughtsTokenCount": 425,
		"candidatesTokensDetails": [{"modality": "IMAGE", "tokenCount": 1120}]
	}`)

	u, ok := Reconcile(raw)
	require.True(t, ok)
	assert.Equal(t, 66, u.InputTokens)
	assert.Equal(t, 1536, u.OutputTokens)
	assert.Equal(t, 2027, u.TotalTokens)
	require.NotNil(t, u.ReasoningTokens)
	assert.Equal(t, 425, *u.ReasoningTokens)
	assert.Nil(t, u.CachedInputTokens)
	assert.Equal(t, map[string]int{schema.ExtOutputImageTokens: 1120}, u.Ext)
}

func TestReconcile_TotalDefaultsToSum(t *testing.T) {
	u, ok := Reconcile([]byte(`{"promptTokenCount": 10, "candidatesTokenCount": 32}`))
	require.True(t, ok)
	assert.Equal(t, 42, u.TotalTokens)
	assert.Equal(t, u.InputTokens+u.OutputTokens, u.TotalTokens)
}

func TestReconcile_ExplicitTotalWins(t *testing.T) {
	// Gemini totals include thinking tokens that candidatesTokenCount omits.
	u, ok := Reconcile([]byte(`{"promptTokenCount": 10, "candidatesTokenCount": 20, "thoughtsTokenCount": 5, "totalTokenCount": 35}`))
	require.True(t, ok)
	assert.Equal(t, 35, u.TotalTokens)
	assert.Equal(t, 30, u.InputTokens+u.OutputTokens)
}

func TestReconcile_DetailsOnly(t *testing.T) {
	raw := []byte(`{
		"promptTokensDetails": [
			{"modality": "TEXT", "tokenCount": 12},
			{"modality": "IMAGE", "tokenCount": 258},
			{"modality": "HOLOGRAM", "tokenCount": 999},
			{"tokenCount": 3}
		],
		"candidatesTokensDetails": [{"modality": "AUDIO", "tokenCount": 40}]
	}`)
	u, ok := Reconcile(raw)
	require.True(t, ok)
	assert.Equal(t, 273, u.InputTokens)
	assert.Equal(t, 40, u.OutputTokens)
	assert.Equal(t, 313, u.TotalTokens)
	assert.Equal(t, 258, u.ExtValue(schema.ExtInputImageTokens))
	assert.Equal(t, 40, u.ExtValue(schema.ExtOutputAudioTokens))
}

func TestReconcile_AbsentPayload(t *testing.T) {
	for _, raw := range []string{"", "null", "[]", `"text"`, "{}", `{"unrelated": true}`, "{not json"} {
		u, ok := Reconcile([]byte(raw))
		assert.False(t, ok, raw)
		assert.Nil(t, u, raw)
	}
}

func TestReconcile_ZeroIsNotAbsent(t *testing.T) {
	u, ok := Reconcile([]byte(`{"promptTokenCount": 0}`))
	require.True(t, ok)
	assert.Equal(t, 0, u.TotalTokens)
}

func TestReconcile_OpenAIChat(t *testing.T) {
	raw := []byte(`{
		"prompt_tokens": 100,
		"completion_tokens": 50,
		"total_tokens": 150,
		"prompt_tokens_details": {"cached_tokens": 60, "audio_tokens": 0},
		"completion_tokens_details": {"reasoning_tokens": 20, "audio_tokens": 7}
	}`)
	u, ok := Reconcile(raw)
	require.True(t, ok)
	assert.Equal(t, 100, u.InputTokens)
	assert.Equal(t, 50, u.OutputTokens)
	assert.Equal(t, 150, u.TotalTokens)
	assert.Equal(t, 60, *u.CachedInputTokens)
	assert.Equal(t, 20, *u.ReasoningTokens)
	assert.Equal(t, map[string]int{schema.ExtOutputAudioTokens: 7}, u.Ext)
}

func TestReconcile_OpenAIResponses(t *testing.T) {
	raw := []byte(`{
		"input_tokens": 80,
		"output_tokens": 30,
		"total_tokens": 110,
		"input_tokens_details": {"cached_tokens": 64},
		"output_tokens_details": {"reasoning_tokens": 12}
	}`)
	u, ok := Reconcile(raw)
	require.True(t, ok)
	assert.Equal(t, 80, u.InputTokens)
	assert.Equal(t, 110, u.TotalTokens)
	assert.Equal(t, 64, *u.CachedInputTokens)
	assert.Equal(t, 12, *u.ReasoningTokens)
}

func TestReconcile_AnthropicCache(t *testing.T) {
	raw := []byte(`{
		"input_tokens": 10,
		"output_tokens": 5,
		"cache_read_input_tokens": 200,
		"cache_creation_input_tokens": 30
	}`)
	u, ok := Reconcile(raw)
	require.True(t, ok)
	assert.Equal(t, 240, u.InputTokens)
	assert.Equal(t, 5, u.OutputTokens)
	assert.Equal(t, 245, u.TotalTokens)
	assert.Equal(t, 200, *u.CachedInputTokens)
	assert.Equal(t, 30, u.ExtValue(schema.ExtCachedWriteTokens))
}

func TestFromGoogle(t *testing.T) {
	t.Run("coarse counts fill empty meters only", func(t *testing.T) {
		ms := FromGoogle(gjson.Parse(`{
			"promptTokenCount": 500,
			"promptTokensDetails": [{"modality": "TEXT", "tokenCount": 300}, {"modality": "VIDEO", "tokenCount": 200}],
			"candidatesTokenCount": 9
		}`))
		assert.Equal(t, 300, ms[InputText])
		assert.Equal(t, 200, ms[InputVideo])
		assert.Equal(t, 9, ms[OutputText])
	})

	t.Run("tool use count adds to text", func(t *testing.T) {
		ms := FromGoogle(gjson.Parse(`{"promptTokenCount": 10, "toolUsePromptTokenCount": 4}`))
		assert.Equal(t, 14, ms[InputText])
	})

	t.Run("tool use details take precedence over the count", func(t *testing.T) {
		ms := FromGoogle(gjson.Parse(`{
			"promptTokensDetails": [{"modality": "TEXT", "tokenCount": 10}],
			"toolUsePromptTokensDetails": [{"modality": "TEXT", "tokenCount": 4}],
			"toolUsePromptTokenCount": 4
		}`))
		assert.Equal(t, 14, ms[InputText])
	})

	t.Run("cache details feed the cached meter", func(t *testing.T) {
		ms := FromGoogle(gjson.Parse(`{
			"promptTokenCount": 100,
			"cacheTokensDetails": [{"modality": "TEXT", "tokenCount": 70}, {"modality": "IMAGE", "tokenCount": 10}]
		}`))
		assert.Equal(t, 100, ms[InputText])
		assert.Equal(t, 80, ms[CachedReadText])
		assert.False(t, ms.Has(InputImage))
	})

	t.Run("thought token spelling variant", func(t *testing.T) {
		ms := FromGoogle(gjson.Parse(`{"thoughtTokenCount": 8}`))
		assert.Equal(t, 8, ms[ReasoningTokens])
	})

	t.Run("non-object", func(t *testing.T) {
		assert.Empty(t, FromGoogle(gjson.Parse(`[1,2]`)))
	})
}

func TestMerge(t *testing.T) {
	a := &schema.Usage{InputTokens: 3, TotalTokens: 3, Ext: map[string]int{schema.ExtEmbeddingTokens: 3}}
	b := &schema.Usage{InputTokens: 4, TotalTokens: 4, Ext: map[string]int{schema.ExtEmbeddingTokens: 4}}

	got := Merge(a, nil, b)
	assert.Equal(t, 7, got.InputTokens)
	assert.Equal(t, 7, got.TotalTokens)
	assert.Equal(t, 7, got.ExtValue(schema.ExtEmbeddingTokens))
	assert.Equal(t, 3, a.InputTokens)

	assert.Nil(t, Merge(nil, nil))
}
