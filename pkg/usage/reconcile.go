// Package usage reconciles the token accounting each upstream reports into the
// canonical schema.Usage record billing consumes.
//
// Upstreams disagree on field names, nesting and on whether totals include
// cached or tool-use tokens. Reconcile accepts every known variant, so callers
// hand it whatever object the provider returned and get one shape back.
package usage

import (
	"github.com/tidwall/gjson"

	"github.com/zen-systems/relaygate/pkg/schema"
)

var (
	inputFields  = []string{"promptTokenCount", "prompt_tokens", "input_tokens", "inputTokens", "promptTokens"}
	outputFields = []string{"candidatesTokenCount", "completion_tokens", "output_tokens", "outputTokens", "completionTokens"}
	totalFields  = []string{"totalTokenCount", "total_tokens", "totalTokens"}
	cachedFields = []string{
		"cachedContentTokenCount",
		"prompt_tokens_details.cached_tokens",
		"input_tokens_details.cached_tokens",
		"cache_read_input_tokens",
		"cachedInputTokens",
	}
	reasoningFields = []string{
		"thoughtsTokenCount",
		"thoughtTokenCount",
		"completion_tokens_details.reasoning_tokens",
		"output_tokens_details.reasoning_tokens",
		"reasoning_tokens",
		"reasoningTokens",
	}
)

var extMeters = map[Meter]string{
	InputImage:      schema.ExtInputImageTokens,
	InputAudio:      schema.ExtInputAudioTokens,
	InputVideo:      schema.ExtInputVideoTokens,
	OutputImage:     schema.ExtOutputImageTokens,
	OutputAudio:     schema.ExtOutputAudioTokens,
	OutputVideo:     schema.ExtOutputVideoTokens,
	CachedWriteText: schema.ExtCachedWriteTokens,
}

// Reconcile maps a raw usage object onto the canonical record. It returns
// false when the payload carries no usage signal at all, which callers must
// treat as "unknown" rather than zero.
func Reconcile(raw []byte) (*schema.Usage, bool) {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return nil, false
	}
	return FromResult(gjson.ParseBytes(raw))
}

// FromResult is Reconcile over an already parsed payload.
func FromResult(res gjson.Result) (*schema.Usage, bool) {
	if !res.IsObject() {
		return nil, false
	}

	ms := FromGoogle(res)
	addOpenAIDetails(ms, res)
	if v, ok := intAt(res, "cache_creation_input_tokens"); ok {
		ms[CachedWriteText] = v
	}
	if len(ms) == 0 && !anyField(res, inputFields, outputFields, totalFields, cachedFields, reasoningFields) {
		return nil, false
	}

	u := &schema.Usage{}

	if v, ok := intAt(res, inputFields...); ok {
		u.InputTokens = v
		// Anthropic reports cache hits and writes beside input_tokens rather
		// than inside it.
		if _, isAnthropic := intAt(res, "input_tokens"); isAnthropic {
			if read, ok := intAt(res, "cache_read_input_tokens"); ok {
				u.InputTokens += read
			}
			if write, ok := intAt(res, "cache_creation_input_tokens"); ok {
				u.InputTokens += write
			}
		}
	} else if sum, ok := ms.sum(inputMeters); ok {
		u.InputTokens = sum
	}

	if v, ok := intAt(res, outputFields...); ok {
		u.OutputTokens = v
	} else if sum, ok := ms.sum(outputMeters); ok {
		u.OutputTokens = sum
	}

	if v, ok := intAt(res, totalFields...); ok {
		u.TotalTokens = v
	} else {
		u.TotalTokens = u.InputTokens + u.OutputTokens
	}

	if v, ok := intAt(res, cachedFields...); ok {
		u.CachedInputTokens = schema.Int(v)
	} else if v, ok := ms[CachedReadText]; ok {
		u.CachedInputTokens = schema.Int(v)
	}
	if v, ok := intAt(res, reasoningFields...); ok {
		u.ReasoningTokens = schema.Int(v)
	}

	for meter, key := range extMeters {
		u.SetExt(key, ms[meter])
	}
	return u, true
}

// addOpenAIDetails folds the audio breakdowns of the chat-completions shape
// into the modality meters.
func addOpenAIDetails(ms Meters, res gjson.Result) {
	if v, ok := intAt(res, "prompt_tokens_details.audio_tokens", "input_tokens_details.audio_tokens"); ok {
		ms[InputAudio] += v
	}
	if v, ok := intAt(res, "completion_tokens_details.audio_tokens", "output_tokens_details.audio_tokens"); ok {
		ms[OutputAudio] += v
	}
}

func anyField(res gjson.Result, groups ...[]string) bool {
	for _, g := range groups {
		if _, ok := intAt(res, g...); ok {
			return true
		}
	}
	return false
}

// Merge sums usage records, skipping nils. It returns nil when every input is
// nil.
func Merge(records ...*schema.Usage) *schema.Usage {
	var out *schema.Usage
	for _, r := range records {
		if r == nil {
			continue
		}
		out = out.Add(r)
	}
	return out
}
