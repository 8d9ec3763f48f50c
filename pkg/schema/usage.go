package schema

// Extension meter keys carried in Usage.Ext.
const (
	ExtInputImageTokens  = "input_image_tokens"
	ExtInputAudioTokens  = "input_audio_tokens"
	ExtInputVideoTokens  = "input_video_tokens"
	ExtOutputImageTokens = "output_image_tokens"
	ExtOutputAudioTokens = "output_audio_tokens"
	ExtOutputVideoTokens = "output_video_tokens"
	ExtCachedWriteTokens = "cached_write_tokens"
	ExtEmbeddingTokens   = "embedding_tokens"
)

// Usage is the canonical token-accounting record consumed by billing.
//
// TotalTokens equals InputTokens+OutputTokens unless the upstream supplied an
// explicit total; once set it is never recomputed.
type Usage struct {
	InputTokens       int            `json:"input_tokens"`
	OutputTokens      int            `json:"output_tokens"`
	TotalTokens       int            `json:"total_tokens"`
	CachedInputTokens *int           `json:"cached_input_tokens,omitempty"`
	ReasoningTokens   *int           `json:"reasoning_tokens,omitempty"`
	Ext               map[string]int `json:"ext,omitempty"`
}

// ExtValue returns the extension meter for key, or zero.
func (u *Usage) ExtValue(key string) int {
	if u == nil || u.Ext == nil {
		return 0
	}
	return u.Ext[key]
}

// SetExt records a nonzero extension meter.
func (u *Usage) SetExt(key string, v int) {
	if v == 0 {
		return
	}
	if u.Ext == nil {
		u.Ext = make(map[string]int)
	}
	u.Ext[key] = v
}

// Add sums two usage records. Optional counts stay nil only when both are nil.
func (u *Usage) Add(other *Usage) *Usage {
	if u == nil {
		if other == nil {
			return nil
		}
		out := *other
		out.Ext = copyExt(other.Ext)
		return &out
	}
	out := &Usage{
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		TotalTokens:  u.TotalTokens,
		Ext:          copyExt(u.Ext),
	}
	out.CachedInputTokens = clonePtr(u.CachedInputTokens)
	out.ReasoningTokens = clonePtr(u.ReasoningTokens)
	if other == nil {
		return out
	}
	out.InputTokens += other.InputTokens
	out.OutputTokens += other.OutputTokens
	out.TotalTokens += other.TotalTokens
	out.CachedInputTokens = addPtr(out.CachedInputTokens, other.CachedInputTokens)
	out.ReasoningTokens = addPtr(out.ReasoningTokens, other.ReasoningTokens)
	for k, v := range other.Ext {
		out.SetExt(k, out.ExtValue(k)+v)
	}
	return out
}

func addPtr(a, b *int) *int {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		return Int(*b)
	case b == nil:
		return Int(*a)
	}
	return Int(*a + *b)
}

func copyExt(in map[string]int) map[string]int {
	if in == nil {
		return nil
	}
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
