package reasoning

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	e, ok := Parse(" HIGH ")
	assert.True(t, ok)
	assert.Equal(t, High, e)

	_, ok = Parse("extreme")
	assert.False(t, ok)
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name      string
		requested Effort
		allowed   []Effort
		want      Effort
	}{
		{"allowed passes through", Medium, []Effort{Low, Medium, High}, Medium},
		{"none to minimal", None, []Effort{Minimal, Low, Medium, High}, Minimal},
		{"xhigh to high", XHigh, []Effort{Minimal, Low, Medium, High}, High},
		{"none to low for anthropic", None, []Effort{Low, Medium, High, XHigh}, Low},
		{"tie prefers lower", Medium, []Effort{High, Low}, Low},
		{"tie prefers lower regardless of order", Medium, []Effort{Low, High}, Low},
		{"empty allow-list", High, nil, High},
		{"unknown entries ignored", Low, []Effort{"bogus", High}, High},
		{"unknown request unchanged", Effort("turbo"), []Effort{Low}, Effort("turbo")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clamp(tt.requested, tt.allowed))
		})
	}
}

func TestClamp_MinimisesRankDistance(t *testing.T) {
	subsets := [][]Effort{
		{Minimal, High},
		{None, XHigh},
		{Low},
		{Medium, XHigh},
		Scale,
	}
	for _, allowed := range subsets {
		for _, requested := range Scale {
			got := Clamp(requested, allowed)
			assert.Contains(t, allowed, got)
			gotDiff := abs(got.Rank() - requested.Rank())
			for _, candidate := range allowed {
				assert.LessOrEqual(t, gotDiff, abs(candidate.Rank()-requested.Rank()))
			}
		}
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, FamilyGPT51CodexMax, Classify("gpt-5.1-codex-max"))
	assert.Equal(t, FamilyGPT51, Classify("gpt-5.1-mini"))
	assert.Equal(t, FamilyGPT52, Classify("GPT-5.3-chat"))
	assert.Equal(t, FamilyGPT5, Classify("openai/gpt-5-nano"))
	assert.Equal(t, FamilyClaude, Classify("claude-sonnet-4-5"))
	assert.Equal(t, FamilyDefault, Classify("o3-mini"))
}

func TestAllowList(t *testing.T) {
	assert.Equal(t, []Effort{Low, Medium, High, XHigh}, AllowList("anthropic", "claude-opus-4"))
	assert.Equal(t, []Effort{Minimal, Low, Medium, High}, AllowList("openai", "gpt-5"))
	assert.Equal(t, []Effort{None, Minimal, Low, Medium, High}, AllowList("azure", "gpt-5.1"))
	assert.Equal(t, Scale, AllowList("openai", "gpt-5.2-pro"))
	assert.Equal(t, Scale, AllowList("openai", "o3"))
	assert.Equal(t, Scale, AllowList("xai", "grok-4"))
}

func TestResolve_PrefersDeclared(t *testing.T) {
	assert.Equal(t, []Effort{Low, High}, Resolve([]string{"low", "bogus", "high", "low"}, "openai", "gpt-5"))
	assert.Equal(t, AllowList("openai", "gpt-5"), Resolve([]string{"bogus"}, "openai", "gpt-5"))
}

func TestBudgetConversion(t *testing.T) {
	assert.Equal(t, 0, BudgetFor(None, 10000))
	assert.Equal(t, 5000, BudgetFor(Medium, 10000))
	assert.Equal(t, 10000, BudgetFor(XHigh, 10000))
	assert.Equal(t, 0, BudgetFor(High, 0))

	assert.Equal(t, None, EffortFor(0, 10000))
	assert.Equal(t, Medium, EffortFor(5200, 10000))
	assert.Equal(t, XHigh, EffortFor(20000, 10000))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
