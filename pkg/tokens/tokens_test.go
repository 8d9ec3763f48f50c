package tokens

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zen-systems/relaygate/pkg/schema"
)

// wordEncoder emits one token per whitespace-separated word.
type wordEncoder struct{}

func (wordEncoder) Encode(text string, _, _ []string) []int {
	return make([]int, len(strings.Fields(text)))
}

func TestHeuristic(t *testing.T) {
	assert.Equal(t, 0, Heuristic(""))
	assert.Equal(t, 1, Heuristic("abc"))
	assert.Equal(t, 2, Heuristic("abcde"))
	assert.Equal(t, 1, Heuristic("héé"))
}

func TestCountUsesEncoder(t *testing.T) {
	loads := 0
	e := NewWithLoader(func(string) (Encoder, error) {
		loads++
		return wordEncoder{}, nil
	}, nil)

	assert.Equal(t, 3, e.Count("gpt-5", "one two three"))
	assert.Equal(t, 1, e.Count("gpt-5", "again"))
	assert.Equal(t, 1, loads, "encoder is cached per model")
}

func TestCountFallsBackToHeuristic(t *testing.T) {
	loads := 0
	e := NewWithLoader(func(string) (Encoder, error) {
		loads++
		return nil, errors.New("offline")
	}, nil)

	assert.Equal(t, Heuristic("twelve chars"), e.Count("m", "twelve chars"))
	e.Count("m", "again")
	assert.Equal(t, 1, loads, "failed loads are not retried")

	assert.Equal(t, 2, NewWithLoader(nil, nil).Count("m", "12345678"))
}

func TestCountRequestAndProject(t *testing.T) {
	e := NewWithLoader(func(string) (Encoder, error) { return wordEncoder{}, nil }, nil)
	req := &schema.ChatRequest{
		Model: "gpt-5",
		Messages: []schema.Message{
			{Role: schema.RoleSystem, Content: "be brief"},
			{Role: schema.RoleUser, Content: "hello there world", Name: "ana"},
		},
		MaxTokens: schema.Int(100),
	}

	// priming 3 + (3+2) + (3+3+1+1)
	assert.Equal(t, 16, e.CountRequest(req))

	u := e.Project(req)
	assert.Equal(t, 16, u.InputTokens)
	assert.Equal(t, 100, u.OutputTokens)
	assert.Equal(t, 116, u.TotalTokens)

	assert.Equal(t, 0, e.CountRequest(nil))
}
