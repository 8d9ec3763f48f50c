// Package tokens estimates token counts locally, for telemetry and cost
// projection before a call is made.
package tokens

import (
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/zen-systems/relaygate/pkg/schema"
)

// DefaultEncoding is used when the model has no known encoding.
const DefaultEncoding = "cl100k_base"

// Chat framing overhead, per the OpenAI token-counting guidance.
const (
	tokensPerMessage = 3
	replyPriming     = 3
)

// Encoder turns text into tokens. *tiktoken.Tiktoken satisfies it.
type Encoder interface {
	Encode(text string, allowedSpecial []string, disallowedSpecial []string) []int
}

// Loader resolves the encoder for a model.
type Loader func(model string) (Encoder, error)

// TiktokenLoader tries the model's own encoding, then DefaultEncoding.
func TiktokenLoader(model string) (Encoder, error) {
	if model != "" {
		if enc, err := tiktoken.EncodingForModel(model); err == nil {
			return enc, nil
		}
	}
	return tiktoken.GetEncoding(DefaultEncoding)
}

// Estimator counts tokens, caching encoders per model. When no encoder can
// be loaded it falls back to four characters per token.
type Estimator struct {
	load   Loader
	logger *slog.Logger

	mu       sync.Mutex
	encoders map[string]Encoder
	failed   map[string]bool
}

// New returns an estimator backed by tiktoken.
func New(logger *slog.Logger) *Estimator {
	return NewWithLoader(TiktokenLoader, logger)
}

// NewWithLoader returns an estimator using load. A nil load always uses the
// heuristic.
func NewWithLoader(load Loader, logger *slog.Logger) *Estimator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Estimator{
		load:     load,
		logger:   logger,
		encoders: make(map[string]Encoder),
		failed:   make(map[string]bool),
	}
}

func (e *Estimator) encoder(model string) Encoder {
	if e.load == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if enc, ok := e.encoders[model]; ok {
		return enc
	}
	if e.failed[model] {
		return nil
	}
	enc, err := e.load(model)
	if err != nil {
		e.logger.Debug("token encoder unavailable, using heuristic", "model", model, "error", err)
		e.failed[model] = true
		return nil
	}
	e.encoders[model] = enc
	return enc
}

// Count estimates the tokens in text for model.
func (e *Estimator) Count(model, text string) int {
	if text == "" {
		return 0
	}
	if enc := e.encoder(model); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return Heuristic(text)
}

// CountRequest estimates the prompt tokens of a chat request, including
// message framing.
func (e *Estimator) CountRequest(req *schema.ChatRequest) int {
	if req == nil {
		return 0
	}
	total := replyPriming
	for _, m := range req.Messages {
		total += tokensPerMessage + e.Count(req.Model, m.Content)
		if m.Name != "" {
			total += e.Count(req.Model, m.Name) + 1
		}
	}
	return total
}

// Project estimates the usage of a call before it runs: the prompt count as
// input and the output ceiling, when set, as output.
func (e *Estimator) Project(req *schema.ChatRequest) *schema.Usage {
	in := e.CountRequest(req)
	out := 0
	if req != nil && req.MaxTokens != nil {
		out = *req.MaxTokens
	}
	return &schema.Usage{InputTokens: in, OutputTokens: out, TotalTokens: in + out}
}

// Heuristic is the four-characters-per-token rule of thumb, rounded up.
func Heuristic(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}
