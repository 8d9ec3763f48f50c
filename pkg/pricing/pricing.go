// Package pricing turns canonical usage into a bill.
package pricing

import (
	"sort"
	"strings"

	"github.com/zen-systems/relaygate/pkg/schema"
)

// Meter keys a Card understands besides the schema.Ext* extension keys.
const (
	MeterInputText   = "input_text_tokens"
	MeterOutputText  = "output_text_tokens"
	MeterCachedInput = "cached_input_tokens"
	MeterReasoning   = "reasoning_tokens"
)

// DefaultModel is the per-provider fallback entry in a Table.
const DefaultModel = "default"

const perMillion = 1_000_000.0

// Card holds per-meter rates, each expressed per one million units.
type Card struct {
	Currency string             `yaml:"currency" json:"currency"`
	Meters   map[string]float64 `yaml:"meters" json:"meters"`
}

// Rate returns the rate for a meter and whether the card prices it.
func (c *Card) Rate(meter string) (float64, bool) {
	if c == nil || c.Meters == nil {
		return 0, false
	}
	r, ok := c.Meters[meter]
	return r, ok
}

// Line is one priced meter of a bill.
type Line struct {
	Meter    string  `json:"meter"`
	Quantity int     `json:"quantity"`
	Rate     float64 `json:"rate"`
	Amount   float64 `json:"amount"`
}

// Bill is the priced outcome of one call.
type Bill struct {
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
	Lines    []Line  `json:"lines,omitempty"`
	Unpriced bool    `json:"unpriced,omitempty"`
}

var (
	inputExt  = []string{schema.ExtInputImageTokens, schema.ExtInputAudioTokens, schema.ExtInputVideoTokens}
	outputExt = []string{schema.ExtOutputImageTokens, schema.ExtOutputAudioTokens, schema.ExtOutputVideoTokens}
	// Meters that are a share of InputTokens. They leave text input only when
	// the card prices them on their own line.
	inputShare = []string{schema.ExtCachedWriteTokens, schema.ExtEmbeddingTokens}
)

// Compute prices u against card. Text input is what remains of InputTokens
// after cached and non-text input meters, and after cache writes and embedding
// tokens when the card rates them; text output likewise after non-text output
// meters and, when the card prices reasoning separately, reasoning.
func Compute(u *schema.Usage, card *Card) Bill {
	currency := "USD"
	if card != nil && card.Currency != "" {
		currency = strings.ToUpper(card.Currency)
	}
	if card == nil {
		return Bill{Currency: currency, Unpriced: true}
	}
	if u == nil {
		return Bill{Currency: currency}
	}

	quantities := map[string]int{}

	cached := 0
	if u.CachedInputTokens != nil {
		cached = *u.CachedInputTokens
	}
	textIn := u.InputTokens - cached
	for _, k := range inputExt {
		textIn -= u.ExtValue(k)
	}
	for _, k := range inputShare {
		if _, ok := card.Rate(k); ok {
			textIn -= u.ExtValue(k)
		}
	}
	if _, ok := card.Rate(MeterCachedInput); ok {
		quantities[MeterCachedInput] = cached
	} else {
		textIn += cached
	}
	quantities[MeterInputText] = max(textIn, 0)

	textOut := u.OutputTokens
	for _, k := range outputExt {
		textOut -= u.ExtValue(k)
	}
	if _, ok := card.Rate(MeterReasoning); ok && u.ReasoningTokens != nil {
		quantities[MeterReasoning] = *u.ReasoningTokens
		textOut -= *u.ReasoningTokens
	}
	quantities[MeterOutputText] = max(textOut, 0)

	for k, v := range u.Ext {
		if _, taken := quantities[k]; !taken {
			quantities[k] = v
		}
	}

	bill := Bill{Currency: currency}
	keys := make([]string, 0, len(quantities))
	for k := range quantities {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		qty := quantities[k]
		rate, ok := card.Rate(k)
		if !ok || qty == 0 {
			continue
		}
		amount := float64(qty) / perMillion * rate
		bill.Lines = append(bill.Lines, Line{Meter: k, Quantity: qty, Rate: rate, Amount: amount})
		bill.Amount += amount
	}
	return bill
}

// Table maps provider to model to card.
type Table map[string]map[string]*Card

// For returns the card for provider/model, falling back to the provider's
// default entry.
func (t Table) For(provider, model string) (*Card, bool) {
	if t == nil {
		return nil, false
	}
	models, ok := t[strings.ToLower(provider)]
	if !ok {
		return nil, false
	}
	if card, ok := models[model]; ok {
		return card, true
	}
	if card, ok := models[DefaultModel]; ok {
		return card, true
	}
	return nil, false
}
