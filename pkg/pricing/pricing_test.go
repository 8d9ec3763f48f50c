package pricing

import (
	"errors"
	"math"
	"testing"

	"github.com/zen-systems/relaygate/pkg/schema"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestComputeTextOnly(t *testing.T) {
	card := &Card{Currency: "usd", Meters: map[string]float64{
		MeterInputText:  0.15,
		MeterOutputText: 0.60,
	}}
	bill := Compute(&schema.Usage{InputTokens: 1_000_000, OutputTokens: 500_000, TotalTokens: 1_500_000}, card)

	if bill.Currency != "USD" {
		t.Fatalf("expected upper-cased currency, got %q", bill.Currency)
	}
	if !approx(bill.Amount, 0.15+0.30) {
		t.Fatalf("amount mismatch: got %.6f", bill.Amount)
	}
	if len(bill.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(bill.Lines))
	}
}

func TestComputeSplitsModalities(t *testing.T) {
	card := &Card{Meters: map[string]float64{
		MeterInputText:              1,
		MeterOutputText:             10,
		schema.ExtOutputImageTokens: 30,
	}}
	u := &schema.Usage{
		InputTokens:     66,
		OutputTokens:    1536,
		TotalTokens:     2027,
		ReasoningTokens: schema.Int(425),
		Ext:             map[string]int{schema.ExtOutputImageTokens: 1120},
	}
	bill := Compute(u, card)

	want := (66*1.0 + 416*10.0 + 1120*30.0) / perMillion
	if !approx(bill.Amount, want) {
		t.Fatalf("amount mismatch: got %.9f want %.9f", bill.Amount, want)
	}
}

func TestComputeCachedAndReasoningRates(t *testing.T) {
	card := &Card{Meters: map[string]float64{
		MeterInputText:   2,
		MeterCachedInput: 1,
		MeterOutputText:  8,
		MeterReasoning:   4,
	}}
	u := &schema.Usage{
		InputTokens:       100,
		OutputTokens:      50,
		CachedInputTokens: schema.Int(60),
		ReasoningTokens:   schema.Int(20),
	}
	bill := Compute(u, card)

	want := (40*2.0 + 60*1.0 + 30*8.0 + 20*4.0) / perMillion
	if !approx(bill.Amount, want) {
		t.Fatalf("amount mismatch: got %.9f want %.9f", bill.Amount, want)
	}
}

func TestComputeCachedWithoutRateBillsAsInput(t *testing.T) {
	card := &Card{Meters: map[string]float64{MeterInputText: 1}}
	bill := Compute(&schema.Usage{InputTokens: 100, CachedInputTokens: schema.Int(60)}, card)
	if !approx(bill.Amount, 100/perMillion) {
		t.Fatalf("expected cached tokens billed at the input rate, got %.9f", bill.Amount)
	}
}

func TestComputeEmbeddings(t *testing.T) {
	card := &Card{Meters: map[string]float64{schema.ExtEmbeddingTokens: 0.02}}
	u := &schema.Usage{InputTokens: 27, TotalTokens: 27, Ext: map[string]int{schema.ExtEmbeddingTokens: 27}}
	bill := Compute(u, card)
	if len(bill.Lines) != 1 || bill.Lines[0].Meter != schema.ExtEmbeddingTokens {
		t.Fatalf("expected a single embedding line, got %+v", bill.Lines)
	}
}

func TestComputeEmbeddingsOnSharedCard(t *testing.T) {
	card := &Card{Meters: map[string]float64{
		MeterInputText:            0.15,
		schema.ExtEmbeddingTokens: 0.15,
	}}
	u := &schema.Usage{InputTokens: 1_000_000, TotalTokens: 1_000_000, Ext: map[string]int{schema.ExtEmbeddingTokens: 1_000_000}}
	bill := Compute(u, card)
	if !approx(bill.Amount, 0.15) {
		t.Fatalf("embedding tokens billed more than once: amount %.6f, lines %+v", bill.Amount, bill.Lines)
	}
	if len(bill.Lines) != 1 || bill.Lines[0].Meter != schema.ExtEmbeddingTokens {
		t.Fatalf("expected a single embedding line, got %+v", bill.Lines)
	}

	textOnly := &Card{Meters: map[string]float64{MeterInputText: 0.15}}
	if bill := Compute(u, textOnly); !approx(bill.Amount, 0.15) {
		t.Fatalf("expected embedding tokens billed as text input, got %.6f", bill.Amount)
	}
}

func TestComputeCacheWritesNotDoubleBilled(t *testing.T) {
	card := &Card{Meters: map[string]float64{
		MeterInputText:              1,
		schema.ExtCachedWriteTokens: 2,
	}}
	u := &schema.Usage{InputTokens: 100, Ext: map[string]int{schema.ExtCachedWriteTokens: 40}}
	bill := Compute(u, card)
	if !approx(bill.Amount, (60*1+40*2)/perMillion) {
		t.Fatalf("unexpected amount %.9f, lines %+v", bill.Amount, bill.Lines)
	}
}

func TestComputeWithoutCard(t *testing.T) {
	bill := Compute(&schema.Usage{InputTokens: 10}, nil)
	if !bill.Unpriced || bill.Amount != 0 {
		t.Fatalf("expected unpriced zero bill, got %+v", bill)
	}
}

func TestTableFallback(t *testing.T) {
	table := Table{
		"openai": {
			"gpt-5":      {Meters: map[string]float64{MeterInputText: 1}},
			DefaultModel: {Meters: map[string]float64{MeterInputText: 2}},
		},
	}
	if card, ok := table.For("OpenAI", "gpt-5"); !ok || card.Meters[MeterInputText] != 1 {
		t.Fatalf("expected exact model card")
	}
	if card, ok := table.For("openai", "gpt-4o"); !ok || card.Meters[MeterInputText] != 2 {
		t.Fatalf("expected default card")
	}
	if _, ok := table.For("anthropic", "claude"); ok {
		t.Fatalf("expected no card for unknown provider")
	}
}

func TestTrackerBudget(t *testing.T) {
	table := Table{"mock": {DefaultModel: {Meters: map[string]float64{MeterInputText: 1_000_000}}}}
	tracker := NewTracker(table, 15)

	if err := tracker.Check("mock", "m"); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}
	u := &schema.Usage{InputTokens: 10, TotalTokens: 10}
	card, _ := table.For("mock", "m")
	tracker.Record(u, Compute(u, card))

	err := tracker.Check("mock", "m")
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected projected budget failure, got %v", err)
	}

	summary := tracker.Summary()
	if summary.Calls != 1 || !approx(summary.Amount, 10) || !summary.Exceeded {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Usage.InputTokens != 10 {
		t.Fatalf("expected usage totals, got %+v", summary.Usage)
	}
}

func TestTrackerUnlimited(t *testing.T) {
	tracker := NewTracker(nil, 0)
	tracker.Record(&schema.Usage{InputTokens: 1}, Bill{Amount: 1000})
	if err := tracker.Check("any", "model"); err != nil {
		t.Fatalf("expected no budget enforcement, got %v", err)
	}
}
