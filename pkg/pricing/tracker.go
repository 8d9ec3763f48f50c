package pricing

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zen-systems/relaygate/pkg/schema"
)

// ErrBudgetExceeded is wrapped by Tracker.Check failures.
var ErrBudgetExceeded = errors.New("budget exceeded")

// Summary is the running total of a Tracker.
type Summary struct {
	Currency  string        `json:"currency"`
	Amount    float64       `json:"amount"`
	Usage     *schema.Usage `json:"usage,omitempty"`
	Calls     int           `json:"calls"`
	MaxAmount float64       `json:"max_amount,omitempty"`
	Exceeded  bool          `json:"exceeded,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

// Tracker accumulates bills across calls and enforces an optional budget. It
// is safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	table     Table
	maxAmount float64
	summary   Summary
	lastUsage *schema.Usage
}

// NewTracker returns a tracker; maxAmount <= 0 disables budget checks.
func NewTracker(table Table, maxAmount float64) *Tracker {
	return &Tracker{
		table:     table,
		maxAmount: maxAmount,
		summary:   Summary{Currency: "USD", MaxAmount: maxAmount},
	}
}

// Check refuses the next call when the budget is already spent or when a call
// shaped like the previous one would overrun it.
func (t *Tracker) Check(provider, model string) error {
	if t == nil || t.maxAmount <= 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.summary.Amount >= t.maxAmount {
		return t.exceed(fmt.Sprintf("budget %.4f exceeded (current total %.4f)", t.maxAmount, t.summary.Amount))
	}
	if t.lastUsage == nil {
		return nil
	}
	card, ok := t.table.For(provider, model)
	if !ok {
		return nil
	}
	projected := t.summary.Amount + Compute(t.lastUsage, card).Amount
	if projected > t.maxAmount {
		return t.exceed(fmt.Sprintf("budget %.4f exceeded (projected total %.4f)", t.maxAmount, projected))
	}
	return nil
}

func (t *Tracker) exceed(reason string) error {
	t.summary.Exceeded = true
	t.summary.Reason = reason
	return fmt.Errorf("%w: %s", ErrBudgetExceeded, reason)
}

// Record adds a completed call to the totals.
func (t *Tracker) Record(u *schema.Usage, bill Bill) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.summary.Calls++
	t.summary.Amount += bill.Amount
	if bill.Currency != "" {
		t.summary.Currency = bill.Currency
	}
	if u != nil {
		t.summary.Usage = t.summary.Usage.Add(u)
		t.lastUsage = u
	}
}

// Summary returns a snapshot of the totals.
func (t *Tracker) Summary() Summary {
	if t == nil {
		return Summary{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.summary
	out.Usage = t.summary.Usage.Add(nil)
	return out
}
