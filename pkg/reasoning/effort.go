// Package reasoning holds the reasoning-effort scale, the per provider and
// model-family allow-lists, and the nearest-rank clamp.
package reasoning

import "strings"

// Effort is a discrete reasoning-effort level.
type Effort string

const (
	None    Effort = "none"
	Minimal Effort = "minimal"
	Low     Effort = "low"
	Medium  Effort = "medium"
	High    Effort = "high"
	XHigh   Effort = "xhigh"
)

// Scale lists every effort from weakest to strongest.
var Scale = []Effort{None, Minimal, Low, Medium, High, XHigh}

// Parse recognises an effort level, case-insensitively.
func Parse(s string) (Effort, bool) {
	e := Effort(strings.ToLower(strings.TrimSpace(s)))
	return e, e.Rank() >= 0
}

// Rank is the position of e on Scale, or -1 when e is not on it.
func (e Effort) Rank() int {
	for i, v := range Scale {
		if v == e {
			return i
		}
	}
	return -1
}

// Valid reports whether e is on Scale.
func (e Effort) Valid() bool { return e.Rank() >= 0 }

// Clamp returns requested when it is allowed, otherwise the allowed effort
// with the smallest rank distance. Equidistant candidates resolve to the
// lower effort, independent of the order of allowed. An empty allow-list
// leaves requested unchanged.
func Clamp(requested Effort, allowed []Effort) Effort {
	want := requested.Rank()
	if want < 0 || len(allowed) == 0 {
		return requested
	}
	best := Effort("")
	bestDiff := -1
	for _, candidate := range allowed {
		rank := candidate.Rank()
		if rank < 0 {
			continue
		}
		diff := rank - want
		if diff < 0 {
			diff = -diff
		}
		switch {
		case diff == 0:
			return candidate
		case bestDiff < 0, diff < bestDiff:
			best, bestDiff = candidate, diff
		case diff == bestDiff && rank < best.Rank():
			best = candidate
		}
	}
	if bestDiff < 0 {
		return requested
	}
	return best
}

// ParseAll keeps the recognised efforts from values, in order, without
// duplicates.
func ParseAll(values []string) []Effort {
	seen := make(map[Effort]bool)
	var out []Effort
	for _, v := range values {
		e, ok := Parse(v)
		if !ok || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

var budgetShare = map[Effort]float64{
	None:    0,
	Minimal: 0.10,
	Low:     0.25,
	Medium:  0.50,
	High:    0.80,
	XHigh:   1.00,
}

// BudgetFor converts an effort into a thinking-token budget out of maxBudget.
func BudgetFor(e Effort, maxBudget int) int {
	share, ok := budgetShare[e]
	if !ok || maxBudget <= 0 {
		return 0
	}
	return int(share * float64(maxBudget))
}

// EffortFor maps a thinking-token budget back onto the nearest effort.
func EffortFor(budget, maxBudget int) Effort {
	if budget <= 0 || maxBudget <= 0 {
		return None
	}
	ratio := float64(budget) / float64(maxBudget)
	best := Minimal
	bestDiff := 2.0
	for _, e := range Scale[1:] {
		diff := ratio - budgetShare[e]
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			best, bestDiff = e, diff
		}
	}
	return best
}
