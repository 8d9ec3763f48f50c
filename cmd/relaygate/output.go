package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zen-systems/relaygate/pkg/capability"
	"github.com/zen-systems/relaygate/pkg/dispatch"
	"github.com/zen-systems/relaygate/pkg/pricing"
	"github.com/zen-systems/relaygate/pkg/schema"
)

func printJSON(v any) error {
	if raw, ok := v.(json.RawMessage); ok {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err == nil {
			v = decoded
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printUsage(u *schema.Usage, bill pricing.Bill) {
	if u == nil {
		color.New(color.FgYellow).Fprintln(os.Stderr, "no usage reported")
		return
	}
	parts := []string{
		fmt.Sprintf("input=%d", u.InputTokens),
		fmt.Sprintf("output=%d", u.OutputTokens),
		fmt.Sprintf("total=%d", u.TotalTokens),
	}
	if u.CachedInputTokens != nil {
		parts = append(parts, fmt.Sprintf("cached=%d", *u.CachedInputTokens))
	}
	if u.ReasoningTokens != nil {
		parts = append(parts, fmt.Sprintf("reasoning=%d", *u.ReasoningTokens))
	}
	keys := make([]string, 0, len(u.Ext))
	for k := range u.Ext {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, u.Ext[k]))
	}
	fmt.Fprintf(os.Stderr, "usage: %s\n", strings.Join(parts, " "))

	if bill.Unpriced {
		color.New(color.FgYellow).Fprintln(os.Stderr, "cost: no rate card")
		return
	}
	color.New(color.FgCyan).Fprintf(os.Stderr, "cost: %.6f %s\n", bill.Amount, bill.Currency)
}

func reportAttempts(out *dispatch.Outcome) {
	for _, id := range out.Clamped {
		color.New(color.FgYellow).Fprintf(os.Stderr, "adjusted %s\n", id)
	}
	for _, a := range out.Attempts {
		line := fmt.Sprintf("%s/%s status=%d retries=%d elapsed=%s", a.Provider, a.Model, a.Status, a.Retries, a.Elapsed)
		if a.FallbackUsed {
			line += " (fallback)"
		}
		if a.Error != "" {
			color.New(color.FgRed).Fprintf(os.Stderr, "%s error=%s\n", line, a.Error)
			continue
		}
		if verboseFlag {
			fmt.Fprintln(os.Stderr, line)
		}
	}
}

func paramNames(ids []capability.ParamID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}

func paramValue(req *schema.ChatRequest, id capability.ParamID) string {
	switch id {
	case capability.Temperature:
		return floatValue(req.Temperature)
	case capability.TopP:
		return floatValue(req.TopP)
	case capability.FrequencyPenalty:
		return floatValue(req.FrequencyPenalty)
	case capability.PresencePenalty:
		return floatValue(req.PresencePenalty)
	case capability.TopLogprobs:
		return intValue(req.TopLogprobs)
	case capability.MaxTokens:
		return intValue(req.MaxTokens)
	}
	if req.Reasoning == nil {
		return "unset"
	}
	if id == capability.ReasoningMaxTokens {
		return intValue(req.Reasoning.MaxTokens)
	}
	raw, _ := json.Marshal(req.Reasoning)
	return string(raw)
}

func floatValue(v *float64) string {
	if v == nil {
		return "unset"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func intValue(v *int) string {
	if v == nil {
		return "unset"
	}
	return strconv.Itoa(*v)
}

// dumpMetrics prints every non-empty series in a compact text form.
func dumpMetrics(w io.Writer, reg *prometheus.Registry) {
	if reg == nil {
		return
	}
	families, err := reg.Gather()
	if err != nil {
		logger.Warn("failed to gather metrics", "error", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				fmt.Fprintf(w, "%s %g\n", name, m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				fmt.Fprintf(w, "%s count=%d sum=%g\n", name, h.GetSampleCount(), h.GetSampleSum())
			}
		}
	}
}
