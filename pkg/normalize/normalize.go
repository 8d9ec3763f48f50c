// Package normalize clamps a canonical chat request into the parameter space
// a provider accepts. Out-of-range values are coerced, never rejected.
//
// Normalize is a pure function: it performs no I/O, holds no state and never
// mutates its input, so it is safe to call from any number of goroutines.
package normalize

import (
	"math"

	"github.com/zen-systems/relaygate/pkg/capability"
	"github.com/zen-systems/relaygate/pkg/reasoning"
	"github.com/zen-systems/relaygate/pkg/schema"
)

const epsilon = 1e-9

// Options carries the per-call inputs that do not live on the request.
type Options struct {
	// Capabilities is the parameter metadata for the target model. Nil means
	// only compiled-in fallbacks apply.
	Capabilities capability.Registry
	// ProviderMaxOutputTokens tightens the max_tokens ceiling when set.
	ProviderMaxOutputTokens *int
	// ModelForReasoning overrides the model id used for the effort family
	// lookup.
	ModelForReasoning string
}

// Fallback ranges used when capability metadata is silent.
var (
	fallbackTopP        = capability.Bounds(0, 1)
	fallbackPenalty     = capability.Bounds(-2, 2)
	fallbackTopLogprobs = capability.Bounds(0, 20)
	fallbackMaxTokens   = capability.AtLeast(1)
	fallbackReasoningMT = capability.AtLeast(0)
)

// Normalize returns req unchanged (the same pointer) when every parameter is
// already acceptable, and otherwise a new request with only the adjusted
// fields replaced.
func Normalize(req *schema.ChatRequest, providerID string, protocol Protocol, opts Options) *schema.ChatRequest {
	if req == nil {
		return nil
	}
	caps := opts.Capabilities

	nextTemperature := req.Temperature
	if finite(req.Temperature) {
		nextTemperature = schema.Float(TemperatureRange(caps, providerID, protocol).Clamp(*req.Temperature))
	}
	nextTopP := clampFloat(req.TopP, caps.Range(capability.TopP, fallbackTopP))
	nextFrequency := clampFloat(req.FrequencyPenalty, caps.Range(capability.FrequencyPenalty, fallbackPenalty))
	nextPresence := clampFloat(req.PresencePenalty, caps.Range(capability.PresencePenalty, fallbackPenalty))

	nextTopLogprobs := req.TopLogprobs
	if req.TopLogprobs != nil {
		nextTopLogprobs = schema.Int(caps.Range(capability.TopLogprobs, fallbackTopLogprobs).ClampInt(*req.TopLogprobs))
	}

	nextMaxTokens := normalizeMaxTokens(req, providerID, caps, opts.ProviderMaxOutputTokens)

	model := opts.ModelForReasoning
	if model == "" {
		model = req.Model
	}
	nextReasoning := normalizeReasoning(req.Reasoning, providerID, model, caps)

	changed := changedFloat(req.Temperature, nextTemperature) ||
		changedFloat(req.TopP, nextTopP) ||
		changedFloat(req.FrequencyPenalty, nextFrequency) ||
		changedFloat(req.PresencePenalty, nextPresence) ||
		changedInt(req.TopLogprobs, nextTopLogprobs) ||
		changedInt(req.MaxTokens, nextMaxTokens) ||
		!req.Reasoning.Equal(nextReasoning)
	if !changed {
		return req
	}

	out := req.Clone()
	if changedFloat(req.Temperature, nextTemperature) {
		out.Temperature = nextTemperature
	}
	if changedFloat(req.TopP, nextTopP) {
		out.TopP = nextTopP
	}
	if changedFloat(req.FrequencyPenalty, nextFrequency) {
		out.FrequencyPenalty = nextFrequency
	}
	if changedFloat(req.PresencePenalty, nextPresence) {
		out.PresencePenalty = nextPresence
	}
	if changedInt(req.TopLogprobs, nextTopLogprobs) {
		out.TopLogprobs = nextTopLogprobs
	}
	if changedInt(req.MaxTokens, nextMaxTokens) {
		out.MaxTokens = nextMaxTokens
	}
	if !req.Reasoning.Equal(nextReasoning) {
		out.Reasoning = nextReasoning
	}
	return out
}

// TemperatureRange is the resolved temperature interval: capability bounds
// over [0, ceiling], where the ceiling is the stricter of the protocol and
// provider maxima and always has the last word.
func TemperatureRange(caps capability.Registry, providerID string, protocol Protocol) capability.Range {
	ceiling := math.Min(protocol.TemperatureCeiling(), ProviderTemperatureCeiling(providerID))
	rng := caps.Range(capability.Temperature, capability.Bounds(0, ceiling))
	return rng.TightenMax(ceiling)
}

// MaxTokensRange is the resolved output-token interval.
func MaxTokensRange(caps capability.Registry, providerMax *int) capability.Range {
	rng := caps.Range(capability.MaxTokens, fallbackMaxTokens)
	if providerMax != nil {
		rng = rng.TightenMax(float64(*providerMax))
	}
	return rng
}

func normalizeMaxTokens(req *schema.ChatRequest, providerID string, caps capability.Registry, providerMax *int) *int {
	rng := MaxTokensRange(caps, providerMax)
	if req.MaxTokens != nil {
		return schema.Int(rng.ClampInt(*req.MaxTokens))
	}
	if !RequiresMaxTokens(providerID) {
		return nil
	}
	fill := DefaultMaxTokens
	if rng.Default != nil {
		fill = capability.ToInt(math.Floor(*rng.Default))
	}
	return schema.Int(rng.ClampInt(fill))
}

func normalizeReasoning(in *schema.Reasoning, providerID, model string, caps capability.Registry) *schema.Reasoning {
	if in == nil {
		return nil
	}
	out := in.Clone()
	if summary := policyFor(providerID).defaultSummary; summary != "" && out.Summary == "" {
		out.Summary = summary
	}
	if effort, ok := reasoning.Parse(out.Effort); ok {
		allowed := reasoning.Resolve(caps.Values(capability.ReasoningEffort), providerID, model)
		out.Effort = string(reasoning.Clamp(effort, allowed))
	}
	if out.MaxTokens != nil {
		out.MaxTokens = schema.Int(caps.Range(capability.ReasoningMaxTokens, fallbackReasoningMT).ClampInt(*out.MaxTokens))
	}
	return out
}

func clampFloat(v *float64, rng capability.Range) *float64 {
	if !finite(v) {
		return v
	}
	return schema.Float(rng.Clamp(*v))
}

func finite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

func changedFloat(before, after *float64) bool {
	if after == nil || !finite(after) {
		return false
	}
	return before == nil || math.Abs(*after-*before) > epsilon
}

func changedInt(before, after *int) bool {
	if after == nil {
		return false
	}
	return before == nil || *before != *after
}

// Changes lists the parameters that differ between a request and its
// normalized form.
func Changes(before, after *schema.ChatRequest) []capability.ParamID {
	if before == nil || after == nil || before == after {
		return nil
	}
	var out []capability.ParamID
	if changedFloat(before.Temperature, after.Temperature) {
		out = append(out, capability.Temperature)
	}
	if changedFloat(before.TopP, after.TopP) {
		out = append(out, capability.TopP)
	}
	if changedFloat(before.FrequencyPenalty, after.FrequencyPenalty) {
		out = append(out, capability.FrequencyPenalty)
	}
	if changedFloat(before.PresencePenalty, after.PresencePenalty) {
		out = append(out, capability.PresencePenalty)
	}
	if changedInt(before.TopLogprobs, after.TopLogprobs) {
		out = append(out, capability.TopLogprobs)
	}
	if changedInt(before.MaxTokens, after.MaxTokens) {
		out = append(out, capability.MaxTokens)
	}
	if before.Reasoning != nil && after.Reasoning != nil {
		if before.Reasoning.Effort != after.Reasoning.Effort {
			out = append(out, capability.ReasoningEffort)
		}
		if changedInt(before.Reasoning.MaxTokens, after.Reasoning.MaxTokens) {
			out = append(out, capability.ReasoningMaxTokens)
		}
		if before.Reasoning.Summary != after.Reasoning.Summary {
			out = append(out, "reasoning.summary")
		}
	}
	return out
}
