// Package capability turns free-form capability parameter metadata into a
// typed registry keyed by canonical parameter id.
//
// Upstream metadata drifts: the same bound shows up as "max", "maximum" or
// "provider_max", and the same parameter under several historical names.
// All of that is resolved once, in Parse, so normalization only ever does
// map lookups.
package capability

import (
	"encoding/json"
	"math"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParamID is the canonical name of a tunable request parameter.
type ParamID string

const (
	Temperature        ParamID = "temperature"
	TopP               ParamID = "top_p"
	FrequencyPenalty   ParamID = "frequency_penalty"
	PresencePenalty    ParamID = "presence_penalty"
	TopLogprobs        ParamID = "top_logprobs"
	MaxTokens          ParamID = "max_tokens"
	ReasoningEffort    ParamID = "reasoning.effort"
	ReasoningMaxTokens ParamID = "reasoning.max_tokens"
)

// aliases lists, per parameter, the metadata keys that may carry it. The
// first key present wins.
var aliases = []struct {
	id   ParamID
	keys []string
}{
	{Temperature, []string{"temperature"}},
	{TopP, []string{"top_p"}},
	{FrequencyPenalty, []string{"frequency_penalty"}},
	{PresencePenalty, []string{"presence_penalty"}},
	{TopLogprobs, []string{"top_logprobs"}},
	{MaxTokens, []string{"max_tokens", "max_output_tokens"}},
	{ReasoningEffort, []string{"reasoning.effort", "reasoning_effort"}},
	{ReasoningMaxTokens, []string{"reasoning.max_tokens", "reasoning.maxTokens", "reasoning_max_tokens"}},
}

// nested keys under a "reasoning" object.
var nestedReasoning = map[ParamID][]string{
	ReasoningEffort:    {"effort"},
	ReasoningMaxTokens: {"max_tokens", "maxTokens"},
}

var (
	minKeys     = []string{"provider_min", "min", "minimum"}
	maxKeys     = []string{"provider_max", "max", "maximum"}
	defaultKeys = []string{"provider_default", "default"}
	valueKeys   = []string{"supported_values", "allowed_values", "enum", "values"}
)

// Kind tags a Spec as a numeric range or an enumerated set.
type Kind int

const (
	KindRange Kind = iota + 1
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindRange:
		return "range"
	case KindEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// Range is an optional numeric interval with an optional default.
type Range struct {
	Min     *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max     *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Default *float64 `json:"default,omitempty" yaml:"default,omitempty"`
}

// Bounds returns a range with the given min and max.
func Bounds(min, max float64) Range {
	return Range{Min: &min, Max: &max}
}

// AtLeast returns a range with only a lower bound.
func AtLeast(min float64) Range {
	return Range{Min: &min}
}

// Overlay returns r with every field that o sets replaced by o's value.
func (r Range) Overlay(o Range) Range {
	out := r
	if o.Min != nil {
		out.Min = ptr(*o.Min)
	}
	if o.Max != nil {
		out.Max = ptr(*o.Max)
	}
	if o.Default != nil {
		out.Default = ptr(*o.Default)
	}
	return out
}

// TightenMax lowers the maximum to ceiling when ceiling is smaller.
func (r Range) TightenMax(ceiling float64) Range {
	if r.Max == nil || ceiling < *r.Max {
		r.Max = ptr(ceiling)
	}
	return r
}

// Clamp moves v into the range. Missing bounds are open.
func (r Range) Clamp(v float64) float64 {
	if r.Min != nil && v < *r.Min {
		v = *r.Min
	}
	if r.Max != nil && v > *r.Max {
		v = *r.Max
	}
	return v
}

// ClampInt clamps v against the integer-rounded bounds (ceil of min, floor
// of max).
func (r Range) ClampInt(v int) int {
	if r.Min != nil {
		if lo := ToInt(math.Ceil(*r.Min)); v < lo {
			v = lo
		}
	}
	if r.Max != nil {
		if hi := ToInt(math.Floor(*r.Max)); v > hi {
			v = hi
		}
	}
	return v
}

// ToInt converts f to an int, saturating at the int limits.
func ToInt(f float64) int {
	switch {
	case f >= math.MaxInt:
		return math.MaxInt
	case f <= math.MinInt:
		return math.MinInt
	}
	return int(f)
}

// Contains reports whether v lies inside the range.
func (r Range) Contains(v float64) bool {
	return (r.Min == nil || v >= *r.Min) && (r.Max == nil || v <= *r.Max)
}

// Spec is the resolved metadata for one parameter.
type Spec struct {
	Kind   Kind     `json:"kind"`
	Range  Range    `json:"range,omitempty"`
	Values []string `json:"values,omitempty"`
}

// Registry maps canonical parameter ids to their metadata. A nil registry is
// valid and empty.
type Registry map[ParamID]Spec

// Parse ingests free-form capability metadata.
func Parse(raw map[string]any) Registry {
	reg := make(Registry)
	if raw == nil {
		return reg
	}
	nested, _ := asObject(raw["reasoning"])

	for _, a := range aliases {
		var entry map[string]any
		for _, key := range a.keys {
			if obj, ok := asObject(raw[key]); ok {
				entry = obj
				break
			}
		}
		var nestedEntry map[string]any
		if nested != nil {
			for _, key := range nestedReasoning[a.id] {
				if obj, ok := asObject(nested[key]); ok {
					nestedEntry = obj
					break
				}
			}
		}

		if a.id == ReasoningEffort {
			values := mergeValues(enumValues(entry), enumValues(nestedEntry))
			if entry != nil || nestedEntry != nil {
				reg[a.id] = Spec{Kind: KindEnum, Values: values}
			}
			continue
		}

		if entry == nil {
			entry = nestedEntry
		}
		if entry == nil {
			continue
		}
		if values := enumValues(entry); len(values) > 0 {
			reg[a.id] = Spec{Kind: KindEnum, Values: mergeValues(values)}
			continue
		}
		reg[a.id] = Spec{Kind: KindRange, Range: extractRange(entry)}
	}
	return reg
}

func extractRange(entry map[string]any) Range {
	var r Range
	if v, ok := firstPresent(entry, minKeys...); ok {
		if f, ok := toFinite(v); ok {
			r.Min = ptr(f)
		}
	}
	if v, ok := firstPresent(entry, maxKeys...); ok {
		if f, ok := toFinite(v); ok {
			r.Max = ptr(f)
		}
	}
	if v, ok := firstPresent(entry, defaultKeys...); ok {
		if f, ok := toFinite(v); ok {
			r.Default = ptr(f)
		}
	}
	return r
}

func enumValues(entry map[string]any) []string {
	if entry == nil {
		return nil
	}
	v, ok := firstPresent(entry, valueKeys...)
	if !ok {
		return nil
	}
	return toStrings(v)
}

func mergeValues(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, v := range list {
			v = strings.ToLower(v)
			if seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// Lookup returns the spec for id.
func (r Registry) Lookup(id ParamID) (Spec, bool) {
	spec, ok := r[id]
	return spec, ok
}

// Range overlays the capability bounds for id on top of fallback.
func (r Registry) Range(id ParamID, fallback Range) Range {
	spec, ok := r[id]
	if !ok || spec.Kind != KindRange {
		return fallback
	}
	return fallback.Overlay(spec.Range)
}

// Values returns the enumerated values declared for id.
func (r Registry) Values(id ParamID) []string {
	spec, ok := r[id]
	if !ok || spec.Kind != KindEnum {
		return nil
	}
	return spec.Values
}

// UnmarshalJSON ingests free-form JSON metadata.
func (r *Registry) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Parse(raw)
	return nil
}

// UnmarshalYAML ingests free-form YAML metadata.
func (r *Registry) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*r = Parse(raw)
	return nil
}

func ptr(f float64) *float64 { return &f }
