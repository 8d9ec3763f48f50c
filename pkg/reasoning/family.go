package reasoning

import (
	"sort"
	"strings"
)

// Family is a closed set of model families that share an effort allow-list.
type Family string

const (
	FamilyDefault       Family = "default"
	FamilyClaude        Family = "claude"
	FamilyGPT5          Family = "gpt5"
	FamilyGPT51         Family = "gpt51"
	FamilyGPT52         Family = "gpt52"
	FamilyGPT51CodexMax Family = "gpt51_codex_max"
)

type familyMarker struct {
	marker string
	family Family
}

// markers are matched against the lowercased model id, longest first, so
// "gpt-5.1-codex-max" wins over "gpt-5.1" and "gpt-5.1" over "gpt-5".
var markers = compileMarkers([]familyMarker{
	{"gpt-5.1-codex-max", FamilyGPT51CodexMax},
	{"gpt-5.3", FamilyGPT52},
	{"gpt-5.2", FamilyGPT52},
	{"gpt-5.1", FamilyGPT51},
	{"gpt-5", FamilyGPT5},
	{"claude", FamilyClaude},
})

func compileMarkers(in []familyMarker) []familyMarker {
	out := make([]familyMarker, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].marker) > len(out[j].marker)
	})
	return out
}

// providerFamilies routes provider ids onto their family tables. Providers
// not listed use the full scale.
var providerFamilies = map[string]map[Family][]Effort{
	"anthropic": {
		FamilyDefault: {Low, Medium, High, XHigh},
		FamilyClaude:  {Low, Medium, High, XHigh},
	},
	"openai": openAIFamilies,
	"azure":  openAIFamilies,
}

var openAIFamilies = map[Family][]Effort{
	FamilyGPT51CodexMax: Scale,
	FamilyGPT52:         Scale,
	FamilyGPT51:         {None, Minimal, Low, Medium, High},
	FamilyGPT5:          {Minimal, Low, Medium, High},
}

// Classify maps a model id onto its family.
func Classify(model string) Family {
	m := strings.ToLower(model)
	for _, fm := range markers {
		if strings.Contains(m, fm.marker) {
			return fm.family
		}
	}
	return FamilyDefault
}

// AllowList returns the efforts the provider accepts for model. The returned
// slice must not be modified.
func AllowList(provider, model string) []Effort {
	families, ok := providerFamilies[strings.ToLower(provider)]
	if !ok {
		return Scale
	}
	if allowed, ok := families[Classify(model)]; ok {
		return allowed
	}
	if allowed, ok := families[FamilyDefault]; ok {
		return allowed
	}
	return Scale
}

// Resolve prefers capability-declared efforts and falls back to the
// compiled table.
func Resolve(declared []string, provider, model string) []Effort {
	if fromConfig := ParseAll(declared); len(fromConfig) > 0 {
		return fromConfig
	}
	return AllowList(provider, model)
}
