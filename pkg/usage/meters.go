package usage

import (
	"github.com/tidwall/gjson"
	"google.golang.org/genai"
)

// Meter names an intermediate per-modality token counter.
type Meter string

const (
	InputText       Meter = "input_text_tokens"
	InputImage      Meter = "input_image_tokens"
	InputAudio      Meter = "input_audio_tokens"
	InputVideo      Meter = "input_video_tokens"
	OutputText      Meter = "output_text_tokens"
	OutputImage     Meter = "output_image_tokens"
	OutputAudio     Meter = "output_audio_tokens"
	OutputVideo     Meter = "output_video_tokens"
	CachedReadText  Meter = "cached_read_text_tokens"
	CachedWriteText Meter = "cached_write_text_tokens"
	ReasoningTokens Meter = "reasoning_tokens"
	TotalTokens     Meter = "total_tokens"
)

// Meters is the modality-keyed intermediate usage map.
type Meters map[Meter]int

// Has reports whether m was set, including to zero.
func (ms Meters) Has(m Meter) bool {
	_, ok := ms[m]
	return ok
}

type meterPair struct {
	input, output Meter
}

// modalityMeters maps each reported modality onto its meters. Documents are
// tokenised as text.
var modalityMeters = map[genai.MediaModality]meterPair{
	genai.MediaModalityUnspecified: {InputText, OutputText},
	genai.MediaModalityText:        {InputText, OutputText},
	genai.MediaModalityImage:       {InputImage, OutputImage},
	genai.MediaModalityVideo:       {InputVideo, OutputVideo},
	genai.MediaModalityAudio:       {InputAudio, OutputAudio},
	genai.MediaModalityDocument:    {InputText, OutputText},
}

var (
	inputMeters  = []Meter{InputText, InputImage, InputAudio, InputVideo}
	outputMeters = []Meter{OutputText, OutputImage, OutputAudio, OutputVideo}
)

type direction int

const (
	directionInput direction = iota
	directionOutput
)

// addDetails sums a modality detail array into the meters. Entries with an
// unknown modality are skipped; a missing modality counts as text.
func (ms Meters) addDetails(details gjson.Result, dir direction) bool {
	if !details.IsArray() {
		return false
	}
	seen := false
	for _, entry := range details.Array() {
		modality := genai.MediaModality(entry.Get("modality").String())
		if modality == "" {
			modality = genai.MediaModalityText
		}
		pair, ok := modalityMeters[modality]
		if !ok {
			continue
		}
		meter := pair.input
		if dir == directionOutput {
			meter = pair.output
		}
		count, _ := intAt(entry, "tokenCount", "token_count")
		ms[meter] += count
		seen = true
	}
	return seen
}

// sum adds the listed meters; ok is false when none of them is set.
func (ms Meters) sum(meters []Meter) (int, bool) {
	total, seen := 0, false
	for _, m := range meters {
		if v, ok := ms[m]; ok {
			total += v
			seen = true
		}
	}
	return total, seen
}

// FromGoogle builds meters from a Gemini usageMetadata object. Detail arrays
// take precedence; coarse counts only fill meters the details left empty.
func FromGoogle(meta gjson.Result) Meters {
	ms := make(Meters)
	if !meta.IsObject() {
		return ms
	}

	ms.addDetails(meta.Get("promptTokensDetails"), directionInput)
	toolDetails := ms.addDetails(meta.Get("toolUsePromptTokensDetails"), directionInput)
	ms.addDetails(meta.Get("candidatesTokensDetails"), directionOutput)

	cached := make(Meters)
	if cached.addDetails(meta.Get("cacheTokensDetails"), directionInput) {
		if total, ok := cached.sum(inputMeters); ok {
			ms[CachedReadText] = total
		}
	}

	if v, ok := intAt(meta, "promptTokenCount"); ok && !ms.Has(InputText) {
		ms[InputText] = v
	}
	if v, ok := intAt(meta, "toolUsePromptTokenCount"); ok && !toolDetails {
		ms[InputText] += v
	}
	if v, ok := intAt(meta, "cachedContentTokenCount"); ok {
		ms[CachedReadText] = v
	}
	if v, ok := intAt(meta, "candidatesTokenCount"); ok && !ms.Has(OutputText) {
		ms[OutputText] = v
	}
	if v, ok := intAt(meta, "thoughtsTokenCount", "thoughtTokenCount"); ok {
		ms[ReasoningTokens] = v
	}
	if v, ok := intAt(meta, "totalTokenCount"); ok {
		ms[TotalTokens] = v
	}
	return ms
}

// intAt returns the first numeric value found under paths.
func intAt(res gjson.Result, paths ...string) (int, bool) {
	for _, p := range paths {
		v := res.Get(p)
		if v.Type == gjson.Number {
			return int(v.Int()), true
		}
	}
	return 0, false
}
