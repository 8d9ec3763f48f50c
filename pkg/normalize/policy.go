package normalize

import "strings"

// Protocol identifies the wire shape a request arrived in.
type Protocol string

const (
	ProtocolNone            Protocol = ""
	ProtocolChatCompletions Protocol = "openai.chat.completions"
	ProtocolResponses       Protocol = "openai.responses"
	ProtocolMessages        Protocol = "anthropic.messages"
)

// ParseProtocol accepts the canonical tag or a short alias.
func ParseProtocol(s string) (Protocol, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ProtocolNone, true
	case string(ProtocolChatCompletions), "chat", "chat.completions":
		return ProtocolChatCompletions, true
	case string(ProtocolResponses), "responses":
		return ProtocolResponses, true
	case string(ProtocolMessages), "messages":
		return ProtocolMessages, true
	}
	return ProtocolNone, false
}

const (
	strictTemperatureMax = 1.0
	looseTemperatureMax  = 2.0

	// DefaultMaxTokens fills the output ceiling for providers that require one.
	DefaultMaxTokens = 4096
)

// TemperatureCeiling is the protocol-level temperature maximum.
func (p Protocol) TemperatureCeiling() float64 {
	if p == ProtocolMessages {
		return strictTemperatureMax
	}
	return looseTemperatureMax
}

type providerPolicy struct {
	temperatureMax    float64
	requiresMaxTokens bool
	defaultSummary    string
}

var policies = map[string]providerPolicy{
	"anthropic": {temperatureMax: strictTemperatureMax, requiresMaxTokens: true},
	"openai":    {temperatureMax: looseTemperatureMax, defaultSummary: "auto"},
}

func policyFor(providerID string) providerPolicy {
	if p, ok := policies[strings.ToLower(providerID)]; ok {
		return p
	}
	return providerPolicy{temperatureMax: looseTemperatureMax}
}

// ProviderTemperatureCeiling is the provider-level temperature maximum.
func ProviderTemperatureCeiling(providerID string) float64 {
	return policyFor(providerID).temperatureMax
}

// RequiresMaxTokens reports whether the provider rejects requests without an
// explicit output-token ceiling.
func RequiresMaxTokens(providerID string) bool {
	return policyFor(providerID).requiresMaxTokens
}
