package adapter

import (
	"fmt"
	"net/http"
	"strings"
)

// KeySource records which credential paid for a call.
type KeySource string

const (
	KeySourceGateway KeySource = "gateway"
	KeySourceBYOK    KeySource = "byok"
)

// BYOKKey is a caller-supplied provider credential.
type BYOKKey struct {
	ID       string
	Provider string
	Key      string
}

// ResolvedKey is the credential an executor will use.
type ResolvedKey struct {
	Key    string
	Source KeySource
	BYOKID string
}

// KeyResolver picks the credential for a provider. A BYOK key for the
// provider wins over the platform key.
type KeyResolver interface {
	ResolveKey(provider string, byok *BYOKKey) (ResolvedKey, bool)
}

// StaticKeys maps provider id to platform key.
type StaticKeys map[string]string

// ResolveKey implements KeyResolver.
func (k StaticKeys) ResolveKey(provider string, byok *BYOKKey) (ResolvedKey, bool) {
	provider = strings.ToLower(provider)
	if byok != nil && byok.Key != "" && (byok.Provider == "" || strings.EqualFold(byok.Provider, provider)) {
		return ResolvedKey{Key: byok.Key, Source: KeySourceBYOK, BYOKID: byok.ID}, true
	}
	if key := k[provider]; key != "" {
		return ResolvedKey{Key: key, Source: KeySourceGateway}, true
	}
	return ResolvedKey{}, false
}

// resolveKey returns the credential or the failed result to hand back.
func resolveKey(ec *ExecContext, provider string) (ResolvedKey, *Result) {
	var keys KeyResolver = StaticKeys(nil)
	if ec.Keys != nil {
		keys = ec.Keys
	}
	key, ok := keys.ResolveKey(provider, ec.BYOK)
	if !ok {
		return ResolvedKey{}, failed(http.StatusUnauthorized, FailureAuth, fmt.Sprintf("no %s API key configured", provider))
	}
	return key, nil
}
