package transcript

import (
	"strings"
	"sync"
)

// SecretGuard redacts known secret values, such as API keys, from text
// before it is stored.
type SecretGuard struct {
	mu          sync.RWMutex
	knownValues map[string]string // value -> name
}

// NewSecretGuard returns an empty guard.
func NewSecretGuard() *SecretGuard {
	return &SecretGuard{knownValues: make(map[string]string)}
}

// AddKnownSecret adds a value to the redaction list under name.
func (sg *SecretGuard) AddKnownSecret(name, value string) {
	if value == "" {
		return
	}
	sg.mu.Lock()
	defer sg.mu.Unlock()
	sg.knownValues[value] = name
}

// LoadEnv registers the values of the named environment variables.
// Unset variables are skipped.
func (sg *SecretGuard) LoadEnv(getenv func(string) string, names ...string) {
	for _, name := range names {
		sg.AddKnownSecret(name, getenv(name))
	}
}

// Redact replaces known secret values with [REDACTED:name].
func (sg *SecretGuard) Redact(text string) string {
	sg.mu.RLock()
	defer sg.mu.RUnlock()
	for val, name := range sg.knownValues {
		if strings.Contains(text, val) {
			text = strings.ReplaceAll(text, val, "[REDACTED:"+name+"]")
		}
	}
	return text
}
