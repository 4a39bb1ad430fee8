// Package keyring stores provider API keys in the system keychain.
package keyring

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const serviceName = "alkime-dictate"

// ErrNotFound is returned when no key is stored for a provider.
var ErrNotFound = keyring.ErrNotFound

// APIKey is a keychain entry.
type APIKey string

const (
	OpenAI    APIKey = "openai-api-key"
	Anthropic APIKey = "anthropic-api-key"
	Groq      APIKey = "groq-api-key"
)

// AllAPIKeys returns every known entry.
func AllAPIKeys() []APIKey {
	return []APIKey{OpenAI, Anthropic, Groq}
}

// DisplayName is the provider name users type, e.g. "groq".
func (k APIKey) DisplayName() string {
	switch k {
	case OpenAI:
		return "openai"
	case Anthropic:
		return "anthropic"
	case Groq:
		return "groq"
	default:
		return string(k)
	}
}

// Get reads a key from the keychain.
func Get(apiKey APIKey) (string, error) {
	value, err := keyring.Get(serviceName, string(apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to get %s from keychain: %w", apiKey.DisplayName(), err)
	}

	return value, nil
}

// Lookup reads a key, treating a missing entry as empty.
func Lookup(apiKey APIKey) (string, error) {
	value, err := Get(apiKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return value, err
}

// Set stores a key in the keychain.
func Set(apiKey APIKey, value string) error {
	if err := keyring.Set(serviceName, string(apiKey), value); err != nil {
		return fmt.Errorf("failed to set %s in keychain: %w", apiKey.DisplayName(), err)
	}

	return nil
}

// Delete removes a key from the keychain.
func Delete(apiKey APIKey) error {
	if err := keyring.Delete(serviceName, string(apiKey)); err != nil {
		return fmt.Errorf("failed to delete %s from keychain: %w", apiKey.DisplayName(), err)
	}

	return nil
}

// IsSet reports whether a key exists in the keychain.
func IsSet(apiKey APIKey) bool {
	_, err := keyring.Get(serviceName, string(apiKey))

	return err == nil
}

// APIKeyFromServiceName maps a provider name such as "openai" to its entry.
func APIKeyFromServiceName(name string) (APIKey, error) {
	for _, k := range AllAPIKeys() {
		if k.DisplayName() == name {
			return k, nil
		}
	}

	return "", fmt.Errorf("unknown service: %s", name)
}
