package redis

import (
	"fmt"
	"strings"
)

// KeyBuilder provides environment-aware Redis key building functionality
type KeyBuilder struct {
	prefix string // Environment prefix (staging/prod)
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	if environment == "development" || environment == "staging" || environment == "test" {
		prefix = "staging"
	}

	return &KeyBuilder{
		prefix: prefix,
	}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

func (kb *KeyBuilder) KeyUnitSummary(unitID string) string {
	return kb.BuildKey(fmt.Sprintf(KeyUnitSummary, unitID))
}

func (kb *KeyBuilder) KeyUnitList() string {
	return kb.BuildKey(KeyUnitList)
}

// KeyAuthChallenge is keyed by the lower-cased address so checksum casing
// does not split challenges
func (kb *KeyBuilder) KeyAuthChallenge(address string) string {
	return kb.BuildKey(fmt.Sprintf(KeyAuthChallenge, strings.ToLower(address)))
}

func (kb *KeyBuilder) KeyIdempotency(identity, key string) string {
	return kb.BuildKey(fmt.Sprintf(KeyIdempotency, strings.ToLower(identity), key))
}
