package logging

import (
	"strconv"

	"go.uber.org/zap"
)

// keyPrefixLen is how much of an API key may appear in logs or listings.
const keyPrefixLen = 12

// RedactedString creates a Zap field carrying only the value's length.
// Use for datastore credentials and provider keys.
func RedactedString(key, val string) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val))+"]")
}

// KeyPrefix returns the loggable prefix-only form of an API key.
// The same form is used by the key-listing endpoint; the full secret
// is never rendered outside issuance.
func KeyPrefix(apiKey string) string {
	if len(apiKey) <= keyPrefixLen {
		return apiKey
	}
	return apiKey[:keyPrefixLen] + "..."
}

// APIKey creates a Zap field with the prefix-only form of an API key.
func APIKey(key, val string) zap.Field {
	return zap.String(key, KeyPrefix(val))
}
