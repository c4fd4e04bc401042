package utils

import (
	"strings"
)

// -----------------------------------------------------------------------------

// MaskAPIKey redacts credential-looking query values from an endpoint URL so
// it can be logged. Everything after "key=" style parameters is masked.
func MaskAPIKey(endpoint string) string {
	idx := strings.Index(endpoint, "?")
	if idx < 0 {
		return endpoint
	}

	base := endpoint[:idx]
	query := endpoint[idx+1:]

	parts := strings.Split(query, "&")
	for i, part := range parts {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.ToLower(kv[0])
		if strings.Contains(key, "key") || strings.Contains(key, "token") || strings.Contains(key, "secret") {
			parts[i] = kv[0] + "=****"
		}
	}
	return base + "?" + strings.Join(parts, "&")
}

// -----------------------------------------------------------------------------

// ClampNonNegative floors a millisecond latency figure at zero. Clock skew
// between the upstream candle clock and the local clock can make it negative.
func ClampNonNegative(ms int64) int64 {
	if ms < 0 {
		return 0
	}
	return ms
}
