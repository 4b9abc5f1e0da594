package agent

import (
	"encoding/json"
	"strings"
)

// redactSensitiveKeys is the fixed set of object-key substrings spec §4.4
// requires to be redacted, matched case-insensitively.
var redactSensitiveKeys = []string{
	"api_key", "apikey", "secret", "token", "authorization", "cookie",
	"password", "privatekey", "secretkey",
}

// maxRedactedStringLen truncates any string value over this length before
// it reaches telemetry, per spec §4.4.
const maxRedactedStringLen = 2048

const redactedValue = "[REDACTED]"
const truncationMarker = "...[truncated]"

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, needle := range redactSensitiveKeys {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return false
}

// redactDeep walks a decoded JSON value (map[string]any / []any / scalars)
// and returns a copy with any object value whose key matches
// isSensitiveKey replaced by redactedValue, and any string over
// maxRedactedStringLen truncated. Grounded on the teacher's
// internal/observability.Logger (redacts at emit time, wrapping the
// underlying sink) but retargeted from content-regex matching to the
// spec's key-substring rule.
func redactDeep(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if isSensitiveKey(k) {
				out[k] = redactedValue
				continue
			}
			out[k] = redactDeep(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = redactDeep(val)
		}
		return out
	case string:
		if len(t) > maxRedactedStringLen {
			return t[:maxRedactedStringLen] + truncationMarker
		}
		return t
	default:
		return v
	}
}

// RedactStreamOptions deep-scans an arbitrary streamOptions value (decoded
// from JSON or a plain map) and returns a redacted copy suitable for
// telemetry, applying spec §4.4's rule.
func RedactStreamOptions(streamOptions any) any {
	raw, err := json.Marshal(streamOptions)
	if err != nil {
		return streamOptions
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return streamOptions
	}
	return redactDeep(decoded)
}

// RedactJSON applies the same key-substring redaction rule to a raw JSON
// document, returning the re-marshaled redacted bytes. Used both for
// telemetry payloads and for tool results before persistence, per
// DESIGN.md's "one shared key-substring matcher" decision.
func RedactJSON(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return raw
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return raw
	}
	redacted, err := json.Marshal(redactDeep(decoded))
	if err != nil {
		return raw
	}
	return redacted
}
