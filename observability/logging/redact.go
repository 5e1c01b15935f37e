package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields in
// logs, notably API tokens seen by the service layer.
const RedactedValue = "[REDACTED]"

// MaskValue returns the redacted placeholder for non-empty values. Empty
// values pass through unchanged to avoid noise.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskField returns a slog.Attr with the value redacted.
func MaskField(key, value string) slog.Attr {
	return slog.String(key, MaskValue(value))
}
