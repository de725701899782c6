package utils

import (
	"log/slog"
	"net/url"
	"strings"
)

const redacted = "[REDACTED]"

func isSensitiveKey(key string) bool {
	switch strings.ToLower(key) {
	case "authorization", "signature", "x-amz-signature", "x-amz-security-token",
		"secret_access_key", "secretaccesskey", "session_token", "sessiontoken",
		"sse_customer_key", "x-amz-server-side-encryption-customer-key":
		return true
	}
	return false
}

// Query parameters that carry signatures or tokens in presigned URLs.
var sensitiveParams = []string{"X-Amz-Signature", "X-Amz-Security-Token", "Signature"}

// RedactAttr is a slog ReplaceAttr hook that masks credential attributes and
// the signatures of presigned URLs.
func RedactAttr(_ []string, a slog.Attr) slog.Attr {
	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, redacted)
	}
	if a.Value.Kind() != slog.KindString {
		return a
	}
	s := a.Value.String()
	if !strings.Contains(s, "?") {
		return a
	}
	if masked, ok := RedactURL(s); ok {
		return slog.String(a.Key, masked)
	}
	return a
}

// RedactURL masks signature and token query parameters of raw. It reports
// false when raw is not a URL or carries none of them.
func RedactURL(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw, false
	}
	q := u.Query()
	changed := false
	for _, p := range sensitiveParams {
		if q.Has(p) {
			q.Set(p, redacted)
			changed = true
		}
	}
	if !changed {
		return raw, false
	}
	u.RawQuery = q.Encode()
	return u.String(), true
}
