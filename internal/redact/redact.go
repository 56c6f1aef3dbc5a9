// Package redact masks secrets and PII before they reach audit output.
// Decoded payloads routinely contain credentials, so anything logged about a
// run is scrubbed first.
package redact

import (
	"regexp"
	"strings"
)

const redactedSecret = "[REDACTED_SECRET]"

var (
	emailRe     = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	kvSecretRe  = regexp.MustCompile(`(?i)((?:api|token|secret|key|password)[-_ ]*(?:id|key|token)?\s*[:=]\s*)(['"]?)([A-Za-z0-9+/=_\-]{8,})(['"]?)`)
	bearerRe    = regexp.MustCompile(`(?i)\b(bearer|token)\s+([A-Za-z0-9._\-]{10,})`)
	longTokenRe = regexp.MustCompile(`\b[A-Za-z0-9]{32,}\b`)

	sensitiveKeys = map[string]struct{}{
		"token":    {},
		"secret":   {},
		"password": {},
		"api_key":  {},
	}
)

// String redacts common secret patterns and PII from the provided string.
func String(in string) string {
	if strings.TrimSpace(in) == "" {
		return in
	}
	masked := emailRe.ReplaceAllString(in, "[REDACTED_EMAIL]")
	masked = kvSecretRe.ReplaceAllString(masked, `$1$2`+redactedSecret+`$4`)
	masked = bearerRe.ReplaceAllString(masked, `$1 `+redactedSecret)
	masked = longTokenRe.ReplaceAllString(masked, redactedSecret)
	return masked
}

// Map redacts recognised sensitive values within a metadata map. Values under
// sensitive keys are masked wholesale; everything else goes through String.
func Map(in map[string]any) map[string]any {
	if len(in) == 0 {
		return in
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if _, ok := sensitiveKeys[strings.ToLower(k)]; ok {
			out[k] = redactedSecret
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = String(s)
			continue
		}
		out[k] = v
	}
	return out
}
