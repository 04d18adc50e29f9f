package redact

import (
	"strings"

	"trafficlens/internal/domain"
)

var sensitiveHeaders = []string{"authorization", "cookie", "set-cookie", "x-api-key", "proxy-authorization"}

// Headers masks credential-bearing header values, keeping the names so the
// shape of the capture stays readable in logs and CLI output.
func Headers(h domain.Headers) domain.Headers {
	out := make(domain.Headers, len(h))
	for i, p := range h {
		out[i] = p
		if isSensitiveHeader(p.Name) {
			out[i].Value = Token(p.Value)
		}
	}
	return out
}

// Token keeps a short prefix of a credential and masks the rest.
func Token(v string) string {
	const keep = 12
	if len(v) <= keep {
		return "***"
	}
	return v[:keep] + "…***"
}

func isSensitiveHeader(name string) bool {
	name = strings.ToLower(name)
	for _, s := range sensitiveHeaders {
		if name == s {
			return true
		}
	}
	return false
}
