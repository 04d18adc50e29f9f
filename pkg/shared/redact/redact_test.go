package redact

import (
	"strings"
	"testing"

	"trafficlens/internal/domain"
)

func TestHeadersMasksSensitiveValues(t *testing.T) {
	in := domain.Headers{
		{Name: "Authorization", Value: "Bearer super-secret-token-value"},
		{Name: "Cookie", Value: "session=abcdefghijklmnop"},
		{Name: "Content-Type", Value: "application/json"},
	}
	out := Headers(in)

	if strings.Contains(out[0].Value, "secret-token-value") {
		t.Fatalf("authorization not masked: %q", out[0].Value)
	}
	if strings.Contains(out[1].Value, "abcdefghijklmnop") {
		t.Fatalf("cookie not masked: %q", out[1].Value)
	}
	if out[2].Value != "application/json" {
		t.Fatalf("plain header must pass through: %q", out[2].Value)
	}
	// input untouched
	if in[0].Value != "Bearer super-secret-token-value" {
		t.Fatalf("input mutated: %q", in[0].Value)
	}
}

func TestToken(t *testing.T) {
	if got := Token("short"); got != "***" {
		t.Fatalf("short token = %q", got)
	}
	long := "abcdefghijklmnopqrstuvwxyz"
	got := Token(long)
	if !strings.HasPrefix(got, "abcdefghijkl") || strings.Contains(got, "mnop") {
		t.Fatalf("long token = %q", got)
	}
}
