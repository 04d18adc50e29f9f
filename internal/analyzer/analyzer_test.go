package analyzer

import (
	"strings"
	"testing"

	"trafficlens/internal/domain"
)

func mk(method, rawURL, host, protocol string) domain.Transaction {
	status := 200
	return domain.Transaction{
		ID:             1,
		Method:         method,
		URL:            rawURL,
		Host:           host,
		Path:           pathOf(rawURL),
		Protocol:       protocol,
		ResponseStatus: &status,
		Duration:       0.1,
	}
}

func pathOf(rawURL string) string {
	if i := strings.Index(rawURL, "://"); i >= 0 {
		rest := rawURL[i+3:]
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			p := rest[j:]
			if k := strings.IndexByte(p, '?'); k >= 0 {
				p = p[:k]
			}
			return p
		}
	}
	return "/"
}

func countCategory(fs []domain.Finding, cat domain.Category) int {
	n := 0
	for _, f := range fs {
		if f.Category == cat {
			n++
		}
	}
	return n
}

func hasMessage(fs []domain.Finding, fragment string) bool {
	for _, f := range fs {
		if strings.Contains(f.Message, fragment) {
			return true
		}
	}
	return false
}

func TestPlaintextToRemoteHost(t *testing.T) {
	a := New()
	fs := a.Analyze(mk("GET", "http://example.com/page", "example.com", "http"))
	if countCategory(fs, domain.CategorySecurity) != 1 {
		t.Fatalf("want exactly 1 security finding, got %v", fs)
	}
	if !hasMessage(fs, "plaintext HTTP") {
		t.Fatalf("missing plaintext finding in %v", fs)
	}
}

func TestPlaintextToLocalHostIsFine(t *testing.T) {
	a := New()
	for _, host := range []string{"localhost", "127.0.0.1", "localhost:8080", "192.168.1.5", "dev.local"} {
		fs := a.Analyze(mk("GET", "http://"+host+"/page", host, "http"))
		if hasMessage(fs, "plaintext HTTP") {
			t.Fatalf("host %s should not trigger the plaintext rule", host)
		}
	}
}

func TestCleanTransactionHasNoSecurityFindings(t *testing.T) {
	a := New()
	fs := a.Analyze(mk("GET", "https://example.com/page", "example.com", "https"))
	if n := countCategory(fs, domain.CategorySecurity); n != 0 {
		t.Fatalf("want 0 security findings, got %d: %v", n, fs)
	}
}

func TestMissingSecurityHeaders(t *testing.T) {
	a := New()
	tx := mk("GET", "https://example.com/page", "example.com", "https")
	tx.ResponseHeaders = domain.Headers{{Name: "Content-Type", Value: "text/html"}}
	fs := a.Analyze(tx)
	for _, want := range []string{"Strict-Transport-Security", "X-Content-Type-Options", "X-Frame-Options"} {
		if !hasMessage(fs, want) {
			t.Fatalf("want missing-header finding for %s, got %v", want, fs)
		}
	}

	// absent header capture degrades the rules to skipped
	tx.ResponseHeaders = nil
	fs = a.Analyze(tx)
	if hasMessage(fs, "Strict-Transport-Security") {
		t.Fatalf("header rules must not fire without captured headers: %v", fs)
	}
}

func TestCredentialsInQuery(t *testing.T) {
	a := New()
	tx := mk("GET", "https://example.com/login?password=hunter2", "example.com", "https")
	fs := a.Analyze(tx)
	if !hasMessage(fs, "credential-shaped") {
		t.Fatalf("want credential finding, got %v", fs)
	}
	for _, f := range fs {
		if strings.Contains(f.Message, "credential-shaped") && f.Severity != domain.SeverityHigh {
			t.Fatalf("credential finding must be high severity, got %s", f.Severity)
		}
	}

	tx = mk("GET", "https://example.com/x?session=0123456789abcdef0123456789abcdef", "example.com", "https")
	if fs := a.Analyze(tx); !hasMessage(fs, "credential-shaped") {
		t.Fatalf("long hex value should trigger the rule, got %v", fs)
	}

	tx = mk("GET", "https://example.com/x?page=2", "example.com", "https")
	if fs := a.Analyze(tx); hasMessage(fs, "credential-shaped") {
		t.Fatalf("plain pagination must not trigger the rule: %v", fs)
	}
}

func TestCredentialNamesAreSorted(t *testing.T) {
	a := New()
	tx := mk("GET", "https://example.com/login?token=x&password=y&auth=z", "example.com", "https")
	fs := a.Analyze(tx)
	want := "credential-shaped values in URL query: auth, password, token"
	if !hasMessage(fs, want) {
		t.Fatalf("names must come back sorted regardless of map order, got %v", fs)
	}
}

func TestInjectionSignatures(t *testing.T) {
	a := New()
	tx := mk("POST", "https://example.com/q", "example.com", "https")
	tx.RequestBody = `q=1 UNION SELECT name FROM users`
	if fs := a.Analyze(tx); !hasMessage(fs, "SQL injection") {
		t.Fatalf("want SQLi finding, got %v", fs)
	}
	tx.RequestBody = `comment=<script>alert(1)</script>`
	if fs := a.Analyze(tx); !hasMessage(fs, "script injection") {
		t.Fatalf("want XSS finding, got %v", fs)
	}
}

func TestBasicAuthWarning(t *testing.T) {
	a := New()
	tx := mk("GET", "https://example.com/p", "example.com", "https")
	tx.RequestHeaders = domain.Headers{{Name: "Authorization", Value: "Basic dXNlcjpwYXNz"}}
	if fs := a.Analyze(tx); !hasMessage(fs, "Basic authentication") {
		t.Fatalf("want basic auth finding, got %v", fs)
	}
	tx.RequestHeaders = domain.Headers{{Name: "Authorization", Value: "Bearer tok"}}
	if fs := a.Analyze(tx); hasMessage(fs, "Basic authentication") {
		t.Fatalf("bearer auth must not trigger the rule")
	}
}

func TestSlowRequest(t *testing.T) {
	a := New()
	tx := mk("GET", "https://example.com/p", "example.com", "https")
	tx.Duration = 2.5
	fs := a.Analyze(tx)
	if !hasMessage(fs, "slow request") {
		t.Fatalf("want slow finding, got %v", fs)
	}
	if !hasMessage(fs, "2500ms") {
		t.Fatalf("slow finding should carry the duration, got %v", fs)
	}
	tx.Duration = 0.9
	if fs := a.Analyze(tx); hasMessage(fs, "slow request") {
		t.Fatalf("sub-threshold request must not be flagged")
	}
}

func TestLargeAndUncompressedBody(t *testing.T) {
	a := New()
	a.LargeBodyBytes = 100
	tx := mk("GET", "https://example.com/p", "example.com", "https")
	tx.ResponseBody = strings.Repeat("z", 2000)
	tx.ResponseHeaders = domain.Headers{{Name: "Cache-Control", Value: "max-age=60"}}
	fs := a.Analyze(tx)
	if !hasMessage(fs, "large response body") {
		t.Fatalf("want large body finding, got %v", fs)
	}
	if !hasMessage(fs, "without content compression") {
		t.Fatalf("want compression finding, got %v", fs)
	}

	tx.ResponseHeaders = append(tx.ResponseHeaders, domain.Header{Name: "Content-Encoding", Value: "gzip"})
	if fs := a.Analyze(tx); hasMessage(fs, "without content compression") {
		t.Fatalf("gzip response must not be flagged")
	}
}

func TestCacheableGETWithoutCachingHeaders(t *testing.T) {
	a := New()
	tx := mk("GET", "https://example.com/p", "example.com", "https")
	tx.ResponseHeaders = domain.Headers{{Name: "Content-Type", Value: "application/json"}}
	if fs := a.Analyze(tx); !hasMessage(fs, "without caching headers") {
		t.Fatalf("want caching finding, got %v", fs)
	}
	tx.ResponseHeaders = append(tx.ResponseHeaders, domain.Header{Name: "ETag", Value: `"abc"`})
	if fs := a.Analyze(tx); hasMessage(fs, "without caching headers") {
		t.Fatalf("ETag satisfies the caching rule")
	}
}

func TestBestPracticeRules(t *testing.T) {
	a := New()
	tx := mk("GET", "https://api.example.com/users", "api.example.com", "https")
	if fs := a.Analyze(tx); !hasMessage(fs, "no version indicator") {
		t.Fatalf("unversioned API path should be flagged, got %v", fs)
	}
	tx = mk("GET", "https://api.example.com/v1/users", "api.example.com", "https")
	if fs := a.Analyze(tx); hasMessage(fs, "no version indicator") {
		t.Fatalf("versioned path must not be flagged")
	}

	tx = mk("GET", "https://example.com/p", "example.com", "https")
	tx.RequestBody = "why"
	if fs := a.Analyze(tx); !hasMessage(fs, "GET request carries a body") {
		t.Fatalf("GET with body should be flagged, got %v", fs)
	}
}

func TestUnparseableURLSkipsQueryRule(t *testing.T) {
	a := New()
	tx := mk("GET", "http://example.com/%zz?password=x", "example.com", "https")
	fs := a.Analyze(tx)
	if hasMessage(fs, "credential-shaped") {
		t.Fatalf("unparseable URL must degrade the rule to skipped: %v", fs)
	}
}
