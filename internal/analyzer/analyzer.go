package analyzer

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"trafficlens/internal/domain"
)

// Analyzer applies a fixed heuristic rule set to captured transactions.
// Rules never fail a run: a rule that cannot parse its input is skipped.
type Analyzer struct {
	// SlowThreshold marks requests slower than this (seconds) as findings.
	SlowThreshold float64
	// LargeBodyBytes marks response bodies larger than this as findings.
	LargeBodyBytes int
}

func New() *Analyzer {
	return &Analyzer{SlowThreshold: 1.0, LargeBodyBytes: 512 << 10}
}

var (
	sqlInjectionRe = regexp.MustCompile(`(?i)(union\s+select|or\s+1\s*=\s*1|';\s*--|drop\s+table|sleep\s*\(|information_schema)`)
	scriptInjectRe = regexp.MustCompile(`(?i)(<script\b|javascript:|onerror\s*=|onload\s*=|document\.cookie)`)
	credParamRe    = regexp.MustCompile(`(?i)^(password|passwd|pwd|token|access_token|api_key|apikey|secret|auth)$`)
	longHexRe      = regexp.MustCompile(`^[0-9a-fA-F]{32,}$`)
	longBase64Re   = regexp.MustCompile(`^[A-Za-z0-9+/_=-]{40,}$`)
	versionPathRe  = regexp.MustCompile(`(^|/)v\d+(/|$)`)
)

// Analyze runs every rule against one transaction.
func (a *Analyzer) Analyze(tx domain.Transaction) []domain.Finding {
	var out []domain.Finding
	add := func(cat domain.Category, sev domain.Severity, msg string) {
		out = append(out, domain.Finding{TransactionID: tx.ID, Category: cat, Severity: sev, Message: msg})
	}

	a.securityRules(tx, add)
	a.performanceRules(tx, add)
	a.bestPracticeRules(tx, add)
	return out
}

func (a *Analyzer) securityRules(tx domain.Transaction, add func(domain.Category, domain.Severity, string)) {
	if tx.Protocol == "http" && !isLocalHost(tx.Host) {
		add(domain.CategorySecurity, domain.SeverityWarning, "plaintext HTTP to non-local host "+tx.Host)
	}

	// Header-presence rules only apply when response headers were captured;
	// an empty header set degrades them to skipped rather than guessing.
	if len(tx.ResponseHeaders) > 0 {
		if _, ok := tx.ResponseHeaders.Get("Strict-Transport-Security"); !ok && tx.Protocol == "https" {
			add(domain.CategorySecurity, domain.SeverityWarning, "missing Strict-Transport-Security response header")
		}
		if _, ok := tx.ResponseHeaders.Get("X-Content-Type-Options"); !ok {
			add(domain.CategorySecurity, domain.SeverityInfo, "missing X-Content-Type-Options response header")
		}
		if _, ok := tx.ResponseHeaders.Get("X-Frame-Options"); !ok {
			add(domain.CategorySecurity, domain.SeverityInfo, "missing X-Frame-Options response header")
		}
	}

	if names := credentialParamsInQuery(tx.URL); len(names) > 0 {
		add(domain.CategorySecurity, domain.SeverityHigh,
			"credential-shaped values in URL query: "+strings.Join(names, ", "))
	}

	if tx.RequestBody != "" {
		if sqlInjectionRe.MatchString(tx.RequestBody) {
			add(domain.CategorySecurity, domain.SeverityHigh, "request body matches SQL injection signature")
		}
		if scriptInjectRe.MatchString(tx.RequestBody) {
			add(domain.CategorySecurity, domain.SeverityHigh, "request body matches script injection signature")
		}
	}

	if v, ok := tx.RequestHeaders.Get("Authorization"); ok && strings.HasPrefix(v, "Basic ") {
		add(domain.CategorySecurity, domain.SeverityWarning, "HTTP Basic authentication in use")
	}
}

func (a *Analyzer) performanceRules(tx domain.Transaction, add func(domain.Category, domain.Severity, string)) {
	if a.SlowThreshold > 0 && tx.Duration > a.SlowThreshold {
		add(domain.CategoryPerformance, domain.SeverityWarning,
			fmt.Sprintf("slow request: %.0fms (threshold %.0fms)", tx.Duration*1000, a.SlowThreshold*1000))
	}
	if a.LargeBodyBytes > 0 && len(tx.ResponseBody) > a.LargeBodyBytes {
		add(domain.CategoryPerformance, domain.SeverityInfo,
			fmt.Sprintf("large response body: %d bytes", len(tx.ResponseBody)))
	}
	if len(tx.ResponseHeaders) > 0 {
		if strings.EqualFold(tx.Method, "GET") && tx.StatusOrZero() == 200 {
			_, cc := tx.ResponseHeaders.Get("Cache-Control")
			_, exp := tx.ResponseHeaders.Get("Expires")
			_, etag := tx.ResponseHeaders.Get("ETag")
			if !cc && !exp && !etag {
				add(domain.CategoryPerformance, domain.SeverityInfo, "cacheable GET response without caching headers")
			}
		}
		if _, ok := tx.ResponseHeaders.Get("Content-Encoding"); !ok && len(tx.ResponseBody) > 1024 {
			add(domain.CategoryPerformance, domain.SeverityInfo, "response served without content compression")
		}
	}
}

func (a *Analyzer) bestPracticeRules(tx domain.Transaction, add func(domain.Category, domain.Severity, string)) {
	if looksLikeAPI(tx) && !versionPathRe.MatchString(tx.Path) {
		add(domain.CategoryBestPractice, domain.SeverityInfo, "API path carries no version indicator")
	}
	switch strings.ToUpper(tx.Method) {
	case "GET", "HEAD", "DELETE":
		if tx.RequestBody != "" {
			add(domain.CategoryBestPractice, domain.SeverityWarning,
				strings.ToUpper(tx.Method)+" request carries a body")
		}
	}
}

func looksLikeAPI(tx domain.Transaction) bool {
	if strings.Contains(tx.Path, "/api/") || strings.HasPrefix(tx.Path, "/api") {
		return true
	}
	return strings.HasPrefix(strings.ToLower(tx.Host), "api.")
}

func isLocalHost(host string) bool {
	h := strings.ToLower(host)
	if i := strings.LastIndex(h, ":"); i > 0 && !strings.Contains(h, "]") {
		h = h[:i]
	}
	switch h {
	case "localhost", "127.0.0.1", "::1", "[::1]", "0.0.0.0":
		return true
	}
	return strings.HasSuffix(h, ".local") || strings.HasSuffix(h, ".localhost") ||
		strings.HasPrefix(h, "127.") || strings.HasPrefix(h, "192.168.") || strings.HasPrefix(h, "10.")
}

// credentialParamsInQuery returns query parameter names whose name or value
// looks credential-shaped. A URL that does not parse degrades the rule to
// skipped rather than raising.
func credentialParamsInQuery(raw string) []string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return nil
	}
	vals, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return nil
	}
	var names []string
	for name, vv := range vals {
		if credParamRe.MatchString(name) {
			names = append(names, name)
			continue
		}
		for _, v := range vv {
			if longHexRe.MatchString(v) || longBase64Re.MatchString(v) {
				names = append(names, name)
				break
			}
		}
	}
	sort.Strings(names) // map order would make the message flap run-to-run
	return names
}
