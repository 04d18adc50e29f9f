// Package automation re-derives authentication context from captured
// traffic and drives a bounded, rate-limited set of completion requests
// against the originating host. Derivation and target enumeration are pure
// functions over a store snapshot; only the runner touches the network.
package automation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"trafficlens/internal/domain"
)

// Profile describes the remote application the automation targets. Every
// field is configurable; the defaults in the config package mirror the
// courseware deployment this tool was built against.
type Profile struct {
	// HostSuffix scopes all derivation scans, e.g. "zyserver.zybooks.com".
	HostSuffix string
	// ResourcePattern matches action URLs and captures the resource id in
	// its first group, e.g. `/content_resource/(\d+)/activity`.
	ResourcePattern string
	// BaseURL is the API root completion requests are issued against.
	BaseURL string
	// CompletionPath is the action path template; %s is the resource id.
	CompletionPath string
	// ScopeField names the request-body field carrying the tenant/course
	// code, e.g. "zybook_code".
	ScopeField string
	// CompletionEvent is the event string sent in completion metadata.
	CompletionEvent string
	// Origin is sent as the Origin header on completion requests.
	Origin string
}

func (p Profile) resourceRe() (*regexp.Regexp, error) {
	re, err := regexp.Compile(p.ResourcePattern)
	if err != nil {
		return nil, fmt.Errorf("resource pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("resource pattern %q has no capture group", p.ResourcePattern)
	}
	return re, nil
}

// DeriveSession extracts the most recent bearer credential for the profile
// host from a store snapshot ordered most-recent-first. Fails with
// ErrNoSession when no authenticated transaction exists.
func DeriveSession(txs []domain.Transaction, p Profile) (domain.SessionContext, error) {
	for _, tx := range txs {
		if !strings.EqualFold(tx.Method, "POST") {
			continue
		}
		auth, ok := tx.RequestHeaders.Get("Authorization")
		if !ok || !strings.HasPrefix(auth, "Bearer ") {
			continue
		}
		token := strings.TrimPrefix(auth, "Bearer ")
		if token == "" {
			continue
		}
		sc := domain.SessionContext{
			BearerToken:   token,
			DerivedFromID: tx.ID,
			DerivedAt:     time.Now().UTC(),
		}
		sc.ScopeCode = scopeFromBody(tx.RequestBody, p.ScopeField)
		return sc, nil
	}
	return domain.SessionContext{}, domain.ErrNoSession
}

// scopeFromBody pulls the scope identifier out of a captured JSON request
// body. Unparseable bodies yield an empty scope, never an error.
func scopeFromBody(body, field string) string {
	if body == "" || field == "" {
		return ""
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return ""
	}
	switch v := m[field].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}
