package automation

import (
	"errors"
	"testing"

	"trafficlens/internal/domain"
)

var testProfile = Profile{
	HostSuffix:      "api.course.test",
	ResourcePattern: `/content_resource/(\d+)/activity`,
	BaseURL:         "https://api.course.test/v1",
	CompletionPath:  "/content_resource/%s/activity",
	ScopeField:      "course_code",
	CompletionEvent: "animation completely watched",
	Origin:          "https://learn.course.test",
}

func authedPOST(id int64, token, body string) domain.Transaction {
	return domain.Transaction{
		ID:     id,
		Method: "POST",
		URL:    "https://api.course.test/v1/content_resource/10/activity",
		Host:   "api.course.test",
		RequestHeaders: domain.Headers{
			{Name: "Authorization", Value: "Bearer " + token},
		},
		RequestBody: body,
	}
}

func TestDeriveSessionPicksNewestBearer(t *testing.T) {
	// snapshot order is most-recent-first
	txs := []domain.Transaction{
		authedPOST(5, "newest-token", `{"course_code":"ABC123"}`),
		authedPOST(3, "older-token", `{"course_code":"OLD"}`),
	}
	sc, err := DeriveSession(txs, testProfile)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if sc.BearerToken != "newest-token" {
		t.Fatalf("token = %q, want newest-token", sc.BearerToken)
	}
	if sc.ScopeCode != "ABC123" {
		t.Fatalf("scope = %q, want ABC123", sc.ScopeCode)
	}
	if sc.DerivedFromID != 5 {
		t.Fatalf("derived from %d, want 5", sc.DerivedFromID)
	}
	if sc.DerivedAt.IsZero() {
		t.Fatalf("DerivedAt must be set")
	}
}

func TestDeriveSessionSkipsNonCandidates(t *testing.T) {
	get := authedPOST(1, "tok", "")
	get.Method = "GET"

	basic := authedPOST(2, "", "")
	basic.RequestHeaders = domain.Headers{{Name: "Authorization", Value: "Basic dXNlcg=="}}

	empty := authedPOST(3, "", "")

	wanted := authedPOST(4, "real-token", `not json at all`)

	sc, err := DeriveSession([]domain.Transaction{get, basic, empty, wanted}, testProfile)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if sc.BearerToken != "real-token" || sc.DerivedFromID != 4 {
		t.Fatalf("derived %+v, want transaction 4", sc)
	}
	if sc.ScopeCode != "" {
		t.Fatalf("unparseable body must yield empty scope, got %q", sc.ScopeCode)
	}
}

func TestDeriveSessionNoCandidate(t *testing.T) {
	_, err := DeriveSession(nil, testProfile)
	if !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("want ErrNoSession, got %v", err)
	}
	_, err = DeriveSession([]domain.Transaction{{Method: "GET", Host: "api.course.test"}}, testProfile)
	if !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("want ErrNoSession, got %v", err)
	}
}

func TestScopeFromBody(t *testing.T) {
	cases := []struct {
		body, want string
	}{
		{`{"course_code":"XYZ"}`, "XYZ"},
		{`{"course_code":4711}`, "4711"},
		{`{"other":"x"}`, ""},
		{`broken`, ""},
		{``, ""},
	}
	for _, tc := range cases {
		if got := scopeFromBody(tc.body, "course_code"); got != tc.want {
			t.Fatalf("scopeFromBody(%q) = %q, want %q", tc.body, got, tc.want)
		}
	}
}
