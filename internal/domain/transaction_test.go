package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestHeadersGetCaseInsensitive(t *testing.T) {
	h := Headers{{Name: "Content-Type", Value: "text/html"}, {Name: "X-A", Value: "1"}}
	if v, ok := h.Get("content-type"); !ok || v != "text/html" {
		t.Fatalf("Get = %q, %v", v, ok)
	}
	if _, ok := h.Get("Missing"); ok {
		t.Fatalf("missing header must report false")
	}
}

func TestHeadersSet(t *testing.T) {
	h := Headers{
		{Name: "Accept", Value: "a"},
		{Name: "accept", Value: "b"},
		{Name: "Other", Value: "x"},
	}
	out := h.Set("Accept", "c")
	if len(out) != 2 {
		t.Fatalf("Set must collapse duplicates: %v", out)
	}
	if v, _ := out.Get("accept"); v != "c" {
		t.Fatalf("value = %q, want c", v)
	}
	if len(h) != 3 {
		t.Fatalf("Set must not mutate the receiver")
	}

	out = Headers(nil).Set("New", "v")
	if v, ok := out.Get("new"); !ok || v != "v" {
		t.Fatalf("Set on empty headers: %v", out)
	}
}

func TestHeadersClone(t *testing.T) {
	h := Headers{{Name: "A", Value: "1"}}
	c := h.Clone()
	c[0].Value = "2"
	if h[0].Value != "1" {
		t.Fatalf("clone must be independent")
	}
	if Headers(nil).Clone() != nil {
		t.Fatalf("nil clone must stay nil")
	}
}

func TestCapturedAt(t *testing.T) {
	tx := Transaction{Timestamp: 1700000000.5}
	want := time.Unix(1700000000, 500000000).UTC()
	if got := tx.CapturedAt(); !got.Equal(want) {
		t.Fatalf("CapturedAt = %v, want %v", got, want)
	}
}

func TestStatusOrZero(t *testing.T) {
	var tx Transaction
	if tx.StatusOrZero() != 0 {
		t.Fatalf("pending transaction must report 0")
	}
	status := 404
	tx.ResponseStatus = &status
	if tx.StatusOrZero() != 404 {
		t.Fatalf("StatusOrZero = %d", tx.StatusOrZero())
	}
}

func TestSeverityOrderAndWeight(t *testing.T) {
	if !(SeverityInfo < SeverityWarning && SeverityWarning < SeverityHigh) {
		t.Fatalf("severity ordering broken")
	}
	if SeverityInfo.Weight() >= SeverityHigh.Weight() {
		t.Fatalf("weights must rank with severity")
	}
	if SeverityHigh.String() != "high" {
		t.Fatalf("String = %q", SeverityHigh.String())
	}
}

func TestValidationErrorDetection(t *testing.T) {
	err := fmt.Errorf("append: %w", &ValidationError{Field: "method", Reason: "required"})
	if !IsValidation(err) {
		t.Fatalf("wrapped validation error not detected")
	}
	if IsValidation(errors.New("other")) {
		t.Fatalf("plain error misdetected")
	}
}

func TestNetworkErrorUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := &NetworkError{Op: "replay", URL: "http://x", Err: inner}
	if !errors.Is(err, inner) {
		t.Fatalf("NetworkError must unwrap to its cause")
	}
}
