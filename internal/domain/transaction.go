package domain

import (
	"strings"
	"time"
)

// Transaction represents a single captured HTTP(S) request/response pair
// delivered by the capture engine. IDs are assigned by the store at append
// time and are strictly increasing, never reused.
type Transaction struct {
	ID              int64   `json:"id"`
	Timestamp       float64 `json:"timestamp"` // capture time, unix seconds
	Method          string  `json:"method" validate:"required"`
	URL             string  `json:"url" validate:"required"`
	Host            string  `json:"host" validate:"required"`
	Path            string  `json:"path"`
	Protocol        string  `json:"protocol" validate:"omitempty,oneof=http https"`
	RequestHeaders  Headers `json:"request_headers"`
	RequestBody     string  `json:"request_body"`
	ResponseStatus  *int    `json:"response_status"` // nil: no response arrived
	ResponseHeaders Headers `json:"response_headers"`
	ResponseBody    string  `json:"response_body"`
	Duration        float64 `json:"duration" validate:"gte=0"` // seconds
	Analyzed        bool    `json:"analyzed"`
	Notes           string  `json:"notes"`
}

// CapturedAt converts the float timestamp to wall-clock time.
func (t Transaction) CapturedAt() time.Time {
	sec := int64(t.Timestamp)
	nsec := int64((t.Timestamp - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

// StatusOrZero returns the response status, or 0 when the transaction
// failed before any response arrived.
func (t Transaction) StatusOrZero() int {
	if t.ResponseStatus == nil {
		return 0
	}
	return *t.ResponseStatus
}

// Header is one name/value pair. Headers keep capture order, which a plain
// map would lose on round trips.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Headers []Header

// Get returns the first value for name, case-insensitively.
func (h Headers) Get(name string) (string, bool) {
	for _, p := range h {
		if strings.EqualFold(p.Name, name) {
			return p.Value, true
		}
	}
	return "", false
}

// Clone returns an independent copy.
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	out := make(Headers, len(h))
	copy(out, h)
	return out
}

// Set replaces every value for name, or appends when absent.
func (h Headers) Set(name, value string) Headers {
	replaced := false
	out := make(Headers, 0, len(h)+1)
	for _, p := range h {
		if strings.EqualFold(p.Name, name) {
			if !replaced {
				out = append(out, Header{Name: p.Name, Value: value})
				replaced = true
			}
			continue
		}
		out = append(out, p)
	}
	if !replaced {
		out = append(out, Header{Name: name, Value: value})
	}
	return out
}

// TruncationMarker is appended to request/response bodies cut at the store's
// size ceiling so a truncated body is never mistaken for a complete one.
const TruncationMarker = "\n…[truncated]"
