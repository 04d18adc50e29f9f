package usecase

import (
	"context"
	"fmt"
	"strings"

	"trafficlens/internal/domain"
)

// TransactionRepository is the single shared mutable resource. Writes are
// serialized among themselves; reads never block on an in-flight append.
type TransactionRepository interface {
	Append(ctx context.Context, tx domain.Transaction) (int64, error)
	Get(ctx context.Context, id int64) (domain.Transaction, error)
	// List returns matches most-recent-first plus the total match count.
	List(ctx context.Context, f TransactionFilter) ([]domain.Transaction, int, error)
	// ForEach streams matches most-recent-first without materializing the
	// result set. The walk stops when fn returns false or an error.
	ForEach(ctx context.Context, f TransactionFilter, fn func(domain.Transaction) (bool, error)) error
	UpdateNotes(ctx context.Context, id int64, notes string) error
	MarkAnalyzed(ctx context.Context, id int64) error
	// Clear removes every transaction atomically and returns the count.
	Clear(ctx context.Context) (int, error)
}

// TransactionFilter composes criteria by logical AND. The zero value matches
// everything. Scope is a host-suffix restriction shared by all components;
// Host is a case-insensitive substring match like the capture tooling used.
type TransactionFilter struct {
	Method   string
	Host     string
	Scope    string
	Protocol string
	Status   *int
	From     float64 // unix seconds, inclusive; 0 means unbounded
	To       float64 // unix seconds, inclusive; 0 means unbounded
	Search   string  // substring across url, bodies and headers
	Limit    int
	Offset   int
}

// Validate fails fast on unsupported criteria instead of silently matching
// everything.
func (f TransactionFilter) Validate() error {
	if f.Protocol != "" && f.Protocol != "http" && f.Protocol != "https" {
		return fmt.Errorf("%w: protocol %q", domain.ErrInvalidQuery, f.Protocol)
	}
	if f.Status != nil && (*f.Status < 100 || *f.Status > 599) {
		return fmt.Errorf("%w: status %d out of range", domain.ErrInvalidQuery, *f.Status)
	}
	if f.From < 0 || f.To < 0 {
		return fmt.Errorf("%w: negative time bound", domain.ErrInvalidQuery)
	}
	if f.From > 0 && f.To > 0 && f.From > f.To {
		return fmt.Errorf("%w: time range inverted", domain.ErrInvalidQuery)
	}
	if f.Limit < 0 || f.Offset < 0 {
		return fmt.Errorf("%w: negative limit/offset", domain.ErrInvalidQuery)
	}
	return nil
}

// Match reports whether tx satisfies every set criterion.
func (f TransactionFilter) Match(tx domain.Transaction) bool {
	if f.Method != "" && !strings.EqualFold(tx.Method, f.Method) {
		return false
	}
	if f.Scope != "" && !hostInScope(tx.Host, f.Scope) {
		return false
	}
	if f.Host != "" && !strings.Contains(strings.ToLower(tx.Host), strings.ToLower(f.Host)) {
		return false
	}
	if f.Protocol != "" && tx.Protocol != f.Protocol {
		return false
	}
	if f.Status != nil && tx.StatusOrZero() != *f.Status {
		return false
	}
	if f.From > 0 && tx.Timestamp < f.From {
		return false
	}
	if f.To > 0 && tx.Timestamp > f.To {
		return false
	}
	if f.Search != "" && !matchSearch(tx, f.Search) {
		return false
	}
	return true
}

func hostInScope(host, scope string) bool {
	host = strings.ToLower(host)
	scope = strings.ToLower(strings.TrimPrefix(scope, "."))
	return host == scope || strings.HasSuffix(host, "."+scope)
}

func matchSearch(tx domain.Transaction, q string) bool {
	q = strings.ToLower(q)
	if strings.Contains(strings.ToLower(tx.URL), q) ||
		strings.Contains(strings.ToLower(tx.RequestBody), q) ||
		strings.Contains(strings.ToLower(tx.ResponseBody), q) {
		return true
	}
	for _, h := range tx.RequestHeaders {
		if strings.Contains(strings.ToLower(h.Name+": "+h.Value), q) {
			return true
		}
	}
	for _, h := range tx.ResponseHeaders {
		if strings.Contains(strings.ToLower(h.Name+": "+h.Value), q) {
			return true
		}
	}
	return false
}
