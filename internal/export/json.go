// Package export serializes stored transactions to interchange formats.
// Both writers stream entry by entry so a large candidate set is never
// materialized in memory.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"trafficlens/internal/domain"
	"trafficlens/internal/usecase"
)

// Format selects the output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatHAR  Format = "har"
)

// ParseFormat maps a user-supplied name (or file extension) to a Format.
func ParseFormat(name string) (Format, error) {
	switch name {
	case "json", ".json":
		return FormatJSON, nil
	case "har", ".har":
		return FormatHAR, nil
	}
	return "", fmt.Errorf("%w: unknown export format %q", domain.ErrInvalidQuery, name)
}

// Export streams every transaction matching f to w in the given format.
// Returns the number of entries written.
func Export(ctx context.Context, svc *usecase.TrafficService, f usecase.TransactionFilter, format Format, w io.Writer) (int, error) {
	switch format {
	case FormatJSON:
		return WriteJSON(ctx, svc, f, w)
	case FormatHAR:
		return WriteHAR(ctx, svc, f, w)
	}
	return 0, fmt.Errorf("%w: unknown export format %q", domain.ErrInvalidQuery, format)
}

// WriteJSON emits a self-describing JSON array preserving every transaction
// field. Export then re-import reconstructs identical values, id aside.
func WriteJSON(ctx context.Context, svc *usecase.TrafficService, f usecase.TransactionFilter, w io.Writer) (int, error) {
	if _, err := io.WriteString(w, "[\n"); err != nil {
		return 0, err
	}
	count := 0
	err := svc.ForEach(ctx, f, func(tx domain.Transaction) (bool, error) {
		raw, err := json.Marshal(tx)
		if err != nil {
			return false, err
		}
		if count > 0 {
			if _, err := io.WriteString(w, ",\n"); err != nil {
				return false, err
			}
		}
		if _, err := w.Write(raw); err != nil {
			return false, err
		}
		count++
		return true, nil
	})
	if err != nil {
		return count, err
	}
	_, err = io.WriteString(w, "\n]\n")
	return count, err
}

// ReadJSON streams transactions out of a JSON export, calling fn per entry.
// Used for re-import; the store assigns fresh ids.
func ReadJSON(r io.Reader, fn func(domain.Transaction) error) (int, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return 0, fmt.Errorf("read export: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return 0, fmt.Errorf("read export: expected JSON array, got %v", tok)
	}
	count := 0
	for dec.More() {
		var tx domain.Transaction
		if err := dec.Decode(&tx); err != nil {
			return count, fmt.Errorf("read export entry %d: %w", count, err)
		}
		if err := fn(tx); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
