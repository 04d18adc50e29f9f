// Package replay re-issues a stored transaction over the network, verbatim
// or with per-field overrides. Results are returned to the caller and never
// written back to the store implicitly.
package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trafficlens/internal/domain"
	"trafficlens/internal/usecase"
)

// Overrides replaces selected parts of the original request. A nil field
// keeps the stored value; Headers are applied on top of the originals.
type Overrides struct {
	Method  *string
	URL     *string
	Body    *string
	Headers domain.Headers
}

// Result summarizes one replayed request.
type Result struct {
	ReplayID        string         `json:"replay_id"`
	TransactionID   int64          `json:"transaction_id"`
	Status          int            `json:"status"`
	Duration        float64        `json:"duration"` // seconds
	ResponseHeaders domain.Headers `json:"response_headers"`
	ResponseSummary string         `json:"response_summary"`
}

const summaryLimit = 64 << 10

// hop-by-hop and derived headers that must not be copied onto a new request
var skipHeaders = map[string]struct{}{
	"content-length":    {},
	"connection":        {},
	"keep-alive":        {},
	"transfer-encoding": {},
	"host":              {},
	"proxy-connection":  {},
}

type Engine struct {
	client  *http.Client
	timeout time.Duration
	logger  *zerolog.Logger
}

func New(timeout time.Duration, logger *zerolog.Logger) *Engine {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Engine{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		logger:  logger,
	}
}

// Replay loads transaction id, applies overrides and issues the request.
// The stored transaction is never modified.
func (e *Engine) Replay(ctx context.Context, repo usecase.TransactionRepository, id int64, ov Overrides) (Result, error) {
	tx, err := repo.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}

	method := tx.Method
	if ov.Method != nil {
		method = *ov.Method
	}
	target := tx.URL
	if ov.URL != nil {
		target = *ov.URL
	}
	body := tx.RequestBody
	if ov.Body != nil {
		body = *ov.Body
	}

	req, err := http.NewRequestWithContext(ctx, method, target, strings.NewReader(body))
	if err != nil {
		return Result{}, &domain.ValidationError{Field: "url", Reason: err.Error()}
	}
	for _, h := range tx.RequestHeaders {
		if _, skip := skipHeaders[strings.ToLower(h.Name)]; skip {
			continue
		}
		req.Header.Add(h.Name, h.Value)
	}
	for _, h := range ov.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	e.logger.Debug().Int64("id", id).Str("method", method).Str("url", target).Msg("replaying transaction")

	start := time.Now()
	resp, err := e.client.Do(req)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		if isTimeout(err) {
			return Result{}, fmt.Errorf("replay %d after %.2fs: %w", id, elapsed, domain.ErrTransportTimeout)
		}
		return Result{}, &domain.NetworkError{Op: "replay", URL: target, Err: err}
	}
	defer resp.Body.Close()

	summary, err := io.ReadAll(io.LimitReader(resp.Body, summaryLimit))
	if err != nil {
		return Result{}, &domain.NetworkError{Op: "replay read", URL: target, Err: err}
	}

	res := Result{
		ReplayID:        uuid.NewString(),
		TransactionID:   id,
		Status:          resp.StatusCode,
		Duration:        elapsed,
		ResponseSummary: string(summary),
	}
	for name, vv := range resp.Header {
		for _, v := range vv {
			res.ResponseHeaders = append(res.ResponseHeaders, domain.Header{Name: name, Value: v})
		}
	}
	return res, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
