package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"trafficlens/internal/domain"
	"trafficlens/internal/usecase"
)

// snapshotLimit bounds how far back a run scans the store when deriving
// session context and enumerating targets.
const snapshotLimit = 500

// Config controls one automation run. The delay is a deliberate throttle,
// not an optimization: it keeps the run under remote rate limits.
type Config struct {
	Delay   time.Duration
	DryRun  bool
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{Delay: time.Second, Timeout: 10 * time.Second}
}

// TargetResult records the terminal state of one target after a run.
type TargetResult struct {
	Target     domain.AutomationTarget `json:"target"`
	Status     int                     `json:"status,omitempty"`
	RequestURL string                  `json:"request_url"`
	Err        error                   `json:"-"`
}

// Report summarizes a whole run.
type Report struct {
	RunID           string                `json:"run_id"`
	Session         domain.SessionContext `json:"session"`
	TotalObserved   int                   `json:"total_observed"`
	AlreadyComplete int                   `json:"already_complete"`
	Succeeded       int                   `json:"succeeded"`
	Failed          int                   `json:"failed"`
	Skipped         int                   `json:"skipped"`
	Results         []TargetResult        `json:"results"`
}

type Runner struct {
	svc     *usecase.TrafficService
	profile Profile
	cfg     Config
	client  *http.Client
	logger  *zerolog.Logger
	observe func(state string)
}

// ObserveOutcomes registers a hook called once per target with its terminal
// state. Used to feed the outcome counters.
func (r *Runner) ObserveOutcomes(fn func(state string)) { r.observe = fn }

func (r *Runner) recordOutcome(o domain.TargetOutcome) {
	if r.observe != nil {
		r.observe(string(o))
	}
}

func NewRunner(svc *usecase.TrafficService, profile Profile, cfg Config, logger *zerolog.Logger) *Runner {
	if cfg.Delay <= 0 {
		cfg.Delay = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Runner{
		svc:     svc,
		profile: profile,
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

// snapshot loads the recent transactions for the profile host,
// most-recent-first, as the input to the pure derivation functions.
func (r *Runner) snapshot(ctx context.Context) ([]domain.Transaction, error) {
	txs, _, err := r.svc.List(ctx, usecase.TransactionFilter{
		Scope: r.profile.HostSuffix,
		Limit: snapshotLimit,
	})
	return txs, err
}

// Auth derives the session context without touching the network.
func (r *Runner) Auth(ctx context.Context) (domain.SessionContext, error) {
	txs, err := r.snapshot(ctx)
	if err != nil {
		return domain.SessionContext{}, err
	}
	return DeriveSession(txs, r.profile)
}

// Targets enumerates every candidate action from the captured traffic.
func (r *Runner) Targets(ctx context.Context) ([]domain.AutomationTarget, error) {
	txs, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return EnumerateTargets(txs, r.profile)
}

// Run processes every target that was not already observed complete.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	txs, err := r.snapshot(ctx)
	if err != nil {
		return Report{}, err
	}
	session, err := DeriveSession(txs, r.profile)
	if err != nil {
		return Report{}, err
	}
	targets, err := EnumerateTargets(txs, r.profile)
	if err != nil {
		return Report{}, err
	}

	report := Report{RunID: uuid.NewString(), Session: session, TotalObserved: len(targets)}
	pending := make([]domain.AutomationTarget, 0, len(targets))
	for _, t := range targets {
		if t.ObservedComplete {
			report.AlreadyComplete++
			continue // idempotent: never repeat a completed action
		}
		pending = append(pending, t)
	}
	return r.process(ctx, report, session, pending)
}

// Complete processes only the named resources, honoring the same state
// machine, delay and dry-run rules as a full run.
func (r *Runner) Complete(ctx context.Context, resourceIDs []string) (Report, error) {
	txs, err := r.snapshot(ctx)
	if err != nil {
		return Report{}, err
	}
	session, err := DeriveSession(txs, r.profile)
	if err != nil {
		return Report{}, err
	}
	targets, err := EnumerateTargets(txs, r.profile)
	if err != nil {
		return Report{}, err
	}
	byID := make(map[string]domain.AutomationTarget, len(targets))
	for _, t := range targets {
		byID[t.ResourceID] = t
	}

	report := Report{RunID: uuid.NewString(), Session: session, TotalObserved: len(resourceIDs)}
	pending := make([]domain.AutomationTarget, 0, len(resourceIDs))
	for _, id := range resourceIDs {
		t, ok := byID[id]
		if !ok {
			// explicit selection may name a resource the capture never saw
			t = domain.AutomationTarget{ResourceID: id, Outcome: domain.OutcomeUnattempted}
		}
		pending = append(pending, t)
	}
	return r.process(ctx, report, session, pending)
}

// process drives the per-target state machine. Cancellation is checked
// between targets only, so an in-flight request always reaches a terminal
// state. A 401/403 invalidates the session and halts the remaining targets;
// plain network failures are recorded per target and the run continues.
// There are no automatic retries.
func (r *Runner) process(ctx context.Context, report Report, session domain.SessionContext, pending []domain.AutomationTarget) (Report, error) {
	limiter := rate.NewLimiter(rate.Every(r.cfg.Delay), 1)
	var runErr error

	for _, target := range pending {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		url := r.completionURL(target.ResourceID)

		if r.cfg.DryRun {
			target.Outcome = domain.OutcomeSkippedDryRun
			report.Skipped++
			report.Results = append(report.Results, TargetResult{Target: target, RequestURL: url})
			r.recordOutcome(domain.OutcomeSkippedDryRun)
			r.logger.Info().Str("resource", target.ResourceID).Str("url", url).Msg("dry-run: would send completion")
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			runErr = err
			break
		}

		target.Outcome = domain.OutcomeInFlight
		status, err := r.sendCompletion(ctx, session, target, url)
		res := TargetResult{Target: target, Status: status, RequestURL: url, Err: err}
		switch {
		case err == nil:
			res.Target.Outcome = domain.OutcomeSuccess
			report.Succeeded++
			r.logger.Info().Str("resource", target.ResourceID).Int("part", target.Part).Msg("completed")
		default:
			res.Target.Outcome = domain.OutcomeFailed
			report.Failed++
			r.logger.Warn().Err(err).Str("resource", target.ResourceID).Int("status", status).Msg("completion failed")
		}
		r.recordOutcome(res.Target.Outcome)
		report.Results = append(report.Results, res)

		if errors.Is(err, domain.ErrAuthExpired) || errors.Is(err, domain.ErrForbidden) {
			// the credential is stale for every remaining target too
			runErr = err
			break
		}
	}
	return report, runErr
}

func (r *Runner) completionURL(resourceID string) string {
	return strings.TrimSuffix(r.profile.BaseURL, "/") + fmt.Sprintf(r.profile.CompletionPath, resourceID)
}

func (r *Runner) sendCompletion(ctx context.Context, session domain.SessionContext, target domain.AutomationTarget, url string) (int, error) {
	metadata, err := json.Marshal(map[string]any{
		"event":        r.profile.CompletionEvent,
		"computerTime": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return 0, err
	}
	payload := map[string]any{
		"part":     target.Part,
		"complete": true,
		"metadata": string(metadata),
	}
	if r.profile.ScopeField != "" && session.ScopeCode != "" {
		payload[r.profile.ScopeField] = session.ScopeCode
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+session.BearerToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	if r.profile.Origin != "" {
		req.Header.Set("Origin", r.profile.Origin)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return 0, fmt.Errorf("complete %s: %w", target.ResourceID, domain.ErrTransportTimeout)
		}
		return 0, &domain.NetworkError{Op: "complete", URL: url, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp.StatusCode, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return resp.StatusCode, fmt.Errorf("resource %s: %w", target.ResourceID, domain.ErrAuthExpired)
	case resp.StatusCode == http.StatusForbidden:
		return resp.StatusCode, fmt.Errorf("resource %s: %w", target.ResourceID, domain.ErrForbidden)
	default:
		return resp.StatusCode, fmt.Errorf("resource %s: unexpected status %d", target.ResourceID, resp.StatusCode)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
