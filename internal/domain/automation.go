package domain

import "time"

// SessionContext carries authentication material derived from captured
// traffic. It is ephemeral: re-derived per run, never persisted.
type SessionContext struct {
	BearerToken   string    `json:"-"` // opaque credential, kept out of JSON dumps
	ScopeCode     string    `json:"scope_code"` // tenant/course identifier from a request body
	DerivedFromID int64     `json:"derived_from_transaction_id"`
	DerivedAt     time.Time `json:"derived_at"`
}

// TargetOutcome is the terminal (or initial) state of one automation target.
type TargetOutcome string

const (
	OutcomeUnattempted   TargetOutcome = "unattempted"
	OutcomeInFlight      TargetOutcome = "in_flight"
	OutcomeSuccess       TargetOutcome = "success"
	OutcomeFailed        TargetOutcome = "failed"
	OutcomeSkippedDryRun TargetOutcome = "skipped_dry_run"
)

// AutomationTarget is one candidate remote action discovered by scanning
// stored transaction URLs. Targets are enumerated fresh on every run.
type AutomationTarget struct {
	ResourceID       string        `json:"resource_id"`
	Part             int           `json:"part"`
	ObservedComplete bool          `json:"observed_complete"`
	SourceURL        string        `json:"source_url"`
	Outcome          TargetOutcome `json:"last_attempt_outcome"`
}
