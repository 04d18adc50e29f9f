package domain

// Category groups heuristic findings.
type Category string

const (
	CategorySecurity     Category = "security"
	CategoryPerformance  Category = "performance"
	CategoryBestPractice Category = "best_practice"
)

// Severity orders findings: info < warning < high.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityHigh:
		return "high"
	default:
		return "info"
	}
}

// Weight is the score contribution used to rank offending transactions.
func (s Severity) Weight() int {
	switch s {
	case SeverityWarning:
		return 3
	case SeverityHigh:
		return 5
	default:
		return 1
	}
}

// Finding is one heuristic analysis result. Findings are derived on demand
// and never outlive the transaction they reference.
type Finding struct {
	TransactionID int64    `json:"transaction_id"`
	Category      Category `json:"category"`
	Severity      Severity `json:"severity"`
	Message       string   `json:"message"`
}
