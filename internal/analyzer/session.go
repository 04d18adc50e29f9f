package analyzer

import (
	"context"
	"sort"

	"trafficlens/internal/domain"
	"trafficlens/internal/usecase"
)

// SessionReport aggregates per-transaction findings over the most recent
// transactions. It is derived purely from Analyze; there is no separate
// analysis state.
type SessionReport struct {
	TransactionsAnalyzed int                     `json:"transactions_analyzed"`
	FindingsTotal        int                     `json:"findings_total"`
	ByCategory           map[domain.Category]int `json:"by_category"`
	BySeverity           map[string]int          `json:"by_severity"`
	ByMessage            map[string]int          `json:"by_message"`
	TopOffenders         []Offender              `json:"top_offenders"`
}

// Offender is a transaction ranked by severity-weighted finding score.
type Offender struct {
	TransactionID int64  `json:"transaction_id"`
	URL           string `json:"url"`
	Score         int    `json:"score"`
	Findings      int    `json:"findings"`
}

// AnalyzeSession runs the rule set over the latest limit transactions and
// folds the findings into one report.
func (a *Analyzer) AnalyzeSession(ctx context.Context, svc *usecase.TrafficService, limit int) (SessionReport, error) {
	if limit <= 0 {
		limit = 20
	}
	report := SessionReport{
		ByCategory: make(map[domain.Category]int),
		BySeverity: make(map[string]int),
		ByMessage:  make(map[string]int),
	}
	offenders := make(map[int64]*Offender)

	err := svc.ForEach(ctx, usecase.TransactionFilter{Limit: limit}, func(tx domain.Transaction) (bool, error) {
		report.TransactionsAnalyzed++
		for _, f := range a.Analyze(tx) {
			report.FindingsTotal++
			report.ByCategory[f.Category]++
			report.BySeverity[f.Severity.String()]++
			report.ByMessage[f.Message]++
			o, ok := offenders[tx.ID]
			if !ok {
				o = &Offender{TransactionID: tx.ID, URL: tx.URL}
				offenders[tx.ID] = o
			}
			o.Score += f.Severity.Weight()
			o.Findings++
		}
		return true, nil
	})
	if err != nil {
		return SessionReport{}, err
	}

	for _, o := range offenders {
		report.TopOffenders = append(report.TopOffenders, *o)
	}
	sort.Slice(report.TopOffenders, func(i, j int) bool {
		if report.TopOffenders[i].Score != report.TopOffenders[j].Score {
			return report.TopOffenders[i].Score > report.TopOffenders[j].Score
		}
		return report.TopOffenders[i].TransactionID < report.TopOffenders[j].TransactionID
	})
	if len(report.TopOffenders) > 10 {
		report.TopOffenders = report.TopOffenders[:10]
	}
	return report, nil
}
