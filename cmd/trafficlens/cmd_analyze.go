package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var id int64
	var limit int
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run heuristic analysis on one transaction or the recent session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if id > 0 {
				tx, err := a.svc.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				findings := a.an.Analyze(tx)
				if len(findings) == 0 {
					fmt.Println("no findings")
				}
				for _, f := range findings {
					fmt.Printf("[%s/%s] %s\n", f.Category, f.Severity, f.Message)
				}
				if err := a.svc.MarkAnalyzed(cmd.Context(), id); err != nil {
					a.logger.Warn().Err(err).Int64("id", id).Msg("mark analyzed failed")
				}
				return nil
			}

			report, err := a.an.AnalyzeSession(cmd.Context(), a.svc, limit)
			if err != nil {
				return err
			}
			fmt.Printf("Transactions analyzed: %d\n", report.TransactionsAnalyzed)
			fmt.Printf("Findings:              %d\n", report.FindingsTotal)
			for cat, n := range report.ByCategory {
				fmt.Printf("  %s: %d\n", cat, n)
			}
			fmt.Println("By severity:")
			for _, sev := range []string{"high", "warning", "info"} {
				if n := report.BySeverity[sev]; n > 0 {
					fmt.Printf("  %s: %d\n", sev, n)
				}
			}
			if len(report.ByMessage) > 0 {
				fmt.Println("Recurring findings:")
				msgs := make([]string, 0, len(report.ByMessage))
				for m := range report.ByMessage {
					msgs = append(msgs, m)
				}
				sort.Slice(msgs, func(i, j int) bool { return report.ByMessage[msgs[i]] > report.ByMessage[msgs[j]] })
				for _, m := range msgs {
					fmt.Printf("  %dx %s\n", report.ByMessage[m], m)
				}
			}
			if len(report.TopOffenders) > 0 {
				fmt.Println("Top offenders:")
				for _, o := range report.TopOffenders {
					fmt.Printf("  #%s score=%d findings=%d %s\n",
						strconv.FormatInt(o.TransactionID, 10), o.Score, o.Findings, shorten(o.URL, 60))
				}
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "analyze a single transaction")
	cmd.Flags().IntVar(&limit, "limit", 20, "session analysis depth")
	return cmd
}
