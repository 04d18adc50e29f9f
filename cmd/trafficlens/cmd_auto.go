package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"trafficlens/internal/automation"
	"trafficlens/pkg/shared/redact"
)

func (a *app) newRunner(delay time.Duration, dryRun bool) *automation.Runner {
	ac := a.cfg.Automation
	profile := automation.Profile{
		HostSuffix:      ac.HostSuffix,
		ResourcePattern: ac.ResourcePattern,
		BaseURL:         ac.BaseURL,
		CompletionPath:  ac.CompletionPath,
		ScopeField:      ac.ScopeField,
		CompletionEvent: ac.CompletionEvent,
		Origin:          ac.Origin,
	}
	cfg := automation.Config{
		Delay:   delay,
		DryRun:  dryRun,
		Timeout: time.Duration(ac.TimeoutMs) * time.Millisecond,
	}
	runner := automation.NewRunner(a.svc, profile, cfg, a.logger)
	runner.ObserveOutcomes(func(state string) {
		a.metrics.AutomationOutcomes.WithLabelValues(state).Inc()
	})
	return runner
}

func (a *app) delayFlagOrDefault(delaySec float64) time.Duration {
	if delaySec > 0 {
		return time.Duration(delaySec * float64(time.Second))
	}
	return time.Duration(a.cfg.Automation.DelayMs) * time.Millisecond
}

func newAuthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Derive the session credential from captured traffic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := a.newRunner(0, false)
			session, err := runner.Auth(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Token:      %s\n", redact.Token(session.BearerToken))
			fmt.Printf("Scope code: %s\n", session.ScopeCode)
			fmt.Printf("Derived from transaction %d\n", session.DerivedFromID)
			return nil
		},
	}
}

func newSummaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Summarize automation targets discovered in traffic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := a.newRunner(0, false)
			targets, err := runner.Targets(cmd.Context())
			if err != nil {
				return err
			}
			if len(targets) == 0 {
				fmt.Println("no targets found in captured traffic")
				return nil
			}
			complete := 0
			for _, t := range targets {
				status := "incomplete"
				if t.ObservedComplete {
					status = "complete"
					complete++
				}
				fmt.Printf("%-14s part=%d %-10s %s\n", t.ResourceID, t.Part, status, shorten(t.SourceURL, 60))
			}
			fmt.Printf("\nTotal: %d | Complete: %d | Incomplete: %d\n",
				len(targets), complete, len(targets)-complete)
			return nil
		},
	}
}

func newAutoCmd(a *app) *cobra.Command {
	var dryRun bool
	var delaySec float64
	cmd := &cobra.Command{
		Use:   "auto",
		Short: "Complete every incomplete target discovered in traffic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := a.newRunner(a.delayFlagOrDefault(delaySec), dryRun)
			report, err := runner.Run(cmd.Context())
			printReport(report, dryRun)
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report intended actions without sending requests")
	cmd.Flags().Float64Var(&delaySec, "delay", 0, "delay between requests in seconds")
	return cmd
}

func newCompleteCmd(a *app) *cobra.Command {
	var dryRun bool
	var delaySec float64
	cmd := &cobra.Command{
		Use:   "complete <resource-id...>",
		Short: "Complete specific resources by id",
		Args:  wrapUsage(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := a.newRunner(a.delayFlagOrDefault(delaySec), dryRun)
			report, err := runner.Complete(cmd.Context(), args)
			printReport(report, dryRun)
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report intended actions without sending requests")
	cmd.Flags().Float64Var(&delaySec, "delay", 0, "delay between requests in seconds")
	return cmd
}

func printReport(report automation.Report, dryRun bool) {
	for _, res := range report.Results {
		switch {
		case res.Err != nil:
			fmt.Printf("  %-14s %s (status %d): %v\n", res.Target.ResourceID, res.Target.Outcome, res.Status, res.Err)
		case dryRun:
			fmt.Printf("  %-14s would POST %s\n", res.Target.ResourceID, res.RequestURL)
		default:
			fmt.Printf("  %-14s %s\n", res.Target.ResourceID, res.Target.Outcome)
		}
	}
	fmt.Printf("\nTargets: %d | Already complete: %d | Succeeded: %d | Failed: %d | Skipped: %d\n",
		report.TotalObserved, report.AlreadyComplete, report.Succeeded, report.Failed, report.Skipped)
}
