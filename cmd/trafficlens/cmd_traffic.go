package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"trafficlens/internal/usecase"
	"trafficlens/pkg/shared/redact"
)

func newStatsCmd(a *app) *cobra.Command {
	var host string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show traffic statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.svc.Stats(cmd.Context(), usecase.TransactionFilter{Host: host})
			if err != nil {
				return err
			}
			fmt.Printf("Total requests: %d\n", st.Total)
			fmt.Printf("Unique hosts:   %d\n", st.UniqueHosts)
			fmt.Printf("Avg duration:   %.2fms\n", st.AvgDuration*1000)
			fmt.Println("Methods:")
			for method, n := range st.Methods {
				fmt.Printf("  %s: %d\n", method, n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "filter by host substring")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var host string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent transactions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, total, err := a.svc.List(cmd.Context(), usecase.TransactionFilter{Host: host, Limit: limit})
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tMETHOD\tSTATUS\tDURATION\tURL")
			for _, tx := range items {
				fmt.Fprintf(w, "%d\t%s\t%d\t%.0fms\t%s\n",
					tx.ID, tx.Method, tx.StatusOrZero(), tx.Duration*1000, shorten(tx.URL, 70))
			}
			w.Flush()
			fmt.Printf("%d of %d transactions\n", len(items), total)
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "filter by host substring")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum rows")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one transaction in full",
		Args:  exactIntArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := strconv.ParseInt(args[0], 10, 64)
			tx, err := a.svc.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Printf("Method:   %s\n", tx.Method)
			fmt.Printf("URL:      %s\n", tx.URL)
			fmt.Printf("Host:     %s\n", tx.Host)
			fmt.Printf("Status:   %d\n", tx.StatusOrZero())
			fmt.Printf("Duration: %.2fms\n", tx.Duration*1000)
			fmt.Printf("Protocol: %s\n", tx.Protocol)
			fmt.Printf("Captured: %s\n", tx.CapturedAt().Format("2006-01-02 15:04:05"))
			if tx.Notes != "" {
				fmt.Printf("Notes:    %s\n", tx.Notes)
			}
			fmt.Println("\nRequest headers:")
			for _, h := range redact.Headers(tx.RequestHeaders) {
				fmt.Printf("  %s: %s\n", h.Name, shorten(h.Value, 80))
			}
			if tx.RequestBody != "" {
				fmt.Printf("\nRequest body (%d bytes):\n  %s\n", len(tx.RequestBody), shorten(tx.RequestBody, 400))
			}
			fmt.Println("\nResponse headers:")
			for _, h := range redact.Headers(tx.ResponseHeaders) {
				fmt.Printf("  %s: %s\n", h.Name, shorten(h.Value, 80))
			}
			if tx.ResponseBody != "" {
				fmt.Printf("\nResponse body (%d bytes):\n  %s\n", len(tx.ResponseBody), shorten(tx.ResponseBody, 400))
			}
			return nil
		},
	}
}

func newSearchCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search across URLs, bodies and headers",
		Args:  wrapUsage(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, total, err := a.svc.Search(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			for _, tx := range items {
				fmt.Printf("ID %d: %s %s\n", tx.ID, tx.Method, shorten(tx.URL, 70))
			}
			fmt.Printf("%d of %d matches\n", len(items), total)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return cmd
}

func newClearCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every stored transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				fmt.Print("Remove all captured traffic? (yes/no): ")
				var answer string
				fmt.Scanln(&answer)
				if strings.ToLower(strings.TrimSpace(answer)) != "yes" {
					fmt.Println("cancelled")
					return nil
				}
			}
			n, err := a.svc.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("removed %d transactions\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "skip confirmation")
	return cmd
}

func newNoteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "note <id> <text>",
		Short: "Attach a note to a transaction",
		Args:  exactIntArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := strconv.ParseInt(args[0], 10, 64)
			return a.svc.UpdateNotes(cmd.Context(), id, args[1])
		},
	}
}

// exactIntArgs requires n args with the first being an integer id.
func exactIntArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("%w: expected %d argument(s)", errUsage, n)
		}
		if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
			return fmt.Errorf("%w: id must be an integer", errUsage)
		}
		return nil
	}
}

func wrapUsage(inner cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := inner(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		return nil
	}
}

func shorten(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
