package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"trafficlens/internal/domain"
	"trafficlens/internal/replay"
	"trafficlens/pkg/shared/redact"
)

func newReplayCmd(a *app) *cobra.Command {
	var urlOverride, bodyOverride, methodOverride string
	var headerOverrides []string
	cmd := &cobra.Command{
		Use:   "replay <id>",
		Short: "Re-issue a stored transaction, optionally with overrides",
		Args:  exactIntArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := strconv.ParseInt(args[0], 10, 64)

			var ov replay.Overrides
			if cmd.Flags().Changed("url") {
				ov.URL = &urlOverride
			}
			if cmd.Flags().Changed("data") {
				ov.Body = &bodyOverride
			}
			if cmd.Flags().Changed("method") {
				ov.Method = &methodOverride
			}
			for _, kv := range headerOverrides {
				name, value, ok := strings.Cut(kv, ":")
				if !ok {
					return fmt.Errorf("%w: header override must be name:value", errUsage)
				}
				ov.Headers = append(ov.Headers, domain.Header{
					Name:  strings.TrimSpace(name),
					Value: strings.TrimSpace(value),
				})
			}

			engine := replay.New(time.Duration(a.cfg.ReplayTimeoutMs)*time.Millisecond, a.logger)
			res, err := engine.Replay(cmd.Context(), a.svc, id, ov)
			if err != nil {
				return err
			}
			fmt.Printf("Status:   %d\n", res.Status)
			fmt.Printf("Duration: %.0fms\n", res.Duration*1000)
			fmt.Println("Response headers:")
			for _, h := range redact.Headers(res.ResponseHeaders) {
				fmt.Printf("  %s: %s\n", h.Name, shorten(h.Value, 80))
			}
			if res.ResponseSummary != "" {
				fmt.Printf("Body (%d bytes):\n  %s\n", len(res.ResponseSummary), shorten(res.ResponseSummary, 400))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&urlOverride, "url", "", "override the request URL")
	cmd.Flags().StringVar(&bodyOverride, "data", "", "override the request body")
	cmd.Flags().StringVar(&methodOverride, "method", "", "override the request method")
	cmd.Flags().StringArrayVarP(&headerOverrides, "header", "H", nil, "override a header (name:value, repeatable)")
	return cmd
}
