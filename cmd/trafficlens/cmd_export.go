package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"trafficlens/internal/domain"
	"trafficlens/internal/export"
	"trafficlens/internal/usecase"
)

func newExportCmd(a *app) *cobra.Command {
	var host, format string
	var limit int
	cmd := &cobra.Command{
		Use:   "export <path>",
		Short: "Export transactions to JSON or HAR",
		Args:  wrapUsage(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			name := format
			if name == "" {
				name = strings.ToLower(filepath.Ext(path))
				if name == "" {
					name = "har"
				}
			}
			fmtSel, err := export.ParseFormat(name)
			if err != nil {
				return err
			}
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			defer f.Close()

			n, err := export.Export(cmd.Context(), a.svc,
				usecase.TransactionFilter{Host: host, Limit: limit}, fmtSel, f)
			if err != nil {
				return err
			}
			fmt.Printf("exported %d transactions to %s\n", n, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "filter by host substring")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum entries")
	cmd.Flags().StringVar(&format, "format", "", "json|har (default from file extension)")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <path>",
		Short: "Re-import a JSON export; ids are reassigned",
		Args:  wrapUsage(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open export file: %w", err)
			}
			defer f.Close()

			n, err := export.ReadJSON(f, func(tx domain.Transaction) error {
				tx.ID = 0
				_, err := a.svc.Append(cmd.Context(), tx)
				return err
			})
			if err != nil {
				return err
			}
			fmt.Printf("imported %d transactions\n", n)
			return nil
		},
	}
}
