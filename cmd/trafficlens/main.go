package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"trafficlens/internal/adapters/storage/badgerstore"
	"trafficlens/internal/analyzer"
	"trafficlens/internal/infrastructure/config"
	obs "trafficlens/internal/infrastructure/observability"
	"trafficlens/internal/usecase"

	"trafficlens/internal/domain"
)

// errUsage marks argument/flag mistakes so main can exit 1 instead of 2.
var errUsage = errors.New("usage error")

type app struct {
	cfg     config.Config
	logger  *zerolog.Logger
	store   *badgerstore.Store
	svc     *usecase.TrafficService
	an      *analyzer.Analyzer
	metrics *obs.Metrics
}

// open initializes the store and services. An unreadable database is fatal:
// a partial open could misreport transaction counts.
func (a *app) open() error {
	scfg := badgerstore.DefaultConfig(a.cfg.DBPath)
	scfg.BodyMaxBytes = a.cfg.BodyMaxBytes
	scfg.Logger = a.logger
	store, err := badgerstore.Open(scfg)
	if err != nil {
		return err
	}
	a.store = store
	a.svc = usecase.NewTrafficService(store, a.cfg.ScopeSuffix)
	a.metrics = obs.NewMetrics()
	a.an = analyzer.New()
	a.an.SlowThreshold = float64(a.cfg.SlowThresholdMs) / 1000
	a.an.LargeBodyBytes = a.cfg.LargeBodyBytes
	return nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("store close failed")
		}
	}
}

func newRootCmd(a *app) *cobra.Command {
	var profilePath string
	root := &cobra.Command{
		Use:           "trafficlens",
		Short:         "Query, analyze, export and replay captured HTTP(S) traffic",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.logger = obs.NewLogger(a.cfg.LogLevel)
			if profilePath != "" {
				if err := a.cfg.LoadProfile(profilePath); err != nil {
					return fmt.Errorf("%w: %v", errUsage, err)
				}
			}
			if !cmd.HasParent() {
				// bare root only prints help or rejects an unknown command
				return nil
			}
			return a.open()
		},
		// an unknown subcommand is a usage mistake, same as a bad flag
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
		},
	}
	root.PersistentFlags().StringVar(&a.cfg.DBPath, "db", a.cfg.DBPath, "path to the traffic database")
	root.PersistentFlags().StringVar(&a.cfg.ScopeSuffix, "scope", a.cfg.ScopeSuffix, "restrict every command to hosts under this suffix")
	root.PersistentFlags().StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "debug|info|warn|error")
	root.PersistentFlags().StringVar(&profilePath, "profile", "", "YAML automation profile file")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	root.AddCommand(
		newStatsCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newSearchCmd(a),
		newClearCmd(a),
		newNoteCmd(a),
		newAnalyzeCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newReplayCmd(a),
		newAuthCmd(a),
		newSummaryCmd(a),
		newAutoCmd(a),
		newCompleteCmd(a),
		newServeCmd(a),
	)
	return root
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage),
		errors.Is(err, domain.ErrInvalidQuery),
		domain.IsValidation(err):
		return 1
	default:
		return 2
	}
}

func main() {
	a := &app{cfg: config.FromEnv()}
	root := newRootCmd(a)
	err := root.Execute()
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(exitCode(err))
}
