package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"trafficlens/internal/infrastructure/httpapi"
	"trafficlens/internal/replay"
)

// serve runs the ingest/read API the capture engine delivers records to.
// Replay requests block on the network inside their own handler goroutines,
// so store reads stay responsive while a remote host hangs.
func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ingest and query API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps := &httpapi.Deps{
				Cfg:      a.cfg,
				Logger:   a.logger,
				Metrics:  a.metrics,
				Svc:      a.svc,
				Analyzer: a.an,
				Replayer: replay.New(time.Duration(a.cfg.ReplayTimeoutMs)*time.Millisecond, a.logger),
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           httpapi.NewRouter(deps),
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       30 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info().Str("addr", addr).Msg("starting trafficlens api")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return err
			case <-stop:
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				a.logger.Error().Err(err).Msg("server shutdown error")
			}
			a.logger.Info().Msg("trafficlens api stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", a.cfg.Addr, "listen address")
	return cmd
}
