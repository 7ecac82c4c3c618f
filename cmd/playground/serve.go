package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smallnest/ragplayground/metrics"
	"github.com/smallnest/ragplayground/server"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(g *globalOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web playground",
		Long: `Serve the playground UI and its JSON API. Prometheus metrics are exposed on
/metrics and state changes are streamed on /api/events.

Examples:
  playground serve -s report.pdf
  playground serve -s report.pdf --store redis://localhost:6379/0 --addr :9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := metrics.New()
			a, err := g.open(cmd.Context(), openOptions{graph: true, metrics: m})
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			srv := &http.Server{
				Addr: addr,
				Handler: server.NewHandler(a.session, server.Options{
					Metrics: m,
					Logger:  a.logger,
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			serverErrors := make(chan error, 1)
			go func() {
				a.logger.Info("playground listening on %s (session %s)", srv.Addr, a.session.ID())
				serverErrors <- srv.ListenAndServe()
			}()

			select {
			case err := <-serverErrors:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server error: %w", err)
			case <-ctx.Done():
				a.logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					a.logger.Warn("graceful shutdown did not complete in %v: %v", shutdownTimeout, err)
					return srv.Close()
				}
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address; defaults to server.addr from the configuration")
	return cmd
}
