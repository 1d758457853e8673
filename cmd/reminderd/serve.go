package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/notexe/reminderd/internal/httpapi"
	"github.com/notexe/reminderd/internal/scheduler"
)

func serveCmd() *cobra.Command {
	var (
		addr      string
		noSweeper bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the due-reminder sweeper",
		Long: `Start the reminder service.

Examples:
  reminderd serve
  reminderd serve --addr :9090
  reminderd serve --no-sweeper   # API only, another instance sweeps`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.HTTP.Addr
			}
			srv := &http.Server{
				Addr:              addr,
				Handler:           httpapi.NewRouter(&httpapi.App{Service: a.service}, a.cfg.HTTP.AllowedOrigins),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 2)

			go func() {
				log.Printf("[reminderd] HTTP listening on %s", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- fmt.Errorf("http server: %w", err)
				}
			}()

			if a.cfg.Scheduler.Enabled && !noSweeper {
				sweeper := scheduler.New(a.service, scheduler.Config{
					Interval:  a.cfg.SchedulerInterval(),
					BatchSize: a.cfg.Scheduler.BatchSize,
				})
				go func() {
					if err := sweeper.Run(ctx); err != nil {
						errCh <- fmt.Errorf("sweeper: %w", err)
					}
				}()
			}

			select {
			case <-ctx.Done():
				log.Printf("[reminderd] Shutting down...")
			case err = <-errCh:
				stop()
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if serr := srv.Shutdown(shutdownCtx); serr != nil {
				log.Printf("[reminderd] Warning: HTTP shutdown: %v", serr)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides http.addr)")
	cmd.Flags().BoolVar(&noSweeper, "no-sweeper", false, "Do not run the due-reminder sweeper")

	return cmd
}
