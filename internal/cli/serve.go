package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joungwon-dreams/joungwon-stocks-sub002/internal/server"
)

// ServeCmd returns the serve command: periodic collection runs plus the
// HTTP API and metrics endpoint.
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run periodic collection with the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			// Root context: cancelled on SIGINT/SIGTERM so in-flight
			// collection units stop promptly during graceful shutdown.
			rootCtx, rootCancel := context.WithCancel(cmd.Context())
			defer rootCancel()

			if err := a.orch.Initialize(rootCtx); err != nil {
				return err
			}

			srv := server.New(rootCtx, a.cfg.Port, server.Deps{
				Sources:    a.sources,
				Health:     a.health,
				Executions: a.executions,
			}, a.registry)

			loopDone := make(chan struct{})
			go func() {
				defer close(loopDone)
				a.collectLoop(rootCtx)
			}()

			done := make(chan os.Signal, 1)
			signal.Notify(done, os.Interrupt, syscall.SIGTERM)

			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					slog.Error("server error", "error", err)
					os.Exit(1)
				}
			}()

			slog.Info("collector started", "port", a.cfg.Port, "interval", a.cfg.CollectInterval.String())
			<-done

			// Cancel first so the collection loop winds down, then drain HTTP.
			rootCancel()
			<-loopDone

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("shutdown error", "error", err)
			}
			slog.Info("collector stopped")
			return nil
		},
	}
}

// collectLoop runs one collection immediately, then one per interval, until
// ctx is cancelled.
func (a *app) collectLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.CollectInterval)
	defer ticker.Stop()

	for {
		if _, err := a.orch.Run(ctx, nil); err != nil && ctx.Err() == nil {
			slog.Error("collection run failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
