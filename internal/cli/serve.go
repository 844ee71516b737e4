package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/chorely/internal/clock"
	"github.com/dukerupert/chorely/internal/logging"
	"github.com/dukerupert/chorely/internal/push"
	"github.com/dukerupert/chorely/internal/scheduler"
	"github.com/dukerupert/chorely/internal/server"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, daily generation and reminders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, e)
		},
	}
}

func serve(ctx context.Context, e *env) error {
	logger := logging.Setup(e.cfg.Log.Level, e.cfg.Log.Format)

	db, err := e.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	interval, _ := e.cfg.Notify.IntervalDuration()
	lead, _ := e.cfg.Notify.LeadTimeDuration()

	srv := server.New(db, server.Options{
		Clock:    clock.System{},
		Location: e.loc,
		Schedule: scheduler.Config{
			Spec:        e.cfg.Generate.Cron,
			CatchUpDays: e.cfg.Generate.CatchUpDays,
		},
		Push: push.Config{
			VAPIDPublicKey:  e.cfg.Push.VAPIDPublicKey,
			VAPIDPrivateKey: e.cfg.Push.VAPIDPrivateKey,
			Subscriber:      e.cfg.Push.Subscriber,
		},
		Notify: push.NotifierConfig{
			Interval:   interval,
			LeadTime:   lead,
			DigestHour: e.cfg.Notify.DigestHour,
		},
		NotifyEnabled: e.cfg.Notify.Enabled,
	}, logger)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start background jobs: %w", err)
	}
	defer srv.Stop()

	if e.cfg.Push.VAPIDPublicKey == "" {
		logger.Info("push notifications disabled, run 'chorely vapid-keys' to enable")
	}

	httpServer := &http.Server{
		Addr:         ":" + e.cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("chorely listening", "addr", httpServer.Addr, "timezone", e.loc.String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", slog.Any("error", err))
		return err
	}
	return nil
}
