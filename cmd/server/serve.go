package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/UkralStul/content-alchemy/internal/config"
	"github.com/UkralStul/content-alchemy/internal/digest"
	"github.com/UkralStul/content-alchemy/internal/httpapi"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the daily digest scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.store.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if a.cfg.Storage.Driver == config.DriverMemory && a.cfg.Storage.Seed {
			// Заполним данными для тестов
			if err := fillWithMockData(ctx, a); err != nil {
				return err
			}
		}

		interval, err := a.cfg.DigestInterval()
		if err != nil {
			return err
		}
		scheduler := digest.NewScheduler(a.runner, interval, a.logger.With("component", "digest"))
		scheduler.Start(ctx)
		defer scheduler.Stop()

		api := httpapi.NewServer(httpapi.Server{
			Store:     a.store,
			Posts:     a.posts,
			Evergreen: a.recycler,
			Ideas:     a.ideas,
			Strategy:  a.strategy,
			Digest:    a.digest,
			Observer:  a.observer,
			Validator: a.validator,
		}, a.logger.With("component", "http"))

		srv := &http.Server{
			Addr:              ":" + a.cfg.Server.Port,
			Handler:           api.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			a.logger.Info("server listening", "addr", srv.Addr, "storage", a.cfg.Storage.Driver, "timezone", a.cfg.Timezone)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}
