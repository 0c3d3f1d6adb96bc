package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	consentstore "onboard/internal/consent/store"
	"onboard/internal/platform/config"
	"onboard/internal/platform/httpserver"
	"onboard/internal/platform/logger"
	"onboard/internal/platform/postgres"
	processstore "onboard/internal/process/store"
	httptransport "onboard/internal/transport/http"
	"onboard/pkg/domain"
	auditpostgres "onboard/pkg/platform/audit/store/postgres"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP trigger and run queued processes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			a, err := build(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(ctx, a, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides ONBOARD_ADDR")
	return cmd
}

func serve(ctx context.Context, a *app, cfg config.Config) error {
	handler := httptransport.New(a.engine, a.objects, a.runner, a.logger)
	router := httptransport.NewRouter(handler, a.metrics.Handler(), cfg.Server.RequestTimeout, a.health...)
	srv := httpserver.New(cfg.Server, router)

	if n, err := a.runner.Resume(ctx); err != nil {
		a.logger.WarnContext(ctx, "resume incomplete", "queued", n, "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.runner.Start(gctx) })
	g.Go(func() error { return a.reaper.Run(gctx) })
	g.Go(func() error {
		a.logger.InfoContext(gctx, "listening", "addr", cfg.Server.Addr, "env", string(cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <process-id>",
		Short: "Run one process to a terminal status and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseProcessID(args[0])
			if err != nil {
				return err
			}
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			a, err := build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.engine.Run(cmd.Context(), id)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(httptransport.FromProcess(p))
		},
	}
}

func purgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired processes and their documents once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			a, err := build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.reaper.PurgeOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired processes\n", n)
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the Postgres tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			log := logger.New(cfg.IsProduction(), cfg.LogLevel)
			db, err := postgres.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			if db == nil {
				return errors.New("DATABASE_URL is required for migrate")
			}
			defer db.Close()

			if err := postgres.Migrate(cmd.Context(), db, processstore.Schema, consentstore.Schema, auditpostgres.Schema); err != nil {
				return err
			}
			log.InfoContext(cmd.Context(), "schema applied")
			return nil
		},
	}
}
