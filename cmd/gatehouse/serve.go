// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/auth/memory"
	authpg "github.com/gatehouse/gatehouse/internal/auth/postgres"
	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/httpd"
	"github.com/gatehouse/gatehouse/internal/logging"
	"github.com/gatehouse/gatehouse/internal/observability"
	"github.com/gatehouse/gatehouse/internal/store"
	"github.com/gatehouse/gatehouse/pkg/errutil"
	"github.com/samber/oops"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var dev bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the auth HTTP server",
		Long: `Start the public HTTP server and the metrics/health side server.
Configuration comes from defaults, the --config YAML file, and flags,
in that order of precedence.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, dev)
		},
	}

	defaults := config.Default()
	cmd.Flags().String("http.addr", defaults.HTTP.Addr, "HTTP listen address")
	cmd.Flags().String("metrics.addr", defaults.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL (default: DATABASE_URL env)")
	cmd.Flags().String("log.format", defaults.Log.Format, "log format (json or text)")
	cmd.Flags().BoolVar(&dev, "dev", false, "use an in-memory store instead of PostgreSQL (data is lost on exit)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, dev bool) error {
	logging.SetDefault("gatehouse", version, cfg.Log.Format)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Wire the repository: PostgreSQL by default, in-memory for --dev.
	var (
		users auth.UserRepository
		ready observability.ReadinessChecker = func() bool { return true }
	)
	if dev {
		logger.Warn("running with in-memory store, data is lost on exit")
		users = memory.NewRepository()
	} else {
		if cfg.Database.URL == "" {
			return oops.Code("CONFIG_INVALID").Errorf("database.url or DATABASE_URL is required (or pass --dev)")
		}
		pg, err := store.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer pg.Close()
		users = authpg.NewUserRepository(pg.Pool())
		ready = func() bool {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pg.Ping(pingCtx) == nil
		}
	}

	svc, err := auth.NewServiceWithLogger(users, auth.NewArgon2idHasher(), logger)
	if err != nil {
		return err
	}

	// Metrics/health side server, disabled when metrics.addr is empty.
	var metrics *observability.Metrics
	var obsErrCh <-chan error
	var obs *observability.Server
	if cfg.Metrics.Addr != "" {
		obs = observability.NewServer(cfg.Metrics.Addr, ready)
		obsErrCh, err = obs.Start()
		if err != nil {
			return err
		}
		metrics = obs.Metrics()
	}
	stopObs := func() {
		if obs == nil {
			return
		}
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if stopErr := obs.Stop(stopCtx); stopErr != nil {
			errutil.LogError(logger, "observability server shutdown failed", stopErr)
		}
	}

	srv, err := httpd.NewServer(httpd.Config{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}, svc, logger, metrics)
	if err != nil {
		stopObs()
		return err
	}

	srvErrCh, err := srv.Start()
	if err != nil {
		stopObs()
		return err
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case serveErr := <-srvErrCh:
		errutil.LogError(logger, "http server failed", serveErr)
	case obsErr := <-obsErrCh:
		errutil.LogError(logger, "observability server failed", obsErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		errutil.LogError(logger, "http server shutdown failed", err)
	}
	stopObs()

	return nil
}
