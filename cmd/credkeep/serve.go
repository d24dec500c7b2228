// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/credkeep/credkeep/internal/auth"
	"github.com/credkeep/credkeep/internal/auth/postgres"
	"github.com/credkeep/credkeep/internal/config"
	"github.com/credkeep/credkeep/internal/httpapi"
	"github.com/credkeep/credkeep/internal/mail"
	"github.com/credkeep/credkeep/internal/observability"
	"github.com/credkeep/credkeep/pkg/errutil"
)

// shutdownTimeout bounds the drain of each server on exit.
const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the credential HTTP API",
		Long: `Run the HTTP API, the metrics/health server and the expired token
sweeper until SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, deps)
		},
	}
}

// runServeWithDeps starts every component with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *Deps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deps = withDefaults(deps)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := commandLogger(cmd, cfg, deps)

	logger.Info("starting credkeep",
		"version", version,
		"env", cfg.Env,
		"http_addr", cfg.HTTPAddr,
		"mail_policy", cfg.Policy(),
	)

	if cfg.AutoMigrate {
		if err := runAutoMigration(cfg.DatabaseURL, deps.MigratorFactory, logger); err != nil {
			return err
		}
	}

	db, err := deps.DatabaseFactory(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}
	defer db.Close()

	ctx, stop := deps.SignalContext(ctx)
	defer stop()

	var (
		metrics   auth.MetricsRecorder
		obsServer ObservabilityServer
		obsErrCh  <-chan error
	)
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, observability.PingReadiness(db), logger)
		obsErrCh, err = obsServer.Start()
		if err != nil {
			return oops.Code("SERVE_OBSERVABILITY_FAILED").Wrap(err)
		}
		defer stopServer(obsServer, "observability", logger)
		metrics = obsServer.Metrics()
	}

	svc, signer, err := buildService(cmd, cfg, db, metrics, deps, logger)
	if err != nil {
		return err
	}

	handler := httpapi.NewHandler(svc, signer, logger).Routes()
	httpServer := deps.HTTPServerFactory(cfg.HTTPAddr, handler, logger)
	httpErrCh, err := httpServer.Start()
	if err != nil {
		return oops.Code("SERVE_HTTP_FAILED").Wrap(err)
	}
	defer stopServer(httpServer, "http", logger)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		auth.NewSweeper(svc, cfg.CleanupInterval, logger).Run(sweepCtx)
	}()
	defer func() {
		stopSweep()
		wg.Wait()
	}()

	cmd.Println("credkeep started")
	logger.Info("credkeep ready", "http_addr", httpServer.Addr())

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
		return nil
	case err, ok := <-httpErrCh:
		if ok && err != nil {
			return oops.Code("SERVE_HTTP_FAILED").Wrap(err)
		}
		return nil
	case err, ok := <-obsErrCh:
		if ok && err != nil {
			return oops.Code("SERVE_OBSERVABILITY_FAILED").Wrap(err)
		}
		return nil
	}
}

// buildService wires the credential service from configuration.
func buildService(
	cmd *cobra.Command,
	cfg *config.Config,
	db Database,
	metrics auth.MetricsRecorder,
	deps *Deps,
	logger *slog.Logger,
) (*auth.CredentialService, *auth.JWTSigner, error) {
	mailer, err := deps.MailerFactory(mail.SMTPConfig{
		Host:      cfg.SMTPHost,
		Port:      cfg.SMTPPort,
		Username:  cfg.SMTPUser,
		Password:  cfg.SMTPPassword,
		From:      cfg.SMTPFrom,
		ExpiresIn: cfg.VerificationTTL(),
	}, cmd.OutOrStdout(), logger)
	if err != nil {
		return nil, nil, err
	}

	signer, err := auth.NewJWTSigner(cfg.JWTSecret, cfg.JWTTTL())
	if err != nil {
		return nil, nil, err
	}

	svc, err := auth.NewCredentialService(auth.Deps{
		Store:   postgres.NewStore(db),
		Hasher:  auth.NewBcryptHasher(),
		Tokens:  auth.NewRandomTokenGenerator(),
		Mailer:  mailer,
		Signer:  signer,
		Metrics: metrics,
		Logger:  logger,
	}, auth.Config{
		VerificationTTL: cfg.VerificationTTL(),
		FrontendURL:     cfg.FrontendBase(),
		MailPolicy:      cfg.Policy(),
	})
	if err != nil {
		return nil, nil, err
	}
	return svc, signer, nil
}

// runAutoMigration applies pending migrations. A close failure is logged
// and does not fail startup.
func runAutoMigration(databaseURL string, factory func(string) (Migrator, error), logger *slog.Logger) error {
	migrator, err := factory(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			errutil.LogError(logger, "error closing migrator", closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return oops.Code("AUTO_MIGRATION_FAILED").Wrap(err)
	}
	logger.Info("schema up to date")
	return nil
}

func stopServer(s Server, name string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		errutil.LogError(logger, "error stopping server", err, "server", name)
	}
}
