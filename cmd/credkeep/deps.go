// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/credkeep/credkeep/internal/auth"
	"github.com/credkeep/credkeep/internal/auth/postgres"
	"github.com/credkeep/credkeep/internal/httpapi"
	"github.com/credkeep/credkeep/internal/mail"
	"github.com/credkeep/credkeep/internal/observability"
	"github.com/credkeep/credkeep/internal/store"
)

// Deps contains injectable dependencies for the commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// DatabaseFactory opens a connection pool.
	// Default: store.Open with store.DefaultConnectOptions
	DatabaseFactory func(ctx context.Context, dsn string, logger *slog.Logger) (Database, error)

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// MailerFactory creates the verification mailer.
	// Default: mail.New
	MailerFactory func(cfg mail.SMTPConfig, console io.Writer, logger *slog.Logger) (auth.Mailer, error)

	// HTTPServerFactory creates the API server.
	// Default: httpapi.NewServer
	HTTPServerFactory func(addr string, handler http.Handler, logger *slog.Logger) Server

	// ObservabilityServerFactory creates the metrics/health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// SignalContext derives the context cancelled on shutdown signals.
	// Default: signal.NotifyContext with SIGINT and SIGTERM
	SignalContext func(ctx context.Context) (context.Context, context.CancelFunc)

	// Logger replaces the logger built from configuration.
	Logger *slog.Logger
}

// Database is the pool surface used by the commands. *pgxpool.Pool satisfies it.
type Database interface {
	postgres.Pool
	Ping(ctx context.Context) error
	Close()
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Status() (store.Status, error)
	Close() error
}

// Server wraps the methods used from httpapi.Server.
type Server interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Server
	Metrics() *observability.Metrics
}

// withDefaults returns a copy of deps with every nil factory filled in.
func withDefaults(deps *Deps) *Deps {
	d := Deps{}
	if deps != nil {
		d = *deps
	}
	if d.DatabaseFactory == nil {
		d.DatabaseFactory = func(ctx context.Context, dsn string, logger *slog.Logger) (Database, error) {
			pool, err := store.Open(ctx, dsn, store.DefaultConnectOptions(), logger)
			if err != nil {
				return nil, err
			}
			return pool, nil
		}
	}
	if d.MigratorFactory == nil {
		d.MigratorFactory = func(databaseURL string) (Migrator, error) {
			m, err := store.NewMigrator(databaseURL)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	if d.MailerFactory == nil {
		d.MailerFactory = mail.New
	}
	if d.HTTPServerFactory == nil {
		d.HTTPServerFactory = func(addr string, handler http.Handler, logger *slog.Logger) Server {
			return httpapi.NewServer(addr, handler, logger)
		}
	}
	if d.ObservabilityServerFactory == nil {
		d.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, ready, logger)
		}
	}
	if d.SignalContext == nil {
		d.SignalContext = func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		}
	}
	return &d
}
