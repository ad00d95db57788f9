// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package app assembles the runtime dependency graph shared by the API server
and the ctl maintenance command.

Startup Sequence:

 1. Open the account and verification stores selected by STORE_DRIVER.
 2. Open the resend lock backend (Redis when REDIS_URL is set, otherwise in-process).
 3. Build the mail sender (SMTP when SMTP_HOST is set, otherwise log only).
 4. Wire the verification ledger, the notifier and the auth service.

No business logic lives here. All wiring is explicit constructor injection.
*/
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taibuivan/facultyeval/internal/api"
	"github.com/taibuivan/facultyeval/internal/platform/config"
	"github.com/taibuivan/facultyeval/internal/platform/keylock"
	"github.com/taibuivan/facultyeval/internal/platform/mailer"
	"github.com/taibuivan/facultyeval/internal/platform/migration"
	mongostore "github.com/taibuivan/facultyeval/internal/platform/mongo"
	pgstore "github.com/taibuivan/facultyeval/internal/platform/postgres"
	redisstore "github.com/taibuivan/facultyeval/internal/platform/redis"
	"github.com/taibuivan/facultyeval/internal/users/account"
	"github.com/taibuivan/facultyeval/internal/users/auth"
	"github.com/taibuivan/facultyeval/internal/users/memstore"
	"github.com/taibuivan/facultyeval/internal/users/notify"
	"github.com/taibuivan/facultyeval/internal/users/verification"
)

// # Container

// App holds the wired domain services and the backends they run on.
type App struct {
	Accounts      account.Repository
	Verifications verification.Repository
	Locker        keylock.Locker
	Ledger        *verification.Ledger
	Service       *auth.Service

	checks  []api.HealthCheck
	logger  *slog.Logger
	closers []func()
}

// pingableAccounts and pingableVerifications are what every store variant provides.
type pingableAccounts interface {
	account.Repository
	api.Pinger
}

type pingableVerifications interface {
	verification.Repository
	api.Pinger
}

/*
New opens every backend named by cfg and wires the auth service on top.

Parameters:
  - context: context.Context (bounds connection attempts)
  - cfg: *config.Config
  - logger: *slog.Logger
  - tokens: auth.TokenProvider (may be nil for commands that never log in)

Returns:
  - *App: Ready to serve
  - error: Connection, migration or template failures. Backends opened before
    the failure are closed.
*/
func New(context context.Context, cfg *config.Config, logger *slog.Logger, tokens auth.TokenProvider) (*App, error) {
	application := &App{logger: logger}

	if err := application.openStores(context, cfg); err != nil {
		application.Close()
		return nil, err
	}

	if err := application.openLocker(context, cfg); err != nil {
		application.Close()
		return nil, err
	}

	notifier, err := notify.New(newSender(cfg, logger), cfg.AppBaseURL, verification.RecordTTL)
	if err != nil {
		application.Close()
		return nil, fmt.Errorf("app_notifier_failed: %w", err)
	}

	application.Ledger = verification.NewLedger(application.Verifications, application.Accounts, application.Locker, nil)
	application.Service = auth.NewService(application.Accounts, application.Ledger, notifier, tokens, cfg.AllowedEmailDomains, nil)

	logger.Info("app_wired",
		slog.String("store_driver", cfg.StoreDriver),
		slog.Bool("redis_locker", cfg.RedisURL != ""),
		slog.Bool("smtp", cfg.SMTPHost != ""),
	)
	return application, nil
}

// # Backends

func (application *App) openStores(ctx context.Context, cfg *config.Config) error {
	var (
		accounts      pingableAccounts
		verifications pingableVerifications
	)

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL, application.logger)
		if err != nil {
			return fmt.Errorf("app_postgres_failed: %w", err)
		}
		application.onClose("postgres pool", pool.Close)

		if err := migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, application.logger); err != nil {
			return fmt.Errorf("app_migrations_failed: %w", err)
		}

		accounts = account.NewPostgresRepository(pool)
		verifications = verification.NewPostgresRepository(pool)

	case config.DriverMongo:
		client, database, err := mongostore.NewClient(ctx, cfg.MongoURI, cfg.MongoDatabase, application.logger)
		if err != nil {
			return fmt.Errorf("app_mongo_failed: %w", err)
		}
		application.onClose("mongo client", func() {
			if err := client.Disconnect(context.Background()); err != nil {
				application.logger.Error("mongo_disconnect_failed", slog.Any("error", err))
			}
		})

		if accounts, err = account.NewMongoRepository(ctx, database); err != nil {
			return fmt.Errorf("app_mongo_accounts_failed: %w", err)
		}
		if verifications, err = verification.NewMongoRepository(ctx, database); err != nil {
			return fmt.Errorf("app_mongo_verifications_failed: %w", err)
		}

	case config.DriverMemory:
		application.logger.Warn("memory_store_in_use", slog.String("environment", cfg.Environment))
		accounts = memstore.NewAccountRepository()
		verifications = memstore.NewVerificationRepository()

	default:
		return fmt.Errorf("app_unknown_store_driver: %q", cfg.StoreDriver)
	}

	application.Accounts = accounts
	application.Verifications = verifications
	application.checks = append(application.checks,
		api.HealthCheck{Name: "accounts", Pinger: accounts},
		api.HealthCheck{Name: "verifications", Pinger: verifications},
	)
	return nil
}

func (application *App) openLocker(context context.Context, cfg *config.Config) error {
	if cfg.RedisURL == "" {
		locker := keylock.NewMemoryLocker()
		application.Locker = locker
		application.checks = append(application.checks, api.HealthCheck{Name: "locker", Pinger: locker})
		return nil
	}

	client, err := redisstore.NewClient(context, cfg.RedisURL, application.logger)
	if err != nil {
		return fmt.Errorf("app_redis_failed: %w", err)
	}
	application.onClose("redis client", func() {
		if err := client.Close(); err != nil {
			application.logger.Error("redis_close_failed", slog.Any("error", err))
		}
	})

	locker := keylock.NewRedisLocker(client)
	application.Locker = locker
	application.checks = append(application.checks, api.HealthCheck{Name: "locker", Pinger: locker})
	return nil
}

// newSender delivers over SMTP when a relay is configured and only logs otherwise.
func newSender(cfg *config.Config, logger *slog.Logger) mailer.Sender {
	if cfg.SMTPHost == "" {
		return mailer.NewLogSender(logger)
	}
	return mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
}

// # Lifecycle

// HealthChecks lists the dependencies the readiness probe pings.
func (application *App) HealthChecks() []api.HealthCheck {
	return application.checks
}

// Close releases every backend in reverse order of opening.
func (application *App) Close() {
	for i := len(application.closers) - 1; i >= 0; i-- {
		application.closers[i]()
	}
	application.closers = nil
}

func (application *App) onClose(name string, release func()) {
	application.closers = append(application.closers, func() {
		application.logger.Info("closing_backend", slog.String("backend", name))
		release()
	})
}
