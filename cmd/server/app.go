package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/UkralStul/content-alchemy/internal/allocator"
	"github.com/UkralStul/content-alchemy/internal/config"
	"github.com/UkralStul/content-alchemy/internal/digest"
	"github.com/UkralStul/content-alchemy/internal/evergreen"
	"github.com/UkralStul/content-alchemy/internal/ideas"
	"github.com/UkralStul/content-alchemy/internal/lifecycle"
	"github.com/UkralStul/content-alchemy/internal/logging"
	"github.com/UkralStul/content-alchemy/internal/notify"
	"github.com/UkralStul/content-alchemy/internal/schedule"
	"github.com/UkralStul/content-alchemy/internal/storage"
	"github.com/UkralStul/content-alchemy/internal/storage/inmemory"
	"github.com/UkralStul/content-alchemy/internal/storage/sqlstore"
	"github.com/UkralStul/content-alchemy/internal/strategy"
)

// app - собранные зависимости процесса.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	store     storage.Storage
	validator *schedule.Validator
	alloc     *allocator.Allocator
	posts     *lifecycle.Engine
	recycler  *evergreen.Recycler
	ideas     *ideas.Service
	strategy  *strategy.Service
	digest    *digest.Builder
	runner    *digest.Runner
	observer  *notify.Observer
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if storageType != "" {
		cfg.Storage.Driver = storageType
		cfg = config.Normalize(cfg)
		if err := cfg.Validate(); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	validator := schedule.NewValidator(loc, nil)
	alloc := allocator.New(store, logger.With("component", "allocator"), cfg.Allocator.MaxRetries)
	builder := digest.NewBuilder(store, validator, logger.With("component", "digest"))

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		validator: validator,
		alloc:     alloc,
		posts:     lifecycle.New(store, alloc, validator, logger.With("component", "lifecycle")),
		recycler:  evergreen.New(store, alloc, validator, logger.With("component", "evergreen")),
		ideas:     ideas.New(store, alloc, validator.Now, logger.With("component", "ideas")),
		strategy:  strategy.New(store, validator, logger.With("component", "strategy")),
		digest:    builder,
		runner:    digest.NewRunner(store, builder, digest.LogSender{Logger: logger}, validator, logger.With("component", "digest")),
		observer:  notify.NewObserver(cfg.Server.SubscriberBuffer),
	}, nil
}

func openStore(cfg config.Config, logger *slog.Logger) (storage.Storage, error) {
	logger.Info("opening storage", "driver", cfg.Storage.Driver)
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		store, err := sqlstore.OpenPostgres(cfg.Storage.DSN, cfg.GormLogLevel())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return store, nil
	case config.DriverSQLite:
		store, err := sqlstore.OpenSQLite(cfg.Storage.Path, cfg.GormLogLevel())
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		return store, nil
	default:
		return inmemory.New(), nil
	}
}
