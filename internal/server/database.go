package server

import (
	"context"
	"log/slog"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/common"
	repo "github.com/yashgoyal264-hub/airline-invoice-extractor/internal/repository"
)

// ConnectDB opens the configured store, checks it and applies migrations.
func ConnectDB(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repo.DB, error) {
	logger.Info("connecting to database", "driver", cfg.Driver)
	db, err := repo.Open(ctx, repo.Config{
		Driver:           cfg.Driver,
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		DialTimeout:      cfg.DialTimeout,
		StatementTimeout: cfg.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, common.WrapError(err, "connect database")
	}

	if err := db.HealthCheck(ctx, cfg.DialTimeout); err != nil {
		logger.Error("database health check failed", "error", err)
		db.Close()
		return nil, common.WrapError(err, "database health check")
	}
	if err := db.Migrate(ctx); err != nil {
		logger.Error("database migration failed", "error", err)
		db.Close()
		return nil, common.WrapError(err, "migrate database")
	}
	logger.Info("database ready", "dialect", db.Dialect())
	return db, nil
}
