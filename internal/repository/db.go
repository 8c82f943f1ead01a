package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/db/migrations"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver           string
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// DB bundles the ent SQL driver with the pgx pool backing it (postgres only).
type DB struct {
	Driver *entsql.Driver
	Pool   *pgxpool.Pool
	dsn    string
	logger *slog.Logger
}

// Open connects to postgres through a pgx pool, or opens a sqlite database
// (":memory:" when DSN is empty), and wraps the connection for ent.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Driver {
	case DriverSQLite:
		return openSQLite(cfg, logger)
	case DriverPostgres, "":
		return openPostgres(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "driver", DriverPostgres)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "airline-invoice-extractor"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	db := stdlib.OpenDBFromPool(pool)
	logger.Info("successfully connected to database")
	return &DB{
		Driver: entsql.OpenDB(dialect.Postgres, db),
		Pool:   pool,
		dsn:    cfg.DSN,
		logger: logger,
	}, nil
}

func openSQLite(cfg Config, logger *slog.Logger) (*DB, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = ":memory:"
	}
	logger.Info("opening database", "driver", DriverSQLite, "dsn", dsn)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One connection: an in-memory database exists per connection, and
	// sqlite serializes writers anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &DB{
		Driver: entsql.OpenDB(dialect.SQLite, db),
		dsn:    dsn,
		logger: logger,
	}, nil
}

// Dialect returns the ent dialect name.
func (d *DB) Dialect() string {
	return d.Driver.Dialect()
}

// Close closes the database connections gracefully
func (d *DB) Close() {
	d.logger.Info("closing database connections")
	if err := d.Driver.Close(); err != nil {
		d.logger.Error("failed to close database", "error", err)
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
	d.logger.Info("database connections closed")
}

// HealthCheck pings the database.
func (d *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	d.logger.Debug("pinging database")
	if d.Pool != nil {
		return d.Pool.Ping(ctx)
	}
	return d.Driver.DB().PingContext(ctx)
}

// Migrate applies every pending embedded migration for the dialect.
func (d *DB) Migrate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := DriverPostgres
	if d.Dialect() == dialect.SQLite {
		dir = DriverSQLite
	}
	src, err := iofs.New(migrations.FS, dir)
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	var m *migrate.Migrate
	switch d.Dialect() {
	case dialect.SQLite:
		drv, err := sqlitemigrate.WithInstance(d.Driver.DB(), &sqlitemigrate.Config{})
		if err != nil {
			return fmt.Errorf("migration driver: %w", err)
		}
		// Not closed: closing the migrate driver closes the shared *sql.DB.
		m, err = migrate.NewWithInstance("iofs", src, DriverSQLite, drv)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	default:
		db, err := sql.Open("pgx", d.dsn)
		if err != nil {
			return fmt.Errorf("migration connection: %w", err)
		}
		drv, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
		if err != nil {
			_ = db.Close()
			return fmt.Errorf("migration driver: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, DriverPostgres, drv)
		if err != nil {
			_ = db.Close()
			return fmt.Errorf("migrate: %w", err)
		}
		defer func() { _, _ = m.Close() }()
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	v, dirty, _ := m.Version()
	d.logger.Info("database migrated", "version", v, "dirty", dirty)
	return nil
}
