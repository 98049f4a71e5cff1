/*
Package db opens the profile database and brings its schema up to date.

PostgreSQL is reached through a pgx pool; SQLite (the default for single-node installs)
through modernc.org/sqlite. Both apply the embedded goose migrations for their dialect.
*/
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"groupnav/internal/pkg/logx"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var embedMigrations embed.FS

const sqliteBusyTimeout = 5000

// IsPostgresDSN reports whether dsn addresses a PostgreSQL server.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// NewPool initializes a new PostgreSQL connection pool and executes database migrations.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := runMigrations(ctx, sqlDB, goose.DialectPostgres, "migrations/postgres"); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// OpenSQLite opens the SQLite database at path and executes database migrations.
// path may be a plain file path, a sqlite:// URL or a file: URI.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if isPlainPath(path) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", BuildSQLiteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// A single writer avoids SQLITE_BUSY between the HTTP handlers and the location writer.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if err := runMigrations(ctx, sqlDB, goose.DialectSQLite3, "migrations/sqlite"); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return sqlDB, nil
}

func isPlainPath(path string) bool {
	return !strings.HasPrefix(path, "sqlite://") && !strings.HasPrefix(path, "file:") && !strings.HasPrefix(path, ":memory:")
}

// BuildSQLiteDSN normalizes path into a modernc DSN with busy timeout and foreign keys enabled.
func BuildSQLiteDSN(path string) string {
	switch {
	case strings.HasPrefix(path, "sqlite://"):
		path = path[len("sqlite://"):]
	case strings.HasPrefix(path, "file:"), strings.HasPrefix(path, ":memory:"):
	default:
		path = "file:" + path
	}

	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", path, separator, sqliteBusyTimeout)
}

// runMigrations applies all pending migrations in dir for the given dialect.
func runMigrations(ctx context.Context, sqlDB *sql.DB, dialect goose.Dialect, dir string) error {
	fsys, err := fs.Sub(embedMigrations, dir)
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(dialect, sqlDB, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	logx.Info("Database migrations applied successfully.", "dialect", string(dialect), "applied", len(results))
	return nil
}
