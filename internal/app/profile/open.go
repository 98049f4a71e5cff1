package profile

import (
	"context"

	"groupnav/internal/app/db"
)

// Open connects to the store addressed by dsn: a postgres:// URL selects PostgreSQL,
// anything else is treated as a SQLite path.
func Open(ctx context.Context, dsn string) (Store, error) {
	if db.IsPostgresDSN(dsn) {
		pool, err := db.NewPool(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return NewPostgresStore(pool), nil
	}

	sqlDB, err := db.OpenSQLite(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return NewSQLiteStore(sqlDB), nil
}
