// Package database opens the SQL handle for the configured storage driver.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/lib/pq"              // registers "postgres"
	_ "modernc.org/sqlite"             // registers "sqlite"

	"grc/internal/platform/config"
)

// Open returns a pinged *sql.DB for the postgres or sqlite storage drivers.
func Open(ctx context.Context, cfg config.Storage) (*sql.DB, error) {
	var (
		driver string
		dsn    string
	)
	switch cfg.Driver {
	case "postgres":
		driver, dsn = cfg.DatabaseDriver, cfg.DatabaseURL
	case "sqlite":
		driver, dsn = "sqlite", cfg.SQLitePath
	default:
		return nil, fmt.Errorf("storage driver %q has no database", cfg.Driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}
