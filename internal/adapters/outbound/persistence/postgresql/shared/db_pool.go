package shared

import (
	"database/sql"
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxOpenConns:    20,
		MaxIdleConns:    20,
		ConnMaxIdleTime: 5 * time.Minute,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// NewDatabasePool opens a pgx-backed pool. Zero option fields fall back to the defaults.
func NewDatabasePool(databaseURL string, options PoolOptions, logger *log.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	defaults := DefaultPoolOptions()
	if options.MaxOpenConns <= 0 {
		options.MaxOpenConns = defaults.MaxOpenConns
	}
	if options.MaxIdleConns <= 0 {
		options.MaxIdleConns = options.MaxOpenConns
	}
	if options.ConnMaxIdleTime <= 0 {
		options.ConnMaxIdleTime = defaults.ConnMaxIdleTime
	}
	if options.ConnMaxLifetime <= 0 {
		options.ConnMaxLifetime = defaults.ConnMaxLifetime
	}

	db.SetMaxOpenConns(options.MaxOpenConns)
	db.SetMaxIdleConns(options.MaxIdleConns)
	db.SetConnMaxIdleTime(options.ConnMaxIdleTime)
	db.SetConnMaxLifetime(options.ConnMaxLifetime)

	if logger != nil {
		logger.Printf("database pool initialized max_open=%d max_idle=%d", options.MaxOpenConns, options.MaxIdleConns)
	}

	return db, nil
}
