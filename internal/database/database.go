// Package database centralises sqlx connection helpers.  The driver is
// go-sql-driver/mysql, which also serves MariaDB.
//
// Public entry points:
//
//	Open(ctx, dsn)                      – conservative pool sizes.
//	OpenWithOptions(ctx, dsn, Options)  – fine-grained control.
//
// Both helpers Ping the database before returning so callers can fail fast
// during bootstrap.  The DSN must set parseTime=true; Open adds it when
// missing because form_submission.submitted_at is scanned into time.Time.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// Options sizes the pool.  Zero values take the defaults used by Open.
type Options struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

// Open returns a *sqlx.DB with 15 max open, 5 idle, and a 30-minute
// connection lifetime.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	return OpenWithOptions(ctx, dsn, Options{})
}

// OpenWithOptions opens and pings a pool sized by opts.
func OpenWithOptions(ctx context.Context, dsn string, opts Options) (*sqlx.DB, error) {
	dsn, err := normalise(dsn)
	if err != nil {
		return nil, err
	}
	if opts.MaxOpen == 0 {
		opts.MaxOpen = 15
	}
	if opts.MaxIdle == 0 {
		opts.MaxIdle = 5
	}
	if opts.MaxLifetime == 0 {
		opts.MaxLifetime = 30 * time.Minute
	}

	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(opts.MaxOpen)
	db.SetMaxIdleConns(opts.MaxIdle)
	db.SetConnMaxLifetime(opts.MaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database ping: %w", err)
	}
	return db, nil
}

// normalise parses dsn and forces parseTime and a UTC location.
func normalise(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("database dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}
