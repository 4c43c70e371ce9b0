package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const maxConnectWait = 30 * time.Second

// Open opens a SQLite database with the recommended pragmas and validates connectivity.
// A locked database file is retried with exponential backoff.
func Open(ctx context.Context, dbPath string, log *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = maxConnectWait

	err = backoff.RetryNotify(
		func() error {
			if err := db.PingContext(ctx); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
			return nil
		},
		backoff.WithContext(policy, ctx),
		func(err error, next time.Duration) {
			log.Warn("sqlite not ready, retrying", zap.Error(err), zap.Duration("next_attempt_in", next))
		},
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	// Every pooled connection to :memory: would get its own empty database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	return db, nil
}

// dsn carries the pragmas in the connection string so that every pooled
// connection gets them, not only the first one.
func dsn(dbPath string) string {
	return "file:" + dbPath +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)"
}
