// Package sqlite provides embedded, file-backed implementations of the job
// store and job queue interfaces using the pure-Go modernc.org/sqlite driver.
// Several processes may share one database file; writers serialize on the
// SQLite write lock and retry briefly when it is held.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	// Register the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

// Pragmas applied to every pooled connection.
var pragmas = []string{
	"journal_mode(WAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// Open opens (creating if needed) the database file at path and verifies the
// connection. Parent directories are created.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	return db, nil
}

func dsn(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	// Take the write lock when a transaction starts instead of on first write,
	// so concurrent transactions wait on busy_timeout rather than deadlock.
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}
