package turso

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"
)

// Options configures how the database is opened.
type Options struct {
	// URL is a remote libsql URL or a local "file:" DSN. Empty means a
	// local file named shinyhunt.db inside DataDir.
	URL       string
	AuthToken string
	DataDir   string
	Ping      bool
}

// IsRemote reports whether the options point at a remote Turso database.
func (o Options) IsRemote() bool {
	return strings.HasPrefix(o.URL, "libsql://") || strings.HasPrefix(o.URL, "https://") || strings.HasPrefix(o.URL, "http://")
}

// DSN returns the connection string passed to the libsql driver.
func (o Options) DSN() (string, error) {
	switch {
	case o.URL == "":
		if o.DataDir == "" {
			return "", fmt.Errorf("no database URL and no data directory configured")
		}
		return "file:" + filepath.Join(o.DataDir, "shinyhunt.db"), nil
	case o.IsRemote():
		if o.AuthToken == "" {
			return o.URL, nil
		}
		return o.URL + "?authToken=" + o.AuthToken, nil
	default:
		return o.URL, nil
	}
}

// Open opens the hunt database.
func Open(ctx context.Context, opts Options) (*sql.DB, error) {
	dsn, err := opts.DSN()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if opts.IsRemote() {
		// Turso drops idle Hrana streams, so stale pooled connections fail
		// with "stream not found".
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(0)
		db.SetConnMaxLifetime(5 * time.Minute)
		db.SetConnMaxIdleTime(0)
	} else {
		// One writer for a local SQLite file.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	if opts.Ping {
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
	}
	return db, nil
}

// IsStreamError checks if an error is a Turso "stream not found" error.
func IsStreamError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "stream not found")
}

// WithRetry runs fn again, up to maxRetries times, while it fails with a
// Turso stream error.
func WithRetry[T any](ctx context.Context, maxRetries int, fn func() (T, error)) (T, error) {
	var result T
	var err error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		result, err = fn()
		if err == nil {
			return result, nil
		}
		if !IsStreamError(err) || attempt == maxRetries {
			return result, err
		}
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
	return result, err
}
