// Package database implements the anime, episode and watch-marker stores.
package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mydehq/anitrack/internal/types"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects and configures a store backend
type Options struct {
	Driver  string
	Path    string // SQLite file path
	DSN     string // PostgreSQL connection string
	Timeout time.Duration
}

// Open connects to the configured backend and ensures its schema exists
func Open(ctx context.Context, opts Options) (types.Store, error) {
	switch opts.Driver {
	case "", DriverSQLite:
		path := opts.Path
		if path == "" {
			var err error
			if path, err = DefaultPath(); err != nil {
				return nil, err
			}
		}
		s, err := OpenSQLite(ctx, path, opts.Timeout)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		if opts.DSN == "" {
			return nil, types.ErrConfigInvalid{Reason: "postgres driver requires a dsn"}
		}
		s, err := OpenPostgres(ctx, opts.DSN, opts.Timeout)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, types.ErrConfigInvalid{Reason: fmt.Sprintf("unknown database driver %q", opts.Driver)}
	}
}

// DefaultPath returns the default SQLite location under the user cache dir
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".cache", "anitrack", "anitrack.db"), nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func clampPage(q types.ListQuery) (offset, limit int) {
	offset = q.Offset
	if offset < 0 {
		offset = 0
	}
	return offset, q.Limit
}
