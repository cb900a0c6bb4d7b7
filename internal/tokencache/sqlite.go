package tokencache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"momentshub/internal/hub"
	"momentshub/internal/tokencache/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteCache is a hub.TokenCache persisted in SQLite, so tokens survive
// between CLI invocations. Entries are partitioned by scope, one scope
// per connected repository and branch.
type SQLiteCache struct {
	db    *sql.DB
	scope string
}

// NewSQLiteCache opens (and migrates) the cache database at path.
// path can be a file path or ":memory:".
func NewSQLiteCache(path, scope string) (*SQLiteCache, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteCache{db: db, scope: scope}, nil
}

// OpenConnection opens a SQLite connection suitable for the cache.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open token cache: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and
	// serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// Scope identifies a repository branch, e.g. "octo/moments@main".
func Scope(owner, repo, branch string) string {
	return owner + "/" + repo + "@" + branch
}

func (c *SQLiteCache) Lookup(ctx context.Context, path string) (string, bool, error) {
	var token string
	err := c.db.QueryRowContext(ctx,
		`SELECT token FROM version_tokens WHERE scope = ? AND path = ?`, c.scope, path,
	).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("looking up version of %s: %w", path, err)
	}
	return token, true, nil
}

func (c *SQLiteCache) Remember(ctx context.Context, path, version string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO version_tokens (scope, path, token, updated_at)
		VALUES (?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT (scope, path) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at`,
		c.scope, path, version)
	if err != nil {
		return fmt.Errorf("remembering version of %s: %w", path, err)
	}
	return nil
}

func (c *SQLiteCache) Forget(ctx context.Context, path string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM version_tokens WHERE scope = ? AND path = ?`, c.scope, path); err != nil {
		return fmt.Errorf("forgetting version of %s: %w", path, err)
	}
	return nil
}

// Clear drops every entry of this cache's scope.
func (c *SQLiteCache) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM version_tokens WHERE scope = ?`, c.scope); err != nil {
		return fmt.Errorf("clearing token cache: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

var _ hub.TokenCache = (*SQLiteCache)(nil)
