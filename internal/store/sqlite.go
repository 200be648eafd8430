package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteCache implements Cache using modernc.org/sqlite.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the cache database at the given path and
// configures WAL mode.
func NewSQLite(dsn string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteCache{db: db}, nil
}

const cacheMigration = `
CREATE TABLE IF NOT EXISTS llm_cache (
	fingerprint TEXT PRIMARY KEY,
	response    TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (c *SQLiteCache) Migrate(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, cacheMigration)
	return eris.Wrap(err, "sqlite: migrate cache")
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

func (c *SQLiteCache) Get(ctx context.Context, fingerprint string) (string, bool, error) {
	var response string
	err := c.db.QueryRowContext(ctx,
		`SELECT response FROM llm_cache WHERE fingerprint = ?`, fingerprint,
	).Scan(&response)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrap(err, "sqlite: cache get")
	}
	return response, true, nil
}

// Put stores a response under its fingerprint. Entries are immutable, so
// a concurrent insert of the same fingerprint is silently ignored.
func (c *SQLiteCache) Put(ctx context.Context, fingerprint, response string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO llm_cache (fingerprint, response, created_at) VALUES (?, ?, ?)`,
		fingerprint, response, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: cache put")
}
