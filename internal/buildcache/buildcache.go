// Package buildcache persists rendered route artifacts between production
// builds so unchanged routes are emitted without re-rendering.
package buildcache

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Cache is a SQLite-backed artifact store keyed by route. A route hits the
// cache when both its source hash and its dependency hash (template set +
// config) are unchanged.
type Cache struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates or opens the cache database. Use ":memory:" in tests.
func Open(dbPath string) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open build cache: %w", err)
	}
	c := &Cache{db: db}
	if err := c.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize build cache schema: %w", err)
	}
	return c, nil
}

func (c *Cache) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		route TEXT PRIMARY KEY,
		source_hash TEXT NOT NULL,
		deps_hash TEXT NOT NULL,
		rendered BLOB NOT NULL,
		built_at INTEGER NOT NULL
	);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Get returns the cached rendering for route when the hashes match.
func (c *Cache) Get(route, sourceHash, depsHash string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var gotSource, gotDeps string
	var rendered []byte
	err := c.db.QueryRow(
		"SELECT source_hash, deps_hash, rendered FROM artifacts WHERE route = ?", route,
	).Scan(&gotSource, &gotDeps, &rendered)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query build cache: %w", err)
	}
	if gotSource != sourceHash || gotDeps != depsHash {
		return nil, false, nil
	}
	return rendered, true, nil
}

// Put stores the rendering for route, replacing any previous artifact.
func (c *Cache) Put(route, sourceHash, depsHash string, rendered []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(
		`INSERT INTO artifacts (route, source_hash, deps_hash, rendered, built_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(route) DO UPDATE SET
		   source_hash = excluded.source_hash,
		   deps_hash = excluded.deps_hash,
		   rendered = excluded.rendered,
		   built_at = excluded.built_at`,
		route, sourceHash, depsHash, rendered, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("store build cache artifact: %w", err)
	}
	return nil
}

// Prune removes artifacts for routes no longer in the site.
func (c *Cache) Prune(liveRoutes map[string]bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.Query("SELECT route FROM artifacts")
	if err != nil {
		return fmt.Errorf("list build cache routes: %w", err)
	}
	var stale []string
	for rows.Next() {
		var route string
		if err := rows.Scan(&route); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan build cache route: %w", err)
		}
		if !liveRoutes[route] {
			stale = append(stale, route)
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("iterate build cache routes: %w", err)
	}
	_ = rows.Close()

	for _, route := range stale {
		if _, err := c.db.Exec("DELETE FROM artifacts WHERE route = ?", route); err != nil {
			return fmt.Errorf("prune build cache route %s: %w", route, err)
		}
	}
	return nil
}

// Close closes the database.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Close()
}
