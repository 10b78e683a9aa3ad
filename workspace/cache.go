package workspace

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS module_cache (
	module_path  TEXT PRIMARY KEY,
	src_mtime    INTEGER NOT NULL,
	bitcode_path TEXT NOT NULL
);
`

// Cache is the modernc.org/sqlite-backed index over a workspace's lib/
// directory of compiled .bc files, per §4.6. It is an index only: the
// .bc files on disk remain the source of truth, and the index can
// always be rebuilt by walking lib/ (see Prune).
type Cache struct {
	db *sql.DB
}

// OpenCache opens (creating if absent) the cache index at dsn.
func OpenCache(dsn string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
		return nil, fmt.Errorf("workspace: creating cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("workspace: opening cache index: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("workspace: enabling WAL mode: %w", err)
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("workspace: creating cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Lookup returns the recorded bitcode path for modulePath if it is
// still valid against srcMTime -- that is, if the recorded source
// mtime exactly matches. A mismatch (including "not recorded at all")
// is reported as !ok, signaling a recompile is required.
func (c *Cache) Lookup(modulePath string, srcMTime time.Time) (string, bool) {
	var bcPath string
	var recorded int64
	err := c.db.QueryRow(
		`SELECT bitcode_path, src_mtime FROM module_cache WHERE module_path = ?`,
		modulePath,
	).Scan(&bcPath, &recorded)
	if err != nil {
		return "", false
	}
	if recorded != srcMTime.UnixNano() {
		return "", false
	}
	if _, err := os.Stat(bcPath); err != nil {
		return "", false
	}
	return bcPath, true
}

// Record upserts the cache entry for modulePath.
func (c *Cache) Record(modulePath string, srcMTime time.Time, bitcodePath string) error {
	_, err := c.db.Exec(
		`INSERT INTO module_cache (module_path, src_mtime, bitcode_path) VALUES (?, ?, ?)
		 ON CONFLICT(module_path) DO UPDATE SET src_mtime = excluded.src_mtime, bitcode_path = excluded.bitcode_path`,
		modulePath, srcMTime.UnixNano(), bitcodePath,
	)
	if err != nil {
		return fmt.Errorf("workspace: recording cache entry for %q: %w", modulePath, err)
	}
	return nil
}

// Prune rebuilds the index from the .bc files actually present under
// <root>/lib, dropping any record whose bitcode file is gone and
// returning the module paths it removed. This is the recovery path
// when the index itself is lost or corrupted: the files on disk are
// authoritative.
func (c *Cache) Prune(root string) ([]string, error) {
	rows, err := c.db.Query(`SELECT module_path, bitcode_path FROM module_cache`)
	if err != nil {
		return nil, fmt.Errorf("workspace: listing cache entries: %w", err)
	}
	type entry struct{ modulePath, bcPath string }
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.modulePath, &e.bcPath); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("workspace: scanning cache entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	var removed []string
	for _, e := range entries {
		if _, err := os.Stat(e.bcPath); err != nil {
			if _, err := c.db.Exec(`DELETE FROM module_cache WHERE module_path = ?`, e.modulePath); err != nil {
				return removed, fmt.Errorf("workspace: pruning %q: %w", e.modulePath, err)
			}
			removed = append(removed, e.modulePath)
		}
	}

	libDir := filepath.Join(root, "lib")
	_ = filepath.Walk(libDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || !strings.HasSuffix(path, ".bc") {
			return nil
		}
		rel, err := filepath.Rel(libDir, path)
		if err != nil {
			return nil
		}
		modulePath := filepath.ToSlash(strings.TrimSuffix(rel, ".bc"))
		if _, ok := c.Lookup(modulePath, info.ModTime()); !ok {
			_ = c.Record(modulePath, info.ModTime(), path)
		}
		return nil
	})

	return removed, nil
}

// Stat reports the recorded bitcode path and source mtime for
// modulePath, for the `cache stat` CLI command. ok is false if nothing
// is recorded.
func (c *Cache) Stat(modulePath string) (bitcodePath string, srcMTime time.Time, ok bool) {
	var recorded int64
	err := c.db.QueryRow(
		`SELECT bitcode_path, src_mtime FROM module_cache WHERE module_path = ?`,
		modulePath,
	).Scan(&bitcodePath, &recorded)
	if err != nil {
		return "", time.Time{}, false
	}
	return bitcodePath, time.Unix(0, recorded), true
}

// Clear removes modulePath's cache entry and its bitcode file, for the
// `cache clear` CLI command. Clearing an entry that doesn't exist is
// not an error.
func (c *Cache) Clear(modulePath string) error {
	bcPath, _, ok := c.Stat(modulePath)
	if !ok {
		return nil
	}
	if _, err := c.db.Exec(`DELETE FROM module_cache WHERE module_path = ?`, modulePath); err != nil {
		return fmt.Errorf("workspace: clearing cache entry for %q: %w", modulePath, err)
	}
	if err := os.Remove(bcPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("workspace: removing bitcode file for %q: %w", modulePath, err)
	}
	return nil
}

// Close closes the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}
