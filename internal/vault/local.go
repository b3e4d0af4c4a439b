package vault

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no cgo.

	"github.com/reelvault/reelvault/internal/drm"
)

// LocalVault is the persistent, process-local key store: a pure-Go SQLite
// database partitioned by service via an allow-list of buckets, with an
// in-process read cache kept coherent against external writers via
// fsnotify (see watch.go). Grounded directly on SatyamHitman-go-ofscraper's
// internal/cache/sqlite.go (WAL mode, busy-timeout, INSERT-based dedup).
type LocalVault struct {
	db      *sql.DB
	buckets map[string]bool

	mu    sync.RWMutex
	cache map[string]drm.ContentKey // "service|kid" -> key

	watcher *watcher
}

// OpenLocalVault opens (creating if absent) a SQLite-backed vault at
// dbPath, accepting inserts only for the named services ("vaults are
// partitioned by service", §4.5).
func OpenLocalVault(dbPath string, services []string) (*LocalVault, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create vault dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open vault db: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS content_keys (
			service    TEXT NOT NULL,
			kid        TEXT NOT NULL,
			key        TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (service, kid)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create content_keys table: %w", err)
	}

	buckets := make(map[string]bool, len(services))
	for _, s := range services {
		buckets[s] = true
	}

	v := &LocalVault{
		db:      db,
		buckets: buckets,
		cache:   make(map[string]drm.ContentKey),
	}

	w, err := watchFile(dbPath, v.invalidateCache)
	if err != nil {
		// The vault still works without the watcher; it just serves a
		// possibly-stale in-process cache until the next process restart.
		w = nil
	}
	v.watcher = w

	return v, nil
}

func (v *LocalVault) Name() string { return "local" }

func cacheKey(service, kid string) string { return service + "|" + kid }

// Lookup consults the in-process cache first, falling back to the
// database and populating the cache on a hit.
func (v *LocalVault) Lookup(ctx context.Context, service, kid string) (drm.ContentKey, bool, error) {
	ck := cacheKey(service, kid)

	v.mu.RLock()
	if key, ok := v.cache[ck]; ok {
		v.mu.RUnlock()
		return key, true, nil
	}
	v.mu.RUnlock()

	var key string
	err := v.db.QueryRowContext(ctx,
		`SELECT key FROM content_keys WHERE service = ? AND kid = ?`, service, kid,
	).Scan(&key)
	if err == sql.ErrNoRows {
		return drm.ContentKey{}, false, nil
	}
	if err != nil {
		return drm.ContentKey{}, false, fmt.Errorf("lookup %s/%s: %w", service, kid, err)
	}

	found := drm.ContentKey{KID: kid, Key: key}
	v.mu.Lock()
	v.cache[ck] = found
	v.mu.Unlock()
	return found, true, nil
}

// Insert stores key under service, observing insert-once semantics via
// INSERT OR IGNORE plus a rows-affected check to distinguish SUCCESS from
// ALREADY_EXISTS. Reports InsertFailure when service has no configured
// bucket.
func (v *LocalVault) Insert(ctx context.Context, service string, key drm.ContentKey) (InsertResult, error) {
	if !v.buckets[service] {
		return InsertFailure, nil
	}

	res, err := v.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO content_keys (service, kid, key, created_at) VALUES (?, ?, ?, strftime('%s','now'))`,
		service, key.KID, key.Key,
	)
	if err != nil {
		return InsertFailure, fmt.Errorf("insert %s/%s: %w", service, key.KID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return InsertFailure, fmt.Errorf("rows affected %s/%s: %w", service, key.KID, err)
	}

	v.mu.Lock()
	v.cache[cacheKey(service, key.KID)] = key
	v.mu.Unlock()

	if rows == 0 {
		return InsertAlreadyExists, nil
	}
	return InsertSuccess, nil
}

// Commit is a no-op: every Insert already writes synchronously through
// database/sql. It exists to satisfy the Vault interface for callers that
// treat commit uniformly across vault backends.
func (v *LocalVault) Commit(ctx context.Context) error { return nil }

// Close releases the database handle and stops the file watcher. An
// interrupted process mid-write leaves WAL-mode SQLite's own crash
// recovery to restore a consistent file on next open, so no extra
// bookkeeping is needed here to satisfy "an interrupted process must not
// corrupt the vault".
func (v *LocalVault) Close() error {
	if v.watcher != nil {
		v.watcher.Close()
	}
	return v.db.Close()
}

func (v *LocalVault) invalidateCache() {
	v.mu.Lock()
	v.cache = make(map[string]drm.ContentKey)
	v.mu.Unlock()
}
