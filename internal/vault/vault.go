// Package vault implements the key-vault federation of §4.5: an ordered
// list of key stores, insert-once semantics, and first-hit lookup.
//
// Grounded on SatyamHitman-go-ofscraper's internal/cache package (sqlite
// cache backend shape, pure-Go driver) and Diniboy1123/manifesto's
// fsnotify-based config watcher (cache invalidation on external writes).
package vault

import (
	"context"

	"github.com/reelvault/reelvault/internal/drm"
)

// InsertResult is the three-way outcome of Vault.Insert per §4.5.
type InsertResult int

const (
	InsertSuccess InsertResult = iota
	InsertAlreadyExists
	InsertFailure
)

func (r InsertResult) String() string {
	switch r {
	case InsertSuccess:
		return "SUCCESS"
	case InsertAlreadyExists:
		return "ALREADY_EXISTS"
	default:
		return "FAILURE"
	}
}

// Vault is one key store in a Federation. Vaults are partitioned by
// service: a vault with no bucket for the given service reports
// InsertFailure rather than erroring, per §4.5.
type Vault interface {
	// Lookup returns the key for (service, kid), or ok=false on a miss.
	Lookup(ctx context.Context, service, kid string) (key drm.ContentKey, ok bool, err error)

	// Insert stores key under service, observing insert-once semantics:
	// a repeat of the same (service, kid, key) reports InsertAlreadyExists
	// rather than an error, even across process restarts for a persistent
	// vault.
	Insert(ctx context.Context, service string, key drm.ContentKey) (InsertResult, error)

	// Commit flushes any batched writes. A no-op for vaults that write
	// synchronously.
	Commit(ctx context.Context) error

	// Name identifies the vault in logs and federation ordering.
	Name() string
}
