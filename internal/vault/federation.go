package vault

import (
	"context"
	"fmt"

	"github.com/reelvault/reelvault/internal/drm"
)

// Federation holds an ordered list of vaults and implements drm.Vault,
// letting internal/drm depend only on the narrow interface it declared
// (vault.go and federation.go are the two halves that satisfy it).
type Federation struct {
	vaults []Vault
}

// NewFederation builds a federation over vaults in priority order: Lookup
// returns the first hit walking this order.
func NewFederation(vaults ...Vault) *Federation {
	return &Federation{vaults: vaults}
}

// Lookup walks the federation in order and returns the first hit, per
// §4.5. Satisfies drm.Vault.
func (f *Federation) Lookup(ctx context.Context, service, kid string) (drm.ContentKey, bool, error) {
	for _, v := range f.vaults {
		key, ok, err := v.Lookup(ctx, service, kid)
		if err != nil {
			return drm.ContentKey{}, false, fmt.Errorf("vault %s lookup: %w", v.Name(), err)
		}
		if ok {
			return key, true, nil
		}
	}
	return drm.ContentKey{}, false, nil
}

// InsertAll replicates key into every vault in the federation. A vault
// reporting InsertFailure (no bucket for the service) or InsertAlreadyExists
// is not treated as an overall error — only a genuine per-vault error is
// propagated. Satisfies drm.Vault.
func (f *Federation) InsertAll(ctx context.Context, service string, key drm.ContentKey) error {
	results, err := f.Insert(ctx, service, key)
	if err != nil {
		return err
	}
	_ = results
	return nil
}

// Insert replicates key into every vault and returns each vault's
// individual InsertResult, letting callers distinguish which vaults
// already had the key versus which newly received it.
func (f *Federation) Insert(ctx context.Context, service string, key drm.ContentKey) (map[string]InsertResult, error) {
	results := make(map[string]InsertResult, len(f.vaults))
	for _, v := range f.vaults {
		res, err := v.Insert(ctx, service, key)
		if err != nil {
			return results, fmt.Errorf("vault %s insert: %w", v.Name(), err)
		}
		results[v.Name()] = res
	}
	return results, nil
}

// Commit flushes pending writes for the named vault, or every vault if
// name is "".
func (f *Federation) Commit(ctx context.Context, name string) error {
	for _, v := range f.vaults {
		if name != "" && v.Name() != name {
			continue
		}
		if err := v.Commit(ctx); err != nil {
			return fmt.Errorf("vault %s commit: %w", v.Name(), err)
		}
	}
	return nil
}
