package drm

import "context"

// Vault is the subset of VaultFederation (internal/vault) DrmSession
// depends on, kept here to avoid an import cycle: vault.Federation
// satisfies this interface structurally.
type Vault interface {
	// Lookup walks the federation's vaults in order and returns the first
	// hit. ok is false if no vault holds the (service, kid) pair.
	Lookup(ctx context.Context, service, kid string) (key ContentKey, ok bool, err error)

	// InsertAll replicates key into every vault in the federation, per
	// §4.5's insert-once semantics (a vault that already has the key
	// reports ALREADY_EXISTS internally and is not treated as an error
	// here).
	InsertAll(ctx context.Context, service string, key ContentKey) error
}
