package vault

import (
	"context"
	"testing"

	"github.com/reelvault/reelvault/internal/drm"
)

type memVault struct {
	name    string
	buckets map[string]bool
	store   map[string]drm.ContentKey
}

func newMemVault(name string, services ...string) *memVault {
	buckets := make(map[string]bool, len(services))
	for _, s := range services {
		buckets[s] = true
	}
	return &memVault{name: name, buckets: buckets, store: map[string]drm.ContentKey{}}
}

func (m *memVault) Name() string { return m.name }

func (m *memVault) Lookup(ctx context.Context, service, kid string) (drm.ContentKey, bool, error) {
	k, ok := m.store[service+"|"+kid]
	return k, ok, nil
}

func (m *memVault) Insert(ctx context.Context, service string, key drm.ContentKey) (InsertResult, error) {
	if !m.buckets[service] {
		return InsertFailure, nil
	}
	ck := service + "|" + key.KID
	if _, exists := m.store[ck]; exists {
		return InsertAlreadyExists, nil
	}
	m.store[ck] = key
	return InsertSuccess, nil
}

func (m *memVault) Commit(ctx context.Context) error { return nil }

func TestFederationLookupFirstHit(t *testing.T) {
	v1 := newMemVault("v1", "svc")
	v2 := newMemVault("v2", "svc")
	v2.store["svc|abc"] = drm.ContentKey{KID: "abc", Key: "k2"}

	fed := NewFederation(v1, v2)
	key, ok, err := fed.Lookup(context.Background(), "svc", "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || key.Key != "k2" {
		t.Fatalf("expected hit from v2, got %+v ok=%v", key, ok)
	}
}

func TestFederationInsertOnceSemantics(t *testing.T) {
	v1 := newMemVault("v1", "svc")
	fed := NewFederation(v1)

	results, err := fed.Insert(context.Background(), "svc", drm.ContentKey{KID: "abc", Key: "k"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results["v1"] != InsertSuccess {
		t.Fatalf("expected SUCCESS on first insert, got %v", results["v1"])
	}

	results, err = fed.Insert(context.Background(), "svc", drm.ContentKey{KID: "abc", Key: "k"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results["v1"] != InsertAlreadyExists {
		t.Fatalf("expected ALREADY_EXISTS on repeat insert, got %v", results["v1"])
	}
}

func TestFederationInsertReplicatesAndReportsFailureForUnpartitionedService(t *testing.T) {
	v1 := newMemVault("v1", "svc")
	v2 := newMemVault("v2", "other-svc") // no bucket for "svc"

	fed := NewFederation(v1, v2)
	results, err := fed.Insert(context.Background(), "svc", drm.ContentKey{KID: "abc", Key: "k"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results["v1"] != InsertSuccess {
		t.Fatalf("expected v1 SUCCESS, got %v", results["v1"])
	}
	if results["v2"] != InsertFailure {
		t.Fatalf("expected v2 FAILURE (no bucket for service), got %v", results["v2"])
	}
}

func TestFederationSatisfiesDrmVaultInterface(t *testing.T) {
	var _ drm.Vault = NewFederation()
}
