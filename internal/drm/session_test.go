package drm

import (
	"context"
	"errors"
	"testing"
)

type fakeCdm struct {
	system  System
	keys    []ContentKey
	opened  bool
	closed  bool
	challDt []byte
}

func (f *fakeCdm) System() System { return f.system }
func (f *fakeCdm) Open(ctx context.Context) (Session, error) {
	f.opened = true
	return "sess-1", nil
}
func (f *fakeCdm) SetServiceCertificate(ctx context.Context, session Session, cert []byte) error {
	return nil
}
func (f *fakeCdm) GetLicenseChallenge(ctx context.Context, session Session, initData []byte) ([]byte, error) {
	f.challDt = initData
	return []byte("challenge"), nil
}
func (f *fakeCdm) ParseLicense(ctx context.Context, session Session, response []byte) error {
	return nil
}
func (f *fakeCdm) GetKeys(ctx context.Context, session Session) ([]ContentKey, error) {
	return f.keys, nil
}
func (f *fakeCdm) Close(ctx context.Context, session Session) error {
	f.closed = true
	return nil
}

type fakeAdapter struct {
	fail      bool
	refreshed bool
	calls     int
}

func (a *fakeAdapter) License(ctx context.Context, req LicenseRequest) (LicenseResponse, error) {
	a.calls++
	if a.fail && !a.refreshed {
		return LicenseResponse{}, errors.New("license server error")
	}
	return LicenseResponse{License: []byte("license-bytes")}, nil
}

func (a *fakeAdapter) Refresh(ctx context.Context) error {
	a.refreshed = true
	return nil
}

type fakeVault struct {
	store map[string]ContentKey
}

func newFakeVault() *fakeVault { return &fakeVault{store: map[string]ContentKey{}} }

func (v *fakeVault) Lookup(ctx context.Context, service, kid string) (ContentKey, bool, error) {
	k, ok := v.store[service+"|"+kid]
	return k, ok, nil
}

func (v *fakeVault) InsertAll(ctx context.Context, service string, key ContentKey) error {
	v.store[service+"|"+key.KID] = key
	return nil
}

func TestAcquireKeyHappyPath(t *testing.T) {
	cdm := &fakeCdm{system: SystemWidevine, keys: []ContentKey{{KID: "abc123", Key: "deadbeef"}}}
	adapter := &fakeAdapter{}
	vault := newFakeVault()
	sess := NewDrmSession("svc", adapter, vault, cdm)

	key, err := sess.AcquireKey(context.Background(), KeyRequest{System: SystemWidevine, KID: "abc123", InitData: []byte("pssh")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.Key != "deadbeef" {
		t.Fatalf("expected matched key, got %+v", key)
	}
	if !cdm.opened || !cdm.closed {
		t.Fatal("expected cdm session opened and closed")
	}
	if stored, ok, _ := vault.Lookup(context.Background(), "svc", "abc123"); !ok || stored.Key != "deadbeef" {
		t.Fatal("expected key replicated into vault")
	}
}

func TestAcquireKeyVaultHit(t *testing.T) {
	cdm := &fakeCdm{system: SystemWidevine}
	adapter := &fakeAdapter{}
	vault := newFakeVault()
	vault.store["svc|abc123"] = ContentKey{KID: "abc123", Key: "cachedkey"}
	sess := NewDrmSession("svc", adapter, vault, cdm)

	key, err := sess.AcquireKey(context.Background(), KeyRequest{System: SystemWidevine, KID: "abc123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.Key != "cachedkey" {
		t.Fatalf("expected vault-cached key, got %+v", key)
	}
	if cdm.opened {
		t.Fatal("expected cdm session never opened on vault hit")
	}
}

func TestAcquireKeyFiltersWatermark(t *testing.T) {
	cdm := &fakeCdm{system: SystemWidevine, keys: []ContentKey{
		{KID: amazonHDCPTestKID, Key: "watermark"},
		{KID: "abc123", Key: "real"},
	}}
	sess := NewDrmSession("svc", &fakeAdapter{}, newFakeVault(), cdm)

	key, err := sess.AcquireKey(context.Background(), KeyRequest{System: SystemWidevine, KID: "abc123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.Key != "real" {
		t.Fatalf("expected watermark key filtered out, got %+v", key)
	}
}

func TestAcquireKeyNoMatchingKid(t *testing.T) {
	cdm := &fakeCdm{system: SystemWidevine, keys: []ContentKey{{KID: "other", Key: "x"}}}
	sess := NewDrmSession("svc", &fakeAdapter{}, newFakeVault(), cdm)

	_, err := sess.AcquireKey(context.Background(), KeyRequest{System: SystemWidevine, KID: "abc123"})
	if !errors.Is(err, ErrNoMatchingKey) {
		t.Fatalf("expected ErrNoMatchingKey, got %v", err)
	}
}

func TestAcquireKeyRetriesOnceAfterRefresh(t *testing.T) {
	cdm := &fakeCdm{system: SystemWidevine, keys: []ContentKey{{KID: "abc123", Key: "x"}}}
	adapter := &fakeAdapter{fail: true}
	sess := NewDrmSession("svc", adapter, newFakeVault(), cdm)

	key, err := sess.AcquireKey(context.Background(), KeyRequest{System: SystemWidevine, KID: "abc123"})
	if err != nil {
		t.Fatalf("expected retry to succeed, got error: %v", err)
	}
	if key.Key != "x" {
		t.Fatalf("unexpected key: %+v", key)
	}
	if !adapter.refreshed {
		t.Fatal("expected adapter Refresh to have been called")
	}
	if adapter.calls != 2 {
		t.Fatalf("expected exactly 2 license calls (initial + retry), got %d", adapter.calls)
	}
}

func TestAcquireKeyNoCdmRegistered(t *testing.T) {
	sess := NewDrmSession("svc", &fakeAdapter{}, newFakeVault())
	_, err := sess.AcquireKey(context.Background(), KeyRequest{System: SystemPlayReady, KID: "abc123"})
	if !errors.Is(err, ErrNoCdm) {
		t.Fatalf("expected ErrNoCdm, got %v", err)
	}
}
