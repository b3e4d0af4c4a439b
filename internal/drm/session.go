package drm

import (
	"context"
	"fmt"
)

// Refresher is implemented by an Adapter that can refresh its session
// cookies ahead of a license retry. Adapters that have nothing to refresh
// need not implement it; a failed retry with no Refresher just resends the
// identical request once.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// KeyRequest carries everything AcquireKey needs for one track's key
// exchange: the CDM init data (a Widevine PSSH box or a PlayReady WRM
// header, already extracted by internal/parser or internal/box), the
// track's normalized kid, and enough identity to build a LicenseRequest.
type KeyRequest struct {
	System             System
	InitData           []byte
	KID                string
	TitleID            string
	TrackID            string
	ServiceCertificate []byte // Widevine only; nil uses the CDM's own default
}

// DrmSession drives the session protocol of §4.4 for one title: vault
// lookup, CDM challenge/parse/extract, and vault replication. It holds no
// cryptographic material of its own — that lives entirely behind the Cdm
// and Adapter it was constructed with.
type DrmSession struct {
	cdms    map[System]Cdm
	adapter Adapter
	vault   Vault
	service string
}

// NewDrmSession builds a session for one service. cdms may include one or
// both systems; AcquireKey fails with ErrNoCdm if a request names a system
// with none registered.
func NewDrmSession(service string, adapter Adapter, vault Vault, cdms ...Cdm) *DrmSession {
	byS := make(map[System]Cdm, len(cdms))
	for _, c := range cdms {
		byS[c.System()] = c
	}
	return &DrmSession{cdms: byS, adapter: adapter, vault: vault, service: service}
}

// Supports reports whether a Cdm is registered for system.
func (s *DrmSession) Supports(system System) bool {
	_, ok := s.cdms[system]
	return ok
}

// AcquireKey implements the protocol's steps 3-6: vault consult, CDM
// session, challenge/license/parse, key extraction and filtering, vault
// replication. Steps 1-2 (PSSH/KID discovery) are the caller's
// responsibility — they live in internal/parser and internal/box, since
// PSSH shape varies by manifest format in a way this package need not know.
func (s *DrmSession) AcquireKey(ctx context.Context, req KeyRequest) (ContentKey, error) {
	if s.vault != nil {
		if key, ok, err := s.vault.Lookup(ctx, s.service, req.KID); err != nil {
			return ContentKey{}, fmt.Errorf("vault lookup: %w", err)
		} else if ok {
			if err := s.vault.InsertAll(ctx, s.service, key); err != nil {
				return ContentKey{}, fmt.Errorf("vault replicate: %w", err)
			}
			return key, nil
		}
	}

	cdm, ok := s.cdms[req.System]
	if !ok {
		return ContentKey{}, fmt.Errorf("%w: %s", ErrNoCdm, req.System)
	}

	session, err := cdm.Open(ctx)
	if err != nil {
		return ContentKey{}, fmt.Errorf("open cdm session: %w", err)
	}
	defer cdm.Close(ctx, session)

	if req.System == SystemWidevine {
		if err := cdm.SetServiceCertificate(ctx, session, req.ServiceCertificate); err != nil {
			return ContentKey{}, fmt.Errorf("set service certificate: %w", err)
		}
	}

	challenge, err := cdm.GetLicenseChallenge(ctx, session, req.InitData)
	if err != nil {
		return ContentKey{}, fmt.Errorf("build license challenge: %w", err)
	}

	licenseReq := LicenseRequest{
		Challenge: challenge,
		TitleID:   req.TitleID,
		TrackID:   req.TrackID,
		SessionID: fmt.Sprintf("%v", session),
		System:    req.System,
	}

	resp, err := s.requestLicenseWithRetry(ctx, licenseReq)
	if err != nil {
		return ContentKey{}, err
	}

	if err := cdm.ParseLicense(ctx, session, resp.License); err != nil {
		return ContentKey{}, fmt.Errorf("parse license: %w", err)
	}

	keys, err := cdm.GetKeys(ctx, session)
	if err != nil {
		return ContentKey{}, fmt.Errorf("get keys: %w", err)
	}
	keys = FilterWatermarkKeys(keys)
	if len(keys) == 0 {
		return ContentKey{}, ErrNoMatchingKey
	}

	for _, k := range keys {
		if k.KID != req.KID {
			continue
		}
		if s.vault != nil {
			if err := s.vault.InsertAll(ctx, s.service, k); err != nil {
				return ContentKey{}, fmt.Errorf("vault replicate: %w", err)
			}
		}
		return k, nil
	}
	return ContentKey{}, ErrNoMatchingKey
}

// requestLicenseWithRetry implements "License call non-200 or empty is
// retried once after refreshing adapter session; second failure is
// track-fatal" from §4.4's failure modes.
func (s *DrmSession) requestLicenseWithRetry(ctx context.Context, req LicenseRequest) (LicenseResponse, error) {
	resp, err := s.adapter.License(ctx, req)
	if err == nil && len(resp.License) > 0 {
		return resp, nil
	}

	if refresher, ok := s.adapter.(Refresher); ok {
		if refreshErr := refresher.Refresh(ctx); refreshErr != nil {
			return LicenseResponse{}, fmt.Errorf("%w: refresh failed: %v", ErrLicenseFailed, refreshErr)
		}
	}

	resp, err = s.adapter.License(ctx, req)
	if err != nil {
		return LicenseResponse{}, fmt.Errorf("%w: %v", ErrLicenseFailed, err)
	}
	if len(resp.License) == 0 {
		return LicenseResponse{}, fmt.Errorf("%w: empty license response", ErrLicenseFailed)
	}
	return resp, nil
}
