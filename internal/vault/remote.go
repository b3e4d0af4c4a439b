package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/reelvault/reelvault/internal/drm"
)

// RemoteVault is a vault backed by a shared key-vault HTTP service,
// letting several orchestrator instances share one key store. Grounded on
// the same JSON-over-HTTP shape as drm.RemoteCdm/SatyamHitman-go-ofscraper's
// CDRMClient, reused here for a different endpoint family.
type RemoteVault struct {
	baseURL    string
	httpClient *http.Client
}

// NewRemoteVault builds a RemoteVault against a vault service base URL.
func NewRemoteVault(baseURL string, httpClient *http.Client) *RemoteVault {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RemoteVault{baseURL: baseURL, httpClient: httpClient}
}

func (v *RemoteVault) Name() string { return "remote:" + v.baseURL }

type remoteLookupResponse struct {
	Found bool   `json:"found"`
	Key   string `json:"key"`
}

func (v *RemoteVault) Lookup(ctx context.Context, service, kid string) (drm.ContentKey, bool, error) {
	url := fmt.Sprintf("%s/vault/%s/%s", v.baseURL, service, kid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return drm.ContentKey{}, false, err
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return drm.ContentKey{}, false, fmt.Errorf("vault lookup request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return drm.ContentKey{}, false, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return drm.ContentKey{}, false, fmt.Errorf("read vault lookup response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return drm.ContentKey{}, false, fmt.Errorf("vault service status %d: %s", resp.StatusCode, body)
	}

	var out remoteLookupResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return drm.ContentKey{}, false, fmt.Errorf("parse vault lookup response: %w", err)
	}
	if !out.Found {
		return drm.ContentKey{}, false, nil
	}
	return drm.ContentKey{KID: kid, Key: out.Key}, true, nil
}

type remoteInsertRequest struct {
	KID string `json:"kid"`
	Key string `json:"key"`
}

type remoteInsertResponse struct {
	Result string `json:"result"` // "SUCCESS" | "ALREADY_EXISTS" | "FAILURE"
}

func (v *RemoteVault) Insert(ctx context.Context, service string, key drm.ContentKey) (InsertResult, error) {
	payload, err := json.Marshal(remoteInsertRequest{KID: key.KID, Key: key.Key})
	if err != nil {
		return InsertFailure, fmt.Errorf("marshal vault insert request: %w", err)
	}

	url := fmt.Sprintf("%s/vault/%s", v.baseURL, service)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return InsertFailure, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return InsertFailure, fmt.Errorf("vault insert request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return InsertFailure, fmt.Errorf("read vault insert response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		// The remote vault exposes no bucket for this service.
		return InsertFailure, nil
	}
	if resp.StatusCode != http.StatusOK {
		return InsertFailure, fmt.Errorf("vault service status %d: %s", resp.StatusCode, body)
	}

	var out remoteInsertResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return InsertFailure, fmt.Errorf("parse vault insert response: %w", err)
	}

	switch out.Result {
	case "SUCCESS":
		return InsertSuccess, nil
	case "ALREADY_EXISTS":
		return InsertAlreadyExists, nil
	default:
		return InsertFailure, nil
	}
}

// Commit is a no-op: the remote vault service writes synchronously on
// Insert; there is no local batch to flush.
func (v *RemoteVault) Commit(ctx context.Context) error { return nil }
