package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bazaar.com/internal/domain/entity"
)

const maxResponseBytes = 1 << 20

// HTTPRegistry is a JSON client of an external custody service.
type HTTPRegistry struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRegistry creates a client for the registry at baseURL
func NewHTTPRegistry(baseURL string, timeout time.Duration) *HTTPRegistry {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPRegistry{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type ownerResponse struct {
	Owner string `json:"owner"`
}

type approvedResponse struct {
	Approved bool `json:"approved"`
}

type transferRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (r *HTTPRegistry) assetURL(key entity.AssetKey, suffix string) string {
	return fmt.Sprintf("%s/assets/%s/%s/%s",
		r.baseURL, url.PathEscape(key.Contract), url.PathEscape(key.TokenID), suffix)
}

func (r *HTTPRegistry) OwnerOf(ctx context.Context, key entity.AssetKey) (string, error) {
	var resp ownerResponse
	if err := r.do(ctx, http.MethodGet, r.assetURL(key, "owner"), nil, &resp); err != nil {
		return "", fmt.Errorf("owner of %s: %w", key, err)
	}
	return resp.Owner, nil
}

func (r *HTTPRegistry) IsApprovedForTransfer(ctx context.Context, key entity.AssetKey, operator string) (bool, error) {
	endpoint := r.assetURL(key, "approved") + "?operator=" + url.QueryEscape(operator)

	var resp approvedResponse
	if err := r.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return false, fmt.Errorf("approval of %s: %w", key, err)
	}
	return resp.Approved, nil
}

func (r *HTTPRegistry) Transfer(ctx context.Context, key entity.AssetKey, from, to string) error {
	body := transferRequest{From: from, To: to}
	if err := r.do(ctx, http.MethodPost, r.assetURL(key, "transfer"), body, nil); err != nil {
		return fmt.Errorf("transfer %s: %w", key, err)
	}
	return nil
}

func (r *HTTPRegistry) do(ctx context.Context, method, endpoint string, in, out any) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrUnknownAsset
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr errorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("registry returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("registry returned %d", resp.StatusCode)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
