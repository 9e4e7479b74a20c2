// Copyright 2025 Certen Protocol
//
// WrapperProver is implemented here as a thin HTTP client against an
// external wrapper-proving service: the two wrapper circuits are black-box
// proof systems (spec.md's Non-goals exclude the circuits themselves), so
// this package never proves them itself, the same way pkg/proofsystem only
// verifies rather than proves the Spent/Balance/Update circuits. The
// request/response idiom mirrors pkg/clientstrategy/client.go's doJSON.

package withdrawal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WrapperClient calls a remote wrapper-proving service over HTTP.
type WrapperClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewWrapperClient builds a WrapperClient against a wrapper-prover base URL.
func NewWrapperClient(baseURL string, timeout time.Duration) *WrapperClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &WrapperClient{baseURL: baseURL, httpClient: &http.Client{Timeout: timeout}}
}

type wrapProofRequest struct {
	Chained []byte `json:"chained"`
}

type wrapProofResponse struct {
	Wrapped []byte `json:"wrapped"`
}

// WrapProof satisfies WrapperProver by posting the chained hash-chain proof
// to the remote service's /wrap-proof endpoint.
func (c *WrapperClient) WrapProof(ctx context.Context, chained []byte) ([]byte, error) {
	body, err := json.Marshal(wrapProofRequest{Chained: chained})
	if err != nil {
		return nil, fmt.Errorf("withdrawal: marshal wrap-proof request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/wrap-proof", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("withdrawal: build wrap-proof request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("withdrawal: wrap-proof request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("withdrawal: read wrap-proof response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("withdrawal: wrap-proof returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var out wrapProofResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("withdrawal: unmarshal wrap-proof response: %w", err)
	}
	return out.Wrapped, nil
}
