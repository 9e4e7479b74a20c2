// Copyright 2025 Certen Protocol
//
// Send flow: quote fee -> sign tx -> tx_request -> poll query_proposal ->
// sign proposal -> post_signature -> wait for tx-tree root on-chain, per
// spec.md §4.8. The HTTP round trips follow the same http.Client{Timeout},
// json.Marshal/NewRequestWithContext shape used elsewhere in this codebase
// for peer-to-peer HTTP calls.

package clientstrategy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/zkpayments/rollup-core/pkg/bls12"
	"github.com/zkpayments/rollup-core/pkg/poseidon"
)

// BlockSyncMargin is added to a proposal's expiry before a send is
// considered abandoned, accounting for clock skew between the client and
// the block builder.
const BlockSyncMargin = 20 * time.Second

// ErrExpired is returned when a proposal's expiry, plus BlockSyncMargin,
// has already passed.
var ErrExpired = fmt.Errorf("clientstrategy: proposal expired")

// FeeQuote is the block builder's response to a fee quote request.
type FeeQuote struct {
	TokenIndex uint32
	Amount     string // decimal-encoded big.Int
}

// Proposal mirrors blockbuilder.BlockProposal's wire shape as seen by a
// sender polling query_proposal.
type Proposal struct {
	RequestID   uuid.UUID
	BlockNumber uint64
	TxTreeRoot  [32]byte
	PubkeysHash [32]byte
	Expiry      time.Time
}

// proposalSignatureDomain is the domain tag the block builder verifies
// post_signature signatures under.
const proposalSignatureDomain = "certen-block-builder-v1"

// SigningMessage is the payload a sender signs over in post_signature:
// the Poseidon hash of TxTreeRoot and PubkeysHash.
func (p Proposal) SigningMessage() []byte {
	return poseidon.Hash(p.TxTreeRoot[:], p.PubkeysHash[:])
}

// Client drives the send flow against one block builder endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a Client against a block builder base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// QuoteFee asks the block builder what fee a tx of the given kind requires.
func (c *Client) QuoteFee(ctx context.Context, kind string) (*FeeQuote, error) {
	var quote FeeQuote
	if err := c.doJSON(ctx, http.MethodGet, "/quote_fee?kind="+kind, nil, &quote); err != nil {
		return nil, fmt.Errorf("quote fee: %w", err)
	}
	return &quote, nil
}

type txRequestBody struct {
	Kind   string `json:"kind"`
	Pubkey string `json:"pubkey"`
	Tx     []byte `json:"tx"`
}

type txRequestResponse struct {
	RequestID uuid.UUID `json:"request_id"`
}

// SubmitTxRequest posts a signed tx to send_tx_request and returns the
// resulting request_id.
func (c *Client) SubmitTxRequest(ctx context.Context, kind, pubkey string, tx []byte) (uuid.UUID, error) {
	var resp txRequestResponse
	body := txRequestBody{Kind: kind, Pubkey: pubkey, Tx: tx}
	if err := c.doJSON(ctx, http.MethodPost, "/tx_request", body, &resp); err != nil {
		return uuid.UUID{}, fmt.Errorf("submit tx request: %w", err)
	}
	return resp.RequestID, nil
}

type proposalResponse struct {
	Ready       bool      `json:"ready"`
	BlockNumber uint64    `json:"block_number"`
	TxTreeRoot  [32]byte  `json:"tx_tree_root"`
	PubkeysHash [32]byte  `json:"pubkeys_hash"`
	Expiry      time.Time `json:"expiry"`
}

// QueryProposal polls for the BlockProposal covering requestID. Returns
// ready=false while the builder is still in AcceptingTxs.
func (c *Client) QueryProposal(ctx context.Context, requestID uuid.UUID) (*Proposal, bool, error) {
	var resp proposalResponse
	path := fmt.Sprintf("/query_proposal?request_id=%s", requestID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, false, fmt.Errorf("query proposal: %w", err)
	}
	if !resp.Ready {
		return nil, false, nil
	}
	return &Proposal{
		RequestID:   requestID,
		BlockNumber: resp.BlockNumber,
		TxTreeRoot:  resp.TxTreeRoot,
		PubkeysHash: resp.PubkeysHash,
		Expiry:      resp.Expiry,
	}, true, nil
}

type postSignatureBody struct {
	RequestID uuid.UUID `json:"request_id"`
	Pubkey    string    `json:"pubkey"`
	Signature string    `json:"signature"`
}

// PostSignature signs proposal with sk and posts it via post_signature.
// Aborts with ErrExpired if the proposal's expiry plus BlockSyncMargin has
// already passed.
func (c *Client) PostSignature(ctx context.Context, sk *bls12.PrivateKey, proposal Proposal) error {
	if time.Now().After(proposal.Expiry.Add(BlockSyncMargin)) {
		return ErrExpired
	}

	sig := sk.SignWithDomain(proposal.SigningMessage(), proposalSignatureDomain)
	body := postSignatureBody{
		RequestID: proposal.RequestID,
		Pubkey:    sk.PublicKey().Hex(),
		Signature: sig.Hex(),
	}
	if err := c.doJSON(ctx, http.MethodPost, "/post_signature", body, nil); err != nil {
		return fmt.Errorf("post signature: %w", err)
	}
	return nil
}

// OnChainRootWatcher checks whether a given tx-tree root has landed
// on-chain yet. Implemented by the contracts package; kept as an interface
// here so this package does not depend on go-ethereum directly.
type OnChainRootWatcher interface {
	HasRoot(ctx context.Context, root [32]byte) (bool, error)
}

// WaitForRoot polls watcher until proposal's TxTreeRoot appears on-chain,
// aborting if expiry+BlockSyncMargin passes first.
func WaitForRoot(ctx context.Context, watcher OnChainRootWatcher, proposal Proposal, pollInterval time.Duration) error {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	deadline := proposal.Expiry.Add(BlockSyncMargin)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		found, err := watcher.HasRoot(ctx, proposal.TxTreeRoot)
		if err != nil {
			return fmt.Errorf("wait for root: %w", err)
		}
		if found {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrExpired
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Send drives the full send flow for one tx: quote the fee, sign it via
// signTx, submit tx_request, poll query_proposal until ready, sign and post
// the proposal, then wait for its tx-tree root to land on-chain.
func (c *Client) Send(ctx context.Context, sk *bls12.PrivateKey, kind string, signTx func(fee *FeeQuote) ([]byte, error), watcher OnChainRootWatcher, pollInterval time.Duration) (Proposal, error) {
	pubkey := sk.PublicKey().Hex()

	fee, err := c.QuoteFee(ctx, kind)
	if err != nil {
		return Proposal{}, err
	}

	tx, err := signTx(fee)
	if err != nil {
		return Proposal{}, fmt.Errorf("sign tx: %w", err)
	}

	requestID, err := c.SubmitTxRequest(ctx, kind, pubkey, tx)
	if err != nil {
		return Proposal{}, err
	}

	var proposal Proposal
	for {
		p, ready, err := c.QueryProposal(ctx, requestID)
		if err != nil {
			return Proposal{}, err
		}
		if ready {
			proposal = *p
			break
		}
		select {
		case <-ctx.Done():
			return Proposal{}, ctx.Err()
		case <-time.After(pollIntervalOrDefault(pollInterval)):
		}
	}

	if err := c.PostSignature(ctx, sk, proposal); err != nil {
		return Proposal{}, err
	}

	if watcher != nil {
		if err := WaitForRoot(ctx, watcher, proposal, pollInterval); err != nil {
			return Proposal{}, err
		}
	}

	return proposal, nil
}

func pollIntervalOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
