// Copyright 2025 Certen Protocol
//
// ProposingBlock phase: freeze a tx set into a BlockProposal, collect
// query_proposal/post_signature responses from senders, and verify their
// BLS signatures against tx_tree_root+pubkeys_hash, per spec.md §4.5.

package blockbuilder

import (
	"fmt"
	"sync"
	"time"

	"github.com/zkpayments/rollup-core/pkg/bls12"
	"github.com/zkpayments/rollup-core/pkg/poseidon"
)

const signatureDomain = "certen-block-builder-v1"

// BlockProposal is the frozen tx set a block's senders sign over.
type BlockProposal struct {
	BlockNumber uint64
	Kind        Kind
	Requests    []TxRequest
	TxTreeRoot  [32]byte
	PubkeysHash [32]byte
	Expiry      time.Time // deadline for post_signature, per spec.md §4.8
}

// BuildProposal freezes requests (already ordered, e.g. by RequestQueue.Drain)
// into a BlockProposal, computing tx_tree_root and pubkeys_hash. expiry is
// the deadline senders have to post_signature against it.
func BuildProposal(blockNumber uint64, kind Kind, requests []TxRequest, txTreeRoot [32]byte, expiry time.Time) BlockProposal {
	pubkeys := make([][]byte, 0, len(requests))
	for _, r := range requests {
		k := r.Pubkey
		pubkeys = append(pubkeys, k[:])
	}
	var pubkeysHash [32]byte
	copy(pubkeysHash[:], poseidon.HashBytes(pubkeys...))
	return BlockProposal{
		BlockNumber: blockNumber,
		Kind:        kind,
		Requests:    requests,
		TxTreeRoot:  txTreeRoot,
		PubkeysHash: pubkeysHash,
		Expiry:      expiry,
	}
}

// SigningMessage is the payload senders sign over via post_signature.
func (p BlockProposal) SigningMessage() []byte {
	return poseidon.Hash(p.TxTreeRoot[:], p.PubkeysHash[:])
}

// SenderSignature is one sender's post_signature response.
type SenderSignature struct {
	Pubkey    [32]byte
	Signature *bls12.Signature
	Included  bool // false if the sender opted out / timed out (sender_flag bit unset)
}

// SignatureCollector gathers post_signature responses for one BlockProposal
// and verifies each against the proposal's signing message.
type SignatureCollector struct {
	mu       sync.Mutex
	proposal BlockProposal
	byPubkey map[[32]byte]SenderSignature
}

// NewSignatureCollector starts collecting for proposal.
func NewSignatureCollector(proposal BlockProposal) *SignatureCollector {
	return &SignatureCollector{
		proposal: proposal,
		byPubkey: make(map[[32]byte]SenderSignature),
	}
}

// Submit verifies and records a sender's signature. Senders not found in
// the proposal's request set are rejected.
func (c *SignatureCollector) Submit(pubkey [32]byte, pubkeyObj *bls12.PublicKey, sig *bls12.Signature) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	found := false
	for _, r := range c.proposal.Requests {
		if r.Pubkey == pubkey {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("blockbuilder: signature from pubkey not in proposal")
	}

	msg := c.proposal.SigningMessage()
	if !pubkeyObj.VerifyWithDomain(sig, msg, signatureDomain) {
		return fmt.Errorf("blockbuilder: invalid signature for pubkey")
	}

	c.byPubkey[pubkey] = SenderSignature{Pubkey: pubkey, Signature: sig, Included: true}
	return nil
}

// SenderFlags returns, in request order, a bitmap of which senders signed
// in time for the post (true = signature included, matching spec.md's
// sender_flag bit).
func (c *SignatureCollector) SenderFlags() []bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	flags := make([]bool, len(c.proposal.Requests))
	for i, r := range c.proposal.Requests {
		flags[i] = c.byPubkey[r.Pubkey].Included
	}
	return flags
}

// Aggregate combines all collected signatures (in request order, skipping
// senders who never signed) into a single aggregate signature plus the
// matching public key list, ready for on-chain submission.
func (c *SignatureCollector) Aggregate(pubkeyLookup func([32]byte) *bls12.PublicKey) (*bls12.Signature, []*bls12.PublicKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var sigs []*bls12.Signature
	var pubkeys []*bls12.PublicKey
	for _, r := range c.proposal.Requests {
		entry, ok := c.byPubkey[r.Pubkey]
		if !ok {
			continue
		}
		sigs = append(sigs, entry.Signature)
		pubkeys = append(pubkeys, pubkeyLookup(entry.Pubkey))
	}
	if len(sigs) == 0 {
		return nil, nil, fmt.Errorf("blockbuilder: no signatures collected for block %d", c.proposal.BlockNumber)
	}
	agg, err := bls12.AggregateSignatures(sigs)
	if err != nil {
		return nil, nil, fmt.Errorf("blockbuilder: aggregate signatures: %w", err)
	}
	return agg, pubkeys, nil
}
