// Copyright 2025 Certen Protocol
//
// Per-kind request queue: send_tx_request handling and its rejections, per
// spec.md §4.5.

package blockbuilder

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Kind is the block kind a request queue belongs to.
type Kind string

const (
	KindRegistration    Kind = "registration"
	KindNonRegistration Kind = "non_registration"
)

// Rejection is a typed reason a send_tx_request was refused.
type Rejection string

const (
	RejectBlockFull            Rejection = "block_full"
	RejectDuplicateSender      Rejection = "duplicate_sender_in_block"
	RejectOnlyOneSenderAllowed Rejection = "only_one_sender_allowed"
	RejectProverBehind         Rejection = "validity_prover_behind"
	RejectInvalidFeeProof      Rejection = "invalid_fee_proof"
)

// RejectionError wraps a Rejection so callers can switch on it.
type RejectionError struct {
	Reason Rejection
}

func (e *RejectionError) Error() string { return fmt.Sprintf("blockbuilder: request rejected: %s", e.Reason) }

// FeeProof is the fee-payment witness attached to a send_tx_request when
// use_fee is configured, per spec.md §4.5.
type FeeProof struct {
	FeeTransferWitness FeeTransferWitness
}

// FeeTransferWitness is the transfer a fee proof claims to make.
type FeeTransferWitness struct {
	Recipient  [32]byte
	TokenIndex uint32
	Amount     uint64 // u256 in spec; narrowed here, widen at the proof-system boundary if needed
}

// TxRequest is one accepted send_tx_request.
type TxRequest struct {
	RequestID uuid.UUID
	Kind      Kind
	Pubkey    [32]byte
	Tx        []byte // opaque encoded Tx (transfer_tree_root, nonce)
	FeeProof  *FeeProof
}

// RequestQueue holds accepted requests for one block kind between
// AcceptingTxs windows.
type RequestQueue struct {
	mu       sync.Mutex
	kind     Kind
	maxSize  int
	requests []TxRequest
	senders  map[[32]byte]bool
}

// NewRequestQueue creates an empty RequestQueue capped at maxSize requests
// per block.
func NewRequestQueue(kind Kind, maxSize int) *RequestQueue {
	return &RequestQueue{
		kind:    kind,
		maxSize: maxSize,
		senders: make(map[[32]byte]bool),
	}
}

// FeeRequirement configures the fee-validation gate for Submit.
type FeeRequirement struct {
	UseFee         bool
	FeeBeneficiary [32]byte
	FeeTokenIndex  uint32
	QuotedFee      uint64
}

// Submit appends a send_tx_request to the queue, returning its assigned
// request_id, or a *RejectionError for any of spec.md §4.5's named
// rejections.
func (q *RequestQueue) Submit(pubkey [32]byte, tx []byte, feeProof *FeeProof, isNewSender bool, req FeeRequirement) (uuid.UUID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.requests) >= q.maxSize {
		return uuid.Nil, &RejectionError{Reason: RejectBlockFull}
	}
	if q.senders[pubkey] {
		return uuid.Nil, &RejectionError{Reason: RejectDuplicateSender}
	}
	if q.kind == KindRegistration && isNewSender {
		for _, existing := range q.requests {
			if existing.Kind == KindRegistration {
				return uuid.Nil, &RejectionError{Reason: RejectOnlyOneSenderAllowed}
			}
		}
	}
	if req.UseFee {
		if feeProof == nil {
			return uuid.Nil, &RejectionError{Reason: RejectInvalidFeeProof}
		}
		w := feeProof.FeeTransferWitness
		if w.Recipient != req.FeeBeneficiary || w.TokenIndex != req.FeeTokenIndex || w.Amount < req.QuotedFee {
			return uuid.Nil, &RejectionError{Reason: RejectInvalidFeeProof}
		}
	}

	requestID := uuid.New()
	q.requests = append(q.requests, TxRequest{
		RequestID: requestID,
		Kind:      q.kind,
		Pubkey:    pubkey,
		Tx:        tx,
		FeeProof:  feeProof,
	})
	q.senders[pubkey] = true
	return requestID, nil
}

// Drain empties and returns the queue's current contents, for freezing the
// tx set at the start of ProposingBlock.
func (q *RequestQueue) Drain() []TxRequest {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.requests
	q.requests = nil
	q.senders = make(map[[32]byte]bool)
	return out
}

// Len reports the current queue depth.
func (q *RequestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests)
}
