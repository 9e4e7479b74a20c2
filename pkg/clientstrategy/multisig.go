// Copyright 2025 Certen Protocol
//
// Multisig support: multiple keys may jointly own one account id, so the
// send-path post_signature step needs a participant's partial signature
// aggregated with the others before it is accepted as that account's
// signature. Grounded on blockbuilder.SignatureCollector's aggregate-then-
// verify shape, applied at the participant level instead of the per-block
// sender level.

package clientstrategy

import (
	"fmt"
	"sync"

	"github.com/zkpayments/rollup-core/pkg/bls12"
)

// MultisigParticipant is one signer in a BLS threshold account.
type MultisigParticipant struct {
	PublicKey *bls12.PublicKey
	Weight    uint32
}

// MultisigAccount is a set of participants jointly owning one account id,
// requiring signatures from participants totaling at least Threshold
// weight before a tx or proposal signature is considered complete.
type MultisigAccount struct {
	Participants []MultisigParticipant
	Threshold    uint32
}

// AccountPublicKey returns the aggregate public key identifying this
// multisig account on-chain.
func (a MultisigAccount) AccountPublicKey() (*bls12.PublicKey, error) {
	if len(a.Participants) == 0 {
		return nil, fmt.Errorf("clientstrategy: multisig account has no participants")
	}
	pubkeys := make([]*bls12.PublicKey, len(a.Participants))
	for i, p := range a.Participants {
		pubkeys[i] = p.PublicKey
	}
	return bls12.AggregatePublicKeys(pubkeys)
}

// weightOf looks up a participant's weight by public key, 0 if not found.
func (a MultisigAccount) weightOf(pk *bls12.PublicKey) uint32 {
	for _, p := range a.Participants {
		if p.PublicKey.Equal(pk) {
			return p.Weight
		}
	}
	return 0
}

// MultisigSessionState collects partial signatures toward a threshold for
// one signing message (a tx digest or a proposal's SigningMessage).
type MultisigSessionState struct {
	mu      sync.Mutex
	account MultisigAccount
	message []byte
	signed  map[string]*bls12.Signature // keyed by participant pubkey hex
}

// NewMultisigSession starts collecting partial signatures over message for
// account.
func NewMultisigSession(account MultisigAccount, message []byte) *MultisigSessionState {
	return &MultisigSessionState{
		account: account,
		message: message,
		signed:  make(map[string]*bls12.Signature),
	}
}

// Submit adds one participant's signature over the session's message,
// rejecting signatures from non-participants or that fail to verify.
func (s *MultisigSessionState) Submit(pk *bls12.PublicKey, sig *bls12.Signature) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.account.weightOf(pk) == 0 {
		return fmt.Errorf("clientstrategy: pubkey is not a participant in this multisig account")
	}
	if !pk.Verify(sig, s.message) {
		return fmt.Errorf("clientstrategy: invalid partial signature")
	}

	s.signed[pk.Hex()] = sig
	return nil
}

// WeightSigned returns the total participant weight that has submitted a
// valid signature so far.
func (s *MultisigSessionState) WeightSigned() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.weightSignedLocked()
}

func (s *MultisigSessionState) weightSignedLocked() uint32 {
	var total uint32
	for _, p := range s.account.Participants {
		if _, ok := s.signed[p.PublicKey.Hex()]; ok {
			total += p.Weight
		}
	}
	return total
}

// ThresholdMet reports whether enough participant weight has signed.
func (s *MultisigSessionState) ThresholdMet() bool {
	return s.WeightSigned() >= s.account.Threshold
}

// Aggregate combines all submitted partial signatures into one aggregate
// signature, failing if the threshold has not been met.
func (s *MultisigSessionState) Aggregate() (*bls12.Signature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.weightSignedLocked() < s.account.Threshold {
		return nil, fmt.Errorf("clientstrategy: multisig threshold not met")
	}

	sigs := make([]*bls12.Signature, 0, len(s.signed))
	for _, sig := range s.signed {
		sigs = append(sigs, sig)
	}
	return bls12.AggregateSignatures(sigs)
}
