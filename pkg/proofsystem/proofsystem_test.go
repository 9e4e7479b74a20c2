// Copyright 2025 Certen Protocol

package proofsystem

import (
	"context"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// setup compiles circuit and runs a (test-only, untrusted) groth16 setup,
// mirroring bls_zkp.BLSZKProver.Initialize.
func setup(t *testing.T, circuit frontend.Circuit) (groth16.ProvingKey, groth16.VerifyingKey) {
	t.Helper()
	cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		t.Fatalf("compile circuit: %v", err)
	}
	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		t.Fatalf("groth16 setup: %v", err)
	}
	return pk, vk
}

func prove(t *testing.T, pk groth16.ProvingKey, assignment frontend.Circuit) groth16.Proof {
	t.Helper()
	full, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		t.Fatalf("build full witness: %v", err)
	}
	proof, err := groth16.Prove(compileFor(t, assignment), pk, full)
	if err != nil {
		t.Fatalf("generate proof: %v", err)
	}
	return proof
}

func compileFor(t *testing.T, circuit frontend.Circuit) constraint.ConstraintSystem {
	// re-declares the same circuit shape used for Setup; Prove needs a
	// constraint system structurally identical to the one passed to Setup,
	// not the same object, so tests recompile a fresh copy of the circuit
	// rather than caching the first compile's output.
	t.Helper()
	cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		t.Fatalf("compile circuit: %v", err)
	}
	return cs
}

func TestSingleWithdrawal_CompressVerifyDecompressRoundTrips(t *testing.T) {
	witness := big.NewInt(42)
	pub := SingleWithdrawalPublicInputs{
		Recipient:  big.NewInt(111),
		TokenIndex: big.NewInt(0),
		Amount:     big.NewInt(1000),
	}
	nullifier := new(big.Int)
	{
		// Nullifier must equal commit(Recipient, TokenIndex, Amount, Witness)
		// under the same fixed-coefficient scheme as SingleWithdrawalCircuit.Define.
		r := big.NewInt(7)
		acc := new(big.Int).Set(pub.Recipient)
		power := new(big.Int).Set(r)
		acc.Add(acc, new(big.Int).Mul(pub.TokenIndex, power))
		power.Mul(power, r)
		acc.Add(acc, new(big.Int).Mul(pub.Amount, power))
		power.Mul(power, r)
		acc.Add(acc, new(big.Int).Mul(witness, power))
		nullifier = acc
	}
	pub.Nullifier = nullifier

	circuitShape := &SingleWithdrawalCircuit{}
	pk, vk := setup(t, circuitShape)

	assignment := &SingleWithdrawalCircuit{
		Recipient:  pub.Recipient,
		TokenIndex: pub.TokenIndex,
		Amount:     pub.Amount,
		Nullifier:  pub.Nullifier,
		Witness:    witness,
	}
	proof := prove(t, pk, assignment)

	blob, err := CompressSingleWithdrawalProof(proof, pub)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}

	registry := NewRegistry(t.TempDir())
	registry.SetKey(KindSingleWithdrawal, vk)
	verifier := NewVerifier(registry)

	ok, pwpi, err := verifier.Verify(context.Background(), KindSingleWithdrawal, blob)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("expected proof to verify")
	}
	if pwpi.Kind != KindSingleWithdrawal {
		t.Fatalf("expected kind %q, got %q", KindSingleWithdrawal, pwpi.Kind)
	}

	w, err := verifier.VerifySingleWithdrawal(context.Background(), blob)
	if err != nil {
		t.Fatalf("VerifySingleWithdrawal: %v", err)
	}
	if w.TokenIndex != 0 {
		t.Fatalf("expected token index 0, got %d", w.TokenIndex)
	}
	if w.Amount.Cmp(pub.Amount) != 0 {
		t.Fatalf("expected amount %s, got %s", pub.Amount, w.Amount)
	}
}

func TestProve_RejectsUnsatisfiableAssignment(t *testing.T) {
	circuitShape := &SingleWithdrawalCircuit{}
	pk, vk := setup(t, circuitShape)

	pub := SingleWithdrawalPublicInputs{
		Recipient:  big.NewInt(1),
		TokenIndex: big.NewInt(0),
		Amount:     big.NewInt(5),
		Nullifier:  big.NewInt(999999), // inconsistent with any witness
	}
	assignment := &SingleWithdrawalCircuit{
		Recipient:  pub.Recipient,
		TokenIndex: pub.TokenIndex,
		Amount:     pub.Amount,
		Nullifier:  pub.Nullifier,
		Witness:    big.NewInt(1),
	}

	full, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		t.Fatalf("build full witness: %v", err)
	}
	cs := compileFor(t, circuitShape)
	if _, err := groth16.Prove(cs, pk, full); err == nil {
		t.Fatal("expected proof generation to fail for an unsatisfiable assignment")
	}
	_ = vk
}

func TestVerify_RejectsBlobTaggedWithWrongKind(t *testing.T) {
	circuitShape := &SingleWithdrawalCircuit{}
	pk, vk := setup(t, circuitShape)

	witness := big.NewInt(3)
	pub := SingleWithdrawalPublicInputs{
		Recipient:  big.NewInt(10),
		TokenIndex: big.NewInt(1),
		Amount:     big.NewInt(20),
	}
	r := big.NewInt(7)
	acc := new(big.Int).Set(pub.Recipient)
	power := new(big.Int).Set(r)
	acc.Add(acc, new(big.Int).Mul(pub.TokenIndex, power))
	power.Mul(power, r)
	acc.Add(acc, new(big.Int).Mul(pub.Amount, power))
	power.Mul(power, r)
	acc.Add(acc, new(big.Int).Mul(witness, power))
	pub.Nullifier = acc

	assignment := &SingleWithdrawalCircuit{
		Recipient:  pub.Recipient,
		TokenIndex: pub.TokenIndex,
		Amount:     pub.Amount,
		Nullifier:  pub.Nullifier,
		Witness:    witness,
	}
	proof := prove(t, pk, assignment)
	blob, err := CompressSingleWithdrawalProof(proof, pub)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}

	registry := NewRegistry(t.TempDir())
	registry.SetKey(KindSingleClaim, vk)
	verifier := NewVerifier(registry)

	if _, _, err := verifier.Verify(context.Background(), KindSingleClaim, blob); err == nil {
		t.Fatal("expected kind mismatch error")
	}
}

func TestRegistry_GetUnknownKindFails(t *testing.T) {
	registry := NewRegistry(t.TempDir())
	if _, err := registry.Get(Kind("not-a-kind")); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestCompressDecompress_SpentProofRoundTripsPublicInputs(t *testing.T) {
	witness := big.NewInt(9)
	pub := SpentPublicInputs{
		PrevPrivateCommitment: big.NewInt(1),
		NewPrivateCommitment:  big.NewInt(0), // filled below
		Tx:                    big.NewInt(77),
		InsufficientFlags:     big.NewInt(0),
		IsValid:               true,
	}
	r := big.NewInt(7)
	acc := new(big.Int).Set(pub.PrevPrivateCommitment)
	power := new(big.Int).Set(r)
	acc.Add(acc, new(big.Int).Mul(pub.Tx, power))
	power.Mul(power, r)
	acc.Add(acc, new(big.Int).Mul(pub.InsufficientFlags, power))
	power.Mul(power, r)
	acc.Add(acc, new(big.Int).Mul(boolToBigInt(pub.IsValid), power))
	power.Mul(power, r)
	acc.Add(acc, new(big.Int).Mul(witness, power))
	pub.NewPrivateCommitment = acc

	circuitShape := &SpentCircuit{}
	pk, vk := setup(t, circuitShape)

	assignment := &SpentCircuit{
		PrevPrivateCommitment: pub.PrevPrivateCommitment,
		NewPrivateCommitment:  pub.NewPrivateCommitment,
		Tx:                    pub.Tx,
		InsufficientFlags:     pub.InsufficientFlags,
		IsValid:               boolToBigInt(pub.IsValid),
		Witness:               witness,
	}
	proof := prove(t, pk, assignment)

	blob, err := CompressSpentProof(proof, pub)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	pwpi, decoded, err := DecompressSpentProof(blob)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if decoded.Tx.Cmp(pub.Tx) != 0 || decoded.IsValid != pub.IsValid {
		t.Fatalf("expected decoded public inputs to match, got %+v", decoded)
	}
	if pwpi.Kind != KindSpent {
		t.Fatalf("expected kind spent, got %q", pwpi.Kind)
	}

	registry := NewRegistry(t.TempDir())
	registry.SetKey(KindSpent, vk)
	verifier := NewVerifier(registry)
	ok, _, err := verifier.Verify(context.Background(), KindSpent, blob)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("expected spent proof to verify")
	}
}
