// Copyright 2025 Certen Protocol
//
// Prover is the Transition circuit's proving side, the counterpart to
// Verifier. Grounded on pkg/crypto/bls_zkp/prover.go's
// InitializeFromKeys/GenerateProof (frontend.Compile once, groth16.Prove
// against a loaded proving key) and on its computeCommitment out-of-circuit
// mirror of the in-circuit commitment gadget.

package proofsystem

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// commitOutOfCircuit mirrors circuits.go's commit() in plain big.Int
// arithmetic: a prover has to compute the same commitment the circuit
// will recompute and assert equality against, the same pairing
// pkg/crypto/bls_zkp/prover.go's computeCommitment establishes for
// SimpleBLSCircuit.
func commitOutOfCircuit(values ...*big.Int) *big.Int {
	r := big.NewInt(7)
	acc := big.NewInt(0)
	power := big.NewInt(1)
	for _, v := range values {
		term := new(big.Int).Mul(v, power)
		acc.Add(acc, term)
		power.Mul(power, r)
	}
	return acc
}

// fieldElementFromBytes folds an opaque witness blob into a single field
// element via a sha256 digest of the whole blob.
func fieldElementFromBytes(b []byte) *big.Int {
	h := sha256.Sum256(b)
	return new(big.Int).SetBytes(h[:])
}

// ProverKeys holds one compiled constraint system and proving key per
// Kind, loaded from a directory of "<kind>.pk" files on first use - the
// proving-side sibling of Registry.
type ProverKeys struct {
	dir string

	mu  sync.RWMutex
	cs  map[Kind]constraint.ConstraintSystem
	pks map[Kind]groth16.ProvingKey
}

// NewProverKeys returns a ProverKeys that loads proving keys from dir on
// demand. Nothing is read or compiled until get is first called for a kind.
func NewProverKeys(dir string) *ProverKeys {
	return &ProverKeys{dir: dir, cs: make(map[Kind]constraint.ConstraintSystem), pks: make(map[Kind]groth16.ProvingKey)}
}

func (p *ProverKeys) get(kind Kind) (constraint.ConstraintSystem, groth16.ProvingKey, error) {
	p.mu.RLock()
	cs, csOK := p.cs[kind]
	pk, pkOK := p.pks[kind]
	p.mu.RUnlock()
	if csOK && pkOK {
		return cs, pk, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if cs, ok := p.cs[kind]; ok {
		if pk, ok := p.pks[kind]; ok {
			return cs, pk, nil
		}
	}

	circuit, err := circuitFor(kind)
	if err != nil {
		return nil, nil, err
	}
	compiled, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return nil, nil, fmt.Errorf("proofsystem: compile circuit for %s: %w", kind, err)
	}

	path := filepath.Join(p.dir, string(kind)+".pk")
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("proofsystem: open proving key for %s: %w", kind, err)
	}
	defer f.Close()

	loaded := groth16.NewProvingKey(ecc.BN254)
	if _, err := loaded.ReadFrom(f); err != nil {
		return nil, nil, fmt.Errorf("proofsystem: read proving key for %s: %w", kind, err)
	}

	p.cs[kind] = compiled
	p.pks[kind] = loaded
	return compiled, loaded, nil
}

// SetProvingKey installs cs/pk directly into the cache, bypassing disk and
// circuit compilation. Used by tests and by any caller generating keys
// in-process rather than shipping them as files, mirroring Registry.SetKey.
func (p *ProverKeys) SetProvingKey(kind Kind, cs constraint.ConstraintSystem, pk groth16.ProvingKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cs[kind] = cs
	p.pks[kind] = pk
}

// Prover ties ProverKeys to domain-specific proof construction. Only the
// Transition circuit is proved here: the worker pool's background loop is
// this package's sole in-process prover, while the Spent/Balance/Update/
// single-withdrawal/single-claim circuits are proved upstream by whichever
// client or service holds their private witnesses and only ever reach this
// package as an already-compressed blob to verify.
type Prover struct {
	keys *ProverKeys
}

// NewProver returns a Prover backed by keys.
func NewProver(keys *ProverKeys) *Prover {
	return &Prover{keys: keys}
}

// ProveTransition proves that applying block blockNumber's witness to the
// root attested by prevProof yields the returned proof's NewRoot.
// prevProof is itself a CompressedTransitionProof for blockNumber-1; an
// empty prevProof means blockNumber is the chain's first proved block, and
// PrevRoot is taken as zero. The returned blob embeds its own public
// inputs, since worker.Verifier.VerifyTransition is handed only the block
// number besides the proof.
func (p *Prover) ProveTransition(ctx context.Context, blockNumber uint64, witness []byte, prevProof []byte) (CompressedTransitionProof, error) {
	cs, pk, err := p.keys.get(KindTransition)
	if err != nil {
		return nil, err
	}

	prevRoot := big.NewInt(0)
	if len(prevProof) > 0 {
		_, prevPub, err := DecompressTransitionProof(CompressedTransitionProof(prevProof))
		if err != nil {
			return nil, fmt.Errorf("proofsystem: decompress previous transition proof: %w", err)
		}
		prevRoot = prevPub.NewRoot
	}

	blockNumberField := new(big.Int).SetUint64(blockNumber)
	witnessField := fieldElementFromBytes(witness)
	newRoot := commitOutOfCircuit(prevRoot, blockNumberField, witnessField)

	assignment := &TransitionCircuit{
		PrevRoot:    prevRoot,
		NewRoot:     newRoot,
		BlockNumber: blockNumberField,
		Witness:     witnessField,
	}

	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("proofsystem: build transition witness: %w", err)
	}

	proof, err := groth16.Prove(cs, pk, w)
	if err != nil {
		return nil, fmt.Errorf("proofsystem: prove transition for block %d: %w", blockNumber, err)
	}

	pub := TransitionPublicInputs{PrevRoot: prevRoot, NewRoot: newRoot, BlockNumber: blockNumberField}
	return CompressTransitionProof(proof, pub)
}
