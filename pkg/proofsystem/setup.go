// Copyright 2025 Certen Protocol
//
// Trusted setup: compiles every Kind's circuit and runs groth16.Setup,
// writing the resulting proving/verifying keys to disk so Registry can
// load them lazily at runtime. Grounded on
// pkg/crypto/bls_zkp/prover.go's Initialize (frontend.Compile +
// groth16.Setup) and SaveKeys (os.Create + WriteTo) idiom, generalized
// from one fixed circuit to every proofsystem.Kind.

package proofsystem

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

func circuitFor(kind Kind) (frontend.Circuit, error) {
	switch kind {
	case KindSpent:
		return &SpentCircuit{}, nil
	case KindBalance:
		return &BalanceCircuit{}, nil
	case KindUpdate:
		return &UpdateCircuit{}, nil
	case KindSingleWithdrawal:
		return &SingleWithdrawalCircuit{}, nil
	case KindSingleClaim:
		return &SingleClaimCircuit{}, nil
	case KindTransition:
		return &TransitionCircuit{}, nil
	case KindAggregate:
		return &AggregateCircuit{}, nil
	default:
		return nil, ErrUnknownKind{Kind: kind}
	}
}

// Setup runs a trusted setup for every known Kind and writes
// "<dir>/<kind>.pk" and "<dir>/<kind>.vk" for each, creating dir if
// needed. Intended as a one-time, offline step; callers needing only the
// verifier side may discard the .pk files afterward.
func Setup(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("proofsystem: create key directory: %w", err)
	}

	for _, kind := range Kinds {
		circuit, err := circuitFor(kind)
		if err != nil {
			return err
		}

		cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
		if err != nil {
			return fmt.Errorf("proofsystem: compile circuit for %s: %w", kind, err)
		}

		pk, vk, err := groth16.Setup(cs)
		if err != nil {
			return fmt.Errorf("proofsystem: groth16 setup for %s: %w", kind, err)
		}

		if err := writeKey(filepath.Join(dir, string(kind)+".pk"), pk); err != nil {
			return err
		}
		if err := writeKey(filepath.Join(dir, string(kind)+".vk"), vk); err != nil {
			return err
		}
	}
	return nil
}

func writeKey(path string, key io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("proofsystem: create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := key.WriteTo(f); err != nil {
		return fmt.Errorf("proofsystem: write %s: %w", path, err)
	}
	return nil
}
