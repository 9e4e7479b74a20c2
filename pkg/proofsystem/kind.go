// Copyright 2025 Certen Protocol
//
// Proof kinds and the verifier-key registry backing the tagged-variant
// verify(kind, bytes) capability of spec.md §6.1/§9.

package proofsystem

import "fmt"

// Kind identifies one of the fixed proof circuits the rollup verifies.
// Every proof the Validity Prover, Block Builder, or Withdrawal Server
// handles is tagged with exactly one of these.
type Kind string

const (
	KindSpent            Kind = "spent"
	KindBalance          Kind = "balance"
	KindUpdate           Kind = "update"
	KindSingleWithdrawal Kind = "single_withdrawal"
	KindSingleClaim      Kind = "single_claim"
	KindTransition       Kind = "transition"
	KindAggregate        Kind = "aggregate"
)

// Kinds lists every supported Kind, in the fixed order verifier keys are
// expected to be discoverable in on disk.
var Kinds = []Kind{
	KindSpent,
	KindBalance,
	KindUpdate,
	KindSingleWithdrawal,
	KindSingleClaim,
	KindTransition,
	KindAggregate,
}

func (k Kind) String() string { return string(k) }

// Valid reports whether k is one of the known proof kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ErrUnknownKind is returned when a caller names a Kind outside Kinds.
type ErrUnknownKind struct {
	Kind Kind
}

func (e ErrUnknownKind) Error() string {
	return fmt.Sprintf("proofsystem: unknown proof kind %q", string(e.Kind))
}
