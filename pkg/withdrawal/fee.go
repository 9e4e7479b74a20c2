// Copyright 2025 Certen Protocol
//
// Fee validation: the fee referenced by a withdrawal/claim request must
// resolve to real, settled transfers within the sender's own Store Vault
// Transfer log, per spec.md §4.7 step 3 and §8's "fee sufficiency"
// property.

package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"math/big"
)

// ErrFeeTooLow is returned when the sum of resolved fee transfers is below
// the quoted fee for the declared token.
var ErrFeeTooLow = errors.New("withdrawal: fee transfers do not cover the quoted fee")

// ErrUnsettledFeeTransfer is returned when a referenced fee transfer has not
// yet settled on-chain.
var ErrUnsettledFeeTransfer = errors.New("withdrawal: fee transfer is not yet settled")

// ErrWrongFeeRecipient is returned when a referenced fee transfer's
// recipient does not match the configured fee beneficiary.
var ErrWrongFeeRecipient = errors.New("withdrawal: fee transfer recipient mismatch")

// ErrWrongFeeToken is returned when a referenced fee transfer's token index
// does not match the withdrawal's declared token.
var ErrWrongFeeToken = errors.New("withdrawal: fee transfer token mismatch")

// TransferRecord is the subset of a user's own Store Vault Transfer record
// needed to validate a fee reference.
type TransferRecord struct {
	Digest       FeeTransferDigest
	Recipient    string
	TokenIndex   uint32
	Amount       *big.Int
	SettledBlock uint64 // 0 means not yet settled
}

// TransferResolver resolves fee-transfer digests into their underlying
// Transfer records, looking them up in the sender's own Store Vault log.
type TransferResolver interface {
	ResolveFeeTransfers(ctx context.Context, pubkey string, digests []FeeTransferDigest) ([]TransferRecord, error)
}

// FeeSchedule quotes the required fee for a token, per spec.md §4.7's
// quoted_withdrawal_fee(token_index).
type FeeSchedule interface {
	QuotedFee(tokenIndex uint32) *big.Int
}

// ValidateFee sums the resolved transfers and checks them against
// beneficiary, tokenIndex and the fee schedule, per spec.md §4.7 step 3.
func ValidateFee(beneficiary string, tokenIndex uint32, quoted *big.Int, transfers []TransferRecord) error {
	sum := big.NewInt(0)
	for _, t := range transfers {
		if t.Recipient != beneficiary {
			return fmt.Errorf("%w: got %s, want %s", ErrWrongFeeRecipient, t.Recipient, beneficiary)
		}
		if t.TokenIndex != tokenIndex {
			return fmt.Errorf("%w: got %d, want %d", ErrWrongFeeToken, t.TokenIndex, tokenIndex)
		}
		if t.SettledBlock == 0 {
			return fmt.Errorf("%w: digest %s", ErrUnsettledFeeTransfer, t.Digest)
		}
		sum.Add(sum, t.Amount)
	}
	if sum.Cmp(quoted) < 0 {
		return fmt.Errorf("%w: got %s, want at least %s", ErrFeeTooLow, sum, quoted)
	}
	return nil
}
