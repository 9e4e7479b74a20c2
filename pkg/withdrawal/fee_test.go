// Copyright 2025 Certen Protocol

package withdrawal

import (
	"math/big"
	"testing"
)

func TestValidateFee_SufficientSingleTransfer(t *testing.T) {
	transfers := []TransferRecord{
		{Digest: "d1", Recipient: "beneficiary", TokenIndex: 1, Amount: big.NewInt(100), SettledBlock: 42},
	}
	if err := ValidateFee("beneficiary", 1, big.NewInt(100), transfers); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestValidateFee_SumsMultipleTransfers(t *testing.T) {
	transfers := []TransferRecord{
		{Digest: "d1", Recipient: "beneficiary", TokenIndex: 1, Amount: big.NewInt(60), SettledBlock: 42},
		{Digest: "d2", Recipient: "beneficiary", TokenIndex: 1, Amount: big.NewInt(60), SettledBlock: 43},
	}
	if err := ValidateFee("beneficiary", 1, big.NewInt(100), transfers); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestValidateFee_RejectsInsufficientSum(t *testing.T) {
	transfers := []TransferRecord{
		{Digest: "d1", Recipient: "beneficiary", TokenIndex: 1, Amount: big.NewInt(50), SettledBlock: 42},
	}
	err := ValidateFee("beneficiary", 1, big.NewInt(100), transfers)
	if err == nil {
		t.Fatal("expected ErrFeeTooLow")
	}
}

func TestValidateFee_RejectsWrongRecipient(t *testing.T) {
	transfers := []TransferRecord{
		{Digest: "d1", Recipient: "someone-else", TokenIndex: 1, Amount: big.NewInt(200), SettledBlock: 42},
	}
	err := ValidateFee("beneficiary", 1, big.NewInt(100), transfers)
	if err == nil {
		t.Fatal("expected ErrWrongFeeRecipient")
	}
}

func TestValidateFee_RejectsWrongToken(t *testing.T) {
	transfers := []TransferRecord{
		{Digest: "d1", Recipient: "beneficiary", TokenIndex: 2, Amount: big.NewInt(200), SettledBlock: 42},
	}
	err := ValidateFee("beneficiary", 1, big.NewInt(100), transfers)
	if err == nil {
		t.Fatal("expected ErrWrongFeeToken")
	}
}

func TestValidateFee_RejectsUnsettledTransfer(t *testing.T) {
	transfers := []TransferRecord{
		{Digest: "d1", Recipient: "beneficiary", TokenIndex: 1, Amount: big.NewInt(200), SettledBlock: 0},
	}
	err := ValidateFee("beneficiary", 1, big.NewInt(100), transfers)
	if err == nil {
		t.Fatal("expected ErrUnsettledFeeTransfer")
	}
}
