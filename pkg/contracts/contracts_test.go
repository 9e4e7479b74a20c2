// Copyright 2025 Certen Protocol

package contracts

import (
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

func zeroAddress() ethcommon.Address { return ethcommon.Address{} }

func TestEncodeSenderFlags(t *testing.T) {
	cases := []struct {
		flags []bool
		want  []byte
	}{
		{nil, []byte{}},
		{[]bool{true}, []byte{0b00000001}},
		{[]bool{false, true}, []byte{0b00000010}},
		{[]bool{true, true, true, true, true, true, true, true}, []byte{0xFF}},
		{[]bool{false, false, false, false, false, false, false, false, true}, []byte{0x00, 0x01}},
	}
	for _, c := range cases {
		got := encodeSenderFlags(c.flags)
		if len(got) != len(c.want) {
			t.Fatalf("encodeSenderFlags(%v) = %v, want %v", c.flags, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("encodeSenderFlags(%v) = %v, want %v", c.flags, got, c.want)
			}
		}
	}
}

func TestNewRollupContract_ParsesABI(t *testing.T) {
	c, err := NewRollupContract(nil, zeroAddress(), "0x0", 1_000_000)
	if err != nil {
		t.Fatalf("NewRollupContract: %v", err)
	}
	if _, ok := c.abiJSON.Methods["postBlock"]; !ok {
		t.Fatalf("expected postBlock method in parsed ABI")
	}
	if _, ok := c.abiJSON.Events["Deposited"]; !ok {
		t.Fatalf("expected Deposited event in parsed ABI")
	}
}

func TestEventTopic_UnknownEventErrors(t *testing.T) {
	c, err := NewRollupContract(nil, zeroAddress(), "0x0", 1_000_000)
	if err != nil {
		t.Fatalf("NewRollupContract: %v", err)
	}
	if _, err := c.eventTopic("NotAnEvent"); err == nil {
		t.Fatalf("expected error for unknown event name")
	}
}
