// Copyright 2025 Certen Protocol
//
// Proof-system trusted setup CLI. Generates the groth16 proving/verifying
// key pair for every proofsystem.Kind and writes them to a directory laid
// out the way pkg/proofsystem.Registry expects to load them
// ("<kind>.vk"), per spec.md's "lazily-initialized set of circuit
// verifier keys loaded from disk at first use" note.

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/zkpayments/rollup-core/pkg/proofsystem"
)

func main() {
	dir := flag.String("dir", "./keys", "directory to write <kind>.pk/<kind>.vk files to")
	flag.Parse()

	if err := proofsystem.Setup(*dir); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote proving/verifying keys for %d circuits to %s\n", len(proofsystem.Kinds), *dir)
}
