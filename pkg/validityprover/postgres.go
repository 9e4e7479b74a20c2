// Copyright 2025 Certen Protocol
//
// Postgres-backed Store, grounded on pkg/merkle/store.go's
// PostgresLeafHistoryStore and pkg/database/repository_proof.go's raw-SQL
// repository convention.
//
// Target schema (see migrations):
//
//	validity_prover_blocks(block_number BIGINT PRIMARY KEY, block_hash BYTEA,
//	  tx_tree_root BYTEA, deposit_tree_root_snapshot BIGINT,
//	  account_tree_snapshot BIGINT, block_tree_snapshot BIGINT,
//	  validity_witness BYTEA, validity_proof BYTEA, state TEXT)

package validityprover

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore is the production Store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing *sql.DB connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) PutBlockState(ctx context.Context, bs *BlockState) error {
	var proof []byte
	if bs.ValidityProof != nil {
		proof = bs.ValidityProof
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO validity_prover_blocks (
			block_number, block_hash, tx_tree_root, deposit_tree_root_snapshot,
			account_tree_snapshot, block_tree_snapshot, validity_witness,
			validity_proof, state
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (block_number) DO UPDATE SET
			block_hash = EXCLUDED.block_hash,
			tx_tree_root = EXCLUDED.tx_tree_root,
			deposit_tree_root_snapshot = EXCLUDED.deposit_tree_root_snapshot,
			account_tree_snapshot = EXCLUDED.account_tree_snapshot,
			block_tree_snapshot = EXCLUDED.block_tree_snapshot,
			validity_witness = EXCLUDED.validity_witness,
			validity_proof = EXCLUDED.validity_proof,
			state = EXCLUDED.state`,
		bs.BlockNumber, bs.BlockHash[:], bs.TxTreeRoot[:], bs.DepositTreeRootSnapshot,
		bs.AccountTreeSnapshot, bs.BlockTreeSnapshot, bs.ValidityWitness, proof, string(bs.State))
	if err != nil {
		return fmt.Errorf("validityprover: put block state: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBlockState(ctx context.Context, blockNumber uint64) (*BlockState, bool, error) {
	var bs BlockState
	var blockHash, txTreeRoot []byte
	var state string
	err := s.db.QueryRowContext(ctx, `
		SELECT block_number, block_hash, tx_tree_root, deposit_tree_root_snapshot,
		       account_tree_snapshot, block_tree_snapshot, validity_witness,
		       validity_proof, state
		FROM validity_prover_blocks WHERE block_number = $1`, blockNumber).
		Scan(&bs.BlockNumber, &blockHash, &txTreeRoot, &bs.DepositTreeRootSnapshot,
			&bs.AccountTreeSnapshot, &bs.BlockTreeSnapshot, &bs.ValidityWitness,
			&bs.ValidityProof, &state)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("validityprover: get block state: %w", err)
	}
	copy(bs.BlockHash[:], blockHash)
	copy(bs.TxTreeRoot[:], txTreeRoot)
	bs.State = ProofState(state)
	return &bs, true, nil
}

func (s *PostgresStore) LatestBlockNumber(ctx context.Context) (uint64, bool, error) {
	var n sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(block_number) FROM validity_prover_blocks`).Scan(&n)
	if err != nil {
		return 0, false, fmt.Errorf("validityprover: latest block number: %w", err)
	}
	if !n.Valid {
		return 0, false, nil
	}
	return uint64(n.Int64), true, nil
}

func (s *PostgresStore) LatestProvedBlockNumber(ctx context.Context) (uint64, bool, error) {
	var n sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(block_number) FROM validity_prover_blocks WHERE state = $1`, string(StateProved)).Scan(&n)
	if err != nil {
		return 0, false, fmt.Errorf("validityprover: latest proved block number: %w", err)
	}
	if !n.Valid {
		return 0, false, nil
	}
	return uint64(n.Int64), true, nil
}

func (s *PostgresStore) BlockNumberByTxTreeRoot(ctx context.Context, root [32]byte) (uint64, bool, error) {
	var n uint64
	err := s.db.QueryRowContext(ctx, `
		SELECT block_number FROM validity_prover_blocks WHERE tx_tree_root = $1`, root[:]).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("validityprover: block number by tx tree root: %w", err)
	}
	return n, true, nil
}
