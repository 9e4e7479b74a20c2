// Copyright 2025 Certen Protocol
//
// Postgres-backed withdrawal/claim repositories, grounded on
// pkg/database/repository_proof.go's insert/select-with-named-columns
// idiom.
//
// Target schema (see migrations):
//
//	withdrawal_requests(uuid UUID PRIMARY KEY, pubkey TEXT, nullifier BYTEA,
//	  withdrawal_blob BYTEA, single_withdrawal_proof_blob BYTEA,
//	  status TEXT, created_at TIMESTAMPTZ, updated_at TIMESTAMPTZ)
//	claim_requests(uuid UUID PRIMARY KEY, pubkey TEXT, nullifier BYTEA,
//	  claim_blob BYTEA, single_claim_proof_blob BYTEA,
//	  status TEXT, created_at TIMESTAMPTZ, updated_at TIMESTAMPTZ)
//
// A partial unique index on nullifier WHERE status <> 'failed' would
// additionally guard CreateRequested's duplicate-nullifier check against a
// concurrent insert race; this package's own check-then-insert is
// sufficient under the single-writer Withdrawal Server process assumed by
// spec.md's scheduling model.

package withdrawal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/zkpayments/rollup-core/pkg/database"
)

// PostgresRepository implements Repository against withdrawal_requests.
type PostgresRepository struct {
	client *database.Client
}

// NewPostgresRepository wraps client.
func NewPostgresRepository(client *database.Client) *PostgresRepository {
	return &PostgresRepository{client: client}
}

func (r *PostgresRepository) CreateRequested(ctx context.Context, rec *Record) error {
	if rec.UUID == uuid.Nil {
		rec.UUID = uuid.New()
	}

	exists, err := r.NullifierExists(ctx, rec.Nullifier)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateNullifier
	}

	_, err = r.client.ExecContext(ctx, `
		INSERT INTO withdrawal_requests (
			uuid, pubkey, nullifier, withdrawal_blob, single_withdrawal_proof_blob,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, now(), now())`,
		rec.UUID, rec.Pubkey, rec.Nullifier[:], rec.WithdrawalBlob, rec.SingleWithdrawalProofBlob,
		StatusRequested)
	if err != nil {
		return fmt.Errorf("withdrawal: insert requested record: %w", err)
	}
	rec.Status = StatusRequested
	return nil
}

func scanRecord(row interface{ Scan(...interface{}) error }) (*Record, error) {
	rec := &Record{}
	var nullifier []byte
	var status string
	err := row.Scan(&rec.UUID, &rec.Pubkey, &nullifier, &rec.WithdrawalBlob, &rec.SingleWithdrawalProofBlob,
		&status, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	copy(rec.Nullifier[:], nullifier)
	rec.Status = Status(status)
	return rec, nil
}

func (r *PostgresRepository) GetByUUID(ctx context.Context, id uuid.UUID) (*Record, error) {
	row := r.client.QueryRowContext(ctx, `
		SELECT uuid, pubkey, nullifier, withdrawal_blob, single_withdrawal_proof_blob, status, created_at, updated_at
		FROM withdrawal_requests WHERE uuid = $1`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("withdrawal: get by uuid: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) GetByPubkey(ctx context.Context, pubkey string) ([]Record, error) {
	rows, err := r.client.QueryContext(ctx, `
		SELECT uuid, pubkey, nullifier, withdrawal_blob, single_withdrawal_proof_blob, status, created_at, updated_at
		FROM withdrawal_requests WHERE pubkey = $1 ORDER BY created_at ASC`, pubkey)
	if err != nil {
		return nil, fmt.Errorf("withdrawal: get by pubkey: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("withdrawal: scan row: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) NullifierExists(ctx context.Context, nullifier [32]byte) (bool, error) {
	var count int
	err := r.client.QueryRowContext(ctx, `
		SELECT count(*) FROM withdrawal_requests WHERE nullifier = $1 AND status <> $2`,
		nullifier[:], StatusFailed).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("withdrawal: check nullifier: %w", err)
	}
	return count > 0, nil
}

func (r *PostgresRepository) ListRequested(ctx context.Context, limit int) ([]Record, error) {
	rows, err := r.client.QueryContext(ctx, `
		SELECT uuid, pubkey, nullifier, withdrawal_blob, single_withdrawal_proof_blob, status, created_at, updated_at
		FROM withdrawal_requests WHERE status = $1 ORDER BY created_at ASC LIMIT $2`,
		StatusRequested, limit)
	if err != nil {
		return nil, fmt.Errorf("withdrawal: list requested: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("withdrawal: scan row: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	current, err := r.GetByUUID(ctx, id)
	if err != nil {
		return err
	}
	if err := TransitionStatus(current, status); err != nil {
		return err
	}

	res, err := r.client.ExecContext(ctx, `
		UPDATE withdrawal_requests SET status = $1, updated_at = now() WHERE uuid = $2`,
		status, id)
	if err != nil {
		return fmt.Errorf("withdrawal: update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("withdrawal: rows affected: %w", err)
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// PostgresClaimRepository implements ClaimRepository against claim_requests.
type PostgresClaimRepository struct {
	client *database.Client
}

// NewPostgresClaimRepository wraps client.
func NewPostgresClaimRepository(client *database.Client) *PostgresClaimRepository {
	return &PostgresClaimRepository{client: client}
}

func (r *PostgresClaimRepository) CreateRequested(ctx context.Context, rec *ClaimRecord) error {
	if rec.UUID == uuid.Nil {
		rec.UUID = uuid.New()
	}

	exists, err := r.NullifierExists(ctx, rec.Nullifier)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateNullifier
	}

	_, err = r.client.ExecContext(ctx, `
		INSERT INTO claim_requests (
			uuid, pubkey, nullifier, claim_blob, single_claim_proof_blob,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, now(), now())`,
		rec.UUID, rec.Pubkey, rec.Nullifier[:], rec.ClaimBlob, rec.SingleClaimProofBlob,
		ClaimStatusRequested)
	if err != nil {
		return fmt.Errorf("withdrawal: insert requested claim: %w", err)
	}
	rec.Status = ClaimStatusRequested
	return nil
}

func scanClaimRecord(row interface{ Scan(...interface{}) error }) (*ClaimRecord, error) {
	rec := &ClaimRecord{}
	var nullifier []byte
	var status string
	err := row.Scan(&rec.UUID, &rec.Pubkey, &nullifier, &rec.ClaimBlob, &rec.SingleClaimProofBlob,
		&status, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	copy(rec.Nullifier[:], nullifier)
	rec.Status = ClaimStatus(status)
	return rec, nil
}

func (r *PostgresClaimRepository) GetByUUID(ctx context.Context, id uuid.UUID) (*ClaimRecord, error) {
	row := r.client.QueryRowContext(ctx, `
		SELECT uuid, pubkey, nullifier, claim_blob, single_claim_proof_blob, status, created_at, updated_at
		FROM claim_requests WHERE uuid = $1`, id)
	rec, err := scanClaimRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("withdrawal: get claim by uuid: %w", err)
	}
	return rec, nil
}

func (r *PostgresClaimRepository) GetByPubkey(ctx context.Context, pubkey string) ([]ClaimRecord, error) {
	rows, err := r.client.QueryContext(ctx, `
		SELECT uuid, pubkey, nullifier, claim_blob, single_claim_proof_blob, status, created_at, updated_at
		FROM claim_requests WHERE pubkey = $1 ORDER BY created_at ASC`, pubkey)
	if err != nil {
		return nil, fmt.Errorf("withdrawal: get claim by pubkey: %w", err)
	}
	defer rows.Close()

	var out []ClaimRecord
	for rows.Next() {
		rec, err := scanClaimRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("withdrawal: scan claim row: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (r *PostgresClaimRepository) NullifierExists(ctx context.Context, nullifier [32]byte) (bool, error) {
	var count int
	err := r.client.QueryRowContext(ctx, `
		SELECT count(*) FROM claim_requests WHERE nullifier = $1 AND status <> $2`,
		nullifier[:], ClaimStatusFailed).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("withdrawal: check claim nullifier: %w", err)
	}
	return count > 0, nil
}

func (r *PostgresClaimRepository) ListVerified(ctx context.Context, limit int) ([]ClaimRecord, error) {
	rows, err := r.client.QueryContext(ctx, `
		SELECT uuid, pubkey, nullifier, claim_blob, single_claim_proof_blob, status, created_at, updated_at
		FROM claim_requests WHERE status = $1 ORDER BY created_at ASC LIMIT $2`,
		ClaimStatusVerified, limit)
	if err != nil {
		return nil, fmt.Errorf("withdrawal: list verified claims: %w", err)
	}
	defer rows.Close()

	var out []ClaimRecord
	for rows.Next() {
		rec, err := scanClaimRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("withdrawal: scan claim row: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (r *PostgresClaimRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status ClaimStatus) error {
	current, err := r.GetByUUID(ctx, id)
	if err != nil {
		return err
	}
	if err := TransitionClaimStatus(current, status); err != nil {
		return err
	}

	res, err := r.client.ExecContext(ctx, `
		UPDATE claim_requests SET status = $1, updated_at = now() WHERE uuid = $2`,
		status, id)
	if err != nil {
		return fmt.Errorf("withdrawal: update claim status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("withdrawal: rows affected: %w", err)
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}
