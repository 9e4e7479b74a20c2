// Copyright 2025 Certen Protocol
//
// Postgres-backed Store Vault, grounded on pkg/database/repository_proof.go's
// query-string + Scan idiom (*database.Client wraps *sql.DB the same way
// here as it does for Certen anchor proofs), using database.Client.BeginTx
// for save_user_data's compare-and-set.
//
// Target schema (see migrations):
//
//	vault_user_data(owner TEXT PRIMARY KEY, digest TEXT, version SMALLINT,
//	  data BYTEA, updated_at TIMESTAMPTZ)
//	vault_sender_proof_sets(ephemeral_key TEXT PRIMARY KEY, version SMALLINT,
//	  data BYTEA, created_at TIMESTAMPTZ)
//	vault_log_entries(owner TEXT, topic TEXT, digest TEXT, version SMALLINT,
//	  data BYTEA, created_at TIMESTAMPTZ, PRIMARY KEY(owner, topic, digest))
//	vault_misc(name TEXT, digest TEXT, version SMALLINT, data BYTEA,
//	  created_at TIMESTAMPTZ, PRIMARY KEY(name, digest))

package storevault

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/zkpayments/rollup-core/pkg/database"
)

// PostgresStore implements Store against vault_* tables via database.Client.
type PostgresStore struct {
	client *database.Client
}

// NewPostgresStore wraps client.
func NewPostgresStore(client *database.Client) *PostgresStore {
	return &PostgresStore{client: client}
}

func (s *PostgresStore) SaveUserData(ctx context.Context, owner string, prevDigest *string, obj VersionedBlsEncryption) (string, error) {
	tx, err := s.client.BeginTx(ctx)
	if err != nil {
		return "", fmt.Errorf("storevault: begin tx: %w", err)
	}
	defer tx.Rollback()

	var current sql.NullString
	err = tx.Tx().QueryRowContext(ctx, `SELECT digest FROM vault_user_data WHERE owner = $1 FOR UPDATE`, owner).Scan(&current)
	if err != nil && err != sql.ErrNoRows {
		return "", fmt.Errorf("storevault: read current digest: %w", err)
	}

	exists := err != sql.ErrNoRows
	switch {
	case prevDigest != nil:
		if !exists || current.String != *prevDigest {
			return "", ErrStaleDigest
		}
	case exists:
		return "", ErrStaleDigest
	}

	digest := obj.Digest()
	_, err = tx.Tx().ExecContext(ctx, `
		INSERT INTO vault_user_data (owner, digest, version, data, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (owner) DO UPDATE SET digest = $2, version = $3, data = $4, updated_at = now()`,
		owner, digest, obj.Version, obj.Data)
	if err != nil {
		return "", fmt.Errorf("storevault: upsert user data: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("storevault: commit: %w", err)
	}
	return digest, nil
}

func (s *PostgresStore) GetUserData(ctx context.Context, owner string) (*VersionedBlsEncryption, string, error) {
	var digest string
	obj := VersionedBlsEncryption{}
	err := s.client.QueryRowContext(ctx, `SELECT digest, version, data FROM vault_user_data WHERE owner = $1`, owner).
		Scan(&digest, &obj.Version, &obj.Data)
	if err == sql.ErrNoRows {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("storevault: get user data: %w", err)
	}
	return &obj, digest, nil
}

func (s *PostgresStore) SaveSenderProofSet(ctx context.Context, ephemeralKey string, obj VersionedBlsEncryption) error {
	_, err := s.client.ExecContext(ctx, `
		INSERT INTO vault_sender_proof_sets (ephemeral_key, version, data, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (ephemeral_key) DO NOTHING`,
		ephemeralKey, obj.Version, obj.Data)
	if err != nil {
		return fmt.Errorf("storevault: save sender proof set: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSenderProofSet(ctx context.Context, ephemeralKey string) (*VersionedBlsEncryption, error) {
	obj := VersionedBlsEncryption{}
	err := s.client.QueryRowContext(ctx, `SELECT version, data FROM vault_sender_proof_sets WHERE ephemeral_key = $1`, ephemeralKey).
		Scan(&obj.Version, &obj.Data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storevault: get sender proof set: %w", err)
	}
	return &obj, nil
}

func (s *PostgresStore) SaveDataBatch(ctx context.Context, owner string, topic Topic, entries []VersionedBlsEncryption) ([]string, error) {
	if len(entries) > MaxBatchSize {
		return nil, fmt.Errorf("storevault: batch of %d exceeds MaxBatchSize %d", len(entries), MaxBatchSize)
	}

	tx, err := s.client.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("storevault: begin tx: %w", err)
	}
	defer tx.Rollback()

	digests := make([]string, 0, len(entries))
	for _, obj := range entries {
		digest := obj.Digest()
		_, err := tx.Tx().ExecContext(ctx, `
			INSERT INTO vault_log_entries (owner, topic, digest, version, data, created_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (owner, topic, digest) DO NOTHING`,
			owner, topic.String(), digest, obj.Version, obj.Data)
		if err != nil {
			return nil, fmt.Errorf("storevault: insert log entry: %w", err)
		}
		digests = append(digests, digest)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("storevault: commit batch: %w", err)
	}
	return digests, nil
}

func (s *PostgresStore) GetDataSequence(ctx context.Context, owner string, topic Topic, cursor Cursor, limit int) ([]DataWithMeta, Cursor, error) {
	if limit <= 0 {
		limit = DefaultSequencePageSize
	}

	rows, err := s.client.QueryContext(ctx, `
		SELECT digest, version, data, created_at FROM vault_log_entries
		WHERE owner = $1 AND topic = $2
		  AND (created_at, digest) > ($3, $4)
		ORDER BY created_at ASC, digest ASC
		LIMIT $5`,
		owner, topic.String(), cursor.Timestamp, cursor.Digest, limit+1)
	if err != nil {
		return nil, Cursor{}, fmt.Errorf("storevault: query data sequence: %w", err)
	}
	defer rows.Close()

	entries, next, err := scanPage(rows, limit)
	if err != nil {
		return nil, Cursor{}, err
	}
	return entries, next, nil
}

func (s *PostgresStore) GetDataBatch(ctx context.Context, owner string, topic Topic, digests []string) ([]DataWithMeta, error) {
	if len(digests) == 0 {
		return nil, nil
	}

	rows, err := s.client.QueryContext(ctx, `
		SELECT digest, version, data, created_at FROM vault_log_entries
		WHERE owner = $1 AND topic = $2 AND digest = ANY($3)`,
		owner, topic.String(), digests)
	if err != nil {
		return nil, fmt.Errorf("storevault: query data batch: %w", err)
	}
	defer rows.Close()

	var out []DataWithMeta
	for rows.Next() {
		var entry DataWithMeta
		if err := rows.Scan(&entry.Digest, &entry.Object.Version, &entry.Object.Data, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("storevault: scan data batch row: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveMisc(ctx context.Context, name string, obj VersionedBlsEncryption) (string, error) {
	digest := obj.Digest()
	_, err := s.client.ExecContext(ctx, `
		INSERT INTO vault_misc (name, digest, version, data, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (name, digest) DO NOTHING`,
		name, digest, obj.Version, obj.Data)
	if err != nil {
		return "", fmt.Errorf("storevault: save misc: %w", err)
	}
	return digest, nil
}

func (s *PostgresStore) GetMiscSequence(ctx context.Context, name string, cursor Cursor, limit int) ([]DataWithMeta, Cursor, error) {
	if limit <= 0 {
		limit = DefaultSequencePageSize
	}

	rows, err := s.client.QueryContext(ctx, `
		SELECT digest, version, data, created_at FROM vault_misc
		WHERE name = $1
		  AND (created_at, digest) > ($2, $3)
		ORDER BY created_at ASC, digest ASC
		LIMIT $4`,
		name, cursor.Timestamp, cursor.Digest, limit+1)
	if err != nil {
		return nil, Cursor{}, fmt.Errorf("storevault: query misc sequence: %w", err)
	}
	defer rows.Close()

	return scanPage(rows, limit)
}

// scanPage scans up to limit+1 rows (the caller over-fetches by one to
// detect whether another page follows) into entries plus the next cursor.
func scanPage(rows *sql.Rows, limit int) ([]DataWithMeta, Cursor, error) {
	var entries []DataWithMeta
	for rows.Next() {
		var entry DataWithMeta
		if err := rows.Scan(&entry.Digest, &entry.Object.Version, &entry.Object.Data, &entry.Timestamp); err != nil {
			return nil, Cursor{}, fmt.Errorf("storevault: scan row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, Cursor{}, err
	}

	var next Cursor
	if len(entries) > limit {
		last := entries[limit-1]
		next = Cursor{Timestamp: last.Timestamp, Digest: last.Digest}
		entries = entries[:limit]
	}
	return entries, next, nil
}
