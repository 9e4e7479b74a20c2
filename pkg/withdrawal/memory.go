// Copyright 2025 Certen Protocol

package withdrawal

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository implements Repository without persistence, mutex-guarded
// the way pkg/storevault.MemoryStore is.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[uuid.UUID]*Record
	clock   func() time.Time
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: make(map[uuid.UUID]*Record),
		clock:   time.Now,
	}
}

func (r *MemoryRepository) nullifierExistsLocked(nullifier [32]byte) bool {
	for _, rec := range r.records {
		if rec.Nullifier == nullifier && rec.Status != StatusFailed {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) CreateRequested(ctx context.Context, rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.nullifierExistsLocked(rec.Nullifier) {
		return ErrDuplicateNullifier
	}

	if rec.UUID == uuid.Nil {
		rec.UUID = uuid.New()
	}
	rec.Status = StatusRequested
	now := r.clock()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	stored := *rec
	r.records[rec.UUID] = &stored
	return nil
}

func (r *MemoryRepository) GetByUUID(ctx context.Context, id uuid.UUID) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	copied := *rec
	return &copied, nil
}

func (r *MemoryRepository) GetByPubkey(ctx context.Context, pubkey string) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Record
	for _, rec := range r.records {
		if rec.Pubkey == pubkey {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *MemoryRepository) NullifierExists(ctx context.Context, nullifier [32]byte) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nullifierExistsLocked(nullifier), nil
}

func (r *MemoryRepository) ListRequested(ctx context.Context, limit int) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Record
	for _, rec := range r.records {
		if rec.Status != StatusRequested {
			continue
		}
		out = append(out, *rec)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	if err := TransitionStatus(rec, status); err != nil {
		return err
	}
	rec.UpdatedAt = r.clock()
	return nil
}

// MemoryClaimRepository implements ClaimRepository without persistence.
type MemoryClaimRepository struct {
	mu      sync.Mutex
	records map[uuid.UUID]*ClaimRecord
	clock   func() time.Time
}

// NewMemoryClaimRepository creates an empty MemoryClaimRepository.
func NewMemoryClaimRepository() *MemoryClaimRepository {
	return &MemoryClaimRepository{
		records: make(map[uuid.UUID]*ClaimRecord),
		clock:   time.Now,
	}
}

func (r *MemoryClaimRepository) nullifierExistsLocked(nullifier [32]byte) bool {
	for _, rec := range r.records {
		if rec.Nullifier == nullifier && rec.Status != ClaimStatusFailed {
			return true
		}
	}
	return false
}

func (r *MemoryClaimRepository) CreateRequested(ctx context.Context, rec *ClaimRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.nullifierExistsLocked(rec.Nullifier) {
		return ErrDuplicateNullifier
	}

	if rec.UUID == uuid.Nil {
		rec.UUID = uuid.New()
	}
	rec.Status = ClaimStatusRequested
	now := r.clock()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	stored := *rec
	r.records[rec.UUID] = &stored
	return nil
}

func (r *MemoryClaimRepository) GetByUUID(ctx context.Context, id uuid.UUID) (*ClaimRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	copied := *rec
	return &copied, nil
}

func (r *MemoryClaimRepository) GetByPubkey(ctx context.Context, pubkey string) ([]ClaimRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []ClaimRecord
	for _, rec := range r.records {
		if rec.Pubkey == pubkey {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *MemoryClaimRepository) NullifierExists(ctx context.Context, nullifier [32]byte) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nullifierExistsLocked(nullifier), nil
}

func (r *MemoryClaimRepository) ListVerified(ctx context.Context, limit int) ([]ClaimRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []ClaimRecord
	for _, rec := range r.records {
		if rec.Status != ClaimStatusVerified {
			continue
		}
		out = append(out, *rec)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *MemoryClaimRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status ClaimStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	if err := TransitionClaimStatus(rec, status); err != nil {
		return err
	}
	rec.UpdatedAt = r.clock()
	return nil
}
