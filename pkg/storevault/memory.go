// Copyright 2025 Certen Protocol
//
// In-memory Store Vault backend, for tests and for the Client SDK's own
// local harness.

package storevault

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type logEntry struct {
	DataWithMeta
	topic string
}

// MemoryStore implements Store without persistence, guarding all state
// behind a single mutex the way pkg/validityprover.MemoryStore does.
type MemoryStore struct {
	mu sync.Mutex

	userData     map[string]DataWithMeta // owner -> current object
	senderProofs map[string]VersionedBlsEncryption
	logs         map[string][]logEntry // owner -> entries across all topics
	misc         map[string][]DataWithMeta

	clock func() time.Time
}

// cursorStart finds the index of the first of n entries (ordered by
// (timestamp, digest), accessed via at) strictly after cursor, or n if
// cursor is the zero value or none qualify.
func cursorStart(cursor Cursor, n int, at func(i int) (time.Time, string)) int {
	if cursor.IsZero() {
		return 0
	}
	for i := 0; i < n; i++ {
		ts, digest := at(i)
		if ts.After(cursor.Timestamp) || (ts.Equal(cursor.Timestamp) && digest > cursor.Digest) {
			return i
		}
	}
	return n
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		userData:     make(map[string]DataWithMeta),
		senderProofs: make(map[string]VersionedBlsEncryption),
		logs:         make(map[string][]logEntry),
		misc:         make(map[string][]DataWithMeta),
		clock:        time.Now,
	}
}

func (s *MemoryStore) SaveUserData(ctx context.Context, owner string, prevDigest *string, obj VersionedBlsEncryption) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.userData[owner]
	if prevDigest != nil {
		if !exists || current.Digest != *prevDigest {
			return "", ErrStaleDigest
		}
	} else if exists {
		return "", ErrStaleDigest
	}

	entry := DataWithMeta{Digest: obj.Digest(), Timestamp: s.clock(), Object: obj}
	s.userData[owner] = entry
	return entry.Digest, nil
}

func (s *MemoryStore) GetUserData(ctx context.Context, owner string) (*VersionedBlsEncryption, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.userData[owner]
	if !ok {
		return nil, "", ErrNotFound
	}
	obj := entry.Object
	return &obj, entry.Digest, nil
}

func (s *MemoryStore) SaveSenderProofSet(ctx context.Context, ephemeralKey string, obj VersionedBlsEncryption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.senderProofs[ephemeralKey] = obj
	return nil
}

func (s *MemoryStore) GetSenderProofSet(ctx context.Context, ephemeralKey string) (*VersionedBlsEncryption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.senderProofs[ephemeralKey]
	if !ok {
		return nil, ErrNotFound
	}
	return &obj, nil
}

func (s *MemoryStore) SaveDataBatch(ctx context.Context, owner string, topic Topic, entries []VersionedBlsEncryption) ([]string, error) {
	if len(entries) > MaxBatchSize {
		return nil, fmt.Errorf("storevault: batch of %d exceeds MaxBatchSize %d", len(entries), MaxBatchSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	digests := make([]string, 0, len(entries))
	for _, obj := range entries {
		meta := DataWithMeta{Digest: obj.Digest(), Timestamp: s.clock(), Object: obj}
		s.logs[owner] = append(s.logs[owner], logEntry{DataWithMeta: meta, topic: topic.String()})
		digests = append(digests, meta.Digest)
	}
	return digests, nil
}

func (s *MemoryStore) GetDataSequence(ctx context.Context, owner string, topic Topic, cursor Cursor, limit int) ([]DataWithMeta, Cursor, error) {
	if limit <= 0 {
		limit = DefaultSequencePageSize
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []DataWithMeta
	for _, e := range s.logs[owner] {
		if e.topic != topic.String() {
			continue
		}
		matched = append(matched, e.DataWithMeta)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.Before(matched[j].Timestamp)
		}
		return matched[i].Digest < matched[j].Digest
	})

	start := cursorStart(cursor, len(matched), func(i int) (time.Time, string) {
		return matched[i].Timestamp, matched[i].Digest
	})

	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	page := matched[start:end]

	var next Cursor
	if end < len(matched) && len(page) > 0 {
		last := page[len(page)-1]
		next = Cursor{Timestamp: last.Timestamp, Digest: last.Digest}
	}
	return page, next, nil
}

func (s *MemoryStore) GetDataBatch(ctx context.Context, owner string, topic Topic, digests []string) ([]DataWithMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[string]bool, len(digests))
	for _, d := range digests {
		want[d] = true
	}

	var out []DataWithMeta
	for _, e := range s.logs[owner] {
		if e.topic != topic.String() {
			continue
		}
		if want[e.Digest] {
			out = append(out, e.DataWithMeta)
		}
	}
	return out, nil
}

func (s *MemoryStore) SaveMisc(ctx context.Context, name string, obj VersionedBlsEncryption) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := DataWithMeta{Digest: obj.Digest(), Timestamp: s.clock(), Object: obj}
	s.misc[name] = append(s.misc[name], entry)
	return entry.Digest, nil
}

func (s *MemoryStore) GetMiscSequence(ctx context.Context, name string, cursor Cursor, limit int) ([]DataWithMeta, Cursor, error) {
	if limit <= 0 {
		limit = DefaultSequencePageSize
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.misc[name]
	start := cursorStart(cursor, len(entries), func(i int) (time.Time, string) {
		return entries[i].Timestamp, entries[i].Digest
	})

	end := start + limit
	if end > len(entries) {
		end = len(entries)
	}
	page := entries[start:end]

	var next Cursor
	if end < len(entries) && len(page) > 0 {
		last := page[len(page)-1]
		next = Cursor{Timestamp: last.Timestamp, Digest: last.Digest}
	}
	return page, next, nil
}
