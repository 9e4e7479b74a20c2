// Copyright 2025 Certen Protocol
//
// CSV backup/restore against Store Vault, per spec.md §6.5: a
// line-oriented CSV with header {topic, pubkey, digest, timestamp,
// data_base64}, rows self-describing and order-independent on import,
// deduplicated by (topic, pubkey, digest).

package csvbackup

import (
	"context"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/zkpayments/rollup-core/pkg/storevault"
)

// header is the fixed CSV column order, per spec.md §6.5.
var header = []string{"topic", "pubkey", "digest", "timestamp", "data_base64"}

// Row is one self-describing backup line.
type Row struct {
	Topic     string
	Pubkey    string
	Digest    string
	Timestamp time.Time
	Object    storevault.VersionedBlsEncryption
}

// dedupKey is the (topic, pubkey, digest) triple rows are deduplicated by.
type dedupKey struct {
	topic, pubkey, digest string
}

// WriteCSV serializes rows in header order. Row order in the output has no
// meaning to Import, which treats rows as an unordered set.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("csvbackup: write header: %w", err)
	}
	for _, r := range rows {
		encoded, err := json.Marshal(r.Object)
		if err != nil {
			return fmt.Errorf("csvbackup: marshal object for digest %s: %w", r.Digest, err)
		}
		record := []string{
			r.Topic,
			r.Pubkey,
			r.Digest,
			r.Timestamp.UTC().Format(time.RFC3339Nano),
			base64.StdEncoding.EncodeToString(encoded),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("csvbackup: write row for digest %s: %w", r.Digest, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a backup file, validating the header and every row's
// base64/JSON encoding but not re-deriving digests (Import does that by
// re-saving through Store Vault, whose Digest() is content-addressed).
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)

	got, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csvbackup: read header: %w", err)
	}
	if len(got) != len(header) {
		return nil, fmt.Errorf("csvbackup: expected %d columns, got %d", len(header), len(got))
	}
	for i, col := range header {
		if got[i] != col {
			return nil, fmt.Errorf("csvbackup: malformed header: expected column %d to be %q, got %q", i, col, got[i])
		}
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csvbackup: read row: %w", err)
		}

		ts, err := time.Parse(time.RFC3339Nano, record[3])
		if err != nil {
			return nil, fmt.Errorf("csvbackup: parse timestamp %q: %w", record[3], err)
		}
		decoded, err := base64.StdEncoding.DecodeString(record[4])
		if err != nil {
			return nil, fmt.Errorf("csvbackup: decode data_base64 for digest %s: %w", record[2], err)
		}
		var obj storevault.VersionedBlsEncryption
		if err := json.Unmarshal(decoded, &obj); err != nil {
			return nil, fmt.Errorf("csvbackup: unmarshal object for digest %s: %w", record[2], err)
		}

		rows = append(rows, Row{
			Topic:     record[0],
			Pubkey:    record[1],
			Digest:    record[2],
			Timestamp: ts,
			Object:    obj,
		})
	}
	return rows, nil
}

// Export reads every entry under topic for owner's full history and
// returns it as backup Rows, paginating via GetDataSequence until
// exhausted.
func Export(ctx context.Context, store storevault.Store, owner string, topic storevault.Topic) ([]Row, error) {
	var rows []Row
	var cursor storevault.Cursor
	for {
		entries, next, err := store.GetDataSequence(ctx, owner, topic, cursor, storevault.DefaultSequencePageSize)
		if err != nil {
			return nil, fmt.Errorf("csvbackup: export %s/%s: %w", owner, topic, err)
		}
		for _, e := range entries {
			rows = append(rows, Row{
				Topic:     topic.String(),
				Pubkey:    owner,
				Digest:    e.Digest,
				Timestamp: e.Timestamp,
				Object:    e.Object,
			})
		}
		if next.IsZero() || len(entries) == 0 {
			break
		}
		cursor = next
	}
	return rows, nil
}

// ExportAll exports every given topic for owner into one combined row set.
func ExportAll(ctx context.Context, store storevault.Store, owner string, topics []storevault.Topic) ([]Row, error) {
	var all []Row
	for _, topic := range topics {
		rows, err := Export(ctx, store, owner, topic)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
	}
	return all, nil
}

// ImportResult summarizes an Import call.
type ImportResult struct {
	Imported int
	Skipped  int // already present, or duplicated within the input rows
}

// Import replays rows into store, deduplicated by (topic, pubkey,
// digest): rows already present in store (per GetDataBatch) are skipped,
// as are duplicate rows within the input itself. Remaining rows are
// grouped by (owner, topic) and saved in MaxBatchSize-sized chunks.
func Import(ctx context.Context, store storevault.Store, rows []Row) (ImportResult, error) {
	type groupKey struct{ owner, topic string }
	groups := make(map[groupKey][]Row)
	seen := make(map[dedupKey]bool)

	var result ImportResult
	for _, r := range rows {
		key := dedupKey{topic: r.Topic, pubkey: r.Pubkey, digest: r.Digest}
		if seen[key] {
			result.Skipped++
			continue
		}
		seen[key] = true
		gk := groupKey{owner: r.Pubkey, topic: r.Topic}
		groups[gk] = append(groups[gk], r)
	}

	for gk, groupRows := range groups {
		topic, err := storevault.ParseTopic(gk.topic)
		if err != nil {
			return result, fmt.Errorf("csvbackup: import: %w", err)
		}

		existingDigests := make([]string, len(groupRows))
		for i, r := range groupRows {
			existingDigests[i] = r.Digest
		}
		existing, err := store.GetDataBatch(ctx, gk.owner, topic, existingDigests)
		if err != nil {
			return result, fmt.Errorf("csvbackup: import: check existing for %s/%s: %w", gk.owner, gk.topic, err)
		}
		present := make(map[string]bool, len(existing))
		for _, e := range existing {
			present[e.Digest] = true
		}

		var toSave []storevault.VersionedBlsEncryption
		for _, r := range groupRows {
			if present[r.Digest] {
				result.Skipped++
				continue
			}
			toSave = append(toSave, r.Object)
		}

		for start := 0; start < len(toSave); start += storevault.MaxBatchSize {
			end := start + storevault.MaxBatchSize
			if end > len(toSave) {
				end = len(toSave)
			}
			chunk := toSave[start:end]
			if _, err := store.SaveDataBatch(ctx, gk.owner, topic, chunk); err != nil {
				return result, fmt.Errorf("csvbackup: import: save batch for %s/%s: %w", gk.owner, gk.topic, err)
			}
			result.Imported += len(chunk)
		}
	}

	return result, nil
}
