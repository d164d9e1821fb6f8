package audit

import "context"

// RecordStore persists flushed audit entries. Append must be
// idempotent per entry id: re-appending an already stored entry is a
// no-op, which lets the logger retry a partly failed flush without
// duplicating records.
type RecordStore interface {
	// Append stores entries under the given day partition.
	Append(ctx context.Context, partition string, entries []Entry) error
	// ReadAll returns every persisted entry across all partitions.
	ReadAll(ctx context.Context) ([]Entry, error)
	// Partitions lists stored partition keys in ascending order.
	Partitions(ctx context.Context) ([]string, error)
	// DeletePartition drops one partition. Unknown keys return
	// ErrNoSuchPartKey.
	DeletePartition(ctx context.Context, key string) error
}
