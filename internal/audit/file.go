package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const filePrefix = "audit-"

// FileStore persists each day partition as a JSON array in its own
// file under dir, named audit-YYYY-MM-DD.json.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

var _ RecordStore = (*FileStore)(nil)

// NewFileStore creates dir if needed and returns a store over it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audit: create dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(partition string) string {
	return filepath.Join(s.dir, filePrefix+partition+".json")
}

// Append merges entries into the partition file, skipping ids already
// present. The file is replaced via temp-and-rename so a crash never
// leaves a half-written partition.
func (s *FileStore) Append(ctx context.Context, partition string, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readPartition(partition)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		seen[e.ID] = struct{}{}
	}
	for _, e := range entries {
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}
		existing = append(existing, e)
	}

	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("audit: encode partition %s: %w", partition, err)
	}
	tmp := s.path(partition) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("audit: write partition %s: %w", partition, err)
	}
	if err := os.Rename(tmp, s.path(partition)); err != nil {
		return fmt.Errorf("audit: commit partition %s: %w", partition, err)
	}
	return nil
}

func (s *FileStore) readPartition(partition string) ([]Entry, error) {
	data, err := os.ReadFile(s.path(partition))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("audit: read partition %s: %w", partition, err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("audit: decode partition %s: %w", partition, err)
	}
	return entries, nil
}

// ReadAll loads every partition file in key order.
func (s *FileStore) ReadAll(ctx context.Context) ([]Entry, error) {
	keys, err := s.Partitions(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []Entry
	for _, key := range keys {
		entries, err := s.readPartition(key)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	return all, nil
}

// Partitions lists the stored day keys in ascending order.
func (s *FileStore) Partitions(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("audit: list partitions: %w", err)
	}
	var keys []string
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), ".json"))
	}
	sort.Strings(keys)
	return keys, nil
}

// DeletePartition removes one partition file.
func (s *FileStore) DeletePartition(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(key)); err != nil {
		if os.IsNotExist(err) {
			return ErrNoSuchPartKey
		}
		return fmt.Errorf("audit: delete partition %s: %w", key, err)
	}
	return nil
}
