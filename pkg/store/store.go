// Package store persists small record sets as JSON files, one file per
// bucket. Writes replace the whole record atomically; readers never observe
// a partially written record.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tinyland-inc/larkbridge/pkg/logger"
)

// validateBucket rejects names that would escape the store directory, since
// the bucket name becomes a filename.
func validateBucket(bucket string) error {
	trimmed := strings.TrimSpace(bucket)
	if trimmed == "" {
		return errors.New("bucket name is required and must be non-empty")
	}
	if strings.ContainsAny(trimmed, "/\\") || strings.Contains(trimmed, "..") {
		return errors.New("bucket name must not contain path separators or '..'")
	}
	return nil
}

// FileStore keeps each bucket in <dir>/<bucket>.json as a flat key-to-record
// object. The full bucket is held in memory and flushed on every write, which
// is fine at the record counts involved here (user links, channel mappings).
type FileStore struct {
	dir string

	mu      sync.Mutex
	buckets map[string]map[string]json.RawMessage
}

// Open loads every existing bucket file under dir, creating dir if needed.
func Open(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	s := &FileStore{
		dir:     dir,
		buckets: make(map[string]map[string]json.RawMessage),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read store dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		bucket := e.Name()[:len(e.Name())-len(".json")]
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read bucket %s: %w", bucket, err)
		}
		records := make(map[string]json.RawMessage)
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parse bucket %s: %w", bucket, err)
		}
		s.buckets[bucket] = records
	}

	logger.DebugCF("store", "Store opened", map[string]any{
		"dir":     dir,
		"buckets": len(s.buckets),
	})
	return s, nil
}

// Get returns the record for key, with ok=false on a miss.
func (s *FileStore) Get(bucket, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.buckets[bucket][key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set replaces the record for key and flushes the bucket to disk.
func (s *FileStore) Set(bucket, key string, value []byte) error {
	if err := validateBucket(bucket); err != nil {
		return err
	}
	if !json.Valid(value) {
		return fmt.Errorf("record %s/%s is not valid JSON", bucket, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buckets[bucket] == nil {
		s.buckets[bucket] = make(map[string]json.RawMessage)
	}
	s.buckets[bucket][key] = append([]byte(nil), value...)
	return s.flush(bucket)
}

// Delete removes the record for key and flushes the bucket to disk. Deleting
// an absent key is a no-op.
func (s *FileStore) Delete(bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, ok := s.buckets[bucket]
	if !ok {
		return nil
	}
	if _, ok := records[key]; !ok {
		return nil
	}
	delete(records, key)
	return s.flush(bucket)
}

// List returns a copy of every record in bucket.
func (s *FileStore) List(bucket string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]byte, len(s.buckets[bucket]))
	for k, v := range s.buckets[bucket] {
		out[k] = append([]byte(nil), v...)
	}
	return out, nil
}

// flush writes bucket to a temp file and renames it into place, so a crash
// mid-write leaves the previous file intact. Caller holds the lock.
func (s *FileStore) flush(bucket string) error {
	data, err := json.MarshalIndent(s.buckets[bucket], "", "  ")
	if err != nil {
		return fmt.Errorf("encode bucket %s: %w", bucket, err)
	}

	path := filepath.Join(s.dir, bucket+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write bucket %s: %w", bucket, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace bucket %s: %w", bucket, err)
	}
	return nil
}
