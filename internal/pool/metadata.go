package pool

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// MetadataStore is the persisted directory of FileRecords, kept as one
// JSON array in a single document. Records are append-only: they are
// never updated or deleted in place. Append is serialized by a
// store-scoped mutex and rewrites the document atomically via a temp
// file and rename, so two concurrent uploads never lose a record.
type MetadataStore struct {
	path string
	log  zerolog.Logger
	mu   sync.Mutex
}

// NewMetadataStore creates a store persisting to the given path. The
// parent directory is created on demand.
func NewMetadataStore(path string, log zerolog.Logger) *MetadataStore {
	return &MetadataStore{path: path, log: log}
}

// Load reads all persisted records. A missing, empty, or syntactically
// invalid document is treated as an empty directory: corruption is
// logged, never fatal. A document holding a single record object instead
// of an array is accepted for compatibility with hand-edited files.
func (s *MetadataStore) Load() ([]FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *MetadataStore) loadLocked() ([]FileRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var records []FileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		var single FileRecord
		if err2 := json.Unmarshal(data, &single); err2 == nil && single.FileName != "" {
			return []FileRecord{single}, nil
		}
		s.log.Warn().Err(err).Str("path", s.path).
			Msg("metadata document corrupt, resetting to empty directory")
		return nil, nil
	}
	return records, nil
}

// Append persists a new record at the end of the directory.
func (s *MetadataStore) Append(record FileRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadLocked()
	if err != nil {
		return err
	}
	records = append(records, record)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create metadata dir: %w", err)
	}

	// Write atomically via unique temp file so a crash mid-write never
	// leaves a truncated document behind.
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".metadata-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename metadata: %w", err)
	}
	return nil
}

// Lookup returns the first record matching the file name in persisted
// (insertion) order. Duplicate names are permitted by the store; first
// match wins, so the earliest upload under a name stays retrievable.
func (s *MetadataStore) Lookup(fileName string) (*FileRecord, bool, error) {
	records, err := s.Load()
	if err != nil {
		return nil, false, err
	}
	for i := range records {
		if records[i].FileName == fileName {
			return &records[i], true, nil
		}
	}
	return nil, false, nil
}
