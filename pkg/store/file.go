// Package store persists accepted submissions as one JSON array in a single
// file. Every mutation is a full read-modify-write under one mutex; readers
// observe either the pre- or post-append state, never a torn write.
package store

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type Submission struct {
	ID               string                 `json:"id"`
	Timestamp        time.Time              `json:"timestamp"`
	ClientAddress    string                 `json:"clientAddress"`
	UserAgent        string                 `json:"userAgent,omitempty"`
	ResearchMetadata map[string]interface{} `json:"researchMetadata"`
	FormFields       map[string]string      `json:"formFields"`
	IsSuspicious     bool                   `json:"isSuspicious"`
	AutofillUsed     bool                   `json:"autofillUsed"`
}

type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Append reads the current sequence, adds rec, and rewrites the whole file.
// The record is durable before Append returns. A read failure aborts the
// append; rewriting on top of an unreadable file would discard every prior
// record.
func (s *FileStore) Append(rec Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.readLocked()
	if err != nil {
		return err
	}
	records = append(records, rec)
	return s.writeLocked(records)
}

// LoadAll returns every stored record in append order. A missing or corrupt
// backing file reads as an empty sequence; any other read failure is
// surfaced.
func (s *FileStore) LoadAll() ([]Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

// Raw returns the serialized store content verbatim, for export.
func (s *FileStore) Raw() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []byte("[]"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store %s: %w", s.path, err)
	}
	return raw, nil
}

// PruneOlderThan removes records with a timestamp before cutoff and reports
// how many were removed. The file is rewritten only when something changed.
func (s *FileStore) PruneOlderThan(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.readLocked()
	if err != nil {
		return 0, err
	}
	kept := make([]Submission, 0, len(records))
	for _, rec := range records {
		if !rec.Timestamp.Before(cutoff) {
			kept = append(kept, rec)
		}
	}
	removed := len(records) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := s.writeLocked(kept); err != nil {
		return 0, err
	}
	return removed, nil
}

// Count is a convenience for gauges and handler aggregates. Best effort; an
// unreadable store counts as zero.
func (s *FileStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, _ := s.readLocked()
	return len(records)
}

func (s *FileStore) readLocked() ([]Submission, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []Submission{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store %s: %w", s.path, err)
	}
	var records []Submission
	if err := json.Unmarshal(raw, &records); err != nil {
		// Corrupt content reads as empty rather than wedging the service.
		return []Submission{}, nil
	}
	return records, nil
}

func (s *FileStore) writeLocked(records []Submission) error {
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create store dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, raw, 0o640); err != nil {
		return fmt.Errorf("write store %s: %w", s.path, err)
	}
	return nil
}

// NewSubmissionID returns a 16 character hex token from 8 random bytes.
func NewSubmissionID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate submission id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
