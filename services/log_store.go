package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"smartsensors/models"
)

// LogStore persists the diagnostic log buffer as one blob
type LogStore interface {
	Load() ([]models.LogEntry, error)
	Save(entries []models.LogEntry) error
	Clear() error
}

// FileLogStore keeps the buffer in a JSON file that is rewritten wholesale
type FileLogStore struct {
	path string
	mu   sync.Mutex
}

// NewFileLogStore creates a store backed by path
func NewFileLogStore(path string) *FileLogStore {
	return &FileLogStore{path: path}
}

// Path returns the backing file path
func (s *FileLogStore) Path() string {
	return s.path
}

// Load reads the persisted buffer; a missing file is an empty buffer
func (s *FileLogStore) Load() ([]models.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read log store: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var entries []models.LogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode log store: %w", err)
	}
	return entries, nil
}

// Save overwrites the persisted buffer through a temp file and rename
func (s *FileLogStore) Save(entries []models.LogEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode logs: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".app_logs-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp log file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write logs: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp log file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace log store: %w", err)
	}
	return nil
}

// Clear removes the persisted buffer
func (s *FileLogStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear log store: %w", err)
	}
	return nil
}
