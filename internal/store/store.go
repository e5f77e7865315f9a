package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// History keeps an append-only log of finished runs.
type History struct {
	root string
	mu   sync.Mutex
}

// NewHistory creates a History rooted at the given directory (typically .runbench/).
func NewHistory(root string) *History {
	return &History{root: root}
}

func (s *History) historyDir() string {
	return filepath.Join(s.root, "history")
}

// AddRun appends a run record.
func (s *History) AddRun(r RunRecord) error {
	return s.appendRecord("runs.json", r)
}

// Runs returns all run records.
func (s *History) Runs() ([]RunRecord, error) {
	var records []RunRecord
	err := s.loadRecords("runs.json", &records)
	return records, err
}

func (s *History) appendRecord(filename string, record any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.historyDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	path := filepath.Join(dir, filename)

	// Read existing records; a corrupt file is left untouched.
	var records []json.RawMessage
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &records); err != nil {
			return errors.Wrapf(err, "could not decode %s", path)
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	records = append(records, raw)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *History) loadRecords(filename string, dest any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.historyDir(), filename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, dest)
}
