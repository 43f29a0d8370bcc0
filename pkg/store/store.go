package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is the persisted cumulative state for one meter. Value is kept as a
// string so one corrupt value surfaces at restore time instead of failing
// the whole file.
type Entry struct {
	Value         string `json:"value"`
	LastProcessed string `json:"lastProcessed,omitempty"`
}

type fileFormat struct {
	Meters    map[string]Entry `json:"meters"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Store persists per meter entries to a single JSON file.
type Store struct {
	path string

	mutex   sync.Mutex
	entries map[string]Entry
}

func New(path string) *Store {
	return &Store{
		path:    path,
		entries: make(map[string]Entry),
	}
}

// Load reads the state file. A missing file is not an error, it just means
// a fresh store.
func (s *Store) Load() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var f fileFormat
	err = json.Unmarshal(b, &f)
	if err != nil {
		return fmt.Errorf("error parsing state file %s: %w", s.path, err)
	}
	if f.Meters != nil {
		s.entries = f.Meters
	}
	return nil
}

func (s *Store) Get(meterNumber string) (Entry, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	e, ok := s.entries[meterNumber]
	return e, ok
}

// Put stores the entry and writes the file immediately so a committed
// increment survives a restart between ticks.
func (s *Store) Put(meterNumber string, e Entry) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.entries[meterNumber] = e

	f := fileFormat{
		Meters:    s.entries,
		UpdatedAt: time.Now(),
	}
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		err = os.MkdirAll(dir, 0755)
		if err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, b, 0644)
}
