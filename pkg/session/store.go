// Package session keeps remote browser sessions on disk so later runs can
// reattach to them instead of starting a new browser.
package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/devicelab-dev/basil/pkg/core"
)

// Record describes one remote session.
type Record struct {
	// ID is the WebDriver session id.
	ID        string    `json:"id"`
	ServerURL string    `json:"serverURL"`
	Browser   string    `json:"browser"`
	ClientID  string    `json:"clientID"` // the basil process that created it
	CreatedAt time.Time `json:"createdAt"`
	LastUsed  time.Time `json:"lastUsed"`
}

// Store is a JSON file of session records.
type Store struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

// NewStore keeps records in path on fs.
func NewStore(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path}
}

// Path returns the session file.
func (s *Store) Path() string { return s.path }

// NewClientID identifies the current process in the records it writes.
func NewClientID() string { return uuid.NewString() }

func (s *Store) read() ([]Record, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, core.ErrInvalidConfig.WithMessagef("corrupt session file %s", s.path).WithCause(err)
	}
	return records, nil
}

func (s *Store) write(records []Record) error {
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	// write then rename so a crash never leaves half a file
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o600); err != nil {
		return err
	}
	return s.fs.Rename(tmp, s.path)
}

// List returns every record, most recently used first.
func (s *Store) List() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.read()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].LastUsed.After(records[j].LastUsed)
	})
	return records, nil
}

// Save adds rec or replaces the record with the same id.
func (s *Store) Save(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.read()
	if err != nil {
		return err
	}
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.LastUsed.IsZero() {
		rec.LastUsed = now
	}
	for i := range records {
		if records[i].ID == rec.ID {
			records[i] = rec
			return s.write(records)
		}
	}
	return s.write(append(records, rec))
}

// Touch marks the record as used now.
func (s *Store) Touch(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.read()
	if err != nil {
		return err
	}
	for i := range records {
		if records[i].ID == id {
			records[i].LastUsed = time.Now()
			return s.write(records)
		}
	}
	return core.ErrSessionNotFound.WithMessagef("session %s is not recorded", id)
}

// Latest returns the most recently used record for serverURL and browser.
func (s *Store) Latest(serverURL, browser string) (Record, bool, error) {
	records, err := s.List()
	if err != nil {
		return Record{}, false, err
	}
	for _, r := range records {
		if r.ServerURL == serverURL && r.Browser == browser {
			return r, true, nil
		}
	}
	return Record{}, false, nil
}

// Remove deletes the record with id. Removing an unknown id is not an error.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.read()
	if err != nil {
		return err
	}
	kept := records[:0]
	for _, r := range records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(records) {
		return nil
	}
	return s.write(kept)
}
