// Package history persists recently used bulk commands and named run presets
// in a small JSON file. Both lists are ordered most recent first and capped.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rshade/bulkops/internal/bulk"
)

// StoreVersion is the current schema version of the history file.
const StoreVersion = 1

// Default list caps.
const (
	DefaultMaxEntries = 20
	DefaultMaxPresets = 10
)

// Store errors.
var (
	// ErrCorrupted indicates the history file exists but cannot be decoded.
	ErrCorrupted      = errors.New("history file corrupted")
	ErrPresetNotFound = errors.New("preset not found")
	ErrInvalidPreset  = errors.New("invalid preset")
)

// Entry records one bulk run.
type Entry struct {
	RunID     string        `json:"run_id"`
	Command   string        `json:"command"`
	Mode      string        `json:"mode"`
	BatchSize int           `json:"batch_size"`
	Summary   bulk.Summary  `json:"summary"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Key identifies entries that replace each other: the same command run in
// the same mode.
func (e Entry) Key() string {
	return e.Mode + "\x00" + strings.TrimSpace(e.Command)
}

// Preset is a named, reusable run configuration.
type Preset struct {
	Name            string        `json:"name"`
	Command         string        `json:"command"`
	Mode            string        `json:"mode,omitempty"`
	BatchSize       int           `json:"batch_size,omitempty"`
	InterBatchDelay time.Duration `json:"inter_batch_delay,omitempty"`
	Timeout         time.Duration `json:"timeout,omitempty"`
	RatePerSecond   float64       `json:"rate_per_second,omitempty"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Limits caps the stored lists. Zero values select the defaults.
type Limits struct {
	MaxEntries int
	MaxPresets int
}

type storeData struct {
	Version int      `json:"version"`
	Entries []Entry  `json:"entries"`
	Presets []Preset `json:"presets"`
}

// Store is the file-backed history. It is safe for concurrent use within one
// process; concurrent writers in different processes overwrite each other.
type Store struct {
	mu       sync.RWMutex
	filePath string
	limits   Limits
	entries  []Entry
	presets  []Preset
}

// NewStore creates a store backed by filePath. Call Load to read existing state.
func NewStore(filePath string, limits Limits) *Store {
	if limits.MaxEntries <= 0 {
		limits.MaxEntries = DefaultMaxEntries
	}
	if limits.MaxPresets <= 0 {
		limits.MaxPresets = DefaultMaxPresets
	}
	return &Store{filePath: filePath, limits: limits}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.filePath
}

// Load reads the history file. A missing file leaves the store empty.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries, s.presets = nil, nil

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading history file: %w", err)
	}

	var stored storeData
	if unmarshalErr := json.Unmarshal(data, &stored); unmarshalErr != nil {
		return fmt.Errorf("%w: %w", ErrCorrupted, unmarshalErr)
	}
	if stored.Version != StoreVersion {
		return fmt.Errorf("%w: unsupported version %d (expected %d)", ErrCorrupted, stored.Version, StoreVersion)
	}

	s.entries = capSlice(stored.Entries, s.limits.MaxEntries)
	s.presets = capSlice(stored.Presets, s.limits.MaxPresets)
	return nil
}

// Record prepends entry, dropping an older entry with the same Key and
// anything beyond the entry cap, then saves.
func (s *Store) Record(entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entry.Key()
	updated := make([]Entry, 0, len(s.entries)+1)
	updated = append(updated, entry)
	for _, e := range s.entries {
		if e.Key() != key {
			updated = append(updated, e)
		}
	}
	s.entries = capSlice(updated, s.limits.MaxEntries)

	return s.saveLocked()
}

// Entries returns a copy of the recorded runs, most recent first.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]Entry(nil), s.entries...)
}

// Clear removes all recorded runs. Presets are kept.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	return s.saveLocked()
}

// SavePreset inserts or replaces the preset with the same name and moves it
// to the front, then saves.
func (s *Store) SavePreset(p Preset) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidPreset)
	}
	if strings.TrimSpace(p.Command) == "" {
		return fmt.Errorf("%w: command cannot be empty", ErrInvalidPreset)
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated := make([]Preset, 0, len(s.presets)+1)
	updated = append(updated, p)
	for _, existing := range s.presets {
		if existing.Name != p.Name {
			updated = append(updated, existing)
		}
	}
	s.presets = capSlice(updated, s.limits.MaxPresets)

	return s.saveLocked()
}

// Preset returns the preset with the given name.
func (s *Store) Preset(name string) (Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.presets {
		if p.Name == name {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("%w: %s", ErrPresetNotFound, name)
}

// Presets returns a copy of all presets, most recently saved first.
func (s *Store) Presets() []Preset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]Preset(nil), s.presets...)
}

// DeletePreset removes the named preset and saves.
func (s *Store) DeletePreset(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.presets {
		if p.Name == name {
			s.presets = append(s.presets[:i:i], s.presets[i+1:]...)
			return s.saveLocked()
		}
	}
	return fmt.Errorf("%w: %s", ErrPresetNotFound, name)
}

// saveLocked writes the store atomically. Must be called with mu held.
func (s *Store) saveLocked() error {
	stored := storeData{
		Version: StoreVersion,
		Entries: s.entries,
		Presets: s.presets,
	}
	if stored.Entries == nil {
		stored.Entries = []Entry{}
	}
	if stored.Presets == nil {
		stored.Presets = []Preset{}
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling history: %w", err)
	}

	if mkdirErr := os.MkdirAll(filepath.Dir(s.filePath), 0o750); mkdirErr != nil {
		return fmt.Errorf("creating history directory: %w", mkdirErr)
	}

	// Write atomically via temp file
	tmpPath := s.filePath + ".tmp"
	if writeErr := os.WriteFile(tmpPath, data, 0o600); writeErr != nil {
		return fmt.Errorf("writing history temp file: %w", writeErr)
	}
	if renameErr := os.Rename(tmpPath, s.filePath); renameErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming history temp file: %w", renameErr)
	}
	return nil
}

func capSlice[E any](s []E, limit int) []E {
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
