package packages

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Store persists a set of package references as a single JSON file under a
// config directory, the way the admin surface's PackageReference CRUD
// needs them to survive a restart. Writes go to a temp file in the same
// directory and are renamed into place, so a crash mid-write never leaves
// packages.json truncated.
type Store struct {
	path string
	mu   sync.RWMutex
	refs map[string]Reference
}

// NewStore loads (or initializes) the store at <configDir>/packages.json.
func NewStore(configDir string) (*Store, error) {
	if configDir == "" {
		return nil, fmt.Errorf("config directory cannot be empty")
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	s := &Store{
		path: filepath.Join(configDir, "packages.json"),
		refs: make(map[string]Reference),
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read package store: %w", err)
	}

	var byID map[string]Reference
	if err := json.Unmarshal(data, &byID); err != nil {
		return nil, fmt.Errorf("failed to parse package store: %w", err)
	}
	for id, ref := range byID {
		ref.ID = id
		s.refs[id] = ref
	}
	return s, nil
}

// Create adds a new reference with a server-generated id, persists the
// store, and returns the stored reference, including its assigned id.
func (s *Store) Create(provider string, configuration map[string]string) (Reference, error) {
	if provider == "" {
		return Reference{}, fmt.Errorf("provider cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ref := Reference{ID: uuid.New().String(), Provider: provider, Configuration: configuration}
	s.refs[ref.ID] = ref
	if err := s.persistLocked(); err != nil {
		delete(s.refs, ref.ID)
		return Reference{}, err
	}
	return ref, nil
}

// Update replaces an existing reference's provider/configuration.
func (s *Store) Update(id, provider string, configuration map[string]string) (Reference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.refs[id]
	if !ok {
		return Reference{}, fmt.Errorf("package reference not found: %s", id)
	}

	updated := existing
	if provider != "" {
		updated.Provider = provider
	}
	if configuration != nil {
		updated.Configuration = configuration
	}
	s.refs[id] = updated
	if err := s.persistLocked(); err != nil {
		s.refs[id] = existing
		return Reference{}, err
	}
	return updated, nil
}

// Delete removes a reference by id. Deleting an unknown id is a no-op.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.refs[id]
	if !ok {
		return nil
	}
	delete(s.refs, id)
	if err := s.persistLocked(); err != nil {
		s.refs[id] = existing
		return err
	}
	return nil
}

// Get retrieves a reference by id.
func (s *Store) Get(id string) (Reference, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.refs[id]
	return ref, ok
}

// List returns every reference, sorted by id for deterministic output.
func (s *Store) List() []Reference {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Reference, 0, len(s.refs))
	for _, ref := range s.refs {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// persistLocked writes the full reference set to a temp file and renames
// it over the store's path. Callers must hold s.mu.
func (s *Store) persistLocked() error {
	// The file is a JSON object keyed by reference id; encoding/json writes
	// map keys in sorted order.
	data, err := json.MarshalIndent(s.refs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode package store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "packages-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to persist package store: %w", err)
	}
	return nil
}
