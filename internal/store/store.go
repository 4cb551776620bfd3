// Package store implements the Configuration Store: it loads, validates,
// and persists the set of Sources and their per-source aggregation and
// filter policies as JSON files under a data directory, using afero so the
// same code path is exercised against both a real filesystem and an
// in-memory one in tests.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/telhawk-systems/logflow/internal/model"
)

const (
	sourcesFile    = "sources.json"
	aggregationDir = "aggregation"
	filtersDir     = "filters"
	dirPerm        = 0o755
	filePerm       = 0o644
)

// Store is the Configuration Store. It is safe for concurrent use; readers
// get a consistent snapshot of the source set via Snapshot, writers go
// through Add/Update/Delete which hold a single writer lock for the
// duration of the validate-then-persist sequence.
type Store struct {
	fs      afero.Fs
	dataDir string

	mu      sync.RWMutex
	sources map[string]*model.Source
}

// New loads an existing Store from dataDir (creating it if absent).
func New(fs afero.Fs, dataDir string) (*Store, error) {
	if err := fs.MkdirAll(dataDir, dirPerm); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}
	if err := fs.MkdirAll(filepath.Join(dataDir, aggregationDir), dirPerm); err != nil {
		return nil, fmt.Errorf("store: create aggregation dir: %w", err)
	}
	if err := fs.MkdirAll(filepath.Join(dataDir, filtersDir), dirPerm); err != nil {
		return nil, fmt.Errorf("store: create filters dir: %w", err)
	}

	s := &Store{fs: fs, dataDir: dataDir, sources: map[string]*model.Source{}}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) sourcesPath() string {
	return filepath.Join(s.dataDir, sourcesFile)
}

func (s *Store) load() error {
	data, err := afero.ReadFile(s.fs, s.sourcesPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("store: read sources: %w", err)
	}
	var list []*model.Source
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("store: parse sources: %w", err)
	}
	for _, src := range list {
		s.sources[src.ID] = src
	}
	return nil
}

// Snapshot returns a point-in-time copy of the source list. Callers must
// not mutate the returned Source values; Sources are replaced wholesale,
// never mutated in place.
func (s *Store) Snapshot() []*model.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Source, 0, len(s.sources))
	for _, src := range s.sources {
		out = append(out, src)
	}
	return out
}

// Get returns a single source by ID.
func (s *Store) Get(id string) (*model.Source, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.sources[id]
	return src, ok
}

// Add validates src against its own constraints and against the uniqueness
// invariant (port, protocol, source_ip) across the existing set, then
// persists the full set atomically.
func (s *Store) Add(src *model.Source) error {
	src.ApplyDefaults()
	if err := src.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sources[src.ID]; exists {
		return fmt.Errorf("store: source %s already exists", src.ID)
	}
	if err := checkConflicts(s.sources, src, ""); err != nil {
		return err
	}

	s.sources[src.ID] = src
	if err := s.persistLocked(); err != nil {
		delete(s.sources, src.ID)
		return err
	}
	return nil
}

// Update replaces an existing source wholesale (atomic replace per §3).
func (s *Store) Update(src *model.Source) error {
	src.ApplyDefaults()
	if err := src.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.sources[src.ID]
	if !exists {
		return fmt.Errorf("store: source %s does not exist", src.ID)
	}
	if err := checkConflicts(s.sources, src, src.ID); err != nil {
		return err
	}

	s.sources[src.ID] = src
	if err := s.persistLocked(); err != nil {
		s.sources[src.ID] = prev
		return err
	}
	return nil
}

// Delete removes a source and its on-disk aggregation/filter policy files.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.sources[id]
	if !exists {
		return fmt.Errorf("store: source %s does not exist", id)
	}
	delete(s.sources, id)
	if err := s.persistLocked(); err != nil {
		s.sources[id] = prev
		return err
	}
	_ = s.fs.Remove(s.aggregationPath(id))
	_ = s.fs.Remove(s.filtersPath(id))
	return nil
}

// checkConflicts enforces the (port, protocol, source_ip) uniqueness
// invariant. excludeID lets Update compare a source against the rest of
// the set without flagging a conflict against itself.
func checkConflicts(existing map[string]*model.Source, candidate *model.Source, excludeID string) error {
	claimed := map[model.ConflictKey]string{}
	for id, src := range existing {
		if id == excludeID {
			continue
		}
		for _, k := range src.ConflictKeys() {
			claimed[k] = id
		}
	}
	for _, k := range candidate.ConflictKeys() {
		if owner, ok := claimed[k]; ok {
			return fmt.Errorf("store: (port=%d proto=%s ip=%s) already claimed by source %s", k.Port, k.Protocol, k.IP, owner)
		}
	}
	return nil
}

func (s *Store) persistLocked() error {
	list := make([]*model.Source, 0, len(s.sources))
	for _, src := range s.sources {
		list = append(list, src)
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal sources: %w", err)
	}
	return writeAtomic(s.fs, s.sourcesPath(), data)
}

// writeAtomic writes data to a ".tmp" sibling of path then renames it into
// place, matching the Folder sink's write discipline (§4.5) so config
// writers and sink writers never leave a half-written file visible to
// readers.
func writeAtomic(fs afero.Fs, path string, data []byte) error {
	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, data, filePerm); err != nil {
		return fmt.Errorf("store: write %s: %w", tmp, err)
	}
	if f, err := fs.Open(tmp); err == nil {
		if syncer, ok := f.(interface{ Sync() error }); ok {
			_ = syncer.Sync()
		}
		_ = f.Close()
	}
	if err := fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("store: rename %s -> %s: %w", tmp, path, err)
	}
	return nil
}

func (s *Store) aggregationPath(sourceID string) string {
	return filepath.Join(s.dataDir, aggregationDir, sourceID+".json")
}

func (s *Store) filtersPath(sourceID string) string {
	return filepath.Join(s.dataDir, filtersDir, sourceID+".json")
}

// AggregationPolicy loads the policy for a source, returning a disabled
// zero-value policy if none has been configured yet.
func (s *Store) AggregationPolicy(sourceID string) (model.AggregationPolicy, error) {
	data, err := afero.ReadFile(s.fs, s.aggregationPath(sourceID))
	if err != nil {
		if os.IsNotExist(err) {
			return model.AggregationPolicy{SourceID: sourceID}, nil
		}
		return model.AggregationPolicy{}, fmt.Errorf("store: read aggregation policy: %w", err)
	}
	var policy model.AggregationPolicy
	if err := json.Unmarshal(data, &policy); err != nil {
		return model.AggregationPolicy{}, fmt.Errorf("store: parse aggregation policy: %w", err)
	}
	return policy, nil
}

// SetAggregationPolicy persists a source's aggregation policy.
func (s *Store) SetAggregationPolicy(policy model.AggregationPolicy) error {
	data, err := json.MarshalIndent(policy, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal aggregation policy: %w", err)
	}
	return writeAtomic(s.fs, s.aggregationPath(policy.SourceID), data)
}

// FilterRules loads the filter rule set for a source (empty = pass-through).
func (s *Store) FilterRules(sourceID string) ([]model.FilterRule, error) {
	data, err := afero.ReadFile(s.fs, s.filtersPath(sourceID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: read filter rules: %w", err)
	}
	var rules []model.FilterRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("store: parse filter rules: %w", err)
	}
	return rules, nil
}

// SetFilterRules persists a source's filter rule set. Rule updates are
// hot-reloadable: processors re-read this file at the start of each batch.
func (s *Store) SetFilterRules(sourceID string, rules []model.FilterRule) error {
	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal filter rules: %w", err)
	}
	return writeAtomic(s.fs, s.filtersPath(sourceID), data)
}
