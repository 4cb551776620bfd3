package template

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/telhawk-systems/logflow/internal/model"
)

const templatesDir = "templates"

// Store is the per-source Template Store: it learns a LogTemplate once,
// from the first successfully-parsed log after template creation, and
// persists it under templates/<source_id>.json.
type Store struct {
	fs      afero.Fs
	dataDir string

	mu        sync.RWMutex
	templates map[string]*model.LogTemplate
}

// NewStore loads any previously-learned templates from dataDir/templates.
func NewStore(fs afero.Fs, dataDir string) (*Store, error) {
	dir := filepath.Join(dataDir, templatesDir)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("template store: create dir: %w", err)
	}
	s := &Store{fs: fs, dataDir: dataDir, templates: map[string]*model.LogTemplate{}}

	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("template store: read dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := afero.ReadFile(fs, filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var tmpl model.LogTemplate
		if err := json.Unmarshal(data, &tmpl); err != nil {
			continue
		}
		s.templates[tmpl.SourceID] = &tmpl
	}
	return s, nil
}

func (s *Store) path(sourceID string) string {
	return filepath.Join(s.dataDir, templatesDir, sourceID+".json")
}

// Get returns the learned template for a source, if any.
func (s *Store) Get(sourceID string) (*model.LogTemplate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[sourceID]
	return t, ok
}

// LearnFrom records the schema of raw as sourceID's template, if and only
// if no template exists yet for that source. Returns the (possibly
// pre-existing) template.
func (s *Store) LearnFrom(sourceID string, raw []byte) (*model.LogTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.templates[sourceID]; ok {
		return existing, nil
	}

	fields := Extract(raw)
	if len(fields.Order) == 0 {
		return nil, nil
	}

	tf := make([]model.TemplateField, 0, len(fields.Order))
	for _, name := range fields.Order {
		tf = append(tf, model.TemplateField{Name: name, Type: InferType(fields.Values[name])})
	}
	tmpl := &model.LogTemplate{SourceID: sourceID, Fields: tf, CreatedAt: time.Now().UTC()}

	data, err := json.MarshalIndent(tmpl, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("template store: marshal: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.path(sourceID), data, 0o644); err != nil {
		return nil, fmt.Errorf("template store: write: %w", err)
	}

	s.templates[sourceID] = tmpl
	return tmpl, nil
}

// Delete removes a source's learned template.
func (s *Store) Delete(sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.templates, sourceID)
	if err := s.fs.Remove(s.path(sourceID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("template store: delete: %w", err)
	}
	return nil
}
