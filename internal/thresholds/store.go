package thresholds

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Load reads a threshold file in strict mode. The format is chosen by
// extension: .yaml/.yml use YAML, anything else is parsed as JSON.
func Load(path string) (Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Thresholds{}, fmt.Errorf("read thresholds %s: %w", path, err)
	}

	values, err := decode(path, data)
	if err != nil {
		return Thresholds{}, fmt.Errorf("parse thresholds %s: %w", path, err)
	}

	t, err := FromMap(values)
	if err != nil {
		return Thresholds{}, fmt.Errorf("thresholds %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return Thresholds{}, fmt.Errorf("thresholds %s: %w", path, err)
	}
	return t, nil
}

// Save writes t to path, replacing the file atomically.
func Save(path string, t Thresholds) error {
	data, err := encode(path, t.ToMap())
	if err != nil {
		return fmt.Errorf("encode thresholds: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".thresholds-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write thresholds: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close thresholds: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func decode(path string, data []byte) (map[string]float64, error) {
	values := make(map[string]float64)
	if isYAML(path) {
		if err := yaml.Unmarshal(data, &values); err != nil {
			return nil, err
		}
		return values, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&values); err != nil {
		return nil, err
	}
	return values, nil
}

func encode(path string, values map[string]float64) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(values)
	}
	data, err := json.MarshalIndent(values, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Store is the mutable holder behind the tuning endpoint. Readers get a copy;
// writers replace the whole value and persist it before it becomes visible.
type Store struct {
	mu      sync.RWMutex
	path    string
	current Thresholds
}

// Open loads path strictly and wraps it in a Store.
func Open(path string) (*Store, error) {
	t, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, current: t}, nil
}

// NewStore wraps an already built value. An empty path keeps updates in memory.
func NewStore(path string, t Thresholds) *Store {
	return &Store{path: path, current: t}
}

func (s *Store) Get() Thresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) Path() string {
	return s.path
}

// Update applies patch, persists the result and publishes it. On any error
// the stored value is unchanged.
func (s *Store) Update(patch map[string]float64) (Thresholds, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.current.With(patch)
	if err != nil {
		return s.current, fmt.Errorf("%w: %w", ErrInvalidThresholds, err)
	}
	if s.path != "" {
		if err := Save(s.path, next); err != nil {
			return s.current, err
		}
	}
	s.current = next
	return next, nil
}
