package mapping

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"
)

// document is the on-disk layout of the sync state file.
type document struct {
	LastSync *time.Time        `yaml:"last_sync,omitempty"`
	Tasks    map[string]string `yaml:"tasks"`
	Lists    map[string]string `yaml:"lists"`
}

// FileStore keeps the mapping in a single YAML file.
// Writes go to a temp file in the same directory and are renamed into place,
// so a crash leaves either the old or the new state, never a mix.
type FileStore struct {
	path string
	lock *flock.Flock
}

// NewFileStore returns a store backed by path. The file is created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the state file path.
func (s *FileStore) Path() string {
	return s.path
}

// GetMapping implements Store.
func (s *FileStore) GetMapping() (Mapping, error) {
	doc, err := s.readShared()
	if err != nil {
		return Mapping{}, err
	}
	return Mapping{Tasks: doc.Tasks, Lists: doc.Lists}, nil
}

// GetLastSyncTime implements Store.
func (s *FileStore) GetLastSyncTime() (time.Time, bool, error) {
	doc, err := s.readShared()
	if err != nil {
		return time.Time{}, false, err
	}
	if doc.LastSync == nil {
		return time.Time{}, false, nil
	}
	return *doc.LastSync, true, nil
}

// SaveMapping implements Store.
func (s *FileStore) SaveMapping(m Mapping, lastSync time.Time) error {
	m = m.Clone()
	if err := m.Validate(); err != nil {
		return fmt.Errorf("refusing to save sync state: %w", err)
	}

	if err := s.ensureDir(); err != nil {
		return err
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock sync state: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	ts := lastSync.UTC()
	data, err := yaml.Marshal(document{LastSync: &ts, Tasks: m.Tasks, Lists: m.Lists})
	if err != nil {
		return fmt.Errorf("failed to marshal sync state: %w", err)
	}
	return writeAtomic(s.path, data)
}

// Clear implements Store.
func (s *FileStore) Clear() (ClearStats, error) {
	if err := s.ensureDir(); err != nil {
		return ClearStats{}, err
	}
	if err := s.lock.Lock(); err != nil {
		return ClearStats{}, fmt.Errorf("failed to lock sync state: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	doc, err := s.read()
	if err != nil {
		return ClearStats{}, err
	}
	stats := ClearStats{Tasks: len(doc.Tasks), Lists: len(doc.Lists)}

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return ClearStats{}, fmt.Errorf("failed to remove sync state: %w", err)
	}
	return stats, nil
}

func (s *FileStore) ensureDir() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create sync state directory: %w", err)
	}
	return nil
}

// readShared reads the document under a shared lock. A missing directory means no state yet.
func (s *FileStore) readShared() (document, error) {
	if _, err := os.Stat(filepath.Dir(s.path)); errors.Is(err, os.ErrNotExist) {
		return emptyDocument(), nil
	}
	if err := s.lock.RLock(); err != nil {
		return document{}, fmt.Errorf("failed to lock sync state: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()
	return s.read()
}

func (s *FileStore) read() (document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return emptyDocument(), nil
	}
	if err != nil {
		return document{}, fmt.Errorf("failed to read sync state: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("invalid sync state %s: %w", s.path, err)
	}
	m := Mapping{Tasks: doc.Tasks, Lists: doc.Lists}.Clone()
	if err := m.Validate(); err != nil {
		return document{}, fmt.Errorf("invalid sync state %s: %w", s.path, err)
	}
	doc.Tasks, doc.Lists = m.Tasks, m.Lists
	return doc, nil
}

func emptyDocument() document {
	m := New()
	return document{Tasks: m.Tasks, Lists: m.Lists}
}

// writeAtomic writes data to a temp file, fsyncs it, renames it over path and fsyncs the directory.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write sync state: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write sync state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write sync state: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write sync state: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename sync state: %w", err)
	}

	if err := syncDir(dir); err != nil {
		return fmt.Errorf("failed to sync sync state directory: %w", err)
	}
	return nil
}

// syncDir makes a rename in dir durable.
var syncDir = func(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
