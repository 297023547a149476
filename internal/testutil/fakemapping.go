package testutil

import (
	"sync"
	"time"

	"tasksync/internal/mapping"
)

// FakeMappingStore is an in-memory mapping.Store for testing.
type FakeMappingStore struct {
	mu       sync.Mutex
	m        mapping.Mapping
	lastSync time.Time
	hasSync  bool

	// Error injection
	GetErr   error
	SaveErr  error
	ClearErr error

	// Saves counts successful SaveMapping calls.
	Saves int
}

// NewFakeMappingStore creates an empty FakeMappingStore.
func NewFakeMappingStore() *FakeMappingStore {
	return &FakeMappingStore{m: mapping.New()}
}

// GetMapping implements mapping.Store.
func (s *FakeMappingStore) GetMapping() (mapping.Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return mapping.Mapping{}, s.GetErr
	}
	return s.m.Clone(), nil
}

// GetLastSyncTime implements mapping.Store.
func (s *FakeMappingStore) GetLastSyncTime() (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return time.Time{}, false, s.GetErr
	}
	return s.lastSync, s.hasSync, nil
}

// SaveMapping implements mapping.Store.
func (s *FakeMappingStore) SaveMapping(m mapping.Mapping, lastSync time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	if err := m.Validate(); err != nil {
		return err
	}
	s.m = m.Clone()
	s.lastSync = lastSync
	s.hasSync = true
	s.Saves++
	return nil
}

// Clear implements mapping.Store.
func (s *FakeMappingStore) Clear() (mapping.ClearStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ClearErr != nil {
		return mapping.ClearStats{}, s.ClearErr
	}
	stats := mapping.ClearStats{Tasks: len(s.m.Tasks), Lists: len(s.m.Lists)}
	s.m = mapping.New()
	s.lastSync = time.Time{}
	s.hasSync = false
	return stats, nil
}
