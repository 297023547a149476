package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tasksync/internal/service"
)

// FakeLocalStore is an in-memory implementation of service.LocalStore for testing.
type FakeLocalStore struct {
	mu     sync.RWMutex
	tasks  []service.Task
	nextID int
	clock  time.Time

	// Error injection for testing
	ListAllErr error
	UpdateErr  error
	DeleteErr  error

	// CreateErr fails Create for titles that are keys.
	CreateErr map[string]error
}

// NewFakeLocalStore creates an empty FakeLocalStore.
func NewFakeLocalStore() *FakeLocalStore {
	return &FakeLocalStore{
		CreateErr: make(map[string]error),
		clock:     time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC),
	}
}

// AddTask seeds a task with a fixed id.
func (s *FakeLocalStore) AddTask(task service.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task.Priority == "" {
		task.Priority = service.PriorityNone
	}
	task.CreatedAt = s.tick()
	task.UpdatedAt = task.CreatedAt
	s.tasks = append(s.tasks, task)
}

// All returns a copy of every task.
func (s *FakeLocalStore) All() []service.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]service.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

func (s *FakeLocalStore) tick() time.Time {
	s.clock = s.clock.Add(time.Minute)
	return s.clock
}

// ListAll implements service.LocalStore.
func (s *FakeLocalStore) ListAll(ctx context.Context) ([]service.Task, error) {
	if s.ListAllErr != nil {
		return nil, s.ListAllErr
	}
	return s.All(), nil
}

// Get implements service.LocalStore.
func (s *FakeLocalStore) Get(ctx context.Context, id string) (service.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return service.Task{}, ErrNotFound
}

// Create implements service.LocalStore.
func (s *FakeLocalStore) Create(ctx context.Context, fields service.TaskFields) (service.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.CreateErr[fields.Title]; ok && err != nil {
		return service.Task{}, err
	}

	s.nextID++
	now := s.tick()
	t := taskFromFields(fmt.Sprintf("local-%d", s.nextID), fields)
	t.CreatedAt, t.UpdatedAt = now, now
	s.tasks = append(s.tasks, t)
	return t, nil
}

// Update implements service.LocalStore.
func (s *FakeLocalStore) Update(ctx context.Context, id string, fields service.TaskFields) (service.Task, error) {
	if s.UpdateErr != nil {
		return service.Task{}, s.UpdateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.tasks {
		if t.ID == id {
			updated := taskFromFields(id, fields)
			updated.CreatedAt = t.CreatedAt
			updated.UpdatedAt = s.tick()
			s.tasks[i] = updated
			return updated, nil
		}
	}
	return service.Task{}, ErrNotFound
}

// Delete implements service.LocalStore.
func (s *FakeLocalStore) Delete(ctx context.Context, id string) error {
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.tasks {
		if t.ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func taskFromFields(id string, f service.TaskFields) service.Task {
	p := f.Priority
	if p == "" {
		p = service.PriorityNone
	}
	return service.Task{
		ID:        id,
		ListID:    f.ListID,
		Title:     f.Title,
		Notes:     f.Notes,
		Priority:  p,
		Completed: f.Completed,
		DueDate:   f.DueDate,
		DueTime:   f.DueTime,
	}
}
