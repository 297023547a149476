// Package testutil holds fakes for the store, gateway and credentials, plus golden file helpers.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"tasksync/internal/service"
)

// ErrNotFound is returned when a resource is not found.
var ErrNotFound = service.ErrNotFound

// FakeGateway is an in-memory implementation of service.Gateway for testing.
type FakeGateway struct {
	mu     sync.RWMutex
	lists  []service.RemoteList
	tasks  map[string][]service.RemoteTask // listID -> tasks
	nextID int

	// Error injection for testing
	ListListsErr  error
	CreateListErr error
	ListTasksErr  error
	DeleteTaskErr error

	// CreateTaskErr fails CreateTask for tasks whose title is a key.
	CreateTaskErr map[string]error

	// UpdateTaskErr fails UpdateTask for remote ids that are keys.
	UpdateTaskErr map[string]error

	// Call counters
	CreateTaskCalls int
	UpdateTaskCalls int
	ListTasksCalls  int
	LastPageSize    int
}

// NewFakeGateway creates a FakeGateway with a default list named "Tasks".
func NewFakeGateway() *FakeGateway {
	g := NewEmptyFakeGateway()
	g.lists = []service.RemoteList{{ID: "list-default", Name: "Tasks", IsDefault: true}}
	g.tasks["list-default"] = nil
	return g
}

// NewEmptyFakeGateway creates a FakeGateway with no lists at all.
func NewEmptyFakeGateway() *FakeGateway {
	return &FakeGateway{
		tasks:         make(map[string][]service.RemoteTask),
		CreateTaskErr: make(map[string]error),
		UpdateTaskErr: make(map[string]error),
	}
}

// AddList adds a non-default list.
func (g *FakeGateway) AddList(id, name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lists = append(g.lists, service.RemoteList{ID: id, Name: name})
	if g.tasks[id] == nil {
		g.tasks[id] = nil
	}
}

// AddTask seeds a remote task.
func (g *FakeGateway) AddTask(listID string, task service.RemoteTask) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if task.Status == "" {
		task.Status = service.StatusNotStarted
	}
	if task.Importance == "" {
		task.Importance = service.ImportanceNormal
	}
	g.tasks[listID] = append(g.tasks[listID], task)
}

// Tasks returns a copy of the tasks in a list.
func (g *FakeGateway) Tasks(listID string) []service.RemoteTask {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]service.RemoteTask, len(g.tasks[listID]))
	copy(out, g.tasks[listID])
	return out
}

// Task returns one task by id.
func (g *FakeGateway) Task(listID, id string) (service.RemoteTask, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, t := range g.tasks[listID] {
		if t.ID == id {
			return t, true
		}
	}
	return service.RemoteTask{}, false
}

// RemoveTask deletes a task behind the engine's back, as another client would.
func (g *FakeGateway) RemoveTask(listID, id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	tasks := g.tasks[listID]
	for i, t := range tasks {
		if t.ID == id {
			g.tasks[listID] = append(tasks[:i], tasks[i+1:]...)
			return
		}
	}
}

// ListLists implements service.Gateway.
func (g *FakeGateway) ListLists(ctx context.Context) ([]service.RemoteList, error) {
	if g.ListListsErr != nil {
		return nil, g.ListListsErr
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	result := make([]service.RemoteList, len(g.lists))
	copy(result, g.lists)
	return result, nil
}

// CreateList implements service.Gateway.
func (g *FakeGateway) CreateList(ctx context.Context, name string) (service.RemoteList, error) {
	if g.CreateListErr != nil {
		return service.RemoteList{}, g.CreateListErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	// Generate a simple ID
	id := "list-" + strings.ToLower(strings.ReplaceAll(name, " ", "-"))
	list := service.RemoteList{ID: id, Name: name}
	g.lists = append(g.lists, list)
	g.tasks[id] = nil
	return list, nil
}

// ListTasks implements service.Gateway.
func (g *FakeGateway) ListTasks(ctx context.Context, listID string, pageSize int) ([]service.RemoteTask, error) {
	g.mu.Lock()
	g.ListTasksCalls++
	g.LastPageSize = pageSize
	g.mu.Unlock()

	if g.ListTasksErr != nil {
		return nil, g.ListTasksErr
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	tasks, ok := g.tasks[listID]
	if !ok {
		return nil, ErrNotFound
	}
	result := make([]service.RemoteTask, len(tasks))
	copy(result, tasks)
	return result, nil
}

// CreateTask implements service.Gateway.
func (g *FakeGateway) CreateTask(ctx context.Context, listID string, task service.RemoteTask) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.CreateTaskCalls++

	if err, ok := g.CreateTaskErr[task.Title]; ok && err != nil {
		return "", err
	}
	if _, ok := g.tasks[listID]; !ok {
		return "", ErrNotFound
	}

	g.nextID++
	task.ID = fmt.Sprintf("remote-%d", g.nextID)
	g.tasks[listID] = append(g.tasks[listID], task)
	return task.ID, nil
}

// UpdateTask implements service.Gateway.
func (g *FakeGateway) UpdateTask(ctx context.Context, listID, taskID string, task service.RemoteTask) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.UpdateTaskCalls++

	if err, ok := g.UpdateTaskErr[taskID]; ok && err != nil {
		return err
	}
	tasks, ok := g.tasks[listID]
	if !ok {
		return ErrNotFound
	}
	for i, t := range tasks {
		if t.ID == taskID {
			task.ID = taskID
			tasks[i] = task
			return nil
		}
	}
	return ErrNotFound
}

// DeleteTask implements service.Gateway.
func (g *FakeGateway) DeleteTask(ctx context.Context, listID, taskID string) error {
	if g.DeleteTaskErr != nil {
		return g.DeleteTaskErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	tasks, ok := g.tasks[listID]
	if !ok {
		return ErrNotFound
	}
	for i, t := range tasks {
		if t.ID == taskID {
			g.tasks[listID] = append(tasks[:i], tasks[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// FakeCredentials is a fixed service.Credentials.
type FakeCredentials struct {
	SignedIn bool
	Token    string
	TokenErr error
}

// SignedIn returns credentials with a live token.
func SignedIn() *FakeCredentials {
	return &FakeCredentials{SignedIn: true, Token: "test-token"}
}

// IsSignedIn implements service.Credentials.
func (c *FakeCredentials) IsSignedIn() bool { return c.SignedIn }

// AccessToken implements service.Credentials.
func (c *FakeCredentials) AccessToken(ctx context.Context) (string, error) {
	if c.TokenErr != nil {
		return "", c.TokenErr
	}
	if !c.SignedIn {
		return "", errors.New("not signed in")
	}
	return c.Token, nil
}
