package service

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a task or list does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTimeout is returned when a backend call exceeds its deadline.
	ErrTimeout = errors.New("request timed out")

	// ErrAuth is returned when the backend rejects the credentials.
	ErrAuth = errors.New("token expired or revoked (run: tasksync login)")
)

// Gateway is the remote task service.
// Every call carries its own timeout; commands and the engine never import a vendor SDK.
type Gateway interface {
	// ListLists returns all remote lists in API order.
	ListLists(ctx context.Context) ([]RemoteList, error)

	// CreateList creates a list and returns it.
	CreateList(ctx context.Context, name string) (RemoteList, error)

	// ListTasks returns every task in a list, requesting pageSize items per call
	// and following continuation links until exhausted.
	ListTasks(ctx context.Context, listID string, pageSize int) ([]RemoteTask, error)

	// CreateTask creates a task and returns the id assigned by the service.
	CreateTask(ctx context.Context, listID string, task RemoteTask) (string, error)

	// UpdateTask overwrites the writable fields of an existing task.
	UpdateTask(ctx context.Context, listID, taskID string, task RemoteTask) error

	// DeleteTask deletes a task.
	DeleteTask(ctx context.Context, listID, taskID string) error
}

// LocalStore is the local task store.
type LocalStore interface {
	// ListAll returns every local task ordered by creation time.
	ListAll(ctx context.Context) ([]Task, error)

	// Get returns one task or ErrNotFound.
	Get(ctx context.Context, id string) (Task, error)

	// Create inserts a task with a freshly generated id.
	Create(ctx context.Context, fields TaskFields) (Task, error)

	// Update replaces the writable fields of a task.
	Update(ctx context.Context, id string, fields TaskFields) (Task, error)

	// Delete removes a task.
	Delete(ctx context.Context, id string) error
}

// Credentials supplies the bearer credential for the remote service.
type Credentials interface {
	// IsSignedIn reports whether a stored credential exists.
	IsSignedIn() bool

	// AccessToken returns a live access token, refreshing it if needed.
	AccessToken(ctx context.Context) (string, error)
}
