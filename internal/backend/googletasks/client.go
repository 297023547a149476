// Package googletasks implements service.Gateway using the Google Tasks API.
package googletasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"tasksync/internal/service"
)

const (
	// DefaultListID is the alias Google accepts for the user's default list.
	DefaultListID = "@default"

	// APITimeout is the default timeout for API calls.
	APITimeout = 10 * time.Second

	statusNeedsAction = "needsAction"
	statusCompleted   = "completed"

	wallClock = "2006-01-02T15:04:05.0000000"
)

// Client implements service.Gateway using Google Tasks API.
type Client struct {
	svc     *tasks.Service
	timeout time.Duration
}

// New creates a client on an authorised HTTP client.
func New(ctx context.Context, httpClient *http.Client, timeout time.Duration) (*Client, error) {
	svc, err := tasks.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks service: %w", err)
	}
	return &Client{svc: svc, timeout: orDefault(timeout)}, nil
}

// NewWithEndpoint creates a client against a custom endpoint (for testing).
// A zero timeout means APITimeout.
func NewWithEndpoint(ctx context.Context, httpClient *http.Client, endpoint string, timeout time.Duration) (*Client, error) {
	svc, err := tasks.NewService(ctx, option.WithHTTPClient(httpClient), option.WithEndpoint(endpoint))
	if err != nil {
		return nil, err
	}
	return &Client{svc: svc, timeout: orDefault(timeout)}, nil
}

func orDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return APITimeout
	}
	return d
}

// ListLists returns all task lists in API order.
func (c *Client) ListLists(ctx context.Context) ([]service.RemoteList, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// The list endpoint does not flag the default list; resolve its real id first.
	defaultList, err := c.svc.Tasklists.Get(DefaultListID).Context(ctx).Do()
	if err != nil {
		return nil, wrapError(err)
	}

	var result []service.RemoteList
	err = c.svc.Tasklists.List().MaxResults(100).Pages(ctx, func(resp *tasks.TaskLists) error {
		for _, list := range resp.Items {
			result = append(result, service.RemoteList{
				ID:        list.Id,
				Name:      list.Title,
				IsDefault: list.Id == defaultList.Id,
			})
		}
		return nil
	})
	if err != nil {
		return nil, wrapError(err)
	}
	return result, nil
}

// CreateList creates a new task list.
func (c *Client) CreateList(ctx context.Context, name string) (service.RemoteList, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	list, err := c.svc.Tasklists.Insert(&tasks.TaskList{Title: name}).Context(ctx).Do()
	if err != nil {
		return service.RemoteList{}, wrapError(err)
	}
	return service.RemoteList{ID: list.Id, Name: list.Title}, nil
}

// ListTasks returns every task in a list, completed and hidden ones included.
// The timeout applies to each page request.
func (c *Client) ListTasks(ctx context.Context, listID string, pageSize int) ([]service.RemoteTask, error) {
	var result []service.RemoteTask
	pageToken := ""
	for {
		resp, err := c.tasksPage(ctx, listID, pageSize, pageToken)
		if err != nil {
			return nil, wrapError(err)
		}
		for _, task := range resp.Items {
			result = append(result, fromAPI(task))
		}
		if resp.NextPageToken == "" {
			return result, nil
		}
		pageToken = resp.NextPageToken
	}
}

func (c *Client) tasksPage(ctx context.Context, listID string, pageSize int, pageToken string) (*tasks.Tasks, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	call := c.svc.Tasks.List(listID).
		ShowCompleted(true).
		ShowHidden(true).
		ShowDeleted(false)
	if pageSize > 0 {
		call = call.MaxResults(int64(pageSize))
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	return call.Context(ctx).Do()
}

// CreateTask creates a task and returns its id.
func (c *Client) CreateTask(ctx context.Context, listID string, task service.RemoteTask) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	created, err := c.svc.Tasks.Insert(listID, toAPI(task)).Context(ctx).Do()
	if err != nil {
		return "", wrapError(err)
	}
	return created.Id, nil
}

// UpdateTask patches the writable fields of a task. Cleared notes and due dates are sent explicitly.
func (c *Client) UpdateTask(ctx context.Context, listID, taskID string, task service.RemoteTask) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	patch := toAPI(task)
	patch.ForceSendFields = []string{"Notes", "Title"}
	if patch.Due == "" {
		patch.NullFields = []string{"Due"}
	}

	_, err := c.svc.Tasks.Patch(listID, taskID, patch).Context(ctx).Do()
	return wrapError(err)
}

// DeleteTask deletes a task.
func (c *Client) DeleteTask(ctx context.Context, listID, taskID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return wrapError(c.svc.Tasks.Delete(listID, taskID).Context(ctx).Do())
}

// toAPI converts a remote task to the Google shape.
// Google has no importance, and its due field keeps only the date.
func toAPI(t service.RemoteTask) *tasks.Task {
	out := &tasks.Task{
		Title:  t.Title,
		Notes:  t.Body,
		Status: statusNeedsAction,
	}
	if t.Status == service.StatusCompleted {
		out.Status = statusCompleted
	}
	if t.Due != nil && len(t.Due.DateTime) >= len("2006-01-02") {
		if d, err := time.Parse("2006-01-02", t.Due.DateTime[:10]); err == nil {
			out.Due = d.Format(time.RFC3339)
		}
	}
	return out
}

func fromAPI(t *tasks.Task) service.RemoteTask {
	out := service.RemoteTask{
		ID:         t.Id,
		Title:      t.Title,
		Body:       t.Notes,
		Importance: service.ImportanceNormal,
		Status:     service.StatusNotStarted,
	}
	if t.Status == statusCompleted {
		out.Status = service.StatusCompleted
	}
	if due, err := time.Parse(time.RFC3339, t.Due); err == nil {
		out.Due = &service.DateTimeZone{DateTime: due.UTC().Format(wallClock), TimeZone: "UTC"}
	}
	if t.Completed != nil {
		if done, err := time.Parse(time.RFC3339, *t.Completed); err == nil {
			out.CompletedAt = &service.DateTimeZone{DateTime: done.UTC().Format(wallClock), TimeZone: "UTC"}
		}
	}
	if updated, err := time.Parse(time.RFC3339, t.Updated); err == nil {
		out.LastModified = updated
	}
	return out
}

// wrapError wraps API errors with user-friendly messages.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "context deadline exceeded") {
		return service.ErrTimeout
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return service.ErrAuth
		case http.StatusNotFound:
			return service.ErrNotFound
		}
	}
	return err
}
