// Package mstodo implements service.Gateway on Microsoft To Do through Microsoft Graph.
package mstodo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"tasksync/internal/service"
)

const (
	// BaseURL is the Graph v1.0 endpoint.
	BaseURL = "https://graph.microsoft.com/v1.0"

	// APITimeout is the default timeout for one gateway call, retries included.
	APITimeout = 10 * time.Second

	maxRetries   = 3
	initialDelay = 500 * time.Millisecond

	wellknownDefault = "defaultList"
)

// Client implements service.Gateway for Microsoft To Do.
type Client struct {
	baseURL  string
	http     *http.Client
	timeout  time.Duration
	timeZone string
}

// New creates a client on an authorised HTTP client (see auth.TokenFile.HTTPClient).
// timeZone is the IANA zone tasks are written in; Graph reports dates back in it.
func New(httpClient *http.Client, timeout time.Duration, timeZone string) *Client {
	c := NewWithHTTPClient(httpClient, BaseURL)
	c.SetTimeout(timeout)
	c.SetTimeZone(timeZone)
	return c
}

// SetTimeout sets the timeout of one call. For listings it applies per page.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

// SetTimeZone sets the zone sent in the Prefer header. Without it Graph returns
// dueDateTime in UTC, which moves dates for zones east of UTC to the previous day.
func (c *Client) SetTimeZone(name string) {
	c.timeZone = name
}

// NewWithHTTPClient creates a client against a custom base URL (for testing).
func NewWithHTTPClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{baseURL: baseURL, http: httpClient, timeout: APITimeout}
}

type todoList struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	WellknownListName string `json:"wellknownListName,omitempty"`
}

type itemBody struct {
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
}

type dateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type todoTask struct {
	ID                   string            `json:"id,omitempty"`
	Title                string            `json:"title"`
	Body                 *itemBody         `json:"body,omitempty"`
	Importance           string            `json:"importance,omitempty"`
	Status               string            `json:"status,omitempty"`
	DueDateTime          *dateTimeTimeZone `json:"dueDateTime,omitempty"`
	CompletedDateTime    *dateTimeTimeZone `json:"completedDateTime,omitempty"`
	LastModifiedDateTime string            `json:"lastModifiedDateTime,omitempty"`
}

// taskWrite is the create/update payload. A nil due date is sent as null so updates can clear it.
type taskWrite struct {
	Title       string            `json:"title"`
	Body        itemBody          `json:"body"`
	Importance  string            `json:"importance"`
	Status      string            `json:"status"`
	DueDateTime *dateTimeTimeZone `json:"dueDateTime"`
}

type page[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ListLists returns all task lists in API order.
func (c *Client) ListLists(ctx context.Context) ([]service.RemoteList, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var result []service.RemoteList
	next := c.baseURL + "/me/todo/lists"
	for next != "" {
		var resp page[todoList]
		if err := c.do(ctx, http.MethodGet, next, nil, &resp); err != nil {
			return nil, wrapError(err)
		}
		for _, l := range resp.Value {
			result = append(result, service.RemoteList{
				ID:        l.ID,
				Name:      l.DisplayName,
				IsDefault: l.WellknownListName == wellknownDefault,
			})
		}
		next = resp.NextLink
	}
	return result, nil
}

// CreateList creates a new task list.
func (c *Client) CreateList(ctx context.Context, name string) (service.RemoteList, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var created todoList
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/me/todo/lists", todoList{DisplayName: name}, &created); err != nil {
		return service.RemoteList{}, wrapError(err)
	}
	return service.RemoteList{ID: created.ID, Name: created.DisplayName}, nil
}

// ListTasks returns every task in a list, following @odata.nextLink until exhausted.
// The timeout applies to each page, not to the whole listing.
func (c *Client) ListTasks(ctx context.Context, listID string, pageSize int) ([]service.RemoteTask, error) {
	q := url.Values{}
	if pageSize > 0 {
		q.Set("$top", strconv.Itoa(pageSize))
	}
	next := c.tasksURL(listID)
	if len(q) > 0 {
		next += "?" + q.Encode()
	}

	var result []service.RemoteTask
	for next != "" {
		resp, err := c.tasksPage(ctx, next)
		if err != nil {
			return nil, wrapError(err)
		}
		for _, t := range resp.Value {
			result = append(result, fromGraph(t))
		}
		next = resp.NextLink
	}
	return result, nil
}

func (c *Client) tasksPage(ctx context.Context, pageURL string) (page[todoTask], error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var resp page[todoTask]
	err := c.do(ctx, http.MethodGet, pageURL, nil, &resp)
	return resp, err
}

// CreateTask creates a task and returns its id.
func (c *Client) CreateTask(ctx context.Context, listID string, task service.RemoteTask) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var created todoTask
	if err := c.do(ctx, http.MethodPost, c.tasksURL(listID), toGraph(task), &created); err != nil {
		return "", wrapError(err)
	}
	if created.ID == "" {
		return "", errors.New("graph returned a task without an id")
	}
	return created.ID, nil
}

// UpdateTask overwrites the writable fields of a task.
func (c *Client) UpdateTask(ctx context.Context, listID, taskID string, task service.RemoteTask) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return wrapError(c.do(ctx, http.MethodPatch, c.taskURL(listID, taskID), toGraph(task), nil))
}

// DeleteTask deletes a task.
func (c *Client) DeleteTask(ctx context.Context, listID, taskID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return wrapError(c.do(ctx, http.MethodDelete, c.taskURL(listID, taskID), nil, nil))
}

func (c *Client) tasksURL(listID string) string {
	return c.baseURL + "/me/todo/lists/" + url.PathEscape(listID) + "/tasks"
}

func (c *Client) taskURL(listID, taskID string) string {
	return c.tasksURL(listID) + "/" + url.PathEscape(taskID)
}

// statusError is a non-2xx Graph response.
type statusError struct {
	status  int
	code    string
	message string
}

func (e *statusError) Error() string {
	if e.message != "" {
		return fmt.Sprintf("graph error (%d): %s", e.status, e.message)
	}
	return fmt.Sprintf("graph error (%d)", e.status)
}

// do sends one request, retrying throttling and server errors with exponential backoff.
// POST is only retried on 429, where Graph guarantees nothing was created.
func (c *Client) do(ctx context.Context, method, rawURL string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := initialDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.timeZone != "" {
			req.Header.Set("Prefer", fmt.Sprintf("outlook.timezone=%q", c.timeZone))
		}
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			se := &statusError{status: resp.StatusCode}
			var ge graphError
			if json.Unmarshal(respBody, &ge) == nil {
				se.code, se.message = ge.Error.Code, ge.Error.Message
			}
			lastErr = se

			if resp.StatusCode == http.StatusTooManyRequests ||
				(resp.StatusCode >= 500 && method != http.MethodPost) {
				continue
			}
			return lastErr
		}

		if out == nil || len(respBody) == 0 {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}
	return lastErr
}

func toGraph(t service.RemoteTask) taskWrite {
	w := taskWrite{
		Title:      t.Title,
		Body:       itemBody{Content: t.Body, ContentType: "text"},
		Importance: string(t.Importance),
		Status:     string(t.Status),
	}
	if w.Importance == "" {
		w.Importance = string(service.ImportanceNormal)
	}
	if w.Status == "" {
		w.Status = string(service.StatusNotStarted)
	}
	if t.Due != nil {
		w.DueDateTime = &dateTimeTimeZone{DateTime: t.Due.DateTime, TimeZone: t.Due.TimeZone}
	}
	return w
}

func fromGraph(t todoTask) service.RemoteTask {
	out := service.RemoteTask{
		ID:         t.ID,
		Title:      t.Title,
		Importance: service.Importance(t.Importance),
		Status:     service.Status(t.Status),
	}
	if t.Body != nil {
		// Graph may return html bodies for tasks edited in Outlook; they come through as-is.
		out.Body = t.Body.Content
	}
	if t.DueDateTime != nil {
		out.Due = &service.DateTimeZone{DateTime: t.DueDateTime.DateTime, TimeZone: t.DueDateTime.TimeZone}
	}
	if t.CompletedDateTime != nil {
		out.CompletedAt = &service.DateTimeZone{DateTime: t.CompletedDateTime.DateTime, TimeZone: t.CompletedDateTime.TimeZone}
	}
	if ts, err := time.Parse(time.RFC3339Nano, t.LastModifiedDateTime); err == nil {
		out.LastModified = ts
	}
	return out
}

// wrapError wraps API errors with user-friendly messages.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return service.ErrTimeout
	}

	var se *statusError
	if errors.As(err, &se) {
		switch se.status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return service.ErrAuth
		case http.StatusNotFound:
			return service.ErrNotFound
		}
	}
	return err
}
