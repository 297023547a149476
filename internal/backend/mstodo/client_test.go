package mstodo_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"tasksync/internal/backend/mstodo"
	"tasksync/internal/service"
)

type graph struct {
	mu       sync.Mutex
	url      string
	bodies   []string
	requests []string
	prefer   []string
	failures map[string]int // path → remaining 503s
	status   int
}

func (g *graph) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.requests = append(g.requests, r.Method+" "+r.URL.RequestURI())
	g.prefer = append(g.prefer, r.Header.Get("Prefer"))
	data, _ := io.ReadAll(r.Body)
	if len(data) > 0 {
		g.bodies = append(g.bodies, string(data))
	}

	w.Header().Set("Content-Type", "application/json")
	if g.status != 0 {
		w.WriteHeader(g.status)
		fmt.Fprint(w, `{"error":{"code":"InvalidAuthenticationToken","message":"Access token has expired."}}`)
		return
	}
	if g.failures[r.URL.Path] > 0 {
		g.failures[r.URL.Path]--
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/me/todo/lists":
		if r.URL.Query().Get("page") == "" {
			fmt.Fprintf(w, `{"value":[{"id":"AAA","displayName":"Tasks","wellknownListName":"defaultList"}],"@odata.nextLink":"%s/me/todo/lists?page=2"}`, g.url)
			return
		}
		fmt.Fprint(w, `{"value":[{"id":"BBB","displayName":"Groceries","wellknownListName":"none"}]}`)

	case r.Method == http.MethodPost && r.URL.Path == "/me/todo/lists":
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"CCC","displayName":"Work"}`)

	case r.Method == http.MethodGet && r.URL.Path == "/me/todo/lists/AAA/tasks":
		if r.URL.Query().Get("$skip") == "" {
			fmt.Fprintf(w, `{"value":[{"id":"t1","title":"Buy milk","importance":"high","status":"notStarted",
				"body":{"content":"2%%","contentType":"text"},
				"dueDateTime":{"dateTime":"2026-07-01T00:00:00.0000000","timeZone":"UTC"},
				"lastModifiedDateTime":"2026-06-30T10:00:00.1234567Z"}],
				"@odata.nextLink":"%s/me/todo/lists/AAA/tasks?$top=2&$skip=2"}`, g.url)
			return
		}
		fmt.Fprint(w, `{"value":[{"id":"t2","title":"Call mom","importance":"normal","status":"completed",
			"completedDateTime":{"dateTime":"2026-06-29T00:00:00.0000000","timeZone":"UTC"}}]}`)

	case r.Method == http.MethodPost && r.URL.Path == "/me/todo/lists/AAA/tasks":
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"t9","title":"new"}`)

	case r.Method == http.MethodPatch && r.URL.Path == "/me/todo/lists/AAA/tasks/t1":
		fmt.Fprint(w, `{"id":"t1"}`)

	case r.Method == http.MethodDelete && r.URL.Path == "/me/todo/lists/AAA/tasks/t1":
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":"ErrorItemNotFound","message":"The specified object was not found in the store."}}`)
	}
}

func newClient(t *testing.T) (*mstodo.Client, *graph) {
	t.Helper()
	g := &graph{failures: map[string]int{}}
	server := httptest.NewServer(g)
	t.Cleanup(server.Close)
	g.url = server.URL
	return mstodo.NewWithHTTPClient(server.Client(), server.URL), g
}

func TestListLists_FollowsNextLink(t *testing.T) {
	client, _ := newClient(t)

	lists, err := client.ListLists(context.Background())
	if err != nil {
		t.Fatalf("ListLists: %v", err)
	}
	if len(lists) != 2 {
		t.Fatalf("expected 2 lists, got %d", len(lists))
	}
	if !lists[0].IsDefault || lists[0].Name != "Tasks" {
		t.Errorf("expected default Tasks list first, got %+v", lists[0])
	}
	if lists[1].IsDefault || lists[1].ID != "BBB" {
		t.Errorf("unexpected second list: %+v", lists[1])
	}
}

func TestCreateList(t *testing.T) {
	client, g := newClient(t)

	list, err := client.CreateList(context.Background(), "Work")
	if err != nil {
		t.Fatalf("CreateList: %v", err)
	}
	if list.ID != "CCC" || list.Name != "Work" {
		t.Errorf("unexpected list: %+v", list)
	}
	if len(g.bodies) != 1 || !strings.Contains(g.bodies[0], `"displayName":"Work"`) {
		t.Errorf("unexpected request body: %v", g.bodies)
	}
}

func TestListTasks_PagesAndTranslates(t *testing.T) {
	client, g := newClient(t)

	got, err := client.ListTasks(context.Background(), "AAA", 2)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(got))
	}
	if g.requests[0] != "GET /me/todo/lists/AAA/tasks?%24top=2" {
		t.Errorf("unexpected first request: %s", g.requests[0])
	}

	first := got[0]
	if first.Title != "Buy milk" || first.Body != "2%" || first.Importance != service.ImportanceHigh {
		t.Errorf("unexpected task: %+v", first)
	}
	if first.Due == nil || first.Due.DateTime != "2026-07-01T00:00:00.0000000" || first.Due.TimeZone != "UTC" {
		t.Errorf("unexpected due: %+v", first.Due)
	}
	want := time.Date(2026, 6, 30, 10, 0, 0, 123456700, time.UTC)
	if !first.LastModified.Equal(want) {
		t.Errorf("expected last modified %v, got %v", want, first.LastModified)
	}

	second := got[1]
	if second.Status != service.StatusCompleted || second.CompletedAt == nil {
		t.Errorf("expected completed task, got %+v", second)
	}
}

func TestCreateTask_SendsAllFields(t *testing.T) {
	client, g := newClient(t)

	id, err := client.CreateTask(context.Background(), "AAA", service.RemoteTask{
		Title:      "Dentist",
		Body:       "bring card",
		Importance: service.ImportanceLow,
		Status:     service.StatusNotStarted,
		Due:        &service.DateTimeZone{DateTime: "2026-08-10T14:00:00.0000000", TimeZone: "Europe/Berlin"},
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if id != "t9" {
		t.Errorf("expected t9, got %q", id)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(g.bodies[0]), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if body["title"] != "Dentist" || body["importance"] != "low" || body["status"] != "notStarted" {
		t.Errorf("unexpected body: %v", body)
	}
	due, _ := body["dueDateTime"].(map[string]any)
	if due["dateTime"] != "2026-08-10T14:00:00.0000000" || due["timeZone"] != "Europe/Berlin" {
		t.Errorf("unexpected due: %v", due)
	}
	content, _ := body["body"].(map[string]any)
	if content["content"] != "bring card" || content["contentType"] != "text" {
		t.Errorf("unexpected body content: %v", content)
	}
}

func TestUpdateTask_ClearsDue(t *testing.T) {
	client, g := newClient(t)

	if err := client.UpdateTask(context.Background(), "AAA", "t1", service.RemoteTask{Title: "Buy milk"}); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if !strings.Contains(g.bodies[0], `"dueDateTime":null`) {
		t.Errorf("expected due cleared, got %s", g.bodies[0])
	}
	if !strings.Contains(g.bodies[0], `"importance":"normal"`) {
		t.Errorf("expected default importance, got %s", g.bodies[0])
	}
}

func TestDeleteTask(t *testing.T) {
	client, _ := newClient(t)

	if err := client.DeleteTask(context.Background(), "AAA", "t1"); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if err := client.DeleteTask(context.Background(), "AAA", "gone"); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRetriesServerErrorsOnReads(t *testing.T) {
	client, g := newClient(t)
	g.failures["/me/todo/lists/AAA/tasks"] = 1

	got, err := client.ListTasks(context.Background(), "AAA", 0)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 tasks after retry, got %d", len(got))
	}
}

func TestDoesNotRetryCreateOnServerError(t *testing.T) {
	client, g := newClient(t)
	g.failures["/me/todo/lists/AAA/tasks"] = 1

	if _, err := client.CreateTask(context.Background(), "AAA", service.RemoteTask{Title: "x"}); err == nil {
		t.Fatal("expected error")
	}
	if len(g.requests) != 1 {
		t.Errorf("expected a single POST, got %v", g.requests)
	}
}

func TestAuthErrorIsFriendly(t *testing.T) {
	client, g := newClient(t)
	g.status = http.StatusUnauthorized

	if _, err := client.ListLists(context.Background()); !errors.Is(err, service.ErrAuth) {
		t.Errorf("expected ErrAuth, got %v", err)
	}
}

func TestTimeout(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	client := mstodo.NewWithHTTPClient(server.Client(), server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := client.ListLists(ctx); !errors.Is(err, service.ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestPreferHeaderCarriesTimeZone(t *testing.T) {
	client, g := newClient(t)
	client.SetTimeZone("Europe/Berlin")

	if _, err := client.ListTasks(context.Background(), "AAA", 2); err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if _, err := client.CreateTask(context.Background(), "AAA", service.RemoteTask{Title: "new"}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	if len(g.prefer) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(g.prefer))
	}
	for i, got := range g.prefer {
		if got != `outlook.timezone="Europe/Berlin"` {
			t.Errorf("request %d: unexpected Prefer header %q", i, got)
		}
	}
}

func TestNoPreferHeaderWithoutTimeZone(t *testing.T) {
	client, g := newClient(t)

	if _, err := client.ListLists(context.Background()); err != nil {
		t.Fatalf("ListLists: %v", err)
	}
	for _, got := range g.prefer {
		if got != "" {
			t.Errorf("expected no Prefer header, got %q", got)
		}
	}
}

func TestListTasks_TimeoutIsPerPage(t *testing.T) {
	const pages = 4
	var url string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		n, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if n+1 < pages {
			fmt.Fprintf(w, `{"value":[{"id":"t%d","title":"task"}],"@odata.nextLink":"%s/me/todo/lists/AAA/tasks?page=%d"}`, n, url, n+1)
			return
		}
		fmt.Fprintf(w, `{"value":[{"id":"t%d","title":"task"}]}`, n)
	}))
	defer server.Close()
	url = server.URL

	// Each page fits the timeout; the whole listing does not.
	client := mstodo.NewWithHTTPClient(server.Client(), server.URL)
	client.SetTimeout(150 * time.Millisecond)

	got, err := client.ListTasks(context.Background(), "AAA", 1)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(got) != pages {
		t.Errorf("expected %d tasks, got %d", pages, len(got))
	}
}
