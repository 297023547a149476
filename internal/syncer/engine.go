// Package syncer reconciles the local task store with a remote task list.
//
// A pass pulls both sides in full, imports remote tasks that have no mapping,
// exports local tasks that have no mapping, pushes local state over mapped remote
// tasks, and finally persists the extended mapping in one write. Failures on
// individual tasks are collected and never abort the pass; only a missing
// credential, an unresolvable target list or a failed commit do.
package syncer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"tasksync/internal/mapping"
	"tasksync/internal/service"
)

const (
	// DefaultListName is the display name of the list created when the account has none.
	DefaultListName = "Tasks"

	// DefaultLocalListID is the local list key that imported tasks are filed under.
	DefaultLocalListID = "inbox"

	// DefaultPageSize is the number of remote tasks requested per call.
	DefaultPageSize = 100

	// ErrNotSignedIn is the sole error of a pass started without a credential.
	ErrNotSignedIn = "not signed in"
)

// Recorder observes finished passes.
type Recorder interface {
	ObservePass(res Result, at time.Time)
}

// Options configure an Engine. Local, Remote, Credentials and Mapping are required.
type Options struct {
	Local       service.LocalStore
	Remote      service.Gateway
	Credentials service.Credentials
	Mapping     mapping.Store

	Logger          *slog.Logger
	Location        *time.Location
	DefaultListName string
	LocalListID     string
	PageSize        int
	Now             func() time.Time
	Metrics         Recorder
}

// Engine runs sync passes. It does not guard against overlapping passes;
// callers run at most one RunSync at a time.
type Engine struct {
	local   service.LocalStore
	remote  service.Gateway
	creds   service.Credentials
	store   mapping.Store
	log     *slog.Logger
	loc     *time.Location
	list    string
	localID string
	page    int
	now     func() time.Time
	metrics Recorder
}

// New creates an Engine, filling unset options with defaults.
func New(opts Options) *Engine {
	e := &Engine{
		local:   opts.Local,
		remote:  opts.Remote,
		creds:   opts.Credentials,
		store:   opts.Mapping,
		log:     opts.Logger,
		loc:     opts.Location,
		list:    opts.DefaultListName,
		localID: opts.LocalListID,
		page:    opts.PageSize,
		now:     opts.Now,
		metrics: opts.Metrics,
	}
	if e.log == nil {
		e.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if e.loc == nil {
		e.loc = time.Local
	}
	if e.list == "" {
		e.list = DefaultListName
	}
	if e.localID == "" {
		e.localID = DefaultLocalListID
	}
	if e.page < 1 {
		e.page = DefaultPageSize
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Result is the outcome of one pass.
type Result struct {
	Pulled   int
	Pushed   int
	Errors   []string
	Success  bool
	Duration time.Duration
}

// Status is the user-facing summary of the persisted sync state.
type Status struct {
	LastSyncTime    time.Time
	HasSynced       bool
	MappedTaskCount int
	MappedListCount int
}

// pass holds the working state of one RunSync call.
type pass struct {
	res     Result
	mapping mapping.Mapping
	reverse map[string]string
}

func (p *pass) fail(format string, args ...any) {
	p.res.Errors = append(p.res.Errors, fmt.Sprintf(format, args...))
}

// stage records a new correspondence so later steps of the same pass see it.
func (p *pass) stage(localID, remoteID string) {
	p.mapping.Tasks[localID] = remoteID
	p.reverse[remoteID] = localID
}

// RunSync performs one sync pass.
func (e *Engine) RunSync(ctx context.Context) Result {
	start := e.now()
	res := e.run(ctx)
	res.Duration = e.now().Sub(start)

	e.log.Info("sync pass finished",
		"success", res.Success,
		"pulled", res.Pulled,
		"pushed", res.Pushed,
		"errors", len(res.Errors),
		"duration", res.Duration)
	if e.metrics != nil {
		e.metrics.ObservePass(res, e.now())
	}
	return res
}

func (e *Engine) run(ctx context.Context) Result {
	if !e.creds.IsSignedIn() {
		return Result{Errors: []string{ErrNotSignedIn}}
	}
	if token, err := e.creds.AccessToken(ctx); err != nil || token == "" {
		e.log.Debug("no access token", "error", err)
		return Result{Errors: []string{ErrNotSignedIn}}
	}

	current, err := e.store.GetMapping()
	if err != nil {
		return Result{Errors: []string{fmt.Sprintf("read sync state: %v", err)}}
	}

	list, err := e.resolveList(ctx)
	if err != nil {
		return Result{Errors: []string{err.Error()}}
	}
	e.log.Debug("target list resolved", "id", list.ID, "name", list.Name)

	p := &pass{mapping: current.Clone()}
	p.reverse = p.mapping.RemoteToLocal()

	remoteTasks, err := e.remote.ListTasks(ctx, list.ID, e.page)
	if err != nil {
		p.fail("pull remote tasks: %v", err)
		remoteTasks = nil
	}
	localTasks, err := e.local.ListAll(ctx)
	if err != nil {
		p.fail("pull local tasks: %v", err)
		localTasks = nil
	}
	e.log.Debug("pulled", "remote", len(remoteTasks), "local", len(localTasks))

	e.importRemote(ctx, p, remoteTasks)
	e.exportLocal(ctx, p, list.ID, localTasks, remoteTasks)

	p.mapping.Lists[e.localID] = list.ID
	if err := e.store.SaveMapping(p.mapping, e.now()); err != nil {
		p.fail("commit failed: %v (changes may already be live without a recorded mapping)", err)
		return p.res
	}

	p.res.Success = true
	return p.res
}

// resolveList picks the well-known default list, else the first list, else creates one.
func (e *Engine) resolveList(ctx context.Context) (service.RemoteList, error) {
	lists, err := e.remote.ListLists(ctx)
	if err != nil {
		return service.RemoteList{}, fmt.Errorf("list remote lists: %w", err)
	}
	for _, l := range lists {
		if l.IsDefault {
			return l, nil
		}
	}
	if len(lists) > 0 {
		return lists[0], nil
	}

	e.log.Info("no remote lists, creating one", "name", e.list)
	created, err := e.remote.CreateList(ctx, e.list)
	if err != nil {
		return service.RemoteList{}, fmt.Errorf("create remote list %q: %w", e.list, err)
	}
	return created, nil
}

// importRemote creates local copies of remote tasks nobody maps to yet.
func (e *Engine) importRemote(ctx context.Context, p *pass, remoteTasks []service.RemoteTask) {
	for _, rt := range remoteTasks {
		if _, ok := p.reverse[rt.ID]; ok {
			continue
		}

		created, err := e.local.Create(ctx, ToLocal(rt, e.localID))
		if err != nil {
			e.log.Debug("import failed", "remote_id", rt.ID, "error", err)
			p.fail("create local task %q: %v", rt.Title, err)
			continue
		}

		p.stage(created.ID, rt.ID)
		p.res.Pulled++
		e.log.Debug("imported", "remote_id", rt.ID, "local_id", created.ID)
	}
}

// exportLocal creates remote copies of unmapped local tasks and overwrites mapped ones.
func (e *Engine) exportLocal(ctx context.Context, p *pass, listID string, localTasks []service.Task, remoteTasks []service.RemoteTask) {
	present := make(map[string]bool, len(remoteTasks))
	for _, rt := range remoteTasks {
		present[rt.ID] = true
	}

	for _, lt := range localTasks {
		remoteID, mapped := p.mapping.Tasks[lt.ID]
		switch {
		case !mapped:
			id, err := e.remote.CreateTask(ctx, listID, ToRemote(lt, e.loc))
			if err != nil {
				e.log.Debug("export failed", "local_id", lt.ID, "error", err)
				p.fail("create remote task %q: %v", lt.Title, err)
				continue
			}
			if other, taken := p.reverse[id]; taken {
				p.fail("create remote task %q: service returned id %s already mapped to %s", lt.Title, id, other)
				continue
			}
			p.stage(lt.ID, id)
			p.res.Pushed++
			e.log.Debug("exported", "local_id", lt.ID, "remote_id", id)

		case present[remoteID]:
			if err := e.remote.UpdateTask(ctx, listID, remoteID, ToRemote(lt, e.loc)); err != nil {
				e.log.Debug("update failed", "local_id", lt.ID, "remote_id", remoteID, "error", err)
				p.fail("update remote task %q: %v", lt.Title, err)
			}

		default:
			// Gone remotely or missing from this pull; leave both sides alone.
			e.log.Debug("mapped remote task not found, skipping", "local_id", lt.ID, "remote_id", remoteID)
		}
	}
}

// GetSyncStatus reports the persisted cursor and mapping counts.
func (e *Engine) GetSyncStatus() (Status, error) {
	m, err := e.store.GetMapping()
	if err != nil {
		return Status{}, fmt.Errorf("read sync state: %w", err)
	}
	last, ok, err := e.store.GetLastSyncTime()
	if err != nil {
		return Status{}, fmt.Errorf("read sync state: %w", err)
	}
	return Status{
		LastSyncTime:    last,
		HasSynced:       ok,
		MappedTaskCount: len(m.Tasks),
		MappedListCount: len(m.Lists),
	}, nil
}

// ClearSyncData forgets every mapping and the cursor. Task data on both sides is kept.
func (e *Engine) ClearSyncData() (mapping.ClearStats, error) {
	stats, err := e.store.Clear()
	if err != nil {
		return mapping.ClearStats{}, fmt.Errorf("clear sync state: %w", err)
	}
	e.log.Info("sync data cleared", "tasks", stats.Tasks, "lists", stats.Lists)
	return stats, nil
}
