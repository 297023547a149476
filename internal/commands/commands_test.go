package commands_test

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"tasksync/internal/commands"
	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/mapping"
	"tasksync/internal/service"
	"tasksync/internal/testutil"
)

type fixture struct {
	cfg    *config.Config
	local  *testutil.FakeLocalStore
	remote *testutil.FakeGateway
	creds  *testutil.FakeCredentials
	state  *testutil.FakeMappingStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg, err := config.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cfg.Settings.Timezone = "UTC"
	return &fixture{
		cfg:    cfg,
		local:  testutil.NewFakeLocalStore(),
		remote: testutil.NewFakeGateway(),
		creds:  testutil.SignedIn(),
		state:  testutil.NewFakeMappingStore(),
	}
}

// run parses argv through the command's flags, then runs it against the fakes.
func (f *fixture) run(t *testing.T, cmd commands.Command, argv ...string) (stdout, stderr string, code int) {
	t.Helper()

	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cmd.RegisterFlags(fs)
	if err := fs.Parse(argv); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	env := &commands.Env{
		Config:  f.cfg,
		Local:   f.local,
		Mapping: f.state,
		Remote:  f.remote,
		Creds:   f.creds,
	}

	var outBuf, errBuf bytes.Buffer
	code = cmd.Run(context.Background(), env, fs.Args(), &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

func TestVersionCommand(t *testing.T) {
	f := newFixture(t)
	stdout, stderr, code := f.run(t, &commands.VersionCmd{})

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "tasksync 0.1.0\n" {
		t.Errorf("expected version output, got %q", stdout)
	}
}

func TestHelpCommand(t *testing.T) {
	f := newFixture(t)
	stdout, _, code := f.run(t, &commands.HelpCmd{})

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	for _, want := range []string{"Usage:", "tasksync sync", "tasksync add", "Common flags:"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("help output should contain %q", want)
		}
	}
}

func TestListCommand_Empty(t *testing.T) {
	f := newFixture(t)
	stdout, _, code := f.run(t, &commands.ListCmd{})

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "no tasks found\n" {
		t.Errorf("expected no tasks message, got %q", stdout)
	}

	f.cfg.Quiet = true
	stdout, _, _ = f.run(t, &commands.ListCmd{})
	if stdout != "" {
		t.Errorf("expected nothing in quiet mode, got %q", stdout)
	}
}

func TestListCommand_Golden(t *testing.T) {
	f := newFixture(t)
	f.local.AddTask(service.Task{ID: "a", Title: "Buy milk"})
	f.local.AddTask(service.Task{ID: "b", Title: "Old chore", Completed: true})
	f.local.AddTask(service.Task{ID: "c", Title: "Pay rent", Priority: service.PriorityHigh, DueDate: "2026-05-01"})
	f.local.AddTask(service.Task{ID: "d", Title: "", DueDate: "2026-05-02", DueTime: "09:30"})

	stdout, _, code := f.run(t, &commands.ListCmd{})
	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d", exitcode.Success, code)
	}
	testutil.GoldenString(t, "list_open", stdout)

	stdout, _, _ = f.run(t, &commands.ListCmd{}, "--all")
	testutil.GoldenString(t, "list_all", stdout)
}

func TestListCommand_StoreError(t *testing.T) {
	f := newFixture(t)
	f.local.ListAllErr = errors.New("disk on fire")

	_, stderr, code := f.run(t, &commands.ListCmd{})
	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: disk on fire\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestAddCommand(t *testing.T) {
	f := newFixture(t)
	stdout, stderr, code := f.run(t, &commands.AddCmd{}, "--priority", "high", "--due", "2026-06-01", "--at", "10:00", "--notes", "ask about x-ray", "Dentist", "appointment")

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (%s)", exitcode.Success, code, stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("expected ok, got %q", stdout)
	}

	tasks := f.local.All()
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	got := tasks[0]
	if got.Title != "Dentist appointment" || got.Priority != service.PriorityHigh || got.Notes != "ask about x-ray" {
		t.Errorf("unexpected task: %+v", got)
	}
	if got.DueDate != "2026-06-01" || got.DueTime != "10:00" || got.ListID != "inbox" {
		t.Errorf("unexpected due/list: %+v", got)
	}
}

func TestAddCommand_Quiet(t *testing.T) {
	f := newFixture(t)
	f.cfg.Quiet = true
	stdout, _, code := f.run(t, &commands.AddCmd{}, "Buy milk")

	if code != exitcode.Success || stdout != "" {
		t.Errorf("expected silent success, got %d %q", code, stdout)
	}
}

func TestAddCommand_TitleRequired(t *testing.T) {
	f := newFixture(t)
	_, stderr, code := f.run(t, &commands.AddCmd{}, "   ")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: title required\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestAddCommand_BadPriority(t *testing.T) {
	f := newFixture(t)
	_, stderr, code := f.run(t, &commands.AddCmd{}, "-p", "urgent", "x")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: invalid priority: urgent\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if len(f.local.All()) != 0 {
		t.Error("expected no task created")
	}
}

func TestDoneCommand(t *testing.T) {
	f := newFixture(t)
	f.local.AddTask(service.Task{ID: "a", Title: "first"})
	f.local.AddTask(service.Task{ID: "b", Title: "already", Completed: true})
	f.local.AddTask(service.Task{ID: "c", Title: "second"})

	// Completed tasks are not numbered, so 2 is "second".
	stdout, _, code := f.run(t, &commands.DoneCmd{}, "2")
	if code != exitcode.Success || stdout != "ok\n" {
		t.Fatalf("expected ok, got %d %q", code, stdout)
	}

	for _, task := range f.local.All() {
		if task.ID == "c" && !task.Completed {
			t.Error("expected second to be completed")
		}
		if task.ID == "a" && task.Completed {
			t.Error("expected first to stay open")
		}
	}
}

func TestDoneCommand_OutOfRange(t *testing.T) {
	f := newFixture(t)
	f.local.AddTask(service.Task{ID: "a", Title: "only"})

	_, stderr, code := f.run(t, &commands.DoneCmd{}, "2")
	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: task number out of range: 2\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestDoneCommand_RefRequired(t *testing.T) {
	f := newFixture(t)
	_, stderr, code := f.run(t, &commands.DoneCmd{})

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: task reference required\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestRmCommand(t *testing.T) {
	f := newFixture(t)
	f.local.AddTask(service.Task{ID: "a", Title: "keep"})
	f.local.AddTask(service.Task{ID: "b", Title: "drop"})

	stdout, _, code := f.run(t, &commands.RmCmd{}, "2")
	if code != exitcode.Success || stdout != "ok\n" {
		t.Fatalf("expected ok, got %d %q", code, stdout)
	}
	tasks := f.local.All()
	if len(tasks) != 1 || tasks[0].ID != "a" {
		t.Errorf("expected only keep to remain, got %+v", tasks)
	}
}

func TestRmCommand_DeleteError(t *testing.T) {
	f := newFixture(t)
	f.local.AddTask(service.Task{ID: "a", Title: "x"})
	f.local.DeleteErr = errors.New("locked")

	_, stderr, code := f.run(t, &commands.RmCmd{}, "1")
	if code != exitcode.UserError || stderr != "error: locked\n" {
		t.Errorf("unexpected result %d %q", code, stderr)
	}
}

func TestListsCommand(t *testing.T) {
	f := newFixture(t)
	f.remote.AddList("shopping", "Shopping")
	f.remote.AddList("work", "Work")

	stdout, stderr, code := f.run(t, &commands.ListsCmd{})
	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if want := "Tasks [default]\nShopping\nWork\n"; stdout != want {
		t.Errorf("expected %q, got %q", want, stdout)
	}
}

func TestListsCommand_BackendError(t *testing.T) {
	f := newFixture(t)
	f.remote.ListListsErr = errors.New("connection refused")

	_, stderr, code := f.run(t, &commands.ListsCmd{})
	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	if stderr != "error: backend error: connection refused\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestListsCommand_AuthError(t *testing.T) {
	f := newFixture(t)
	f.remote.ListListsErr = service.ErrAuth

	_, _, code := f.run(t, &commands.ListsCmd{})
	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
}

func TestCreateListCommand(t *testing.T) {
	f := newFixture(t)
	stdout, _, code := f.run(t, &commands.CreateListCmd{}, "Groceries")

	if code != exitcode.Success || stdout != "ok\n" {
		t.Fatalf("expected ok, got %d %q", code, stdout)
	}
	lists, _ := f.remote.ListLists(context.Background())
	if len(lists) != 2 || lists[1].Name != "Groceries" {
		t.Errorf("expected Groceries created, got %+v", lists)
	}
}

func TestCreateListCommand_Duplicate(t *testing.T) {
	f := newFixture(t)
	_, stderr, code := f.run(t, &commands.CreateListCmd{}, " tasks ")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: list already exists: tasks\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestCreateListCommand_NameRequired(t *testing.T) {
	f := newFixture(t)
	_, stderr, code := f.run(t, &commands.CreateListCmd{})

	if code != exitcode.UserError || stderr != "error: list name required\n" {
		t.Errorf("unexpected result %d %q", code, stderr)
	}
}

func TestSyncCommand(t *testing.T) {
	f := newFixture(t)
	f.local.AddTask(service.Task{ID: "L1", ListID: "inbox", Title: "local only"})
	f.remote.AddTask("list-default", service.RemoteTask{ID: "R1", Title: "remote only", Importance: service.ImportanceNormal})

	stdout, stderr, code := f.run(t, &commands.SyncCmd{})
	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (%s)", exitcode.Success, code, stderr)
	}
	if stdout != "pulled 1, pushed 1\n" {
		t.Errorf("unexpected summary %q", stdout)
	}

	st, _ := f.state.GetMapping()
	if len(st.Tasks) != 2 || st.Lists["inbox"] != "list-default" {
		t.Errorf("unexpected mapping: %+v", st)
	}

	// Second run is a no-op.
	stdout, _, _ = f.run(t, &commands.SyncCmd{})
	if stdout != "pulled 0, pushed 0\n" {
		t.Errorf("expected idempotent second pass, got %q", stdout)
	}
}

func TestSyncCommand_ItemErrorsStillSucceed(t *testing.T) {
	f := newFixture(t)
	f.local.AddTask(service.Task{ID: "L1", ListID: "inbox", Title: "ok"})
	f.local.AddTask(service.Task{ID: "L2", ListID: "inbox", Title: "bad"})
	f.remote.CreateTaskErr["bad"] = errors.New("quota")

	stdout, stderr, code := f.run(t, &commands.SyncCmd{})
	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "pulled 0, pushed 1\n" {
		t.Errorf("unexpected summary %q", stdout)
	}
	if stderr != "error: create remote task \"bad\": quota\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestSyncCommand_NotSignedIn(t *testing.T) {
	f := newFixture(t)
	f.creds.SignedIn = false

	_, stderr, code := f.run(t, &commands.SyncCmd{})
	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if stderr != "error: not signed in\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestSyncCommand_CommitFailure(t *testing.T) {
	f := newFixture(t)
	f.local.AddTask(service.Task{ID: "L1", ListID: "inbox", Title: "x"})
	f.state.SaveErr = errors.New("read-only file system")

	_, stderr, code := f.run(t, &commands.SyncCmd{})
	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	if !strings.Contains(stderr, "commit failed") {
		t.Errorf("expected commit failure, got %q", stderr)
	}
}

func TestSyncCommand_Locked(t *testing.T) {
	f := newFixture(t)
	if err := f.cfg.EnsureDir(); err != nil {
		t.Fatal(err)
	}
	held := flock.New(f.cfg.SyncLockPath())
	if ok, err := held.TryLock(); err != nil || !ok {
		t.Fatalf("could not take lock: %v", err)
	}
	defer held.Unlock()

	_, stderr, code := f.run(t, &commands.SyncCmd{})
	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: another sync is in progress\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if f.remote.ListTasksCalls != 0 {
		t.Error("expected no remote calls while locked")
	}
}

func TestSyncCommand_WritesMetrics(t *testing.T) {
	f := newFixture(t)
	f.cfg.Settings.MetricsFile = filepath.Join(t.TempDir(), "tasksync.prom")
	f.local.AddTask(service.Task{ID: "L1", ListID: "inbox", Title: "x"})

	if _, _, code := f.run(t, &commands.SyncCmd{}); code != exitcode.Success {
		t.Fatalf("expected success, got %d", code)
	}
	data, err := os.ReadFile(f.cfg.Settings.MetricsFile)
	if err != nil {
		t.Fatalf("expected metrics file: %v", err)
	}
	if !strings.Contains(string(data), "tasksync_last_pass_pushed 1") {
		t.Errorf("unexpected metrics:\n%s", data)
	}
}

func TestStatusCommand(t *testing.T) {
	f := newFixture(t)

	stdout, _, code := f.run(t, &commands.StatusCmd{})
	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if want := "last sync: never\nmapped tasks: 0\nmapped lists: 0\n"; stdout != want {
		t.Errorf("expected %q, got %q", want, stdout)
	}

	m := mapping.New()
	m.Tasks["L1"] = "R1"
	m.Tasks["L2"] = "R2"
	m.Lists["inbox"] = "list-default"
	if err := f.state.SaveMapping(m, time.Date(2026, 4, 1, 7, 0, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}

	stdout, _, _ = f.run(t, &commands.StatusCmd{})
	if want := "last sync: 2026-04-01T07:00:00Z\nmapped tasks: 2\nmapped lists: 1\n"; stdout != want {
		t.Errorf("expected %q, got %q", want, stdout)
	}
}

func TestResetCommand(t *testing.T) {
	f := newFixture(t)
	f.local.AddTask(service.Task{ID: "L1", ListID: "inbox", Title: "x"})
	if _, _, code := f.run(t, &commands.SyncCmd{}); code != exitcode.Success {
		t.Fatalf("sync failed: %d", code)
	}

	stdout, _, code := f.run(t, &commands.ResetCmd{})
	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "cleared 1 task mappings, 1 list mappings\n" {
		t.Errorf("unexpected output %q", stdout)
	}

	stdout, _, _ = f.run(t, &commands.StatusCmd{})
	if want := "last sync: never\nmapped tasks: 0\nmapped lists: 0\n"; stdout != want {
		t.Errorf("expected cleared status, got %q", stdout)
	}
	if len(f.local.All()) != 1 {
		t.Error("reset must not touch tasks")
	}
}

func TestResetCommand_ClearError(t *testing.T) {
	f := newFixture(t)
	f.state.ClearErr = errors.New("permission denied")

	_, stderr, code := f.run(t, &commands.ResetCmd{})
	if code != exitcode.UserError || !strings.Contains(stderr, "permission denied") {
		t.Errorf("unexpected result %d %q", code, stderr)
	}
}
