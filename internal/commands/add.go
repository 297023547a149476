package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"tasksync/internal/exitcode"
	"tasksync/internal/service"
)

func init() {
	Register(&AddCmd{})
}

// AddCmd creates a local task. It reaches the remote service on the next sync.
type AddCmd struct {
	priority string
	due      string
	at       string
	notes    string
}

func (c *AddCmd) Name() string      { return "add" }
func (c *AddCmd) Aliases() []string { return []string{"create"} }
func (c *AddCmd) Synopsis() string  { return "Create a task" }
func (c *AddCmd) Usage() string {
	return "tasksync add [--priority <p>] [--due <YYYY-MM-DD>] [--at <HH:MM>] [--notes <text>] <title...>"
}
func (c *AddCmd) NeedsAuth() bool  { return false }
func (c *AddCmd) NeedsStore() bool { return true }

func (c *AddCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.priority, "priority", "", "")
	fs.StringVar(&c.priority, "p", "", "")
	fs.StringVar(&c.due, "due", "", "")
	fs.StringVar(&c.at, "at", "", "")
	fs.StringVar(&c.notes, "notes", "", "")
	fs.StringVar(&c.notes, "n", "", "")
}

func (c *AddCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	title := strings.TrimSpace(strings.Join(args, " "))
	if title == "" {
		fmt.Fprintln(errOut, "error: title required")
		return exitcode.UserError
	}

	priority, err := service.ParsePriority(c.priority)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	_, err = env.Local.Create(ctx, service.TaskFields{
		ListID:   env.Config.Settings.LocalList,
		Title:    title,
		Notes:    c.notes,
		Priority: priority,
		DueDate:  c.due,
		DueTime:  c.at,
	})
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	if !env.Config.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
