package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"tasksync/internal/exitcode"
	"tasksync/internal/output"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd prints open local tasks. It is also what `tasksync` with no args runs.
type ListCmd struct {
	all bool
}

func (c *ListCmd) Name() string      { return "list" }
func (c *ListCmd) Aliases() []string { return []string{"ls"} }
func (c *ListCmd) Synopsis() string  { return "List open tasks" }
func (c *ListCmd) Usage() string     { return "tasksync list [--all]" }
func (c *ListCmd) NeedsAuth() bool   { return false }
func (c *ListCmd) NeedsStore() bool  { return true }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.all, "all", false, "")
	fs.BoolVar(&c.all, "a", false, "")
}

func (c *ListCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	open, err := openTasks(ctx, env.Local)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
	for i, task := range open {
		output.FormatTask(out, i+1, task)
	}

	if c.all {
		all, err := env.Local.ListAll(ctx)
		if err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.UserError
		}
		// Completed tasks are shown unnumbered; done and rm only address open ones.
		for _, task := range all {
			if task.Completed {
				output.FormatDoneTask(out, task)
			}
		}
		if len(all) == 0 && !env.Config.Quiet {
			fmt.Fprintln(out, "no tasks found")
		}
		return exitcode.Success
	}

	if len(open) == 0 && !env.Config.Quiet {
		fmt.Fprintln(out, "no tasks found")
	}
	return exitcode.Success
}
