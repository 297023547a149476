package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"tasksync/internal/exitcode"
)

func init() {
	Register(&CreateListCmd{})
}

// CreateListCmd creates a remote list, refusing names that already exist.
type CreateListCmd struct{}

func (c *CreateListCmd) Name() string      { return "createlist" }
func (c *CreateListCmd) Aliases() []string { return []string{"addlist"} }
func (c *CreateListCmd) Synopsis() string  { return "Create a remote list" }
func (c *CreateListCmd) Usage() string     { return "tasksync createlist [common flags] <list-name>" }
func (c *CreateListCmd) NeedsAuth() bool   { return true }
func (c *CreateListCmd) NeedsStore() bool  { return false }

func (c *CreateListCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *CreateListCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	name := strings.TrimSpace(strings.Join(args, " "))
	if name == "" {
		fmt.Fprintln(errOut, "error: list name required")
		return exitcode.UserError
	}

	lists, err := env.Remote.ListLists(ctx)
	if err != nil {
		return backendFailure(errOut, err)
	}
	if len(matchLists(lists, name)) > 0 {
		fmt.Fprintf(errOut, "error: list already exists: %s\n", name)
		return exitcode.UserError
	}

	if _, err := env.Remote.CreateList(ctx, name); err != nil {
		return backendFailure(errOut, err)
	}

	if !env.Config.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
