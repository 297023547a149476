package commands

import (
	"context"
	"flag"
	"io"
	"strings"

	"tasksync/internal/exitcode"
	"tasksync/internal/output"
	"tasksync/internal/service"
)

func init() {
	Register(&ListsCmd{})
}

// ListsCmd prints the remote lists.
type ListsCmd struct{}

func (c *ListsCmd) Name() string      { return "lists" }
func (c *ListsCmd) Aliases() []string { return nil }
func (c *ListsCmd) Synopsis() string  { return "Print remote lists" }
func (c *ListsCmd) Usage() string     { return "tasksync lists [common flags]" }
func (c *ListsCmd) NeedsAuth() bool   { return true }
func (c *ListsCmd) NeedsStore() bool  { return false }

func (c *ListsCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ListsCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	lists, err := env.Remote.ListLists(ctx)
	if err != nil {
		return backendFailure(errOut, err)
	}

	for _, list := range lists {
		output.FormatListName(out, list)
	}
	return exitcode.Success
}

// matchLists returns the lists whose name equals name, ignoring case and surrounding space.
func matchLists(lists []service.RemoteList, name string) []service.RemoteList {
	want := strings.ToLower(strings.TrimSpace(name))
	var matches []service.RemoteList
	for _, l := range lists {
		if strings.ToLower(strings.TrimSpace(l.Name)) == want {
			matches = append(matches, l)
		}
	}
	return matches
}
