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
	Register(&StatusCmd{})
	Register(&ResetCmd{})
}

// StatusCmd prints the last sync time and mapping counts.
type StatusCmd struct{}

func (c *StatusCmd) Name() string      { return "status" }
func (c *StatusCmd) Aliases() []string { return nil }
func (c *StatusCmd) Synopsis() string  { return "Show sync status" }
func (c *StatusCmd) Usage() string     { return "tasksync status [common flags]" }
func (c *StatusCmd) NeedsAuth() bool   { return false }
func (c *StatusCmd) NeedsStore() bool  { return true }

func (c *StatusCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *StatusCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	engine, err := newEngine(env, nil)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	st, err := engine.GetSyncStatus()
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
	output.FormatStatus(out, st.LastSyncTime, st.HasSynced, st.MappedTaskCount, st.MappedListCount)
	return exitcode.Success
}

// ResetCmd forgets all mappings and the sync cursor. Tasks on both sides are kept,
// so the next sync treats every task as new.
type ResetCmd struct{}

func (c *ResetCmd) Name() string      { return "reset" }
func (c *ResetCmd) Aliases() []string { return nil }
func (c *ResetCmd) Synopsis() string  { return "Clear sync mappings" }
func (c *ResetCmd) Usage() string     { return "tasksync reset [common flags]" }
func (c *ResetCmd) NeedsAuth() bool   { return false }
func (c *ResetCmd) NeedsStore() bool  { return true }

func (c *ResetCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ResetCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	lock, err := acquireSyncLock(env.Config)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
	defer lock.Unlock()

	engine, err := newEngine(env, nil)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	stats, err := engine.ClearSyncData()
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
	if !env.Config.Quiet {
		fmt.Fprintf(out, "cleared %d task mappings, %d list mappings\n", stats.Tasks, stats.Lists)
	}
	return exitcode.Success
}
