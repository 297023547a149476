// Package commands provides the command interface and implementations.
package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/logging"
	"tasksync/internal/mapping"
	"tasksync/internal/service"
)

// Env carries what a command may use. The dispatcher fills only the parts
// a command asks for; the rest stay nil.
type Env struct {
	Config *config.Config
	Logger *slog.Logger

	// Set when NeedsStore returns true.
	Local   service.LocalStore
	Mapping mapping.Store

	// Set when NeedsAuth returns true.
	Remote service.Gateway
	Creds  service.Credentials
}

func (e *Env) log() *slog.Logger {
	if e.Logger == nil {
		return logging.Discard()
	}
	return e.Logger
}

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// NeedsAuth returns true if the command talks to the remote service.
	NeedsAuth() bool

	// NeedsStore returns true if the command reads local tasks or sync state.
	NeedsStore() bool

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *flag.FlagSet)

	// Run executes the command with positional args and returns an exit code.
	Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int
}

// backendFailure reports a remote error and picks the exit code for it.
func backendFailure(errOut io.Writer, err error) int {
	if errors.Is(err, service.ErrAuth) {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.AuthError
	}
	fmt.Fprintf(errOut, "error: backend error: %v\n", err)
	return exitcode.BackendError
}
