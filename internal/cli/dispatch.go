// Package cli parses the command line and dispatches to registered commands.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"tasksync/internal/commands"
	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/logging"
	"tasksync/internal/mapping"
	"tasksync/internal/service"
)

// StoreFactory opens the local task store and the sync state.
// The returned func releases them.
type StoreFactory func(ctx context.Context, cfg *config.Config) (service.LocalStore, mapping.Store, func() error, error)

// RemoteFactory builds the remote gateway and the credentials it runs on.
type RemoteFactory func(ctx context.Context, cfg *config.Config) (service.Gateway, service.Credentials, error)

// Factory builds the collaborators a command asks for. Tests inject fakes here.
type Factory struct {
	Store  StoreFactory
	Remote RemoteFactory
}

// Dispatcher handles command-line parsing and dispatch.
type Dispatcher struct {
	registry *commands.Registry
	factory  Factory
}

// NewDispatcher creates a new dispatcher with the given registry and factory.
func NewDispatcher(registry *commands.Registry, factory Factory) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		factory:  factory,
	}
}

// Run parses arguments and dispatches to the appropriate command.
// Returns the exit code.
func (d *Dispatcher) Run(ctx context.Context, args []string, out, errOut io.Writer) int {
	// No args runs list.
	if len(args) == 0 {
		args = []string{"list"}
	}

	cmdName := args[0]

	// Flags require a command.
	if strings.HasPrefix(cmdName, "-") {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}

	cmd, ok := d.registry.Find(cmdName)
	if !ok {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}
	return d.dispatchCommand(ctx, cmd, args[1:], out, errOut)
}

func (d *Dispatcher) dispatchCommand(ctx context.Context, cmd commands.Command, args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var configDir string
	var quiet, debug bool
	fs.StringVar(&configDir, "config", "", "")
	fs.BoolVar(&quiet, "quiet", false, "")
	fs.BoolVar(&debug, "debug", false, "")

	cmd.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(errOut, "error: %s\n", flagError(err))
		return exitcode.UserError
	}

	// A leading dash after parsing means a flag that parsing stopped at.
	positionalArgs := fs.Args()
	if len(positionalArgs) > 0 && strings.HasPrefix(positionalArgs[0], "-") {
		fmt.Fprintf(errOut, "error: unknown flag: %s\n", positionalArgs[0])
		return exitcode.UserError
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}
	cfg.Quiet = quiet
	cfg.Debug = debug

	env := &commands.Env{
		Config: cfg,
		Logger: logging.New(errOut, debug),
	}

	if cmd.NeedsStore() {
		if d.factory.Store == nil {
			fmt.Fprintln(errOut, "error: no local store configured")
			return exitcode.UserError
		}
		local, state, closeFn, err := d.factory.Store(ctx, cfg)
		if err != nil {
			fmt.Fprintf(errOut, "error: %s\n", err)
			return exitcode.UserError
		}
		if closeFn != nil {
			defer closeFn()
		}
		env.Local, env.Mapping = local, state
	}

	if cmd.NeedsAuth() {
		if d.factory.Remote == nil {
			fmt.Fprintln(errOut, "error: no remote backend configured")
			return exitcode.BackendError
		}
		remote, creds, err := d.factory.Remote(ctx, cfg)
		if err != nil {
			if isAuthError(err) {
				fmt.Fprintf(errOut, "error: %s\n", err)
				return exitcode.AuthError
			}
			fmt.Fprintf(errOut, "error: backend error: %s\n", err)
			return exitcode.BackendError
		}
		env.Remote, env.Creds = remote, creds
	}

	env.Logger.Debug("dispatch", "command", cmd.Name(), "config", cfg.Dir, "backend", cfg.Settings.Backend)
	return cmd.Run(ctx, env, positionalArgs, out, errOut)
}

func isAuthError(err error) bool {
	return errors.Is(err, config.ErrNoOAuthClient) ||
		errors.Is(err, config.ErrNotLoggedIn) ||
		errors.Is(err, service.ErrAuth)
}

// flagError rewrites flag package errors into the CLI's message style.
func flagError(err error) string {
	errStr := err.Error()

	if strings.HasPrefix(errStr, "flag needs an argument:") {
		name := strings.TrimSpace(strings.TrimPrefix(errStr, "flag needs an argument:"))
		return "flag needs an argument: " + name
	}
	if strings.HasPrefix(errStr, "flag provided but not defined:") {
		name := strings.TrimSpace(strings.TrimPrefix(errStr, "flag provided but not defined:"))
		return "unknown flag: " + name
	}
	return errStr
}
