package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/gofrs/flock"

	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/metrics"
	"tasksync/internal/output"
	"tasksync/internal/syncer"
)

func init() {
	Register(&SyncCmd{})
}

var errSyncInProgress = errors.New("another sync is in progress")

// SyncCmd runs one reconciliation pass between local tasks and the remote list.
type SyncCmd struct{}

func (c *SyncCmd) Name() string      { return "sync" }
func (c *SyncCmd) Aliases() []string { return nil }
func (c *SyncCmd) Synopsis() string  { return "Sync local tasks with the remote service" }
func (c *SyncCmd) Usage() string     { return "tasksync sync [common flags]" }
func (c *SyncCmd) NeedsAuth() bool   { return true }
func (c *SyncCmd) NeedsStore() bool  { return true }

func (c *SyncCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *SyncCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	lock, err := acquireSyncLock(env.Config)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
	defer lock.Unlock()

	var (
		rec      syncer.Recorder
		recorder *metrics.Recorder
	)
	metricsFile := env.Config.Settings.MetricsFile
	if metricsFile != "" {
		recorder = metrics.New()
		rec = recorder
	}

	engine, err := newEngine(env, rec)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	res := engine.RunSync(ctx)

	if recorder != nil {
		if err := recorder.WriteTextfile(metricsFile); err != nil {
			env.log().Warn("failed to write metrics textfile", "path", metricsFile, "error", err)
		}
	}

	if !env.Config.Quiet {
		output.FormatSyncSummary(out, res.Pulled, res.Pushed)
	}
	for _, msg := range res.Errors {
		fmt.Fprintf(errOut, "error: %s\n", msg)
	}

	if !res.Success {
		if len(res.Errors) == 1 && res.Errors[0] == syncer.ErrNotSignedIn {
			return exitcode.AuthError
		}
		return exitcode.BackendError
	}
	return exitcode.Success
}

// acquireSyncLock takes the non-blocking process lock that keeps passes single-flight.
func acquireSyncLock(cfg *config.Config) (*flock.Flock, error) {
	if err := cfg.EnsureDir(); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	lock := flock.New(cfg.SyncLockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	if !locked {
		return nil, errSyncInProgress
	}
	return lock, nil
}

// newEngine builds an engine from the command environment and settings.
func newEngine(env *Env, rec syncer.Recorder) (*syncer.Engine, error) {
	s := env.Config.Settings
	loc, err := s.Location()
	if err != nil {
		return nil, err
	}
	return syncer.New(syncer.Options{
		Local:           env.Local,
		Remote:          env.Remote,
		Credentials:     env.Creds,
		Mapping:         env.Mapping,
		Logger:          env.log(),
		Location:        loc,
		DefaultListName: s.DefaultListName,
		LocalListID:     s.LocalList,
		PageSize:        s.PageSize,
		Metrics:         rec,
	}), nil
}
