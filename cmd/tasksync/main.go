// Package main is the entry point for the tasksync CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tasksync/internal/auth"
	"tasksync/internal/backend/googletasks"
	"tasksync/internal/backend/mstodo"
	"tasksync/internal/cli"
	"tasksync/internal/commands"
	"tasksync/internal/config"
	"tasksync/internal/localstore"
	"tasksync/internal/mapping"
	"tasksync/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, cli.Factory{
		Store:  openStore,
		Remote: openRemote,
	})

	code := dispatcher.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func openStore(ctx context.Context, cfg *config.Config) (service.LocalStore, mapping.Store, func() error, error) {
	if err := cfg.EnsureDir(); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	db, err := localstore.Open(cfg.DatabasePath())
	if err != nil {
		return nil, nil, nil, err
	}
	return db, mapping.NewFileStore(cfg.SyncStatePath()), db.Close, nil
}

func openRemote(ctx context.Context, cfg *config.Config) (service.Gateway, service.Credentials, error) {
	if err := cfg.CheckAuthFiles(); err != nil {
		return nil, nil, err
	}
	oauthConfig, err := auth.OAuthConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	timeout, err := cfg.Settings.Timeout()
	if err != nil {
		return nil, nil, err
	}

	creds := auth.NewTokenFile(cfg.TokenPath(), oauthConfig)
	httpClient, err := creds.HTTPClient(ctx)
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Settings.Backend {
	case config.BackendGoogleTasks:
		client, err := googletasks.New(ctx, httpClient, timeout)
		if err != nil {
			return nil, nil, err
		}
		return client, creds, nil
	default:
		loc, err := cfg.Settings.Location()
		if err != nil {
			return nil, nil, err
		}
		return mstodo.New(httpClient, timeout, loc.String()), creds, nil
	}
}
