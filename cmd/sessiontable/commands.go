package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/dynamosession/pkg/config"
	"github.com/dmitrymomot/dynamosession/pkg/logger"
	"github.com/dmitrymomot/dynamosession/pkg/provision"
	"github.com/dmitrymomot/dynamosession/pkg/session"
)

// ensureSubcommand creates the session table if needed and waits until it is active.
func ensureSubcommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure",
		Short: "Create the session table if missing and wait until it is active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			client, closeFn, err := a.openClient(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			table, err := a.ensureTable(ctx, client)
			if err != nil {
				return err
			}
			a.log.InfoContext(ctx, "session table ready", logger.Table(table.Name()))
			return nil
		},
	}
}

// describeSubcommand prints the table metadata as JSON.
func describeSubcommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "Print the session table metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			client, closeFn, err := a.openClient(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			var cfg provision.Config
			if err := config.Load(&cfg); err != nil {
				return err
			}
			meta, err := client.DescribeTable(ctx, cfg.TableName)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(meta)
		},
	}
}

// gcSubcommand runs a single garbage collection sweep.
func gcSubcommand(a *app) *cobra.Command {
	var maxLifetime time.Duration
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Delete expired and stale sessions once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, closeFn, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			return store.GC(ctx, maxLifetime)
		},
	}
	cmd.Flags().DurationVar(&maxLifetime, "max-lifetime", session.DefaultLifetime, "delete sessions not modified within this duration")
	return cmd
}

// collectSubcommand sweeps on an interval until interrupted.
func collectSubcommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Run garbage collection sweeps on SESSION_GC_INTERVAL until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeFn, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			var cfg session.Config
			if err := config.Load(&cfg); err != nil {
				return err
			}
			opts := append(cfg.CollectorOptions(), session.WithCollectorLogger(a.log))
			err = session.NewCollector(store, opts...).Start(cmd.Context())
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
}

func (a *app) openStore(cmd *cobra.Command) (*session.Store, func(), error) {
	ctx := cmd.Context()
	client, closeFn, err := a.openClient(ctx)
	if err != nil {
		return nil, nil, err
	}
	table, err := a.ensureTable(ctx, client)
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	var cfg session.Config
	if err := config.Load(&cfg); err != nil {
		closeFn()
		return nil, nil, err
	}
	store, err := session.NewStoreFromConfig(client, table, cfg, session.WithLogger(a.log))
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return store, closeFn, nil
}
