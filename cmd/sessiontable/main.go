// Command sessiontable provisions the session table and runs garbage
// collection sweeps against it.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/dynamosession/pkg/config"
	"github.com/dmitrymomot/dynamosession/pkg/environment"
	"github.com/dmitrymomot/dynamosession/pkg/logger"
)

type appConfig struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL"`
	Backend  string `env:"SESSION_BACKEND" envDefault:"dynamodb"`
}

// app carries state shared by subcommands once the root has run.
type app struct {
	envFiles []string
	backend  string
	cfg      appConfig
	log      *slog.Logger
}

func main() {
	a := &app{}
	root := &cobra.Command{
		Use:           "sessiontable",
		Short:         "Provision and maintain the session table",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.PersistentFlags().StringSliceVar(&a.envFiles, "env-file", nil, "dotenv files to load before reading the environment")
	root.PersistentFlags().StringVar(&a.backend, "backend", "", "storage backend: dynamodb, redis, mongo or memory (default $SESSION_BACKEND)")

	root.AddCommand(
		ensureSubcommand(a),
		describeSubcommand(a),
		gcSubcommand(a),
		collectSubcommand(a),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "sessiontable:", err)
		os.Exit(1)
	}
}

func (a *app) init(cmd *cobra.Command) error {
	if len(a.envFiles) > 0 {
		if err := config.LoadEnv(a.envFiles...); err != nil {
			return err
		}
	}
	if err := config.Load(&a.cfg); err != nil {
		return err
	}
	if a.backend == "" {
		a.backend = a.cfg.Backend
	}

	opts := []logger.Option{
		logger.WithEnvironment(a.cfg.Env, "sessiontable"),
		logger.WithOutput(cmd.ErrOrStderr()),
	}
	if a.cfg.LogLevel != "" {
		opts = append(opts, logger.WithLevelName(a.cfg.LogLevel))
	}
	a.log = logger.New(opts...)
	logger.SetAsDefault(a.log)

	cmd.SetContext(environment.WithContext(cmd.Context(), environment.Normalize(a.cfg.Env)))
	return nil
}
