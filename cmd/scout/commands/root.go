// Package commands defines all Cobra CLI commands for the scout binary.
package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/scout-go/internal/audit"
	"github.com/54b3r/scout-go/internal/config"
	"github.com/54b3r/scout-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// envFiles holds the --env-file flag values.
var envFiles []string

// invocation records the running command for the closing audit entry.
var invocation struct {
	log     *slog.Logger
	started time.Time
}

// Execute runs the root command and writes the closing audit entry.
func Execute(ctx context.Context) error {
	cmd, err := NewRootCmd().ExecuteContextC(ctx)
	if invocation.log != nil && cmd != nil {
		audit.LogCommandEnd(ctx, invocation.log, cmd.Name(), invocation.started, err)
	}
	return err
}

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "scout",
		Short: "scout: a research corpus you can ask questions",
		Long: `scout ingests research papers and advisories from a Cloud Storage bucket
into a managed RAG corpus and answers questions grounded in them.

Documents already ingested are tracked, so repeated runs only import what
is new. Answers come from the corpus-grounded model when available and
from a chat model over retrieved passages otherwise.

Configuration is read from .env, a YAML file (~/.scout/config.yaml) and the
environment, in increasing order of precedence.
See 'scout --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()
			slog.SetDefault(log)

			if err := config.LoadDotEnv(log, envFiles...); err != nil {
				return err
			}
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}

			invocation.log = log
			invocation.started = time.Now()
			audit.LogCommandStart(cmd.Context(), log, cmd.Name(), path)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.scout/config.yaml)")
	root.PersistentFlags().StringArrayVar(&envFiles, "env-file", nil, "Path to a .env file (repeatable, default: ./.env)")

	root.AddCommand(
		NewIngestCmd(),
		NewQueryCmd(),
		NewAskCmd(),
		NewFilesCmd(),
		NewCorpusCmd(),
		NewStatusCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
