// Package cli implements the psicoctl command tree, the operations tool
// for migrations, queue inspection, manual triggers and per-company
// automation settings. Commands talk to the database directly rather
// than through the API server.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nexohr/psicorisco/internal/config"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
}

// CLIContext carries initialized dependencies through the command tree.
type CLIContext struct {
	Config *config.Config
	Logger logging.Logger
}

type cliContextKey struct{}

// GetCLIContext extracts the CLIContext installed by the root command.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	cc, ok := cmd.Context().Value(cliContextKey{}).(*CLIContext)
	if !ok || cc == nil {
		return nil, fmt.Errorf("command context not initialized")
	}
	return cc, nil
}

// NewRootCommand builds the psicoctl root with global flags and all
// subcommands attached.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	root := &cobra.Command{
		Use:           "psicoctl",
		Short:         "Operations tool for the psychosocial risk automation pipeline",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logCfg := cfg.Log
			if opts.LogLevel != "" {
				logCfg.Level = opts.LogLevel
			}
			logger, err := logging.NewLogger(logCfg.ToLogging())
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			cc := &CLIContext{Config: cfg, Logger: logger.Named("psicoctl")}
			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cc))
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "configs/config.yaml", "path to configuration file")
	root.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override log level (debug, info, warn, error)")

	root.AddCommand(NewMigrateCmd())
	root.AddCommand(NewQueueCmd())
	root.AddCommand(NewTriggerCmd())
	root.AddCommand(NewRetryCmd())
	root.AddCommand(NewStatsCmd())
	root.AddCommand(NewConfigCmd())
	return root
}

// Execute runs the root command and exits nonzero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "psicoctl: %v\n", err)
		os.Exit(1)
	}
}

// printJSON renders a command result for scripting consumers.
func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
