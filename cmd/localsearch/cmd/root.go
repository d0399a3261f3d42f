// Package cmd provides the CLI commands for localsearch.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/localsearch/internal/config"
	"github.com/Aman-CERP/localsearch/internal/logging"
	"github.com/Aman-CERP/localsearch/pkg/version"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	debug      bool
	cleanup    func()
}

// NewRootCmd creates the root command for the localsearch CLI.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "localsearch",
		Short: "Build static full-text search indexes for a site",
		Long: `localsearch queries your content (SQLite, Postgres, YAML or JSON),
builds a full-text index and a document store for each named index, and
publishes both as content-addressed files under the site's public directory.

A manifest lists every index with its public URLs so that client-side search
can load them.

Exit status is 1 when a command fails and 2 when the configuration is
unusable.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("localsearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to the project config file")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging to ~/.localsearch/logs/")

	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if opts.cleanup != nil {
			opts.cleanup()
			opts.cleanup = nil
		}
	}

	cmd.AddCommand(newBuildCmd(opts))
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newDoctorCmd(opts))
	cmd.AddCommand(newHistoryCmd(opts))
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig loads the project configuration from the working directory (or
// --config) and sets up logging at its level.
func (o *globalOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	root := wd
	if o.configPath == "" {
		if found, err := config.FindProjectRoot(wd); err == nil {
			root = found
		}
	}

	cfg, err := config.Load(root, o.configPath)
	if err != nil {
		return nil, err
	}

	if err := o.setupLogging(cmd, cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging installs the default logger. With --debug, logs also go to
// the rotating build log.
func (o *globalOptions) setupLogging(cmd *cobra.Command, level string) error {
	if o.cleanup != nil {
		o.cleanup()
	}

	logCfg := logging.DefaultConfig(level)
	if o.debug {
		logCfg = logging.DebugConfig()
	}
	logCfg.Console = cmd.ErrOrStderr()

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	o.cleanup = cleanup
	slog.SetDefault(logger)

	if o.debug {
		logger.Debug("debug_logging_enabled",
			slog.String("log_file", logCfg.FilePath),
			slog.String("version", version.Version))
	}
	return nil
}
