package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/localsearch/configs"
	"github.com/Aman-CERP/localsearch/internal/config"
	lserrors "github.com/Aman-CERP/localsearch/internal/errors"
	"github.com/Aman-CERP/localsearch/internal/output"
)

func newConfigCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the project configuration",
		Long: `Inspect and create the localsearch configuration.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/localsearch/config.yaml)
  3. Project config (localsearch.yaml, or --config)
  4. Environment variables (LOCALSEARCH_*)`,
		Example: `  # Create a starter localsearch.yaml
  localsearch config init

  # Show effective configuration (merged from all sources)
  localsearch config show

  # Check the configuration without building
  localsearch config validate`,
	}

	cmd.AddCommand(newConfigInitCmd(opts))
	cmd.AddCommand(newConfigShowCmd(opts))
	cmd.AddCommand(newConfigValidateCmd(opts))
	cmd.AddCommand(newConfigPathCmd(opts))
	cmd.AddCommand(newConfigRestoreCmd(opts))

	return cmd
}

func newConfigInitCmd(opts *globalOptions) *cobra.Command {
	var force, user bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a starter configuration",
		Long: `Create localsearch.yaml in the current directory (or at --config) with one
example index. With --user, create the machine-wide user config instead.
An existing file is only replaced with --force, after a timestamped backup.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, template := opts.configPath, configs.ProjectConfigTemplate
			if user {
				path, template = config.GetUserConfigPath(), configs.UserConfigTemplate
			} else if path == "" {
				wd, err := os.Getwd()
				if err != nil {
					return err
				}
				path = filepath.Join(wd, config.ProjectConfigNames[0])
			}

			backup, err := config.Init(path, template, force)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			out.Successf("Created %s", path)
			if backup != "" {
				out.Field("backup", backup)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration (a backup is kept)")
	cmd.Flags().BoolVar(&user, "user", false, "Create the user config instead of the project config")

	return cmd
}

func newConfigRestoreCmd(opts *globalOptions) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "restore [backup]",
		Short: "Restore the project config from a backup",
		Long: `Restore the project config from a backup made by 'config init --force'.
Without an argument the newest backup is used. The current file is backed up
before it is replaced.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := opts.projectConfigPath()
			if err != nil {
				return err
			}
			if path == "" {
				return lserrors.New(lserrors.ErrCodeConfigNotFound, "no project config found", nil)
			}

			backups, err := config.ListBackups(path)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if list {
				if len(backups) == 0 {
					out.Status("", "No backups.")
				}
				for _, b := range backups {
					out.Status("", b)
				}
				return nil
			}

			var backup string
			switch {
			case len(args) == 1:
				backup = args[0]
			case len(backups) > 0:
				backup = backups[0]
			default:
				return lserrors.New(lserrors.ErrCodeFileNotFound,
					fmt.Sprintf("no backups of %s", path), nil)
			}

			if err := config.Restore(path, backup); err != nil {
				return err
			}
			out.Successf("Restored %s from %s", path, backup)
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "List backups, newest first")

	return cmd
}

func newConfigShowCmd(opts *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			if cfg.Path() != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", cfg.Path())
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigValidateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			source := cfg.Path()
			if source == "" {
				source = "defaults (no project file found)"
			}
			out.Successf("Configuration is valid: %s", source)
			for _, idx := range cfg.Indexes {
				out.Field(idx.Name, fmt.Sprintf("%s source, %s engine", sourceType(idx), cfg.EngineFor(idx)))
			}
			return nil
		},
	}
}

func newConfigPathCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file paths",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			user := config.GetUserConfigPath()
			if !config.UserConfigExists() {
				user += " (not created)"
			}
			_, _ = fmt.Fprintf(out, "user:    %s\n", user)

			project, err := opts.projectConfigPath()
			if err != nil {
				return err
			}
			if project == "" {
				project = "(none)"
			}
			_, _ = fmt.Fprintf(out, "project: %s\n", project)
			return nil
		},
	}
}

// projectConfigPath returns --config, or the project file found from the
// working directory, or "".
func (o *globalOptions) projectConfigPath() (string, error) {
	if o.configPath != "" {
		return o.configPath, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	root, err := config.FindProjectRoot(wd)
	if err != nil {
		return "", err
	}
	return config.FindProjectFile(root), nil
}

func sourceType(idx config.IndexConfig) string {
	if idx.Source.Type == "" {
		return "file"
	}
	return idx.Source.Type
}
