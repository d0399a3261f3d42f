package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/localsearch/internal/logging"
	"github.com/Aman-CERP/localsearch/internal/output"
)

func newLogsCmd() *cobra.Command {
	var (
		lines   int
		follow  bool
		level   string
		index   string
		pattern string
		file    string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View the debug build log",
		Long: `View the JSON build log written by commands run with --debug
(~/.localsearch/logs/build.log).`,
		Example: `  localsearch logs -n 100
  localsearch logs --level warn --index pages
  localsearch logs -f`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := logging.FindLogFile(file)
			if err != nil {
				return err
			}

			cfg := logging.ViewerConfig{
				Level:   level,
				Index:   index,
				NoColor: !output.IsTTY(cmd.OutOrStdout()) || output.DetectNoColor(),
			}
			if pattern != "" {
				re, err := regexp.Compile(pattern)
				if err != nil {
					return fmt.Errorf("invalid --grep pattern: %w", err)
				}
				cfg.Pattern = re
			}
			viewer := logging.NewViewer(cfg, cmd.OutOrStdout())

			entries, err := viewer.Tail(path, lines)
			if err != nil {
				return err
			}
			viewer.Print(entries)

			if !follow {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return followLog(ctx, viewer, path)
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new entries")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level: debug, info, warn, error")
	cmd.Flags().StringVar(&index, "index", "", "Only entries of this index")
	cmd.Flags().StringVar(&pattern, "grep", "", "Only lines matching this regular expression")
	cmd.Flags().StringVar(&file, "file", "", "Log file (default: ~/.localsearch/logs/build.log)")

	return cmd
}

func followLog(ctx context.Context, viewer *logging.Viewer, path string) error {
	entries := make(chan logging.LogEntry, 64)
	done := make(chan error, 1)
	go func() {
		done <- viewer.Follow(ctx, path, entries)
		close(entries)
	}()

	for entry := range entries {
		viewer.Print([]logging.LogEntry{entry})
	}
	return <-done
}
